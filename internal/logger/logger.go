package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const sentryFlushTimeout = 5 * time.Second

// Options configures New.
type Options struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string
	// Format is "json" or "console".
	Format  string
	AppName string
	AppEnv  string
	// SentryDSN enables forwarding of error-level entries when set.
	SentryDSN string
	// Writer defaults to stdout.
	Writer io.Writer
}

// New creates a zap logger with ISO-8601 timestamps.
func New(opts Options) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
		return nil, err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	switch opts.Format {
	case "", "json":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewJSONEncoder(encCfg)
	case "console":
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}

	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(w)), level)

	zapOpts := []zap.Option{zap.AddCaller()}
	if opts.AppName != "" {
		zapOpts = append(zapOpts, zap.Fields(zap.String("app", opts.AppName)))
	}
	if opts.SentryDSN != "" {
		hook, err := NewSentryHook(opts.SentryDSN, opts.AppEnv, opts.AppName)
		if err != nil {
			return nil, err
		}
		zapOpts = append(zapOpts, zap.Hooks(hook.Fire))
	}

	return zap.New(core, zapOpts...), nil
}

// Flush forces buffered entries out, including pending Sentry events.
// Call this from main just before the program exits.
func Flush(l *zap.Logger) {
	// Sync on stdout returns EINVAL on some platforms; nothing to do about it.
	_ = l.Sync()
	sentry.Flush(sentryFlushTimeout)
}
