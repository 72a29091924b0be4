package logger

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap/zapcore"
)

const sentryServerRequestTimeout = 5 * time.Second

// SentryHook forwards error-level log entries to Sentry.
type SentryHook struct {
	appEnv  string
	appName string

	capture func(*sentry.Event) *sentry.EventID
}

// NewSentryHook initialises the global Sentry client.
func NewSentryHook(dsn, appEnv, appName string) (*SentryHook, error) {
	transport := sentry.NewHTTPTransport()
	transport.Timeout = sentryServerRequestTimeout

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      appEnv,
		ServerName:       appName,
		AttachStacktrace: true,
		Transport:        transport,
	}); err != nil {
		return nil, fmt.Errorf("init sentry: %w", err)
	}

	return &SentryHook{appEnv: appEnv, appName: appName, capture: sentry.CaptureEvent}, nil
}

// Fire is registered through zap.Hooks. Entries below error level are ignored.
func (h *SentryHook) Fire(entry zapcore.Entry) error {
	if entry.Level < zapcore.ErrorLevel {
		return nil
	}

	event := sentry.NewEvent()
	event.Level = mapLevel(entry.Level)
	event.Message = entry.Message
	event.Timestamp = entry.Time
	event.Environment = h.appEnv
	event.Logger = entry.LoggerName
	event.Extra["AppName"] = h.appName
	if entry.Caller.Defined {
		event.Extra["Caller"] = entry.Caller.TrimmedPath()
	}
	if entry.Stack != "" {
		event.Extra["Stack"] = entry.Stack
	}

	h.capture(event)
	return nil
}

func mapLevel(zl zapcore.Level) sentry.Level {
	switch zl {
	case zapcore.DebugLevel, zapcore.InvalidLevel:
		return sentry.LevelDebug
	case zapcore.InfoLevel:
		return sentry.LevelInfo
	case zapcore.WarnLevel:
		return sentry.LevelWarning
	case zapcore.ErrorLevel:
		return sentry.LevelError
	case zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return sentry.LevelFatal
	}
	return sentry.LevelDebug
}
