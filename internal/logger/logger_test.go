package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Options{Level: "info", Format: "json", AppName: "forecast-ledger", Writer: &buf})
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("run completed", zap.Int("written", 2))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "run completed", entry["msg"])
	assert.Equal(t, "forecast-ledger", entry["app"])
	assert.EqualValues(t, 2, entry["written"])
	assert.Contains(t, entry, "ts")
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Options{Level: "debug", Format: "console", Writer: &buf})
	require.NoError(t, err)

	log.Debug("planned run")

	assert.Contains(t, buf.String(), "planned run")
}

func TestNew_InvalidOptions(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	assert.Error(t, err)

	_, err = New(Options{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

func TestSentryHook_FiresOnErrors(t *testing.T) {
	var events []*sentry.Event
	hook := &SentryHook{appEnv: "test", appName: "forecast-ledger", capture: func(e *sentry.Event) *sentry.EventID {
		events = append(events, e)
		return nil
	}}

	var buf bytes.Buffer
	core := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(&buf), zapcore.DebugLevel)
	log := zap.New(core, zap.Hooks(hook.Fire))

	log.Warn("slot absent from response")
	log.Error("fetch failed")

	require.Len(t, events, 1)
	assert.Equal(t, "fetch failed", events[0].Message)
	assert.Equal(t, sentry.LevelError, events[0].Level)
	assert.Equal(t, "test", events[0].Environment)
	assert.Equal(t, "forecast-ledger", events[0].Extra["AppName"])
}

func TestMapLevel(t *testing.T) {
	assert.Equal(t, sentry.LevelWarning, mapLevel(zapcore.WarnLevel))
	assert.Equal(t, sentry.LevelFatal, mapLevel(zapcore.FatalLevel))
	assert.Equal(t, sentry.LevelDebug, mapLevel(zapcore.DebugLevel))
}
