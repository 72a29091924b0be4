package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "Lohmar", cfg.LocationName)
	assert.Equal(t, "Europe/Berlin", cfg.TimeZone)
	assert.Equal(t, 3, cfg.ForecastHorizon)
	assert.Equal(t, 72, cfg.MaxBackfillHours)
	assert.Equal(t, BackendCSV, cfg.StoreBackend)
	assert.Equal(t, ";", cfg.CSVDelimiter)
	assert.Equal(t, "de", cfg.NumberLocale)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.False(t, cfg.SkipCorrupt())
}

func TestLoad_YAMLThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
location_name: Siegburg
latitude: 50.7998
longitude: 7.2075
store_backend: sqlite
sqlite_path: /var/lib/ledger.db
http_timeout: 30s
forecast_horizon: 6
`), 0o644))

	t.Setenv("FORECAST_HORIZON", "12")
	t.Setenv("CORRUPT_STATE_POLICY", "skip")
	t.Setenv("APP_ENV", "production")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Siegburg", cfg.LocationName)
	assert.Equal(t, 50.7998, cfg.Latitude)
	assert.Equal(t, BackendSQLite, cfg.StoreBackend)
	assert.Equal(t, "/var/lib/ledger.db", cfg.SQLitePath)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 12, cfg.ForecastHorizon)
	assert.True(t, cfg.SkipCorrupt())
	assert.Equal(t, "production", cfg.AppEnv)
	assert.Equal(t, "wetterbericht.csv", cfg.CSVPath)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "horizon too large", key: "FORECAST_HORIZON", val: "49"},
		{name: "horizon zero", key: "FORECAST_HORIZON", val: "0"},
		{name: "unknown backend", key: "STORE_BACKEND", val: "postgres"},
		{name: "unknown policy", key: "CORRUPT_STATE_POLICY", val: "ignore"},
		{name: "long delimiter", key: "CSV_DELIMITER", val: ";;"},
		{name: "latitude out of range", key: "LATITUDE", val: "91"},
		{name: "not a number", key: "MAX_BACKFILL_HOURS", val: "many"},
		{name: "geocoding without key", key: "GEOCODE_LOCATION", val: "true"},
		{name: "bad log format", key: "LOG_FORMAT", val: "xml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}
