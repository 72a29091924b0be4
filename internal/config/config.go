package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendCSV    = "csv"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Corrupt state policies.
const (
	PolicyAbort = "abort"
	PolicySkip  = "skip"
)

// AppConfig is the process configuration. Values are resolved from built-in
// defaults, then an optional YAML file, then environment variables.
type AppConfig struct {
	LocationName    string  `yaml:"location_name" envconfig:"LOCATION_NAME" validate:"required"`
	LocationCountry string  `yaml:"location_country" envconfig:"LOCATION_COUNTRY"`
	Latitude        float64 `yaml:"latitude" envconfig:"LATITUDE" validate:"gte=-90,lte=90"`
	Longitude       float64 `yaml:"longitude" envconfig:"LONGITUDE" validate:"gte=-180,lte=180"`

	// GeocodeLocation replaces Latitude/Longitude with a lookup of the location name.
	GeocodeLocation bool   `yaml:"geocode_location" envconfig:"GEOCODE_LOCATION"`
	GeocoderAPIKey  string `yaml:"geocoder_api_key" envconfig:"GEOCODER_API_KEY" validate:"required_if=GeocodeLocation true"`

	TimeZone         string `yaml:"timezone" envconfig:"TIMEZONE" validate:"required"`
	ForecastHorizon  int    `yaml:"forecast_horizon" envconfig:"FORECAST_HORIZON" validate:"min=1,max=48"`
	MaxBackfillHours int    `yaml:"max_backfill_hours" envconfig:"MAX_BACKFILL_HOURS" validate:"min=0"` // 0 = unbounded

	StoreBackend       string `yaml:"store_backend" envconfig:"STORE_BACKEND" validate:"oneof=csv sqlite memory"`
	CSVPath            string `yaml:"csv_path" envconfig:"CSV_PATH" validate:"required_if=StoreBackend csv"`
	CSVDelimiter       string `yaml:"csv_delimiter" envconfig:"CSV_DELIMITER" validate:"len=1"`
	NumberLocale       string `yaml:"number_locale" envconfig:"NUMBER_LOCALE" validate:"required"`
	SQLitePath         string `yaml:"sqlite_path" envconfig:"SQLITE_PATH" validate:"required_if=StoreBackend sqlite"`
	CorruptStatePolicy string `yaml:"corrupt_state_policy" envconfig:"CORRUPT_STATE_POLICY" validate:"oneof=abort skip"`

	SourceBaseURL string        `yaml:"source_base_url" envconfig:"SOURCE_BASE_URL" validate:"required,url"`
	HTTPTimeout   time.Duration `yaml:"http_timeout" envconfig:"HTTP_TIMEOUT" validate:"gt=0"`

	LogLevel  string `yaml:"log_level" envconfig:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	LogFormat string `yaml:"log_format" envconfig:"LOG_FORMAT" validate:"oneof=json console"`
	SentryDSN string `yaml:"sentry_dsn" envconfig:"SENTRY_DSN"`
	AppEnv    string `yaml:"app_env" envconfig:"APP_ENV" validate:"required"`

	// Daemon mode only.
	Schedule      string        `yaml:"schedule" envconfig:"SCHEDULE" validate:"required"`
	Port          string        `yaml:"port" envconfig:"PORT" validate:"required,numeric"`
	HistoryMax    int           `yaml:"history_max" envconfig:"HISTORY_MAX" validate:"min=0"`
	HistoryMaxAge time.Duration `yaml:"history_max_age" envconfig:"HISTORY_MAX_AGE" validate:"min=0"`
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	return &AppConfig{
		LocationName:       "Lohmar",
		LocationCountry:    "DE",
		Latitude:           50.8387,
		Longitude:          7.2157,
		TimeZone:           "Europe/Berlin",
		ForecastHorizon:    3,
		MaxBackfillHours:   72,
		StoreBackend:       BackendCSV,
		CSVPath:            "wetterbericht.csv",
		CSVDelimiter:       ";",
		NumberLocale:       "de",
		SQLitePath:         "wetterbericht.db",
		CorruptStatePolicy: PolicyAbort,
		SourceBaseURL:      "https://api.open-meteo.com/v1/forecast",
		HTTPTimeout:        15 * time.Second,
		LogLevel:           "info",
		LogFormat:          "json",
		AppEnv:             "development",
		Schedule:           "5 * * * *",
		Port:               "8080",
		HistoryMax:         48,
		HistoryMaxAge:      72 * time.Hour,
	}
}

var validate = validator.New()

// Load reads a .env file if present, then resolves configuration from
// defaults, the YAML file at path (skipped when path is empty) and the
// environment, and validates the result.
func Load(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	// Unset variables leave the current value alone.
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SkipCorrupt reports whether corrupt persisted rows are skipped rather than fatal.
func (c *AppConfig) SkipCorrupt() bool {
	return c.CorruptStatePolicy == PolicySkip
}
