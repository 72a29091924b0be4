package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/forecast-ledger/internal/api/http"
	"github.com/i474232898/forecast-ledger/internal/config"
	"github.com/i474232898/forecast-ledger/internal/forecast"
	"github.com/i474232898/forecast-ledger/internal/forecast/providers"
	"github.com/i474232898/forecast-ledger/internal/geo"
	"github.com/i474232898/forecast-ledger/internal/history"
	"github.com/i474232898/forecast-ledger/internal/logger"
	"github.com/i474232898/forecast-ledger/internal/scheduler"
	"github.com/i474232898/forecast-ledger/internal/store"
)

const appName = "forecast-ledger"

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath = pflag.StringP("config", "c", "", "path to a YAML config file")
		nowFlag    = pflag.String("now", "", "replay the run at this RFC3339 instant instead of the wall clock")
		dryRun     = pflag.Bool("dry-run", false, "plan and fetch, print the rows, persist nothing")
		daemon     = pflag.Bool("daemon", false, "run on the configured schedule and serve the inspection API")
	)
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 2
	}

	log, err := logger.New(logger.Options{
		Level:     cfg.LogLevel,
		Format:    cfg.LogFormat,
		AppName:   appName,
		AppEnv:    cfg.AppEnv,
		SentryDSN: cfg.SentryDSN,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		return 2
	}
	defer logger.Flush(log)

	if *daemon && (*nowFlag != "" || *dryRun) {
		log.Error("--daemon cannot be combined with --now or --dry-run")
		return 2
	}

	tz, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		log.Error("unknown timezone", zap.String("timezone", cfg.TimeZone), zap.Error(err))
		return 2
	}

	var clock forecast.Clock = forecast.SystemClock{}
	if *nowFlag != "" {
		ts, err := time.Parse(time.RFC3339, *nowFlag)
		if err != nil {
			log.Error("invalid --now", zap.String("now", *nowFlag), zap.Error(err))
			return 2
		}
		clock = forecast.FixedClock(ts)
	}

	location := forecast.Location{Name: cfg.LocationName, Latitude: cfg.Latitude, Longitude: cfg.Longitude}
	if cfg.GeocodeLocation {
		location, err = geo.Resolve(cfg.GeocoderAPIKey, cfg.LocationName, cfg.LocationCountry)
		if err != nil {
			log.Error("geocoding failed", zap.Error(err))
			return 1
		}
		log.Info("location geocoded",
			zap.String("location", location.Name),
			zap.Float64("latitude", location.Latitude),
			zap.Float64("longitude", location.Longitude))
	}

	formatter, err := forecast.NewFormatter(cfg.NumberLocale)
	if err != nil {
		log.Error("invalid number locale", zap.Error(err))
		return 2
	}

	st, closeStore, err := openStore(cfg, tz, formatter, log)
	if err != nil {
		log.Error("failed to open store", zap.String("backend", cfg.StoreBackend), zap.Error(err))
		return 1
	}
	defer closeStore()
	log.Info("store opened",
		zap.String("backend", cfg.StoreBackend),
		zap.String("number_locale", formatter.Locale()),
		zap.String("timezone", tz.String()))

	var sink forecast.Appender = st
	var preview *store.MemoryStore
	if *dryRun {
		preview = store.NewMemoryStore()
		sink = preview
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}
	source := providers.NewOpenMeteoProvider(httpClient, cfg.SourceBaseURL, log)

	service := forecast.NewService(st, sink, source, clock, forecast.Options{
		Location: location,
		TimeZone: tz,
		Planner: forecast.Planner{
			Horizon:     cfg.ForecastHorizon,
			MaxBackfill: cfg.MaxBackfillHours,
		},
	}, log)

	if *daemon {
		return runDaemon(cfg, service, tz, log)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := service.Run(ctx)
	if err != nil {
		return 1
	}

	if preview != nil {
		if err := printRows(cfg.CSVDelimiter, formatter, preview.Records()); err != nil {
			log.Error("failed to print dry-run rows", zap.Error(err))
			return 1
		}
		log.Info("dry run, nothing persisted", zap.Int("records", report.Written))
	}
	return 0
}

// openStore builds the configured backend. The returned close func is never nil.
func openStore(cfg *config.AppConfig, tz *time.Location, formatter forecast.Formatter, log *zap.Logger) (forecast.Store, func(), error) {
	noop := func() {}

	switch cfg.StoreBackend {
	case config.BackendCSV:
		s, err := store.NewCSVStore(store.CSVOptions{
			Path:        cfg.CSVPath,
			Delimiter:   cfg.CSVDelimiter,
			TimeZone:    tz,
			Formatter:   formatter,
			SkipCorrupt: cfg.SkipCorrupt(),
		}, log)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil

	case config.BackendSQLite:
		s, err := store.NewSQLiteStore(cfg.SQLitePath, tz, cfg.SkipCorrupt(), log)
		if err != nil {
			return nil, noop, err
		}
		return s, func() {
			if err := s.Close(); err != nil {
				log.Warn("closing sqlite store", zap.Error(err))
			}
		}, nil

	case config.BackendMemory:
		return store.NewMemoryStore(), noop, nil
	}

	return nil, noop, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

func printRows(delimiter string, formatter forecast.Formatter, records []forecast.Record) error {
	comma, err := store.ParseDelimiter(delimiter)
	if err != nil {
		return err
	}
	w := csv.NewWriter(os.Stdout)
	w.Comma = comma
	if err := w.Write(forecast.Columns); err != nil {
		return err
	}
	for _, r := range records {
		if err := w.Write(formatter.Row(r)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func runDaemon(cfg *config.AppConfig, service *forecast.Service, tz *time.Location, log *zap.Logger) int {
	runs := history.New(cfg.HistoryMax, cfg.HistoryMaxAge)

	// Scheduler that periodically reconciles the store.
	sched := scheduler.New(cfg.Schedule, tz, service, runs, log)
	if err := sched.Start(); err != nil {
		log.Error("failed to start scheduler", zap.Error(err))
		return 1
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               appName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(fiberlogger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": appName,
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, service, runs)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("fiber server stopped", zap.Error(err))
		}
	}()
	log.Info("inspection api listening", zap.String("port", cfg.Port))

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("error during shutdown", zap.Error(err))
	}
	return 0
}
