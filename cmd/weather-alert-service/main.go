package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/i474232898/weather-alert-service/internal/alert"
	httpapi "github.com/i474232898/weather-alert-service/internal/api/http"
	"github.com/i474232898/weather-alert-service/internal/cache"
	"github.com/i474232898/weather-alert-service/internal/config"
	"github.com/i474232898/weather-alert-service/internal/ingest"
	"github.com/i474232898/weather-alert-service/internal/lock"
	"github.com/i474232898/weather-alert-service/internal/registry"
	"github.com/i474232898/weather-alert-service/internal/scheduler"
	"github.com/i474232898/weather-alert-service/internal/store/sqlite"
	"github.com/i474232898/weather-alert-service/internal/weather"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	// Shared persistent store, also backing the lease locks.
	db, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer db.Close()

	// Read cache: Redis when configured, in-process otherwise.
	var backend cache.Backend
	if cfg.RedisAddr != "" {
		redisBackend, err := cache.NewRedisBackend(context.Background(), cfg.RedisAddr)
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("failed to connect to redis")
		}
		defer redisBackend.Close()
		backend = redisBackend
	} else {
		log.Info().Msg("REDIS_ADDR not set; using in-process cache")
		backend = cache.NewMemoryBackend()
	}
	readCache := cache.New(backend, cfg.CurrentWeatherTTL, cfg.HourlyWeatherTTL)

	// Provider client with explicit resilience decoration.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	rawClient := weather.NewOpenMeteoClient(httpClient, cfg.ProviderBaseURL)
	client := weather.NewResilientClient(rawClient, weather.ResilienceConfig{
		RatePerSecond:   cfg.RatePerSecond,
		RateBurst:       cfg.RateBurst,
		PermitWait:      cfg.PermitWait,
		MaxRetries:      cfg.MaxRetries,
		InitialInterval: cfg.RetryInitial,
		MaxInterval:     cfg.RetryMax,
		MinRequests:     cfg.BreakerMinReqs,
		FailureRatio:    cfg.BreakerRatio,
		Interval:        cfg.BreakerInterval,
		OpenTimeout:     cfg.BreakerTimeout,
	})

	// Pipeline wiring.
	evaluator := alert.NewEvaluator(db, db, db)
	ingestor := ingest.NewService(db, db, client, readCache, evaluator)
	dispatcher := alert.NewDispatcher(db, alert.LogNotifier{}, cfg.DispatchBatch)
	locker := lock.New(db.DB())

	sched := scheduler.New(locker, ingestor, dispatcher,
		scheduler.JobConfig{Interval: cfg.IngestInterval, MinHold: cfg.IngestMinHold, MaxHold: cfg.IngestMaxHold},
		scheduler.JobConfig{Interval: cfg.DispatchInterval, MinHold: cfg.DispatchMinHold, MaxHold: cfg.DispatchMaxHold},
	)
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}
	defer sched.Stop()

	// Read path and registry.
	weatherSvc := weather.NewService(db, db, client, readCache)
	reg := registry.New(db, db, db, cfg.GeocoderAPIKey)

	app := fiber.New(fiber.Config{
		AppName:               "weather-alert-service",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(fiberlogger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-alert-service",
		})
	})

	httpapi.RegisterRoutes(app, reg, weatherSvc, db, sched)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error().Err(err).Msg("fiber server stopped")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
}
