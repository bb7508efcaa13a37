package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// AppConfig is the full runtime configuration, read from the environment
// with sensible defaults.
type AppConfig struct {
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Shared persistent state.
	DBPath    string `env:"DB_PATH" envDefault:"weather-alert.db"`
	RedisAddr string `env:"REDIS_ADDR"` // empty = in-process cache

	// Provider endpoint and outbound HTTP timeout.
	ProviderBaseURL string        `env:"PROVIDER_BASE_URL" envDefault:"https://api.open-meteo.com"`
	HTTPTimeout     time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`

	// Provider resilience.
	RatePerSecond   float64       `env:"PROVIDER_RATE_PER_SECOND" envDefault:"5"`
	RateBurst       int           `env:"PROVIDER_RATE_BURST" envDefault:"5"`
	PermitWait      time.Duration `env:"PROVIDER_PERMIT_WAIT" envDefault:"2s"`
	MaxRetries      int           `env:"PROVIDER_MAX_RETRIES" envDefault:"3"`
	RetryInitial    time.Duration `env:"PROVIDER_RETRY_INITIAL" envDefault:"500ms"`
	RetryMax        time.Duration `env:"PROVIDER_RETRY_MAX" envDefault:"5s"`
	BreakerMinReqs  uint32        `env:"PROVIDER_BREAKER_MIN_REQUESTS" envDefault:"5"`
	BreakerRatio    float64       `env:"PROVIDER_BREAKER_FAILURE_RATIO" envDefault:"0.5"`
	BreakerInterval time.Duration `env:"PROVIDER_BREAKER_INTERVAL" envDefault:"1m"`
	BreakerTimeout  time.Duration `env:"PROVIDER_BREAKER_TIMEOUT" envDefault:"2m"`

	// Job cadences and lock-hold bounds.
	IngestInterval   time.Duration `env:"INGEST_INTERVAL" envDefault:"5m"`
	IngestMinHold    time.Duration `env:"INGEST_LOCK_MIN_HOLD" envDefault:"10s"`
	IngestMaxHold    time.Duration `env:"INGEST_LOCK_MAX_HOLD" envDefault:"4m"`
	DispatchInterval time.Duration `env:"DISPATCH_INTERVAL" envDefault:"30s"`
	DispatchMinHold  time.Duration `env:"DISPATCH_LOCK_MIN_HOLD" envDefault:"5s"`
	DispatchMaxHold  time.Duration `env:"DISPATCH_LOCK_MAX_HOLD" envDefault:"2m"`
	DispatchBatch    int           `env:"DISPATCH_BATCH_SIZE" envDefault:"50"`

	// Read cache TTLs, one per cache class.
	CurrentWeatherTTL time.Duration `env:"CACHE_CURRENT_TTL" envDefault:"60s"`
	HourlyWeatherTTL  time.Duration `env:"CACHE_HOURLY_TTL" envDefault:"5m"`

	// Optional Google geocoding key for coordinate-less location creation.
	GeocoderAPIKey string `env:"GEOCODER_API_KEY"`
}

// Load reads configuration from the environment, after loading .env when
// present.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.IngestMinHold > cfg.IngestMaxHold || cfg.DispatchMinHold > cfg.DispatchMaxHold {
		return nil, fmt.Errorf("lock min hold must not exceed max hold")
	}
	if cfg.DispatchBatch <= 0 {
		return nil, fmt.Errorf("DISPATCH_BATCH_SIZE must be positive")
	}
	return cfg, nil
}
