package config

import (
	"fmt"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type AppConfig struct {
	Port string `envconfig:"PORT" default:"8080"`

	// Provider access.
	ProviderBaseURL string        `envconfig:"OPENMETEO_BASE_URL" default:"https://api.open-meteo.com" validate:"required,url"`
	HTTPTimeout     time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s" validate:"gt=0"` // per attempt

	// Retry policy.
	RetryAttempts      int           `envconfig:"RETRY_ATTEMPTS" default:"5" validate:"min=1,max=10"`
	RetryBackoffFactor time.Duration `envconfig:"RETRY_BACKOFF_FACTOR" default:"200ms" validate:"gte=0"`
	RetryMaxInterval   time.Duration `envconfig:"RETRY_MAX_INTERVAL" default:"0s" validate:"gte=0"` // 0 = no cap
	RetryJitter        bool          `envconfig:"RETRY_JITTER" default:"false"`

	// CachePath is the SQLite file backing the cache; empty keeps it in memory only.
	CachePath string `envconfig:"CACHE_PATH" default:".cache.sqlite"`

	// WarmInterval controls how often the warmer refreshes every location.
	WarmInterval time.Duration `envconfig:"WARM_INTERVAL" default:"15m" validate:"gte=1s"`

	// FetchConcurrency bounds dashboard fan-out (0 = unbounded).
	FetchConcurrency int `envconfig:"FETCH_CONCURRENCY" default:"0" validate:"gte=0"`

	// Locations to track, e.g. "Berlin=52.52,13.41;Paris,France".
	Locations      string `envconfig:"WEATHER_LOCATIONS"`
	GeocoderAPIKey string `envconfig:"GEOCODER_API_KEY"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFile  string `envconfig:"LOG_FILE" default:"app.log"`
}

// Load reads configuration from the environment (and .env, if present) with
// sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
