// Package config reads the server settings from the environment. A .env
// file in the working directory is loaded first when present.
package config

import (
	"fmt"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	Port      int    `env:"PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// DatabaseURL picks the store: postgres:// or postgresql:// for
	// Postgres, sqlite:// or file: for SQLite, empty to keep games in memory.
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`

	SessionSecret string        `env:"SESSION_SECRET" envDefault:"dev-secret-change-me"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	AutoStart     bool          `env:"AUTO_START" envDefault:"true"`
	TickInterval  time.Duration `env:"TICK_INTERVAL" envDefault:"1s"`
	RollTimeout   time.Duration `env:"ROLL_TIMEOUT" envDefault:"15s"`
	MoveTimeout   time.Duration `env:"MOVE_TIMEOUT" envDefault:"30s"`
	ActionTimeout time.Duration `env:"ACTION_TIMEOUT" envDefault:"15s"`

	SaveInterval    time.Duration `env:"SAVE_INTERVAL" envDefault:"30s"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"1h"`
	FinishedTTL     time.Duration `env:"FINISHED_TTL" envDefault:"24h"`

	RateLimit float64 `env:"RATE_LIMIT" envDefault:"10"`
	RateBurst int     `env:"RATE_BURST" envDefault:"20"`

	OTelEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string `env:"SERVICE_NAME" envDefault:"albion-parchis"`
}

func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("TICK_INTERVAL must be positive")
	}
	if c.RollTimeout <= 0 || c.MoveTimeout <= 0 || c.ActionTimeout <= 0 {
		return fmt.Errorf("phase timeouts must be positive")
	}
	if c.RateLimit <= 0 || c.RateBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT and RATE_BURST must be positive")
	}
	if c.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET is required")
	}
	return nil
}
