package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// Config is parsed once at process start from the environment, for both
// the API server and the worker/scheduler process — each binary only
// reads the fields it needs.
type Config struct {
	Env  string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	Port string `env:"PORT" envDefault:"8080"`

	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`

	// AppUserPassword is used once at bootstrap to create the restricted
	// application role the queue/scheduler processes connect as.
	AppUserPassword string `env:"APP_USER_PASSWORD" envDefault:"changeme"`

	NumWorkers int `env:"NUM_WORKERS" envDefault:"3" validate:"min=1,max=100"`
	// TimeoutSec bounds a job's maximum execution time; heartbeats must
	// arrive more often than this or the zombie reaper reclaims the row.
	TimeoutSec int `env:"TIMEOUT" envDefault:"300" validate:"min=1"`
	// SleepQueueMS is how long a worker sleeps between Pull attempts
	// when the queue is empty.
	SleepQueueMS int `env:"SLEEP_QUEUE" envDefault:"50" validate:"min=1"`

	DispatchPollIntervalSec int `env:"DISPATCH_POLL_INTERVAL_SEC" envDefault:"30" validate:"min=1"`

	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info" validate:"required,oneof=debug info warn error"`

	JWTSecret     string `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	ResendAPIKey  string `env:"RESEND_API_KEY" validate:"required_if=Env production,required_if=Env staging"`
	ResendFrom    string `env:"RESEND_FROM" validate:"required_if=Env production,required_if=Env staging"`
	MagicLinkBase string `env:"MAGIC_LINK_BASE_URL" envDefault:"http://localhost:8080"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

func (c *Config) SleepQueue() time.Duration {
	return time.Duration(c.SleepQueueMS) * time.Millisecond
}

func (c *Config) DispatchPollInterval() time.Duration {
	return time.Duration(c.DispatchPollIntervalSec) * time.Second
}

// SlogLevel converts LOG_LEVEL to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
