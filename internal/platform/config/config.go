package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

// Storage backends for the durable task mirror.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	AuthorityURL      string        `env:"AUTHORITY_URL"`
	BackendURL        string        `env:"BACKEND_URL"`
	SessionCookieName string        `env:"SESSION_COOKIE_NAME" default:"FARE_SESSION"`
	AuthorityTimeout  time.Duration `env:"AUTHORITY_TIMEOUT" default:"15s"`

	TaskTimeout      time.Duration `env:"TASK_TIMEOUT" default:"30m"`
	PollInterval     time.Duration `env:"POLL_INTERVAL" default:"30s"`
	TaskHistoryLimit int           `env:"TASK_HISTORY_LIMIT" default:"20"`

	StorageBackend string `env:"STORAGE_BACKEND" default:"memory"`
	SQLitePath     string `env:"SQLITE_PATH" default:"faredesk.db"`
	RedisURL       string `env:"REDIS_URL"`
	DatabaseURL    string `env:"DATABASE_URL"`

	APIRateLimit float64 `env:"API_RATE_LIMIT" default:"20"`
	APIRateBurst int     `env:"API_RATE_BURST" default:"40"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	for name, value := range map[string]string{
		"AUTHORITY_URL": cfg.AuthorityURL,
		"BACKEND_URL":   cfg.BackendURL,
	} {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
		u, err := url.Parse(value)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL", name)
		}
	}

	if cfg.SessionCookieName == "" {
		return errors.New("SESSION_COOKIE_NAME must not be empty")
	}
	if cfg.TaskTimeout <= 0 {
		return errors.New("TASK_TIMEOUT must be positive")
	}
	if cfg.PollInterval <= 0 {
		return errors.New("POLL_INTERVAL must be positive")
	}
	if cfg.TaskHistoryLimit < 1 {
		return errors.New("TASK_HISTORY_LIMIT must be at least 1")
	}
	if cfg.APIRateLimit <= 0 || cfg.APIRateBurst < 1 {
		return errors.New("API_RATE_LIMIT and API_RATE_BURST must be positive")
	}

	switch cfg.StorageBackend {
	case StorageMemory:
	case StorageSQLite:
		if cfg.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required when STORAGE_BACKEND=sqlite")
		}
	case StorageRedis:
		if cfg.RedisURL == "" {
			return errors.New("REDIS_URL is required when STORAGE_BACKEND=redis")
		}
	case StoragePostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when STORAGE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND %q is not supported", cfg.StorageBackend)
	}

	return nil
}
