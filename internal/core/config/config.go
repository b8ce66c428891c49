package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Port          string
	DatabaseURL   string
	RedisURL      string
	WebhookURL    string
	WebhookSecret string
	Env           string
	LogLevel      zapcore.Level

	RequestTimeout time.Duration
	LockTTL        time.Duration
	WorkerInterval time.Duration

	// EnvFileLoaded reports whether a .env file was found. The logger does
	// not exist yet when config loads, so the caller reports it.
	EnvFileLoaded bool
}

// Load reads the .env file if present and returns the Config. Empty
// DATABASE_URL selects the in-memory store and empty REDIS_URL selects
// in-process locks.
func Load() (*Config, error) {
	// .env might not exist in production, which is fine
	loaded := godotenv.Load() == nil

	cfg := &Config{
		Port:          getEnv("PORT", "3000"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisURL:      getEnv("REDIS_URL", ""),
		WebhookURL:    getEnv("WEBHOOK_URL", ""),
		WebhookSecret: getEnv("WEBHOOK_SECRET", ""),
		Env:           getEnv("ENV", "development"),
		EnvFileLoaded: loaded,
	}

	level, err := zapcore.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = level

	durations := []struct {
		key      string
		fallback string
		dst      *time.Duration
	}{
		{"REQUEST_TIMEOUT", "10s", &cfg.RequestTimeout},
		{"LOCK_TTL", "10s", &cfg.LockTTL},
		{"WORKER_INTERVAL", "5s", &cfg.WorkerInterval},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(getEnv(d.key, d.fallback))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.key, err)
		}
		if v <= 0 {
			return nil, fmt.Errorf("%s: must be positive, got %s", d.key, v)
		}
		*d.dst = v
	}

	return cfg, nil
}

// Development reports whether ENV selects the development setup.
func (c *Config) Development() bool {
	return c.Env == "development"
}

// Helper to get env with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
