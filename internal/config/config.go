// Package config loads the process's environment configuration. No
// third-party config library appears anywhere in the retrieved example
// pack (every repo reads os.Getenv directly), so this follows that
// convention rather than reaching for one.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds everything read from the environment. Every variable is
// prefixed APP_ per the external interface contract, except the listen port,
// which is read from PORT.
type Config struct {
	RedisURL                 string
	DefaultPaymentProcessor  string
	FallbackPaymentProcessor string
	ServerKeepAlive          int
	WorkerCount              int
	ServerPort               string
}

// Load reads configuration from the environment, applying the documented
// defaults for anything optional.
func Load() (*Config, error) {
	cfg := &Config{
		RedisURL:                 getEnv("APP_REDIS_URL", "redis://localhost:6379/0"),
		DefaultPaymentProcessor:  os.Getenv("APP_DEFAULT_PAYMENT_PROCESSOR_URL"),
		FallbackPaymentProcessor: os.Getenv("APP_FALLBACK_PAYMENT_PROCESSOR_URL"),
		ServerPort:               getEnv("PORT", "8080"),
	}

	if cfg.DefaultPaymentProcessor == "" {
		return nil, fmt.Errorf("APP_DEFAULT_PAYMENT_PROCESSOR_URL is required")
	}
	if cfg.FallbackPaymentProcessor == "" {
		return nil, fmt.Errorf("APP_FALLBACK_PAYMENT_PROCESSOR_URL is required")
	}

	keepAlive, err := getEnvInt("APP_SERVER_KEEPALIVE", 60)
	if err != nil {
		return nil, fmt.Errorf("APP_SERVER_KEEPALIVE: %w", err)
	}
	cfg.ServerKeepAlive = keepAlive

	// Configurable, default 4 — the source left this unbounded in early
	// revisions; this pins the later, configurable design.
	workers, err := getEnvInt("APP_PAYMENT_PROCESSOR_WORKER_COUNT", 4)
	if err != nil {
		return nil, fmt.Errorf("APP_PAYMENT_PROCESSOR_WORKER_COUNT: %w", err)
	}
	cfg.WorkerCount = workers

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}
