package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

type Config struct {
	AppURL                  string
	StoreDriver             string
	DatabaseDSN             string
	RedisAddr               string
	StoreKeyPrefix          string
	RateLimit               int
	ShutdownTimeoutSeconds  int
	TickInterval            time.Duration
	PersistEverySeconds     int
	CompletionWriteAttempts int
	LogLevel                string
	LogFormat               string
}

func Load() (Config, error) {
	appHost := getEnv("APP_HOST", "127.0.0.1")
	appPort := getEnv("APP_PORT", "8080")
	redisHost := getEnv("REDIS_HOST", "127.0.0.1")
	redisPort := getEnv("REDIS_PORT", "6379")

	var errs []error
	intEnv := func(key string, def int) int {
		v, err := getEnvAsInt(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	cfg := Config{
		AppURL:                  fmt.Sprintf("%s:%s", appHost, appPort),
		StoreDriver:             getEnv("STORE_DRIVER", StoreSQLite),
		DatabaseDSN:             getEnv("DATABASE_DSN", "timers.db"),
		RedisAddr:               fmt.Sprintf("%s:%s", redisHost, redisPort),
		StoreKeyPrefix:          os.Getenv("STORE_KEY_PREFIX"),
		RateLimit:               intEnv("RATE_LIMIT_PER_MINUTE", 120),
		ShutdownTimeoutSeconds:  intEnv("SHUTDOWN_TIMEOUT_SECONDS", 20),
		TickInterval:            time.Duration(intEnv("TICK_INTERVAL_MS", 1000)) * time.Millisecond,
		PersistEverySeconds:     intEnv("PERSIST_EVERY_SECONDS", 5),
		CompletionWriteAttempts: intEnv("COMPLETION_WRITE_ATTEMPTS", 3),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		LogFormat:               getEnv("LOG_FORMAT", "text"),
	}

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	switch cfg.StoreDriver {
	case StoreSQLite, StoreRedis, StoreMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be one of sqlite, redis, memory (got %q)", cfg.StoreDriver)
	}
	if cfg.StoreDriver == StoreSQLite && cfg.DatabaseDSN == "" {
		return errors.New("DATABASE_DSN must not be empty")
	}
	if cfg.RateLimit <= 0 {
		return errors.New("RATE_LIMIT_PER_MINUTE must be greater than 0")
	}
	if cfg.ShutdownTimeoutSeconds <= 0 {
		return errors.New("SHUTDOWN_TIMEOUT_SECONDS must be greater than 0")
	}
	if cfg.TickInterval <= 0 {
		return errors.New("TICK_INTERVAL_MS must be greater than 0")
	}
	if cfg.PersistEverySeconds <= 0 {
		return errors.New("PERSIST_EVERY_SECONDS must be greater than 0")
	}
	if cfg.CompletionWriteAttempts <= 0 {
		return errors.New("COMPLETION_WRITE_ATTEMPTS must be greater than 0")
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json (got %q)", cfg.LogFormat)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) (int, error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			return defaultVal, fmt.Errorf("invalid integer value for %s", key)
		}
		return i, nil
	}
	return defaultVal, nil
}
