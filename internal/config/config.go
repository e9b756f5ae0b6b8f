package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the server settings. Every field comes from the environment
// with a fallback default.
type Config struct {
	Port       string
	CacheDir   string
	Prefix     string
	DBPath     string
	AMQPURL    string
	// AMQPAttempts and AMQPRetryDelay bound the broker dial at startup.
	AMQPAttempts   int
	AMQPRetryDelay time.Duration
	SkipProbe  bool
	DefaultTTL time.Duration
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	cfg := Config{
		Port:     getEnv("PORT", ":8008"),
		CacheDir: getEnv("CACHE_DIR", "./cache-data"),
		Prefix:   getEnv("CACHE_PREFIX", "zzz_"),
		DBPath:   getEnv("DB_PATH", "filecache.db"),
		AMQPURL:  os.Getenv("AMQP_URL"),
	}

	skip, err := strconv.ParseBool(getEnv("CACHE_SKIP_PROBE", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("CACHE_SKIP_PROBE: %w", err)
	}
	cfg.SkipProbe = skip

	ttl, err := strconv.Atoi(getEnv("DEFAULT_TTL", "3600"))
	if err != nil {
		return Config{}, fmt.Errorf("DEFAULT_TTL: %w", err)
	}
	if ttl < 0 {
		return Config{}, fmt.Errorf("DEFAULT_TTL: must not be negative, got %d", ttl)
	}
	cfg.DefaultTTL = time.Duration(ttl) * time.Second

	attempts, err := strconv.Atoi(getEnv("AMQP_ATTEMPTS", "5"))
	if err != nil || attempts < 1 {
		return Config{}, fmt.Errorf("AMQP_ATTEMPTS: must be a positive integer, got %q", os.Getenv("AMQP_ATTEMPTS"))
	}
	cfg.AMQPAttempts = attempts

	delay, err := time.ParseDuration(getEnv("AMQP_RETRY_DELAY", "2s"))
	if err != nil {
		return Config{}, fmt.Errorf("AMQP_RETRY_DELAY: %w", err)
	}
	cfg.AMQPRetryDelay = delay

	return cfg, nil
}
