package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "CACHE_DIR", "CACHE_PREFIX", "DB_PATH", "AMQP_URL", "CACHE_SKIP_PROBE", "DEFAULT_TTL", "AMQP_ATTEMPTS", "AMQP_RETRY_DELAY"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8008", cfg.Port)
	require.Equal(t, "zzz_", cfg.Prefix)
	require.Equal(t, time.Hour, cfg.DefaultTTL)
	require.False(t, cfg.SkipProbe)
	require.Empty(t, cfg.AMQPURL)
	require.Equal(t, 5, cfg.AMQPAttempts)
	require.Equal(t, 2*time.Second, cfg.AMQPRetryDelay)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CACHE_DIR", "/var/cache/app")
	t.Setenv("CACHE_PREFIX", "app_")
	t.Setenv("CACHE_SKIP_PROBE", "true")
	t.Setenv("DEFAULT_TTL", "30")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "/var/cache/app", cfg.CacheDir)
	require.Equal(t, "app_", cfg.Prefix)
	require.True(t, cfg.SkipProbe)
	require.Equal(t, 30*time.Second, cfg.DefaultTTL)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("DEFAULT_TTL", "-1")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("DEFAULT_TTL", "abc")
	_, err = Load()
	require.Error(t, err)

	t.Setenv("DEFAULT_TTL", "")
	t.Setenv("CACHE_SKIP_PROBE", "maybe")
	_, err = Load()
	require.Error(t, err)
}

func TestLoad_BrokerRetry(t *testing.T) {
	t.Setenv("AMQP_ATTEMPTS", "3")
	t.Setenv("AMQP_RETRY_DELAY", "500ms")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 3, cfg.AMQPAttempts)
	require.Equal(t, 500*time.Millisecond, cfg.AMQPRetryDelay)

	t.Setenv("AMQP_ATTEMPTS", "0")
	_, err = Load()
	require.Error(t, err)
}
