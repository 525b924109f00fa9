package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	t.Setenv("SESSION_STORE", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("SESSION_COOKIE_SECURE", "")

	cfg := Load()
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, SessionStoreRedis, cfg.Session.Store)
	assert.Equal(t, "sessions", cfg.Session.TableName)
	assert.True(t, cfg.Session.CookieSecure)
	assert.Equal(t, 100, cfg.Redis.LocalSize)
	assert.Equal(t, 30*time.Second, cfg.Catalog.CacheTTL)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://cache:6379/0")
	t.Setenv("DISABLE_REDIS", "TRUE")
	t.Setenv("SESSION_STORE", "Postgres")
	t.Setenv("SESSION_TTL_SECONDS", "60")
	t.Setenv("SESSION_AUTO_CREATE_TABLE", "false")
	t.Setenv("SESSION_COOKIE_SECURE", "false")
	t.Setenv("LOG_MODE", "production")
	t.Setenv("KAFKA_BROKERS", "k1:9092, ,k2:9092")
	t.Setenv("BOOKING_SWEEP_BATCH", "not-a-number")

	cfg := Load()
	assert.False(t, cfg.Redis.Enabled(), "DISABLE_REDIS wins over REDIS_URL")
	assert.Equal(t, SessionStorePostgres, cfg.Session.Store)
	assert.Equal(t, time.Minute, cfg.Session.TTL)
	assert.False(t, cfg.Session.AutoCreateTable)
	assert.False(t, cfg.Session.CookieSecure, "independent of LOG_MODE")
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 10, cfg.Booking.SweepBatch)
}

func TestValidate(t *testing.T) {
	cfg := Load()
	cfg.Session.Secret = "s3cret"
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.Session.Store = "memcached"
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.Session.Secret = ""
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.Booking.TimeZone = "Mars/Olympus"
	assert.Error(t, bad.Validate())
}
