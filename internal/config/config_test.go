package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsForMemoryStore(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("APP_STORE", "Memory")
	t.Setenv("SEED_FILE", "seed.json")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, c.Store)
	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, "local", c.Lock.Backend)
	assert.Equal(t, 5*time.Second, c.Lock.TTL)
	assert.Equal(t, "reservation.events", c.Queue.Exchange)
	assert.Equal(t, "@every 5m", c.Job.CompletionSchedule)
	assert.True(t, c.Job.CompletionEnabled)

	loc, err := c.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoadRejectsIncompleteConfig(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("APP_STORE", "mysql")
	t.Setenv("DB_USER", "")
	t.Setenv("LOCK_BACKEND", "zookeeper")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_USER")
	assert.Contains(t, err.Error(), "LOCK_BACKEND")

	t.Setenv("JWT_SECRET", "")
	_, err = Load()
	assert.Error(t, err)
}

func TestCacheAndRateLimitConfig(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cc, err := LoadCacheConfig()
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, cc.Methods)

	rl, err := LoadRateLimitConfig()
	require.NoError(t, err)
	assert.Equal(t, 1, rl.Capacity)
	assert.Equal(t, 5*time.Second, rl.TTL)
}

func TestRedisHostPortWins(t *testing.T) {
	t.Setenv("REDIS_ADDR", "cache:6379")
	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6380")

	c, err := LoadRedisConfig()
	require.NoError(t, err)
	assert.Equal(t, "redis:6380", c.Addr)
}
