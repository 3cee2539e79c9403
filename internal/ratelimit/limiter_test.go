package ratelimit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// disabledRedis gives a limiter running purely on the in-memory fallback.
func disabledRedis() *RedisClient {
	return &RedisClient{}
}

func TestFallbackAllowsWithinBurst(t *testing.T) {
	cfg := Config{IPLimitPerMin: 10, IngestLimitPerMin: 5, BurstMultiplier: 2}
	rl := NewRateLimiter(disabledRedis(), cfg, nil)

	for i := 0; i < 10; i++ {
		result, err := rl.AllowIP(context.Background(), "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, result.Allowed, "request %d within burst", i)
	}
}

func TestFallbackBlocksAfterBurstExhausted(t *testing.T) {
	cfg := Config{IPLimitPerMin: 2, IngestLimitPerMin: 2, BurstMultiplier: 2}
	rl := NewRateLimiter(disabledRedis(), cfg, nil)

	blocked := false
	for i := 0; i < 20; i++ {
		result, err := rl.AllowIP(context.Background(), "10.0.0.2")
		require.NoError(t, err)
		if !result.Allowed {
			blocked = true
			assert.Greater(t, result.RetryAfter.Seconds(), 0.0)
			break
		}
	}
	assert.True(t, blocked, "sustained traffic must eventually be limited")
}

func TestFallbackIsolatesClients(t *testing.T) {
	cfg := Config{IPLimitPerMin: 2, IngestLimitPerMin: 2, BurstMultiplier: 2}
	rl := NewRateLimiter(disabledRedis(), cfg, nil)

	for i := 0; i < 20; i++ {
		rl.AllowIP(context.Background(), "10.0.0.3")
	}

	result, err := rl.AllowIP(context.Background(), "10.0.0.4")
	require.NoError(t, err)
	assert.True(t, result.Allowed, "one noisy client must not exhaust another's budget")
}

func TestIngestBucketIsSeparate(t *testing.T) {
	cfg := Config{IPLimitPerMin: 2, IngestLimitPerMin: 100, BurstMultiplier: 2}
	rl := NewRateLimiter(disabledRedis(), cfg, nil)

	for i := 0; i < 20; i++ {
		rl.AllowIP(context.Background(), "10.0.0.5")
	}

	result, err := rl.AllowIngest(context.Background(), "10.0.0.5")
	require.NoError(t, err)
	assert.True(t, result.Allowed, "read and ingest budgets are independent")
}

func TestGetStats(t *testing.T) {
	rl := NewRateLimiter(disabledRedis(), DefaultConfig(), nil)
	rl.AllowIP(context.Background(), "10.0.0.6")

	stats := rl.GetStats()
	assert.Equal(t, false, stats["redis_enabled"])
	assert.Equal(t, 1, stats["fallback_limiters"])
}

func TestRedisClientDisabledByEmptyAddr(t *testing.T) {
	client, err := NewRedisClient("", "", 0)

	require.NoError(t, err)
	assert.False(t, client.IsEnabled())
	assert.Error(t, client.HealthCheck(context.Background()))
	assert.NoError(t, client.Close())
	assert.Equal(t, false, client.PoolStats()["enabled"])
}
