package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the limiter's optional distributed backend. Leaving the
// address empty, or failing the startup ping, leaves it disabled and the
// limiter runs entirely on its in-memory buckets.
type RedisClient struct {
	client *redis.Client
	addr   string
}

// NewRedisClient connects to Redis at addr. The error from a failed ping is
// returned for logging, together with a disabled client the limiter can
// still use.
func NewRedisClient(addr, password string, db int) (*RedisClient, error) {
	if addr == "" {
		slog.Warn("Redis not configured, rate limiting will use in-memory fallback")
		return &RedisClient{}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
		PoolTimeout:  4 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		slog.Error("Redis ping failed, falling back to in-memory rate limiting",
			"addr", addr, "error", err)
		return &RedisClient{addr: addr}, fmt.Errorf("pinging redis at %s: %w", addr, err)
	}

	slog.Info("Rate limit backend connected", "addr", addr, "db", db)
	return &RedisClient{client: client, addr: addr}, nil
}

// Client returns the underlying connection for redis_rate.
func (r *RedisClient) Client() *redis.Client {
	return r.client
}

// IsEnabled reports whether the distributed backend is usable.
func (r *RedisClient) IsEnabled() bool {
	return r.client != nil
}

// HealthCheck pings the backend.
func (r *RedisClient) HealthCheck(ctx context.Context) error {
	if r.client == nil {
		return fmt.Errorf("redis backend disabled")
	}
	return r.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (r *RedisClient) Close() error {
	if r.client == nil {
		return nil
	}
	slog.Info("Closing rate limit backend", "addr", r.addr)
	return r.client.Close()
}

// PoolStats reports connection pool counters for the health endpoint.
func (r *RedisClient) PoolStats() map[string]interface{} {
	if r.client == nil {
		return map[string]interface{}{"enabled": false}
	}

	stats := r.client.PoolStats()
	return map[string]interface{}{
		"enabled":     true,
		"addr":        r.addr,
		"hits":        stats.Hits,
		"misses":      stats.Misses,
		"timeouts":    stats.Timeouts,
		"total_conns": stats.TotalConns,
		"idle_conns":  stats.IdleConns,
		"stale_conns": stats.StaleConns,
	}
}
