// Package cache keeps short-lived derived state in Redis: per-user
// last-modified stamps, resolved identities and rate limit buckets.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned when a key is absent from Redis.
var ErrCacheMiss = errors.New("cache miss")

// PoolOptions sizes the Redis connection pool. Zero fields keep the defaults.
type PoolOptions struct {
	Size    int
	MinIdle int
}

// Cache wraps a Redis client.
type Cache struct {
	client *redis.Client
}

// New dials Redis and verifies the connection with a ping.
func New(ctx context.Context, redisURL string, pool PoolOptions) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	applyPool(opt, pool)

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &Cache{client: client}, nil
}

func applyPool(opt *redis.Options, pool PoolOptions) {
	opt.PoolSize = 10
	opt.MinIdleConns = 2
	if pool.Size > 0 {
		opt.PoolSize = pool.Size
	}
	if pool.MinIdle > 0 {
		opt.MinIdleConns = min(pool.MinIdle, opt.PoolSize)
	}
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute
}

// Ping satisfies the readiness check.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}

// Client exposes the raw client for test fixtures.
func (c *Cache) Client() *redis.Client {
	return c.client
}
