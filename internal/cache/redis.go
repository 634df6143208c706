// Package cache provides the shared Redis connection and rate limit buckets.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// PoolOptions tunes the Redis connection pool.
type PoolOptions struct {
	PoolSize        int
	MinIdleConns    int
	PoolTimeout     time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultPoolOptions returns the pool settings used by the API process.
func DefaultPoolOptions() PoolOptions {
	return PoolOptions{
		PoolSize:        10,
		MinIdleConns:    2,
		PoolTimeout:     4 * time.Second,
		ConnMaxIdleTime: 5 * time.Minute,
	}
}

// Cache wraps the Redis client shared by the document store, the rate
// limiter and the delivery stream.
type Cache struct {
	client *redis.Client
}

// New connects to redisURL and verifies the connection.
func New(ctx context.Context, redisURL string, pool PoolOptions) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if pool.PoolSize > 0 {
		opt.PoolSize = pool.PoolSize
	}
	if pool.MinIdleConns > 0 {
		opt.MinIdleConns = pool.MinIdleConns
	}
	if pool.PoolTimeout > 0 {
		opt.PoolTimeout = pool.PoolTimeout
	}
	if pool.ConnMaxIdleTime > 0 {
		opt.ConnMaxIdleTime = pool.ConnMaxIdleTime
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// NewFromClient wraps an existing client.
func NewFromClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Ping checks Redis connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Client returns the underlying Redis client.
func (c *Cache) Client() *redis.Client {
	return c.client
}
