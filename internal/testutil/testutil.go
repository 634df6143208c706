// Package testutil provides shared helpers for tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/meeter/meeter/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

// RedisClient connects to REDIS_URL or skips the test.
// The client is closed when the test ends.
func RedisClient(t testing.TB) *redis.Client {
	t.Helper()
	redisURL := RequireEnv(t, "REDIS_URL")

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Fatalf("parse REDIS_URL: %v", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("redis not reachable: %v", err)
	}

	t.Cleanup(func() { client.Close() })
	return client
}

// FlushPrefix deletes every key starting with prefix.
func FlushPrefix(ctx context.Context, client *redis.Client, prefix string) error {
	iter := client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("delete %s: %w", iter.Val(), err)
		}
	}
	return iter.Err()
}

// ============================================================================
// Test Data Factories
// ============================================================================

var seq atomic.Uint64

// UniqueAvatar generates a unique avatar id for tests.
func UniqueAvatar(prefix string) string {
	return fmt.Sprintf("%s-%d-%d", prefix, time.Now().UnixNano(), seq.Add(1))
}

// UniquePrefix generates a unique Redis key prefix for tests.
func UniquePrefix(prefix string) string {
	return fmt.Sprintf("test:%s:%d:", prefix, seq.Add(1)+uint64(time.Now().UnixNano()))
}

// NewTestUser creates a user record with sensible defaults.
func NewTestUser(t testing.TB, avatar string, balance float64) *model.User {
	t.Helper()
	now := time.Now().UTC()
	return &model.User{
		Avatar:       avatar,
		Name:         model.DefaultUserName,
		APIKey:       fmt.Sprintf("key-%s", avatar),
		RegisteredAt: now,
		Balance:      balance,
		LastLogin:    now,
	}
}
