package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces document keys.
const DefaultRedisPrefix = "meeter:doc:"

// RedisStore keeps each document as one JSON string value.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, redisURL, prefix string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opt.PoolSize = 10
	opt.MinIdleConns = 2
	opt.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return NewRedisStoreFromClient(client, prefix), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Key returns the Redis key holding doc.
func (s *RedisStore) Key(doc Document) string {
	return s.prefix + string(doc)
}

// Load fetches and decodes the whole value.
func (s *RedisStore) Load(ctx context.Context, doc Document, v any) error {
	data, err := s.client.Get(ctx, s.Key(doc)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return storageErr(doc, "read", errors.New("document not found"))
		}
		return storageErr(doc, "read", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return storageErr(doc, "decode", err)
	}
	return nil
}

// Save overwrites the value with the encoding of v.
func (s *RedisStore) Save(ctx context.Context, doc Document, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return storageErr(doc, "encode", err)
	}
	if err := s.client.Set(ctx, s.Key(doc), data, 0).Err(); err != nil {
		return storageErr(doc, "write", err)
	}
	return nil
}

// Bootstrap sets empty forms only where keys are absent.
func (s *RedisStore) Bootstrap(ctx context.Context) error {
	for _, doc := range AllDocuments {
		if err := s.client.SetNX(ctx, s.Key(doc), emptyForm(doc), 0).Err(); err != nil {
			return storageErr(doc, "bootstrap", err)
		}
	}
	return nil
}

// Ping checks Redis connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
