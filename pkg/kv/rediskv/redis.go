// Package rediskv provides a Redis implementation of the kv.Store
// interface, for deployments that share one embedding cache across several
// ingest workers.
package rediskv

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/filigree-ai/go-filigree/pkg/filigree"
	"github.com/filigree-ai/go-filigree/pkg/kv"
)

// Config holds Redis connection settings.
type Config struct {
	// Addr is the host:port of the Redis server. Required.
	Addr string
	// Password is optional.
	Password string
	// DB selects the logical database. Defaults to 0.
	DB int
}

// Store implements kv.Store using Redis.
type Store struct {
	client *redis.Client
}

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, filigree.WrapErrorf(err, "connecting to redis at %q", cfg.Addr)
	}
	return &Store{client: client}, nil
}

var _ kv.Store = (*Store)(nil)

// Get retrieves a value by key. Returns (nil, nil) on a miss.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Set stores a value by key. ttl 0 keeps the key forever.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// Delete removes a value by key.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// Exists checks if a key exists.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Keys returns all keys with the given prefix. Uses SCAN rather than KEYS
// so a large cache does not block the server.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}
