// Package kv defines the byte-oriented key-value store the toolkit layers
// persistence on. The embedding cache and the vector index metadata mirror
// both speak this interface; backends cover in-memory (this package),
// embedded on-disk (badgerkv) and shared (rediskv) deployments.
package kv

import (
	"context"
	"time"
)

// Store is a key-value store with optional per-key TTL.
//
// Get returns (nil, nil) when the key is absent or expired; callers must
// not treat a miss as an error. A TTL of zero means the key never expires.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}
