package kv

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore is a Store backed by a map, with TTL handling and periodic
// cleanup of expired entries. Useful for tests and single-process runs
// that do not need persistence.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]*memoryEntry
	done chan struct{}
}

type memoryEntry struct {
	data      []byte
	timestamp time.Time
	ttl       time.Duration
}

func (e *memoryEntry) expired(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.timestamp) > e.ttl
}

// NewMemoryStore creates a MemoryStore and starts its cleanup goroutine.
// Call Close to stop it.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		data: make(map[string]*memoryEntry),
		done: make(chan struct{}),
	}
	go s.backgroundCleanup()
	return s
}

var _ Store = (*MemoryStore)(nil)

// Get retrieves the value for a key. Returns (nil, nil) on a miss.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.data[key]
	if !ok || entry.expired(time.Now()) {
		return nil, nil
	}

	// Copy so callers cannot mutate the stored bytes.
	result := make([]byte, len(entry.data))
	copy(result, entry.data)
	return result, nil
}

// Set stores a value under a key. ttl 0 keeps the key forever.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	dataCopy := make([]byte, len(value))
	copy(dataCopy, value)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = &memoryEntry{data: dataCopy, timestamp: time.Now(), ttl: ttl}
	return nil
}

// Delete removes a key. Deleting an absent key is not an error.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Exists reports whether a key is present and unexpired.
func (s *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.data[key]
	return ok && !entry.expired(time.Now()), nil
}

// Keys returns all unexpired keys with the given prefix. An empty prefix
// matches everything. The order is not specified.
func (s *MemoryStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	now := time.Now()
	for key, entry := range s.data {
		if entry.expired(now) {
			continue
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Close stops the cleanup goroutine. The store remains usable but expired
// entries are then only dropped lazily on access.
func (s *MemoryStore) Close() error {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	return nil
}

func (s *MemoryStore) backgroundCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.done:
			return
		}
	}
}

func (s *MemoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, entry := range s.data {
		if entry.expired(now) {
			delete(s.data, key)
		}
	}
}
