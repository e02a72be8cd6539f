// Package badgerkv provides a BadgerDB implementation of the kv.Store
// interface. It gives the embedding cache and index metadata a persistent
// embedded backend with native TTL support, no external service required.
package badgerkv

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/filigree-ai/go-filigree/pkg/filigree"
	"github.com/filigree-ai/go-filigree/pkg/kv"
)

// Store implements kv.Store using BadgerDB.
type Store struct {
	db *badger.DB
}

// New opens or creates a Badger database at the given path.
func New(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, filigree.WrapErrorf(err, "opening badger store at %q", path)
	}
	return &Store{db: db}, nil
}

var _ kv.Store = (*Store)(nil)

// Get retrieves a value by key. Returns (nil, nil) when the key is absent
// or its TTL has passed.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	var result []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			result = append([]byte(nil), val...)
			return nil
		})
	})
	return result, err
}

// Set stores a value by key. ttl 0 keeps the key forever; otherwise Badger
// expires it server-side.
func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
}

// Delete removes a value by key.
func (s *Store) Delete(_ context.Context, key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Exists checks if a key exists.
func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Keys returns all keys with the given prefix using a key-only iterator.
func (s *Store) Keys(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	return keys, err
}

// Close releases the database. Further calls error.
func (s *Store) Close() error {
	return s.db.Close()
}
