package entity

import (
	"context"
	"sort"
	"sync"
	"time"
)

// AliasRecord is one known name or identifier for an entity. Source
// distinguishes primary identifier fields from manually supplied aliases.
type AliasRecord struct {
	EntityID  string    `json:"entity_id"`
	Alias     string    `json:"alias"`
	AliasType string    `json:"alias_type"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// MatchRecord is one scored edge between two entities.
type MatchRecord struct {
	EntityID        string    `json:"entity_id"`
	MatchedEntityID string    `json:"matched_entity_id"`
	Confidence      float64   `json:"confidence"`
	MatchType       MatchType `json:"match_type"`
	Fields          []string  `json:"fields"`
	SourceEntities  []string  `json:"source_entities,omitempty"`
	MatchedAt       time.Time `json:"matched_at"`
}

// Store persists alias rows and match edges. Implementations must upsert:
// re-registering an entity or re-running a match replaces the previous row
// for the same key rather than accumulating duplicates.
type Store interface {
	// SaveAliases upserts alias rows keyed by (entity, alias, alias type).
	SaveAliases(ctx context.Context, aliases []AliasRecord) error

	// SaveMatches upserts match edges keyed by (entity, matched entity).
	SaveMatches(ctx context.Context, matches []MatchRecord) error

	// Aliases returns all alias rows for an entity.
	Aliases(ctx context.Context, entityID string) ([]AliasRecord, error)

	// Matches returns all match edges for an entity, highest confidence
	// first.
	Matches(ctx context.Context, entityID string) ([]MatchRecord, error)

	Close() error
}

// MemoryStore is an in-memory Store for tests and single-process use.
type MemoryStore struct {
	mu      sync.RWMutex
	aliases map[string]AliasRecord // entityID + "\x00" + alias + "\x00" + aliasType
	matches map[string]MatchRecord // entityID + "\x00" + matchedEntityID
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		aliases: make(map[string]AliasRecord),
		matches: make(map[string]MatchRecord),
	}
}

func (m *MemoryStore) SaveAliases(_ context.Context, aliases []AliasRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range aliases {
		m.aliases[a.EntityID+"\x00"+a.Alias+"\x00"+a.AliasType] = a
	}
	return nil
}

func (m *MemoryStore) SaveMatches(_ context.Context, matches []MatchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mr := range matches {
		m.matches[mr.EntityID+"\x00"+mr.MatchedEntityID] = mr
	}
	return nil
}

func (m *MemoryStore) Aliases(_ context.Context, entityID string) ([]AliasRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []AliasRecord
	for _, a := range m.aliases {
		if a.EntityID == entityID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Alias != out[j].Alias {
			return out[i].Alias < out[j].Alias
		}
		return out[i].AliasType < out[j].AliasType
	})
	return out, nil
}

func (m *MemoryStore) Matches(_ context.Context, entityID string) ([]MatchRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []MatchRecord
	for _, mr := range m.matches {
		if mr.EntityID == entityID {
			out = append(out, mr)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].MatchedEntityID < out[j].MatchedEntityID
	})
	return out, nil
}

func (m *MemoryStore) Close() error {
	return nil
}
