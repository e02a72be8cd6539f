package rag

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// cacheKey derives a stable cache key from the query and its metadata
// filters. json.Marshal sorts map keys, so equal filters always produce
// the same key; nil and empty filters hash identically.
func cacheKey(query string, filters map[string]any) string {
	h := sha256.New()
	h.Write([]byte(query))
	if len(filters) > 0 {
		h.Write([]byte{0})
		if raw, err := json.Marshal(filters); err == nil {
			h.Write(raw)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// responseCache is a fixed-size FIFO cache of assembled responses.
// Overwriting a key keeps its eviction slot. Entries are copied on both
// put and get so callers and the cache never share a Response value.
type responseCache struct {
	mu      sync.Mutex
	max     int
	entries *orderedmap.OrderedMap[string, *Response]
}

func newResponseCache(max int) *responseCache {
	return &responseCache{
		max:     max,
		entries: orderedmap.New[string, *Response](),
	}
}

func (c *responseCache) get(key string) (*Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cached, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	cp := *cached
	return &cp, true
}

func (c *responseCache) put(key string, resp *Response) {
	if c.max <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries.Get(key); !exists {
		for c.entries.Len() >= c.max {
			oldest := c.entries.Oldest()
			if oldest == nil {
				break
			}
			c.entries.Delete(oldest.Key)
		}
	}
	cp := *resp
	c.entries.Set(key, &cp)
}

func (c *responseCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = orderedmap.New[string, *Response]()
}

func (c *responseCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}
