// Package embed provides the embedding capability behind vector search and
// a persistent, model-scoped embedding cache.
//
// Providers live in subpackages (openai, ollama) and implement Client; the
// CachedClient wraps any provider with text normalization, token-budget
// truncation, and a write-through cache persisted via pkg/kv.
package embed

import "context"

// Client generates embeddings for batches of text.
//
// Embed returns one vector per input text, in input order. Dimension
// reports the provider's vector width, which callers rely on for
// fallback vectors and collection schemas. Model names the underlying
// embedding model and scopes cache keys.
type Client interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Model() string
}
