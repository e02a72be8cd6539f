// Package vectorstore provides the vector search layer: an in-memory
// dual-mode index over named collections with gob snapshots, remote
// document-store backends (pgvector, qdrant) behind the same port, and a
// manager that provisions the standard regulatory collections.
//
// Document mode stores text chunks with metadata and upserts by id; vector
// mode is a flat append-only index for pure numeric data. Cosine
// collections L2-normalize vectors at insert and at query time, so inner
// products are cosine similarities; skipping either normalization would
// make every score meaningless.
package vectorstore

import "context"

// Document is one unit written to a document-mode collection.
//
// Embedding is optional; when absent the index embeds Content through the
// configured embedder. Writing an id that already exists replaces that
// id's content, metadata and embedding.
type Document struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Embedding []float32      `json:"embedding,omitempty"`
}

// DocumentHit is one ranked result from a document-mode query. Distance is
// the raw metric distance (lower is closer); convert to a similarity with
// the collection metric's Similarity method.
type DocumentHit struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Distance float64        `json:"distance"`
}

// Query describes one document-mode search. When Embedding is set it is
// used directly; otherwise Text is embedded first. K defaults to 10.
// Filter keys must all match the stored metadata for a document to be
// considered.
type Query struct {
	Text      string         `json:"text,omitempty"`
	Embedding []float32      `json:"embedding,omitempty"`
	K         int            `json:"k,omitempty"`
	Filter    map[string]any `json:"filter,omitempty"`
}

// Embedder turns texts into vectors. *embed.CachedClient and the provider
// clients in pkg/embed satisfy it.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// DocumentStore is the document-mode port shared by the in-memory Index
// and the remote pgvector and qdrant backends.
type DocumentStore interface {
	AddDocuments(ctx context.Context, collection string, docs []Document) error
	QueryDocuments(ctx context.Context, collection string, q Query) ([]DocumentHit, error)
	Close() error
}

// CollectionKind distinguishes document collections from flat vector
// collections.
type CollectionKind string

// Collection kinds.
const (
	KindDocument CollectionKind = "document"
	KindVector   CollectionKind = "vector"
)
