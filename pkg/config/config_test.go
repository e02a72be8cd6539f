package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultValidates(t *testing.T) {
	t.Parallel()

	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default() does not validate: %v", err)
	}

	if cfg.Chunking.MaxChunkTokens != 512 {
		t.Errorf("MaxChunkTokens = %d, want 512", cfg.Chunking.MaxChunkTokens)
	}
	if cfg.Chunking.ChunkOverlap != 50 {
		t.Errorf("ChunkOverlap = %d, want 50", cfg.Chunking.ChunkOverlap)
	}
	if cfg.Chunking.MinChunkTokens != 100 {
		t.Errorf("MinChunkTokens = %d, want 100", cfg.Chunking.MinChunkTokens)
	}
	if cfg.Entity.FuzzyThreshold != 0.8 || cfg.Entity.PartialThreshold != 0.6 {
		t.Errorf("thresholds = %v/%v, want 0.8/0.6",
			cfg.Entity.FuzzyThreshold, cfg.Entity.PartialThreshold)
	}
	if cfg.RAG.TopK != 10 {
		t.Errorf("TopK = %d, want 10", cfg.RAG.TopK)
	}
	if cfg.VectorStore.Backend != "memory" {
		t.Errorf("Backend = %q, want memory", cfg.VectorStore.Backend)
	}
}

func TestLoadAppliesYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "filigree.yaml")
	doc := `
chunking:
  max_chunk_tokens: 256
  chunk_overlap: 25
vector_store:
  backend: qdrant
  qdrant_addr: localhost:6334
rag:
  query_timeout: 10s
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Chunking.MaxChunkTokens != 256 {
		t.Errorf("MaxChunkTokens = %d, want 256", cfg.Chunking.MaxChunkTokens)
	}
	if cfg.Chunking.ChunkOverlap != 25 {
		t.Errorf("ChunkOverlap = %d, want 25", cfg.Chunking.ChunkOverlap)
	}
	// Untouched keys keep their defaults.
	if cfg.Chunking.MinChunkTokens != 100 {
		t.Errorf("MinChunkTokens = %d, want default 100", cfg.Chunking.MinChunkTokens)
	}
	if cfg.VectorStore.Backend != "qdrant" {
		t.Errorf("Backend = %q, want qdrant", cfg.VectorStore.Backend)
	}
	if cfg.VectorStore.QdrantAddr != "localhost:6334" {
		t.Errorf("QdrantAddr = %q", cfg.VectorStore.QdrantAddr)
	}
	if cfg.RAG.QueryTimeout != 10*time.Second {
		t.Errorf("QueryTimeout = %v, want 10s", cfg.RAG.QueryTimeout)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filigree.yaml")
	doc := "rag:\n  top_k: 5\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("FILIGREE_RAG_TOP_K", "7")
	t.Setenv("FILIGREE_VECTOR_BACKEND", "pgvector")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.RAG.TopK != 7 {
		t.Errorf("TopK = %d, want env override 7", cfg.RAG.TopK)
	}
	if cfg.VectorStore.Backend != "pgvector" {
		t.Errorf("Backend = %q, want env override pgvector", cfg.VectorStore.Backend)
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load() with missing explicit path succeeded, want error")
	}
}

func TestValidateRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{
			name:    "non positive chunk size",
			mutate:  func(c *Config) { c.Chunking.MaxChunkTokens = 0 },
			wantMsg: "max_chunk_tokens",
		},
		{
			name:    "negative overlap",
			mutate:  func(c *Config) { c.Chunking.ChunkOverlap = -1 },
			wantMsg: "chunk_overlap",
		},
		{
			name:    "min above max",
			mutate:  func(c *Config) { c.Chunking.MinChunkTokens = 600 },
			wantMsg: "min_chunk_tokens",
		},
		{
			name:    "unknown vector backend",
			mutate:  func(c *Config) { c.VectorStore.Backend = "chroma" },
			wantMsg: "unknown backend",
		},
		{
			name:    "unknown metric",
			mutate:  func(c *Config) { c.VectorStore.Metric = "dot" },
			wantMsg: "metric",
		},
		{
			name:    "partial above fuzzy",
			mutate:  func(c *Config) { c.Entity.PartialThreshold = 0.9 },
			wantMsg: "partial_threshold",
		},
		{
			name:    "threshold out of range",
			mutate:  func(c *Config) { c.Entity.FuzzyThreshold = 1.5 },
			wantMsg: "fuzzy_threshold",
		},
		{
			name:    "non positive top k",
			mutate:  func(c *Config) { c.RAG.TopK = 0 },
			wantMsg: "top_k",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantMsg: "log level",
		},
		{
			name:    "unknown log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantMsg: "format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestEnvGetters(t *testing.T) {
	t.Setenv("FILIGREE_TEST_STR", "hello")
	t.Setenv("FILIGREE_TEST_INT", "42")
	t.Setenv("FILIGREE_TEST_FLOAT", "0.75")
	t.Setenv("FILIGREE_TEST_BOOL", "true")
	t.Setenv("FILIGREE_TEST_DUR", "90s")
	t.Setenv("FILIGREE_TEST_BAD_INT", "not-a-number")

	if got := GetStringFromEnv("FILIGREE_TEST_STR", "fallback"); got != "hello" {
		t.Errorf("GetStringFromEnv = %q, want hello", got)
	}
	if got := GetStringFromEnv("FILIGREE_TEST_UNSET", "fallback"); got != "fallback" {
		t.Errorf("GetStringFromEnv unset = %q, want fallback", got)
	}
	if got := GetIntFromEnv("FILIGREE_TEST_INT", 1); got != 42 {
		t.Errorf("GetIntFromEnv = %d, want 42", got)
	}
	if got := GetIntFromEnv("FILIGREE_TEST_BAD_INT", 7); got != 7 {
		t.Errorf("GetIntFromEnv invalid = %d, want default 7", got)
	}
	if got := GetFloatFromEnv("FILIGREE_TEST_FLOAT", 0); got != 0.75 {
		t.Errorf("GetFloatFromEnv = %v, want 0.75", got)
	}
	if got := GetBoolFromEnv("FILIGREE_TEST_BOOL", false); !got {
		t.Error("GetBoolFromEnv = false, want true")
	}
	if got := GetDurationFromEnv("FILIGREE_TEST_DUR", time.Second); got != 90*time.Second {
		t.Errorf("GetDurationFromEnv = %v, want 90s", got)
	}
}
