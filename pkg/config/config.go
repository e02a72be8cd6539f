// Package config loads toolkit configuration from YAML files, .env files
// and environment variables, in that order of increasing precedence, and
// validates the result before any component is constructed.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"

	"github.com/filigree-ai/go-filigree/pkg/filigree"
)

// Config is the root configuration for the toolkit.
type Config struct {
	Chunking    ChunkingConfig    `yaml:"chunking"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Entity      EntityConfig      `yaml:"entity"`
	RAG         RAGConfig         `yaml:"rag"`
	LLM         LLMConfig         `yaml:"llm"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ChunkingConfig controls document splitting. Sizes are in tokens.
type ChunkingConfig struct {
	MaxChunkTokens int `yaml:"max_chunk_tokens"`
	ChunkOverlap   int `yaml:"chunk_overlap"`
	MinChunkTokens int `yaml:"min_chunk_tokens"`
}

// EmbeddingConfig controls the embedding client and its cache.
type EmbeddingConfig struct {
	Provider          string        `yaml:"provider"`
	Model             string        `yaml:"model"`
	Dimension         int           `yaml:"dimension"`
	BatchSize         int           `yaml:"batch_size"`
	CacheCapacity     int           `yaml:"cache_capacity"`
	CacheTTL          time.Duration `yaml:"cache_ttl"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
}

// VectorStoreConfig selects and configures the vector backend.
type VectorStoreConfig struct {
	Backend     string `yaml:"backend"`
	Metric      string `yaml:"metric"`
	SnapshotDir string `yaml:"snapshot_dir"`
	PostgresDSN string `yaml:"postgres_dsn"`
	QdrantAddr  string `yaml:"qdrant_addr"`
}

// EntityConfig configures the entity registry and resolution thresholds.
type EntityConfig struct {
	DatabasePath     string  `yaml:"database_path"`
	PostgresDSN      string  `yaml:"postgres_dsn"`
	Neo4jURI         string  `yaml:"neo4j_uri"`
	Neo4jUser        string  `yaml:"neo4j_user"`
	Neo4jPassword    string  `yaml:"neo4j_password"`
	FuzzyThreshold   float64 `yaml:"fuzzy_threshold"`
	PartialThreshold float64 `yaml:"partial_threshold"`
}

// RAGConfig controls query orchestration.
type RAGConfig struct {
	TopK            int           `yaml:"top_k"`
	MaxContextChars int           `yaml:"max_context_chars"`
	QueryCacheSize  int           `yaml:"query_cache_size"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
}

// LLMConfig selects the generation backend.
type LLMConfig struct {
	Provider string        `yaml:"provider"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Chunking: ChunkingConfig{
			MaxChunkTokens: 512,
			ChunkOverlap:   50,
			MinChunkTokens: 100,
		},
		Embedding: EmbeddingConfig{
			Provider:      "ollama",
			Model:         "nomic-embed-text",
			Dimension:     768,
			BatchSize:     32,
			CacheCapacity: 10000,
			CacheTTL:      24 * time.Hour,
		},
		VectorStore: VectorStoreConfig{
			Backend: "memory",
			Metric:  "cosine",
		},
		Entity: EntityConfig{
			DatabasePath:     "filigree.db",
			FuzzyThreshold:   0.8,
			PartialThreshold: 0.6,
		},
		RAG: RAGConfig{
			TopK:            10,
			MaxContextChars: 4000,
			QueryCacheSize:  100,
			QueryTimeout:    30 * time.Second,
		},
		LLM: LLMConfig{
			Provider: "ollama",
			Model:    "llama3.1",
			Timeout:  60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds a Config from defaults, an optional YAML file and the
// process environment.
//
// Input: path to a YAML config file, or "" to skip the file layer
// Output: validated *Config
// Behavior: defaults are applied first, then the YAML file, then a .env
// file in the working directory if one exists, then environment variables.
// Later layers win. Load fails if the file is unreadable, the YAML is
// malformed or the merged result does not validate.
//
// Example:
//
//	cfg, err := config.Load("filigree.yaml")
//	if err != nil {
//	    return err
//	}
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, filigree.WrapErrorf(err, "reading config file %q", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, filigree.WrapErrorf(err, "parsing config file %q", path)
		}
	}

	// Best effort; a missing .env file is the normal case.
	_ = godotenv.Load()

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays FILIGREE_* environment variables plus the provider
// conventions OPENAI_API_KEY and OLLAMA_HOST respected by the provider
// clients themselves.
func (c *Config) applyEnv() {
	c.Chunking.MaxChunkTokens = GetIntFromEnv("FILIGREE_MAX_CHUNK_TOKENS", c.Chunking.MaxChunkTokens)
	c.Chunking.ChunkOverlap = GetIntFromEnv("FILIGREE_CHUNK_OVERLAP", c.Chunking.ChunkOverlap)
	c.Chunking.MinChunkTokens = GetIntFromEnv("FILIGREE_MIN_CHUNK_TOKENS", c.Chunking.MinChunkTokens)

	c.Embedding.Provider = GetStringFromEnv("FILIGREE_EMBED_PROVIDER", c.Embedding.Provider)
	c.Embedding.Model = GetStringFromEnv("FILIGREE_EMBED_MODEL", c.Embedding.Model)
	c.Embedding.Dimension = GetIntFromEnv("FILIGREE_EMBED_DIMENSION", c.Embedding.Dimension)
	c.Embedding.BatchSize = GetIntFromEnv("FILIGREE_EMBED_BATCH_SIZE", c.Embedding.BatchSize)
	c.Embedding.CacheCapacity = GetIntFromEnv("FILIGREE_EMBED_CACHE_CAPACITY", c.Embedding.CacheCapacity)
	c.Embedding.CacheTTL = GetDurationFromEnv("FILIGREE_EMBED_CACHE_TTL", c.Embedding.CacheTTL)
	c.Embedding.RequestsPerMinute = GetIntFromEnv("FILIGREE_EMBED_RPM", c.Embedding.RequestsPerMinute)

	c.VectorStore.Backend = GetStringFromEnv("FILIGREE_VECTOR_BACKEND", c.VectorStore.Backend)
	c.VectorStore.Metric = GetStringFromEnv("FILIGREE_VECTOR_METRIC", c.VectorStore.Metric)
	c.VectorStore.SnapshotDir = GetStringFromEnv("FILIGREE_SNAPSHOT_DIR", c.VectorStore.SnapshotDir)
	c.VectorStore.PostgresDSN = GetStringFromEnv("FILIGREE_PG_DSN", c.VectorStore.PostgresDSN)
	c.VectorStore.QdrantAddr = GetStringFromEnv("FILIGREE_QDRANT_ADDR", c.VectorStore.QdrantAddr)

	c.Entity.DatabasePath = GetStringFromEnv("FILIGREE_ENTITY_DB", c.Entity.DatabasePath)
	c.Entity.PostgresDSN = GetStringFromEnv("FILIGREE_ENTITY_PG_DSN", c.Entity.PostgresDSN)
	c.Entity.Neo4jURI = GetStringFromEnv("FILIGREE_NEO4J_URI", c.Entity.Neo4jURI)
	c.Entity.Neo4jUser = GetStringFromEnv("FILIGREE_NEO4J_USER", c.Entity.Neo4jUser)
	c.Entity.Neo4jPassword = GetStringFromEnv("FILIGREE_NEO4J_PASSWORD", c.Entity.Neo4jPassword)
	c.Entity.FuzzyThreshold = GetFloatFromEnv("FILIGREE_FUZZY_THRESHOLD", c.Entity.FuzzyThreshold)
	c.Entity.PartialThreshold = GetFloatFromEnv("FILIGREE_PARTIAL_THRESHOLD", c.Entity.PartialThreshold)

	c.RAG.TopK = GetIntFromEnv("FILIGREE_RAG_TOP_K", c.RAG.TopK)
	c.RAG.MaxContextChars = GetIntFromEnv("FILIGREE_RAG_MAX_CONTEXT", c.RAG.MaxContextChars)
	c.RAG.QueryCacheSize = GetIntFromEnv("FILIGREE_RAG_CACHE_SIZE", c.RAG.QueryCacheSize)
	c.RAG.QueryTimeout = GetDurationFromEnv("FILIGREE_RAG_TIMEOUT", c.RAG.QueryTimeout)

	c.LLM.Provider = GetStringFromEnv("FILIGREE_LLM_PROVIDER", c.LLM.Provider)
	c.LLM.Model = GetStringFromEnv("FILIGREE_LLM_MODEL", c.LLM.Model)
	c.LLM.Timeout = GetDurationFromEnv("FILIGREE_LLM_TIMEOUT", c.LLM.Timeout)

	c.Logging.Level = GetStringFromEnv("FILIGREE_LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = GetStringFromEnv("FILIGREE_LOG_FORMAT", c.Logging.Format)
}

// Validate checks the merged configuration for values no component can
// run with. Soft problems, like an overlap that leaves no forward
// progress, are repaired by the component that owns them rather than
// rejected here.
func (c *Config) Validate() error {
	var errs []error

	if c.Chunking.MaxChunkTokens <= 0 {
		errs = append(errs, fmt.Errorf("chunking: max_chunk_tokens must be positive, got %d", c.Chunking.MaxChunkTokens))
	}
	if c.Chunking.ChunkOverlap < 0 {
		errs = append(errs, fmt.Errorf("chunking: chunk_overlap must not be negative, got %d", c.Chunking.ChunkOverlap))
	}
	if c.Chunking.MinChunkTokens <= 0 {
		errs = append(errs, fmt.Errorf("chunking: min_chunk_tokens must be positive, got %d", c.Chunking.MinChunkTokens))
	}
	if c.Chunking.MinChunkTokens > c.Chunking.MaxChunkTokens {
		errs = append(errs, fmt.Errorf("chunking: min_chunk_tokens %d exceeds max_chunk_tokens %d",
			c.Chunking.MinChunkTokens, c.Chunking.MaxChunkTokens))
	}

	if c.Embedding.Dimension <= 0 {
		errs = append(errs, fmt.Errorf("embedding: dimension must be positive, got %d", c.Embedding.Dimension))
	}
	if c.Embedding.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("embedding: batch_size must be positive, got %d", c.Embedding.BatchSize))
	}
	if c.Embedding.CacheCapacity < 0 {
		errs = append(errs, fmt.Errorf("embedding: cache_capacity must not be negative, got %d", c.Embedding.CacheCapacity))
	}
	if c.Embedding.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("embedding: requests_per_minute must not be negative, got %d", c.Embedding.RequestsPerMinute))
	}

	switch c.VectorStore.Backend {
	case "memory", "pgvector", "qdrant":
	default:
		errs = append(errs, fmt.Errorf("vector_store: unknown backend %q", c.VectorStore.Backend))
	}
	if _, err := filigree.ParseMetric(c.VectorStore.Metric); err != nil {
		errs = append(errs, filigree.WrapError(err, "vector_store"))
	}

	if c.Entity.FuzzyThreshold < 0 || c.Entity.FuzzyThreshold > 1 {
		errs = append(errs, fmt.Errorf("entity: fuzzy_threshold must be in [0,1], got %v", c.Entity.FuzzyThreshold))
	}
	if c.Entity.PartialThreshold < 0 || c.Entity.PartialThreshold > 1 {
		errs = append(errs, fmt.Errorf("entity: partial_threshold must be in [0,1], got %v", c.Entity.PartialThreshold))
	}
	if c.Entity.PartialThreshold > c.Entity.FuzzyThreshold {
		errs = append(errs, fmt.Errorf("entity: partial_threshold %v exceeds fuzzy_threshold %v",
			c.Entity.PartialThreshold, c.Entity.FuzzyThreshold))
	}

	if c.RAG.TopK <= 0 {
		errs = append(errs, fmt.Errorf("rag: top_k must be positive, got %d", c.RAG.TopK))
	}
	if c.RAG.MaxContextChars <= 0 {
		errs = append(errs, fmt.Errorf("rag: max_context_chars must be positive, got %d", c.RAG.MaxContextChars))
	}
	if c.RAG.QueryCacheSize < 0 {
		errs = append(errs, fmt.Errorf("rag: query_cache_size must not be negative, got %d", c.RAG.QueryCacheSize))
	}

	if _, err := logLevel(c.Logging.Level); err != nil {
		errs = append(errs, filigree.WrapError(err, "logging"))
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging: unknown format %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}
