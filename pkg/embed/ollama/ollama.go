// Package ollama provides an embedding client backed by a local or remote
// Ollama server.
//
// Example usage:
//
//	client, err := ollama.New("nomic-embed-text")
//	if err != nil {
//		log.Fatal(err)
//	}
//	vectors, err := client.Embed(ctx, []string{"CFTC swap summary"})
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
	"golang.org/x/time/rate"

	"github.com/filigree-ai/go-filigree/pkg/embed"
)

// Client implements the embed.Client interface for Ollama.
//
// Requires an Ollama server with the embedding model pulled. Use
// 'ollama pull nomic-embed-text' to fetch the default model.
type Client struct {
	client    *api.Client
	model     string
	dimension int
	truncate  *bool
	limiter   *rate.Limiter
}

var _ embed.Client = (*Client)(nil)

// Config holds Ollama-specific configuration.
type Config struct {
	// Optional. Ollama server URL, e.g. "http://192.168.1.100:11434".
	// Empty uses the OLLAMA_HOST environment default
	Host string

	// Optional. Vector width of the model. Defaults to 768, the width of
	// nomic-embed-text
	Dimension int

	// Optional. Ask the server to truncate inputs that exceed the model's
	// context window instead of erroring
	Truncate *bool

	// Optional. Client-side request pacing. Zero disables the limiter
	RequestsPerMinute int
}

// Option interface for functional options pattern
type Option interface {
	Apply(*Config)
}

// configOption implements Option
type configOption struct {
	config *Config
}

func (o configOption) Apply(cfg *Config) {
	if o.config == nil {
		return
	}
	if o.config.Host != "" {
		cfg.Host = o.config.Host
	}
	if o.config.Dimension != 0 {
		cfg.Dimension = o.config.Dimension
	}
	if o.config.Truncate != nil {
		cfg.Truncate = o.config.Truncate
	}
	if o.config.RequestsPerMinute != 0 {
		cfg.RequestsPerMinute = o.config.RequestsPerMinute
	}
}

// WithConfig sets custom Ollama configuration.
//
// Example:
//
//	cfg := &ollama.Config{Host: "http://remote:11434", Dimension: 1024}
//	client, _ := ollama.New("mxbai-embed-large", ollama.WithConfig(cfg))
func WithConfig(cfg *Config) Option {
	return configOption{config: cfg}
}

// DefaultConfig returns sensible defaults for Ollama embeddings.
func DefaultConfig() *Config {
	return &Config{
		Host:      "", // Will use ClientFromEnvironment() default
		Dimension: 768,
	}
}

// New creates an Ollama embedding client.
//
// Input: model name string, optional config Options
// Output: *Client, error
// Behavior: Initializes HTTP client for Ollama server
//
// Requires Ollama server running with specified model available.
//
// Example:
//
//	client, err := ollama.New("nomic-embed-text")
//	if err != nil { log.Fatal(err) }
func New(model string, opts ...Option) (*Client, error) {
	if model == "" {
		model = "nomic-embed-text" // Default model
	}

	cfg := DefaultConfig()
	for _, opt := range opts {
		opt.Apply(cfg)
	}

	var client *api.Client
	if cfg.Host == "" {
		// Use environment-based client (checks OLLAMA_HOST env var)
		var err error
		client, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("failed to create client from environment: %w", err)
		}
	} else {
		u, err := url.Parse(cfg.Host)
		if err != nil {
			return nil, fmt.Errorf("invalid host URL: %w", err)
		}
		client = api.NewClient(u, http.DefaultClient)
	}

	dimension := cfg.Dimension
	if dimension <= 0 {
		dimension = 768
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1)
	}

	return &Client{
		client:    client,
		model:     model,
		dimension: dimension,
		truncate:  cfg.Truncate,
		limiter:   limiter,
	}, nil
}

// Embed generates embeddings for the given texts, preserving input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req := &api.EmbedRequest{
		Model: c.model,
		Input: texts,
	}
	if c.truncate != nil {
		req.Truncate = c.truncate
	}

	resp, err := c.client.Embed(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}

// Dimension returns the vector width this client produces.
func (c *Client) Dimension() int { return c.dimension }

// Model returns the embedding model name.
func (c *Client) Model() string { return c.model }
