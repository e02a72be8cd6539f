// Package openai provides an embedding client backed by OpenAI's
// Embeddings API.
//
// Example usage:
//
//	client, err := openai.New("text-embedding-3-small")
//	if err != nil {
//		log.Fatal(err)
//	}
//	vectors, err := client.Embed(ctx, []string{"10-K risk factors"})
package openai

import (
	"context"
	"fmt"
	"os"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"golang.org/x/time/rate"

	"github.com/filigree-ai/go-filigree/pkg/embed"
)

// modelDimensions maps known embedding models to their vector widths.
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// Client implements the embed.Client interface for OpenAI.
//
// Example:
//
//	client, _ := openai.New("text-embedding-3-small")
//	cached, _ := embed.NewCachedClient(ctx, client, nil)
type Client struct {
	client    *openai.Client
	model     string
	dimension int
	reduced   bool
	limiter   *rate.Limiter
}

var _ embed.Client = (*Client)(nil)

// Config holds OpenAI-specific configuration.
//
// All fields are optional when OPENAI_API_KEY is set in the environment.
type Config struct {
	// Required. API key for OpenAI authentication
	APIKey string

	// Optional. Base URL for OpenAI API (defaults to official OpenAI API)
	BaseURL string

	// Optional. Organization ID for OpenAI API requests
	OrgID string

	// Optional. Vector width override. For text-embedding-3 models this is
	// also sent with each request, so the API returns reduced vectors
	Dimensions *int

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
	if o.config.APIKey != "" {
		cfg.APIKey = o.config.APIKey
	}
	if o.config.BaseURL != "" {
		cfg.BaseURL = o.config.BaseURL
	}
	if o.config.OrgID != "" {
		cfg.OrgID = o.config.OrgID
	}
	if o.config.Dimensions != nil {
		cfg.Dimensions = o.config.Dimensions
	}
	if o.config.RequestsPerMinute != 0 {
		cfg.RequestsPerMinute = o.config.RequestsPerMinute
	}
}

// WithConfig sets custom OpenAI configuration.
//
// Input: *Config with OpenAI settings
// Output: Option for client creation
// Behavior: Non-zero fields override defaults
//
// Example:
//
//	cfg := &openai.Config{RequestsPerMinute: 120}
//	client, _ := openai.New("text-embedding-3-small", openai.WithConfig(cfg))
func WithConfig(cfg *Config) Option {
	return configOption{config: cfg}
}

// DefaultConfig returns sensible defaults for OpenAI embeddings.
//
// Input: none
// Output: *Config with default settings
// Behavior: Creates config with OPENAI_API_KEY from env
func DefaultConfig() *Config {
	return &Config{
		APIKey: os.Getenv("OPENAI_API_KEY"),
	}
}

// New creates an OpenAI embedding client.
//
// Input: model name string, optional config Options
// Output: *Client, error
// Behavior: Initializes authenticated OpenAI client; the vector width
// comes from the built-in model table unless Config.Dimensions overrides
// it (unknown models default to 1536)
//
// Requires OPENAI_API_KEY environment variable or config.APIKey.
//
// Example:
//
//	client, err := openai.New("text-embedding-3-large")
//	if err != nil { log.Fatal(err) }
func New(model string, opts ...Option) (*Client, error) {
	if model == "" {
		return nil, fmt.Errorf("model name is required")
	}

	cfg := DefaultConfig()
	for _, opt := range opts {
		opt.Apply(cfg)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set or provided in config")
	}

	clientOptions := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		clientOptions = append(clientOptions, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.OrgID != "" {
		clientOptions = append(clientOptions, option.WithOrganization(cfg.OrgID))
	}

	dimension := modelDimensions[model]
	reduced := false
	if cfg.Dimensions != nil && *cfg.Dimensions > 0 {
		dimension = *cfg.Dimensions
		reduced = true
	}
	if dimension == 0 {
		dimension = 1536
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1)
	}

	openaiClient := openai.NewClient(clientOptions...)

	return &Client{
		client:    &openaiClient,
		model:     model,
		dimension: dimension,
		reduced:   reduced,
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

	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		Model: openai.EmbeddingModel(c.model),
	}
	if c.reduced {
		params.Dimensions = openai.Int(int64(c.dimension))
	}

	resp, err := c.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		// Convert []float64 to []float32
		vec := make([]float32, len(data.Embedding))
		for j, v := range data.Embedding {
			vec[j] = float32(v)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// Dimension returns the vector width this client produces.
func (c *Client) Dimension() int { return c.dimension }

// Model returns the embedding model name.
func (c *Client) Model() string { return c.model }
