// Package ollama provides a generation client backed by a local or remote
// Ollama server.
//
// Example usage:
//
//	client, err := ollama.New("llama3.2")
//	if err != nil {
//		log.Fatal(err)
//	}
//	answer, err := client.Generate(ctx, prompt)
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
	"golang.org/x/time/rate"

	"github.com/filigree-ai/go-filigree/pkg/llm"
)

// Client implements the llm.Client interface for Ollama.
//
// Requires an Ollama server with the model pulled. Use
// 'ollama pull llama3.2' to fetch the default model.
type Client struct {
	client      *api.Client
	model       string
	temperature *float64
	maxTokens   *int
	limiter     *rate.Limiter
}

var _ llm.Client = (*Client)(nil)

// Config holds Ollama-specific configuration.
type Config struct {
	// Optional. Ollama server URL, e.g. "http://192.168.1.100:11434".
	// Empty uses the OLLAMA_HOST environment default
	Host string

	// Optional. Sampling temperature. Nil uses the model default
	Temperature *float64

	// Optional. Completion token ceiling (num_predict). Nil uses the
	// model default
	MaxTokens *int

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
	if o.config.Temperature != nil {
		cfg.Temperature = o.config.Temperature
	}
	if o.config.MaxTokens != nil {
		cfg.MaxTokens = o.config.MaxTokens
	}
	if o.config.RequestsPerMinute != 0 {
		cfg.RequestsPerMinute = o.config.RequestsPerMinute
	}
}

// WithConfig sets custom Ollama configuration.
//
// Example:
//
//	cfg := &ollama.Config{Host: "http://remote:11434"}
//	client, _ := ollama.New("mistral", ollama.WithConfig(cfg))
func WithConfig(cfg *Config) Option {
	return configOption{config: cfg}
}

// DefaultConfig returns sensible defaults for Ollama generation.
func DefaultConfig() *Config {
	return &Config{
		Host: "", // Will use ClientFromEnvironment() default
	}
}

// New creates an Ollama generation client.
//
// Requires Ollama server running with specified model available.
//
// Example:
//
//	client, err := ollama.New("llama3.2")
//	if err != nil { log.Fatal(err) }
func New(model string, opts ...Option) (*Client, error) {
	if model == "" {
		model = "llama3.2" // Default model
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

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1)
	}

	return &Client{
		client:      client,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		limiter:     limiter,
	}, nil
}

// Generate sends the prompt as a single user message and returns the
// complete response.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("prompt is required")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	stream := false
	req := &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{
			{Role: "user", Content: prompt},
		},
		Stream:  &stream,
		Options: make(map[string]any),
	}
	if c.temperature != nil {
		req.Options["temperature"] = *c.temperature
	}
	if c.maxTokens != nil {
		req.Options["num_predict"] = *c.maxTokens
	}

	var sb strings.Builder
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate response: %w", err)
	}
	return sb.String(), nil
}

// Model returns the generation model name.
func (c *Client) Model() string { return c.model }
