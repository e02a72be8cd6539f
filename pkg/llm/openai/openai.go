// Package openai provides a generation client backed by OpenAI's chat
// completions API.
//
// Example usage:
//
//	client, err := openai.New("gpt-4o-mini")
//	if err != nil {
//		log.Fatal(err)
//	}
//	answer, err := client.Generate(ctx, prompt)
package openai

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"golang.org/x/time/rate"

	"github.com/filigree-ai/go-filigree/pkg/llm"
)

// Client implements the llm.Client interface for OpenAI.
type Client struct {
	client      *openai.Client
	model       string
	temperature *float64
	maxTokens   *int
	limiter     *rate.Limiter
}

var _ llm.Client = (*Client)(nil)

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

	// Optional. Sampling temperature, 0 to 2. Nil uses the server default
	Temperature *float64

	// Optional. Completion token ceiling. Nil uses the server default
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
	if o.config.APIKey != "" {
		cfg.APIKey = o.config.APIKey
	}
	if o.config.BaseURL != "" {
		cfg.BaseURL = o.config.BaseURL
	}
	if o.config.OrgID != "" {
		cfg.OrgID = o.config.OrgID
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

// WithConfig sets custom OpenAI configuration.
//
// Example:
//
//	cfg := &openai.Config{Temperature: helpers.PtrOf(0.2)}
//	client, _ := openai.New("gpt-4o-mini", openai.WithConfig(cfg))
func WithConfig(cfg *Config) Option {
	return configOption{config: cfg}
}

// DefaultConfig returns sensible defaults for OpenAI generation.
func DefaultConfig() *Config {
	return &Config{
		APIKey: os.Getenv("OPENAI_API_KEY"),
	}
}

// New creates an OpenAI generation client.
//
// Requires OPENAI_API_KEY environment variable or config.APIKey.
//
// Example:
//
//	client, err := openai.New("gpt-4o-mini")
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

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1)
	}

	openaiClient := openai.NewClient(clientOptions...)

	return &Client{
		client:      &openaiClient,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		limiter:     limiter,
	}, nil
}

// Generate sends the prompt as a single user message and returns the
// first choice's content.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("prompt is required")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}
	if c.temperature != nil {
		params.Temperature = openai.Float(*c.temperature)
	}
	if c.maxTokens != nil {
		params.MaxCompletionTokens = openai.Int(int64(*c.maxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// Model returns the generation model name.
func (c *Client) Model() string { return c.model }
