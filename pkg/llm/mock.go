package llm

import (
	"context"
	"errors"
	"sync"
)

// MockClient is a configurable mock implementation of Client for testing.
// Prompts are recorded so tests can assert on what was sent.
type MockClient struct {
	generateFunc func(ctx context.Context, prompt string) (string, error)
	model        string

	mu      sync.Mutex
	prompts []string
}

var _ Client = (*MockClient)(nil)

// NewMockClient creates a mock that answers every prompt with the given
// response.
func NewMockClient(response string) *MockClient {
	return &MockClient{
		model: "mock-llm",
		generateFunc: func(context.Context, string) (string, error) {
			return response, nil
		},
	}
}

// NewMockClientWithError creates a mock whose Generate always fails with
// the given message.
func NewMockClientWithError(message string) *MockClient {
	return &MockClient{
		model: "mock-llm",
		generateFunc: func(context.Context, string) (string, error) {
			return "", errors.New(message)
		},
	}
}

// WithGenerateFunc replaces the generation behavior.
func (m *MockClient) WithGenerateFunc(fn func(ctx context.Context, prompt string) (string, error)) *MockClient {
	m.generateFunc = fn
	return m
}

// WithModel overrides the reported model name.
func (m *MockClient) WithModel(model string) *MockClient {
	m.model = model
	return m
}

// Generate records the prompt and returns the configured response.
func (m *MockClient) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
	return m.generateFunc(ctx, prompt)
}

// Model returns the configured model name.
func (m *MockClient) Model() string { return m.model }

// Calls reports how many times Generate was invoked.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// LastPrompt returns the most recent prompt, or "" before the first call.
func (m *MockClient) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}
