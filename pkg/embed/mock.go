package embed

import (
	"context"
	"crypto/sha256"
	"errors"
	"sync/atomic"
)

// MockClient is a configurable mock implementation of Client for testing.
// Vectors are derived from the text, so the same input always embeds to
// the same output.
type MockClient struct {
	embedFunc func(ctx context.Context, texts []string) ([][]float32, error)
	dimension int
	model     string
	calls     atomic.Int64
}

var _ Client = (*MockClient)(nil)

// NewMockClient creates a mock that returns deterministic vectors of the
// given dimension.
func NewMockClient(dimension int) *MockClient {
	m := &MockClient{
		dimension: dimension,
		model:     "mock-embed",
	}
	m.embedFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		vectors := make([][]float32, len(texts))
		for i, text := range texts {
			vectors[i] = deterministicVector(text, m.dimension)
		}
		return vectors, nil
	}
	return m
}

// NewMockClientWithError creates a mock whose Embed always fails with the
// given message.
func NewMockClientWithError(message string) *MockClient {
	m := &MockClient{
		dimension: 8,
		model:     "mock-embed",
	}
	m.embedFunc = func(context.Context, []string) ([][]float32, error) {
		return nil, errors.New(message)
	}
	return m
}

// WithEmbedFunc replaces the embedding behavior.
func (m *MockClient) WithEmbedFunc(fn func(ctx context.Context, texts []string) ([][]float32, error)) *MockClient {
	m.embedFunc = fn
	return m
}

// WithModel overrides the reported model name.
func (m *MockClient) WithModel(model string) *MockClient {
	m.model = model
	return m
}

// Embed returns one vector per text via the configured function.
func (m *MockClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.calls.Add(1)
	return m.embedFunc(ctx, texts)
}

// Dimension returns the configured vector width.
func (m *MockClient) Dimension() int { return m.dimension }

// Model returns the configured model name.
func (m *MockClient) Model() string { return m.model }

// Calls reports how many times Embed was invoked.
func (m *MockClient) Calls() int64 { return m.calls.Load() }

// deterministicVector hashes text into a repeatable unit-range vector.
func deterministicVector(text string, dimension int) []float32 {
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, dimension)
	for i := range vec {
		vec[i] = float32(sum[i%len(sum)]) / 255
	}
	return vec
}
