// Package llm defines the text-generation capability behind answer
// synthesis. Providers live in subpackages: llm/openai for the OpenAI
// chat completions API and llm/ollama for local models through an Ollama
// server. MockClient covers tests.
//
// Example usage:
//
//	client, err := openai.New("gpt-4o-mini")
//	if err != nil {
//		log.Fatal(err)
//	}
//	answer, err := client.Generate(ctx, prompt)
package llm

import "context"

// Client generates text from a fully assembled prompt.
type Client interface {
	// Generate returns the model's completion for the prompt.
	Generate(ctx context.Context, prompt string) (string, error)

	// Model returns the generation model name.
	Model() string
}
