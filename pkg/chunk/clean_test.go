package chunk

import "testing"

func TestCleanDocumentText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "strips markup tags",
			input:    "<html><body>Annual report contents</body></html>",
			expected: "Annual report contents",
		},
		{
			name:     "straightens curly punctuation and non-breaking spaces",
			input:    "The Company’s “growth” strategy",
			expected: `The Company's "growth" strategy`,
		},
		{
			name:     "collapses horizontal whitespace but keeps newlines",
			input:    "alpha   beta\ngamma\t\tdelta",
			expected: "alpha beta\ngamma delta",
		},
		{
			name:     "collapses blank line runs into one paragraph break",
			input:    "para one\n\n\n\npara two",
			expected: "para one\n\npara two",
		},
		{
			name:     "removes page headers",
			input:    "Intro text\nPage 3 of 120\nMore text",
			expected: "Intro text\n\nMore text",
		},
		{
			name:     "removes bare page number lines",
			input:    "Intro\n 42 \nOutro",
			expected: "Intro\n\nOutro",
		},
		{
			name:     "shrinks ellipsis runs",
			input:    "Item 1....... Business",
			expected: "Item 1... Business",
		},
		{
			name:     "shrinks dash runs",
			input:    "Section------break",
			expected: "Section---break",
		},
		{
			name:     "trims surrounding whitespace",
			input:    "   padded   ",
			expected: "padded",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
		{
			name:     "whitespace only input",
			input:    "  \n\t \n ",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := cleanDocumentText(tt.input); got != tt.expected {
				t.Errorf("cleanDocumentText() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestContainsNumbers(t *testing.T) {
	t.Parallel()
	if !containsNumbers("revenue of 1,250,000") {
		t.Error("containsNumbers() = false for text with digits")
	}
	if containsNumbers("no figures here") {
		t.Error("containsNumbers() = true for text without digits")
	}
}

func TestContainsCurrency(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{name: "dollar sign", input: "priced at $14.50", expected: true},
		{name: "usd code", input: "settled in USD", expected: true},
		{name: "dollar word case insensitive", input: "two million Dollars", expected: true},
		{name: "currency word", input: "foreign currency exposure", expected: true},
		{name: "no currency", input: "share count only", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := containsCurrency(tt.input); got != tt.expected {
				t.Errorf("containsCurrency(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}
