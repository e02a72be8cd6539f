package embed

import (
	"testing"

	"github.com/filigree-ai/go-filigree/pkg/tokenizer"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "collapses whitespace runs",
			input:    "quarterly\n\nreport\tfor\r\ninvestors",
			expected: "quarterly report for investors",
		},
		{
			name:     "joins currency symbol to amount",
			input:    "a loss of $ 12 million",
			expected: "a loss of $12 million",
		},
		{
			name:     "joins amount to percent sign",
			input:    "rates rose 5 % in Q2",
			expected: "rates rose 5% in Q2",
		},
		{
			name:     "currency across line break",
			input:    "$\n42",
			expected: "$42",
		},
		{
			name:     "blanks html entities",
			input:    "risk &amp; return",
			expected: "risk   return",
		},
		{
			name:     "collapses punctuation runs",
			input:    "Wait... what?? More,, detail;;",
			expected: "Wait. what. More. detail.",
		},
		{
			name:     "typical filing sentence",
			input:    "  Revenue was $ 12 million, up 3 % yoy&nbsp;. ",
			expected: "Revenue was $12 million, up 3% yoy .",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
		{
			name:     "whitespace only",
			input:    " \t\n ",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeText(tt.input)
			if got != tt.expected {
				t.Errorf("normalizeText(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestTruncateText(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		maxTokens int
		expected  string
	}{
		{
			name:      "under budget unchanged",
			input:     "short filing excerpt",
			maxTokens: 10,
			expected:  "short filing excerpt",
		},
		{
			name:      "over budget truncated",
			input:     "one two three four five",
			maxTokens: 3,
			expected:  "one two three",
		},
		{
			name:      "exact budget unchanged",
			input:     "one two three",
			maxTokens: 3,
			expected:  "one two three",
		},
		{
			name:      "zero budget disables truncation",
			input:     "one two three four five",
			maxTokens: 0,
			expected:  "one two three four five",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateText(tokenizer.NewSegment(), tt.input, tt.maxTokens)
			if got != tt.expected {
				t.Errorf("truncateText(%q, %d) = %q, want %q", tt.input, tt.maxTokens, got, tt.expected)
			}
		})
	}
}
