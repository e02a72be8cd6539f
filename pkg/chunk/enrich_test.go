package chunk

import (
	"math"
	"strings"
	"testing"
)

func TestExtractFinancialConcepts(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name: "all five categories in table order",
			input: "The company faces material risk from its credit exposure. " +
				"Revenue grew while the operating segment expanded. " +
				"SEC filing compliance and market share pressure continue.",
			expected: []string{
				"risk_indicators",
				"financial_metrics",
				"business_segments",
				"regulatory_terms",
				"market_terms",
			},
		},
		{
			name:     "category reported once despite several hits",
			input:    "credit risk and market risk and cyber risk",
			expected: []string{"risk_indicators"},
		},
		{
			name:     "case insensitive",
			input:    "REVENUE AND EBITDA",
			expected: []string{"financial_metrics"},
		},
		{
			name:     "no concepts",
			input:    "plain text about nothing in particular",
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := extractFinancialConcepts(tt.input)
			if !equalStrings(got, tt.expected) {
				t.Errorf("extractFinancialConcepts() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCountRiskIndicators(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{
			name:     "counts every occurrence",
			input:    "Credit risk rose. Market risk fell. Credit  risk again.",
			expected: 3,
		},
		{
			name:     "risk alone does not count",
			input:    "general risk discussion",
			expected: 0,
		},
		{
			name:     "empty text",
			input:    "",
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := countRiskIndicators(tt.input); got != tt.expected {
				t.Errorf("countRiskIndicators(%q) = %d, want %d", tt.input, got, tt.expected)
			}
		})
	}
}

func TestReadabilityScore(t *testing.T) {
	t.Run("empty text scores zero", func(t *testing.T) {
		if got := readabilityScore(""); got != 0 {
			t.Errorf("readabilityScore() = %v, want 0", got)
		}
	})

	t.Run("no sentence markers scores zero", func(t *testing.T) {
		if got := readabilityScore("fragment without any terminal punctuation"); got != 0 {
			t.Errorf("readabilityScore() = %v, want 0", got)
		}
	})

	t.Run("short sentences clamp to one", func(t *testing.T) {
		if got := readabilityScore("Cat sat. Dog ran."); got != 1 {
			t.Errorf("readabilityScore() = %v, want 1", got)
		}
	})

	t.Run("very long sentence clamps to zero", func(t *testing.T) {
		text := strings.Repeat("word ", 250) + "."
		if got := readabilityScore(text); got != 0 {
			t.Errorf("readabilityScore() = %v, want 0", got)
		}
	})

	t.Run("mid range follows the formula", func(t *testing.T) {
		// 300 words over 2 sentences.
		text := strings.Repeat("alpha ", 150) + ". " + strings.Repeat("beta ", 150) + "."
		want := (206.835 - 1.015*150.0) / 100
		if got := readabilityScore(text); math.Abs(got-want) > 1e-9 {
			t.Errorf("readabilityScore() = %v, want %v", got, want)
		}
	})
}
