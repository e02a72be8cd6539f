package rag

import (
	"fmt"
	"strings"
	"text/template"
)

// promptTmpl is the generation prompt: a fixed analyst persona and
// response guidelines, optional intent-specific instructions, the
// assembled context and the user query.
var promptTmpl = template.Must(template.New("prompt").Parse(`You are an expert financial data assistant with access to comprehensive regulatory and market data.
Your goal is to provide accurate, insightful, and actionable financial analysis.

Guidelines:
1. Base your response on the provided context data
2. Cite specific sources when making claims
3. Highlight important risk factors or regulatory considerations
4. Provide quantitative data when available
5. Explain complex financial concepts clearly
6. Note any limitations in the available data
{{if .Instructions}}
{{.Instructions}}
{{end}}
Context Information:
{{.Context}}

User Query: {{.Query}}

Please provide a comprehensive response based on the context information above.

Note: Response based on {{.Sources}} sources, {{.HighlyRelevant}} highly relevant.`))

// intentInstructions steer the model toward the analysis style each
// intent calls for. Intents without an entry get the base guidelines only.
var intentInstructions = map[Intent]string{
	IntentCompanyAnalysis: `For company analysis:
- Provide comprehensive business overview
- Highlight key financial metrics and trends
- Identify major risk factors
- Compare to industry context when possible`,
	IntentMarketTrends: `For market trend analysis:
- Identify key patterns and movements
- Provide statistical insights when available
- Explain potential market drivers
- Highlight any unusual activity or anomalies`,
	IntentRiskAssessment: `For risk assessment:
- Categorize risks by type (credit, market, operational, etc.)
- Assess severity and likelihood
- Provide risk mitigation recommendations
- Consider regulatory implications`,
}

type promptData struct {
	Context        string
	Query          string
	Instructions   string
	Sources        int
	HighlyRelevant int
}

func buildPrompt(query, context string, intent Intent, results []SearchResult) (string, error) {
	data := promptData{
		Context:        context,
		Query:          query,
		Instructions:   intentInstructions[intent],
		Sources:        len(results),
		HighlyRelevant: countAbove(results, highlyRelevant),
	}
	var b strings.Builder
	if err := promptTmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("prompt template: %w", err)
	}
	return b.String(), nil
}

// fallbackTmpl renders an extractive answer straight from retrieved
// snippets when no generator is configured or generation fails.
var fallbackTmpl = template.Must(template.New("fallback").Parse(`{{.Intro}}
{{range .Snippets}}
• {{.}}
{{end}}
This answer was assembled directly from {{.Sources}} retrieved sources without language model synthesis.`))

type fallbackData struct {
	Intro    string
	Snippets []string
	Sources  int
}

func fallbackAnswer(intent Intent, results []SearchResult) string {
	if len(results) == 0 {
		return msgNoResults
	}
	snippets := make([]string, 0, snippetsPerSource)
	for _, r := range results[:min(len(results), snippetsPerSource)] {
		snippets = append(snippets, snippet(r))
	}
	var b strings.Builder
	if err := fallbackTmpl.Execute(&b, fallbackData{
		Intro:    contextIntro(intent),
		Snippets: snippets,
		Sources:  len(results),
	}); err != nil {
		return msgNoResults
	}
	return b.String()
}
