package chunk

import "regexp"

// financialConcepts lists the concept categories probed on every chunk,
// in the order they are reported. A category is tagged on first pattern
// hit; the risk category's patterns are additionally counted per
// occurrence for the importance score.
var financialConcepts = []struct {
	category string
	patterns []*regexp.Regexp
}{
	{"risk_indicators", []*regexp.Regexp{
		regexp.MustCompile(`(?i)risk\s+factor`),
		regexp.MustCompile(`(?i)material\s+risk`),
		regexp.MustCompile(`(?i)significant\s+risk`),
		regexp.MustCompile(`(?i)credit\s+risk`),
		regexp.MustCompile(`(?i)market\s+risk`),
		regexp.MustCompile(`(?i)operational\s+risk`),
		regexp.MustCompile(`(?i)liquidity\s+risk`),
		regexp.MustCompile(`(?i)regulatory\s+risk`),
		regexp.MustCompile(`(?i)cyber\s+risk`),
	}},
	{"financial_metrics", []*regexp.Regexp{
		regexp.MustCompile(`(?i)revenue`),
		regexp.MustCompile(`(?i)net\s+income`),
		regexp.MustCompile(`(?i)earnings`),
		regexp.MustCompile(`(?i)profit`),
		regexp.MustCompile(`(?i)cash\s+flow`),
		regexp.MustCompile(`(?i)ebitda`),
		regexp.MustCompile(`(?i)assets`),
		regexp.MustCompile(`(?i)liabilities`),
		regexp.MustCompile(`(?i)debt`),
		regexp.MustCompile(`(?i)equity`),
		regexp.MustCompile(`(?i)dividend`),
		regexp.MustCompile(`(?i)market\s+cap`),
	}},
	{"business_segments", []*regexp.Regexp{
		regexp.MustCompile(`(?i)business\s+segment`),
		regexp.MustCompile(`(?i)operating\s+segment`),
		regexp.MustCompile(`(?i)division`),
		regexp.MustCompile(`(?i)subsidiary`),
		regexp.MustCompile(`(?i)acquisition`),
		regexp.MustCompile(`(?i)merger`),
		regexp.MustCompile(`(?i)joint\s+venture`),
	}},
	{"regulatory_terms", []*regexp.Regexp{
		regexp.MustCompile(`(?i)sec\s+filing`),
		regexp.MustCompile(`(?i)compliance`),
		regexp.MustCompile(`(?i)regulation`),
		regexp.MustCompile(`(?i)regulatory`),
		regexp.MustCompile(`(?i)sox\s+compliance`),
		regexp.MustCompile(`(?i)internal\s+control`),
		regexp.MustCompile(`(?i)audit`),
	}},
	{"market_terms", []*regexp.Regexp{
		regexp.MustCompile(`(?i)market\s+share`),
		regexp.MustCompile(`(?i)competition`),
		regexp.MustCompile(`(?i)competitive`),
		regexp.MustCompile(`(?i)industry`),
		regexp.MustCompile(`(?i)sector`),
		regexp.MustCompile(`(?i)market\s+condition`),
	}},
}

// extractFinancialConcepts returns the categories with at least one
// pattern hit, in table order.
func extractFinancialConcepts(text string) []string {
	concepts := []string{}
	for _, group := range financialConcepts {
		for _, re := range group.patterns {
			if re.MatchString(text) {
				concepts = append(concepts, group.category)
				break
			}
		}
	}
	return concepts
}

// countRiskIndicators counts every occurrence of a risk pattern.
func countRiskIndicators(text string) int {
	count := 0
	for _, re := range financialConcepts[0].patterns {
		count += len(re.FindAllStringIndex(text, -1))
	}
	return count
}

var (
	sentenceMarkRe = regexp.MustCompile(`[.!?]+`)
	wordRe         = regexp.MustCompile(`\w+`)
)

// readabilityScore is a simplified Flesch reading-ease score normalized
// to [0,1]. Longer average sentences push the score toward 0.
func readabilityScore(text string) float64 {
	if text == "" {
		return 0
	}
	sentences := len(sentenceMarkRe.FindAllStringIndex(text, -1))
	words := len(wordRe.FindAllStringIndex(text, -1))
	if sentences == 0 || words == 0 {
		return 0
	}

	avgSentenceLength := float64(words) / float64(sentences)
	score := 206.835 - 1.015*avgSentenceLength
	return max(0, min(1, score/100))
}
