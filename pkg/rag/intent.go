package rag

import (
	"regexp"
	"slices"
	"strings"

	"github.com/filigree-ai/go-filigree/pkg/filigree"
)

// Intent is the query category steering collection targeting, context
// framing and prompt instructions.
type Intent string

// Query intents.
const (
	IntentCompanyAnalysis      Intent = "company_analysis"
	IntentMarketTrends         Intent = "market_trends"
	IntentRiskAssessment       Intent = "risk_assessment"
	IntentRegulatoryCompliance Intent = "regulatory_compliance"
	IntentFinancialMetrics     Intent = "financial_metrics"
	IntentGeneral              Intent = "general"
)

// intentPatterns is evaluated in order against the lowercased query; the
// group with the most matching patterns wins and earlier groups win ties.
var intentPatterns = []struct {
	intent   Intent
	patterns []*regexp.Regexp
}{
	{IntentCompanyAnalysis, compileAll(
		`company\s+(?:profile|analysis|information)`,
		`(?:analyze|tell me about|describe)\s+(?:company|firm|corporation)`,
		`cik\s+\d+`,
		`(?:business|corporate)\s+(?:model|strategy|operations)`,
	)},
	{IntentMarketTrends, compileAll(
		`(?:market|trading)\s+(?:trends|patterns|activity)`,
		`(?:price|volume|volatility)\s+(?:trends|movement)`,
		`(?:swap|derivative)\s+(?:market|activity)`,
		`(?:recent|latest)\s+(?:market|trading)\s+(?:data|activity)`,
	)},
	{IntentRiskAssessment, compileAll(
		`risk\s+(?:factors|assessment|analysis|profile)`,
		`(?:credit|market|operational|liquidity)\s+risk`,
		`(?:exposure|concentration)\s+(?:risk|analysis)`,
		`risk\s+(?:management|mitigation)`,
	)},
	{IntentRegulatoryCompliance, compileAll(
		`(?:regulatory|compliance|filing)\s+(?:requirements|status)`,
		`sec\s+(?:filing|submission|requirement)`,
		`(?:form|filing)\s+(?:10-k|10-q|8-k|13f)`,
		`(?:compliance|regulatory)\s+(?:issues|violations)`,
	)},
	{IntentFinancialMetrics, compileAll(
		`(?:financial|earnings|revenue|profit)\s+(?:metrics|performance|results)`,
		`(?:balance\s+sheet|income\s+statement|cash\s+flow)`,
		`(?:assets|liabilities|equity|debt)\s+(?:analysis|breakdown)`,
		`(?:financial\s+ratios|performance\s+indicators)`,
	)},
}

func compileAll(patterns ...string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		res[i] = regexp.MustCompile(p)
	}
	return res
}

// classifyIntent assigns the query an intent. Pattern groups are scored
// first; when none match, a coarse keyword pass catches queries that name
// a domain without the phrasing the patterns expect.
func classifyIntent(text string) Intent {
	lowered := strings.ToLower(text)

	best := IntentGeneral
	bestScore := 0
	for _, group := range intentPatterns {
		score := 0
		for _, re := range group.patterns {
			if re.MatchString(lowered) {
				score++
			}
		}
		if score > bestScore {
			best = group.intent
			bestScore = score
		}
	}
	if bestScore > 0 {
		return best
	}

	switch {
	case containsAny(lowered, "company", "cik", "firm", "corporation"):
		return IntentCompanyAnalysis
	case containsAny(lowered, "market", "trading", "swap", "trend"):
		return IntentMarketTrends
	case containsAny(lowered, "risk", "exposure", "volatility"):
		return IntentRiskAssessment
	}
	return IntentGeneral
}

func containsAny(s string, terms ...string) bool {
	for _, term := range terms {
		if strings.Contains(s, term) {
			return true
		}
	}
	return false
}

// baseCollections maps each intent to the collections searched for it.
var baseCollections = map[Intent][]string{
	IntentCompanyAnalysis:      {filigree.CollectionSECFilings, filigree.CollectionInsiderReports, filigree.CollectionFormDFilings},
	IntentMarketTrends:         {filigree.CollectionCFTCSummaries, filigree.CollectionMarketEvents, filigree.CollectionSECFilings},
	IntentRiskAssessment:       {filigree.CollectionSECFilings, filigree.CollectionRiskAssessments, filigree.CollectionCFTCSummaries},
	IntentRegulatoryCompliance: {filigree.CollectionSECFilings, filigree.CollectionFormDFilings, filigree.CollectionFundReports},
	IntentFinancialMetrics:     {filigree.CollectionSECFilings, filigree.CollectionFundReports, filigree.CollectionInsiderReports},
	IntentGeneral:              {filigree.CollectionSECFilings, filigree.CollectionCFTCSummaries, filigree.CollectionMarketEvents},
}

// crossDatasetCollections are appended to every intent's base set when
// cross-dataset search is on, so correlations across sources surface even
// for narrowly-targeted intents.
var crossDatasetCollections = []string{
	filigree.CollectionMarketEvents,
	filigree.CollectionRiskAssessments,
	filigree.CollectionFundReports,
}

// targetCollections resolves the collections to search for an intent,
// deduplicated in base-set order and filtered to collections that exist.
func (o *Orchestrator) targetCollections(intent Intent, crossDataset bool) []string {
	base, ok := baseCollections[intent]
	if !ok {
		base = []string{filigree.CollectionSECFilings}
	}

	collections := slices.Clone(base)
	if crossDataset {
		for _, name := range crossDatasetCollections {
			if !slices.Contains(collections, name) {
				collections = append(collections, name)
			}
		}
	}

	index := o.store.Index()
	out := collections[:0]
	for _, name := range collections {
		if index.HasCollection(name) {
			out = append(out, name)
		}
	}
	return out
}

// collectionDisplayNames renders collection identifiers readably in
// assembled context.
var collectionDisplayNames = map[string]string{
	filigree.CollectionSECFilings:      "SEC Filings",
	filigree.CollectionCFTCSummaries:   "CFTC Market Data",
	filigree.CollectionInsiderReports:  "Insider Trading Data",
	filigree.CollectionFormDFilings:    "Form D Filings",
	filigree.CollectionFundReports:     "Fund Reports",
	filigree.CollectionMarketEvents:    "Market Events",
	filigree.CollectionRiskAssessments: "Risk Assessments",
}

func displayName(collection string) string {
	if name, ok := collectionDisplayNames[collection]; ok {
		return name
	}
	words := strings.Split(collection, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// contextIntros frame the assembled context per intent.
var contextIntros = map[Intent]string{
	IntentCompanyAnalysis:      "Based on available SEC filings and regulatory data:",
	IntentMarketTrends:         "Based on market data and trading information:",
	IntentRiskAssessment:       "Based on risk factors and regulatory filings:",
	IntentRegulatoryCompliance: "Based on regulatory filings and compliance data:",
	IntentFinancialMetrics:     "Based on financial reports and filings:",
	IntentGeneral:              "Based on available financial and regulatory data:",
}

func contextIntro(intent Intent) string {
	if intro, ok := contextIntros[intent]; ok {
		return intro
	}
	return "Based on available data:"
}
