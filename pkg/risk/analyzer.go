package risk

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	humanize "github.com/dustin/go-humanize"

	"github.com/filigree-ai/go-filigree/pkg/entity"
	"github.com/filigree-ai/go-filigree/pkg/logger"
)

const (
	// A counterparty above 30 percent of total notional is flagged;
	// above 50 percent the flag escalates to high severity.
	concentrationThreshold = 0.3
	concentrationHigh      = 0.5

	// Collateral postings fall due one day after the analysis that
	// surfaced them.
	obligationLeadTime = 24 * time.Hour
)

// ObligationCollateralPosting marks obligations derived from posted
// collateral.
const ObligationCollateralPosting = "collateral_posting"

// Config assembles an Analyzer.
type Config struct {
	// Source supplies the exposures to analyze. Required.
	Source ExposureSource

	// Entities supplies display names for entity ids when set. Analysis
	// itself never depends on registration; unresolved ids appear in
	// summaries as given.
	Entities *entity.Resolver

	Logger *logger.Logger
}

// Analyzer consolidates one entity's swap exposures into a risk profile
// and tracks the obligations each analysis derives.
type Analyzer struct {
	source   ExposureSource
	entities *entity.Resolver
	log      *logger.Logger

	mu          sync.Mutex
	obligations map[string]*Obligation
}

// New builds an Analyzer from cfg.
func New(cfg Config) (*Analyzer, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("exposure source is required")
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Analyzer{
		source:      cfg.Source,
		entities:    cfg.Entities,
		log:         log,
		obligations: make(map[string]*Obligation),
	}, nil
}

// Analyze gathers the entity's exposures, consolidates duplicates,
// detects risk triggers, and derives collateral obligations. Each run
// replaces the entity's tracked obligations, so statuses set through
// MarkObligation reset to pending when the analysis is repeated.
func (a *Analyzer) Analyze(ctx context.Context, entityID string) (*Profile, error) {
	if strings.TrimSpace(entityID) == "" {
		return nil, fmt.Errorf("entity id is required")
	}
	name := a.entityName(entityID)

	raw, err := a.source.Exposures(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("gather exposures: %w", err)
	}
	if len(raw) == 0 {
		a.log.Info(ctx, "no swap exposures found", logger.Attr("entity_id", entityID))
		a.replaceObligations(entityID, nil)
		return emptyProfile(entityID, name), nil
	}

	exposures := consolidate(normalize(raw))
	triggers := detectTriggers(entityID, exposures)
	obligations := trackObligations(entityID, exposures)
	a.replaceObligations(entityID, obligations)

	prof := buildProfile(entityID, name, exposures, triggers, obligations)
	a.log.Info(ctx, "risk analysis completed",
		logger.Attr("entity", name),
		logger.Attr("total_notional", prof.TotalNotional),
		logger.Attr("counterparties", prof.CounterpartyCount),
		logger.Attr("triggers", len(triggers)),
	)
	return prof, nil
}

// MarkObligation moves a tracked obligation out of pending. Completed and
// overdue are the only valid targets, and only pending obligations move.
func (a *Analyzer) MarkObligation(ctx context.Context, obligationID string, status ObligationStatus) (Obligation, error) {
	if status != ObligationCompleted && status != ObligationOverdue {
		return Obligation{}, fmt.Errorf("invalid obligation status %q", status)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	ob, ok := a.obligations[obligationID]
	if !ok {
		return Obligation{}, fmt.Errorf("mark obligation %s: %w", obligationID, ErrObligationNotFound)
	}
	if ob.Status != ObligationPending {
		return Obligation{}, fmt.Errorf("obligation %s is already %s", obligationID, ob.Status)
	}
	ob.Status = status
	a.log.Info(ctx, "obligation updated",
		logger.Attr("obligation_id", obligationID),
		logger.Attr("status", string(status)),
	)
	return *ob, nil
}

// Obligations lists the tracked obligations for an entity in due-date
// order, reflecting MarkObligation updates since the last analysis.
func (a *Analyzer) Obligations(entityID string) []Obligation {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []Obligation
	for _, ob := range a.obligations {
		if ob.EntityID == entityID {
			out = append(out, *ob)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (a *Analyzer) entityName(entityID string) string {
	if a.entities == nil {
		return entityID
	}
	if ids, ok := a.entities.Registered(entityID); ok && ids.Name != "" {
		return ids.Name
	}
	return entityID
}

// replaceObligations swaps in the obligations derived by the latest
// analysis, dropping whatever the entity had tracked before.
func (a *Analyzer) replaceObligations(entityID string, obligations []Obligation) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for id, ob := range a.obligations {
		if ob.EntityID == entityID {
			delete(a.obligations, id)
		}
	}
	for _, ob := range obligations {
		cp := ob
		a.obligations[ob.ID] = &cp
	}
}

// normalize fills the per-record defaults sources tend to leave blank.
func normalize(exposures []Exposure) []Exposure {
	out := make([]Exposure, len(exposures))
	for i, e := range exposures {
		if e.Rating == "" {
			e.Rating = LevelMedium
		}
		if e.LastUpdated.IsZero() {
			e.LastUpdated = time.Now().UTC()
		}
		out[i] = e
	}
	return out
}

type groupKey struct {
	entityID       string
	counterpartyID string
	swapType       SwapType
	currency       string
	maturity       string
}

// consolidate merges exposures that describe the same position, keyed by
// entity, counterparty, swap type, currency, and maturity. Singletons
// pass through untouched; output keeps first-appearance order.
func consolidate(exposures []Exposure) []Exposure {
	groups := make(map[groupKey][]Exposure)
	var order []groupKey
	for _, e := range exposures {
		key := groupKey{e.EntityID, e.CounterpartyID, e.Type, e.Currency, maturityKey(e.MaturityDate)}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], e)
	}

	out := make([]Exposure, 0, len(order))
	for _, key := range order {
		group := groups[key]
		if len(group) == 1 {
			out = append(out, group[0])
			continue
		}
		out = append(out, mergeExposures(group))
	}
	return out
}

func maturityKey(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// mergeExposures folds a group into one position. Amounts are summed and
// the net recomputed; descriptive fields come from the first record.
func mergeExposures(group []Exposure) Exposure {
	merged := group[0]
	merged.ID = "MERGED_" + group[0].ID
	merged.Source = "MULTIPLE"
	merged.Notional = 0
	merged.MarkToMarket = 0
	merged.CollateralPosted = 0
	merged.CollateralReceived = 0
	for _, e := range group {
		merged.Notional += e.Notional
		merged.MarkToMarket += e.MarkToMarket
		merged.CollateralPosted += e.CollateralPosted
		merged.CollateralReceived += e.CollateralReceived
	}
	merged.NetExposure = merged.MarkToMarket + merged.CollateralReceived - merged.CollateralPosted
	merged.LastUpdated = time.Now().UTC()
	return merged
}

// detectTriggers runs the concentration and margin-call checks over the
// consolidated exposures. Triggers come out in counterparty
// first-appearance order, margin calls after concentrations.
func detectTriggers(entityID string, exposures []Exposure) []Trigger {
	var triggers []Trigger
	now := time.Now().UTC()

	byCounterparty := make(map[string][]Exposure)
	var counterparties []string
	var totalNotional float64
	for _, e := range exposures {
		if _, seen := byCounterparty[e.CounterpartyID]; !seen {
			counterparties = append(counterparties, e.CounterpartyID)
		}
		byCounterparty[e.CounterpartyID] = append(byCounterparty[e.CounterpartyID], e)
		totalNotional += e.Notional
	}

	for _, cp := range counterparties {
		group := byCounterparty[cp]
		var cpNotional float64
		for _, e := range group {
			cpNotional += e.Notional
		}
		var ratio float64
		if totalNotional > 0 {
			ratio = cpNotional / totalNotional
		}
		if ratio <= concentrationThreshold {
			continue
		}
		severity := LevelMedium
		if ratio > concentrationHigh {
			severity = LevelHigh
		}
		affected := make([]string, len(group))
		for i, e := range group {
			affected[i] = e.ID
		}
		triggers = append(triggers, Trigger{
			ID:                "concentration_" + cp,
			EntityID:          entityID,
			Type:              TriggerConcentration,
			Date:              now,
			Severity:          severity,
			Description:       fmt.Sprintf("High concentration risk with %s: %.1f%% of total exposure", cp, ratio*100),
			AffectedExposures: affected,
			RequiredAction:    "Review counterparty concentration limits",
			Status:            "active",
		})
	}

	for _, e := range exposures {
		if e.MarginCallThreshold <= 0 || e.NetExposure <= e.MarginCallThreshold {
			continue
		}
		triggers = append(triggers, Trigger{
			ID:                "margin_call_" + e.ID,
			EntityID:          entityID,
			Type:              TriggerMarginCall,
			Date:              now,
			Severity:          LevelHigh,
			Description:       fmt.Sprintf("Margin call risk for exposure %s: %s > %s", e.ID, dollars(e.NetExposure), dollars(e.MarginCallThreshold)),
			AffectedExposures: []string{e.ID},
			RequiredAction:    "Post additional collateral or reduce exposure",
			Status:            "active",
		})
	}
	return triggers
}

// trackObligations derives a pending collateral-posting obligation for
// every exposure with posted collateral.
func trackObligations(entityID string, exposures []Exposure) []Obligation {
	var obligations []Obligation
	due := time.Now().UTC().Add(obligationLeadTime)
	for _, e := range exposures {
		if e.CollateralPosted <= 0 {
			continue
		}
		obligations = append(obligations, Obligation{
			ID:             "collateral_" + e.ID,
			EntityID:       entityID,
			CounterpartyID: e.CounterpartyID,
			Type:           ObligationCollateralPosting,
			Amount:         e.CollateralPosted,
			Currency:       e.Currency,
			DueDate:        due,
			Status:         ObligationPending,
			Description:    fmt.Sprintf("Collateral posting for %s swap", e.Type),
			ExposureID:     e.ID,
		})
	}
	return obligations
}

func buildProfile(entityID, name string, exposures []Exposure, triggers []Trigger, obligations []Obligation) *Profile {
	byType := make(map[SwapType][]Exposure)
	byCounterparty := make(map[string][]Exposure)
	var totalNotional, totalMTM, posted, received float64
	for _, e := range exposures {
		byType[e.Type] = append(byType[e.Type], e)
		byCounterparty[e.CounterpartyID] = append(byCounterparty[e.CounterpartyID], e)
		totalNotional += e.Notional
		totalMTM += e.MarkToMarket
		posted += e.CollateralPosted
		received += e.CollateralReceived
	}

	return &Profile{
		EntityID:          entityID,
		EntityName:        name,
		TotalNotional:     totalNotional,
		TotalMarkToMarket: totalMTM,
		NetCollateral:     received - posted,
		CounterpartyCount: len(byCounterparty),
		SwapCount:         len(exposures),
		ByType:            byType,
		ByCounterparty:    byCounterparty,
		Triggers:          triggers,
		Obligations:       obligations,
		Summary:           riskSummary(name, totalNotional, len(byCounterparty), triggers),
		GeneratedAt:       time.Now().UTC(),
	}
}

func emptyProfile(entityID, name string) *Profile {
	return &Profile{
		EntityID:       entityID,
		EntityName:     name,
		ByType:         map[SwapType][]Exposure{},
		ByCounterparty: map[string][]Exposure{},
		Summary:        fmt.Sprintf("%s: No swap exposures found in available data sources.", name),
		GeneratedAt:    time.Now().UTC(),
	}
}

func riskSummary(name string, totalNotional float64, counterparties int, triggers []Trigger) string {
	high := 0
	for _, t := range triggers {
		if t.Severity == LevelHigh || t.Severity == LevelCritical {
			high++
		}
	}
	summary := fmt.Sprintf("%s: Total swap exposure %s across %d counterparties. ", name, dollars(totalNotional), counterparties)
	if high > 0 {
		return summary + fmt.Sprintf("High risk triggers: %d counterparties approaching downgrade thresholds", high)
	}
	return summary + "No immediate risk triggers detected"
}

// dollars renders an amount the way the summaries read it, grouped and
// without cents.
func dollars(v float64) string {
	return "$" + humanize.Comma(int64(math.Round(v)))
}
