// Package risk consolidates swap exposures for a single entity and derives
// risk triggers, collateral obligations, and a counterparty-level profile
// from them. Exposure data comes from an ExposureSource port; the package
// itself performs no I/O beyond that.
package risk

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrObligationNotFound is returned by MarkObligation for ids that no
// analysis has produced.
var ErrObligationNotFound = errors.New("obligation not found")

// Level classifies trigger severity and exposure ratings.
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// SwapType identifies the instrument family of an exposure.
type SwapType string

const (
	SwapInterestRate  SwapType = "interest_rate"
	SwapCreditDefault SwapType = "credit_default"
	SwapEquity        SwapType = "equity"
	SwapCommodity     SwapType = "commodity"
	SwapCurrency      SwapType = "currency"
	SwapVolatility    SwapType = "volatility"
	SwapInflation     SwapType = "inflation"
	SwapUnknown       SwapType = "unknown"
)

// swapTypeTerms maps product vocabulary to swap types. Buckets are checked
// in order and the first substring hit wins, so the more specific families
// sit ahead of the broad ones.
var swapTypeTerms = []struct {
	swapType SwapType
	terms    []string
}{
	{SwapInterestRate, []string{"interest", "rate", "irs"}},
	{SwapCreditDefault, []string{"credit", "cds", "default"}},
	{SwapEquity, []string{"equity", "stock"}},
	{SwapCommodity, []string{"commodity", "energy", "metal"}},
	{SwapCurrency, []string{"currency", "fx", "forex"}},
	{SwapVolatility, []string{"volatility", "variance"}},
	{SwapInflation, []string{"inflation", "cpi"}},
}

// InferSwapType derives the instrument family from an asset class and a
// product name, either of which may be empty. Unrecognized vocabulary
// yields SwapUnknown.
func InferSwapType(assetClass, product string) SwapType {
	if assetClass == "" && product == "" {
		return SwapUnknown
	}
	combined := strings.ToLower(assetClass + " " + product)
	for _, bucket := range swapTypeTerms {
		for _, term := range bucket.terms {
			if strings.Contains(combined, term) {
				return bucket.swapType
			}
		}
	}
	return SwapUnknown
}

// Exposure is one swap position of an entity against a counterparty.
// NetExposure is taken as reported by the source; consolidation only
// recomputes it when several records merge. A zero MarginCallThreshold
// disables the margin-call check for the record.
type Exposure struct {
	ID                  string    `json:"exposure_id"`
	EntityID            string    `json:"entity_id"`
	CounterpartyID      string    `json:"counterparty_id"`
	CounterpartyName    string    `json:"counterparty_name,omitempty"`
	Type                SwapType  `json:"swap_type"`
	Notional            float64   `json:"notional_amount"`
	Currency            string    `json:"currency"`
	MarkToMarket        float64   `json:"mark_to_market"`
	CollateralPosted    float64   `json:"collateral_posted"`
	CollateralReceived  float64   `json:"collateral_received"`
	NetExposure         float64   `json:"net_exposure"`
	MaturityDate        time.Time `json:"maturity_date"`
	EffectiveDate       time.Time `json:"effective_date"`
	TerminationDate     time.Time `json:"termination_date"`
	Source              string    `json:"data_source"`
	FilingReference     string    `json:"filing_reference,omitempty"`
	Rating              Level     `json:"risk_rating"`
	MarginCallThreshold float64   `json:"margin_call_threshold,omitempty"`
	CreditLimit         float64   `json:"credit_limit,omitempty"`
	LastUpdated         time.Time `json:"last_updated"`
}

// Trigger types produced by the detection pass.
const (
	TriggerConcentration = "high_concentration"
	TriggerMarginCall    = "margin_call_risk"
)

// Trigger is a detected risk event that needs review.
type Trigger struct {
	ID                string    `json:"trigger_id"`
	EntityID          string    `json:"entity_id"`
	Type              string    `json:"trigger_type"`
	Date              time.Time `json:"trigger_date"`
	Severity          Level     `json:"severity"`
	Description       string    `json:"description"`
	AffectedExposures []string  `json:"affected_exposures"`
	RequiredAction    string    `json:"required_action"`
	Deadline          time.Time `json:"deadline"`
	Status            string    `json:"status"`
}

// ObligationStatus tracks an obligation through its lifecycle. New
// obligations start pending; MarkObligation moves them to completed or
// overdue.
type ObligationStatus string

const (
	ObligationPending   ObligationStatus = "pending"
	ObligationCompleted ObligationStatus = "completed"
	ObligationOverdue   ObligationStatus = "overdue"
)

// Obligation is a payment or collateral duty derived from an exposure.
type Obligation struct {
	ID             string           `json:"obligation_id"`
	EntityID       string           `json:"entity_id"`
	CounterpartyID string           `json:"counterparty_id"`
	Type           string           `json:"obligation_type"`
	Amount         float64          `json:"amount"`
	Currency       string           `json:"currency"`
	DueDate        time.Time        `json:"due_date"`
	Status         ObligationStatus `json:"status"`
	Description    string           `json:"description"`
	ExposureID     string           `json:"related_exposure_id,omitempty"`
}

// Profile is the consolidated risk picture for one entity.
type Profile struct {
	EntityID          string                  `json:"entity_id"`
	EntityName        string                  `json:"entity_name"`
	TotalNotional     float64                 `json:"total_notional_exposure"`
	TotalMarkToMarket float64                 `json:"total_mark_to_market"`
	NetCollateral     float64                 `json:"net_collateral_position"`
	CounterpartyCount int                     `json:"counterparty_count"`
	SwapCount         int                     `json:"swap_count"`
	ByType            map[SwapType][]Exposure `json:"exposures_by_type"`
	ByCounterparty    map[string][]Exposure   `json:"exposures_by_counterparty"`
	Triggers          []Trigger               `json:"risk_triggers"`
	Obligations       []Obligation            `json:"obligations"`
	Summary           string                  `json:"risk_summary"`
	GeneratedAt       time.Time               `json:"generated_at"`
}

// ExposureSource supplies the recorded swap exposures for an entity.
// Implementations sit in front of whatever holds the positions (a
// database, parsed filings, a fixture); the analyzer never reaches past
// this port.
type ExposureSource interface {
	Exposures(ctx context.Context, entityID string) ([]Exposure, error)
}

// SourceFunc adapts a plain function to an ExposureSource.
type SourceFunc func(ctx context.Context, entityID string) ([]Exposure, error)

// Exposures calls f.
func (f SourceFunc) Exposures(ctx context.Context, entityID string) ([]Exposure, error) {
	return f(ctx, entityID)
}
