package arbiter

import (
	"encoding/json"
	"fmt"
)

// InventoryPriority classifies the urgency of a cabin's unsold capacity.
type InventoryPriority string

const (
	InventoryHigh    InventoryPriority = "high"
	InventoryMedium  InventoryPriority = "medium"
	InventoryLow     InventoryPriority = "low"
	InventorySoldOut InventoryPriority = "sold_out"
)

// OfferOption is one inventory-eligible cabin upgrade path under consideration.
type OfferOption struct {
	CabinCode         string            `json:"cabin_code"`
	OfferType         string            `json:"offer_type"`
	PBuy              float64           `json:"p_buy"`
	Confidence        float64           `json:"confidence"`
	BasePrice         float64           `json:"base_price"`
	Margin            float64           `json:"margin"`
	ExpectedValue     float64           `json:"expected_value"`
	MaxDiscount       float64           `json:"max_discount"`
	InventoryPriority InventoryPriority `json:"inventory_priority"`
}

// ServiceIssue records a recent customer-service incident.
type ServiceIssue struct {
	HadIssue  bool   `json:"had_issue"`
	IssueType string `json:"issue_type"`
	Sentiment string `json:"sentiment"`
}

// CustomerSummary is the normalized customer view carried in the context.
type CustomerSummary struct {
	CustomerID         string       `json:"customer_id"`
	Segment            string       `json:"segment"`
	CurrentCabin       string       `json:"current_cabin"`
	LoyaltyTier        string       `json:"loyalty_tier"`
	AnnualRevenue      float64      `json:"annual_revenue"`
	PriceSensitivity   string       `json:"price_sensitivity"`
	RecentServiceIssue ServiceIssue `json:"recent_service_issue"`
}

// Context is the immutable input to planning, evaluation, and solving.
// It is owned by exactly one arbitration run and never mutated after
// construction.
type Context struct {
	Customer         CustomerSummary `json:"customer"`
	Options          []OfferOption   `json:"offer_options"`
	HoursToDeparture float64         `json:"hours_to_departure"`
}

// EvaluationType enumerates the trade-off evaluations the worker can run.
type EvaluationType int

const (
	EvalConfidence EvaluationType = iota
	EvalRelationship
	EvalPriceSensitivity
	EvalInventory
	EvalEVComparison
)

var evaluationTypeNames = map[EvaluationType]string{
	EvalConfidence:       "CONFIDENCE",
	EvalRelationship:     "RELATIONSHIP",
	EvalPriceSensitivity: "PRICE_SENSITIVITY",
	EvalInventory:        "INVENTORY",
	EvalEVComparison:     "EV_COMPARISON",
}

// String returns the wire name of the evaluation type.
func (t EvaluationType) String() string {
	if name, ok := evaluationTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(t))
}

// MarshalJSON encodes the evaluation type by its wire name.
func (t EvaluationType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes an evaluation type from its wire name.
func (t *EvaluationType) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseEvaluationType(name)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseEvaluationType maps a wire name to its enum value. Unknown names
// return an error so that externally proposed plans can be rejected as a
// whole instead of silently running an undefined evaluation.
func ParseEvaluationType(name string) (EvaluationType, error) {
	for t, n := range evaluationTypeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown evaluation type %q", name)
}

// EvaluationStep is one planned evaluation. Steps carry no state and have
// no dependency on each other.
type EvaluationStep struct {
	StepID      string         `json:"step_id"`
	Type        EvaluationType `json:"evaluation_type"`
	Description string         `json:"description"`
}

// Plan is the ordered list of evaluations to run for one arbitration.
// Order only affects presentation; steps are independent.
type Plan struct {
	Steps     []EvaluationStep `json:"steps"`
	Source    string           `json:"source"`
	Reasoning string           `json:"reasoning,omitempty"`
}

// Plan sources.
const (
	PlanSourceHeuristic = "heuristic"
	PlanSourceReasoner  = "reasoner"
)

// Recommendation labels the action an evaluation suggests to the solver.
type Recommendation string

const (
	RecChooseSafer             Recommendation = "CHOOSE_SAFER"
	RecProceedWithBestEV       Recommendation = "PROCEED_WITH_BEST_EV"
	RecApplyGoodwillDiscount   Recommendation = "APPLY_GOODWILL_DISCOUNT"
	RecProceedWithCaution      Recommendation = "PROCEED_WITH_CAUTION"
	RecNoConcern               Recommendation = "NO_CONCERN"
	RecApplyDiscount           Recommendation = "APPLY_DISCOUNT"
	RecSmallDiscountOptional   Recommendation = "SMALL_DISCOUNT_OPTIONAL"
	RecNoDiscount              Recommendation = "NO_DISCOUNT"
	RecPrioritizeHighInventory Recommendation = "PRIORITIZE_HIGH_INVENTORY"
	RecNoPriority              Recommendation = "NO_PRIORITY"
	RecSelectHighestEV         Recommendation = "SELECT_HIGHEST_EV"
)

// EvaluationResult is the structured outcome of one executed step. Results
// are collected append-only; no evaluation observes another's output.
type EvaluationResult struct {
	StepID          string         `json:"step_id"`
	Type            EvaluationType `json:"evaluation_type"`
	Recommendation  Recommendation `json:"recommendation"`
	Rationale       string         `json:"rationale"`
	TargetOfferType string         `json:"target_offer_type,omitempty"`
	DiscountPercent float64        `json:"discount_percent,omitempty"`
	PolicyID        string         `json:"policy_id,omitempty"`
}

// ConfidenceBucket coarsens model confidence for downstream consumers.
type ConfidenceBucket string

const (
	ConfidenceHigh   ConfidenceBucket = "high"
	ConfidenceMedium ConfidenceBucket = "medium"
	ConfidenceLow    ConfidenceBucket = "low"
)

// OfferTypeNone marks the terminal no-offer decision.
const OfferTypeNone = "NONE"

// Decision is the immutable outcome of one arbitration run. Two runs with
// identical inputs and a heuristic plan produce identical Decision values,
// so the struct deliberately carries no timestamps or generated IDs.
type Decision struct {
	SelectedOfferType string             `json:"selected_offer_type"`
	SelectedCabin     string             `json:"selected_cabin,omitempty"`
	FinalPrice        float64            `json:"final_price"`
	DiscountPercent   float64            `json:"discount_percent"`
	ExpectedValue     float64            `json:"expected_value"`
	ConfidenceBucket  ConfidenceBucket   `json:"confidence_bucket"`
	Synthesis         string             `json:"synthesis"`
	PoliciesApplied   []string           `json:"policies_applied"`
	FallbackOffer     *OfferOption       `json:"fallback_offer,omitempty"`
	PlanSource        string             `json:"plan_source,omitempty"`
	PlanStepIDs       []string           `json:"plan_step_ids,omitempty"`
	Results           []EvaluationResult `json:"results,omitempty"`
}

// ResultsByStep indexes the audit results by step ID.
func (d Decision) ResultsByStep() map[string]EvaluationResult {
	indexed := make(map[string]EvaluationResult, len(d.Results))
	for _, r := range d.Results {
		indexed[r.StepID] = r
	}
	return indexed
}

// Suppressed reports whether this is the terminal no-offer decision.
func (d Decision) Suppressed() bool {
	return d.SelectedOfferType == OfferTypeNone
}
