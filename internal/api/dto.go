package api

import (
	"encoding/json"
	"time"

	"upgrade-arbitration/backend/internal/arbiter"
	"upgrade-arbitration/backend/internal/store"
)

// ServiceIssueDTO mirrors the customer's recent service incident.
type ServiceIssueDTO struct {
	HadIssue  bool   `json:"had_issue"`
	IssueType string `json:"issue_type"`
	Sentiment string `json:"sentiment"`
}

// CustomerDTO carries the raw customer record. Validation enforces the
// caller contract before the engine is invoked.
type CustomerDTO struct {
	CustomerID         string          `json:"customer_id" validate:"required"`
	Segment            string          `json:"segment"`
	CurrentCabin       string          `json:"current_cabin" validate:"required,oneof=Y MCE W F"`
	LoyaltyTier        string          `json:"loyalty_tier"`
	AnnualRevenue      float64         `json:"annual_revenue" validate:"gte=0"`
	PriceSensitivity   string          `json:"price_sensitivity" validate:"omitempty,oneof=high medium low"`
	RecentServiceIssue ServiceIssueDTO `json:"recent_service_issue"`
}

// FlightDTO carries the raw flight and cabin inventory record.
type FlightDTO struct {
	FlightNumber     string            `json:"flight_number" validate:"required"`
	HoursToDeparture float64           `json:"hours_to_departure" validate:"gte=0"`
	CabinInventory   map[string]string `json:"cabin_inventory" validate:"dive,oneof=high medium low sold_out"`
}

// PricePointDTO is one candidate price with its propensity.
type PricePointDTO struct {
	Price float64 `json:"price" validate:"gt=0"`
	PBuy  float64 `json:"p_buy" validate:"gte=0,lte=1"`
}

// ScoreDTO is the ML propensity score for one offer type.
type ScoreDTO struct {
	PBuy        float64         `json:"p_buy" validate:"gte=0,lte=1"`
	Confidence  float64         `json:"confidence" validate:"gte=0,lte=1"`
	PricePoints []PricePointDTO `json:"price_points" validate:"omitempty,dive"`
}

// ArbitrateRequest is the full arbitration invocation payload. An empty
// recommended-cabins list or a negative price is a contract violation
// rejected with 400 before the engine runs.
type ArbitrateRequest struct {
	Customer          CustomerDTO         `json:"customer" validate:"required"`
	Flight            FlightDTO           `json:"flight" validate:"required"`
	Scores            map[string]ScoreDTO `json:"scores" validate:"omitempty,dive"`
	RecommendedCabins []string            `json:"recommended_cabins" validate:"min=1,dive,required"`
	ForceHeuristic    bool                `json:"force_heuristic"`
}

// SuppressRequest enters the terminal no-offer path with a reason.
type SuppressRequest struct {
	Customer CustomerDTO `json:"customer" validate:"required"`
	Flight   FlightDTO   `json:"flight" validate:"required"`
	Reason   string      `json:"reason" validate:"required"`
}

// DecisionDTO is the API representation of a decision plus its audit
// identifiers.
type DecisionDTO struct {
	RunID     string           `json:"run_id"`
	Decision  arbiter.Decision `json:"decision"`
	CreatedAt time.Time        `json:"created_at"`
}

// DecisionRecordDTO is the persisted audit view returned by the listing
// endpoints.
type DecisionRecordDTO struct {
	RunID             string                     `json:"run_id"`
	CustomerID        string                     `json:"customer_id"`
	FlightNumber      string                     `json:"flight_number"`
	SelectedOfferType string                     `json:"selected_offer_type"`
	SelectedCabin     string                     `json:"selected_cabin,omitempty"`
	FinalPrice        float64                    `json:"final_price"`
	DiscountPercent   float64                    `json:"discount_percent"`
	ExpectedValue     float64                    `json:"expected_value"`
	ConfidenceBucket  string                     `json:"confidence_bucket"`
	Synthesis         string                     `json:"synthesis"`
	PoliciesApplied   []string                   `json:"policies_applied"`
	PlanSource        string                     `json:"plan_source,omitempty"`
	PlanStepIDs       []string                   `json:"plan_step_ids,omitempty"`
	StepResults       []arbiter.EvaluationResult `json:"step_results,omitempty"`
	Suppressed        bool                       `json:"suppressed"`
	CreatedAt         time.Time                  `json:"created_at"`
}

// DecisionListResponse pages through persisted decisions.
type DecisionListResponse struct {
	Items []DecisionRecordDTO `json:"items"`
	Total int64               `json:"total"`
}

func (r ArbitrateRequest) toInput() arbiter.Input {
	scores := make(arbiter.ScoreSet, len(r.Scores))
	for offerType, s := range r.Scores {
		points := make([]arbiter.PricePoint, 0, len(s.PricePoints))
		for _, p := range s.PricePoints {
			points = append(points, arbiter.PricePoint{Price: p.Price, PBuy: p.PBuy})
		}
		scores[offerType] = arbiter.PropensityScore{
			PBuy:        s.PBuy,
			Confidence:  s.Confidence,
			PricePoints: points,
		}
	}

	inventory := make(map[string]arbiter.InventoryPriority, len(r.Flight.CabinInventory))
	for cabin, priority := range r.Flight.CabinInventory {
		inventory[cabin] = arbiter.InventoryPriority(priority)
	}

	return arbiter.Input{
		Customer: arbiter.CustomerRecord{
			CustomerID:       r.Customer.CustomerID,
			Segment:          r.Customer.Segment,
			CurrentCabin:     r.Customer.CurrentCabin,
			LoyaltyTier:      r.Customer.LoyaltyTier,
			AnnualRevenue:    r.Customer.AnnualRevenue,
			PriceSensitivity: r.Customer.PriceSensitivity,
			RecentServiceIssue: arbiter.ServiceIssue{
				HadIssue:  r.Customer.RecentServiceIssue.HadIssue,
				IssueType: r.Customer.RecentServiceIssue.IssueType,
				Sentiment: r.Customer.RecentServiceIssue.Sentiment,
			},
		},
		Flight: arbiter.FlightRecord{
			FlightNumber:     r.Flight.FlightNumber,
			HoursToDeparture: r.Flight.HoursToDeparture,
			CabinInventory:   inventory,
		},
		Scores:            scores,
		RecommendedCabins: r.RecommendedCabins,
	}
}

func newDecisionRecord(runID, customerID, flightNumber string, decision arbiter.Decision) *store.DecisionRecord {
	return &store.DecisionRecord{
		RunID:             runID,
		CustomerID:        customerID,
		FlightNumber:      flightNumber,
		SelectedOfferType: decision.SelectedOfferType,
		SelectedCabin:     decision.SelectedCabin,
		FinalPrice:        decision.FinalPrice,
		DiscountPercent:   decision.DiscountPercent,
		ExpectedValue:     decision.ExpectedValue,
		ConfidenceBucket:  string(decision.ConfidenceBucket),
		Synthesis:         decision.Synthesis,
		PoliciesApplied:   marshalJSON(decision.PoliciesApplied),
		PlanSource:        decision.PlanSource,
		PlanStepIDs:       marshalJSON(decision.PlanStepIDs),
		StepResults:       marshalJSON(decision.Results),
		Suppressed:        decision.Suppressed(),
	}
}

func recordToDTO(record store.DecisionRecord) DecisionRecordDTO {
	dto := DecisionRecordDTO{
		RunID:             record.RunID,
		CustomerID:        record.CustomerID,
		FlightNumber:      record.FlightNumber,
		SelectedOfferType: record.SelectedOfferType,
		SelectedCabin:     record.SelectedCabin,
		FinalPrice:        record.FinalPrice,
		DiscountPercent:   record.DiscountPercent,
		ExpectedValue:     record.ExpectedValue,
		ConfidenceBucket:  record.ConfidenceBucket,
		Synthesis:         record.Synthesis,
		PlanSource:        record.PlanSource,
		Suppressed:        record.Suppressed,
		CreatedAt:         record.CreatedAt,
	}
	_ = json.Unmarshal([]byte(record.PoliciesApplied), &dto.PoliciesApplied)
	_ = json.Unmarshal([]byte(record.PlanStepIDs), &dto.PlanStepIDs)
	_ = json.Unmarshal([]byte(record.StepResults), &dto.StepResults)
	if dto.PoliciesApplied == nil {
		dto.PoliciesApplied = []string{}
	}
	return dto
}

func marshalJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(data)
}
