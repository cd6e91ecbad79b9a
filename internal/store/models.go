package store

import "time"

// DecisionRecord is the persisted audit trail of one arbitration run.
// The structured audit payloads (policies, step results) are stored as
// JSON columns; the record is written once and never updated.
type DecisionRecord struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	RunID             string    `gorm:"size:64;uniqueIndex" json:"run_id"`
	CustomerID        string    `gorm:"size:64;index" json:"customer_id"`
	FlightNumber      string    `gorm:"size:16;index" json:"flight_number"`
	SelectedOfferType string    `gorm:"size:32" json:"selected_offer_type"`
	SelectedCabin     string    `gorm:"size:8" json:"selected_cabin"`
	FinalPrice        float64   `json:"final_price"`
	DiscountPercent   float64   `json:"discount_percent"`
	ExpectedValue     float64   `json:"expected_value"`
	ConfidenceBucket  string    `gorm:"size:8" json:"confidence_bucket"`
	Synthesis         string    `json:"synthesis"`
	PoliciesApplied   string    `json:"policies_applied"`
	PlanSource        string    `gorm:"size:16" json:"plan_source"`
	PlanStepIDs       string    `json:"plan_step_ids"`
	StepResults       string    `json:"step_results"`
	Suppressed        bool      `gorm:"index" json:"suppressed"`
	CreatedAt         time.Time `json:"created_at"`
}
