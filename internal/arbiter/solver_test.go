package arbiter

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"upgrade-arbitration/backend/internal/policy"
)

func writePolicyFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policies.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write policy file: %v", err)
	}
	return path
}

func TestSolveWorkedScenario(t *testing.T) {
	// Business has the best EV but shaky confidence; MCE is the safe
	// high-confidence alternative with a medium-sensitivity discount.
	actx := &Context{
		Customer: CustomerSummary{CustomerID: "C1", Segment: "leisure", PriceSensitivity: "medium"},
		Options: []OfferOption{
			{CabinCode: "W", OfferType: "IU_BUSINESS", PBuy: 0.50, BasePrice: 199, Margin: 0.90, Confidence: 0.50, ExpectedValue: 89.55, MaxDiscount: 0.25},
			{CabinCode: "MCE", OfferType: "MCE", PBuy: 0.80, BasePrice: 39, Margin: 0.85, Confidence: 0.95, ExpectedValue: 26.52, MaxDiscount: 0.15},
		},
	}
	plan := Plan{Steps: []EvaluationStep{
		{StepID: "step-1", Type: EvalConfidence},
		{StepID: "step-2", Type: EvalPriceSensitivity},
	}}

	policies := policy.Defaults()
	results := NewWorker(policies).Run(actx, plan)
	decision := NewSolver(policies, false).Solve(actx, results)

	if decision.SelectedOfferType != "MCE" {
		t.Fatalf("expected confidence override to select MCE, got %s", decision.SelectedOfferType)
	}
	if decision.DiscountPercent != 0.05 {
		t.Fatalf("expected 5%% discount, got %.2f", decision.DiscountPercent)
	}
	if math.Abs(decision.FinalPrice-37.05) > 1e-9 {
		t.Fatalf("expected final price 37.05, got %.4f", decision.FinalPrice)
	}
	if decision.ConfidenceBucket != ConfidenceHigh {
		t.Fatalf("expected high confidence bucket, got %s", decision.ConfidenceBucket)
	}
	wantEV := 0.80 * 37.05 * 0.85
	if math.Abs(decision.ExpectedValue-wantEV) > 1e-9 {
		t.Fatalf("expected EV recomputed at final price %.4f, got %.4f", wantEV, decision.ExpectedValue)
	}
	if len(decision.PoliciesApplied) != 1 || decision.PoliciesApplied[0] != "POL-PRICE-002" {
		t.Fatalf("expected PRICE_SENSITIVE_MEDIUM policy applied, got %v", decision.PoliciesApplied)
	}
	if decision.FallbackOffer != nil {
		t.Fatalf("fallback offer must be nil unless configured")
	}
}

func TestSolveGoodwillTrigger(t *testing.T) {
	actx := &Context{
		Customer: CustomerSummary{
			CustomerID:         "C2",
			Segment:            "leisure",
			AnnualRevenue:      60000,
			RecentServiceIssue: ServiceIssue{HadIssue: true, IssueType: "baggage"},
		},
		Options: []OfferOption{
			{CabinCode: "W", OfferType: "IU_BUSINESS", PBuy: 0.5, BasePrice: 199, Margin: 0.9, Confidence: 0.9, ExpectedValue: 89.55, MaxDiscount: 0.25},
		},
	}
	plan := Plan{Steps: []EvaluationStep{{StepID: "step-1", Type: EvalRelationship}}}

	policies := policy.Defaults()
	results := NewWorker(policies).Run(actx, plan)
	decision := NewSolver(policies, false).Solve(actx, results)

	if decision.DiscountPercent != 0.10 {
		t.Fatalf("expected 10%% goodwill discount, got %.2f", decision.DiscountPercent)
	}
	found := false
	for _, id := range decision.PoliciesApplied {
		if id == "POL-GOODWILL-001" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected GOODWILL_RECOVERY policy id in %v", decision.PoliciesApplied)
	}
}

func TestSolveDiscountCeiling(t *testing.T) {
	// Goodwill 10% and high sensitivity 15% combine by ceiling to 15%,
	// then the business segment cap of 10% clamps the result.
	path := writePolicyFile(t, `{
		"segment_caps": {"business": {"max_total_discount": 0.10}}
	}`)
	policies := policy.Load(path)

	actx := &Context{
		Customer: CustomerSummary{
			CustomerID:         "C3",
			Segment:            "business",
			AnnualRevenue:      90000,
			PriceSensitivity:   "high",
			RecentServiceIssue: ServiceIssue{HadIssue: true},
		},
		Options: []OfferOption{
			{CabinCode: "W", OfferType: "IU_BUSINESS", PBuy: 0.5, BasePrice: 200, Margin: 0.9, Confidence: 0.9, ExpectedValue: 90, MaxDiscount: 0.25},
		},
	}
	plan := Plan{Steps: []EvaluationStep{
		{StepID: "step-1", Type: EvalRelationship},
		{StepID: "step-2", Type: EvalPriceSensitivity},
	}}

	results := NewWorker(policies).Run(actx, plan)
	decision := NewSolver(policies, false).Solve(actx, results)

	if decision.DiscountPercent != 0.10 {
		t.Fatalf("expected discount clamped to segment cap 0.10, got %.2f", decision.DiscountPercent)
	}
	if !strings.Contains(decision.Synthesis, "capped") {
		t.Fatalf("expected synthesis to note the clamp, got %q", decision.Synthesis)
	}
	if decision.FinalPrice != 180 {
		t.Fatalf("expected final price 180, got %.2f", decision.FinalPrice)
	}
}

func TestSolveProductCeiling(t *testing.T) {
	actx := &Context{
		Customer: CustomerSummary{CustomerID: "C4", Segment: "leisure", PriceSensitivity: "high"},
		Options: []OfferOption{
			{CabinCode: "MCE", OfferType: "MCE", PBuy: 0.8, BasePrice: 39, Margin: 0.85, Confidence: 0.9, ExpectedValue: 26.52, MaxDiscount: 0.05},
		},
	}
	plan := Plan{Steps: []EvaluationStep{{StepID: "step-1", Type: EvalPriceSensitivity}}}

	policies := policy.Defaults()
	results := NewWorker(policies).Run(actx, plan)
	decision := NewSolver(policies, false).Solve(actx, results)

	if decision.DiscountPercent != 0.05 {
		t.Fatalf("expected discount clamped to product ceiling 0.05, got %.2f", decision.DiscountPercent)
	}
}

func TestSolveNoTriggerNoDiscount(t *testing.T) {
	policies := policy.Defaults()
	engine := NewEngine(HeuristicPlanner{}, policies, false)

	input := Input{
		Customer: CustomerRecord{CustomerID: "C5", Segment: "leisure", CurrentCabin: "Y", PriceSensitivity: "low"},
		Flight:   FlightRecord{FlightNumber: "UA100"},
		Scores: ScoreSet{
			"IU_BUSINESS": {PBuy: 0.6, Confidence: 0.92},
		},
		RecommendedCabins: []string{"W"},
	}

	decision, err := engine.Arbitrate(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.DiscountPercent != 0 {
		t.Fatalf("expected no discount, got %.2f", decision.DiscountPercent)
	}
	if !strings.Contains(decision.Synthesis, "no trade-off concerns") {
		t.Fatalf("expected synthesis to state no trade-off concerns, got %q", decision.Synthesis)
	}
	if len(decision.PoliciesApplied) != 0 {
		t.Fatalf("expected no policies applied, got %v", decision.PoliciesApplied)
	}
}

func TestArbitrateDeterminism(t *testing.T) {
	policies := policy.Defaults()
	engine := NewEngine(HeuristicPlanner{}, policies, false)

	input := Input{
		Customer: CustomerRecord{
			CustomerID:         "C6",
			Segment:            "leisure",
			CurrentCabin:       "Y",
			AnnualRevenue:      60000,
			PriceSensitivity:   "high",
			RecentServiceIssue: ServiceIssue{HadIssue: true, IssueType: "delay"},
		},
		Flight: FlightRecord{FlightNumber: "UA200", HoursToDeparture: 30, CabinInventory: map[string]InventoryPriority{
			"MCE": InventoryHigh,
			"W":   InventoryLow,
		}},
		Scores: ScoreSet{
			"IU_BUSINESS": {PBuy: 0.50, Confidence: 0.50},
			"MCE":         {PBuy: 0.80, Confidence: 0.95},
		},
		RecommendedCabins: []string{"MCE", "W"},
	}

	first, err := engine.Arbitrate(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := engine.Arbitrate(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("identical inputs with heuristic planning must produce identical decisions:\n%+v\n%+v", first, second)
	}
}

func TestSolveFallbackOfferConfigurable(t *testing.T) {
	actx := &Context{
		Customer: CustomerSummary{CustomerID: "C7", Segment: "leisure"},
		Options: []OfferOption{
			{CabinCode: "W", OfferType: "IU_BUSINESS", ExpectedValue: 89.55, Confidence: 0.9, BasePrice: 199, PBuy: 0.5, Margin: 0.9, MaxDiscount: 0.25},
			{CabinCode: "MCE", OfferType: "MCE", ExpectedValue: 26.52, Confidence: 0.95, BasePrice: 39, PBuy: 0.8, Margin: 0.85, MaxDiscount: 0.15},
		},
	}
	plan := Plan{Steps: []EvaluationStep{{StepID: "step-1", Type: EvalEVComparison}}}
	policies := policy.Defaults()
	results := NewWorker(policies).Run(actx, plan)

	withFallback := NewSolver(policies, true).Solve(actx, results)
	if withFallback.FallbackOffer == nil || withFallback.FallbackOffer.OfferType != "MCE" {
		t.Fatalf("expected second-best MCE fallback, got %+v", withFallback.FallbackOffer)
	}

	withoutFallback := NewSolver(policies, false).Solve(actx, results)
	if withoutFallback.FallbackOffer != nil {
		t.Fatalf("expected nil fallback by default, got %+v", withoutFallback.FallbackOffer)
	}
}

func TestSuppressSentinel(t *testing.T) {
	decision := Suppress("customer opted out of upgrade offers")
	if !decision.Suppressed() {
		t.Fatalf("expected suppressed decision")
	}
	if decision.SelectedOfferType != OfferTypeNone {
		t.Fatalf("expected %s, got %s", OfferTypeNone, decision.SelectedOfferType)
	}
	if decision.FinalPrice != 0 || decision.DiscountPercent != 0 || decision.ExpectedValue != 0 {
		t.Fatalf("expected zeroed evaluation fields, got %+v", decision)
	}
	if !strings.Contains(decision.Synthesis, "opted out") {
		t.Fatalf("expected suppression reason in synthesis, got %q", decision.Synthesis)
	}
}

func TestSolveStableTieBreak(t *testing.T) {
	actx := &Context{
		Customer: CustomerSummary{CustomerID: "C8", Segment: "leisure"},
		Options: []OfferOption{
			{CabinCode: "MCE", OfferType: "MCE", ExpectedValue: 50, Confidence: 0.9, BasePrice: 39, PBuy: 0.8, Margin: 0.85, MaxDiscount: 0.15},
			{CabinCode: "W", OfferType: "IU_BUSINESS", ExpectedValue: 50, Confidence: 0.9, BasePrice: 199, PBuy: 0.5, Margin: 0.9, MaxDiscount: 0.25},
		},
	}
	policies := policy.Defaults()
	decision := NewSolver(policies, false).Solve(actx, nil)
	if decision.SelectedOfferType != "MCE" {
		t.Fatalf("ties must break by first occurrence, got %s", decision.SelectedOfferType)
	}
}
