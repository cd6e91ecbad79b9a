package arbiter

import (
	"context"
	"fmt"
)

// Planner proposes which trade-off evaluations to run for a context.
// Implementations must treat the context as read-only.
type Planner interface {
	PlanSteps(ctx context.Context, actx *Context) (Plan, error)
}

// Confidence thresholds shared by the planner and the confidence
// evaluator: a plan only weighs confidence when one option sits below the
// low bar while another clears the high bar.
const (
	lowConfidence  = 0.60
	highConfidence = 0.85
)

// HeuristicPlanner builds the deterministic default plan. It is the
// always-available fallback behind any reasoning-backed planner and the
// planner of record when no reasoner is configured.
type HeuristicPlanner struct{}

// PlanSteps never fails; the heuristic plan is pure and total.
func (HeuristicPlanner) PlanSteps(_ context.Context, actx *Context) (Plan, error) {
	return DefaultPlan(actx), nil
}

// DefaultPlan applies the default planning rules in order, each appending
// at most one step:
//
//  1. two or more options with a confidence spread across the low/high
//     thresholds → CONFIDENCE
//  2. unresolved recent service issue → RELATIONSHIP
//  3. high price sensitivity → PRICE_SENSITIVITY
//  4. nothing appended → a single EV_COMPARISON
//
// The result always holds at least one step.
func DefaultPlan(actx *Context) Plan {
	var steps []EvaluationStep

	appendStep := func(t EvaluationType, description string) {
		steps = append(steps, EvaluationStep{
			StepID:      fmt.Sprintf("step-%d", len(steps)+1),
			Type:        t,
			Description: description,
		})
	}

	if actx != nil {
		if hasConfidenceSpread(actx.Options) {
			appendStep(EvalConfidence, "weigh expected value against model confidence across options")
		}
		if actx.Customer.RecentServiceIssue.HadIssue {
			appendStep(EvalRelationship, "assess relationship risk from the recent service issue")
		}
		if actx.Customer.PriceSensitivity == "high" {
			appendStep(EvalPriceSensitivity, "account for the customer's high price sensitivity")
		}
	}

	if len(steps) == 0 {
		appendStep(EvalEVComparison, "compare expected value across options")
	}

	return Plan{Steps: steps, Source: PlanSourceHeuristic}
}

func hasConfidenceSpread(options []OfferOption) bool {
	if len(options) < 2 {
		return false
	}
	var anyLow, anyHigh bool
	for _, o := range options {
		if o.Confidence < lowConfidence {
			anyLow = true
		}
		if o.Confidence > highConfidence {
			anyHigh = true
		}
	}
	return anyLow && anyHigh
}
