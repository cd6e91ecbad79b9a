package arbiter

import (
	"fmt"
	"strings"
	"sync"

	"upgrade-arbitration/backend/internal/policy"
)

// goodwillRevenueThreshold is the annual value above which a recent
// service issue earns a goodwill discount rather than plain caution.
const goodwillRevenueThreshold = 50000.0

// Worker executes the plan's evaluation steps. Every evaluator is a pure
// function of the context; steps share no state and run concurrently.
type Worker struct {
	policies *policy.Store
}

// NewWorker builds a worker reading pre-approved discounts from the
// injected policy store.
func NewWorker(policies *policy.Store) *Worker {
	return &Worker{policies: policies}
}

// Run evaluates every step of the plan and returns one result per step,
// in plan order regardless of completion order.
func (w *Worker) Run(actx *Context, plan Plan) []EvaluationResult {
	results := make([]EvaluationResult, len(plan.Steps))
	var wg sync.WaitGroup
	for i, step := range plan.Steps {
		wg.Add(1)
		go func(i int, step EvaluationStep) {
			defer wg.Done()
			results[i] = w.evaluate(actx, step)
		}(i, step)
	}
	wg.Wait()
	return results
}

func (w *Worker) evaluate(actx *Context, step EvaluationStep) EvaluationResult {
	result := EvaluationResult{StepID: step.StepID, Type: step.Type}
	switch step.Type {
	case EvalConfidence:
		evaluateConfidence(actx, &result)
	case EvalRelationship:
		w.evaluateRelationship(actx, &result)
	case EvalPriceSensitivity:
		w.evaluatePriceSensitivity(actx, &result)
	case EvalInventory:
		evaluateInventory(actx, &result)
	case EvalEVComparison:
		evaluateEVComparison(actx, &result)
	default:
		// Unreachable: plan parsing rejects unknown types.
		result.Recommendation = RecNoConcern
		result.Rationale = "no evaluator for step"
	}
	return result
}

// evaluateConfidence flags the case where the best-EV option rests on a
// shaky propensity estimate while a high-confidence alternative exists.
func evaluateConfidence(actx *Context, result *EvaluationResult) {
	bestEV := bestByEV(actx.Options)
	bestConf := bestByConfidence(actx.Options)

	if bestEV.Confidence < lowConfidence && bestConf.Confidence > highConfidence {
		result.Recommendation = RecChooseSafer
		result.TargetOfferType = bestConf.OfferType
		result.Rationale = fmt.Sprintf(
			"best EV offer %s has low confidence %.2f; safer to offer %s with confidence %.2f",
			bestEV.OfferType, bestEV.Confidence, bestConf.OfferType, bestConf.Confidence)
		return
	}

	result.Recommendation = RecProceedWithBestEV
	result.Rationale = fmt.Sprintf("confidence acceptable; proceeding with best EV offer %s", bestEV.OfferType)
}

// evaluateRelationship weighs a recent service issue against the
// customer's annual value.
func (w *Worker) evaluateRelationship(actx *Context, result *EvaluationResult) {
	issue := actx.Customer.RecentServiceIssue
	if !issue.HadIssue {
		result.Recommendation = RecNoConcern
		result.Rationale = "no recent service issues on record"
		return
	}

	if actx.Customer.AnnualRevenue > goodwillRevenueThreshold {
		p, _ := w.policies.Lookup(policy.GoodwillRecovery)
		result.Recommendation = RecApplyGoodwillDiscount
		result.DiscountPercent = p.DiscountPercent
		result.PolicyID = p.PolicyID
		result.Rationale = fmt.Sprintf(
			"recent %s issue for a $%.0f/yr customer; applying %.0f%% goodwill discount",
			issueLabel(issue), actx.Customer.AnnualRevenue, p.DiscountPercent*100)
		return
	}

	result.Recommendation = RecProceedWithCaution
	result.Rationale = "recent service issue noted; customer value below goodwill threshold, no discount"
}

// evaluatePriceSensitivity maps the customer's price sensitivity to a
// pre-approved discount policy.
func (w *Worker) evaluatePriceSensitivity(actx *Context, result *EvaluationResult) {
	switch actx.Customer.PriceSensitivity {
	case "high":
		p, _ := w.policies.Lookup(policy.PriceSensitiveHigh)
		result.Recommendation = RecApplyDiscount
		result.DiscountPercent = p.DiscountPercent
		result.PolicyID = p.PolicyID
		result.Rationale = fmt.Sprintf("high price sensitivity; applying %.0f%% discount", p.DiscountPercent*100)
	case "medium":
		p, _ := w.policies.Lookup(policy.PriceSensitiveMedium)
		result.Recommendation = RecSmallDiscountOptional
		result.DiscountPercent = p.DiscountPercent
		result.PolicyID = p.PolicyID
		result.Rationale = fmt.Sprintf("medium price sensitivity; small %.0f%% discount recommended", p.DiscountPercent*100)
	default:
		p, _ := w.policies.Lookup(policy.NoDiscount)
		result.Recommendation = RecNoDiscount
		result.PolicyID = p.PolicyID
		result.Rationale = "low price sensitivity; no discount needed"
	}
}

// evaluateInventory is informational: it flags cabins with urgent unsold
// capacity but never changes price or selection by itself.
func evaluateInventory(actx *Context, result *EvaluationResult) {
	var urgent []string
	for _, o := range actx.Options {
		if o.InventoryPriority == InventoryHigh {
			urgent = append(urgent, o.CabinCode)
		}
	}
	if len(urgent) > 0 {
		result.Recommendation = RecPrioritizeHighInventory
		result.Rationale = fmt.Sprintf("high unsold inventory in %s", strings.Join(urgent, ", "))
		return
	}
	result.Recommendation = RecNoPriority
	result.Rationale = "no inventory urgency"
}

// evaluateEVComparison names the highest-EV option; used when no
// trade-off was flagged during planning.
func evaluateEVComparison(actx *Context, result *EvaluationResult) {
	best := bestByEV(actx.Options)
	result.Recommendation = RecSelectHighestEV
	result.TargetOfferType = best.OfferType
	result.Rationale = fmt.Sprintf(
		"selected highest EV offer %s ($%.2f expected); no trade-off concerns", best.OfferType, best.ExpectedValue)
}

// bestByEV returns the option with the highest expected value, first
// occurrence winning ties.
func bestByEV(options []OfferOption) OfferOption {
	best := options[0]
	for _, o := range options[1:] {
		if o.ExpectedValue > best.ExpectedValue {
			best = o
		}
	}
	return best
}

// bestByConfidence returns the option with the highest confidence, first
// occurrence winning ties.
func bestByConfidence(options []OfferOption) OfferOption {
	best := options[0]
	for _, o := range options[1:] {
		if o.Confidence > best.Confidence {
			best = o
		}
	}
	return best
}

func issueLabel(issue ServiceIssue) string {
	if issue.IssueType == "" {
		return "service"
	}
	return issue.IssueType
}
