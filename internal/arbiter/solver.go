package arbiter

import (
	"fmt"
	"strings"

	"upgrade-arbitration/backend/internal/policy"
)

// Solver synthesizes all evaluation results into one Decision.
type Solver struct {
	policies *policy.Store

	// IncludeFallbackOffer controls whether the second-best option is
	// attached to the decision. Off by default to match the established
	// behavior of this arbitration variant.
	IncludeFallbackOffer bool
}

// NewSolver builds a solver reading segment caps from the injected policy
// store.
func NewSolver(policies *policy.Store, includeFallback bool) *Solver {
	return &Solver{policies: policies, IncludeFallbackOffer: includeFallback}
}

// Solve selects the final offer, applies and caps discounts, recomputes
// price and expected value, and emits the human-auditable synthesis. It
// never fails on valid input with at least one option.
func (s *Solver) Solve(actx *Context, results []EvaluationResult) Decision {
	selected := bestByEV(actx.Options)

	discount := 0.0
	policiesApplied := make([]string, 0, len(results))
	var notes []string

	for _, result := range results {
		if result.Rationale != "" {
			notes = append(notes, result.Rationale)
		}
		switch result.Recommendation {
		case RecChooseSafer:
			if safer, ok := optionByOfferType(actx.Options, result.TargetOfferType); ok {
				selected = safer
			}
		case RecApplyGoodwillDiscount, RecApplyDiscount, RecSmallDiscountOptional:
			if result.DiscountPercent > discount {
				discount = result.DiscountPercent
			}
			if result.PolicyID != "" {
				policiesApplied = append(policiesApplied, result.PolicyID)
			}
		}
	}

	maxAllowed := s.policies.SegmentCap(actx.Customer.Segment)
	if selected.MaxDiscount < maxAllowed {
		maxAllowed = selected.MaxDiscount
	}
	if discount > maxAllowed {
		notes = append(notes, fmt.Sprintf(
			"discount capped at %.0f%% by segment and product ceilings (recommended %.0f%%)",
			maxAllowed*100, discount*100))
		discount = maxAllowed
	}

	finalPrice := selected.BasePrice * (1 - discount)
	finalEV := ExpectedValue(selected.PBuy, finalPrice, selected.Margin)

	synthesis := strings.Join(notes, "; ")
	if synthesis == "" {
		synthesis = "selected highest expected value offer; no trade-off concerns"
	}

	decision := Decision{
		SelectedOfferType: selected.OfferType,
		SelectedCabin:     selected.CabinCode,
		FinalPrice:        finalPrice,
		DiscountPercent:   discount,
		ExpectedValue:     finalEV,
		ConfidenceBucket:  bucketConfidence(selected.Confidence),
		Synthesis:         synthesis,
		PoliciesApplied:   policiesApplied,
		Results:           results,
	}

	if s.IncludeFallbackOffer {
		if fallback, ok := secondBestByEV(actx.Options, selected.OfferType); ok {
			decision.FallbackOffer = &fallback
		}
	}

	return decision
}

// Suppress produces the terminal no-offer decision with the suppression
// reason in the synthesis trail. The caller enters this path when the
// customer is ineligible or no inventory qualifies.
func Suppress(reason string) Decision {
	if reason == "" {
		reason = "no eligible upgrade offer"
	}
	return Decision{
		SelectedOfferType: OfferTypeNone,
		ConfidenceBucket:  ConfidenceLow,
		Synthesis:         reason,
		PoliciesApplied:   []string{},
	}
}

func bucketConfidence(confidence float64) ConfidenceBucket {
	switch {
	case confidence > highConfidence:
		return ConfidenceHigh
	case confidence > lowConfidence:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func optionByOfferType(options []OfferOption, offerType string) (OfferOption, bool) {
	for _, o := range options {
		if o.OfferType == offerType {
			return o, true
		}
	}
	return OfferOption{}, false
}

// secondBestByEV returns the highest-EV option other than the selected
// one.
func secondBestByEV(options []OfferOption, selectedType string) (OfferOption, bool) {
	var best OfferOption
	found := false
	for _, o := range options {
		if o.OfferType == selectedType {
			continue
		}
		if !found || o.ExpectedValue > best.ExpectedValue {
			best = o
			found = true
		}
	}
	return best, found
}
