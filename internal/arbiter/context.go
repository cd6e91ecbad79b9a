package arbiter

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// CustomerRecord is the raw customer input supplied by the caller.
type CustomerRecord struct {
	CustomerID         string       `json:"customer_id"`
	Segment            string       `json:"segment"`
	CurrentCabin       string       `json:"current_cabin"`
	LoyaltyTier        string       `json:"loyalty_tier"`
	AnnualRevenue      float64      `json:"annual_revenue"`
	PriceSensitivity   string       `json:"price_sensitivity"`
	RecentServiceIssue ServiceIssue `json:"recent_service_issue"`
}

// FlightRecord is the raw flight and cabin inventory input.
type FlightRecord struct {
	FlightNumber     string                       `json:"flight_number"`
	HoursToDeparture float64                      `json:"hours_to_departure"`
	CabinInventory   map[string]InventoryPriority `json:"cabin_inventory"`
}

// PricePoint is one candidate price with its model-estimated propensity.
type PricePoint struct {
	Price float64 `json:"price"`
	PBuy  float64 `json:"p_buy"`
}

// PropensityScore is the ML scoring output for one offer type.
type PropensityScore struct {
	PBuy        float64      `json:"p_buy"`
	Confidence  float64      `json:"confidence"`
	PricePoints []PricePoint `json:"price_points,omitempty"`
}

// ScoreSet maps offer types to their propensity scores.
type ScoreSet map[string]PropensityScore

// ErrNoOptions signals an input contract violation: the engine requires at
// least one inventory-eligible upgrade path. Callers are expected to run
// their eligibility precheck before invoking arbitration.
var ErrNoOptions = errors.New("no eligible offer options")

// Cold-start defaults used when the scoring service has no record for an
// offer type.
const (
	defaultPBuy       = 0.3
	defaultConfidence = 0.5
)

// cabinRank orders cabins Y < MCE < W < F. Offers are only built for
// cabins strictly above the customer's current cabin.
var cabinRank = map[string]int{
	"Y":   0,
	"MCE": 1,
	"W":   2,
	"F":   3,
}

// offerCatalog holds the product attributes for each upgradeable cabin.
type offerProduct struct {
	OfferType   string
	BasePrice   float64
	Margin      float64
	MaxDiscount float64
}

var offerCatalog = map[string]offerProduct{
	"MCE": {OfferType: "MCE", BasePrice: 39, Margin: 0.85, MaxDiscount: 0.15},
	"W":   {OfferType: "IU_BUSINESS", BasePrice: 199, Margin: 0.90, MaxDiscount: 0.25},
	"F":   {OfferType: "IU_FIRST", BasePrice: 399, Margin: 0.90, MaxDiscount: 0.25},
}

// BuildContext assembles the normalized arbitration context from raw
// inputs: one OfferOption per recommended cabin that sits strictly above
// the customer's current cabin, each carrying propensity, confidence,
// price, margin, and expected value.
//
// Returns ErrNoOptions when the recommended list is empty or every cabin
// was filtered out; that is a caller contract violation, not an engine
// failure.
func BuildContext(customer CustomerRecord, flight FlightRecord, scores ScoreSet, recommended []string) (*Context, error) {
	if len(recommended) == 0 {
		return nil, ErrNoOptions
	}

	currentRank, ok := cabinRank[customer.CurrentCabin]
	if !ok {
		// Unknown current cabin is treated as economy, the lowest rank.
		currentRank = cabinRank["Y"]
	}

	options := make([]OfferOption, 0, len(recommended))
	for _, cabin := range recommended {
		rank, known := cabinRank[cabin]
		if !known || rank <= currentRank {
			logrus.WithFields(logrus.Fields{
				"cabin":         cabin,
				"current_cabin": customer.CurrentCabin,
			}).Debug("skipping cabin outside upgrade hierarchy")
			continue
		}

		product, found := offerCatalog[cabin]
		if !found {
			continue
		}

		priority := InventoryMedium
		if p, exists := flight.CabinInventory[cabin]; exists {
			priority = p
		}
		if priority == InventorySoldOut {
			continue
		}

		option := buildOption(cabin, product, priority, scores)
		options = append(options, option)
	}

	if len(options) == 0 {
		return nil, fmt.Errorf("%w: no recommended cabin above %q", ErrNoOptions, customer.CurrentCabin)
	}

	return &Context{
		Customer: CustomerSummary{
			CustomerID:         customer.CustomerID,
			Segment:            customer.Segment,
			CurrentCabin:       customer.CurrentCabin,
			LoyaltyTier:        customer.LoyaltyTier,
			AnnualRevenue:      customer.AnnualRevenue,
			PriceSensitivity:   customer.PriceSensitivity,
			RecentServiceIssue: customer.RecentServiceIssue,
		},
		Options:          options,
		HoursToDeparture: flight.HoursToDeparture,
	}, nil
}

func buildOption(cabin string, product offerProduct, priority InventoryPriority, scores ScoreSet) OfferOption {
	pBuy := defaultPBuy
	confidence := defaultConfidence
	price := product.BasePrice

	score, scored := scores[product.OfferType]
	if scored {
		pBuy = clamp01(score.PBuy)
		confidence = clamp01(score.Confidence)
		if best, ok := bestPricePoint(score.PricePoints, product.Margin); ok {
			price = best.Price
			pBuy = clamp01(best.PBuy)
		}
	}

	return OfferOption{
		CabinCode:         cabin,
		OfferType:         product.OfferType,
		PBuy:              pBuy,
		Confidence:        confidence,
		BasePrice:         price,
		Margin:            product.Margin,
		ExpectedValue:     ExpectedValue(pBuy, price, product.Margin),
		MaxDiscount:       product.MaxDiscount,
		InventoryPriority: priority,
	}
}

// bestPricePoint picks the price point maximizing p_buy(price) × price ×
// margin. Returns false when the table is empty or holds no usable entry.
func bestPricePoint(points []PricePoint, margin float64) (PricePoint, bool) {
	var best PricePoint
	bestEV := -1.0
	for _, point := range points {
		if point.Price <= 0 {
			continue
		}
		ev := ExpectedValue(clamp01(point.PBuy), point.Price, margin)
		if ev > bestEV {
			best = point
			bestEV = ev
		}
	}
	return best, bestEV >= 0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
