package arbiter

import (
	"errors"
	"math"
	"testing"
)

func TestBuildContextCabinHierarchy(t *testing.T) {
	tests := []struct {
		name         string
		currentCabin string
		recommended  []string
		wantCabins   []string
		wantErr      bool
	}{
		{"economy sees all upgrades", "Y", []string{"MCE", "W", "F"}, []string{"MCE", "W", "F"}, false},
		{"mce passenger skips mce", "MCE", []string{"MCE", "W"}, []string{"W"}, false},
		{"business passenger only first", "W", []string{"MCE", "W", "F"}, []string{"F"}, false},
		{"first passenger has nothing", "F", []string{"MCE", "W", "F"}, nil, true},
		{"empty recommended list", "Y", nil, nil, true},
		{"unknown cabin ignored", "Y", []string{"XX", "MCE"}, []string{"MCE"}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			customer := CustomerRecord{CustomerID: "C1", CurrentCabin: tc.currentCabin}
			actx, err := BuildContext(customer, FlightRecord{}, nil, tc.recommended)
			if tc.wantErr {
				if !errors.Is(err, ErrNoOptions) {
					t.Fatalf("expected ErrNoOptions, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(actx.Options) != len(tc.wantCabins) {
				t.Fatalf("expected %d options, got %d", len(tc.wantCabins), len(actx.Options))
			}
			for i, cabin := range tc.wantCabins {
				if actx.Options[i].CabinCode != cabin {
					t.Fatalf("option %d: expected cabin %s, got %s", i, cabin, actx.Options[i].CabinCode)
				}
			}
		})
	}
}

func TestBuildContextColdStartDefaults(t *testing.T) {
	actx, err := BuildContext(CustomerRecord{CustomerID: "C1", CurrentCabin: "Y"}, FlightRecord{}, nil, []string{"W"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	opt := actx.Options[0]
	if opt.PBuy != 0.3 || opt.Confidence != 0.5 {
		t.Fatalf("expected cold-start defaults p_buy=0.3 confidence=0.5, got %.2f/%.2f", opt.PBuy, opt.Confidence)
	}
	if opt.BasePrice != 199 {
		t.Fatalf("expected default base price 199, got %.2f", opt.BasePrice)
	}
	wantEV := 0.3 * 199 * 0.90
	if math.Abs(opt.ExpectedValue-wantEV) > 1e-9 {
		t.Fatalf("expected EV %.4f, got %.4f", wantEV, opt.ExpectedValue)
	}
}

func TestBuildContextPricePointSelection(t *testing.T) {
	scores := ScoreSet{
		"IU_BUSINESS": {
			PBuy:       0.50,
			Confidence: 0.70,
			PricePoints: []PricePoint{
				{Price: 199, PBuy: 0.50}, // EV 89.55
				{Price: 249, PBuy: 0.45}, // EV 100.85
				{Price: 299, PBuy: 0.30}, // EV 80.73
			},
		},
	}

	actx, err := BuildContext(CustomerRecord{CustomerID: "C1", CurrentCabin: "Y"}, FlightRecord{}, scores, []string{"W"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	opt := actx.Options[0]
	if opt.BasePrice != 249 {
		t.Fatalf("expected EV-maximizing price point 249, got %.2f", opt.BasePrice)
	}
	if opt.PBuy != 0.45 {
		t.Fatalf("expected price point propensity 0.45, got %.2f", opt.PBuy)
	}
	wantEV := 0.45 * 249 * 0.90
	if math.Abs(opt.ExpectedValue-wantEV) > 1e-9 {
		t.Fatalf("expected EV %.4f, got %.4f", wantEV, opt.ExpectedValue)
	}
}

func TestBuildContextSoldOutCabinSkipped(t *testing.T) {
	flight := FlightRecord{CabinInventory: map[string]InventoryPriority{
		"W": InventorySoldOut,
		"F": InventoryHigh,
	}}
	actx, err := BuildContext(CustomerRecord{CustomerID: "C1", CurrentCabin: "Y"}, flight, nil, []string{"W", "F"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(actx.Options) != 1 || actx.Options[0].CabinCode != "F" {
		t.Fatalf("expected only F to survive, got %+v", actx.Options)
	}
	if actx.Options[0].InventoryPriority != InventoryHigh {
		t.Fatalf("expected high inventory priority, got %s", actx.Options[0].InventoryPriority)
	}
}

func TestExpectedValueFormula(t *testing.T) {
	tests := []struct {
		name                string
		pBuy, price, margin float64
		want                float64
	}{
		{"worked example business", 0.50, 199, 0.90, 89.55},
		{"worked example mce", 0.80, 39, 0.85, 26.52},
		{"zero propensity", 0, 500, 0.9, 0},
		{"negative price clamps to zero", 0.5, -10, 0.9, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ExpectedValue(tc.pBuy, tc.price, tc.margin)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("expected %.4f, got %.4f", tc.want, got)
			}
			if got < 0 {
				t.Fatalf("expected value must never be negative, got %.4f", got)
			}
		})
	}
}

func TestRepriceRecomputesEV(t *testing.T) {
	opt := OfferOption{PBuy: 0.8, BasePrice: 39, Margin: 0.85, ExpectedValue: 26.52}
	repriced := opt.Reprice(37.05)
	want := 0.8 * 37.05 * 0.85
	if math.Abs(repriced.ExpectedValue-want) > 1e-9 {
		t.Fatalf("expected EV %.4f after reprice, got %.4f", want, repriced.ExpectedValue)
	}
	if opt.BasePrice != 39 {
		t.Fatalf("reprice must not mutate the receiver")
	}
}
