package policy

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultsTable(t *testing.T) {
	store := Defaults()

	tests := []struct {
		name         string
		wantDiscount float64
	}{
		{GoodwillRecovery, 0.10},
		{PriceSensitiveHigh, 0.15},
		{PriceSensitiveMedium, 0.05},
		{NoDiscount, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, ok := store.Lookup(tc.name)
			if !ok {
				t.Fatalf("expected built-in policy %s", tc.name)
			}
			if p.DiscountPercent != tc.wantDiscount {
				t.Fatalf("expected %.2f, got %.2f", tc.wantDiscount, p.DiscountPercent)
			}
			if p.PolicyID == "" {
				t.Fatalf("built-in policy %s has no id", tc.name)
			}
		})
	}
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	store := Load(filepath.Join(t.TempDir(), "missing.json"))
	if _, ok := store.Lookup(GoodwillRecovery); !ok {
		t.Fatalf("expected defaults when config file is missing")
	}
	if cap := store.SegmentCap("anything"); cap != DefaultSegmentCap {
		t.Fatalf("expected default segment cap %.2f, got %.2f", DefaultSegmentCap, cap)
	}
}

func TestLoadMalformedFileFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	store := Load(path)
	if _, ok := store.Lookup(PriceSensitiveHigh); !ok {
		t.Fatalf("expected defaults when config file is malformed")
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policies.json")
	content := `{
		"policies": {
			"GOODWILL_RECOVERY": {"policy_id": "POL-G-9", "discount_percent": 0.12},
			"BROKEN": {"policy_id": "", "discount_percent": 0.5},
			"TOO_BIG": {"policy_id": "POL-X", "discount_percent": 1.5}
		},
		"segment_caps": {
			"business": {"max_total_discount": 0.10},
			"bogus": {"max_total_discount": -1}
		}
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	store := Load(path)

	p, ok := store.Lookup(GoodwillRecovery)
	if !ok || p.PolicyID != "POL-G-9" || p.DiscountPercent != 0.12 {
		t.Fatalf("expected file to override goodwill policy, got %+v", p)
	}
	if _, ok := store.Lookup("BROKEN"); ok {
		t.Fatalf("invalid entries must be ignored")
	}
	if _, ok := store.Lookup("TOO_BIG"); ok {
		t.Fatalf("out-of-range discounts must be ignored")
	}
	if _, ok := store.Lookup(PriceSensitiveMedium); !ok {
		t.Fatalf("defaults must survive a partial config")
	}
	if cap := store.SegmentCap("business"); cap != 0.10 {
		t.Fatalf("expected explicit business cap 0.10, got %.2f", cap)
	}
	if cap := store.SegmentCap("bogus"); cap != DefaultSegmentCap {
		t.Fatalf("invalid caps must fall back to the default, got %.2f", cap)
	}
}

func TestLookupUnknownPolicy(t *testing.T) {
	store := Defaults()
	if _, ok := store.Lookup("NOT_A_POLICY"); ok {
		t.Fatalf("unknown policy names must report ok=false")
	}
}
