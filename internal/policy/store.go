package policy

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Pre-approved discount policy names.
const (
	GoodwillRecovery     = "GOODWILL_RECOVERY"
	PriceSensitiveHigh   = "PRICE_SENSITIVE_HIGH"
	PriceSensitiveMedium = "PRICE_SENSITIVE_MEDIUM"
	NoDiscount           = "NO_DISCOUNT"
)

// DefaultSegmentCap applies to any segment without an explicit cap.
const DefaultSegmentCap = 0.20

// Policy is one pre-approved discount.
type Policy struct {
	PolicyID        string  `json:"policy_id"`
	DiscountPercent float64 `json:"discount_percent"`
}

type segmentCap struct {
	MaxTotalDiscount float64 `json:"max_total_discount"`
}

type configFile struct {
	Policies    map[string]Policy     `json:"policies"`
	SegmentCaps map[string]segmentCap `json:"segment_caps"`
}

// Store holds pre-approved discount policies and per-segment discount
// caps. It is read-only after construction and safe to share across
// concurrent arbitration runs.
type Store struct {
	policies    map[string]Policy
	segmentCaps map[string]float64
}

// Defaults returns the built-in policy table used when no configuration
// file is available.
func Defaults() *Store {
	return &Store{
		policies: map[string]Policy{
			GoodwillRecovery:     {PolicyID: "POL-GOODWILL-001", DiscountPercent: 0.10},
			PriceSensitiveHigh:   {PolicyID: "POL-PRICE-001", DiscountPercent: 0.15},
			PriceSensitiveMedium: {PolicyID: "POL-PRICE-002", DiscountPercent: 0.05},
			NoDiscount:           {PolicyID: "POL-NONE-000", DiscountPercent: 0},
		},
		segmentCaps: map[string]float64{},
	}
}

// Load reads the policy configuration at path and merges valid entries
// over the built-in defaults. A missing or unreadable file, or a file with
// partially invalid entries, never blocks decision-making: the defaults
// fill every gap and the degradation is logged.
func Load(path string) *Store {
	store := Defaults()
	if path == "" {
		return store
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		logrus.WithError(err).WithField("path", path).Warn("policy config unreadable, using built-in defaults")
		return store
	}

	var cfg configFile
	if err := json.Unmarshal(data, &cfg); err != nil {
		logrus.WithError(err).WithField("path", path).Warn("policy config malformed, using built-in defaults")
		return store
	}

	for name, p := range cfg.Policies {
		if p.PolicyID == "" || p.DiscountPercent < 0 || p.DiscountPercent > 1 {
			logrus.WithField("policy", name).Warn("ignoring invalid policy entry")
			continue
		}
		store.policies[name] = p
	}
	for segment, sc := range cfg.SegmentCaps {
		if sc.MaxTotalDiscount < 0 || sc.MaxTotalDiscount > 1 {
			logrus.WithField("segment", segment).Warn("ignoring invalid segment cap")
			continue
		}
		store.segmentCaps[segment] = sc.MaxTotalDiscount
	}

	logrus.WithFields(logrus.Fields{
		"path":         path,
		"policies":     len(store.policies),
		"segment_caps": len(store.segmentCaps),
	}).Info("loaded discount policy configuration")
	return store
}

// Lookup returns the named policy. Unknown names report ok=false; callers
// treat that as a zero discount rather than an error.
func (s *Store) Lookup(name string) (Policy, bool) {
	if s == nil {
		return Policy{}, false
	}
	p, ok := s.policies[name]
	return p, ok
}

// SegmentCap returns the maximum cumulative discount for a segment,
// falling back to DefaultSegmentCap when the segment has no explicit cap.
func (s *Store) SegmentCap(segment string) float64 {
	if s == nil {
		return DefaultSegmentCap
	}
	if c, ok := s.segmentCaps[segment]; ok {
		return c
	}
	return DefaultSegmentCap
}

// Policies returns a copy of the active policy table, keyed by name.
func (s *Store) Policies() map[string]Policy {
	if s == nil {
		return nil
	}
	out := make(map[string]Policy, len(s.policies))
	for name, p := range s.policies {
		out[name] = p
	}
	return out
}

// SegmentCaps returns a copy of the explicit per-segment caps.
func (s *Store) SegmentCaps() map[string]float64 {
	if s == nil {
		return nil
	}
	out := make(map[string]float64, len(s.segmentCaps))
	for segment, c := range s.segmentCaps {
		out[segment] = c
	}
	return out
}
