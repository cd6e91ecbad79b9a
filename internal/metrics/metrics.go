package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// DecisionsTotal counts completed arbitrations by outcome
	// (offer, none).
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbitration_decisions_total",
			Help: "Count of arbitration decisions by outcome.",
		},
		[]string{"outcome"},
	)

	// PlannerFallbacksTotal counts reasoning-call degradations that fell
	// through to the deterministic default plan.
	PlannerFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "arbitration_planner_fallbacks_total",
			Help: "Count of reasoner planning failures recovered by the heuristic plan.",
		},
	)

	// DecisionDuration observes end-to-end arbitration latency.
	DecisionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "arbitration_decision_duration_seconds",
			Help:    "End-to-end arbitration latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(DecisionsTotal, PlannerFallbacksTotal, DecisionDuration)
}
