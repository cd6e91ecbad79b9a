package arbiter

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"upgrade-arbitration/backend/internal/metrics"
	"upgrade-arbitration/backend/internal/policy"
)

// Input bundles the raw collaborator-supplied records for one run.
type Input struct {
	Customer          CustomerRecord `json:"customer"`
	Flight            FlightRecord   `json:"flight"`
	Scores            ScoreSet       `json:"scores"`
	RecommendedCabins []string       `json:"recommended_cabins"`
}

// Engine runs the full arbitration pipeline: context → plan → work →
// solve. Each invocation owns its context, plan, and results; engines are
// safe for concurrent use across customers.
type Engine struct {
	planner Planner
	worker  *Worker
	solver  *Solver
}

// NewEngine wires the pipeline around the supplied planner and policy
// store. Pass HeuristicPlanner{} for a fully deterministic engine.
func NewEngine(planner Planner, policies *policy.Store, includeFallback bool) *Engine {
	if planner == nil {
		planner = HeuristicPlanner{}
	}
	return &Engine{
		planner: planner,
		worker:  NewWorker(policies),
		solver:  NewSolver(policies, includeFallback),
	}
}

// Arbitrate produces a decision for one customer/flight pair. The only
// returnable error is an input contract violation from context building;
// planner degradation is recovered internally and never surfaces.
func (e *Engine) Arbitrate(ctx context.Context, in Input) (Decision, error) {
	start := time.Now()

	actx, err := BuildContext(in.Customer, in.Flight, in.Scores, in.RecommendedCabins)
	if err != nil {
		return Decision{}, err
	}

	plan, err := e.planner.PlanSteps(ctx, actx)
	if err != nil || len(plan.Steps) == 0 {
		// Planners are expected to fall back internally; this is the
		// engine's own last line of defense.
		if err != nil {
			logrus.WithError(err).Warn("planner failed, using default plan")
			metrics.PlannerFallbacksTotal.Inc()
		}
		plan = DefaultPlan(actx)
	}

	results := e.worker.Run(actx, plan)
	decision := e.solver.Solve(actx, results)
	decision.PlanSource = plan.Source
	decision.PlanStepIDs = stepIDs(plan)

	elapsed := time.Since(start)
	metrics.DecisionsTotal.WithLabelValues("offer").Inc()
	metrics.DecisionDuration.Observe(elapsed.Seconds())
	logrus.WithFields(logrus.Fields{
		"customer":    actx.Customer.CustomerID,
		"flight":      in.Flight.FlightNumber,
		"offer":       decision.SelectedOfferType,
		"final_price": decision.FinalPrice,
		"discount":    decision.DiscountPercent,
		"plan_source": plan.Source,
		"steps":       len(plan.Steps),
		"duration":    elapsed,
	}).Info("arbitration complete")

	return decision, nil
}

// SuppressOffer produces the terminal no-offer decision and records it in
// the run metrics, keeping the audit trail consistent with normal runs.
func (e *Engine) SuppressOffer(reason string) Decision {
	decision := Suppress(reason)
	metrics.DecisionsTotal.WithLabelValues("none").Inc()
	logrus.WithField("reason", reason).Info("offer suppressed")
	return decision
}

func stepIDs(plan Plan) []string {
	ids := make([]string, len(plan.Steps))
	for i, step := range plan.Steps {
		ids[i] = step.StepID
	}
	return ids
}
