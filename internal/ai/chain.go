package ai

import (
	"context"

	"github.com/sirupsen/logrus"

	"upgrade-arbitration/backend/internal/arbiter"
	"upgrade-arbitration/backend/internal/metrics"
)

type plannerChain struct {
	primary  arbiter.Planner
	fallback arbiter.Planner
}

// WithFallback returns a planner that first tries the primary
// implementation and falls back when the primary fails, times out, or
// returns an unusable plan. The reasoning-backed path is never the only
// path: the fallback is expected to be total.
func WithFallback(primary, fallback arbiter.Planner) arbiter.Planner {
	if primary == nil {
		return fallback
	}
	if fallback == nil {
		return primary
	}
	return &plannerChain{primary: primary, fallback: fallback}
}

func (c *plannerChain) PlanSteps(ctx context.Context, actx *arbiter.Context) (arbiter.Plan, error) {
	plan, err := c.primary.PlanSteps(ctx, actx)
	if err == nil && len(plan.Steps) > 0 {
		return plan, nil
	}

	if err != nil {
		logrus.WithError(err).Warn("reasoning planner degraded, using default plan")
	} else {
		logrus.Warn("reasoning planner returned empty plan, using default plan")
	}
	metrics.PlannerFallbacksTotal.Inc()

	return c.fallback.PlanSteps(ctx, actx)
}
