package analysis

import (
	"math"

	"github.com/san-kum/recore/internal/kinetics"
	"github.com/san-kum/recore/internal/metrics"
)

// PromptJump returns beta_eff / (beta_eff - rho), the relative power reached
// within a few generation times after a step of rho. It is +Inf at and above
// prompt critical.
func PromptJump(c kinetics.Constants, rho float64) float64 {
	beta := c.BetaEff()
	if rho >= beta {
		return math.Inf(1)
	}
	return beta / (beta - rho)
}

// tailFraction is the share of a trajectory Period looks at.
const tailFraction = 0.1

// Period estimates the asymptotic reactor period from the last tenth of the
// trajectory, where the prompt transient has died out. It is +Inf for flat
// or too-short trajectories and negative for decaying power.
func Period(tr kinetics.Trajectory) float64 {
	n := tr.Len()
	if n < 2 || len(tr.Powers) != n {
		return math.Inf(1)
	}
	span := int(float64(n) * tailFraction)
	if span < 1 {
		span = 1
	}
	first := n - 1 - span
	return metrics.PeriodBetween(tr.Times[first], tr.Powers[first], tr.Times[n-1], tr.Powers[n-1])
}

// InhourReactivity is the step reactivity whose asymptotic period is T,
// from the inhour equation rho = Lambda/T + sum beta_i / (1 + lambda_i T).
func InhourReactivity(c kinetics.Constants, period float64) float64 {
	rho := c.GenerationTime / period
	for _, g := range c.Groups {
		rho += g.Beta / (1 + g.Lambda*period)
	}
	return rho
}
