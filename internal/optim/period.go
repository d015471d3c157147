package optim

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/recore/internal/analysis"
	"github.com/san-kum/recore/internal/dynamo"
	"github.com/san-kum/recore/internal/experiment"
	"github.com/san-kum/recore/internal/kinetics"
)

// ErrNotBracketed means the target period is not reached inside [lo, hi].
var ErrNotBracketed = errors.New("target period not bracketed")

const (
	coarsePoints = 9
	maxBisect    = 60
	rhoTol       = 1e-9
)

// ReactivityForPeriod finds the step reactivity in [lo, hi] whose solved
// asymptotic period is target seconds. base supplies t_end and dt, which
// must be long enough for the delayed transient to settle. A coarse grid
// locates the answer and bisection refines it.
func ReactivityForPeriod(ctx context.Context, exp *experiment.Experiment, base kinetics.Request, integrator string, target, lo, hi float64) (float64, error) {
	if !(target > 0) || math.IsInf(target, 0) {
		return 0, fmt.Errorf("%w: target period must be positive and finite, got %g", dynamo.ErrParameterBounds, target)
	}
	if !(lo < hi) {
		return 0, fmt.Errorf("%w: empty reactivity range [%g, %g]", dynamo.ErrParameterBounds, lo, hi)
	}

	period := func(rho float64) (float64, error) {
		req := base
		req.Rho = rho
		run, err := exp.Run(ctx, experiment.Spec{Request: req, Integrator: integrator})
		if err != nil {
			return 0, err
		}
		p := analysis.Period(run.Trajectory)
		// decaying or diverged power has no usable positive period
		if !(p > 0) {
			return math.Inf(1), nil
		}
		return p, nil
	}

	closeness := func(run *experiment.Run) float64 {
		p := analysis.Period(run.Trajectory)
		if !(p > 0) {
			return math.Inf(1)
		}
		return math.Abs(math.Log(p / target))
	}
	best, _, err := NewGridSearch(analysis.Linspace(lo, hi, coarsePoints)).Search(ctx, exp, base, integrator, closeness)
	if err != nil {
		return 0, err
	}

	step := (hi - lo) / (coarsePoints - 1)
	a, b := math.Max(lo, best-step), math.Min(hi, best+step)
	pa, err := period(a)
	if err != nil {
		return 0, err
	}
	pb, err := period(b)
	if err != nil {
		return 0, err
	}
	// period falls as reactivity rises
	if pa < target || pb > target {
		return 0, fmt.Errorf("%w: period %g s at rho=%g, %g s at rho=%g", ErrNotBracketed, pa, a, pb, b)
	}

	for i := 0; i < maxBisect && b-a > rhoTol; i++ {
		mid := (a + b) / 2
		pm, err := period(mid)
		if err != nil {
			return 0, err
		}
		if pm > target {
			a = mid
		} else {
			b = mid
		}
	}
	return (a + b) / 2, nil
}
