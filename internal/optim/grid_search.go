package optim

import (
	"context"
	"errors"
	"math"

	"github.com/san-kum/recore/internal/experiment"
	"github.com/san-kum/recore/internal/kinetics"
)

// ErrNoCandidate is returned when no grid point gives a finite objective.
var ErrNoCandidate = errors.New("no reactivity gave a finite objective")

// Objective scores a run; lower is better. NaN counts as +Inf.
type Objective func(run *experiment.Run) float64

// GridSearch evaluates an objective at every reactivity of a fixed grid.
type GridSearch struct {
	rhos []float64
}

func NewGridSearch(rhos []float64) *GridSearch {
	return &GridSearch{rhos: rhos}
}

// Search runs base at each grid reactivity and returns the one with the
// lowest objective.
func (g *GridSearch) Search(ctx context.Context, exp *experiment.Experiment, base kinetics.Request, integrator string, objective Objective) (float64, float64, error) {
	best := math.Inf(1)
	bestRho := math.NaN()

	for _, rho := range g.rhos {
		req := base
		req.Rho = rho
		run, err := exp.Run(ctx, experiment.Spec{Request: req, Integrator: integrator})
		if err != nil {
			return 0, 0, err
		}

		val := objective(run)
		if math.IsNaN(val) {
			continue
		}
		if val < best {
			best = val
			bestRho = rho
		}
	}

	if math.IsNaN(bestRho) || math.IsInf(best, 1) {
		return 0, 0, ErrNoCandidate
	}
	return bestRho, best, nil
}
