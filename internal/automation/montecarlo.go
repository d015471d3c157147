package automation

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/san-kum/recore/internal/analysis"
	"github.com/san-kum/recore/internal/dynamo"
	"github.com/san-kum/recore/internal/integrators"
	"github.com/san-kum/recore/internal/kinetics"
)

// stableLimit is the relative power above which a trial counts as runaway.
const stableLimit = 1e6

// MonteCarloConfig propagates delayed-neutron data uncertainty through one
// transient. Every beta_i and lambda_i is scaled by an independent factor
// drawn uniformly from [1-Perturbation, 1+Perturbation].
type MonteCarloConfig struct {
	Request      kinetics.Request
	Integrator   string
	Perturbation float64
	NumTrials    int
	Seed         int64
	Workers      int
}

// MonteCarloResult is one trial.
type MonteCarloResult struct {
	TrialID    int                `json:"trial"`
	Constants  kinetics.Constants `json:"constants"`
	FinalPower float64            `json:"final_power"`
	Period     float64            `json:"period"`
	Stable     bool               `json:"stable"` // did power stay bounded?
}

// Perturb returns c with each group parameter scaled by its own factor in
// [1-rel, 1+rel].
func Perturb(c kinetics.Constants, rel float64, rng *rand.Rand) kinetics.Constants {
	out := c
	for i := range out.Groups {
		out.Groups[i].Lambda *= 1 + (rng.Float64()-0.5)*2*rel
		out.Groups[i].Beta *= 1 + (rng.Float64()-0.5)*2*rel
	}
	return out
}

// RunMonteCarlo solves cfg.NumTrials perturbed transients on up to
// cfg.Workers goroutines. Trials are drawn up front, so a seed reproduces
// the same results whatever the worker count. Seed 0 draws from the clock.
func RunMonteCarlo(ctx context.Context, base kinetics.Constants, cfg MonteCarloConfig) ([]MonteCarloResult, error) {
	if cfg.NumTrials <= 0 {
		return nil, fmt.Errorf("%w: trials must be positive, got %d", dynamo.ErrParameterBounds, cfg.NumTrials)
	}
	if !(cfg.Perturbation >= 0 && cfg.Perturbation < 1) {
		return nil, fmt.Errorf("%w: perturbation must be in [0, 1), got %g", dynamo.ErrParameterBounds, cfg.Perturbation)
	}
	if err := cfg.Request.Validate(); err != nil {
		return nil, err
	}
	if _, err := integrators.New(cfg.Integrator); err != nil {
		return nil, err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	results := make([]MonteCarloResult, cfg.NumTrials)
	for i := range results {
		results[i] = MonteCarloResult{TrialID: i, Constants: Perturb(base, cfg.Perturbation, rng)}
	}

	err := dynamo.ParallelFor(ctx, cfg.NumTrials, cfg.Workers, func(ctx context.Context, i int) error {
		integ, _ := integrators.New(cfg.Integrator)
		res, err := kinetics.Simulate(ctx, results[i].Constants, cfg.Request, integ)
		if err != nil {
			return fmt.Errorf("trial %d: %w", i, err)
		}
		tr := kinetics.TrajectoryOf(res)
		final := tr.Final()
		results[i].FinalPower = final
		results[i].Period = analysis.Period(tr)
		results[i].Stable = !math.IsNaN(final) && math.Abs(final) <= stableLimit
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// MonteCarloStats computes summary statistics from Monte Carlo results
func MonteCarloStats(results []MonteCarloResult) (stableCount int, unstableCount int) {
	for _, r := range results {
		if r.Stable {
			stableCount++
		} else {
			unstableCount++
		}
	}
	return
}

// FinalPowerSpread is the mean and sample standard deviation of the final
// power over stable trials. Both are NaN with no stable trials; the
// deviation is 0 with one.
func FinalPowerSpread(results []MonteCarloResult) (mean, std float64) {
	n := 0
	for _, r := range results {
		if r.Stable {
			mean += r.FinalPower
			n++
		}
	}
	if n == 0 {
		return math.NaN(), math.NaN()
	}
	mean /= float64(n)
	if n == 1 {
		return mean, 0
	}
	for _, r := range results {
		if r.Stable {
			d := r.FinalPower - mean
			std += d * d
		}
	}
	return mean, math.Sqrt(std / float64(n-1))
}
