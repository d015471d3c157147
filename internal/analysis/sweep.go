package analysis

import (
	"context"
	"fmt"

	"github.com/san-kum/recore/internal/dynamo"
	"github.com/san-kum/recore/internal/integrators"
	"github.com/san-kum/recore/internal/kinetics"
	"github.com/san-kum/recore/internal/metrics"
)

// SweepPoint summarises one transient of a reactivity sweep.
type SweepPoint struct {
	Rho        float64 `json:"rho"`
	FinalPower float64 `json:"final_power"`
	PeakPower  float64 `json:"peak_power"`
	Period     float64 `json:"period"`
}

// Sweep solves one RK4 transient per reactivity in rhos on up to workers
// goroutines. Points come back in the order of rhos.
func Sweep(ctx context.Context, c kinetics.Constants, rhos []float64, tEnd, dt float64, workers int) ([]SweepPoint, error) {
	points := make([]SweepPoint, len(rhos))
	err := dynamo.ParallelFor(ctx, len(rhos), workers, func(ctx context.Context, i int) error {
		req := kinetics.Request{Rho: rhos[i], TEnd: tEnd, Dt: dt}
		ms := metrics.Standard()
		res, err := kinetics.Simulate(ctx, c, req, integrators.NewRK4(), ms...)
		if err != nil {
			return fmt.Errorf("sweep rho=%g: %w", rhos[i], err)
		}
		points[i] = SweepPoint{
			Rho:        rhos[i],
			FinalPower: res.Metrics["final_power"],
			PeakPower:  res.Metrics["peak_power"],
			Period:     Period(kinetics.TrajectoryOf(res)),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return points, nil
}

// Linspace returns n evenly spaced values from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{lo}
	}
	step := (hi - lo) / float64(n-1)
	out := make([]float64, n)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[n-1] = hi
	return out
}
