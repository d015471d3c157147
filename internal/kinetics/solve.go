package kinetics

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/recore/internal/control"
	"github.com/san-kum/recore/internal/dynamo"
	"github.com/san-kum/recore/internal/integrators"
)

const (
	DefaultRho  = 0.002
	DefaultTEnd = 5.0
	DefaultDt   = 1e-3

	// MaxSamples bounds TEnd/Dt for requests that pass Validate.
	MaxSamples = 10_000_000
)

// Request describes one step-insertion transient.
type Request struct {
	Rho  float64 `json:"rho" yaml:"rho" mapstructure:"rho"`
	TEnd float64 `json:"t_end" yaml:"t_end" mapstructure:"t_end"`
	Dt   float64 `json:"dt" yaml:"dt" mapstructure:"dt"`
}

func DefaultRequest() Request {
	return Request{Rho: DefaultRho, TEnd: DefaultTEnd, Dt: DefaultDt}
}

// Config maps the request onto the simulator's time window.
func (r Request) Config() dynamo.Config {
	return dynamo.Config{Dt: r.Dt, Duration: r.TEnd}
}

// Validate rejects requests the solver would turn into degenerate output.
func (r Request) Validate() error {
	if math.IsNaN(r.Rho) || math.IsInf(r.Rho, 0) {
		return fmt.Errorf("%w: rho must be finite, got %g", dynamo.ErrParameterBounds, r.Rho)
	}
	if err := r.Config().Validate(); err != nil {
		return err
	}
	if r.TEnd/r.Dt > MaxSamples {
		return fmt.Errorf("%w: t_end/dt = %.0f exceeds %d samples", dynamo.ErrParameterBounds, r.TEnd/r.Dt, MaxSamples)
	}
	return nil
}

// Trajectory is the sampled power history of one transient.
type Trajectory struct {
	Times  []float64 `json:"times"`
	Powers []float64 `json:"powers"`
}

func (tr Trajectory) Len() int { return len(tr.Times) }

// Clone returns a trajectory that shares no memory with tr.
func (tr Trajectory) Clone() Trajectory {
	return Trajectory{
		Times:  append([]float64(nil), tr.Times...),
		Powers: append([]float64(nil), tr.Powers...),
	}
}

// Final returns the last recorded power, or NaN for an empty trajectory.
func (tr Trajectory) Final() float64 {
	if len(tr.Powers) == 0 {
		return math.NaN()
	}
	return tr.Powers[len(tr.Powers)-1]
}

// Peak returns the largest recorded power, or NaN for an empty trajectory.
func (tr Trajectory) Peak() float64 {
	if len(tr.Powers) == 0 {
		return math.NaN()
	}
	peak := tr.Powers[0]
	for _, p := range tr.Powers[1:] {
		if p > peak {
			peak = p
		}
	}
	return peak
}

// TrajectoryOf extracts times and powers from a simulator result.
func TrajectoryOf(res *dynamo.Result) Trajectory {
	times := make([]float64, len(res.Times))
	copy(times, res.Times)
	return Trajectory{Times: times, Powers: res.Column(0)}
}

// Simulate runs a transient with the given integrator and metrics, keeping
// the full state history in the result. It fails only when ctx is done.
func Simulate(ctx context.Context, c Constants, req Request, integ dynamo.Integrator, metrics ...dynamo.Metric) (*dynamo.Result, error) {
	sim := dynamo.New(NewModel(c), integ, control.NewStep(req.Rho))
	for _, m := range metrics {
		sim.AddMetric(m)
	}
	return sim.Run(ctx, InitialState(c), req.Config())
}

// Solve integrates a reactivity step rho from t=0 to tEnd with fixed-step
// RK4. The result is bit-reproducible for identical inputs.
func Solve(c Constants, rho, tEnd, dt float64) Trajectory {
	// A background context is never done and the initial state always
	// matches the model, so Simulate cannot fail here.
	res, err := Simulate(context.Background(), c, Request{Rho: rho, TEnd: tEnd, Dt: dt}, integrators.NewRK4())
	if err != nil {
		panic(err)
	}
	return TrajectoryOf(res)
}

// SolveDefault is Solve with DefaultConstants.
func SolveDefault(rho, tEnd, dt float64) Trajectory {
	return Solve(DefaultConstants(), rho, tEnd, dt)
}
