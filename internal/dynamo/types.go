package dynamo

import (
	"fmt"
	"math"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

type Control []float64

type System interface {
	Derive(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

type Integrator interface {
	Step(dyn System, x State, u Control, t float64, dt float64) State
}

type Controller interface {
	Compute(x State, t float64) Control
}

type Metric interface {
	Name() string
	Observe(x State, u Control, t float64)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(x State, u Control, t float64)
}

type Config struct {
	Dt       float64
	Duration float64
}

func DefaultConfig() Config {
	return Config{
		Dt:       1e-3,
		Duration: 5.0,
	}
}

// Validate reports parameters that would make a run degenerate. Run itself
// never calls it.
func (c Config) Validate() error {
	if !(c.Dt > 0) || math.IsInf(c.Dt, 0) {
		return fmt.Errorf("%w: dt must be positive and finite, got %g", ErrParameterBounds, c.Dt)
	}
	if !(c.Duration > 0) || math.IsInf(c.Duration, 0) {
		return fmt.Errorf("%w: duration must be positive and finite, got %g", ErrParameterBounds, c.Duration)
	}
	return nil
}

// Steps is the number of steps Run takes for this config, or 0 when the
// loop would not advance.
func (c Config) Steps() int {
	if !(c.Dt > 0) || !(c.Duration > 0) {
		return 0
	}
	n := math.Ceil(c.Duration / c.Dt)
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}

type Result struct {
	States     []State
	Controls   []Control
	Times      []float64
	Metrics    map[string]float64
	StepsTaken int
}

// Column returns component i of every recorded state.
func (r *Result) Column(i int) []float64 {
	out := make([]float64, len(r.States))
	for k, s := range r.States {
		if i < len(s) {
			out[k] = s[i]
		}
	}
	return out
}
