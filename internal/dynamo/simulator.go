package dynamo

import (
	"context"
	"errors"
	"fmt"
)

// maxPrealloc caps the trajectory capacity reserved up front.
const maxPrealloc = 1 << 20

type Simulator struct {
	dyn        System
	integrator Integrator
	controller Controller
	metrics    []Metric
	observers  []Observer
}

func New(dyn System, integrator Integrator, controller Controller) *Simulator {
	return &Simulator{
		dyn:        dyn,
		integrator: integrator,
		controller: controller,
		metrics:    make([]Metric, 0),
		observers:  make([]Observer, 0),
	}
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

// Run integrates from t=0, advancing while t < cfg.Duration. The last
// recorded time may therefore exceed Duration by up to one step. Every
// recorded sample, including the initial state, is passed to the metrics.
// A non-positive or NaN Dt records only the initial state.
func (s *Simulator) Run(ctx context.Context, x0 State, cfg Config) (*Result, error) {
	if len(x0) != s.dyn.StateDim() {
		return nil, fmt.Errorf("%w: initial state has %d components, system has %d",
			ErrDimensionMismatch, len(x0), s.dyn.StateDim())
	}
	capacity := cfg.Steps() + 1
	if capacity > maxPrealloc {
		capacity = maxPrealloc
	}
	result := &Result{
		States:   make([]State, 0, capacity),
		Controls: make([]Control, 0, capacity),
		Times:    make([]float64, 0, capacity),
		Metrics:  make(map[string]float64),
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	x := x0.Clone()
	t := 0.0
	dt := cfg.Dt

	result.States = append(result.States, x.Clone())
	result.Times = append(result.Times, t)
	s.observe(x, nil, t)

	if dt > 0 {
		for t < cfg.Duration {
			select {
			case <-ctx.Done():
				s.collect(result)
				return result, &SimulationError{
					Step:    result.StepsTaken,
					Time:    t,
					Wrapped: errors.Join(ErrContextCanceled, ctx.Err()),
				}
			default:
			}

			u := s.controller.Compute(x, t)
			x = s.integrator.Step(s.dyn, x, u, t, dt)
			t += dt
			result.StepsTaken++

			result.States = append(result.States, x.Clone())
			result.Controls = append(result.Controls, u)
			result.Times = append(result.Times, t)

			s.observe(x, u, t)
			for _, obs := range s.observers {
				obs.OnStep(x, u, t)
			}
		}
	}

	s.collect(result)
	return result, nil
}

// FirstInvalid returns the index of the first recorded state holding NaN or
// Inf, or -1 when every state is finite.
func (r *Result) FirstInvalid() int {
	for i, x := range r.States {
		if !x.IsValid() {
			return i
		}
	}
	return -1
}

func (s *Simulator) observe(x State, u Control, t float64) {
	for _, m := range s.metrics {
		m.Observe(x, u, t)
	}
}

func (s *Simulator) collect(result *Result) {
	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
}
