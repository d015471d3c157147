package experiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/san-kum/recore/internal/cache"
	"github.com/san-kum/recore/internal/dynamo"
	"github.com/san-kum/recore/internal/integrators"
	"github.com/san-kum/recore/internal/kinetics"
	"github.com/san-kum/recore/internal/logging"
	"github.com/san-kum/recore/internal/metrics"
	"github.com/san-kum/recore/internal/observability"
)

// Spec is one transient to run.
type Spec struct {
	Label      string
	Request    kinetics.Request
	Integrator string
	Program    string
	// KeepStates forces a real solve so that the precursor history is
	// available; the cache only holds power.
	KeepStates bool
	// Observers see every step of the solve. Setting any bypasses the cache.
	Observers []dynamo.Observer
}

// Run is a served transient.
type Run struct {
	Label      string
	Request    kinetics.Request
	Integrator string
	Constants  kinetics.Constants
	Trajectory kinetics.Trajectory
	// States holds [P, C_1..C_6] per sample. It is nil for cached runs.
	States   []dynamo.State
	Metrics  metrics.Values
	Steps    int
	Cached   bool
	Duration time.Duration

	// Diverged reports that the state left the float64 range; DivergedAt is
	// the first sample time at which it did.
	Diverged   bool
	DivergedAt float64
}

// Result rebuilds a simulator result for storage and export. Cached runs
// carry power only.
func (r *Run) Result() *dynamo.Result {
	states := r.States
	if states == nil {
		states = make([]dynamo.State, len(r.Trajectory.Powers))
		for i, p := range r.Trajectory.Powers {
			states[i] = dynamo.State{p}
		}
	}
	return &dynamo.Result{
		States:     states,
		Times:      r.Trajectory.Times,
		Metrics:    r.Metrics,
		StepsTaken: r.Steps,
	}
}

type Option func(*Experiment)

func WithCache(c cache.Cache) Option {
	return func(e *Experiment) { e.cache = c }
}

func WithCollector(c *observability.Collector) Option {
	return func(e *Experiment) { e.collector = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Experiment) { e.log = l }
}

func WithRegistry(r *Registry) Option {
	return func(e *Experiment) { e.registry = r }
}

// Experiment serves transients for one set of kinetics constants. It is safe
// for concurrent use as long as its cache is.
type Experiment struct {
	consts    kinetics.Constants
	registry  *Registry
	cache     cache.Cache
	collector *observability.Collector
	log       *slog.Logger
}

func New(c kinetics.Constants, opts ...Option) (*Experiment, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	e := &Experiment{consts: c}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = NewRegistry()
	}
	if e.log == nil {
		e.log = logging.NewNop()
	}
	return e, nil
}

func (e *Experiment) Constants() kinetics.Constants { return e.consts }
func (e *Experiment) Registry() *Registry            { return e.registry }

func (e *Experiment) Run(ctx context.Context, spec Spec) (*Run, error) {
	if err := spec.Request.Validate(); err != nil {
		return nil, err
	}
	integ, err := e.registry.GetIntegrator(spec.Integrator)
	if err != nil {
		return nil, err
	}
	if spec.Integrator == "" {
		spec.Integrator = integrators.Default
	}
	program, err := e.registry.GetProgram(spec.Program, spec.Request.Rho)
	if err != nil {
		return nil, err
	}

	log := e.log.With("rho", spec.Request.Rho, "t_end", spec.Request.TEnd, "dt", spec.Request.Dt, "integrator", spec.Integrator)
	key := cache.Key(e.consts, spec.Request, spec.Integrator+"/"+programName(spec.Program))

	if e.cache != nil && !spec.KeepStates && len(spec.Observers) == 0 {
		tr, err := e.cache.Get(ctx, key)
		switch {
		case err == nil:
			run := e.newRun(spec, tr)
			run.Cached = true
			run.Metrics = metricsOf(tr)
			e.collector.ObserveSolve(spec.Integrator, true, tr.Len(), 0)
			log.Debug("transient served from cache", "samples", tr.Len())
			return run, nil
		case !errors.Is(err, cache.ErrMiss):
			log.Warn("cache lookup failed", "error", err)
		}
	}

	sim := dynamo.New(kinetics.NewModel(e.consts), integ, program)
	for _, m := range e.registry.DefaultMetrics() {
		sim.AddMetric(m)
	}
	for _, o := range spec.Observers {
		sim.AddObserver(o)
	}

	start := time.Now()
	res, err := sim.Run(ctx, kinetics.InitialState(e.consts), spec.Request.Config())
	elapsed := time.Since(start)
	if err != nil {
		log.Warn("transient aborted", "error", err)
		return nil, fmt.Errorf("solve rho=%g: %w", spec.Request.Rho, err)
	}

	tr := kinetics.TrajectoryOf(res)
	run := e.newRun(spec, tr)
	run.States = res.States
	run.Metrics = metrics.Values(res.Metrics)
	run.Steps = res.StepsTaken
	run.Duration = elapsed

	if i := res.FirstInvalid(); i >= 0 {
		run.Diverged, run.DivergedAt = true, res.Times[i]
		log.Warn("transient diverged", "error", dynamo.ErrInvalidState, "t", run.DivergedAt)
	}

	if e.cache != nil {
		if err := e.cache.Put(ctx, key, tr); err != nil {
			log.Warn("cache store failed", "error", err)
		}
	}
	e.collector.ObserveSolve(spec.Integrator, false, tr.Len(), elapsed)
	log.Info("transient solved", "samples", tr.Len(), "final_power", tr.Final(), "elapsed", elapsed)

	return run, nil
}

func (e *Experiment) newRun(spec Spec, tr kinetics.Trajectory) *Run {
	steps := tr.Len() - 1
	if steps < 0 {
		steps = 0
	}
	run := &Run{
		Label:      spec.Label,
		Request:    spec.Request,
		Integrator: spec.Integrator,
		Constants:  e.consts,
		Trajectory: tr,
		Steps:      steps,
	}
	for i, p := range tr.Powers {
		if !(dynamo.State{p}).IsValid() {
			run.Diverged, run.DivergedAt = true, tr.Times[i]
			break
		}
	}
	return run
}

func programName(name string) string {
	if name == "" {
		return "step"
	}
	return name
}

// metricsOf recomputes the standard metrics from a power trajectory.
func metricsOf(tr kinetics.Trajectory) metrics.Values {
	ms := metrics.Standard()
	for i, p := range tr.Powers {
		x := dynamo.State{p}
		for _, m := range ms {
			m.Observe(x, nil, tr.Times[i])
		}
	}
	out := make(metrics.Values, len(ms))
	for _, m := range ms {
		out[m.Name()] = m.Value()
	}
	return out
}
