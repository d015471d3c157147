package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/recore/internal/config"
	"github.com/san-kum/recore/internal/control"
	"github.com/san-kum/recore/internal/dynamo"
	"github.com/san-kum/recore/internal/integrators"
	"github.com/san-kum/recore/internal/metrics"
)

// Registry names the integrators, reactivity programs and presets a run can
// pick from.
type Registry struct {
	integrators map[string]func() dynamo.Integrator
	programs    map[string]func(rho float64) dynamo.Controller
}

func NewRegistry() *Registry {
	r := &Registry{
		integrators: make(map[string]func() dynamo.Integrator),
		programs:    make(map[string]func(float64) dynamo.Controller),
	}

	for _, name := range integrators.Names() {
		r.integrators[name] = func() dynamo.Integrator {
			integ, _ := integrators.New(name)
			return integ
		}
	}

	r.programs["step"] = func(rho float64) dynamo.Controller { return control.NewStep(rho) }

	return r
}

func (r *Registry) GetIntegrator(name string) (dynamo.Integrator, error) {
	if name == "" {
		name = integrators.Default
	}
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s (available: %v)", name, r.ListIntegrators())
	}
	return fn(), nil
}

func (r *Registry) GetProgram(name string, rho float64) (dynamo.Controller, error) {
	if name == "" {
		name = "step"
	}
	fn, ok := r.programs[name]
	if !ok {
		return nil, fmt.Errorf("unknown reactivity program: %s", name)
	}
	return fn(rho), nil
}

func (r *Registry) ListIntegrators() []string {
	return sortedKeys(r.integrators)
}

func (r *Registry) ListPrograms() []string {
	return sortedKeys(r.programs)
}

// GetPreset returns the named transient preset.
func (r *Registry) GetPreset(name string) (config.Preset, error) {
	p := config.GetPreset(name)
	if p == nil {
		return config.Preset{}, fmt.Errorf("unknown preset: %s (available: %v)", name, config.ListPresets())
	}
	return *p, nil
}

func (r *Registry) DefaultMetrics() []dynamo.Metric {
	return metrics.Standard()
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
