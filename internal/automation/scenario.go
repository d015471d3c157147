package automation

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/recore/internal/config"
	"github.com/san-kum/recore/internal/experiment"
	"github.com/san-kum/recore/internal/kinetics"
	"github.com/san-kum/recore/internal/logging"
	"github.com/san-kum/recore/internal/storage"
)

// Scenario defines a scripted sequence of transients
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is one transient. Fields left empty come from the preset,
// or from the defaults when no preset is named.
type ScenarioStep struct {
	Label      string   `yaml:"label"`
	Preset     string   `yaml:"preset"`
	Rho        *float64 `yaml:"rho"`
	TEnd       float64  `yaml:"t_end"`
	Dt         float64  `yaml:"dt"`
	Integrator string   `yaml:"integrator"`
	Save       bool     `yaml:"save"`
}

// Spec resolves the step into an experiment spec.
func (s ScenarioStep) Spec() (experiment.Spec, error) {
	tc := config.DefaultConfig().Transient
	if s.Preset != "" {
		p := config.GetPreset(s.Preset)
		if p == nil {
			return experiment.Spec{}, fmt.Errorf("unknown preset: %s (available: %v)", s.Preset, config.ListPresets())
		}
		tc = p.Transient
	}
	if s.Rho != nil {
		tc.Rho = *s.Rho
	}
	if s.TEnd != 0 {
		tc.TEnd = s.TEnd
	}
	if s.Dt != 0 {
		tc.Dt = s.Dt
	}
	if s.Integrator != "" {
		tc.Integrator = s.Integrator
	}

	label := s.Label
	if label == "" {
		label = s.Preset
	}
	return experiment.Spec{
		Label:      label,
		Request:    kinetics.Request{Rho: tc.Rho, TEnd: tc.TEnd, Dt: tc.Dt},
		Integrator: tc.Integrator,
		KeepStates: s.Save,
	}, nil
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("scenario %s has no steps", path)
	}
	return &scenario, nil
}

// StepResult is one finished scenario step. RunID is empty unless the step
// was saved.
type StepResult struct {
	Step  int
	Run   *experiment.Run
	RunID string
}

// RunScenario executes the steps in order and stops at the first failure.
// Steps marked save go to st, which may be nil when none are.
func RunScenario(ctx context.Context, scenario *Scenario, exp *experiment.Experiment, st storage.Store, log *slog.Logger) ([]StepResult, error) {
	if log == nil {
		log = logging.NewNop()
	}
	results := make([]StepResult, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		spec, err := step.Spec()
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		log.Info("running scenario step", "scenario", scenario.Name, "step", i+1, "of", len(scenario.Steps), "label", spec.Label)

		run, err := exp.Run(ctx, spec)
		if err != nil {
			return results, fmt.Errorf("step %d run: %w", i+1, err)
		}

		res := StepResult{Step: i + 1, Run: run}
		if step.Save {
			if st == nil {
				return results, fmt.Errorf("step %d: save requested without a store", i+1)
			}
			id, err := st.Save(storage.RunMetadata{
				Label:      spec.Label,
				Rho:        spec.Request.Rho,
				TEnd:       spec.Request.TEnd,
				Dt:         spec.Request.Dt,
				Integrator: run.Integrator,
				Constants:  run.Constants,
			}, run.Result())
			if err != nil {
				return results, fmt.Errorf("step %d save: %w", i+1, err)
			}
			res.RunID = id
		}
		results = append(results, res)
	}

	return results, nil
}
