package config

import "sort"

type Preset struct {
	Description string
	Transient   TransientConfig
}

var Presets = map[string]Preset{
	"small": {
		Description: "small positive step, slow rise",
		Transient:   TransientConfig{Rho: 0.001, TEnd: 5.0, Dt: 1e-3, Integrator: "rk4"},
	},
	"default": {
		Description: "reference step of 0.002",
		Transient:   TransientConfig{Rho: 0.002, TEnd: 5.0, Dt: 1e-3, Integrator: "rk4"},
	},
	"large": {
		Description: "large step just below prompt critical",
		Transient:   TransientConfig{Rho: 0.005, TEnd: 5.0, Dt: 1e-3, Integrator: "rk4"},
	},
	"prompt": {
		Description: "step equal to beta_eff (one dollar)",
		Transient:   TransientConfig{Rho: 0.00645, TEnd: 1.0, Dt: 1e-4, Integrator: "rk4"},
	},
	"scram": {
		Description: "negative step, rod insertion",
		Transient:   TransientConfig{Rho: -0.01, TEnd: 5.0, Dt: 1e-3, Integrator: "rk4"},
	},
}

func GetPreset(name string) *Preset {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	return &p
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
