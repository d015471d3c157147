package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/mitchellh/mapstructure"

	"github.com/san-kum/recore/internal/analysis"
	"github.com/san-kum/recore/internal/config"
	"github.com/san-kum/recore/internal/dynamo"
	"github.com/san-kum/recore/internal/experiment"
	"github.com/san-kum/recore/internal/export"
	"github.com/san-kum/recore/internal/kinetics"
	"github.com/san-kum/recore/internal/metrics"
)

// Slider bounds of the explorer page.
const (
	RhoMin  = 0.0005
	RhoMax  = 0.01
	RhoStep = 0.0005
)

// parseSpec reads preset, integrator, rho, t_end and dt from the query
// string. A preset fills the request first; explicit parameters override it.
func (s *Server) parseSpec(r *http.Request) (experiment.Spec, error) {
	q := r.URL.Query()
	spec := experiment.Spec{Label: "custom", Request: kinetics.DefaultRequest()}

	input := make(map[string]any, len(q))
	for key, vals := range q {
		if len(vals) > 0 {
			input[key] = vals[0]
		}
	}

	if name, ok := input["preset"].(string); ok {
		delete(input, "preset")
		p, err := s.exp.Registry().GetPreset(name)
		if err != nil {
			return spec, err
		}
		spec.Label = name
		spec.Request = kinetics.Request{Rho: p.Transient.Rho, TEnd: p.Transient.TEnd, Dt: p.Transient.Dt}
		spec.Integrator = p.Transient.Integrator
	}
	if name, ok := input["integrator"].(string); ok {
		delete(input, "integrator")
		spec.Integrator = name
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &spec.Request,
	})
	if err != nil {
		return spec, err
	}
	if err := dec.Decode(input); err != nil {
		return spec, fmt.Errorf("invalid query: %w", err)
	}
	return spec, nil
}

func (s *Server) run(r *http.Request) (*experiment.Run, int, error) {
	spec, err := s.parseSpec(r)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}

	ctx, cancel := context.WithTimeout(r.Context(), SolveTimeout)
	defer cancel()

	run, err := s.exp.Run(ctx, spec)
	switch {
	case err == nil:
		return run, http.StatusOK, nil
	case errors.Is(err, dynamo.ErrParameterBounds):
		return nil, http.StatusBadRequest, err
	case errors.Is(err, dynamo.ErrContextCanceled):
		return nil, http.StatusServiceUnavailable, err
	default:
		// unknown integrator or program names
		return nil, http.StatusBadRequest, err
	}
}

type transientResponse struct {
	Label      string         `json:"label"`
	Rho        float64        `json:"rho"`
	TEnd       float64        `json:"t_end"`
	Dt         float64        `json:"dt"`
	Integrator string         `json:"integrator"`
	Cached     bool           `json:"cached"`
	Samples    int            `json:"samples"`
	Times      []float64      `json:"times"`
	Powers     []*float64     `json:"powers"`
	Metrics    metrics.Values `json:"metrics"`
}

// nullable maps non-finite values to JSON null so diverged transients still
// encode.
func nullable(xs []float64) []*float64 {
	out := make([]*float64, len(xs))
	for i := range xs {
		if math.IsNaN(xs[i]) || math.IsInf(xs[i], 0) {
			continue
		}
		out[i] = &xs[i]
	}
	return out
}

func (s *Server) handleTransient(w http.ResponseWriter, r *http.Request) {
	run, code, err := s.run(r)
	if err != nil {
		http.Error(w, err.Error(), code)
		return
	}

	m := make(metrics.Values, len(run.Metrics)+1)
	for k, v := range run.Metrics {
		m[k] = v
	}
	m["prompt_jump"] = analysis.PromptJump(run.Constants, run.Request.Rho)

	writeJSON(w, transientResponse{
		Label:      run.Label,
		Rho:        run.Request.Rho,
		TEnd:       run.Request.TEnd,
		Dt:         run.Request.Dt,
		Integrator: run.Integrator,
		Cached:     run.Cached,
		Samples:    run.Trajectory.Len(),
		Times:      run.Trajectory.Times,
		Powers:     nullable(run.Trajectory.Powers),
		Metrics:    m,
	})
}

func (s *Server) handleTransientSVG(w http.ResponseWriter, r *http.Request) {
	run, code, err := s.run(r)
	if err != nil {
		http.Error(w, err.Error(), code)
		return
	}
	title := fmt.Sprintf("Step reactivity ρ = %.4f", run.Request.Rho)
	svg := export.TrajectoryToSVG(run.Trajectory.Times, run.Trajectory.Powers, 800, 450, "#00ff00", title)
	if svg == "" {
		http.Error(w, "trajectory has no drawable samples", http.StatusUnprocessableEntity)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	_, _ = w.Write([]byte(svg))
}

type presetResponse struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Rho         float64 `json:"rho"`
	TEnd        float64 `json:"t_end"`
	Dt          float64 `json:"dt"`
	Integrator  string  `json:"integrator"`
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	names := config.ListPresets()
	out := make([]presetResponse, 0, len(names))
	for _, name := range names {
		p := config.GetPreset(name)
		out = append(out, presetResponse{
			Name:        name,
			Description: p.Description,
			Rho:         p.Transient.Rho,
			TEnd:        p.Transient.TEnd,
			Dt:          p.Transient.Dt,
			Integrator:  p.Transient.Integrator,
		})
	}
	writeJSON(w, out)
}

type constantsResponse struct {
	kinetics.Constants
	BetaEff float64 `json:"beta_eff"`
}

func (s *Server) handleConstants(w http.ResponseWriter, r *http.Request) {
	c := s.exp.Constants()
	writeJSON(w, constantsResponse{Constants: c, BetaEff: c.BetaEff()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, fmt.Sprintf("encode response: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}
