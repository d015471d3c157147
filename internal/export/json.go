package export

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/recore/internal/dynamo"
	"github.com/san-kum/recore/internal/kinetics"
	"github.com/san-kum/recore/internal/metrics"
)

type ExportData struct {
	Label      string             `json:"label"`
	Integrator string             `json:"integrator"`
	Rho        float64            `json:"rho"`
	TEnd       float64            `json:"t_end"`
	Dt         float64            `json:"dt"`
	Steps      int                `json:"steps"`
	Constants  kinetics.Constants `json:"constants"`
	Times      []float64          `json:"times"`
	Powers     []float64          `json:"powers"`
	States     [][]float64        `json:"states,omitempty"`
	Metrics    metrics.Values     `json:"metrics"`
}

// FromResult collects one transient for export. States is left empty when
// withStates is false.
func FromResult(label, integrator string, c kinetics.Constants, req kinetics.Request, result *dynamo.Result, withStates bool) ExportData {
	data := ExportData{
		Label:      label,
		Integrator: integrator,
		Rho:        req.Rho,
		TEnd:       req.TEnd,
		Dt:         req.Dt,
		Steps:      result.StepsTaken,
		Constants:  c,
		Times:      result.Times,
		Powers:     result.Column(0),
		Metrics:    metrics.Values(result.Metrics),
	}
	if withStates {
		data.States = make([][]float64, len(result.States))
		for i, s := range result.States {
			data.States[i] = s
		}
	}
	return data
}

// WriteJSON encodes data as indented JSON. Trajectories that diverged to
// Inf or NaN cannot be encoded and return an error.
func WriteJSON(w io.Writer, data ExportData) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func WriteJSONFile(path string, data ExportData) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := WriteJSON(file, data); err != nil {
		return err
	}
	return file.Close()
}
