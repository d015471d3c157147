package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/san-kum/recore/internal/dynamo"
)

// Header is the column layout of a state table with dim components:
// time, P, C1..C(dim-1).
func Header(dim int) []string {
	header := []string{"time"}
	if dim > 0 {
		header = append(header, "P")
	}
	for i := 1; i < dim; i++ {
		header = append(header, fmt.Sprintf("C%d", i))
	}
	return header
}

// WriteCSV writes one row per sample. Values use the shortest
// representation that parses back to the same float64.
func WriteCSV(out io.Writer, times []float64, states []dynamo.State) error {
	w := csv.NewWriter(out)

	if len(states) == 0 {
		w.Flush()
		return w.Error()
	}

	if err := w.Write(Header(len(states[0]))); err != nil {
		return err
	}

	row := make([]string, 0, len(states[0])+1)
	for i := range states {
		row = row[:0]
		row = append(row, strconv.FormatFloat(times[i], 'g', -1, 64))
		for _, val := range states[i] {
			row = append(row, strconv.FormatFloat(val, 'g', -1, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// WritePowerCSV writes the two-column time,P table of a trajectory.
func WritePowerCSV(out io.Writer, times, powers []float64) error {
	states := make([]dynamo.State, len(powers))
	for i, p := range powers {
		states[i] = dynamo.State{p}
	}
	return WriteCSV(out, times, states)
}

// ReadCSV parses a table written by WriteCSV.
func ReadCSV(in io.Reader) ([][]float64, []float64, error) {
	r := csv.NewReader(in)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}

	if len(records) < 2 {
		return [][]float64{}, []float64{}, nil
	}

	times := make([]float64, 0, len(records)-1)
	states := make([][]float64, 0, len(records)-1)

	for i := 1; i < len(records); i++ {
		record := records[i]
		if len(record) == 0 {
			continue
		}

		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, nil, fmt.Errorf("row %d: %w", i, err)
		}

		state := make([]float64, 0, len(record)-1)
		for j := 1; j < len(record); j++ {
			val, err := strconv.ParseFloat(record[j], 64)
			if err != nil {
				return nil, nil, fmt.Errorf("row %d column %d: %w", i, j, err)
			}
			state = append(state, val)
		}
		times = append(times, t)
		states = append(states, state)
	}

	return states, times, nil
}
