package metrics

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Values is a set of named metric results. It survives JSON: non-finite
// numbers are written as the strings "+Inf", "-Inf" and "NaN".
type Values map[string]float64

func (v Values) MarshalJSON() ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	out := make(map[string]any, len(v))
	for k, x := range v {
		out[k] = encodeFloat(x)
	}
	return json.Marshal(out)
}

func (v *Values) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*v = nil
		return nil
	}
	out := make(Values, len(raw))
	for k, msg := range raw {
		x, err := decodeFloat(msg)
		if err != nil {
			return fmt.Errorf("metric %s: %w", k, err)
		}
		out[k] = x
	}
	*v = out
	return nil
}

// Series is a sampled signal with the same JSON treatment as Values.
type Series []float64

func (s Series) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	out := make([]any, len(s))
	for i, x := range s {
		out[i] = encodeFloat(x)
	}
	return json.Marshal(out)
}

func (s *Series) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*s = nil
		return nil
	}
	out := make(Series, len(raw))
	for i, msg := range raw {
		x, err := decodeFloat(msg)
		if err != nil {
			return fmt.Errorf("sample %d: %w", i, err)
		}
		out[i] = x
	}
	*s = out
	return nil
}

func encodeFloat(x float64) any {
	switch {
	case math.IsNaN(x):
		return "NaN"
	case math.IsInf(x, 1):
		return "+Inf"
	case math.IsInf(x, -1):
		return "-Inf"
	default:
		return x
	}
}

func decodeFloat(msg json.RawMessage) (float64, error) {
	var x float64
	if err := json.Unmarshal(msg, &x); err == nil {
		return x, nil
	}
	var s string
	if err := json.Unmarshal(msg, &s); err != nil {
		return 0, err
	}
	// ParseFloat accepts "NaN", "+Inf" and "-Inf"
	return strconv.ParseFloat(s, 64)
}
