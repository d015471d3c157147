package metrics

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
)

func TestValuesJSONNonFinite(t *testing.T) {
	in := Values{"peak_power": 2.5, "period": math.Inf(1), "drift": math.Inf(-1), "bad": math.NaN()}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"period":"+Inf"`) {
		t.Errorf("expected +Inf string, got %s", data)
	}

	var out Values
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out["peak_power"] != 2.5 {
		t.Errorf("peak_power = %v", out["peak_power"])
	}
	if !math.IsInf(out["period"], 1) || !math.IsInf(out["drift"], -1) || !math.IsNaN(out["bad"]) {
		t.Errorf("non-finite values lost: %v", out)
	}
}

func TestValuesJSONRejectsGarbage(t *testing.T) {
	var out Values
	if err := json.Unmarshal([]byte(`{"x":"fast"}`), &out); err == nil {
		t.Error("expected error for non-numeric string")
	}
}

func TestSeriesJSONNonFinite(t *testing.T) {
	in := Series{1, 2.5, math.Inf(1), math.NaN()}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `[1,2.5,"+Inf","NaN"]` {
		t.Errorf("unexpected encoding %s", data)
	}

	var out Series
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out) != 4 || out[0] != 1 || out[1] != 2.5 || !math.IsInf(out[2], 1) || !math.IsNaN(out[3]) {
		t.Errorf("round trip lost values: %v", out)
	}
	if err := json.Unmarshal([]byte(`[1,"fast"]`), &out); err == nil {
		t.Error("expected error for non-numeric sample")
	}
}
