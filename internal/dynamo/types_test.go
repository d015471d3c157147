package dynamo

import (
	"errors"
	"math"
	"testing"
)

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		state State
		valid bool
	}{
		{"empty", State{}, true},
		{"normal", State{1.0, 2.0, 3.0}, true},
		{"zeros", State{0.0, 0.0}, true},
		{"with NaN", State{1.0, math.NaN()}, false},
		{"with +Inf", State{1.0, math.Inf(1)}, false},
		{"with -Inf", State{1.0, math.Inf(-1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestState_Clone(t *testing.T) {
	src := State{1, 2, 3}
	c := src.Clone()
	c[0] = 99
	if src[0] == 99 {
		t.Error("Clone did not create independent copy")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"default", DefaultConfig(), true},
		{"zero dt", Config{Dt: 0, Duration: 1.0}, false},
		{"negative dt", Config{Dt: -0.1, Duration: 1.0}, false},
		{"NaN dt", Config{Dt: math.NaN(), Duration: 1.0}, false},
		{"infinite dt", Config{Dt: math.Inf(1), Duration: 1.0}, false},
		{"zero duration", Config{Dt: 0.1, Duration: 0}, false},
		{"negative duration", Config{Dt: 0.1, Duration: -1.0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.Is(err, ErrParameterBounds) {
					t.Errorf("expected ErrParameterBounds, got %v", err)
				}
			}
		})
	}
}

func TestConfig_Steps(t *testing.T) {
	if got := (Config{Dt: 1e-3, Duration: 5}).Steps(); got != 5000 {
		t.Errorf("Steps() = %d, want 5000", got)
	}
	if got := (Config{Dt: 0, Duration: 5}).Steps(); got != 0 {
		t.Errorf("Steps() with zero dt = %d, want 0", got)
	}
	if got := (Config{Dt: 0.1, Duration: -1}).Steps(); got != 0 {
		t.Errorf("Steps() with negative duration = %d, want 0", got)
	}
}

func TestResult_Column(t *testing.T) {
	r := &Result{States: []State{{1, 10}, {2, 20}, {3}}}
	col := r.Column(1)
	if len(col) != 3 || col[0] != 10 || col[1] != 20 || col[2] != 0 {
		t.Errorf("Column(1) = %v", col)
	}
}

func TestSimulationError(t *testing.T) {
	err := &SimulationError{Step: 150, Time: 1.5, Wrapped: ErrContextCanceled}
	if err.Error() != ErrContextCanceled.Error() {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, ErrContextCanceled) {
		t.Error("SimulationError should unwrap to ErrContextCanceled")
	}
}
