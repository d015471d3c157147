package control

import "testing"

func TestStepIsConstant(t *testing.T) {
	s := NewStep(0.003)

	for _, tm := range []float64{0, 0.5, 1e3} {
		u := s.Compute(nil, tm)
		if len(u) != 1 || u[0] != 0.003 {
			t.Errorf("Compute(t=%g) = %v, want [0.003]", tm, u)
		}
	}
}
