package integrators

import (
	"math"
	"testing"

	"github.com/san-kum/recore/internal/dynamo"
)

type oscillator struct{}

func (o *oscillator) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return dynamo.State{x[1], -x[0]}
}

func (o *oscillator) StateDim() int   { return 2 }
func (o *oscillator) ControlDim() int { return 0 }

type exponential struct{ rate float64 }

func (e *exponential) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return dynamo.State{e.rate * x[0]}
}

func (e *exponential) StateDim() int   { return 1 }
func (e *exponential) ControlDim() int { return 0 }

func TestRK4Accuracy(t *testing.T) {
	dyn := &oscillator{}
	integ := NewRK4()

	x0 := dynamo.State{1.0, 0.0}
	dt := 0.01
	steps := 100

	x := x0
	for i := 0; i < steps; i++ {
		x = integ.Step(dyn, x, nil, float64(i)*dt, dt)
	}

	expectedX := math.Cos(float64(steps) * dt)
	expectedV := -math.Sin(float64(steps) * dt)

	if math.Abs(x[0]-expectedX) > 1e-8 {
		t.Errorf("position error too large: got %.10f, expected %.10f", x[0], expectedX)
	}
	if math.Abs(x[1]-expectedV) > 1e-8 {
		t.Errorf("velocity error too large: got %.10f, expected %.10f", x[1], expectedV)
	}
}

func TestRK4SingleStepMatchesTaylor(t *testing.T) {
	// For y' = a*y one RK4 step is exactly the 4th-order Taylor polynomial.
	a, dt := -2.0, 0.1
	x := NewRK4().Step(&exponential{rate: a}, dynamo.State{1.0}, nil, 0, dt)

	z := a * dt
	want := 1 + z + z*z/2 + z*z*z/6 + z*z*z*z/24
	if math.Abs(x[0]-want) > 1e-14 {
		t.Errorf("got %.17g, want %.17g", x[0], want)
	}
}

func TestRK4DoesNotMutateInput(t *testing.T) {
	x := dynamo.State{1.0, 0.0}
	_ = NewRK4().Step(&oscillator{}, x, nil, 0, 0.1)
	if x[0] != 1.0 || x[1] != 0.0 {
		t.Errorf("input state mutated: %v", x)
	}
}

func TestRK4MoreAccurateThanEuler(t *testing.T) {
	dyn := &exponential{rate: -1}
	rk4, euler := NewRK4(), NewEuler()
	dt := 0.05

	xr := dynamo.State{1.0}
	xe := dynamo.State{1.0}
	for i := 0; i < 20; i++ {
		xr = rk4.Step(dyn, xr, nil, float64(i)*dt, dt)
		xe = euler.Step(dyn, xe, nil, float64(i)*dt, dt)
	}

	exact := math.Exp(-1.0)
	if math.Abs(xr[0]-exact) >= math.Abs(xe[0]-exact) {
		t.Errorf("rk4 error %.3e not below euler error %.3e", math.Abs(xr[0]-exact), math.Abs(xe[0]-exact))
	}
}

func TestRegistry(t *testing.T) {
	for _, name := range []string{"", "rk4", "euler"} {
		if _, err := New(name); err != nil {
			t.Errorf("New(%q) failed: %v", name, err)
		}
	}
	if _, ok := mustNew(t, "").(*RK4); !ok {
		t.Error("empty name should select RK4")
	}
	if _, err := New("rk45"); err == nil {
		t.Error("expected error for unknown integrator")
	}
	if got := Names(); len(got) != 2 || got[0] != "euler" || got[1] != "rk4" {
		t.Errorf("Names() = %v", got)
	}
}

func mustNew(t *testing.T, name string) any {
	t.Helper()
	integ, err := New(name)
	if err != nil {
		t.Fatal(err)
	}
	return integ
}
