package integrators

import "github.com/san-kum/recore/internal/dynamo"

// Euler is the first-order explicit scheme. It exists for side-by-side
// comparison with RK4 and is never chosen implicitly.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t float64, dt float64) dynamo.State {
	dx := dyn.Derive(x, u, t)
	result := make(dynamo.State, len(x))
	for i := range x {
		result[i] = x[i] + dt*dx[i]
	}
	return result
}
