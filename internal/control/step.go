package control

import "github.com/san-kum/recore/internal/dynamo"

// Step imposes a constant reactivity for every t >= 0. The returned control
// vector is shared between calls and must not be modified.
type Step struct {
	Rho float64
	u   dynamo.Control
}

func NewStep(rho float64) *Step {
	return &Step{Rho: rho, u: dynamo.Control{rho}}
}

func (s *Step) Compute(x dynamo.State, t float64) dynamo.Control {
	return s.u
}
