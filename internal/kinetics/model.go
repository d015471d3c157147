package kinetics

import "github.com/san-kum/recore/internal/dynamo"

// Derive returns dy/dt for state y under reactivity rho.
func Derive(c Constants, y dynamo.State, rho float64) dynamo.State {
	return derive(&c, c.BetaEff(), y, rho)
}

func derive(c *Constants, betaEff float64, y dynamo.State, rho float64) dynamo.State {
	dy := make(dynamo.State, StateDim)
	gen := c.GenerationTime
	p := y[0]

	delayed := 0.0
	for i, g := range c.Groups {
		ci := y[i+1]
		delayed += g.Lambda * ci
		dy[i+1] = g.Beta/gen*p - g.Lambda*ci
	}
	dy[0] = (rho-betaEff)/gen*p + delayed

	return dy
}

// Model adapts the kinetics equations to [dynamo.System]. The reactivity is
// read from u[0]; a missing control means zero reactivity. The system is
// time-invariant, so t is ignored.
type Model struct {
	consts  Constants
	betaEff float64
}

func NewModel(c Constants) *Model {
	return &Model{consts: c, betaEff: c.BetaEff()}
}

func (m *Model) StateDim() int   { return StateDim }
func (m *Model) ControlDim() int { return 1 }

func (m *Model) Constants() Constants { return m.consts }

func (m *Model) Derive(x dynamo.State, u dynamo.Control, _ float64) dynamo.State {
	rho := 0.0
	if len(u) > 0 {
		rho = u[0]
	}
	return derive(&m.consts, m.betaEff, x, rho)
}
