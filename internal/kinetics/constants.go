package kinetics

import (
	"fmt"
	"math"

	"github.com/san-kum/recore/internal/dynamo"
)

// NumGroups is the number of delayed-neutron precursor groups.
const NumGroups = 6

// StateDim is the length of the state vector [P, C_1..C_6].
const StateDim = NumGroups + 1

// Group is one lumped delayed-neutron precursor group.
type Group struct {
	Lambda float64 `json:"lambda" yaml:"lambda"` // decay constant [1/s]
	Beta   float64 `json:"beta" yaml:"beta"`     // delayed fraction
}

// Constants holds the kinetics parameters of one core. It is a plain value:
// copies never alias.
type Constants struct {
	Groups         [NumGroups]Group `json:"groups"`
	GenerationTime float64          `json:"generation_time"` // Lambda [s]
}

// DefaultConstants returns the six-group U-235 thermal set used throughout
// the project, with a generation time of 20 microseconds.
func DefaultConstants() Constants {
	return Constants{
		Groups: [NumGroups]Group{
			{Lambda: 0.0124, Beta: 0.00025},
			{Lambda: 0.0305, Beta: 0.0012},
			{Lambda: 0.111, Beta: 0.0012},
			{Lambda: 0.301, Beta: 0.0027},
			{Lambda: 1.14, Beta: 0.0008},
			{Lambda: 3.01, Beta: 0.0003},
		},
		GenerationTime: 2.0e-5,
	}
}

// BetaEff is the total delayed-neutron fraction.
func (c Constants) BetaEff() float64 {
	sum := 0.0
	for _, g := range c.Groups {
		sum += g.Beta
	}
	return sum
}

// Validate checks lambda_i > 0, beta_i >= 0 and Lambda > 0, all finite.
func (c Constants) Validate() error {
	for i, g := range c.Groups {
		if !(g.Lambda > 0) || math.IsInf(g.Lambda, 0) {
			return fmt.Errorf("%w: group %d decay constant must be positive, got %g", dynamo.ErrParameterBounds, i+1, g.Lambda)
		}
		if !(g.Beta >= 0) || math.IsInf(g.Beta, 0) {
			return fmt.Errorf("%w: group %d delayed fraction must be non-negative, got %g", dynamo.ErrParameterBounds, i+1, g.Beta)
		}
	}
	if !(c.GenerationTime > 0) || math.IsInf(c.GenerationTime, 0) {
		return fmt.Errorf("%w: generation time must be positive, got %g", dynamo.ErrParameterBounds, c.GenerationTime)
	}
	return nil
}

// InitialState is the unit-power equilibrium at zero reactivity:
// C_i = beta_i / (Lambda * lambda_i), so every dC_i/dt vanishes at t=0.
func InitialState(c Constants) dynamo.State {
	y := make(dynamo.State, StateDim)
	y[0] = 1.0
	for i, g := range c.Groups {
		y[i+1] = g.Beta / (c.GenerationTime * g.Lambda)
	}
	return y
}
