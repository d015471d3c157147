package optim

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/recore/internal/analysis"
	"github.com/san-kum/recore/internal/cache"
	"github.com/san-kum/recore/internal/dynamo"
	"github.com/san-kum/recore/internal/experiment"
	"github.com/san-kum/recore/internal/kinetics"
)

func newExperiment(t *testing.T) *experiment.Experiment {
	t.Helper()
	mem, err := cache.NewMemory(64)
	require.NoError(t, err)
	exp, err := experiment.New(kinetics.DefaultConstants(), experiment.WithCache(mem))
	require.NoError(t, err)
	return exp
}

func TestGridSearchPicksLowestObjective(t *testing.T) {
	exp := newExperiment(t)
	base := kinetics.Request{TEnd: 0.5, Dt: 1e-3}
	target := kinetics.SolveDefault(0.002, 0.5, 1e-3).Final()

	objective := func(run *experiment.Run) float64 {
		return math.Abs(run.Trajectory.Final() - target)
	}
	rho, val, err := NewGridSearch([]float64{0.001, 0.0015, 0.002, 0.0025}).Search(context.Background(), exp, base, "", objective)
	require.NoError(t, err)
	assert.Equal(t, 0.002, rho)
	assert.Equal(t, 0.0, val)
}

func TestGridSearchNoCandidate(t *testing.T) {
	exp := newExperiment(t)
	base := kinetics.Request{TEnd: 0.1, Dt: 1e-3}
	nan := func(*experiment.Run) float64 { return math.NaN() }

	_, _, err := NewGridSearch([]float64{0.001, 0.002}).Search(context.Background(), exp, base, "", nan)
	assert.ErrorIs(t, err, ErrNoCandidate)

	_, _, err = NewGridSearch(nil).Search(context.Background(), exp, base, "", nan)
	assert.ErrorIs(t, err, ErrNoCandidate)
}

func TestGridSearchPropagatesRunErrors(t *testing.T) {
	exp := newExperiment(t)
	_, _, err := NewGridSearch([]float64{0.001}).Search(context.Background(), exp, kinetics.Request{TEnd: 1, Dt: 0}, "", nil)
	assert.ErrorIs(t, err, dynamo.ErrParameterBounds)
}

func TestReactivityForPeriodMatchesInhour(t *testing.T) {
	exp := newExperiment(t)
	c := exp.Constants()
	base := kinetics.Request{TEnd: 40, Dt: 5e-3}

	rho, err := ReactivityForPeriod(context.Background(), exp, base, "", 20, 1e-4, 0.006)
	require.NoError(t, err)

	want := analysis.InhourReactivity(c, 20)
	assert.InDelta(t, want, rho, 0.02*want)
}

func TestReactivityForPeriodNotBracketed(t *testing.T) {
	exp := newExperiment(t)
	base := kinetics.Request{TEnd: 10, Dt: 5e-3}

	_, err := ReactivityForPeriod(context.Background(), exp, base, "", 20, 0.003, 0.006)
	assert.True(t, errors.Is(err, ErrNotBracketed), "got %v", err)
}

func TestReactivityForPeriodRejectsBadInput(t *testing.T) {
	exp := newExperiment(t)
	base := kinetics.Request{TEnd: 10, Dt: 5e-3}

	_, err := ReactivityForPeriod(context.Background(), exp, base, "", -1, 1e-4, 0.006)
	assert.ErrorIs(t, err, dynamo.ErrParameterBounds)

	_, err = ReactivityForPeriod(context.Background(), exp, base, "", 20, 0.006, 1e-4)
	assert.ErrorIs(t, err, dynamo.ErrParameterBounds)
}
