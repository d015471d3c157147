package metrics

import (
	"math"

	"github.com/san-kum/recore/internal/dynamo"
)

// Period estimates the reactor period from the last two observed samples:
//
//	T = (t_n - t_{n-1}) / ln(P_n / P_{n-1})
//
// A rising transient gives a positive period, a decaying one a negative
// period. Flat power, or fewer than two samples, reads +Inf.
type Period struct {
	prevT, prevP float64
	lastT, lastP float64
	samples      int
}

func NewPeriod() *Period { return &Period{} }

func (m *Period) Name() string { return "period" }

func (m *Period) Observe(x dynamo.State, u dynamo.Control, t float64) {
	if len(x) == 0 {
		return
	}
	m.prevT, m.prevP = m.lastT, m.lastP
	m.lastT, m.lastP = t, x[0]
	m.samples++
}

func (m *Period) Value() float64 {
	if m.samples < 2 {
		return math.Inf(1)
	}
	return PeriodBetween(m.prevT, m.prevP, m.lastT, m.lastP)
}

func (m *Period) Reset() {
	*m = Period{}
}

// PeriodBetween is the e-folding time implied by two power samples.
func PeriodBetween(t0, p0, t1, p1 float64) float64 {
	growth := math.Log(p1 / p0)
	if growth == 0 {
		return math.Inf(1)
	}
	return (t1 - t0) / growth
}

// Standard returns the metric set recorded for every transient.
func Standard() []dynamo.Metric {
	return []dynamo.Metric{NewPeakPower(), NewMinPower(), NewFinalPower(), NewPeriod()}
}
