package metrics

import (
	"math"

	"github.com/san-kum/recore/internal/dynamo"
)

// Power metrics read x[0] of every observed sample. They report NaN until
// something has been observed.

type PeakPower struct {
	peak    float64
	samples int
}

func NewPeakPower() *PeakPower { return &PeakPower{} }

func (m *PeakPower) Name() string { return "peak_power" }

func (m *PeakPower) Observe(x dynamo.State, u dynamo.Control, t float64) {
	if len(x) == 0 {
		return
	}
	if m.samples == 0 || x[0] > m.peak {
		m.peak = x[0]
	}
	m.samples++
}

func (m *PeakPower) Value() float64 {
	if m.samples == 0 {
		return math.NaN()
	}
	return m.peak
}

func (m *PeakPower) Reset() {
	m.peak = 0
	m.samples = 0
}

type MinPower struct {
	min     float64
	samples int
}

func NewMinPower() *MinPower { return &MinPower{} }

func (m *MinPower) Name() string { return "min_power" }

func (m *MinPower) Observe(x dynamo.State, u dynamo.Control, t float64) {
	if len(x) == 0 {
		return
	}
	if m.samples == 0 || x[0] < m.min {
		m.min = x[0]
	}
	m.samples++
}

func (m *MinPower) Value() float64 {
	if m.samples == 0 {
		return math.NaN()
	}
	return m.min
}

func (m *MinPower) Reset() {
	m.min = 0
	m.samples = 0
}

type FinalPower struct {
	last    float64
	samples int
}

func NewFinalPower() *FinalPower { return &FinalPower{} }

func (m *FinalPower) Name() string { return "final_power" }

func (m *FinalPower) Observe(x dynamo.State, u dynamo.Control, t float64) {
	if len(x) == 0 {
		return
	}
	m.last = x[0]
	m.samples++
}

func (m *FinalPower) Value() float64 {
	if m.samples == 0 {
		return math.NaN()
	}
	return m.last
}

func (m *FinalPower) Reset() {
	m.last = 0
	m.samples = 0
}
