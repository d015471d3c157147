package kinetics_test

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/recore/internal/dynamo"
	"github.com/san-kum/recore/internal/integrators"
	"github.com/san-kum/recore/internal/kinetics"
)

var _ = Describe("Constants", func() {
	c := kinetics.DefaultConstants()

	It("sums the six delayed fractions into beta_eff", func() {
		Expect(c.BetaEff()).To(BeNumerically("~", 0.00645, 1e-15))
	})

	It("accepts the default set", func() {
		Expect(c.Validate()).To(Succeed())
	})

	DescribeTable("rejects unphysical parameters",
		func(mutate func(*kinetics.Constants)) {
			bad := kinetics.DefaultConstants()
			mutate(&bad)
			Expect(bad.Validate()).To(MatchError(dynamo.ErrParameterBounds))
		},
		Entry("zero decay constant", func(k *kinetics.Constants) { k.Groups[2].Lambda = 0 }),
		Entry("negative delayed fraction", func(k *kinetics.Constants) { k.Groups[0].Beta = -1e-4 }),
		Entry("NaN delayed fraction", func(k *kinetics.Constants) { k.Groups[5].Beta = math.NaN() }),
		Entry("zero generation time", func(k *kinetics.Constants) { k.GenerationTime = 0 }),
		Entry("infinite generation time", func(k *kinetics.Constants) { k.GenerationTime = math.Inf(1) }),
	)

	It("returns independent values", func() {
		a := kinetics.DefaultConstants()
		a.Groups[0].Beta = 1
		Expect(kinetics.DefaultConstants().Groups[0].Beta).To(Equal(0.00025))
	})
})

var _ = Describe("InitialState", func() {
	c := kinetics.DefaultConstants()

	It("starts at unit power with equilibrium precursors", func() {
		y := kinetics.InitialState(c)
		Expect(y).To(HaveLen(kinetics.StateDim))
		Expect(y[0]).To(Equal(1.0))
		for i, g := range c.Groups {
			Expect(y[i+1]).To(Equal(g.Beta / (c.GenerationTime * g.Lambda)))
		}
	})

	It("is a fixed point of the derivative at zero reactivity", func() {
		dy := kinetics.Derive(c, kinetics.InitialState(c), 0)
		for _, v := range dy {
			Expect(v).To(BeNumerically("~", 0, 1e-9))
		}
	})
})

var _ = Describe("Derive", func() {
	c := kinetics.DefaultConstants()

	It("matches the point-kinetics equations", func() {
		y := dynamo.State{2, 1, 2, 3, 4, 5, 6}
		rho := 0.003
		dy := kinetics.Derive(c, y, rho)

		wantP := (rho - c.BetaEff()) / c.GenerationTime * y[0]
		for i, g := range c.Groups {
			wantP += g.Lambda * y[i+1]
			Expect(dy[i+1]).To(BeNumerically("~", g.Beta/c.GenerationTime*y[0]-g.Lambda*y[i+1], 1e-12))
		}
		Expect(dy[0]).To(BeNumerically("~", wantP, 1e-9))
	})

	It("does not modify its input", func() {
		y := kinetics.InitialState(c)
		before := y.Clone()
		_ = kinetics.Derive(c, y, 0.01)
		Expect(y).To(Equal(before))
	})

	It("agrees with the Model adapter", func() {
		m := kinetics.NewModel(c)
		y := dynamo.State{1.5, 900, 4000, 500, 400, 30, 5}
		Expect(m.Derive(y, dynamo.Control{0.004}, 12.0)).To(Equal(kinetics.Derive(c, y, 0.004)))
		Expect(m.Derive(y, nil, 0)).To(Equal(kinetics.Derive(c, y, 0)))
		Expect(m.StateDim()).To(Equal(7))
		Expect(m.ControlDim()).To(Equal(1))
	})

	It("propagates NaN silently", func() {
		dy := kinetics.Derive(c, kinetics.InitialState(c), math.NaN())
		Expect(math.IsNaN(dy[0])).To(BeTrue())
	})
})

var _ = Describe("Solve", func() {
	c := kinetics.DefaultConstants()

	It("returns the documented default scenario", func() {
		tr := kinetics.Solve(c, 0.002, 5.0, 1e-3)
		Expect(tr.Len()).To(BeNumerically(">=", 5000))
		Expect(tr.Len()).To(BeNumerically("<=", 5002))
		Expect(tr.Powers).To(HaveLen(tr.Len()))
		Expect(tr.Final()).To(BeNumerically(">", 1.0))
	})

	DescribeTable("starts exactly at t=0, P=1",
		func(rho float64) {
			tr := kinetics.Solve(c, rho, 1.0, 1e-3)
			Expect(tr.Times[0]).To(Equal(0.0))
			Expect(tr.Powers[0]).To(Equal(1.0))
		},
		Entry("zero", 0.0),
		Entry("small", 0.001),
		Entry("large", 0.005),
		Entry("negative", -0.01),
		Entry("NaN", math.NaN()),
	)

	DescribeTable("keeps power positive for small insertions",
		func(rho float64) {
			tr := kinetics.Solve(c, rho, 5.0, 1e-3)
			Expect(tr.Times).To(HaveLen(len(tr.Powers)))
			for i, p := range tr.Powers {
				Expect(p).To(BeNumerically(">", 0), "sample %d", i)
			}
		},
		Entry("rho=0", 0.0),
		Entry("rho=0.001", 0.001),
		Entry("rho=0.0025", 0.0025),
		Entry("rho=0.005", 0.005),
	)

	It("advances time strictly", func() {
		tr := kinetics.Solve(c, 0.002, 5.0, 1e-3)
		for i := 1; i < tr.Len(); i++ {
			Expect(tr.Times[i]).To(BeNumerically(">", tr.Times[i-1]))
		}
	})

	It("stays at steady state without reactivity", func() {
		tr := kinetics.Solve(c, 0.0, 5.0, 1e-3)
		for _, p := range tr.Powers {
			Expect(p).To(BeNumerically("~", 1.0, 1e-2))
		}
	})

	It("responds monotonically to the size of the step", func() {
		a := kinetics.Solve(c, 0.001, 5.0, 1e-3)
		b := kinetics.Solve(c, 0.002, 5.0, 1e-3)
		Expect(b.Final()).To(BeNumerically(">", a.Final()))
	})

	It("drops power after a negative insertion", func() {
		tr := kinetics.Solve(c, -0.01, 5.0, 1e-3)
		Expect(tr.Final()).To(BeNumerically("<", 1.0))
		Expect(tr.Final()).To(BeNumerically(">", 0.0))
	})

	It("is bit-reproducible", func() {
		a := kinetics.Solve(c, 0.0035, 2.0, 1e-3)
		b := kinetics.Solve(c, 0.0035, 2.0, 1e-3)
		Expect(a.Times).To(Equal(b.Times))
		Expect(a.Powers).To(Equal(b.Powers))
	})

	It("overshoots the horizon by less than one step", func() {
		tEnd, dt := 1.0, 0.3
		tr := kinetics.Solve(c, 0.001, tEnd, dt)
		last := tr.Times[tr.Len()-1]
		Expect(last).To(BeNumerically(">=", tEnd))
		Expect(last - tEnd).To(BeNumerically("<", dt))
		Expect(tr.Times[tr.Len()-2]).To(BeNumerically("<", tEnd))
	})

	DescribeTable("degenerates to the initial sample",
		func(tEnd, dt float64) {
			tr := kinetics.Solve(c, 0.002, tEnd, dt)
			Expect(tr.Times).To(Equal([]float64{0}))
			Expect(tr.Powers).To(Equal([]float64{1}))
		},
		Entry("zero horizon", 0.0, 1e-3),
		Entry("negative horizon", -1.0, 1e-3),
		Entry("zero step", 5.0, 0.0),
		Entry("negative step", 5.0, -1e-3),
	)

	It("returns a trajectory for a prompt-critical step instead of failing", func() {
		var tr kinetics.Trajectory
		Expect(func() { tr = kinetics.Solve(c, 0.01, 5.0, 1e-3) }).NotTo(Panic())
		Expect(tr.Len()).To(BeNumerically(">=", 5000))
		Expect(math.IsInf(tr.Final(), 0) || math.IsNaN(tr.Final())).To(BeTrue())
	})

	It("carries NaN reactivity through as NaN power", func() {
		tr := kinetics.Solve(c, math.NaN(), 0.01, 1e-3)
		Expect(tr.Len()).To(BeNumerically(">", 1))
		Expect(math.IsNaN(tr.Powers[1])).To(BeTrue())
	})

	It("matches SolveDefault for the default constants", func() {
		Expect(kinetics.SolveDefault(0.002, 0.5, 1e-3)).To(Equal(kinetics.Solve(c, 0.002, 0.5, 1e-3)))
	})
})

var _ = Describe("Simulate", func() {
	c := kinetics.DefaultConstants()

	It("keeps precursor history the same length as the trajectory", func() {
		res, err := kinetics.Simulate(context.Background(), c, kinetics.DefaultRequest(), integrators.NewRK4())
		Expect(err).NotTo(HaveOccurred())
		Expect(res.States).To(HaveLen(len(res.Times)))
		Expect(res.States[0]).To(HaveLen(kinetics.StateDim))
	})

	It("stops when the context is canceled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := kinetics.Simulate(ctx, c, kinetics.DefaultRequest(), integrators.NewRK4())
		Expect(err).To(MatchError(dynamo.ErrContextCanceled))
	})
})

var _ = Describe("Request", func() {
	It("accepts the defaults", func() {
		Expect(kinetics.DefaultRequest().Validate()).To(Succeed())
	})

	DescribeTable("rejects degenerate input",
		func(req kinetics.Request) {
			Expect(req.Validate()).To(MatchError(dynamo.ErrParameterBounds))
		},
		Entry("NaN rho", kinetics.Request{Rho: math.NaN(), TEnd: 5, Dt: 1e-3}),
		Entry("infinite rho", kinetics.Request{Rho: math.Inf(-1), TEnd: 5, Dt: 1e-3}),
		Entry("zero dt", kinetics.Request{Rho: 0.002, TEnd: 5, Dt: 0}),
		Entry("negative t_end", kinetics.Request{Rho: 0.002, TEnd: -5, Dt: 1e-3}),
		Entry("too many samples", kinetics.Request{Rho: 0.002, TEnd: 1e4, Dt: 1e-6}),
	)
})

var _ = Describe("Trajectory", func() {
	It("reports NaN for an empty trajectory", func() {
		var tr kinetics.Trajectory
		Expect(math.IsNaN(tr.Final())).To(BeTrue())
		Expect(math.IsNaN(tr.Peak())).To(BeTrue())
	})

	It("finds the peak", func() {
		tr := kinetics.Trajectory{Times: []float64{0, 1, 2}, Powers: []float64{1, 3, 2}}
		Expect(tr.Peak()).To(Equal(3.0))
		Expect(tr.Final()).To(Equal(2.0))
	})
})
