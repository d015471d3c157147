package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/recore/internal/analysis"
	"github.com/san-kum/recore/internal/automation"
	"github.com/san-kum/recore/internal/config"
	"github.com/san-kum/recore/internal/dynamo"
	"github.com/san-kum/recore/internal/experiment"
	"github.com/san-kum/recore/internal/export"
	"github.com/san-kum/recore/internal/kinetics"
	"github.com/san-kum/recore/internal/logging"
	"github.com/san-kum/recore/internal/optim"
	"github.com/san-kum/recore/internal/server"
	"github.com/san-kum/recore/internal/storage"
	"github.com/san-kum/recore/internal/tui"
)

func runTransient(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	log := newLogger(cmd, cfg)

	exp, cleanup, err := newExperiment(cfg, log, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	spec := experiment.Spec{
		Label:      label,
		Request:    cfg.Request(),
		Integrator: cfg.Transient.Integrator,
		KeepStates: !noSave,
	}
	var renderer *tui.LiveRenderer
	if live {
		renderer = tui.NewLiveRenderer(cmd.ErrOrStderr(), spec.Request.TEnd, frameRate)
		spec.Observers = []dynamo.Observer{renderer}
	}

	fmt.Fprintf(out, "running step transient rho=%g t_end=%gs dt=%gs...\n", spec.Request.Rho, spec.Request.TEnd, spec.Request.Dt)
	run, err := exp.Run(cmd.Context(), spec)
	if renderer != nil {
		renderer.Done()
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "completed in %v\n", run.Duration)
	if run.Diverged {
		fmt.Fprintf(out, "warning: power diverged at t=%.3fs (prompt supercritical)\n", run.DivergedAt)
	}
	if !noSave {
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		id, err := st.Save(storage.RunMetadata{
			Label:      label,
			Rho:        spec.Request.Rho,
			TEnd:       spec.Request.TEnd,
			Dt:         spec.Request.Dt,
			Integrator: run.Integrator,
			Constants:  run.Constants,
		}, run.Result())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "run id: %s\n", id)
	}
	fmt.Fprintf(out, "steps: %d\n", run.Steps)
	fmt.Fprintln(out, "\nmetrics:")
	printMetrics(out, run.Metrics)
	fmt.Fprintf(out, "  prompt_jump: %.6f\n", analysis.PromptJump(run.Constants, spec.Request.Rho))

	if plotAfter {
		fmt.Fprintln(out)
		fmt.Fprintln(out, plotSeries(run.Trajectory.Powers, 12, "relative power P(t)"))
	}
	return nil
}

func printMetrics(out io.Writer, values map[string]float64) {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %s: %.6f\n", name, values[name])
	}
}

// plotSeries draws data up to its first non-finite value.
func plotSeries(data []float64, height int, caption string) string {
	n := len(data)
	for i, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			n = i
			caption += fmt.Sprintf(" (diverged after sample %d)", i)
			break
		}
	}
	if n == 0 {
		return "no finite data to plot"
	}
	return asciigraph.Plot(data[:n],
		asciigraph.Height(height),
		asciigraph.Width(80),
		asciigraph.Caption(caption),
	)
}

func listRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.List()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tLABEL\tTIME\tRHO\tT_END\tDT\tINTEG\tSAMPLES\tFINAL_P")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.4f\t%.2fs\t%gs\t%s\t%d\t%.5g\n",
			run.ID,
			run.Label,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Rho,
			run.TEnd,
			run.Dt,
			run.Integrator,
			run.Samples,
			run.Metrics["final_power"],
		)
	}
	return w.Flush()
}

// loadRun opens the configured store and reads one run with its states.
func loadRun(cmd *cobra.Command, id string) (*storage.RunMetadata, *dynamo.Result, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	st, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	defer st.Close()

	meta, err := st.Load(id)
	if err != nil {
		return nil, nil, err
	}
	states, times, err := st.LoadStates(id)
	if err != nil {
		return nil, nil, err
	}
	if len(states) == 0 {
		return nil, nil, fmt.Errorf("run %s has no data", id)
	}

	res := &dynamo.Result{
		States:     make([]dynamo.State, len(states)),
		Times:      times,
		Metrics:    meta.Metrics,
		StepsTaken: len(states) - 1,
	}
	for i, s := range states {
		res.States[i] = s
	}
	return meta, res, nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	meta, res, err := loadRun(cmd, args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "run: %s\n", meta.ID)
	fmt.Fprintf(out, "rho: %.4f  t_end: %gs  dt: %gs\n", meta.Rho, meta.TEnd, meta.Dt)
	fmt.Fprintf(out, "samples: %d\n\n", len(res.States))

	columns := 1
	if precursors {
		columns = len(res.States[0])
	}
	header := export.Header(len(res.States[0]))
	for i := 0; i < columns; i++ {
		caption := "relative power P(t)"
		if i > 0 {
			caption = header[i+1] + " precursor concentration"
		}
		fmt.Fprintln(out, plotSeries(res.Column(i), 10, caption))
		fmt.Fprintln(out)
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

// output returns the file named by --output, or stdout.
func output(cmd *cobra.Command) (io.Writer, func() error, error) {
	if outFile == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(outFile)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	_, res, err := loadRun(cmd, args[0])
	if err != nil {
		return err
	}
	w, done, err := output(cmd)
	if err != nil {
		return err
	}
	if err := export.WriteCSV(w, res.Times, res.States); err != nil {
		done()
		return err
	}
	if err := done(); err != nil {
		return err
	}
	if outFile != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "exported to %s\n", outFile)
	}
	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	meta, res, err := loadRun(cmd, args[0])
	if err != nil {
		return err
	}
	data := export.FromResult(meta.Label, meta.Integrator, meta.Constants, meta.Request(), res, withStates)

	if outFile != "" {
		if err := export.WriteJSONFile(outFile, data); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "exported to %s\n", outFile)
		return nil
	}
	return export.WriteJSON(cmd.OutOrStdout(), data)
}

func phasePlot(cmd *cobra.Command, args []string) error {
	meta, res, err := loadRun(cmd, args[0])
	if err != nil {
		return err
	}
	portrait := analysis.NewPhasePortrait(res, xAxis, yAxis)
	if portrait == nil {
		return fmt.Errorf("state dimension %d too small for axes %d and %d", len(res.States[0]), xAxis, yAxis)
	}

	header := export.Header(len(res.States[0]))
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "phase plot: %s\n", meta.ID)
	fmt.Fprintf(out, "x-axis: %s, y-axis: %s\n\n", header[xAxis+1], header[yAxis+1])
	fmt.Fprintln(out, portrait.ASCII(70, 20))
	return nil
}

func sweepReactivity(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	consts, err := cfg.KineticsConstants()
	if err != nil {
		return err
	}
	if sweepN < 1 {
		return fmt.Errorf("--n must be at least 1, got %d", sweepN)
	}

	req := cfg.Request()
	log := newLogger(cmd, cfg)
	start := time.Now()
	points, err := analysis.Sweep(cmd.Context(), consts, analysis.Linspace(sweepFrom, sweepTo, sweepN), req.TEnd, req.Dt, workers)
	if err != nil {
		return err
	}
	log.Info("sweep finished", "points", len(points), "elapsed", time.Since(start))

	out := cmd.OutOrStdout()
	if asJSON {
		rows := make([]map[string]any, len(points))
		for i, p := range points {
			rows[i] = map[string]any{
				"rho":         p.Rho,
				"final_power": finiteOrNil(p.FinalPower),
				"peak_power":  finiteOrNil(p.PeakPower),
				"period":      finiteOrNil(p.Period),
			}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RHO\tDOLLARS\tFINAL_P\tPEAK_P\tPERIOD")
	for _, p := range points {
		fmt.Fprintf(w, "%.5f\t%.3f\t%.5g\t%.5g\t%.4gs\n",
			p.Rho, p.Rho/consts.BetaEff(), p.FinalPower, p.PeakPower, p.Period)
	}
	return w.Flush()
}

func finiteOrNil(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func compareIntegrators(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	exp, cleanup, err := newExperiment(cfg, newLogger(cmd, cfg), nil)
	if err != nil {
		return err
	}
	defer cleanup()

	names := args
	if len(names) == 0 {
		names = exp.Registry().ListIntegrators()
	}
	req := cfg.Request()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "comparing %d integrators on rho=%g t_end=%gs dt=%gs\n\n", len(names), req.Rho, req.TEnd, req.Dt)

	runs := make([]*experiment.Run, len(names))
	for i, name := range names {
		run, err := exp.Run(cmd.Context(), experiment.Spec{Request: req, Integrator: name})
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		runs[i] = run
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INTEGRATOR\tTIME\tFINAL_P\tPEAK_P\tPERIOD\tMAX_REL_DIFF")
	for i, run := range runs {
		fmt.Fprintf(w, "%s\t%v\t%.8g\t%.8g\t%.5gs\t%.3e\n",
			names[i],
			run.Duration.Round(time.Microsecond),
			run.Trajectory.Final(),
			run.Trajectory.Peak(),
			analysis.Period(run.Trajectory),
			maxRelDiff(runs[0].Trajectory, run.Trajectory),
		)
	}
	return w.Flush()
}

// maxRelDiff is the largest |a-b|/|a| over the shared samples.
func maxRelDiff(a, b kinetics.Trajectory) float64 {
	n := min(len(a.Powers), len(b.Powers))
	worst := 0.0
	for i := 0; i < n; i++ {
		if a.Powers[i] == 0 {
			continue
		}
		d := math.Abs(a.Powers[i]-b.Powers[i]) / math.Abs(a.Powers[i])
		if d > worst || math.IsNaN(d) {
			worst = d
		}
	}
	return worst
}

func benchSolver(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	exp, cleanup, err := newExperiment(cfg, logging.NewNop(), nil)
	if err != nil {
		return err
	}
	defer cleanup()

	durations := []float64{1.0, 5.0, 10.0}
	dts := []float64{1e-4, 1e-3, 1e-2}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "benchmarking %s\n\n", cfg.Transient.Integrator)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "T_END\tDT\tSTEPS\tTIME\tSTEPS/SEC")

	for _, dur := range durations {
		for _, step := range dts {
			spec := experiment.Spec{
				Request:    kinetics.Request{Rho: cfg.Transient.Rho, TEnd: dur, Dt: step},
				Integrator: cfg.Transient.Integrator,
				KeepStates: true,
			}
			run, err := exp.Run(cmd.Context(), spec)
			if err != nil {
				return err
			}
			rate := float64(run.Steps) / run.Duration.Seconds()
			fmt.Fprintf(w, "%.1fs\t%gs\t%d\t%v\t%.0f\n", dur, step, run.Steps, run.Duration, rate)
		}
	}
	return w.Flush()
}

func listPresets(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tRHO\tT_END\tDT\tDESCRIPTION")
	for _, name := range config.ListPresets() {
		p := config.GetPreset(name)
		fmt.Fprintf(w, "%s\t%g\t%gs\t%gs\t%s\n", name, p.Transient.Rho, p.Transient.TEnd, p.Transient.Dt, p.Description)
	}
	return w.Flush()
}

func showConstants(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	c, err := cfg.KineticsConstants()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			kinetics.Constants
			BetaEff float64 `json:"beta_eff"`
		}{c, c.BetaEff()})
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "GROUP\tLAMBDA (1/s)\tBETA")
	for i, g := range c.Groups {
		fmt.Fprintf(w, "%d\t%g\t%g\n", i+1, g.Lambda, g.Beta)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nbeta_eff: %g\n", c.BetaEff())
	fmt.Fprintf(out, "generation time: %gs\n", c.GenerationTime)
	return nil
}

func serveExplorer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger(cmd, cfg)

	collector, err := newCollector()
	if err != nil {
		return err
	}
	exp, cleanup, err := newExperiment(cfg, log, collector)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(exp, server.WithCollector(collector), server.WithLogger(log))
	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}

func runScenario(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	log := newLogger(cmd, cfg)
	exp, cleanup, err := newExperiment(cfg, log, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	results, err := automation.RunScenario(cmd.Context(), sc, exp, st, log)
	out := cmd.OutOrStdout()
	if len(results) > 0 {
		fmt.Fprintf(out, "scenario: %s\n", sc.Name)
		if sc.Description != "" {
			fmt.Fprintf(out, "%s\n", sc.Description)
		}
		fmt.Fprintln(out)
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "STEP\tLABEL\tRHO\tT_END\tINTEG\tFINAL_P\tPERIOD\tRUN_ID")
		for _, r := range results {
			fmt.Fprintf(w, "%d\t%s\t%.5f\t%gs\t%s\t%.5g\t%.4gs\t%s\n",
				r.Step,
				r.Run.Label,
				r.Run.Request.Rho,
				r.Run.Request.TEnd,
				r.Run.Integrator,
				r.Run.Trajectory.Final(),
				analysis.Period(r.Run.Trajectory),
				r.RunID,
			)
		}
		if ferr := w.Flush(); ferr != nil && err == nil {
			err = ferr
		}
	}
	return err
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	consts, err := cfg.KineticsConstants()
	if err != nil {
		return err
	}

	mc := automation.MonteCarloConfig{
		Request:      cfg.Request(),
		Integrator:   cfg.Transient.Integrator,
		Perturbation: perturbation,
		NumTrials:    trials,
		Seed:         seed,
		Workers:      workers,
	}
	log := newLogger(cmd, cfg)
	start := time.Now()
	results, err := automation.RunMonteCarlo(cmd.Context(), consts, mc)
	if err != nil {
		return err
	}
	log.Info("monte carlo finished", "trials", len(results), "elapsed", time.Since(start))

	out := cmd.OutOrStdout()
	if asJSON {
		rows := make([]map[string]any, len(results))
		for i, r := range results {
			rows[i] = map[string]any{
				"trial":       r.TrialID,
				"beta_eff":    r.Constants.BetaEff(),
				"final_power": finiteOrNil(r.FinalPower),
				"period":      finiteOrNil(r.Period),
				"stable":      r.Stable,
			}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	stable, unstable := automation.MonteCarloStats(results)
	mean, std := automation.FinalPowerSpread(results)
	nominal := kinetics.Solve(consts, mc.Request.Rho, mc.Request.TEnd, mc.Request.Dt).Final()

	fmt.Fprintf(out, "monte carlo: %d trials, ±%.1f%% on every beta_i and lambda_i\n", len(results), 100*perturbation)
	fmt.Fprintf(out, "transient: rho=%g t_end=%gs dt=%gs\n\n", mc.Request.Rho, mc.Request.TEnd, mc.Request.Dt)
	fmt.Fprintf(out, "stable: %d  runaway: %d\n", stable, unstable)
	fmt.Fprintf(out, "nominal final power: %.6g\n", nominal)
	fmt.Fprintf(out, "final power: mean %.6g  std %.4g", mean, std)
	if mean != 0 && !math.IsNaN(mean) {
		fmt.Fprintf(out, " (%.2f%%)", 100*std/math.Abs(mean))
	}
	fmt.Fprintln(out)
	return nil
}

func findReactivity(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	exp, cleanup, err := newExperiment(cfg, newLogger(cmd, cfg), nil)
	if err != nil {
		return err
	}
	defer cleanup()

	base := kinetics.Request{TEnd: searchTEnd, Dt: searchDt}
	found, err := optim.ReactivityForPeriod(cmd.Context(), exp, base, cfg.Transient.Integrator, targetPeriod, searchLo, searchHi)
	if err != nil {
		return err
	}

	c := exp.Constants()
	theory := analysis.InhourReactivity(c, targetPeriod)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "target period: %gs\n", targetPeriod)
	fmt.Fprintf(out, "solved reactivity: %.6g (%.4f $)\n", found, found/c.BetaEff())
	fmt.Fprintf(out, "inhour equation:   %.6g (%.4f $)\n", theory, theory/c.BetaEff())
	return nil
}
