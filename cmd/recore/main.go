package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/san-kum/recore/internal/cache"
	"github.com/san-kum/recore/internal/config"
	"github.com/san-kum/recore/internal/experiment"
	"github.com/san-kum/recore/internal/logging"
	"github.com/san-kum/recore/internal/observability"
	"github.com/san-kum/recore/internal/storage"
	"github.com/san-kum/recore/internal/tui"
)

var (
	configFile   string
	dataDir      string
	storeBackend string
	cacheBackend string
	redisAddr    string
	logLevel     string
	logFormat    string

	rho        float64
	tEnd       float64
	dt         float64
	integrator string
	preset     string
	label      string

	plotAfter bool
	live      bool
	frameRate int
	noSave    bool

	withStates bool
	outFile    string
	precursors bool

	sweepFrom float64
	sweepTo   float64
	sweepN    int
	workers   int
	asJSON    bool

	addr string

	trials       int
	perturbation float64
	seed         int64

	targetPeriod float64
	searchLo     float64
	searchHi     float64
	searchTEnd   float64
	searchDt     float64

	xAxis int
	yAxis int
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Flag variables are rebound to their
// defaults on every call.
func newRootCmd() *cobra.Command {
	// with no subcommand, open the terminal explorer
	rootCmd := &cobra.Command{
		Use:          "recore",
		Short:        "point reactor kinetics transients",
		SilenceUsage: true,
		RunE:         exploreTransient,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file path (yaml)")
	pf.StringVar(&dataDir, "data", config.DefaultDataDir, "data directory")
	pf.StringVar(&storeBackend, "store", "fs", "run store backend (fs, sqlite)")
	pf.StringVar(&cacheBackend, "cache", "", "trajectory cache (none, memory, redis)")
	pf.StringVar(&redisAddr, "redis-addr", "", "redis address for --cache redis")
	pf.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&logFormat, "log-format", "", "log format (text, json)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "solve a step transient and store it",
		Args:  cobra.NoArgs,
		RunE:  runTransient,
	}
	addTransientFlags(runCmd)
	runCmd.Flags().StringVar(&label, "label", "", "run label")
	runCmd.Flags().BoolVar(&plotAfter, "plot", false, "plot power when done")
	runCmd.Flags().BoolVar(&live, "live", false, "show a live power readout")
	runCmd.Flags().IntVar(&frameRate, "fps", 30, "live readout frame rate")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().BoolVar(&precursors, "precursors", false, "also plot precursor concentrations")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run data to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&outFile, "output", "o", "", "output file (default stdout)")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outFile, "output", "o", "", "output file (default stdout)")
	exportJSONCmd.Flags().BoolVar(&withStates, "states", false, "include precursor states")

	phaseCmd := &cobra.Command{
		Use:   "phase [run_id]",
		Short: "phase plot of two state components",
		Args:  cobra.ExactArgs(1),
		RunE:  phasePlot,
	}
	phaseCmd.Flags().IntVar(&xAxis, "x-axis", 0, "state index for x-axis (0 is power)")
	phaseCmd.Flags().IntVar(&yAxis, "y-axis", 1, "state index for y-axis")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "solve a range of step reactivities in parallel",
		Args:  cobra.NoArgs,
		RunE:  sweepReactivity,
	}
	sweepCmd.Flags().Float64Var(&sweepFrom, "from", 0.0005, "first reactivity")
	sweepCmd.Flags().Float64Var(&sweepTo, "to", 0.005, "last reactivity")
	sweepCmd.Flags().IntVar(&sweepN, "n", 10, "number of reactivities")
	sweepCmd.Flags().Float64Var(&tEnd, "t-end", 0, "end time (default from config)")
	sweepCmd.Flags().Float64Var(&dt, "dt", 0, "time step (default from config)")
	sweepCmd.Flags().IntVar(&workers, "workers", 0, "parallel solves (0 uses all CPUs)")
	sweepCmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	compareCmd := &cobra.Command{
		Use:   "compare [integrator1] [integrator2] ...",
		Short: "compare integrators on the same transient",
		Args:  cobra.ArbitraryArgs,
		RunE:  compareIntegrators,
	}
	addTransientFlags(compareCmd)

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "benchmark the solver",
		Args:  cobra.NoArgs,
		RunE:  benchSolver,
	}
	benchCmd.Flags().StringVar(&integrator, "integrator", "", "integrator")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list transient presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	constantsCmd := &cobra.Command{
		Use:   "constants",
		Short: "show the kinetics constants in use",
		Args:  cobra.NoArgs,
		RunE:  showConstants,
	}
	constantsCmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "serve the web transient explorer",
		Args:  cobra.NoArgs,
		RunE:  serveExplorer,
	}
	serveCmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")

	exploreCmd := &cobra.Command{
		Use:   "explore",
		Short: "terminal transient explorer",
		Args:  cobra.NoArgs,
		RunE:  exploreTransient,
	}
	addTransientFlags(exploreCmd)

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a scripted sequence of transients",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	monteCarloCmd := &cobra.Command{
		Use:   "montecarlo",
		Short: "propagate delayed-neutron data uncertainty through a transient",
		Args:  cobra.NoArgs,
		RunE:  runMonteCarlo,
	}
	addTransientFlags(monteCarloCmd)
	monteCarloCmd.Flags().IntVar(&trials, "trials", 100, "number of trials")
	monteCarloCmd.Flags().Float64Var(&perturbation, "perturbation", 0.05, "relative spread of each beta_i and lambda_i")
	monteCarloCmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 uses the clock)")
	monteCarloCmd.Flags().IntVar(&workers, "workers", 0, "parallel solves (0 uses all CPUs)")
	monteCarloCmd.Flags().BoolVar(&asJSON, "json", false, "print every trial as JSON")

	inhourCmd := &cobra.Command{
		Use:   "inhour",
		Short: "find the step reactivity for a target stable period",
		Args:  cobra.NoArgs,
		RunE:  findReactivity,
	}
	inhourCmd.Flags().Float64Var(&targetPeriod, "period", 20, "target stable period in seconds")
	inhourCmd.Flags().Float64Var(&searchLo, "lo", 1e-4, "lowest reactivity to try")
	inhourCmd.Flags().Float64Var(&searchHi, "hi", 0.006, "highest reactivity to try")
	inhourCmd.Flags().Float64Var(&searchTEnd, "t-end", 40, "transient length used to estimate the period")
	inhourCmd.Flags().Float64Var(&searchDt, "dt", 5e-3, "time step")
	inhourCmd.Flags().StringVar(&integrator, "integrator", "", "integrator (default from config)")

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, exportCmd, exportCSVCmd, exportJSONCmd, phaseCmd,
		sweepCmd, compareCmd, benchCmd, presetsCmd, constantsCmd, serveCmd, exploreCmd,
		scenarioCmd, monteCarloCmd, inhourCmd)
	return rootCmd
}

func addTransientFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&rho, "rho", 0, "step reactivity (default from config)")
	cmd.Flags().Float64Var(&tEnd, "t-end", 0, "end time in seconds (default from config)")
	cmd.Flags().Float64Var(&dt, "dt", 0, "time step in seconds (default from config)")
	cmd.Flags().StringVar(&integrator, "integrator", "", "integrator (default from config)")
	cmd.Flags().StringVar(&preset, "preset", "", "use a transient preset")
}

// loadConfig layers the config file, then a preset, then explicit flags over
// the defaults.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Lookup("preset") != nil && preset != "" {
		p := config.GetPreset(preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
		cfg.Transient = p.Transient
	}

	if flags.Changed("data") || configFile == "" {
		cfg.Storage.Dir = dataDir
	}
	if flags.Changed("store") || configFile == "" {
		cfg.Storage.Backend = storeBackend
	}
	if flags.Changed("cache") {
		cfg.Cache.Backend = cacheBackend
	}
	if flags.Changed("redis-addr") {
		cfg.Cache.RedisAddr = redisAddr
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = logFormat
	}
	// read transient flags by name; commands bind them to different variables
	if flags.Changed("rho") {
		cfg.Transient.Rho, _ = flags.GetFloat64("rho")
	}
	if flags.Changed("t-end") {
		cfg.Transient.TEnd, _ = flags.GetFloat64("t-end")
	}
	if flags.Changed("dt") {
		cfg.Transient.Dt, _ = flags.GetFloat64("dt")
	}
	if flags.Changed("integrator") {
		cfg.Transient.Integrator, _ = flags.GetString("integrator")
	}
	if flags.Changed("addr") {
		cfg.Server.Addr = addr
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	return logging.NewWriter(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
}

// newExperiment wires the cache and logger for cfg. The returned func
// releases the cache.
func newExperiment(cfg *config.Config, log *slog.Logger, collector *observability.Collector) (*experiment.Experiment, func(), error) {
	consts, err := cfg.KineticsConstants()
	if err != nil {
		return nil, nil, err
	}
	ch, err := cache.FromConfig(cfg.Cache)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if c, ok := ch.(io.Closer); ok {
			c.Close()
		}
	}

	opts := []experiment.Option{experiment.WithLogger(log)}
	if ch != nil {
		opts = append(opts, experiment.WithCache(ch))
	}
	if collector != nil {
		opts = append(opts, experiment.WithCollector(collector))
	}
	exp, err := experiment.New(consts, opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return exp, cleanup, nil
}

func openStore(cfg *config.Config) (storage.Store, error) {
	return storage.Open(cfg.Storage)
}

func newCollector() (*observability.Collector, error) {
	return observability.NewCollector(prometheus.NewRegistry())
}

func exploreTransient(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	exp, cleanup, err := newExperiment(cfg, logging.NewNop(), nil)
	if err != nil {
		return err
	}
	defer cleanup()
	return tui.RunExplorer(exp, cfg.Request())
}
