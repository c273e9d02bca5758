package main

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MJE43/lattice-walk-go/internal/config"
	"github.com/MJE43/lattice-walk-go/internal/engine"
	"github.com/MJE43/lattice-walk-go/internal/logging"
	"github.com/MJE43/lattice-walk-go/internal/report"
	"github.com/MJE43/lattice-walk-go/internal/sampling"
	"github.com/MJE43/lattice-walk-go/internal/store"
	"github.com/MJE43/lattice-walk-go/internal/sweep"
)

// app carries flag values and the resolved configuration between the
// pre-run hook and the command bodies.
type app struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	dbPath     string
	logLevel   string

	samples    int
	sweepList  string
	sweepExpr  string
	workers    int
	seedServer string
	seedClient string
	precision  int
	save       bool

	cfg    *config.Config
	steps  []int
	logger *zap.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}
	return a.rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "walksim",
		Short: "Monte Carlo estimates for random walks on the 2D square lattice",
		Long: `walksim samples simple, non-reversing and self-avoiding walks on the
square lattice and prints their mean lengths.

Run without a subcommand to sweep the default step counts (10, 30, ..., 990)
with 100000 samples each and print:

  # Mean number of steps for 2D SAW = <mean> (<samples> samples)
  # steps	lattice	no_ret
  <steps>	<simple mean>	<non-reversing mean>`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
		RunE: a.runSweep,
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", config.DefaultPath, "config file")
	pf.StringVar(&a.dbPath, "db", "", "run database path (overrides config)")
	pf.StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error")

	f := root.Flags()
	f.IntVar(&a.samples, "samples", sampling.DefaultSamples, "trials per estimate")
	f.StringVar(&a.sweepList, "sweep", "", "comma-separated step counts, e.g. 10,990,30")
	f.StringVar(&a.sweepExpr, "sweep-expr", "", "JavaScript expression over i giving the i-th step count")
	f.IntVar(&a.workers, "workers", 0, "worker goroutines (0 = GOMAXPROCS)")
	f.StringVar(&a.seedServer, "seed-server", "", "server seed for reproducible runs")
	f.StringVar(&a.seedClient, "seed-client", "", "client seed for reproducible runs")
	f.IntVar(&a.precision, "precision", report.ShortestPrecision, "decimal places in the report (-1 = shortest)")
	f.BoolVar(&a.save, "save", false, "store the run in the database")
	root.MarkFlagsMutuallyExclusive("sweep", "sweep-expr")

	root.AddCommand(
		a.serveCmd(),
		a.traceCmd(),
		a.runsCmd(),
		a.tokenCmd(),
		a.versionCmd(),
	)
	return root
}

// setup loads configuration, applies flags over it and builds the logger.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("samples") {
		cfg.Samples = a.samples
	}
	if flags.Changed("workers") {
		cfg.Workers = a.workers
	}
	if flags.Changed("precision") {
		cfg.Precision = a.precision
	}
	if flags.Changed("sweep") {
		steps, err := sweep.Parse(a.sweepList)
		if err != nil {
			return fmt.Errorf("invalid --sweep: %w", err)
		}
		cfg.Sweep.List = steps
		cfg.Sweep.Expression = ""
	}
	if flags.Changed("sweep-expr") {
		cfg.Sweep.List = nil
		cfg.Sweep.Expression = a.sweepExpr
	}
	if flags.Changed("seed-server") {
		cfg.Seeds.Server = a.seedServer
	}
	if flags.Changed("seed-client") {
		cfg.Seeds.Client = a.seedClient
	}
	if a.dbPath != "" {
		cfg.Store.Path = a.dbPath
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	// Only the root command samples the configured sweep.
	if cmd == cmd.Root() {
		if a.steps, err = cfg.Steps(); err != nil {
			return fmt.Errorf("invalid sweep: %w", err)
		}
	}

	if a.logger == nil {
		a.logger, err = logging.New(cfg.Logging.Level, cfg.Logging.Format)
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *app) newSampler(opts ...sampling.Option) *sampling.Sampler {
	base := []sampling.Option{
		sampling.WithWorkers(a.cfg.Workers),
		sampling.WithChunkSize(a.cfg.ChunkSize),
		sampling.WithSelfAvoidingLimit(a.cfg.MaxSelfAvoidingSteps),
		sampling.WithLogger(a.logger),
	}
	return sampling.NewSampler(append(base, opts...)...)
}

func (a *app) openStore(cmd *cobra.Command) (*store.SQLiteDB, error) {
	db, err := store.NewSQLiteDB(a.cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(cmd.Context()); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// runSweep is the default command: sweep, optionally save, print the report.
func (a *app) runSweep(cmd *cobra.Command, args []string) error {
	sampler := a.newSampler(sampling.WithProgress(progressLogger(a.logger)))
	res, err := sampler.Sweep(cmd.Context(), sampling.SweepRequest{
		Samples: a.cfg.Samples,
		Steps:   a.steps,
		Seeds:   a.cfg.Seeds,
	})
	if err != nil {
		return err
	}

	if a.save {
		db, err := a.openStore(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		run := store.FromSweep(res)
		if err := db.SaveRun(cmd.Context(), run); err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		a.logger.Info("run_saved",
			zap.String("run_id", run.ID),
			zap.String("server_seed_hash", run.ServerSeedHash),
			zap.String("db", a.cfg.Store.Path),
		)
		fmt.Fprintf(a.stderr, "saved run %s\n", run.ID)
	}

	return report.NewEmitter(a.cfg.Precision).Write(a.stdout, res)
}

// progressLogger logs each completed tenth of a run.
func progressLogger(logger *zap.Logger) sampling.ProgressFunc {
	var lastDecile atomic.Int64
	return func(done, total uint64) {
		if total == 0 {
			return
		}
		decile := int64(done * 10 / total)
		for {
			prev := lastDecile.Load()
			if decile <= prev {
				return
			}
			if lastDecile.CompareAndSwap(prev, decile) {
				logger.Info("sweep_progress",
					zap.Uint64("done", done),
					zap.Uint64("total", total),
					zap.Int64("percent", decile*10),
				)
				return
			}
		}
	}
}

// seedsHash is logged instead of the plain server seed.
func seedsHash(seeds engine.Seeds) string {
	return engine.HashSeed(seeds.Server)
}
