package main

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/sarchlab/cachesim/baseline"
	"github.com/sarchlab/cachesim/cache"
	"github.com/sarchlab/cachesim/config"
	"github.com/sarchlab/cachesim/record"
	"github.com/sarchlab/cachesim/sim"
	"github.com/sarchlab/cachesim/trace"
)

type runFlags struct {
	configPath  string
	totalSize   int
	blockSize   int
	assoc       int
	policy      string
	tracePath   string
	byteOrder   string
	seed        uint64
	progress    uint64
	recordPath  string
	baselineLRU bool
}

func newRunCommand(a *app) *cobra.Command {
	f := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Simulate one cache configuration over a trace.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.resolve(a, cmd)
			if err != nil {
				return err
			}

			return a.run(cmd.Context(), cfg, f.baselineLRU)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.configPath, "config", "", "YAML or JSON run configuration file")
	flags.IntVarP(&f.totalSize, "size", "s", 0, "Total cache size in bytes (power of two)")
	flags.IntVarP(&f.blockSize, "block", "b", 0, "Block size in bytes (power of two)")
	flags.IntVarP(&f.assoc, "assoc", "a", 0, "Associativity (power of two, at most 64)")
	flags.StringVarP(&f.policy, "policy", "p", "", "Replacement policy: PLRU, FIFO or RANDOM")
	flags.StringVarP(&f.tracePath, "trace", "t", "", "Binary address trace")
	flags.StringVar(&f.byteOrder, "byte-order", "", "Trace byte order: native, little or big")
	flags.Uint64Var(&f.seed, "seed", 0, "Seed of the random replacement policy")
	flags.Uint64Var(&f.progress, "progress", 0, "Addresses between progress lines (0 disables)")
	flags.StringVar(&f.recordPath, "record", "", "SQLite database that receives the run summary")
	flags.BoolVar(&f.baselineLRU, "baseline-lru", false, "Also report a true-LRU cache of the same geometry")

	return cmd
}

// resolve layers defaults, the config file, the environment and explicitly
// set flags, in that order.
func (f *runFlags) resolve(a *app, cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()

	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	env, err := a.environ()
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(env); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("size") {
		cfg.TotalSize = f.totalSize
	}
	if flags.Changed("block") {
		cfg.BlockSize = f.blockSize
	}
	if flags.Changed("assoc") {
		cfg.Associativity = f.assoc
	}
	if flags.Changed("policy") {
		cfg.Policy = f.policy
	}
	if flags.Changed("trace") {
		cfg.TracePath = f.tracePath
	}
	if flags.Changed("byte-order") {
		cfg.ByteOrder = f.byteOrder
	}
	if flags.Changed("seed") {
		seed := f.seed
		cfg.Seed = &seed
	}
	if flags.Changed("progress") {
		cfg.ProgressInterval = f.progress
	}
	if flags.Changed("record") {
		cfg.RecordPath = f.recordPath
	}

	if cfg.TracePath == "" {
		return nil, errors.New("no trace file given (use -t or CACHESIM_TRACE)")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (a *app) run(ctx context.Context, cfg *config.Config, withBaseline bool) error {
	geometry, err := cfg.CacheConfig()
	if err != nil {
		return err
	}

	order, err := trace.ParseByteOrder(cfg.ByteOrder)
	if err != nil {
		return err
	}

	var opts []cache.Option
	if cfg.Seed != nil {
		opts = append(opts, cache.WithSeed(*cfg.Seed))
	}

	c, err := cache.New(geometry, opts...)
	if err != nil {
		return err
	}

	sim.PrintConfig(a.out, geometry)

	sessionOpts := []sim.Option{
		sim.WithLogger(a.logger),
		sim.WithProgressInterval(cfg.ProgressInterval),
		sim.WithProgressHook(resourceHook(a.logger)),
	}

	var (
		rec   *record.Recorder
		runID string
	)
	if cfg.RecordPath != "" {
		rec, err = record.New(cfg.RecordPath)
		if err != nil {
			return err
		}
		defer func() { _ = rec.Close() }()

		runID = rec.NewRunID()
		sessionOpts = append(sessionOpts, sim.WithProgressHook(rec.ProgressHook(runID)))
		a.logger.WithField("database", rec.Path()).Info("recording run " + runID)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	report, err := simulate(ctx, cfg.TracePath, order, sim.NewSession(c, sessionOpts...))
	if err != nil {
		return err
	}

	sim.PrintReport(a.out, report)

	var baselineStats *cache.Statistics
	if withBaseline {
		stats, err := runBaseline(ctx, cfg.TracePath, order, geometry)
		if err != nil {
			return err
		}

		baselineStats = &stats
		_, _ = fmt.Fprintf(a.out, "True LRU hit rate: %s\n", sim.FormatHitRate(stats))
	}

	if rec == nil {
		return nil
	}

	if _, err := rec.RecordRun(record.Run{
		ID:       runID,
		Trace:    cfg.TracePath,
		Report:   report,
		Baseline: baselineStats,
	}); err != nil {
		return err
	}

	return rec.Close()
}

func simulate(
	ctx context.Context,
	path string,
	order binary.ByteOrder,
	s *sim.Session,
) (sim.Report, error) {
	f, err := trace.Open(path, order)
	if err != nil {
		return sim.Report{}, err
	}
	defer func() { _ = f.Close() }()

	return s.Run(ctx, f)
}

func runBaseline(
	ctx context.Context,
	path string,
	order binary.ByteOrder,
	geometry cache.Config,
) (cache.Statistics, error) {
	f, err := trace.Open(path, order)
	if err != nil {
		return cache.Statistics{}, err
	}
	defer func() { _ = f.Close() }()

	return baseline.NewLRU(geometry).Run(ctx, f)
}
