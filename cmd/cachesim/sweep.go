package main

import (
	"errors"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/sarchlab/cachesim/cache"
	"github.com/sarchlab/cachesim/sweep"
	"github.com/sarchlab/cachesim/trace"
)

func newSweepCommand(a *app) *cobra.Command {
	defaults := sweep.DefaultConfig()

	var (
		tracePath   string
		byteOrder   string
		totalSize   int
		blocks      []int
		assocs      []int
		policies    []string
		jobs        int
		seed        uint64
		csv         bool
		baselineLRU bool
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Rank many cache geometries and policies on one trace.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if tracePath == "" {
				env, err := a.environ()
				if err != nil {
					return err
				}
				tracePath = env["CACHESIM_TRACE"]
			}
			if tracePath == "" {
				return errors.New("no trace file given (use -t or CACHESIM_TRACE)")
			}

			order, err := trace.ParseByteOrder(byteOrder)
			if err != nil {
				return err
			}

			parsed := make([]cache.Policy, 0, len(policies))
			for _, name := range policies {
				p, err := cache.ParsePolicy(name)
				if err != nil {
					return err
				}
				parsed = append(parsed, p)
			}

			h := sweep.NewHarness(sweep.HarnessConfig{
				TotalSize:       totalSize,
				BlockSizes:      blocks,
				Associativities: assocs,
				Policies:        parsed,
				Seed:            seed,
				Jobs:            jobs,
				TracePath:       tracePath,
				ByteOrder:       order,
				Baseline:        baselineLRU,
				Output:          a.out,
				Logger:          a.logger,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			results, err := h.RunAll(ctx)
			if err != nil {
				return err
			}

			if csv {
				h.PrintCSV(results)
			} else {
				h.PrintResults(results)
			}

			return nil
		},
	}

	defaultPolicies := make([]string, 0, len(defaults.Policies))
	for _, p := range defaults.Policies {
		defaultPolicies = append(defaultPolicies, p.String())
	}

	flags := cmd.Flags()
	flags.StringVarP(&tracePath, "trace", "t", "", "Binary address trace")
	flags.StringVar(&byteOrder, "byte-order", "", "Trace byte order: native, little or big")
	flags.IntVar(&totalSize, "size", defaults.TotalSize, "Total cache size in bytes")
	flags.IntSliceVar(&blocks, "blocks", defaults.BlockSizes, "Block sizes to try")
	flags.IntSliceVar(&assocs, "assoc", defaults.Associativities, "Associativities to try")
	flags.StringSliceVar(&policies, "policies", defaultPolicies, "Replacement policies to try")
	flags.IntVar(&jobs, "jobs", 0, "Concurrent simulations (0 = one per CPU)")
	flags.Uint64Var(&seed, "seed", 0, "Seed of the random replacement policy")
	flags.BoolVar(&csv, "csv", false, "Print CSV instead of a table")
	flags.BoolVar(&baselineLRU, "baseline-lru", false, "Add a true-LRU row per geometry")

	return cmd
}
