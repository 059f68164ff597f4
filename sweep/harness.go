// Package sweep simulates one trace under many cache geometries and
// replacement policies and ranks them by hit rate.
package sweep

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/cachesim/baseline"
	"github.com/sarchlab/cachesim/cache"
	"github.com/sarchlab/cachesim/sim"
	"github.com/sarchlab/cachesim/trace"
)

// BaselineName labels the true-LRU rows of a sweep.
const BaselineName = "LRU"

// HarnessConfig configures the sweep harness.
type HarnessConfig struct {
	// TotalSize is the cache capacity shared by every point, in bytes.
	TotalSize int

	// BlockSizes, Associativities and Policies span the grid.
	BlockSizes      []int
	Associativities []int
	Policies        []cache.Policy

	// Seed seeds the random policy of every point.
	Seed uint64

	// Jobs bounds the number of concurrent simulations (0 = NumCPU).
	Jobs int

	// TracePath is the binary trace every point replays.
	TracePath string

	// ByteOrder of the trace records (nil = native).
	ByteOrder binary.ByteOrder

	// Baseline adds a true-LRU row for every block size and associativity.
	Baseline bool

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Logger receives per-point debug lines (default: discarded).
	Logger *logrus.Logger
}

// DefaultConfig returns the grid explored for a 64-byte cache: block sizes
// 4 to 64 bytes, 1 to 8 ways, every policy.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		TotalSize:       64,
		BlockSizes:      []int{4, 8, 16, 32, 64},
		Associativities: []int{1, 2, 4, 8},
		Policies:        append([]cache.Policy(nil), cache.Policies...),
		Output:          os.Stdout,
	}
}

// Result holds the outcome of one grid point.
type Result struct {
	// Name is the policy name, or BaselineName for true-LRU rows.
	Name string

	BlockSize     int
	Associativity int

	// Config is the resolved geometry. It is zero when Err is a config error.
	Config cache.Config
	Stats  cache.Statistics

	// Err is set when the point has no valid geometry.
	Err error

	WallTime time.Duration
}

// HitRate returns the hit rate of the point. ok is false for invalid points
// and for empty traces.
func (r Result) HitRate() (rate float64, ok bool) {
	if r.Err != nil {
		return 0, false
	}

	return r.Stats.HitRate()
}

// Harness runs a sweep.
type Harness struct {
	config HarnessConfig
}

// NewHarness creates a new sweep harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Jobs <= 0 {
		config.Jobs = runtime.NumCPU()
	}
	if config.Logger == nil {
		config.Logger = logrus.New()
		config.Logger.SetOutput(io.Discard)
	}

	return &Harness{config: config}
}

type job struct {
	result   *Result
	baseline bool
}

// RunAll simulates every grid point and returns the results ranked by hit
// rate, best first. Points without a valid geometry come last and carry
// their error. A trace that cannot be read aborts the sweep.
func (h *Harness) RunAll(ctx context.Context) ([]Result, error) {
	results, jobs := h.plan()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(h.config.Jobs)

	for _, j := range jobs {
		g.Go(func() error {
			return h.runPoint(ctx, j)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	rank(results)

	return results, nil
}

func (h *Harness) plan() ([]Result, []job) {
	var (
		results []Result
		flags   []bool
	)

	for _, block := range h.config.BlockSizes {
		for _, ways := range h.config.Associativities {
			for _, policy := range h.config.Policies {
				r := Result{Name: policy.String(), BlockSize: block, Associativity: ways}
				r.Config, r.Err = cache.NewConfig(h.config.TotalSize, block, ways, policy)
				results = append(results, r)
				flags = append(flags, false)
			}

			if h.config.Baseline {
				r := Result{Name: BaselineName, BlockSize: block, Associativity: ways}
				r.Config, r.Err = cache.NewConfig(h.config.TotalSize, block, ways, cache.PLRU)
				results = append(results, r)
				flags = append(flags, true)
			}
		}
	}

	var jobs []job
	for i := range results {
		if results[i].Err == nil {
			jobs = append(jobs, job{result: &results[i], baseline: flags[i]})
		}
	}

	return results, jobs
}

func (h *Harness) runPoint(ctx context.Context, j job) error {
	f, err := trace.Open(h.config.TracePath, h.config.ByteOrder)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	start := time.Now()
	r := j.result

	if j.baseline {
		stats, err := baseline.NewLRU(r.Config).Run(ctx, f)
		if err != nil {
			return err
		}
		r.Stats = stats
	} else {
		c, err := cache.New(r.Config, cache.WithSeed(h.config.Seed))
		if err != nil {
			return err
		}

		report, err := sim.NewSession(c, sim.WithProgressInterval(0)).Run(ctx, f)
		if err != nil {
			return err
		}
		r.Stats = report.Stats
	}

	r.WallTime = time.Since(start)

	h.config.Logger.WithFields(logrus.Fields{
		"policy":        r.Name,
		"block_size":    r.BlockSize,
		"associativity": r.Associativity,
		"hits":          r.Stats.Hits,
	}).Debug("sweep point done")

	return nil
}

// rank orders results by hit rate, best first. Ties keep grid order.
func rank(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		ri, iok := results[i].HitRate()
		rj, jok := results[j].HitRate()

		if iok != jok {
			return iok
		}
		if !iok {
			// valid geometries on an empty trace before invalid ones
			return results[i].Err == nil && results[j].Err != nil
		}

		return ri > rj
	})
}

// Best returns the highest ranked point with a hit rate.
func Best(results []Result) (Result, bool) {
	for _, r := range results {
		if _, ok := r.HitRate(); ok {
			return r, true
		}
	}

	return Result{}, false
}

// PrintResults outputs sweep results in a human-readable format.
func (h *Harness) PrintResults(results []Result) {
	out := h.config.Output

	_, _ = fmt.Fprintf(out, "=== Cache Sweep Results (%d bytes) ===\n", h.config.TotalSize)
	_, _ = fmt.Fprintf(out, "%-8s %6s %6s %6s %12s %12s %10s\n",
		"Policy", "Block", "Ways", "Sets", "Accesses", "Hits", "Hit rate")

	for _, r := range results {
		if r.Err != nil {
			_, _ = fmt.Fprintf(out, "%-8s %6d %6d %6s  invalid: %v\n",
				r.Name, r.BlockSize, r.Associativity, "-", r.Err)
			continue
		}

		_, _ = fmt.Fprintf(out, "%-8s %6d %6d %6d %12d %12d %10s\n",
			r.Name, r.BlockSize, r.Associativity, r.Config.SetNum,
			r.Stats.Accesses, r.Stats.Hits, sim.FormatHitRate(r.Stats))
	}

	if best, ok := Best(results); ok {
		rate, _ := best.HitRate()
		_, _ = fmt.Fprintf(out, "\nBest: %s, %d-byte blocks, %d-way (%.4f%%)\n",
			best.Name, best.BlockSize, best.Associativity, rate*100)
	}
}

// PrintCSV outputs sweep results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []Result) {
	_, _ = fmt.Fprintln(h.config.Output,
		"policy,total_size,block_size,associativity,sets,accesses,hits,misses,evictions,hit_rate,error")

	for _, r := range results {
		rate := ""
		if v, ok := r.HitRate(); ok {
			rate = fmt.Sprintf("%.6f", v)
		}

		errText := ""
		if r.Err != nil {
			errText = fmt.Sprintf("%q", r.Err.Error())
		}

		_, _ = fmt.Fprintf(h.config.Output, "%s,%d,%d,%d,%d,%d,%d,%d,%d,%s,%s\n",
			r.Name,
			h.config.TotalSize,
			r.BlockSize,
			r.Associativity,
			r.Config.SetNum,
			r.Stats.Accesses,
			r.Stats.Hits,
			r.Stats.Misses,
			r.Stats.Evictions,
			rate,
			errText,
		)
	}
}
