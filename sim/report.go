package sim

import (
	"fmt"
	"io"

	"github.com/sarchlab/cachesim/cache"
)

// PrintConfig writes the resolved cache geometry.
func PrintConfig(w io.Writer, c cache.Config) {
	_, _ = fmt.Fprintln(w, "--- Cache Configuration ---")
	_, _ = fmt.Fprintf(w, "Total size:     %d bytes\n", c.TotalSize)
	_, _ = fmt.Fprintf(w, "Block size:     %d bytes\n", c.BlockSize)
	_, _ = fmt.Fprintf(w, "Blocks:         %d\n", c.BlockNum)
	_, _ = fmt.Fprintf(w, "Associativity:  %d-way\n", c.Associativity)
	_, _ = fmt.Fprintf(w, "Sets:           %d\n", c.SetNum)
	_, _ = fmt.Fprintf(w, "Policy:         %s\n", c.Policy)
	_, _ = fmt.Fprintf(w, "Offset bits:    %d\n", c.OffsetBits)
	_, _ = fmt.Fprintf(w, "Index bits:     %d\n", c.IndexBits)
	_, _ = fmt.Fprintf(w, "Tag bits:       %d\n", c.TagBits)
	_, _ = fmt.Fprintln(w, "---------------------------")
}

// PrintStats writes access counts and the hit rate.
func PrintStats(w io.Writer, stats cache.Statistics) {
	_, _ = fmt.Fprintf(w, "Total accesses: %d\n", stats.Accesses)
	_, _ = fmt.Fprintf(w, "Hits:           %d\n", stats.Hits)
	_, _ = fmt.Fprintf(w, "Misses:         %d\n", stats.Misses)
	_, _ = fmt.Fprintf(w, "Evictions:      %d\n", stats.Evictions)
	_, _ = fmt.Fprintf(w, "Hit rate:       %s\n", FormatHitRate(stats))
}

// PrintReport writes the statistics of a completed run.
func PrintReport(w io.Writer, r Report) {
	_, _ = fmt.Fprintln(w, "--- Simulation Results ---")
	PrintStats(w, r.Stats)
	_, _ = fmt.Fprintf(w, "Wall time:      %v\n", r.WallTime)
	_, _ = fmt.Fprintln(w, "--------------------------")
}

// FormatHitRate renders the hit rate as a percentage with four decimals.
func FormatHitRate(stats cache.Statistics) string {
	rate, ok := stats.HitRate()
	if !ok {
		return "N/A (no accesses)"
	}

	return fmt.Sprintf("%.4f%%", rate*100)
}
