// Package baseline provides a true-LRU reference cache built on Akita's
// cache directory.
package baseline

import (
	"context"
	"errors"
	"io"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"

	"github.com/sarchlab/cachesim/cache"
	"github.com/sarchlab/cachesim/sim"
	"github.com/sarchlab/cachesim/trace"
)

// LRU is a set-associative cache with exact least-recently-used
// replacement. It shares geometry and statistics with cache.Cache so the
// two can be compared on the same trace.
type LRU struct {
	config cache.Config

	// Akita cache directory for tag/state management
	directory *akitacache.DirectoryImpl

	stats cache.Statistics
}

// NewLRU creates a true-LRU cache with the geometry of config. The policy
// field of config is ignored.
func NewLRU(config cache.Config) *LRU {
	return &LRU{
		config: config,
		directory: akitacache.NewDirectory(
			config.SetNum,
			config.Associativity,
			config.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
	}
}

// Config returns the cache geometry.
func (l *LRU) Config() cache.Config {
	return l.config
}

// Stats returns cache statistics.
func (l *LRU) Stats() cache.Statistics {
	return l.stats
}

// ResetStats clears cache statistics.
func (l *LRU) ResetStats() {
	l.stats = cache.Statistics{}
}

// Reset invalidates all blocks and clears statistics.
func (l *LRU) Reset() {
	l.directory.Reset()
	l.stats = cache.Statistics{}
}

// Access simulates one memory reference to addr.
func (l *LRU) Access(addr uint64) cache.AccessResult {
	l.stats.Accesses++

	// The directory keeps block-aligned addresses as tags.
	blockAddr := l.config.BlockAddress(addr)
	_, index, tag := l.config.Decode(addr)

	block := l.directory.Lookup(0, blockAddr)
	if block != nil && block.IsValid {
		l.stats.Hits++
		l.directory.Visit(block)

		return cache.AccessResult{
			Hit:   true,
			Index: index,
			Way:   block.WayID,
			Tag:   tag,
		}
	}

	l.stats.Misses++

	victim := l.directory.FindVictim(blockAddr)
	result := cache.AccessResult{
		Index: index,
		Way:   victim.WayID,
		Tag:   tag,
	}

	if victim.IsValid {
		l.stats.Evictions++
		result.Evicted = true
		_, _, result.EvictedTag = l.config.Decode(victim.Tag)
	}

	victim.Tag = blockAddr
	victim.IsValid = true
	l.directory.Visit(victim)

	return result
}

// Run feeds every address of src to the cache and returns the statistics.
// It stops between two addresses when ctx is cancelled.
func (l *LRU) Run(ctx context.Context, src trace.Source) (cache.Statistics, error) {
	done := ctx.Done()

	for {
		select {
		case <-done:
			return cache.Statistics{}, ctx.Err()
		default:
		}

		addr, err := src.Next()
		if errors.Is(err, io.EOF) {
			return l.stats, nil
		}
		if err != nil {
			return cache.Statistics{}, &sim.TraceReadError{Processed: l.stats.Accesses, Err: err}
		}

		l.Access(addr)
	}
}
