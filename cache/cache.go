package cache

import (
	"math/rand/v2"
	"time"
)

// AccessResult describes what a single access did to the cache.
type AccessResult struct {
	// Hit indicates whether the tag was found in its set.
	Hit bool
	// Index is the set the address mapped to.
	Index uint64
	// Way is the line that hit, or the line the block was installed in.
	Way int
	// Tag is the decoded tag of the address.
	Tag uint64
	// Evicted is true if a valid line was overwritten.
	Evicted bool
	// EvictedTag is the tag of the overwritten line (if Evicted is true).
	EvictedTag uint64
}

// Statistics holds cache performance statistics.
type Statistics struct {
	Accesses  uint64
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// HitRate returns Hits/Accesses. ok is false when nothing was accessed.
func (s Statistics) HitRate() (rate float64, ok bool) {
	if s.Accesses == 0 {
		return 0, false
	}

	return float64(s.Hits) / float64(s.Accesses), true
}

// Option configures a Cache.
type Option func(*Cache)

// WithSeed seeds the random replacement generator.
func WithSeed(seed uint64) Option {
	return func(c *Cache) {
		c.seed = seed
		c.rng = NewRand(seed)
	}
}

// WithRand supplies the random replacement generator directly.
func WithRand(rng *rand.Rand) Option {
	return func(c *Cache) {
		c.rng = rng
	}
}

// Cache is a set-associative cache simulator. It is not safe for concurrent
// use.
type Cache struct {
	config   Config
	store    *Store
	replacer *Replacer
	stats    Statistics

	seed uint64
	rng  *rand.Rand
}

// New allocates a cache for config. Without WithSeed or WithRand the random
// policy is seeded from the wall clock.
func New(config Config, opts ...Option) (*Cache, error) {
	store, err := NewStore(config)
	if err != nil {
		return nil, err
	}

	c := &Cache{
		config: config,
		store:  store,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.rng == nil {
		c.seed = uint64(time.Now().UnixNano())
		c.rng = NewRand(c.seed)
	}

	c.replacer = NewReplacer(config, c.rng)

	return c, nil
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.config
}

// Seed returns the seed of the random replacement generator. It is
// meaningless when the generator was supplied with WithRand.
func (c *Cache) Seed() uint64 {
	return c.seed
}

// Store exposes the sets for inspection.
func (c *Cache) Store() *Store {
	return c.store
}

// Stats returns cache statistics.
func (c *Cache) Stats() Statistics {
	return c.stats
}

// ResetStats clears cache statistics.
func (c *Cache) ResetStats() {
	c.stats = Statistics{}
}

// Reset invalidates all lines, clears replacement state and statistics.
func (c *Cache) Reset() {
	c.store.Reset()
	c.stats = Statistics{}
}

// Access simulates one memory reference to addr.
func (c *Cache) Access(addr uint64) AccessResult {
	c.stats.Accesses++

	_, index, tag := c.config.Decode(addr)
	set := c.store.Set(index)

	if way := set.lookup(tag); way >= 0 {
		c.stats.Hits++
		c.replacer.OnHit(set, way)

		return AccessResult{
			Hit:   true,
			Index: index,
			Way:   way,
			Tag:   tag,
		}
	}

	c.stats.Misses++

	way := c.replacer.SelectVictim(set)
	line := &set.Lines[way]

	result := AccessResult{
		Index: index,
		Way:   way,
		Tag:   tag,
	}

	if line.Valid {
		c.stats.Evictions++
		result.Evicted = true
		result.EvictedTag = line.Tag
	}

	line.Valid = true
	line.Tag = tag

	return result
}
