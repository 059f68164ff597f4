package cache

import (
	"math/rand/v2"
	"time"
)

// Replacer keeps the replacement state of every set up to date and picks
// victims on misses. It dispatches on the configured policy.
type Replacer struct {
	policy Policy
	ways   int
	levels int
	rng    *rand.Rand
}

// NewReplacer creates a replacer for config. rng is only used by the Random
// policy; a nil rng is seeded from the wall clock.
func NewReplacer(config Config, rng *rand.Rand) *Replacer {
	if rng == nil && config.Policy == Random {
		rng = NewRand(uint64(time.Now().UnixNano()))
	}

	return &Replacer{
		policy: config.Policy,
		ways:   config.Associativity,
		levels: config.TreeLevels(),
		rng:    rng,
	}
}

// Policy returns the policy the replacer implements.
func (r *Replacer) Policy() Policy {
	return r.policy
}

// OnHit updates the replacement state after a hit in way.
func (r *Replacer) OnHit(set *Set, way int) {
	switch r.policy {
	case PLRU:
		r.plruTouch(set, way)
	case FIFO, Random:
	}
}

// SelectVictim returns the way to overwrite on a miss and updates the
// replacement state as if the new block had been installed there.
func (r *Replacer) SelectVictim(set *Set) int {
	switch r.policy {
	case PLRU:
		return r.plruVictim(set)
	case FIFO:
		return r.fifoVictim(set)
	case Random:
		return r.rng.IntN(r.ways)
	}

	panic("unknown replacement policy " + r.policy.String())
}

// plruTouch points every node on the path to way away from it. The path is
// given by the bits of way, most significant first.
func (r *Replacer) plruTouch(set *Set, way int) {
	node := 0
	for level := 0; level < r.levels; level++ {
		direction := (way >> uint(r.levels-1-level)) & 1

		if direction == 1 {
			set.PLRUBits &^= 1 << uint(node)
		} else {
			set.PLRUBits |= 1 << uint(node)
		}

		node = 2*node + 1 + direction
	}
}

// plruVictim follows the node bits from the root to a leaf, flipping each
// visited node so that it now points away from the chosen way.
func (r *Replacer) plruVictim(set *Set) int {
	way := 0
	node := 0
	for level := 0; level < r.levels; level++ {
		bit := int(set.PLRUBits>>uint(node)) & 1

		set.PLRUBits ^= 1 << uint(node)
		way = way<<1 | bit
		node = 2*node + 1 + bit
	}

	return way
}

func (r *Replacer) fifoVictim(set *Set) int {
	way := set.FIFOPointer
	set.FIFOPointer = (set.FIFOPointer + 1) % r.ways

	return way
}

// NewRand returns the generator used for random replacement, fully determined
// by seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
