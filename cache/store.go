package cache

import (
	"errors"
	"fmt"
)

// MaxLines caps how many lines a single store may hold.
const MaxLines = 1 << 28

// ErrAllocation is wrapped by AllocationError.
var ErrAllocation = errors.New("cannot allocate cache lines")

// AllocationError reports a geometry whose line storage cannot be obtained.
type AllocationError struct {
	Sets int
	Ways int
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("%v: %d sets x %d ways exceeds %d lines",
		ErrAllocation, e.Sets, e.Ways, MaxLines)
}

func (e *AllocationError) Unwrap() error {
	return ErrAllocation
}

// A Line is one way of a set.
type Line struct {
	Valid bool
	Tag   uint64
}

// A Set is the group of lines selected by one index value, together with the
// replacement state of the group.
type Set struct {
	Lines []Line

	// PLRUBits stores the decision tree, node n at bit n. Children of node n
	// are 2n+1 (bit value 0) and 2n+2 (bit value 1).
	PLRUBits uint64

	// FIFOPointer is the next way to evict under FIFO.
	FIFOPointer int
}

// lookup returns the way holding tag, or -1.
func (s *Set) lookup(tag uint64) int {
	for way := range s.Lines {
		if s.Lines[way].Valid && s.Lines[way].Tag == tag {
			return way
		}
	}

	return -1
}

// Store holds every set of the cache. Lines of all sets share one backing
// slice, set i owning lines [i*ways, (i+1)*ways).
type Store struct {
	sets  []Set
	lines []Line
	ways  int
}

// NewStore allocates an empty store for config.
func NewStore(config Config) (*Store, error) {
	if config.SetNum <= 0 || config.Associativity <= 0 {
		return nil, &AllocationError{Sets: config.SetNum, Ways: config.Associativity}
	}

	if config.SetNum > MaxLines/config.Associativity {
		return nil, &AllocationError{Sets: config.SetNum, Ways: config.Associativity}
	}

	s := &Store{
		sets:  make([]Set, config.SetNum),
		lines: make([]Line, config.SetNum*config.Associativity),
		ways:  config.Associativity,
	}

	for i := range s.sets {
		s.sets[i].Lines = s.lines[i*s.ways : (i+1)*s.ways : (i+1)*s.ways]
	}

	return s, nil
}

// Set returns the set at index.
func (s *Store) Set(index uint64) *Set {
	return &s.sets[index]
}

// NumSets returns the number of sets.
func (s *Store) NumSets() int {
	return len(s.sets)
}

// Ways returns the number of lines per set.
func (s *Store) Ways() int {
	return s.ways
}

// ValidLines counts lines currently holding a block.
func (s *Store) ValidLines() int {
	n := 0
	for _, l := range s.lines {
		if l.Valid {
			n++
		}
	}

	return n
}

// Reset invalidates every line and clears replacement state.
func (s *Store) Reset() {
	for i := range s.lines {
		s.lines[i] = Line{}
	}

	for i := range s.sets {
		s.sets[i].PLRUBits = 0
		s.sets[i].FIFOPointer = 0
	}
}
