// Package cache models a set-associative cache driven one address at a time.
package cache

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"
)

// MaxAssociativity bounds the number of ways so the per-set PLRU tree fits in
// a single uint64.
const MaxAssociativity = 64

// Policy selects how a victim way is chosen on a miss.
type Policy int

const (
	// PLRU is tree-based pseudo least recently used replacement.
	PLRU Policy = iota
	// FIFO evicts ways round-robin in fill order.
	FIFO
	// Random evicts a uniformly chosen way.
	Random
)

// Policies lists every supported replacement policy.
var Policies = []Policy{PLRU, FIFO, Random}

// String returns the policy name used on the command line.
func (p Policy) String() string {
	switch p {
	case PLRU:
		return "PLRU"
	case FIFO:
		return "FIFO"
	case Random:
		return "RANDOM"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy converts a policy name into a Policy.
func ParsePolicy(name string) (Policy, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "PLRU":
		return PLRU, nil
	case "FIFO":
		return FIFO, nil
	case "RANDOM":
		return Random, nil
	}

	return 0, &ConfigError{Param: "policy", Value: name, Err: ErrUnknownPolicy}
}

// MarshalText implements encoding.TextMarshaler.
func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Policy) UnmarshalText(text []byte) error {
	parsed, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}

	*p = parsed

	return nil
}

// Configuration errors. Every error returned by NewConfig wraps exactly one of
// these.
var (
	ErrMissingParameter           = errors.New("missing parameter")
	ErrNotPowerOfTwo              = errors.New("not a power of two")
	ErrAssociativityExceedsBlocks = errors.New("associativity exceeds block count")
	ErrAssociativityTooLarge      = errors.New("associativity too large")
	ErrAddressWidthExceeded       = errors.New("offset and index bits exceed address width")
	ErrUnknownPolicy              = errors.New("unknown replacement policy")
)

// ConfigError reports a rejected cache parameter.
type ConfigError struct {
	Param string
	Value any
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s %v: %v", e.Param, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Config is a validated cache geometry. Build one with NewConfig.
type Config struct {
	// TotalSize in bytes
	TotalSize int
	// BlockSize in bytes (cache line size)
	BlockSize int
	// Associativity is the number of ways per set
	Associativity int
	// Policy is the replacement policy
	Policy Policy

	BlockNum   int
	SetNum     int
	OffsetBits int
	IndexBits  int
	TagBits    int
}

// NewConfig validates the user supplied geometry and derives the bit-field
// widths. Checks run in a fixed order so the first violation is reported.
func NewConfig(totalSize, blockSize, associativity int, policy Policy) (Config, error) {
	switch {
	case totalSize == 0:
		return Config{}, &ConfigError{Param: "total size", Value: totalSize, Err: ErrMissingParameter}
	case blockSize == 0:
		return Config{}, &ConfigError{Param: "block size", Value: blockSize, Err: ErrMissingParameter}
	case associativity == 0:
		return Config{}, &ConfigError{Param: "associativity", Value: associativity, Err: ErrMissingParameter}
	}

	for _, p := range []struct {
		name  string
		value int
	}{
		{"total size", totalSize},
		{"block size", blockSize},
		{"associativity", associativity},
	} {
		if !isPowerOfTwo(p.value) {
			return Config{}, &ConfigError{Param: p.name, Value: p.value, Err: ErrNotPowerOfTwo}
		}
	}

	if policy < PLRU || policy > Random {
		return Config{}, &ConfigError{Param: "policy", Value: int(policy), Err: ErrUnknownPolicy}
	}

	blockNum := totalSize / blockSize
	if associativity > blockNum {
		return Config{}, &ConfigError{
			Param: "associativity",
			Value: associativity,
			Err:   fmt.Errorf("%w (%d blocks)", ErrAssociativityExceedsBlocks, blockNum),
		}
	}

	if associativity > MaxAssociativity {
		return Config{}, &ConfigError{
			Param: "associativity",
			Value: associativity,
			Err:   fmt.Errorf("%w (max %d)", ErrAssociativityTooLarge, MaxAssociativity),
		}
	}

	setNum := blockNum / associativity
	offsetBits := log2(blockSize)
	indexBits := log2(setNum)

	if offsetBits+indexBits > AddressWidth {
		return Config{}, &ConfigError{
			Param: "total size",
			Value: totalSize,
			Err:   fmt.Errorf("%w (%d bits)", ErrAddressWidthExceeded, AddressWidth),
		}
	}

	return Config{
		TotalSize:     totalSize,
		BlockSize:     blockSize,
		Associativity: associativity,
		Policy:        policy,
		BlockNum:      blockNum,
		SetNum:        setNum,
		OffsetBits:    offsetBits,
		IndexBits:     indexBits,
		TagBits:       AddressWidth - offsetBits - indexBits,
	}, nil
}

// TreeLevels is the depth of the PLRU decision tree, log2(Associativity).
func (c Config) TreeLevels() int {
	return log2(c.Associativity)
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// log2 of a power of two.
func log2(n int) int {
	return bits.TrailingZeros64(uint64(n))
}
