// Package config holds the settings of a simulation run and loads them from
// files and the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/cachesim/cache"
	"github.com/sarchlab/cachesim/trace"
)

// EnvPrefix starts every environment variable the loader understands.
const EnvPrefix = "CACHESIM_"

// Config describes one simulation run.
type Config struct {
	// TotalSize is the cache capacity in bytes.
	TotalSize int `yaml:"total_size"`

	// BlockSize is the line size in bytes.
	BlockSize int `yaml:"block_size"`

	// Associativity is the number of ways per set.
	Associativity int `yaml:"associativity"`

	// Policy names the replacement policy: PLRU, FIFO or RANDOM.
	Policy string `yaml:"policy"`

	// TracePath is the binary address trace to simulate.
	TracePath string `yaml:"trace,omitempty"`

	// ByteOrder of the trace records: native, little or big.
	ByteOrder string `yaml:"byte_order"`

	// Seed fixes the random replacement generator. Nil seeds from the clock.
	Seed *uint64 `yaml:"seed,omitempty"`

	// ProgressInterval is the number of addresses between progress lines.
	// Zero disables progress output.
	ProgressInterval uint64 `yaml:"progress_interval"`

	// RecordPath is an SQLite database that receives the run summary.
	RecordPath string `yaml:"record,omitempty"`
}

// Default returns a 32KiB, 8-way, 64B-line PLRU cache reading a native
// byte order trace.
func Default() *Config {
	return &Config{
		TotalSize:        32 * 1024,
		BlockSize:        64,
		Associativity:    8,
		Policy:           cache.PLRU.String(),
		ByteOrder:        "native",
		ProgressInterval: 1_000_000,
	}
}

// Load reads a YAML (or JSON) file on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return c, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Seed != nil {
		seed := *c.Seed
		clone.Seed = &seed
	}

	return &clone
}

// CacheConfig resolves the cache geometry.
func (c *Config) CacheConfig() (cache.Config, error) {
	policy, err := cache.ParsePolicy(c.Policy)
	if err != nil {
		return cache.Config{}, err
	}

	return cache.NewConfig(c.TotalSize, c.BlockSize, c.Associativity, policy)
}

// Validate checks the geometry, the policy and the byte order.
func (c *Config) Validate() error {
	if _, err := c.CacheConfig(); err != nil {
		return err
	}

	if _, err := trace.ParseByteOrder(c.ByteOrder); err != nil {
		return err
	}

	return nil
}

// Environ collects the CACHESIM_ variables from an optional .env file and the
// process environment. Process variables win over the file.
func Environ(envFile string) (map[string]string, error) {
	env := map[string]string{}

	if envFile != "" {
		fileEnv, err := godotenv.Read(envFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read env file: %w", err)
		}

		for k, v := range fileEnv {
			if strings.HasPrefix(k, EnvPrefix) {
				env[k] = v
			}
		}
	}

	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(k, EnvPrefix) {
			env[k] = v
		}
	}

	return env, nil
}

// ApplyEnv overrides fields from CACHESIM_ variables. Unknown keys are
// ignored.
func (c *Config) ApplyEnv(env map[string]string) error {
	ints := map[string]*int{
		"TOTAL_SIZE":    &c.TotalSize,
		"BLOCK_SIZE":    &c.BlockSize,
		"ASSOCIATIVITY": &c.Associativity,
	}
	for key, field := range ints {
		v, ok := env[EnvPrefix+key]
		if !ok {
			continue
		}

		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*field = n
	}

	strs := map[string]*string{
		"POLICY":     &c.Policy,
		"TRACE":      &c.TracePath,
		"BYTE_ORDER": &c.ByteOrder,
		"RECORD":     &c.RecordPath,
	}
	for key, field := range strs {
		if v, ok := env[EnvPrefix+key]; ok {
			*field = v
		}
	}

	if v, ok := env[EnvPrefix+"SEED"]; ok {
		seed, err := strconv.ParseUint(strings.TrimSpace(v), 0, 64)
		if err != nil {
			return fmt.Errorf("%sSEED: %w", EnvPrefix, err)
		}
		c.Seed = &seed
	}

	if v, ok := env[EnvPrefix+"PROGRESS_INTERVAL"]; ok {
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("%sPROGRESS_INTERVAL: %w", EnvPrefix, err)
		}
		c.ProgressInterval = n
	}

	return nil
}
