// Package config holds the optimizer configuration: which named passes
// run, the resource limits bounding the hazard-aware searches, and the
// diagnostic sink. The JSON surface mirrors what the enclosing compiler's
// CLI passes through opaquely.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"runtime"
)

// Config holds the optimizer tunables.
type Config struct {
	// Passes selects the named optimization passes to run, in registry
	// order. Empty selects the default set. Required passes must be
	// present in a non-empty selection.
	Passes []string `json:"passes,omitempty"`

	// NopLookahead bounds the forward scan of the placeholder-replacement
	// search, capping worst-case pass latency. Default: 8 instructions.
	NopLookahead int `json:"nop_lookahead"`

	// AccumulatorWindow is the number of instructions a value may live
	// across while still fitting an accumulator. Default: 16.
	AccumulatorWindow int `json:"accumulator_window"`

	// CombineLoadWindow bounds how far apart two loads of the same literal
	// may be and still be combined. Default: 8.
	CombineLoadWindow int `json:"combine_load_window"`

	// SpillThreshold is the live-range length above which a local is
	// reported as a spill candidate. Default: 64.
	SpillThreshold int `json:"spill_threshold"`

	// UnrollWorkGroups enables the work-group unrolling pass.
	UnrollWorkGroups bool `json:"unroll_work_groups"`

	// MaxWorkers bounds how many methods are optimized concurrently.
	// 0 uses one worker per available CPU.
	MaxWorkers int `json:"max_workers"`

	// Log is the diagnostic sink. Purely observational; nil falls back to
	// slog.Default().
	Log *slog.Logger `json:"-"`
}

// Default returns a Config with the default tunables.
func Default() *Config {
	return &Config{
		NopLookahead:      8,
		AccumulatorWindow: 16,
		CombineLoadWindow: 8,
		SpillThreshold:    64,
	}
}

// Load reads a Config from a JSON file. Missing fields keep their
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read optimizer config file: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse optimizer config: %w", err)
	}

	return cfg, nil
}

// Save writes the Config to a JSON file.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize optimizer config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write optimizer config file: %w", err)
	}

	return nil
}

// Validate checks that all limits are usable.
func (c *Config) Validate() error {
	if c.NopLookahead <= 0 {
		return fmt.Errorf("nop_lookahead must be > 0")
	}
	if c.AccumulatorWindow <= 0 {
		return fmt.Errorf("accumulator_window must be > 0")
	}
	if c.CombineLoadWindow <= 0 {
		return fmt.Errorf("combine_load_window must be > 0")
	}
	if c.SpillThreshold <= 0 {
		return fmt.Errorf("spill_threshold must be > 0")
	}
	if c.MaxWorkers < 0 {
		return fmt.Errorf("max_workers must be >= 0")
	}
	return nil
}

// Clone returns a deep copy of the Config. The diagnostic sink is shared.
func (c *Config) Clone() *Config {
	out := *c
	out.Passes = append([]string(nil), c.Passes...)
	return &out
}

// Logger returns the diagnostic sink, falling back to slog.Default().
func (c *Config) Logger() *slog.Logger {
	if c.Log != nil {
		return c.Log
	}
	return slog.Default()
}

// Workers returns the effective worker-pool size.
func (c *Config) Workers() int {
	if c.MaxWorkers > 0 {
		return c.MaxWorkers
	}
	return runtime.GOMAXPROCS(0)
}
