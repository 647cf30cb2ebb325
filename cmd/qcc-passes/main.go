// Package main provides a development tool that resolves an optimizer
// configuration and prints the effective pass pipeline, surfacing
// configuration errors (unknown or missing required passes) without running
// a compilation.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/vectralab/qcc/config"
	"github.com/vectralab/qcc/opt"
)

var (
	configPath = flag.String("config", "", "Path to optimizer configuration JSON file")
	verbose    = flag.Bool("v", false, "Verbose output (debug-level diagnostics)")
)

func main() {
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	cfg.Log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	optimizer, err := opt.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving pass pipeline: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Effective optimization pipeline:\n")
	for _, p := range optimizer.Passes() {
		fmt.Printf("  %2d  %s\n", p.Index, p.Name)
	}
	fmt.Printf("\nLimits:\n")
	fmt.Printf("  nop lookahead:      %d\n", cfg.NopLookahead)
	fmt.Printf("  accumulator window: %d\n", cfg.AccumulatorWindow)
	fmt.Printf("  workers:            %d\n", cfg.Workers())
}
