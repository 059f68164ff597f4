// Package main provides the entry point for cachesim.
// cachesim is a trace-driven set-associative cache simulator.
//
// For the full CLI, use: go run ./cmd/cachesim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("cachesim - set-associative cache simulator")
	fmt.Println("")
	fmt.Println("Usage: cachesim <command> [flags]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  run        Simulate one cache configuration over a trace")
	fmt.Println("  sweep      Rank many geometries and policies on one trace")
	fmt.Println("  convert    Turn a text trace into a binary trace")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/cachesim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/cachesim' instead.")
	}
}
