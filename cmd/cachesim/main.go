// Package main provides the cachesim command-line tool.
// cachesim replays a binary address trace through a set-associative cache
// model and reports its hit rate.
package main

import (
	"os"

	"github.com/tebeka/atexit"
)

func main() {
	if err := newRootCommand(os.Stdout, os.Stderr).Execute(); err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
