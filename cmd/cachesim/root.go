package main

import (
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/cachesim/config"
)

// app carries the state shared by every subcommand.
type app struct {
	out    io.Writer
	errOut io.Writer

	verbose bool
	envFile string

	logger *logrus.Logger
}

func newRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "cachesim",
		Short: "cachesim simulates a set-associative cache over an address trace.",
		Long: `cachesim replays a binary trace of memory addresses through a ` +
			`set-associative cache with tree PLRU, FIFO or random replacement ` +
			`and reports hits, misses and the hit rate.`,
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			a.logger = newLogger(a.errOut, a.verbose)
		},
	}

	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false,
		"Log debug details")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", "",
		"Read CACHESIM_* settings from a .env file")

	root.AddCommand(
		newRunCommand(a),
		newSweepCommand(a),
		newConvertCommand(a),
	)

	return root
}

func newLogger(w io.Writer, verbose bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	return logger
}

// environ returns the CACHESIM_ settings of the env file and the process.
func (a *app) environ() (map[string]string, error) {
	return config.Environ(a.envFile)
}
