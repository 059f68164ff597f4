package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/cachesim/trace"
)

func newConvertCommand(a *app) *cobra.Command {
	var byteOrder string

	cmd := &cobra.Command{
		Use:   "convert <in.txt> <out.bin>",
		Short: "Convert a text trace of hexadecimal addresses to a binary trace.",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			order, err := trace.ParseByteOrder(byteOrder)
			if err != nil {
				return err
			}

			in, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open text trace: %w", err)
			}
			defer func() { _ = in.Close() }()

			out, err := os.Create(args[1])
			if err != nil {
				return fmt.Errorf("failed to create binary trace: %w", err)
			}

			n, err := trace.ConvertText(in, trace.NewWriter(out, order))
			if err != nil {
				_ = out.Close()
				return fmt.Errorf("%s: %w", args[0], err)
			}

			if err := out.Close(); err != nil {
				return fmt.Errorf("failed to close binary trace: %w", err)
			}

			a.logger.WithField("addresses", n).Debug("trace converted")
			_, _ = fmt.Fprintf(a.out, "Converted %d addresses to %s\n", n, args[1])

			return nil
		},
	}

	cmd.Flags().StringVar(&byteOrder, "byte-order", "", "Output byte order: native, little or big")

	return cmd
}
