package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var histChart bool

// histogramCmd counts primes per interval
var histogramCmd = &cobra.Command{
	Use:   "histogram START END INTERVAL",
	Short: "Count primes in fixed-width buckets of [START, END]",
	Long: `Splits [START, END] into buckets of INTERVAL integers (the last one
truncated at END) and counts the primes in each.

Example:
  primes histogram 1 100 10 --chart`,
	Args: cobra.ExactArgs(3),
	RunE: runHistogram,
}

func init() {
	histogramCmd.Flags().BoolVar(&histChart, "chart", false, "Draw a bar per bucket")
}

func runHistogram(cmd *cobra.Command, args []string) error {
	var vals [3]uint64
	for i, name := range []string{"START", "END", "INTERVAL"} {
		v, err := parseArg(name, args[i])
		if err != nil {
			return err
		}
		vals[i] = v
	}

	e, err := openEngine()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	buckets, err := e.Histogram(ctx, vals[0], vals[1], vals[2])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, buckets)
	}
	fmt.Fprintln(out, renderHistogram(buckets, histChart))
	return nil
}
