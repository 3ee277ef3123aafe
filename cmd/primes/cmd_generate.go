package main

import (
	"fmt"

	"primekit/internal/engine"
	"primekit/internal/primality"
	"primekit/internal/sieve"

	"github.com/spf13/cobra"
)

var (
	genDigit       int
	genSegmentSize uint64
	genQuiet       bool
	genAll         bool
)

// generateCmd generates the primes of a range into the store
var generateCmd = &cobra.Command{
	Use:   "generate START END",
	Short: "Generate all primes in [START, END] and record them",
	Long: `Generates every prime in the closed range [START, END].

Ranges ending at or below generate.small_range_threshold are sieved in one
pass; larger ranges are streamed window by window in bounded memory. Every
prime (after the optional digit filter) is appended to the store log.

Examples:
  primes generate 1 100
  primes generate 1000000000 1000100000 --digit 7 --quiet
  primes generate 1 1000000 --all > primes.txt`,
	Args: cobra.ExactArgs(2),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().IntVarP(&genDigit, "digit", "d", -1, "Keep only primes ending in this digit (0-9)")
	generateCmd.Flags().Uint64Var(&genSegmentSize, "segment-size", 0, "Segment width for large ranges (0 = config/adaptive)")
	generateCmd.Flags().BoolVarP(&genQuiet, "quiet", "q", false, "Print only the summary")
	generateCmd.Flags().BoolVar(&genAll, "all", false, "Stream every prime to stdout instead of a preview")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	start, err := parseArg("START", args[0])
	if err != nil {
		return err
	}
	end, err := parseArg("END", args[1])
	if err != nil {
		return err
	}

	e, err := openEngine()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	out := cmd.OutOrStdout()
	req := engine.GenerateRequest{
		Range:       sieve.Range{Start: start, End: end},
		SegmentSize: genSegmentSize,
	}
	if cmd.Flags().Changed("digit") {
		req.DigitFilter = &genDigit
	}
	if genAll {
		req.OnPrime = func(p uint64) error {
			_, err := fmt.Fprintln(out, p)
			return err
		}
	}

	var bar *progressLine
	if !genQuiet && !jsonOutput && isTerminal(cmd.ErrOrStderr()) {
		bar = newProgressLine(cmd.ErrOrStderr())
		req.OnProgress = bar.update
	}

	res, err := e.Generate(ctx, req)
	if bar != nil {
		bar.done()
	}
	if err != nil && !res.Cancelled {
		return err
	}

	switch {
	case jsonOutput:
		if perr := printJSON(out, res); perr != nil {
			return perr
		}
	case genAll:
		// primes already streamed
	default:
		if !genQuiet && len(res.Preview) > 0 {
			fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("First %d primes:", len(res.Preview))))
			fmt.Fprintln(out, formatPreview(res.Preview))
		}
		fmt.Fprintf(out, "Found %d primes in [%d, %d]\n", res.Count, start, end)
	}
	if res.Cancelled {
		return fmt.Errorf("generation stopped after %d of %d candidates: %w", res.Processed, res.Total, err)
	}
	return nil
}

// parseArg parses a non-negative 64-bit integer argument.
func parseArg(name, s string) (uint64, error) {
	n, err := primality.ParseUint(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return n, nil
}
