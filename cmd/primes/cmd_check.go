package main

import (
	"fmt"

	"primekit/internal/factor"

	"github.com/spf13/cobra"
)

// checkCmd tests a single number
var checkCmd = &cobra.Command{
	Use:   "check N",
	Short: "Test whether N is prime",
	Long: `Tests N with trial division (N ≤ 1,000,000) or deterministic
Miller-Rabin above that. The answer is exact for every N < 2^64; larger
inputs are rejected. Primes are recorded in the store; composites are
shown with their factorization.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

// factorCmd prints the prime factorization of a number
var factorCmd = &cobra.Command{
	Use:   "factor N",
	Short: "Print the prime factorization of N",
	Args:  cobra.ExactArgs(1),
	RunE:  runFactor,
}

func runCheck(cmd *cobra.Command, args []string) error {
	n, err := parseArg("N", args[0])
	if err != nil {
		return err
	}
	e, err := openEngine()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	res, err := e.Check(ctx, n)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case jsonOutput:
		return printJSON(out, res)
	case res.IsPrime:
		fmt.Fprintf(out, "%s is prime\n", primeStyle.Render(fmt.Sprint(n)))
	case n < 2:
		fmt.Fprintf(out, "%d is not prime\n", n)
	default:
		fmt.Fprintf(out, "%d is not prime: %s\n", n, factor.Format(n, res.Factors))
	}
	return nil
}

func runFactor(cmd *cobra.Command, args []string) error {
	n, err := parseArg("N", args[0])
	if err != nil {
		return err
	}
	factors := factor.Factorize(n)

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, map[string]interface{}{"n": n, "factors": factors})
	}
	if len(factors) == 0 {
		fmt.Fprintf(out, "%d has no prime factors\n", n)
		return nil
	}
	fmt.Fprintln(out, factor.Format(n, factors))
	return nil
}
