// Package primality decides whether a single integer is prime.
//
// Small inputs (≤ TrialThreshold) are answered by trial division. Larger ones
// go through a deterministic Miller-Rabin test whose witness set has no
// false positives below 2^64. Every input representable as uint64 is inside
// that bound, so IsPrime is exact over its whole domain; textual inputs of
// 2^64 or more are rejected by ParseUint rather than answered
// probabilistically.
package primality

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"primekit/internal/mathutil"
)

// TrialThreshold is the largest n answered by trial division.
const TrialThreshold = 1_000_000

var (
	// ErrOutOfRange is returned for textual input outside [0, 2^64).
	ErrOutOfRange = errors.New("number outside the deterministic 64-bit range")

	// ErrNotANumber is returned for input that is not a non-negative decimal.
	ErrNotANumber = errors.New("not a non-negative integer")
)

// Witnesses64 is the Miller-Rabin base set proven deterministic for n < 2^64.
var Witnesses64 = []uint64{2, 325, 9375, 28178, 450775, 9780504, 1795265022}

var smallPrimes = [...]uint64{2, 3, 5, 7, 11, 13, 17, 19, 23}

// IsPrime reports whether n is prime.
func IsPrime(n uint64) bool {
	if n < 2 {
		return false
	}
	if n <= TrialThreshold {
		return trialDivision(n)
	}
	return MillerRabin(n)
}

func trialDivision(n uint64) bool {
	if n < 2 {
		return false
	}
	if n%2 == 0 {
		return n == 2
	}
	root := mathutil.ISqrt(n)
	for d := uint64(3); d <= root; d += 2 {
		if n%d == 0 {
			return false
		}
	}
	return true
}

// MillerRabin runs the deterministic 64-bit Miller-Rabin test.
func MillerRabin(n uint64) bool {
	if n < 2 {
		return false
	}
	for _, p := range smallPrimes {
		if n == p {
			return true
		}
		if n%p == 0 {
			return false
		}
	}

	// n-1 = d·2^s with d odd
	d := n - 1
	s := 0
	for d%2 == 0 {
		d /= 2
		s++
	}

	for _, a := range Witnesses64 {
		if a%n == 0 {
			continue
		}
		if !witnessPasses(a, d, s, n) {
			return false
		}
	}
	return true
}

// witnessPasses reports whether base a fails to prove n composite.
func witnessPasses(a, d uint64, s int, n uint64) bool {
	x := mathutil.PowMod(a, d, n)
	if x == 1 || x == n-1 {
		return true
	}
	for i := 1; i < s; i++ {
		x = mathutil.MulMod(x, x, n)
		if x == n-1 {
			return true
		}
	}
	return false
}

// ParseUint parses a non-negative decimal. Values of 2^64 or more fail with
// ErrOutOfRange instead of being truncated.
func ParseUint(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty input", ErrNotANumber)
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return 0, fmt.Errorf("%w: %s", ErrOutOfRange, s)
		}
		return 0, fmt.Errorf("%w: %q", ErrNotANumber, s)
	}
	return n, nil
}
