// Package factor decomposes integers into prime factors by trial division.
package factor

import (
	"strconv"
	"strings"
)

// Factorize returns the prime factors of n in non-decreasing order, with
// multiplicity. Their product is n. For n ≤ 1 the result is empty.
func Factorize(n uint64) []uint64 {
	factors := []uint64{}
	if n <= 1 {
		return factors
	}

	for _, p := range [...]uint64{2, 3, 5} {
		for n%p == 0 {
			factors = append(factors, p)
			n /= p
		}
	}

	// 6k±1 wheel: 7, 11, 13, 17, 19, 23, 25, ...
	f, step := uint64(7), uint64(4)
	for f <= n/f {
		for n%f == 0 {
			factors = append(factors, f)
			n /= f
		}
		f += step
		step = 6 - step
	}
	if n > 1 {
		factors = append(factors, n)
	}
	return factors
}

// Product multiplies factors back together. ok is false on overflow.
func Product(factors []uint64) (product uint64, ok bool) {
	product = 1
	for _, f := range factors {
		if f != 0 && product > ^uint64(0)/f {
			return 0, false
		}
		product *= f
	}
	return product, true
}

// Format renders "a × b × c = n".
func Format(n uint64, factors []uint64) string {
	parts := make([]string, len(factors))
	for i, f := range factors {
		parts[i] = strconv.FormatUint(f, 10)
	}
	return strings.Join(parts, " × ") + " = " + strconv.FormatUint(n, 10)
}
