// Package mathutil holds the overflow-safe 64-bit integer helpers shared by
// the sieve, the primality oracle and the factorizer.
package mathutil

import (
	"math"
	"math/bits"
)

// maxSqrt is ⌊√(2^64-1)⌋.
const maxSqrt = math.MaxUint32

// ISqrt returns ⌊√n⌋ exactly for every uint64.
func ISqrt(n uint64) uint64 {
	r := uint64(math.Sqrt(float64(n)))
	if r > maxSqrt {
		r = maxSqrt
	}
	// float64 rounding can be off by one in either direction near 2^53 and up
	for r*r > n {
		r--
	}
	for r < maxSqrt && (r+1)*(r+1) <= n {
		r++
	}
	return r
}

// MulMod returns a*b mod m using a 128-bit intermediate product.
func MulMod(a, b, m uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	if hi >= m {
		hi %= m
	}
	return bits.Rem64(hi, lo, m)
}

// PowMod returns base^exp mod m. m must be non-zero.
func PowMod(base, exp, m uint64) uint64 {
	if m == 1 {
		return 0
	}
	result := uint64(1)
	base %= m
	for exp > 0 {
		if exp&1 == 1 {
			result = MulMod(result, base, m)
		}
		base = MulMod(base, base, m)
		exp >>= 1
	}
	return result
}
