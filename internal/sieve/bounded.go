// Package sieve enumerates primes with the sieve of Eratosthenes.
//
// Two forms are provided:
//
//   - Bounded materializes every prime up to a limit. Memory is one bit per
//     candidate, so it is also the base-prime source for the segmented form.
//   - Segmented streams the primes of an arbitrary [start, end] range one
//     window at a time, holding only the base primes up to √end plus a single
//     window buffer.
//
// Usage Example:
//
//	primes, _ := sieve.Bounded(100) // [2 3 5 ... 97]
//
//	it := sieve.NewSegmented(sieve.Range{Start: 1e12, End: 1e12 + 1e6})
//	for it.Next() {
//	    fmt.Println(it.Prime())
//	}
//	if err := it.Err(); err != nil { ... }
package sieve

import (
	"errors"
	"fmt"
	"math"
	"math/bits"

	"primekit/internal/logging"
	"primekit/internal/mathutil"
)

// MaxBoundedLimit is the largest limit Bounded accepts. It keeps the bitset
// addressable by int on 64-bit platforms; anything beyond it belongs to the
// segmented sieve.
const MaxBoundedLimit = 1 << 38

var (
	// ErrLimitTooLarge is returned when a bounded sieve would need more bits
	// than MaxBoundedLimit.
	ErrLimitTooLarge = errors.New("sieve limit too large")
)

// bitset marks composites: a set bit means "not prime". The zero value of
// every word therefore means "all candidates still possible".
type bitset []uint64

func newBitset(n uint64) bitset {
	return make(bitset, (n+63)>>6)
}

func (b bitset) set(i uint64) {
	b[i>>6] |= 1 << (i & 63)
}

func (b bitset) test(i uint64) bool {
	return b[i>>6]&(1<<(i&63)) != 0
}

// nextClear returns the first clear bit in [from, n).
func (b bitset) nextClear(from, n uint64) (uint64, bool) {
	for i := from; i < n; {
		w := i >> 6
		word := ^b[w] >> (i & 63)
		if word != 0 {
			j := i + uint64(bits.TrailingZeros64(word))
			if j < n {
				return j, true
			}
			return 0, false
		}
		i = (w + 1) << 6
	}
	return 0, false
}

// markComposites runs the sieve over 0..limit. It returns nil for limit < 2.
func markComposites(limit uint64) (bitset, error) {
	if limit < 2 {
		return nil, nil
	}
	if limit > MaxBoundedLimit {
		return nil, fmt.Errorf("%w: %d > %d", ErrLimitTooLarge, limit, uint64(MaxBoundedLimit))
	}

	composite := newBitset(limit + 1)
	composite.set(0)
	composite.set(1)

	root := mathutil.ISqrt(limit)
	for i := uint64(2); i <= root; i++ {
		if composite.test(i) {
			continue
		}
		for j := i * i; j <= limit; j += i {
			composite.set(j)
		}
	}
	return composite, nil
}

// Bounded returns all primes ≤ limit in ascending order.
func Bounded(limit uint64) ([]uint64, error) {
	composite, err := markComposites(limit)
	if err != nil {
		return nil, err
	}
	if composite == nil {
		return []uint64{}, nil
	}

	primes := make([]uint64, 0, estimatePi(limit))
	for i, ok := composite.nextClear(2, limit+1); ok; i, ok = composite.nextClear(i+1, limit+1) {
		primes = append(primes, i)
	}
	logging.SieveDebug("bounded sieve up to %d found %d primes", limit, len(primes))
	return primes, nil
}

// estimatePi is an upper bound on π(x) used only to size slices
// (Rosser–Schoenfeld: π(x) < 1.25506·x/ln x for x > 1).
func estimatePi(x uint64) int {
	if x < 17 {
		return 8
	}
	f := float64(x)
	return int(1.25506*f/math.Log(f)) + 1
}
