package primality

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// groundTruth decides primality of every n in [0, limit] by trial division
// with 2 and each odd d where d*d <= n. It shares no code with IsPrime.
func groundTruth(limit int) []bool {
	isPrime := make([]bool, limit+1)
	for n := 2; n <= limit; n++ {
		isPrime[n] = groundTruthTrialDivision(n)
	}
	return isPrime
}

func groundTruthTrialDivision(n int) bool {
	if n < 2 {
		return false
	}
	if n%2 == 0 {
		return n == 2
	}
	for d := 3; d*d <= n; d += 2 {
		if n%d == 0 {
			return false
		}
	}
	return true
}

func TestIsPrime_MatchesGroundTruth(t *testing.T) {
	const limit = 2_000_000
	truth := groundTruth(limit)
	for n := 0; n <= limit; n++ {
		if IsPrime(uint64(n)) != truth[n] {
			t.Fatalf("IsPrime(%d) = %v, want %v", n, !truth[n], truth[n])
		}
	}
}

func TestGroundTruth_SmallValues(t *testing.T) {
	truth := groundTruth(30)
	var primes []int
	for n, ok := range truth {
		if ok {
			primes = append(primes, n)
		}
	}
	assert.Equal(t, []int{2, 3, 5, 7, 11, 13, 17, 19, 23, 29}, primes)
}

func TestIsPrime_Edges(t *testing.T) {
	tests := []struct {
		n    uint64
		want bool
	}{
		{0, false},
		{1, false},
		{2, true},
		{4, false},
		{TrialThreshold, false},
		{999_983, true},   // largest prime below 10^6, trial path
		{1_000_003, true}, // smallest prime above 10^6, Miller-Rabin path
		{1_000_001, false},
		{4_294_967_291, true},  // largest prime below 2^32
		{4_294_967_297, false}, // F5 = 641 × 6700417
		{3_215_031_751, false}, // strong pseudoprime to bases 2,3,5,7
		{math.MaxUint64 - 58, true},
		{math.MaxUint64, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsPrime(tt.n), "IsPrime(%d)", tt.n)
	}
}

func TestMillerRabin_AgreesWithBigInt(t *testing.T) {
	starts := []uint64{1 << 40, 1 << 52, 1<<62 + 1, math.MaxUint64 - 2000}
	for _, start := range starts {
		for n := start; n < start+2000 && n >= start; n++ {
			want := new(big.Int).SetUint64(n).ProbablyPrime(0)
			if MillerRabin(n) != want {
				t.Fatalf("MillerRabin(%d) = %v, want %v", n, !want, want)
			}
		}
	}
}

func TestMillerRabin_StrongPseudoprimes(t *testing.T) {
	// strong pseudoprimes to several small bases, all composite
	for _, n := range []uint64{2047, 1373653, 25326001, 3215031751, 2152302898747, 3474749660383, 341550071728321, 3825123056546413051} {
		assert.False(t, MillerRabin(n), "%d is composite", n)
	}
}

func TestMillerRabin_SmallPrimes(t *testing.T) {
	for _, p := range smallPrimes {
		assert.True(t, MillerRabin(p))
	}
	assert.False(t, MillerRabin(1))
	assert.False(t, MillerRabin(25))
}

func TestParseUint(t *testing.T) {
	n, err := ParseUint(" 97 ")
	require.NoError(t, err)
	assert.Equal(t, uint64(97), n)

	n, err = ParseUint("18446744073709551615")
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), n)

	_, err = ParseUint("18446744073709551616")
	assert.ErrorIs(t, err, ErrOutOfRange)

	for _, bad := range []string{"", "-3", "12a", "1.5"} {
		_, err = ParseUint(bad)
		assert.ErrorIs(t, err, ErrNotANumber, "input %q", bad)
	}
}
