package factor

import (
	"math"
	"sort"
	"testing"

	"primekit/internal/primality"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactorize_Trivial(t *testing.T) {
	assert.Empty(t, Factorize(0))
	assert.Empty(t, Factorize(1))
	assert.Equal(t, []uint64{2}, Factorize(2))
	assert.Equal(t, []uint64{7}, Factorize(7))
}

func TestFactorize_Examples(t *testing.T) {
	tests := []struct {
		n    uint64
		want []uint64
	}{
		{12, []uint64{2, 2, 3}},
		{360, []uint64{2, 2, 2, 3, 3, 5}},
		{49, []uint64{7, 7}},
		{121, []uint64{11, 11}},
		{1001, []uint64{7, 11, 13}},
		{999_983 * 2, []uint64{2, 999_983}},
		{4_294_967_297, []uint64{641, 6_700_417}},
		{math.MaxUint64, []uint64{3, 5, 17, 257, 641, 65537, 6700417}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Factorize(tt.n), "Factorize(%d)", tt.n)
	}
}

func TestFactorize_ProductAndPrimality(t *testing.T) {
	check := func(n uint64) {
		factors := Factorize(n)
		require.NotEmpty(t, factors, "n=%d", n)
		assert.True(t, sort.SliceIsSorted(factors, func(i, j int) bool { return factors[i] < factors[j] }), "n=%d not sorted: %v", n, factors)

		product, ok := Product(factors)
		require.True(t, ok)
		assert.Equal(t, n, product, "n=%d", n)

		for _, f := range factors {
			assert.True(t, primality.IsPrime(f), "factor %d of %d is not prime", f, n)
		}
	}

	for n := uint64(2); n <= 50_000; n++ {
		check(n)
	}
	for _, n := range []uint64{1 << 40, 600851475143, 9_999_999_967 * 3, 1_000_003 * 999_983} {
		check(n)
	}
}

func TestProduct_Overflow(t *testing.T) {
	_, ok := Product([]uint64{1 << 40, 1 << 40})
	assert.False(t, ok)

	p, ok := Product(nil)
	assert.True(t, ok)
	assert.Equal(t, uint64(1), p)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "2 × 2 × 3 = 12", Format(12, []uint64{2, 2, 3}))
}
