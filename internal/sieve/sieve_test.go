package sieve

import (
	"context"
	"errors"
	"math"
	"math/big"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var primesTo50 = []uint64{2, 3, 5, 7, 11, 13, 17, 19, 23, 29, 31, 37, 41, 43, 47}

// naivePrimes is the trial-division ground truth.
func naivePrimes(lo, hi uint64) []uint64 {
	out := []uint64{}
	for n := lo; n <= hi; n++ {
		if n < 2 {
			continue
		}
		prime := true
		for d := uint64(2); d*d <= n; d++ {
			if n%d == 0 {
				prime = false
				break
			}
		}
		if prime {
			out = append(out, n)
		}
	}
	return out
}

func TestBounded_SmallLimits(t *testing.T) {
	tests := []struct {
		limit uint64
		want  []uint64
	}{
		{0, []uint64{}},
		{1, []uint64{}},
		{2, []uint64{2}},
		{3, []uint64{2, 3}},
		{10, []uint64{2, 3, 5, 7}},
		{50, primesTo50},
	}
	for _, tt := range tests {
		got, err := Bounded(tt.limit)
		require.NoError(t, err)
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("Bounded(%d) mismatch (-want +got):\n%s", tt.limit, diff)
		}
	}
}

func TestBounded_MatchesTrialDivision(t *testing.T) {
	got, err := Bounded(10_000)
	require.NoError(t, err)
	assert.Equal(t, naivePrimes(0, 10_000), got)
}

func TestBounded_KnownCounts(t *testing.T) {
	counts := map[uint64]int{100: 25, 1000: 168, 100_000: 9592, 1_000_000: 78498}
	for limit, want := range counts {
		got, err := Bounded(limit)
		require.NoError(t, err)
		assert.Len(t, got, want, "π(%d)", limit)
	}
}

func TestBounded_RejectsHugeLimit(t *testing.T) {
	_, err := Bounded(MaxBoundedLimit + 1)
	assert.True(t, errors.Is(err, ErrLimitTooLarge))
}

func TestBoundedEqualsSegmentedFromZero(t *testing.T) {
	for _, limit := range []uint64{0, 1, 2, 10, 100, 100_000} {
		bounded, err := Bounded(limit)
		require.NoError(t, err)

		segmented, err := Primes(context.Background(), Range{Start: 0, End: limit})
		require.NoError(t, err)

		if diff := cmp.Diff(bounded, segmented); diff != "" {
			t.Errorf("limit %d: bounded vs segmented (-bounded +segmented):\n%s", limit, diff)
		}
	}
}

func TestSegmented_IndependentOfSegmentSize(t *testing.T) {
	for _, size := range []uint64{1, 2, 3, 7, 10, 49, 1000} {
		got, err := Primes(context.Background(), Range{Start: 2, End: 50}, WithSegmentSize(size))
		require.NoError(t, err)
		assert.Equal(t, primesTo50, got, "segment size %d", size)
	}
}

func TestSegmented_ArbitraryWindows(t *testing.T) {
	tests := []Range{
		{Start: 0, End: 1},
		{Start: 1, End: 1},
		{Start: 2, End: 2},
		{Start: 4, End: 4},
		{Start: 90, End: 96},
		{Start: 1000, End: 1100},
		{Start: 99_000, End: 100_500},
	}
	for _, r := range tests {
		got, err := Primes(context.Background(), r, WithSegmentSize(64))
		require.NoError(t, err)
		assert.Equal(t, naivePrimes(r.Start, r.End), got, "range %+v", r)
	}
}

func TestSegmented_EmptyRanges(t *testing.T) {
	it := NewSegmented(Range{Start: 10, End: 5})
	assert.False(t, it.Next())
	assert.NoError(t, it.Err())

	it = NewSegmented(Range{Start: 0, End: 1})
	assert.False(t, it.Next())
	assert.Equal(t, uint64(0), it.Total())

	_, err := Primes(context.Background(), Range{Start: 10, End: 5})
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestSegmented_Restartable(t *testing.T) {
	r := Range{Start: 2, End: 50}
	first := NewSegmented(r, WithSegmentSize(5))
	require.True(t, first.Next())
	require.True(t, first.Next())

	// a second iterator starts from scratch regardless of the first one
	second := NewSegmented(r, WithSegmentSize(5))
	var got []uint64
	for p := range second.All() {
		got = append(got, p)
	}
	assert.Equal(t, primesTo50, got)
	assert.Equal(t, uint64(3), first.Prime())
}

func TestSegmented_LargeOffset(t *testing.T) {
	r := Range{Start: 1_000_000_000_000, End: 1_000_000_002_000}
	got, err := Primes(context.Background(), r, WithSegmentSize(333))
	require.NoError(t, err)

	// big.Int.ProbablyPrime is exact below 2^64
	want := []uint64{}
	for n := r.Start; n <= r.End; n++ {
		if new(big.Int).SetUint64(n).ProbablyPrime(0) {
			want = append(want, n)
		}
	}
	assert.Equal(t, want, got)
	assert.NotEmpty(t, got)
}

func TestSegmented_Progress(t *testing.T) {
	it := NewSegmented(Range{Start: 0, End: 1001}, WithSegmentSize(100))
	assert.Equal(t, uint64(1000), it.Total())

	require.True(t, it.Next())
	assert.Equal(t, uint64(100), it.Processed())
	for it.Next() {
	}
	assert.Equal(t, it.Total(), it.Processed())
}

func TestSegmented_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	it := NewSegmented(Range{Start: 2, End: 10_000}, WithSegmentSize(100), WithContext(ctx))

	require.True(t, it.Next())
	cancel()

	// the in-flight window finishes; no new window is started
	count := 1
	for it.Next() {
		count++
	}
	assert.ErrorIs(t, it.Err(), context.Canceled)
	assert.Equal(t, len(naivePrimes(2, 101)), count)
	assert.Equal(t, uint64(100), it.Processed())
}

func TestRange(t *testing.T) {
	assert.Equal(t, uint64(11), Range{Start: 0, End: 10}.Size())
	assert.Equal(t, uint64(0), Range{Start: 5, End: 4}.Size())
	assert.Equal(t, uint64(math.MaxUint64), Range{Start: 0, End: math.MaxUint64}.Size())

	n, ok := Range{Start: 0, End: 10}.Normalized()
	assert.True(t, ok)
	assert.Equal(t, Range{Start: 2, End: 10}, n)

	assert.ErrorIs(t, Range{Start: 3, End: 1}.Validate(), ErrInvalidRange)
}

func TestAdaptiveSegmentSize(t *testing.T) {
	assert.Equal(t, uint64(65536), AdaptiveSegmentSize(1000))
	assert.Equal(t, uint64(65536), AdaptiveSegmentSize(50_000_000))
	assert.Equal(t, uint64(262144), AdaptiveSegmentSize(50_000_001))
}
