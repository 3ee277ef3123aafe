// Package histogram counts primes in fixed-width buckets over a range.
package histogram

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"primekit/internal/logging"
	"primekit/internal/sieve"

	"golang.org/x/sync/errgroup"
)

// DefaultMaterializeThreshold is the largest end counted with the bounded
// sieve; larger ranges are streamed.
const DefaultMaterializeThreshold = 5_000_000

// MaxBuckets caps the number of buckets a single histogram may produce.
const MaxBuckets = 1_000_000

// slowComputeThreshold is the Compute duration above which a warning is
// logged.
const slowComputeThreshold = 5 * time.Second

var (
	// ErrInvalidInterval is returned for a zero bucket width.
	ErrInvalidInterval = errors.New("interval must be positive")
	// ErrInvalidRange is returned when start is not below end.
	ErrInvalidRange = errors.New("start must be less than end")
	// ErrTooManyBuckets is returned when the range and interval would
	// produce more than MaxBuckets buckets.
	ErrTooManyBuckets = fmt.Errorf("histogram exceeds %d buckets", MaxBuckets)
)

// Counting strategies, reported in Result.Path.
const (
	PathBounded   = "bounded"
	PathStreaming = "streaming"
	PathParallel  = "parallel"
)

// Bucket is the prime count of [Low, High].
type Bucket struct {
	Label string `json:"label"`
	Low   uint64 `json:"low"`
	High  uint64 `json:"high"`
	Count int    `json:"count"`
}

// Options tunes how buckets are counted. The zero value is usable.
type Options struct {
	MaterializeThreshold uint64 // 0 = DefaultMaterializeThreshold
	SegmentSize          uint64 // 0 = sieve default
	Workers              int    // > 1 counts streamed buckets concurrently
}

// Result holds the ordered buckets and the strategy that produced them.
type Result struct {
	Buckets []Bucket `json:"buckets"`
	Path    string   `json:"path"`
}

// Total sums all bucket counts.
func (r Result) Total() int {
	total := 0
	for _, b := range r.Buckets {
		total += b.Count
	}
	return total
}

// Compute partitions [start, end] into buckets of width interval (the last
// one truncated at end) and counts the primes in each.
func Compute(ctx context.Context, start, end, interval uint64, opts Options) (Result, error) {
	if interval == 0 {
		return Result{}, ErrInvalidInterval
	}
	if start >= end {
		return Result{}, fmt.Errorf("%w: start %d, end %d", ErrInvalidRange, start, end)
	}

	n, err := bucketCount(start, end, interval)
	if err != nil {
		return Result{}, err
	}
	buckets := makeBuckets(start, end, interval, n)
	threshold := opts.MaterializeThreshold
	if threshold == 0 {
		threshold = DefaultMaterializeThreshold
	}

	timer := logging.StartTimer(logging.CategoryHistogram, "histogram.Compute")
	defer timer.StopWithThreshold(slowComputeThreshold)

	var path string
	switch {
	case end <= threshold:
		path = PathBounded
		err = countBounded(start, end, interval, buckets)
	case opts.Workers > 1:
		path = PathParallel
		err = countParallel(ctx, start, interval, buckets, opts)
	default:
		path = PathStreaming
		err = countRange(ctx, sieve.Range{Start: start, End: end}, start, interval, buckets, opts.SegmentSize)
	}
	if err != nil {
		return Result{}, err
	}

	logging.HistogramDebug("histogram [%d, %d] interval=%d buckets=%d path=%s", start, end, interval, len(buckets), path)
	return Result{Buckets: buckets, Path: path}, nil
}

// bucketCount returns how many buckets cover [start, end]. The quotient is
// checked before adding one so the full uint64 span cannot wrap.
func bucketCount(start, end, interval uint64) (uint64, error) {
	full := (end - start) / interval
	if full >= MaxBuckets {
		return 0, fmt.Errorf("%w: [%d, %d] with interval %d", ErrTooManyBuckets, start, end, interval)
	}
	return full + 1, nil
}

func makeBuckets(start, end, interval, n uint64) []Bucket {
	buckets := make([]Bucket, 0, n)
	for k := uint64(0); k < n; k++ {
		low := start + k*interval
		high := end
		if end-low >= interval {
			high = low + interval - 1
		}
		buckets = append(buckets, Bucket{
			Label: fmt.Sprintf("%d-%d", low, high),
			Low:   low,
			High:  high,
		})
	}
	return buckets
}

// bucketIndex maps p to its bucket; ok is false for boundary strays.
func bucketIndex(p, start, interval uint64, n int) (int, bool) {
	if p < start {
		return 0, false
	}
	idx := (p - start) / interval
	if idx >= uint64(n) {
		return 0, false
	}
	return int(idx), true
}

func countBounded(start, end, interval uint64, buckets []Bucket) error {
	primes, err := sieve.Bounded(end)
	if err != nil {
		return err
	}
	first := sort.Search(len(primes), func(i int) bool { return primes[i] >= start })
	for _, p := range primes[first:] {
		if idx, ok := bucketIndex(p, start, interval, len(buckets)); ok {
			buckets[idx].Count++
		}
	}
	return nil
}

// countRange streams the primes of r into buckets. Only buckets covered by
// r are touched, which lets parallel workers share the slice.
func countRange(ctx context.Context, r sieve.Range, start, interval uint64, buckets []Bucket, segmentSize uint64) error {
	it := sieve.NewSegmented(r, sieve.WithSegmentSize(segmentSize), sieve.WithContext(ctx))
	for it.Next() {
		if idx, ok := bucketIndex(it.Prime(), start, interval, len(buckets)); ok {
			buckets[idx].Count++
		}
	}
	return it.Err()
}

// countParallel splits the buckets into contiguous groups, one per worker.
// Counting is order-free, so no sequencing is needed between groups.
func countParallel(ctx context.Context, start, interval uint64, buckets []Bucket, opts Options) error {
	workers := opts.Workers
	if workers > len(buckets) {
		workers = len(buckets)
	}
	per := (len(buckets) + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)
	for lo := 0; lo < len(buckets); lo += per {
		hi := min(lo+per, len(buckets))
		group := buckets[lo:hi]
		r := sieve.Range{Start: group[0].Low, End: group[len(group)-1].High}
		g.Go(func() error {
			return countRange(ctx, r, start, interval, buckets, opts.SegmentSize)
		})
	}
	return g.Wait()
}
