package sieve

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"primekit/internal/logging"
	"primekit/internal/mathutil"
)

const (
	// DefaultSegmentSize is the window width used when none is configured.
	DefaultSegmentSize = 32768

	// Adaptive segment sizes for large generation runs.
	mediumSegmentSize = 65536
	largeSegmentSize  = 262144
	largeRangeCutoff  = 50_000_000
)

// ErrInvalidRange is returned for ranges with Start > End.
var ErrInvalidRange = errors.New("invalid range")

// Range is the closed interval [Start, End].
type Range struct {
	Start uint64
	End   uint64
}

// Validate rejects ranges whose start lies past their end.
func (r Range) Validate() error {
	if r.Start > r.End {
		return fmt.Errorf("%w: start %d > end %d", ErrInvalidRange, r.Start, r.End)
	}
	return nil
}

// Size returns the number of integers in the range, saturating at MaxUint64.
func (r Range) Size() uint64 {
	if r.Start > r.End {
		return 0
	}
	n := r.End - r.Start
	if n == ^uint64(0) {
		return n
	}
	return n + 1
}

// Normalized clamps Start to 2, the smallest candidate worth sieving.
// ok is false when the range contains no candidates at all.
func (r Range) Normalized() (Range, bool) {
	if r.End < 2 || r.Start > r.End {
		return Range{}, false
	}
	if r.Start < 2 {
		r.Start = 2
	}
	return r, true
}

// AdaptiveSegmentSize picks a window width for a generation run over
// rangeSize integers.
func AdaptiveSegmentSize(rangeSize uint64) uint64 {
	if rangeSize > largeRangeCutoff {
		return largeSegmentSize
	}
	return mediumSegmentSize
}

// Option configures a Segmented iterator.
type Option func(*Segmented)

// WithSegmentSize sets the window width. Zero keeps the default.
func WithSegmentSize(n uint64) Option {
	return func(s *Segmented) {
		if n > 0 {
			s.segmentSize = n
		}
	}
}

// WithContext makes the iterator stop between windows once ctx is done.
func WithContext(ctx context.Context) Option {
	return func(s *Segmented) {
		if ctx != nil {
			s.ctx = ctx
		}
	}
}

// Segmented is a pull iterator over the primes of a range. Each value is
// independent: two iterators over the same range share nothing.
type Segmented struct {
	rng         Range
	segmentSize uint64
	ctx         context.Context

	started   bool
	done      bool
	exhausted bool // last window has been sieved
	err       error

	base      []uint64
	low       uint64
	window    bitset
	windowLow uint64
	windowLen uint64
	offset    uint64

	current   uint64
	processed uint64
	windows   int
}

// NewSegmented returns an iterator over the primes in r. Nothing is computed
// until the first call to Next.
func NewSegmented(r Range, opts ...Option) *Segmented {
	s := &Segmented{
		rng:         r,
		segmentSize: DefaultSegmentSize,
		ctx:         context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Next advances to the next prime. It returns false when the range is
// exhausted, the context is done, or an error occurred; check Err.
func (s *Segmented) Next() bool {
	if s.done {
		return false
	}
	if !s.started {
		s.started = true
		if !s.init() {
			s.done = true
			return false
		}
	}

	for {
		if s.window != nil {
			if off, ok := s.window.nextClear(s.offset, s.windowLen); ok {
				s.current = s.windowLow + off
				s.offset = off + 1
				return true
			}
			// window drained; release it before sieving the next one
			s.window = nil
		}
		if s.exhausted {
			s.done = true
			return false
		}
		if err := s.ctx.Err(); err != nil {
			s.err = err
			s.done = true
			logging.SieveDebug("segmented sieve cancelled at %d after %d windows", s.low, s.windows)
			return false
		}
		s.sieveWindow()
	}
}

// Prime returns the prime found by the last successful Next.
func (s *Segmented) Prime() uint64 {
	return s.current
}

// Err returns the error that stopped iteration, if any.
func (s *Segmented) Err() error {
	return s.err
}

// Processed returns how many candidates of the range have been sieved.
func (s *Segmented) Processed() uint64 {
	return s.processed
}

// Total returns the number of candidates in the normalized range.
func (s *Segmented) Total() uint64 {
	r, ok := s.rng.Normalized()
	if !ok {
		return 0
	}
	return r.Size()
}

// All adapts the iterator to range-over-func. The sequence can be consumed
// once; Err should be checked afterwards.
func (s *Segmented) All() iter.Seq[uint64] {
	return func(yield func(uint64) bool) {
		for s.Next() {
			if !yield(s.Prime()) {
				return
			}
		}
	}
}

func (s *Segmented) init() bool {
	r, ok := s.rng.Normalized()
	if !ok {
		return false
	}
	s.rng = r
	s.low = r.Start

	// any composite ≤ end has a prime factor ≤ √end
	base, err := Bounded(mathutil.ISqrt(r.End) + 1)
	if err != nil {
		s.err = err
		return false
	}
	s.base = base
	logging.SieveDebug("segmented sieve [%d, %d] segment=%d base primes=%d", r.Start, r.End, s.segmentSize, len(base))
	return true
}

// sieveWindow strikes composites in [low, high] into a fresh buffer.
func (s *Segmented) sieveWindow() {
	low := s.low
	high := s.rng.End
	if s.rng.End-low >= s.segmentSize {
		high = low + s.segmentSize - 1
	}
	n := high - low + 1

	window := newBitset(n)
	for _, p := range s.base {
		pp := p * p // p < 2^32, so pp cannot overflow
		if pp > high {
			break
		}
		start := pp
		if start < low {
			start = low
			if rem := low % p; rem != 0 {
				start = low + (p - rem)
				if start < low || start > high {
					continue // overflowed or no multiple in this window
				}
			}
		}
		for off := start - low; off < n; off += p {
			window.set(off)
		}
	}

	s.window = window
	s.windowLow = low
	s.windowLen = n
	s.offset = 0
	s.windows++
	s.processed = high - s.rng.Start + 1

	if high == s.rng.End {
		s.exhausted = true
	} else {
		s.low = high + 1
	}
}

// Primes collects the primes in r. Intended for ranges that fit in memory.
func Primes(ctx context.Context, r Range, opts ...Option) ([]uint64, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	opts = append(opts, WithContext(ctx))
	it := NewSegmented(r, opts...)
	out := []uint64{}
	for it.Next() {
		out = append(out, it.Prime())
	}
	return out, it.Err()
}
