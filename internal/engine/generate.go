package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"primekit/internal/logging"
	"primekit/internal/sieve"

	"github.com/google/uuid"
)

// Progress is a snapshot of a running generation.
type Progress struct {
	RunID     string
	Processed uint64 // candidates covered so far
	Total     uint64 // candidates in the range
	Found     int    // primes emitted so far
}

// Fraction returns Processed/Total in [0, 1].
func (p Progress) Fraction() float64 {
	if p.Total == 0 {
		return 1
	}
	return float64(p.Processed) / float64(p.Total)
}

// GenerateRequest describes a generation run.
type GenerateRequest struct {
	Range sieve.Range

	// DigitFilter keeps only primes whose last decimal digit matches.
	DigitFilter *int

	// SegmentSize overrides the configured window width. 0 = configured,
	// then adaptive.
	SegmentSize uint64

	// OnPrime receives every emitted prime in ascending order. A non-nil
	// error stops the run.
	OnPrime func(p uint64) error

	// OnProgress is throttled to the configured progress interval, plus one
	// final report.
	OnProgress func(Progress)
}

// GenerateResult summarizes a run. On cancellation it describes the part
// that completed.
type GenerateResult struct {
	RunID     string   `json:"run_id"`
	Count     int      `json:"count"`
	Preview   []uint64 `json:"preview"`
	Processed uint64   `json:"processed"`
	Total     uint64   `json:"total"`
	Bounded   bool     `json:"bounded"`
	Cancelled bool     `json:"cancelled,omitempty"`
}

// primeSource is the iteration surface shared by both sieve paths.
type primeSource interface {
	Next() bool
	Prime() uint64
	Err() error
	Processed() uint64
	Total() uint64
}

// Generate streams the primes of req.Range through the digit filter into the
// store log, the OnPrime callback and the result preview. Values flushed
// before a cancellation or failure stay in the store; the buffered tail is
// flushed on the way out.
func (e *Engine) Generate(ctx context.Context, req GenerateRequest) (res GenerateResult, err error) {
	started := time.Now()
	defer func() { e.metrics.ObserveOperation("generate", started, err) }()

	if err := req.Range.Validate(); err != nil {
		return GenerateResult{}, err
	}
	if req.DigitFilter != nil && (*req.DigitFilter < 0 || *req.DigitFilter > 9) {
		return GenerateResult{}, fmt.Errorf("%w: got %d", ErrInvalidDigit, *req.DigitFilter)
	}

	res.RunID = uuid.NewString()
	res.Preview = []uint64{}
	log := logging.Get(logging.CategoryEngine).With("run_id", res.RunID)

	src, bounded, err := e.source(ctx, req)
	if err != nil {
		return res, err
	}
	res.Bounded = bounded
	res.Total = src.Total()
	log.Info("generate [%d, %d] digit=%v bounded=%v", req.Range.Start, req.Range.End, digitString(req.DigitFilter), bounded)

	app, err := e.store.OpenAppender(ctx)
	if err != nil {
		res.Cancelled = isCancellation(err)
		if res.Cancelled {
			logging.EngineWarn("generate %s cancelled before the first prime", res.RunID)
		} else {
			logging.EngineError("generate %s: failed to open store log: %v", res.RunID, err)
		}
		return res, fmt.Errorf("failed to open store log: %w", err)
	}

	previewLimit := e.cfg.Generate.PreviewLimit
	interval := e.cfg.GetProgressInterval()
	lastReport := time.Now()
	report := func() {
		if req.OnProgress != nil {
			req.OnProgress(Progress{RunID: res.RunID, Processed: src.Processed(), Total: res.Total, Found: res.Count})
		}
	}

	var runErr error
	for src.Next() {
		p := src.Prime()
		if req.DigitFilter != nil && p%10 != uint64(*req.DigitFilter) {
			continue
		}
		if runErr = app.Add(p); runErr != nil {
			runErr = fmt.Errorf("failed to append prime %d: %w", p, runErr)
			break
		}
		res.Count++
		if len(res.Preview) < previewLimit {
			res.Preview = append(res.Preview, p)
		}
		if req.OnPrime != nil {
			if runErr = req.OnPrime(p); runErr != nil {
				break
			}
		}
		if time.Since(lastReport) >= interval {
			report()
			lastReport = time.Now()
		}
	}
	if runErr == nil {
		runErr = src.Err()
	}
	res.Processed = src.Processed()

	closeErr := app.Close()
	e.metrics.PrimesGenerated.Add(float64(res.Count))
	e.metrics.CandidatesProcessed.Add(float64(res.Processed))
	report()

	if runErr != nil {
		if isCancellation(runErr) {
			res.Cancelled = true
			logging.EngineWarn("generate %s cancelled after %d/%d candidates, %d primes kept", res.RunID, res.Processed, res.Total, res.Count)
		} else {
			logging.EngineError("generate %s failed: %v", res.RunID, runErr)
		}
		return res, errors.Join(runErr, closeErr)
	}
	if closeErr != nil {
		logging.EngineError("generate %s: final flush failed: %v", res.RunID, closeErr)
		return res, fmt.Errorf("failed to flush store log: %w", closeErr)
	}

	log.Info("generate done: %d primes in %s", res.Count, time.Since(started))
	return res, nil
}

// source picks the bounded sieve for ranges ending at or below the
// small-range threshold and the segmented generator otherwise.
func (e *Engine) source(ctx context.Context, req GenerateRequest) (primeSource, bool, error) {
	r := req.Range
	if r.End <= e.cfg.Generate.SmallRangeThreshold {
		primes, err := sieve.Bounded(r.End)
		if err != nil {
			return nil, false, err
		}
		first := sort.Search(len(primes), func(i int) bool { return primes[i] >= r.Start })
		return newSliceSource(ctx, primes[first:], r), true, nil
	}

	size := req.SegmentSize
	if size == 0 {
		size = e.cfg.Sieve.SegmentSize
	}
	if size == 0 {
		size = sieve.AdaptiveSegmentSize(r.Size())
	}
	logging.EngineDebug("segmented generation with segment size %d", size)
	return sieve.NewSegmented(r, sieve.WithSegmentSize(size), sieve.WithContext(ctx)), false, nil
}

// sliceSource walks an already materialized prime list.
type sliceSource struct {
	ctx    context.Context
	primes []uint64
	rng    sieve.Range
	total  uint64
	pos    int
	cur    uint64
	err    error
}

// ctxCheckEvery is how many primes the slice source emits between context
// checks.
const ctxCheckEvery = 1 << 14

func newSliceSource(ctx context.Context, primes []uint64, r sieve.Range) *sliceSource {
	s := &sliceSource{ctx: ctx, primes: primes, rng: r}
	if n, ok := r.Normalized(); ok {
		s.rng = n
		s.total = n.Size()
	}
	return s
}

func (s *sliceSource) Next() bool {
	if s.err != nil || s.pos >= len(s.primes) {
		return false
	}
	if s.pos%ctxCheckEvery == 0 {
		if err := s.ctx.Err(); err != nil {
			s.err = err
			return false
		}
	}
	s.cur = s.primes[s.pos]
	s.pos++
	return true
}

func (s *sliceSource) Prime() uint64 { return s.cur }
func (s *sliceSource) Err() error    { return s.err }
func (s *sliceSource) Total() uint64 { return s.total }

func (s *sliceSource) Processed() uint64 {
	if s.total == 0 {
		return 0
	}
	if s.pos >= len(s.primes) && s.err == nil {
		return s.total
	}
	if s.pos == 0 {
		return 0
	}
	return s.cur - s.rng.Start + 1
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func digitString(d *int) string {
	if d == nil {
		return "any"
	}
	return fmt.Sprint(*d)
}
