// Package engine is the entry point used by front ends (the CLI). It ties
// the sieve, oracle, factorizer, histogram and store together behind the
// operations a collaborator needs: generate, check, histogram, and store
// maintenance.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"primekit/internal/config"
	"primekit/internal/factor"
	"primekit/internal/histogram"
	"primekit/internal/logging"
	"primekit/internal/metrics"
	"primekit/internal/primality"
	"primekit/internal/store"
)

// ErrInvalidDigit is returned for a digit filter outside 0-9.
var ErrInvalidDigit = errors.New("digit filter must be between 0 and 9")

// Engine runs prime operations against one store.
type Engine struct {
	cfg     *config.Config
	store   store.Store
	metrics *metrics.Metrics
}

// New creates an engine. A nil metrics set gets a private one.
func New(cfg *config.Config, st store.Store, m *metrics.Metrics) *Engine {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Engine{cfg: cfg, store: st, metrics: m}
}

// Metrics returns the engine's metric set.
func (e *Engine) Metrics() *metrics.Metrics {
	return e.metrics
}

// CheckResult is the outcome of a single-number check.
type CheckResult struct {
	N       uint64   `json:"n"`
	IsPrime bool     `json:"is_prime"`
	Factors []uint64 `json:"factors,omitempty"`
}

// Check tests n. Primes are recorded in the store; composites come back with
// their factorization.
func (e *Engine) Check(ctx context.Context, n uint64) (res CheckResult, err error) {
	started := time.Now()
	defer func() { e.metrics.ObserveOperation("check", started, err) }()

	res = CheckResult{N: n, IsPrime: primality.IsPrime(n)}
	switch {
	case res.IsPrime:
		e.metrics.Checks.WithLabelValues("prime").Inc()
		if err := e.store.Append(ctx, []uint64{n}); err != nil {
			return res, fmt.Errorf("failed to record prime %d: %w", n, err)
		}
	case n < 2:
		e.metrics.Checks.WithLabelValues("unit").Inc()
		res.Factors = []uint64{}
	default:
		e.metrics.Checks.WithLabelValues("composite").Inc()
		res.Factors = factor.Factorize(n)
	}
	logging.PrimalityDebug("check %d: prime=%v factors=%v", n, res.IsPrime, res.Factors)
	return res, nil
}

// Histogram counts primes per bucket of width interval over [start, end].
func (e *Engine) Histogram(ctx context.Context, start, end, interval uint64) (buckets []histogram.Bucket, err error) {
	started := time.Now()
	defer func() { e.metrics.ObserveOperation("histogram", started, err) }()

	res, err := histogram.Compute(ctx, start, end, interval, histogram.Options{
		MaterializeThreshold: e.cfg.Histogram.MaterializeThreshold,
		SegmentSize:          e.cfg.Sieve.SegmentSize,
		Workers:              e.cfg.Histogram.Workers,
	})
	if err != nil {
		return nil, err
	}
	e.metrics.HistogramBuckets.WithLabelValues(res.Path).Add(float64(len(res.Buckets)))
	logging.Histogram("histogram [%d, %d] interval=%d: %d buckets, %d primes (%s)", start, end, interval, len(res.Buckets), res.Total(), res.Path)
	return res.Buckets, nil
}

// LoadStore returns every stored prime in ascending order.
func (e *Engine) LoadStore(ctx context.Context) (primes []uint64, err error) {
	started := time.Now()
	defer func() { e.metrics.ObserveOperation("load", started, err) }()
	return e.store.Load(ctx)
}

// ClearStore empties the store.
func (e *Engine) ClearStore(ctx context.Context) (err error) {
	started := time.Now()
	defer func() { e.metrics.ObserveOperation("clear", started, err) }()
	return e.store.Clear(ctx)
}

// SaveSnapshot folds the current contents (snapshot ∪ log) into a fresh
// snapshot and returns its size.
func (e *Engine) SaveSnapshot(ctx context.Context) (n int, err error) {
	started := time.Now()
	defer func() { e.metrics.ObserveOperation("snapshot", started, err) }()

	primes, err := e.store.Load(ctx)
	if err != nil {
		return 0, err
	}
	if err := e.store.SaveSnapshot(ctx, primes); err != nil {
		return 0, err
	}
	return len(primes), nil
}
