// Package metrics exposes engine counters as Prometheus metrics.
//
// primekit is a short-lived CLI, so metrics are not scraped over HTTP; they
// are written once per command to a node-exporter textfile
// (see WriteTextFile).
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors of one engine instance.
type Metrics struct {
	Registry *prometheus.Registry

	PrimesGenerated     prometheus.Counter
	CandidatesProcessed prometheus.Counter
	Checks              *prometheus.CounterVec
	StoreValuesFlushed  prometheus.Counter
	StoreFlushes        prometheus.Counter
	HistogramBuckets    *prometheus.CounterVec
	OperationDuration   *prometheus.HistogramVec
	OperationErrors     *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		// PrimesGenerated counts primes emitted by generate runs
		PrimesGenerated: factory.NewCounter(prometheus.CounterOpts{
			Name: "primekit_primes_generated_total",
			Help: "Primes emitted by generation runs (after digit filtering)",
		}),

		// CandidatesProcessed counts integers covered by the sieve
		CandidatesProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "primekit_candidates_processed_total",
			Help: "Integers covered by generation runs",
		}),

		Checks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "primekit_checks_total",
			Help: "Primality checks by result",
		}, []string{"result"}),

		StoreValuesFlushed: factory.NewCounter(prometheus.CounterOpts{
			Name: "primekit_store_values_flushed_total",
			Help: "Values written to the store log",
		}),

		StoreFlushes: factory.NewCounter(prometheus.CounterOpts{
			Name: "primekit_store_flushes_total",
			Help: "Chunked log flushes",
		}),

		HistogramBuckets: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "primekit_histogram_buckets_total",
			Help: "Histogram buckets computed by counting path",
		}, []string{"path"}),

		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "primekit_operation_duration_seconds",
			Help:    "Engine operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 12), // 0.1ms to ~7min
		}, []string{"operation"}),

		OperationErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "primekit_operation_errors_total",
			Help: "Engine operation failures",
		}, []string{"operation"}),
	}
}

// ObserveFlush records one store log flush of n values.
func (m *Metrics) ObserveFlush(n int) {
	m.StoreFlushes.Inc()
	m.StoreValuesFlushed.Add(float64(n))
}

// ObserveOperation records the duration and outcome of an engine operation.
func (m *Metrics) ObserveOperation(op string, started time.Time, err error) {
	m.OperationDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())
	if err != nil {
		m.OperationErrors.WithLabelValues(op).Inc()
	}
}

// WriteTextFile writes all metrics in the Prometheus text format, creating
// the parent directory if needed.
func (m *Metrics) WriteTextFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
