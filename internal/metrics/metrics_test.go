package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveFlush(t *testing.T) {
	m := New()
	m.ObserveFlush(5000)
	m.ObserveFlush(12)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.StoreFlushes))
	assert.Equal(t, 5012.0, testutil.ToFloat64(m.StoreValuesFlushed))
}

func TestObserveOperation(t *testing.T) {
	m := New()
	m.ObserveOperation("check", time.Now(), nil)
	m.ObserveOperation("check", time.Now(), errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationErrors.WithLabelValues("check")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.OperationDuration))
}

func TestWriteTextFile(t *testing.T) {
	m := New()
	m.PrimesGenerated.Add(25)
	m.Checks.WithLabelValues("prime").Inc()

	path := filepath.Join(t.TempDir(), "nested", "primekit.prom")
	require.NoError(t, m.WriteTextFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "primekit_primes_generated_total 25")
	assert.Contains(t, string(data), `primekit_checks_total{result="prime"} 1`)
}

func TestNew_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.PrimesGenerated.Inc()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.PrimesGenerated))
}
