package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvOverrides_Store(t *testing.T) {
	t.Run("PRIMES_STORE_DIR replaces the directory", func(t *testing.T) {
		t.Setenv("PRIMES_STORE_DIR", "/tmp/primes")

		cfg := DefaultConfig()
		require.NoError(t, cfg.applyEnvOverrides())

		assert.Equal(t, "/tmp/primes", cfg.Store.Dir)
		assert.Equal(t, BackendFiles, cfg.Store.Backend)
	})

	t.Run("PRIMES_STORE_BACKEND selects sqlite", func(t *testing.T) {
		t.Setenv("PRIMES_STORE_BACKEND", "sqlite")

		cfg := DefaultConfig()
		require.NoError(t, cfg.applyEnvOverrides())

		assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	})

	t.Run("PRIMES_CHUNK_SIZE is parsed as int", func(t *testing.T) {
		t.Setenv("PRIMES_CHUNK_SIZE", "128")

		cfg := DefaultConfig()
		require.NoError(t, cfg.applyEnvOverrides())

		assert.Equal(t, 128, cfg.Store.ChunkSize)
	})

	t.Run("malformed numbers are rejected", func(t *testing.T) {
		t.Setenv("PRIMES_CHUNK_SIZE", "lots")

		cfg := DefaultConfig()
		assert.Error(t, cfg.applyEnvOverrides())
	})
}

func TestEnvOverrides_Tuning(t *testing.T) {
	t.Setenv("PRIMES_SEGMENT_SIZE", "65536")
	t.Setenv("PRIMES_HISTOGRAM_WORKERS", "4")
	t.Setenv("PRIMES_LOG_LEVEL", "debug")
	t.Setenv("PRIMES_METRICS_FILE", "/tmp/primes.prom")

	cfg := DefaultConfig()
	require.NoError(t, cfg.applyEnvOverrides())

	assert.Equal(t, uint64(65536), cfg.Sieve.SegmentSize)
	assert.Equal(t, 4, cfg.Histogram.Workers)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/tmp/primes.prom", cfg.Metrics.TextFile)
}

func TestEnvOverrides_UnsetLeavesFileValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.Dir = "from-file"
	require.NoError(t, cfg.applyEnvOverrides())
	assert.Equal(t, "from-file", cfg.Store.Dir)
}
