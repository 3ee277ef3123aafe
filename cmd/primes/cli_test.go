package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"primekit/internal/config"
	"primekit/internal/primality"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupCLI points the globals at a fresh store and returns a command whose
// output is captured.
func setupCLI(t *testing.T) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	cfg = config.DefaultConfig()
	cfg.Store.Dir = t.TempDir()
	jsonOutput = false
	genQuiet, genAll, genDigit, genSegmentSize = false, false, -1, 0
	histChart = false
	loadLimit, clearForce = 0, false
	t.Cleanup(closeEngine)

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	return cmd, &out
}

func TestGenerateCmd(t *testing.T) {
	cmd, out := setupCLI(t)

	require.NoError(t, runGenerate(cmd, []string{"1", "30"}))
	assert.Contains(t, out.String(), "2 3 5 7 11 13 17 19 23 29")
	assert.Contains(t, out.String(), "Found 10 primes in [1, 30]")

	out.Reset()
	require.NoError(t, runStoreLoad(cmd, nil))
	assert.Equal(t, "2\n3\n5\n7\n11\n13\n17\n19\n23\n29\n", out.String())
}

func TestGenerateCmd_DigitFlag(t *testing.T) {
	_, out := setupCLI(t)

	cmd := &cobra.Command{}
	cmd.Flags().IntVarP(&genDigit, "digit", "d", -1, "")
	require.NoError(t, cmd.Flags().Set("digit", "7"))
	cmd.SetOut(out)
	genAll = true

	require.NoError(t, runGenerate(cmd, []string{"1", "100"}))
	assert.Equal(t, "7\n17\n37\n47\n67\n97\n", out.String())
}

func TestGenerateCmd_InvalidArgs(t *testing.T) {
	cmd, _ := setupCLI(t)

	err := runGenerate(cmd, []string{"abc", "10"})
	assert.ErrorIs(t, err, primality.ErrNotANumber)

	err = runGenerate(cmd, []string{"1", "18446744073709551616"})
	assert.ErrorIs(t, err, primality.ErrOutOfRange)

	err = runGenerate(cmd, []string{"10", "1"})
	assert.Error(t, err)
}

func TestGenerateCmd_JSON(t *testing.T) {
	cmd, out := setupCLI(t)
	jsonOutput = true

	require.NoError(t, runGenerate(cmd, []string{"10", "20"}))
	assert.Contains(t, out.String(), `"count": 4`)
	assert.Contains(t, out.String(), `"run_id"`)
}

func TestCheckCmd(t *testing.T) {
	cmd, out := setupCLI(t)

	require.NoError(t, runCheck(cmd, []string{"97"}))
	assert.Equal(t, "97 is prime\n", out.String())

	out.Reset()
	require.NoError(t, runCheck(cmd, []string{"91"}))
	assert.Equal(t, "91 is not prime: 7 × 13 = 91\n", out.String())

	out.Reset()
	require.NoError(t, runCheck(cmd, []string{"1"}))
	assert.Equal(t, "1 is not prime\n", out.String())

	// the prime was recorded
	out.Reset()
	require.NoError(t, runStoreLoad(cmd, nil))
	assert.Equal(t, "97\n", out.String())
}

func TestFactorCmd(t *testing.T) {
	cmd, out := setupCLI(t)

	require.NoError(t, runFactor(cmd, []string{"360"}))
	assert.Equal(t, "2 × 2 × 2 × 3 × 3 × 5 = 360\n", out.String())

	out.Reset()
	require.NoError(t, runFactor(cmd, []string{"1"}))
	assert.Equal(t, "1 has no prime factors\n", out.String())
}

func TestHistogramCmd(t *testing.T) {
	cmd, out := setupCLI(t)
	histChart = true

	require.NoError(t, runHistogram(cmd, []string{"1", "100", "10"}))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 11)
	assert.True(t, strings.HasPrefix(lines[0], "1-10 "))
	assert.Contains(t, lines[0], "████")
	assert.Contains(t, lines[10], "25 primes in 10 buckets")

	err := runHistogram(cmd, []string{"1", "100", "0"})
	assert.Error(t, err)
}

func TestStoreCmds(t *testing.T) {
	cmd, out := setupCLI(t)

	require.NoError(t, runGenerate(cmd, []string{"1", "10"}))
	out.Reset()

	require.NoError(t, runStoreSnapshot(cmd, nil))
	assert.Equal(t, "Snapshot written with 4 primes\n", out.String())
	data, err := os.ReadFile(cfg.SnapshotPath())
	require.NoError(t, err)
	assert.JSONEq(t, `[2,3,5,7]`, string(data))

	out.Reset()
	loadLimit = 2
	require.NoError(t, runStoreLoad(cmd, nil))
	assert.Equal(t, "2\n3\n", out.String())

	assert.Error(t, runStoreClear(cmd, nil), "clear requires --force")
	clearForce = true
	require.NoError(t, runStoreClear(cmd, nil))

	out.Reset()
	loadLimit = 0
	require.NoError(t, runStoreLoad(cmd, nil))
	assert.Empty(t, out.String())
}

func TestConfigInit(t *testing.T) {
	cmd, _ := setupCLI(t)
	path := filepath.Join(t.TempDir(), "primes.yaml")

	require.NoError(t, runConfigInit(cmd, []string{path}))
	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().Store, loaded.Store)

	assert.Error(t, runConfigInit(cmd, []string{path}), "existing file is not overwritten")
}

func TestConfigShow(t *testing.T) {
	cmd, out := setupCLI(t)

	require.NoError(t, runConfigShow(cmd, nil))
	assert.Contains(t, out.String(), "backend: files")
	assert.Contains(t, out.String(), "chunk_size: 5000")
}

func TestWatchedFiles(t *testing.T) {
	c := config.DefaultConfig()
	c.Store.Dir = "/data"
	assert.Equal(t, []string{"/data/primes_db.json", "/data/primes_db.ndjson"}, watchedFiles(c))

	c.Store.Backend = config.BackendSQLite
	assert.Equal(t, []string{"/data/primes.db", "/data/primes.db-wal"}, watchedFiles(c))
}
