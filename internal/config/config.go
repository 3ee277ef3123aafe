package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds all primekit configuration.
type Config struct {
	// Persistence store
	Store StoreConfig `yaml:"store"`

	// Segmented sieve tuning
	Sieve SieveConfig `yaml:"sieve"`

	// Generation runs (generate command)
	Generate GenerateConfig `yaml:"generate"`

	// Distribution histogram
	Histogram HistogramConfig `yaml:"histogram"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// Prometheus metrics export
	Metrics MetricsConfig `yaml:"metrics"`
}

// Store backends.
const (
	BackendFiles  = "files"
	BackendSQLite = "sqlite"
)

// StoreConfig locates the persisted prime set.
type StoreConfig struct {
	Backend      string `yaml:"backend" env:"PRIMES_STORE_BACKEND"` // files, sqlite
	Dir          string `yaml:"dir" env:"PRIMES_STORE_DIR"`
	SnapshotFile string `yaml:"snapshot_file"` // JSON array, full rewrite
	LogFile      string `yaml:"log_file"`      // one integer per line, append-only
	SQLiteFile   string `yaml:"sqlite_file"`
	ChunkSize    int    `yaml:"chunk_size" env:"PRIMES_CHUNK_SIZE"` // values per log flush
}

// SieveConfig tunes the segmented sieve.
type SieveConfig struct {
	SegmentSize uint64 `yaml:"segment_size" env:"PRIMES_SEGMENT_SIZE"` // 0 = adaptive
}

// GenerateConfig tunes generation runs.
type GenerateConfig struct {
	SmallRangeThreshold uint64 `yaml:"small_range_threshold"` // ranges ending at or below this use the bounded sieve
	PreviewLimit        int    `yaml:"preview_limit"`
	ProgressInterval    string `yaml:"progress_interval"`
}

// HistogramConfig tunes bucket counting.
type HistogramConfig struct {
	MaterializeThreshold uint64 `yaml:"materialize_threshold"` // end ≤ this uses the bounded sieve
	Workers              int    `yaml:"workers" env:"PRIMES_HISTOGRAM_WORKERS"`
}

// MetricsConfig configures metric export.
type MetricsConfig struct {
	TextFile string `yaml:"text_file" env:"PRIMES_METRICS_FILE"` // node-exporter textfile target
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:      BackendFiles,
			Dir:          ".",
			SnapshotFile: "primes_db.json",
			LogFile:      "primes_db.ndjson",
			SQLiteFile:   "primes.db",
			ChunkSize:    5000,
		},
		Sieve: SieveConfig{
			SegmentSize: 0,
		},
		Generate: GenerateConfig{
			SmallRangeThreshold: 5_000_000,
			PreviewLimit:        200,
			ProgressInterval:    "200ms",
		},
		Histogram: HistogramConfig{
			MaterializeThreshold: 5_000_000,
			Workers:              1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	// Override with environment variables
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies PRIMES_* environment variables on top of the
// file values. Unset variables leave fields untouched.
func (c *Config) applyEnvOverrides() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// SnapshotPath returns the snapshot file location.
func (c *Config) SnapshotPath() string {
	return filepath.Join(c.Store.Dir, c.Store.SnapshotFile)
}

// LogPath returns the append-log file location.
func (c *Config) LogPath() string {
	return filepath.Join(c.Store.Dir, c.Store.LogFile)
}

// SQLitePath returns the SQLite database location.
func (c *Config) SQLitePath() string {
	return filepath.Join(c.Store.Dir, c.Store.SQLiteFile)
}

// GetProgressInterval returns the progress reporting interval as a duration.
func (c *Config) GetProgressInterval() time.Duration {
	d, err := time.ParseDuration(c.Generate.ProgressInterval)
	if err != nil || d <= 0 {
		return 200 * time.Millisecond
	}
	return d
}

// ValidBackends lists all supported store backends.
var ValidBackends = []string{BackendFiles, BackendSQLite}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validBackend := false
	for _, b := range ValidBackends {
		if c.Store.Backend == b {
			validBackend = true
			break
		}
	}
	if !validBackend {
		return fmt.Errorf("invalid store backend: %s (valid: %v)", c.Store.Backend, ValidBackends)
	}
	if c.Store.Backend == BackendFiles && (c.Store.SnapshotFile == "" || c.Store.LogFile == "") {
		return fmt.Errorf("store.snapshot_file and store.log_file are required for the files backend")
	}
	if c.Store.Backend == BackendSQLite && c.Store.SQLiteFile == "" {
		return fmt.Errorf("store.sqlite_file is required for the sqlite backend")
	}
	if c.Store.ChunkSize < 1 {
		return fmt.Errorf("store.chunk_size must be >= 1")
	}
	if c.Generate.PreviewLimit < 0 {
		return fmt.Errorf("generate.preview_limit must be >= 0")
	}
	if c.Histogram.Workers < 1 {
		return fmt.Errorf("histogram.workers must be >= 1")
	}
	if _, err := time.ParseDuration(c.Generate.ProgressInterval); err != nil {
		return fmt.Errorf("invalid generate.progress_interval %q: %w", c.Generate.ProgressInterval, err)
	}
	return nil
}
