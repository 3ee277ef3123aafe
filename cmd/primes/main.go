package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"primekit/internal/config"
	"primekit/internal/engine"
	"primekit/internal/logging"
	"primekit/internal/metrics"
	"primekit/internal/store"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose     bool
	configPath  string
	storeDir    string
	metricsFile string
	jsonOutput  bool
	timeout     time.Duration

	// Set up by PersistentPreRunE
	cfg *config.Config

	// Built on first use by openEngine
	eng     *engine.Engine
	primeDB store.Store
	stats   *metrics.Metrics
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "primes",
	Short: "primes - prime generation, testing and distribution toolkit",
	Long: `primes generates, tests and analyses prime numbers.

Generated and confirmed primes are recorded in a persistent store
(a JSON snapshot plus an append-only log, or SQLite) so later runs
and other tools can read them back.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if storeDir != "" {
			cfg.Store.Dir = storeDir
		}
		if metricsFile != "" {
			cfg.Metrics.TextFile = metricsFile
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		if err := logging.Initialize(cfg.Logging.ToLogging()); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if verbose {
			logging.SetVerbose(true)
		}
		logging.BootDebug("config loaded from %q, store backend %s in %s", configPath, cfg.Store.Backend, cfg.Store.Dir)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeEngine()
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "primes.yaml", "Config file (missing file = defaults)")
	rootCmd.PersistentFlags().StringVar(&storeDir, "store-dir", "", "Store directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile on exit")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Operation timeout (0 = none)")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(factorCmd)
	rootCmd.AddCommand(histogramCmd)
	rootCmd.AddCommand(storeCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		closeEngine()
		os.Exit(1)
	}
}

// openEngine opens the configured store and builds the engine once per
// process.
func openEngine() (*engine.Engine, error) {
	if eng != nil {
		return eng, nil
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	stats = metrics.New()
	st, err := store.Open(cfg, stats.ObserveFlush)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	primeDB = st
	eng = engine.New(cfg, st, stats)
	return eng, nil
}

// closeEngine releases the store and exports metrics. Safe to call twice.
func closeEngine() {
	if primeDB != nil {
		if err := primeDB.Close(); err != nil {
			logging.StoreWarn("failed to close store: %v", err)
		}
		primeDB = nil
	}
	if stats != nil && cfg != nil && cfg.Metrics.TextFile != "" {
		if err := stats.WriteTextFile(cfg.Metrics.TextFile); err != nil {
			logging.BootWarn("%v", err)
		}
	}
	stats = nil
	eng = nil
}

// commandContext applies --timeout and cancels on SIGINT/SIGTERM.
func commandContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	return tctx, func() {
		cancel()
		stop()
	}
}
