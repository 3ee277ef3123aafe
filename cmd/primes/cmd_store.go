package main

import (
	"context"
	"fmt"

	"primekit/internal/config"
	"primekit/internal/watch"

	"github.com/spf13/cobra"
)

var (
	loadLimit  int
	clearForce bool
)

// storeCmd groups persistence maintenance
var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Inspect and maintain the prime store",
}

var storeLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Print the stored primes (deduplicated, ascending)",
	Args:  cobra.NoArgs,
	RunE:  runStoreLoad,
}

var storeClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the snapshot and the log",
	Args:  cobra.NoArgs,
	RunE:  runStoreClear,
}

var storeSnapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Rewrite the snapshot from the current snapshot and log",
	Args:  cobra.NoArgs,
	RunE:  runStoreSnapshot,
}

var storeWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Report the store size whenever its files change",
	Long: `Watches the store files and prints the number of stored primes after
each settled change. Stops on Ctrl+C or --timeout.`,
	Args: cobra.NoArgs,
	RunE: runStoreWatch,
}

func init() {
	storeLoadCmd.Flags().IntVarP(&loadLimit, "limit", "n", 0, "Print at most this many primes (0 = all)")
	storeClearCmd.Flags().BoolVarP(&clearForce, "force", "f", false, "Required to confirm deletion")

	storeCmd.AddCommand(storeLoadCmd)
	storeCmd.AddCommand(storeClearCmd)
	storeCmd.AddCommand(storeSnapshotCmd)
	storeCmd.AddCommand(storeWatchCmd)
}

func runStoreLoad(cmd *cobra.Command, args []string) error {
	e, err := openEngine()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	primes, err := e.LoadStore(ctx)
	if err != nil {
		return err
	}
	total := len(primes)
	if loadLimit > 0 && loadLimit < total {
		primes = primes[:loadLimit]
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, primes)
	}
	for _, p := range primes {
		fmt.Fprintln(out, p)
	}
	if len(primes) < total {
		fmt.Fprintln(cmd.ErrOrStderr(), dimStyle.Render(fmt.Sprintf("... %d more", total-len(primes))))
	}
	return nil
}

func runStoreClear(cmd *cobra.Command, args []string) error {
	if !clearForce {
		return fmt.Errorf("refusing to clear the store without --force")
	}
	e, err := openEngine()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	if err := e.ClearStore(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Store cleared")
	return nil
}

func runStoreSnapshot(cmd *cobra.Command, args []string) error {
	e, err := openEngine()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	n, err := e.SaveSnapshot(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Snapshot written with %d primes\n", n)
	return nil
}

func runStoreWatch(cmd *cobra.Command, args []string) error {
	e, err := openEngine()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	out := cmd.OutOrStdout()
	report := func(ctx context.Context, paths []string) {
		primes, err := e.LoadStore(ctx)
		if err != nil {
			return
		}
		fmt.Fprintf(out, "%d primes stored (%d file(s) changed)\n", len(primes), len(paths))
	}

	w, err := watch.New(watchedFiles(cfg), report)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Start(ctx); err != nil {
		w.Stop()
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	report(ctx, nil)

	<-w.Done()
	w.Stop()
	return nil
}

// watchedFiles lists the files backing the configured store.
func watchedFiles(c *config.Config) []string {
	if c.Store.Backend == config.BackendSQLite {
		return []string{c.SQLitePath(), c.SQLitePath() + "-wal"}
	}
	return []string{c.SnapshotPath(), c.LogPath()}
}
