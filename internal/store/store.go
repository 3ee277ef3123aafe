// Package store persists the set of discovered primes.
//
// The set has two physical tiers:
//   - Snapshot: a deduplicated, sorted, fully rewritten representation.
//   - Log: an append-only record stream that may hold duplicates.
//
// Load always returns dedupe(snapshot ∪ log) in ascending order and never
// fails because of unreadable or corrupt storage: a bad tier is logged and
// treated as empty. Writes, on the other hand, always surface their errors.
//
// Usage Example:
//
//	st, _ := store.Open(cfg, nil)
//	defer st.Close()
//
//	app, _ := st.OpenAppender(ctx)
//	for it.Next() {
//	    if err := app.Add(it.Prime()); err != nil { ... }
//	}
//	if err := app.Close(); err != nil { ... } // flushes the tail
//
//	primes, _ := st.Load(ctx)
package store

import (
	"context"
	"fmt"
	"slices"

	"primekit/internal/config"
	"primekit/internal/logging"
)

// DefaultChunkSize is the number of values buffered before a log flush.
const DefaultChunkSize = 5000

// Store is the durable prime set.
type Store interface {
	// Load returns the deduplicated ascending union of snapshot and log.
	// Only context cancellation is reported as an error.
	Load(ctx context.Context) ([]uint64, error)

	// Append records values in the log in ChunkSize batches.
	Append(ctx context.Context, values []uint64) error

	// OpenAppender starts a write session that keeps the log open until
	// Close. Producers sharing an Appender are serialized.
	OpenAppender(ctx context.Context) (Appender, error)

	// SaveSnapshot deduplicates, sorts and replaces the snapshot.
	SaveSnapshot(ctx context.Context, values []uint64) error

	// Clear removes both tiers. Clearing an empty store is not an error.
	Clear(ctx context.Context) error

	Close() error
}

// Appender is a buffered log-writing session.
type Appender interface {
	// Add buffers v, flushing a full chunk to the log.
	Add(v uint64) error
	// Flush writes buffered values now.
	Flush() error
	// Close flushes the tail and releases the log.
	Close() error
	// Written returns how many values reached the log.
	Written() int
}

// FlushHook observes each successful log flush (number of values written).
type FlushHook func(n int)

// Open builds the store selected by cfg.Store.Backend.
func Open(cfg *config.Config, hook FlushHook) (Store, error) {
	switch cfg.Store.Backend {
	case config.BackendFiles, "":
		logging.StoreDebug("opening file store snapshot=%s log=%s", cfg.SnapshotPath(), cfg.LogPath())
		return NewFileStore(Paths{Snapshot: cfg.SnapshotPath(), Log: cfg.LogPath()}, cfg.Store.ChunkSize, hook), nil
	case config.BackendSQLite:
		return NewSQLiteStore(cfg.SQLitePath(), cfg.Store.ChunkSize, hook)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// dedupeSorted returns a sorted copy of values without duplicates.
func dedupeSorted(values []uint64) []uint64 {
	out := slices.Clone(values)
	slices.Sort(out)
	return slices.Compact(out)
}

func chunkSizeOrDefault(n int) int {
	if n < 1 {
		return DefaultChunkSize
	}
	return n
}
