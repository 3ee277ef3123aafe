package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"primekit/internal/logging"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// SQLiteStore keeps both tiers as tables of one SQLite database: snapshot
// holds unique values, log keeps every appended row.
//
// SQLite integers are signed, so values are stored with the top bit flipped;
// this keeps ORDER BY consistent with uint64 order across 2^63.
type SQLiteStore struct {
	db        *sql.DB
	path      string
	chunkSize int
	hook      FlushHook
	mu        sync.Mutex
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string, chunkSize int, hook FlushHook) (*SQLiteStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewSQLiteStore")
	defer timer.Stop()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}

	s := &SQLiteStore{db: db, path: path, chunkSize: chunkSizeOrDefault(chunkSize), hook: hook}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	logging.Store("SQLite store ready at %s", path)
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	if err := RunMigrations(s.db); err != nil {
		return fmt.Errorf("failed to prepare schema: %w", err)
	}
	return nil
}

func encode(v uint64) int64 { return int64(v ^ (1 << 63)) }
func decode(x int64) uint64 { return uint64(x) ^ (1 << 63) }

// Load returns the union of both tables. Query failures degrade to an empty
// result.
func (s *SQLiteStore) Load(ctx context.Context) ([]uint64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT value FROM snapshot UNION SELECT value FROM log ORDER BY value`)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logging.StoreWarn("sqlite load failed, treating store as empty: %v", err)
		return []uint64{}, nil
	}
	defer rows.Close()

	values := []uint64{}
	for rows.Next() {
		var x int64
		if err := rows.Scan(&x); err != nil {
			logging.StoreWarn("sqlite row unreadable, skipping: %v", err)
			continue
		}
		values = append(values, decode(x))
	}
	if err := rows.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logging.StoreWarn("sqlite load interrupted, treating store as empty: %v", err)
		return []uint64{}, nil
	}
	return values, nil
}

// Append inserts values into the log table in chunked transactions.
func (s *SQLiteStore) Append(ctx context.Context, values []uint64) error {
	if len(values) == 0 {
		return nil
	}
	app, err := s.OpenAppender(ctx)
	if err != nil {
		return err
	}
	for _, v := range values {
		if err := app.Add(v); err != nil {
			_ = app.Close()
			return err
		}
	}
	return app.Close()
}

// OpenAppender starts a buffered write session.
func (s *SQLiteStore) OpenAppender(ctx context.Context) (Appender, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &sqliteAppender{store: s, ctx: ctx, buffer: make([]uint64, 0, s.chunkSize)}, nil
}

// appendLog inserts one flushed chunk into the log table.
func (s *SQLiteStore) appendLog(ctx context.Context, values []uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO log (value, appended_at) VALUES (?, ?)")
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()
	now := time.Now().Unix()
	for _, v := range values {
		if _, err := stmt.ExecContext(ctx, encode(v), now); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert %d: %w", v, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// SaveSnapshot replaces the snapshot table contents.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, values []uint64) error {
	sorted := dedupeSorted(values)

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM snapshot"); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to clear snapshot: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO snapshot (value) VALUES (?)")
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()
	for _, v := range sorted {
		if _, err := stmt.ExecContext(ctx, encode(v)); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert %d: %w", v, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	logging.Store("sqlite snapshot replaced with %d primes", len(sorted))
	return nil
}

// Clear empties both tables.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err1 := s.db.ExecContext(ctx, "DELETE FROM snapshot")
	_, err2 := s.db.ExecContext(ctx, "DELETE FROM log")
	if err := errors.Join(err1, err2); err != nil {
		return fmt.Errorf("failed to clear sqlite store: %w", err)
	}
	logging.Store("sqlite store cleared (%s)", s.path)
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type sqliteAppender struct {
	store   *SQLiteStore
	ctx     context.Context
	mu      sync.Mutex
	buffer  []uint64
	written int
	closed  bool
}

func (a *sqliteAppender) Add(v uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return errors.New("appender closed")
	}
	a.buffer = append(a.buffer, v)
	if len(a.buffer) >= a.store.chunkSize {
		return a.flushLocked()
	}
	return nil
}

func (a *sqliteAppender) Flush() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.flushLocked()
}

func (a *sqliteAppender) flushLocked() error {
	if len(a.buffer) == 0 {
		return nil
	}
	// a cancelled session still persists what it already produced
	if err := a.store.appendLog(context.WithoutCancel(a.ctx), a.buffer); err != nil {
		logging.StoreError("sqlite log flush of %d values failed: %v", len(a.buffer), err)
		return err
	}
	n := len(a.buffer)
	a.written += n
	a.buffer = a.buffer[:0]
	if a.store.hook != nil {
		a.store.hook(n)
	}
	return nil
}

func (a *sqliteAppender) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	return a.flushLocked()
}

func (a *sqliteAppender) Written() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.written
}
