package store

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"primekit/internal/logging"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Paths locates the two files backing a FileStore.
type Paths struct {
	Snapshot string // JSON array of integers
	Log      string // one decimal integer per line
}

// FileStore keeps the snapshot as a JSON array file and the log as a
// newline-delimited text file.
type FileStore struct {
	paths     Paths
	chunkSize int
	hook      FlushHook

	// writeMu is the single logical writer: every log write, snapshot
	// replace and clear goes through it.
	writeMu sync.Mutex
}

// NewFileStore creates a file-backed store. Files are created lazily on the
// first write.
func NewFileStore(paths Paths, chunkSize int, hook FlushHook) *FileStore {
	return &FileStore{
		paths:     paths,
		chunkSize: chunkSizeOrDefault(chunkSize),
		hook:      hook,
	}
}

// Paths returns the files backing the store.
func (s *FileStore) Paths() Paths {
	return s.paths
}

// slowLoadThreshold is the Load duration above which a warning is logged.
const slowLoadThreshold = 2 * time.Second

// Load merges snapshot and log.
func (s *FileStore) Load(ctx context.Context) ([]uint64, error) {
	timer := logging.StartTimer(logging.CategoryStore, "FileStore.Load")
	defer timer.StopWithThreshold(slowLoadThreshold)

	snapshot := s.readSnapshot()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logged := s.readLog()

	merged := dedupeSorted(append(snapshot, logged...))
	logging.StoreDebug("loaded %d primes (snapshot=%d log=%d)", len(merged), len(snapshot), len(logged))
	return merged, nil
}

// readSnapshot streams the JSON array. Missing, unreadable or corrupt
// snapshots yield nil.
func (s *FileStore) readSnapshot() []uint64 {
	f, err := os.Open(s.paths.Snapshot)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.StoreWarn("snapshot %s unreadable, ignoring: %v", s.paths.Snapshot, err)
		}
		return nil
	}
	defer f.Close()

	values, err := decodeSnapshot(bufio.NewReader(f))
	if err != nil {
		logging.StoreWarn("snapshot %s is corrupt, ignoring: %v", s.paths.Snapshot, err)
		return nil
	}
	return values
}

// errCorruptSnapshot marks snapshot content that is not exactly one JSON
// array of unsigned integers.
var errCorruptSnapshot = errors.New("corrupt snapshot")

// decodeSnapshot parses a snapshot stream. Empty or whitespace-only input is
// an empty snapshot. An array cut short, a non-integer element or anything
// but whitespace after the closing bracket is an error.
func decodeSnapshot(r io.Reader) ([]uint64, error) {
	iter := jsoniter.Parse(json, r, 64*1024)
	if atEOF(iter) {
		return nil, nil
	}

	var values []uint64
	for iter.ReadArray() {
		v := iter.ReadUint64()
		if iter.Error != nil {
			return nil, fmt.Errorf("%w: element %d: %v", errCorruptSnapshot, len(values), iter.Error)
		}
		values = append(values, v)
	}
	if iter.Error != nil {
		return nil, fmt.Errorf("%w: %v", errCorruptSnapshot, iter.Error)
	}
	if !atEOF(iter) {
		return nil, fmt.Errorf("%w: trailing data after array", errCorruptSnapshot)
	}
	return values, nil
}

// atEOF reports whether only whitespace remains in iter.
func atEOF(iter *jsoniter.Iterator) bool {
	return iter.WhatIsNext() == jsoniter.InvalidValue && errors.Is(iter.Error, io.EOF)
}

// readLog parses one integer per line, skipping malformed lines. A log that
// cannot be read yields nil.
func (s *FileStore) readLog() []uint64 {
	f, err := os.Open(s.paths.Log)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.StoreWarn("log %s unreadable, ignoring: %v", s.paths.Log, err)
		}
		return nil
	}
	defer f.Close()

	var values []uint64
	skipped := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		v, err := strconv.ParseUint(line, 10, 64)
		if err != nil {
			skipped++
			continue
		}
		values = append(values, v)
	}
	if err := scanner.Err(); err != nil {
		logging.StoreWarn("log %s unreadable, ignoring: %v", s.paths.Log, err)
		return nil
	}
	if skipped > 0 {
		logging.StoreWarn("log %s: skipped %d malformed lines", s.paths.Log, skipped)
	}
	return values
}

// Append writes values to the log in chunks.
func (s *FileStore) Append(ctx context.Context, values []uint64) error {
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

// OpenAppender opens the log in append-only mode for a write session.
func (s *FileStore) OpenAppender(ctx context.Context) (Appender, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ensureDir(s.paths.Log); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(s.paths.Log, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log %s: %w", s.paths.Log, err)
	}
	logging.StoreDebug("opened log %s for appending (chunk=%d)", s.paths.Log, s.chunkSize)
	return &fileAppender{
		store:  s,
		file:   f,
		buffer: make([]uint64, 0, s.chunkSize),
	}, nil
}

// SaveSnapshot atomically replaces the snapshot with dedupe(values).
func (s *FileStore) SaveSnapshot(ctx context.Context, values []uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sorted := dedupeSorted(values)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := ensureDir(s.paths.Snapshot); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.paths.Snapshot), ".snapshot-*.json")
	if err != nil {
		return fmt.Errorf("failed to create snapshot temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	w := bufio.NewWriter(tmp)
	stream := jsoniter.NewStream(json, w, 64*1024)
	stream.WriteArrayStart()
	for i, v := range sorted {
		if i > 0 {
			stream.WriteMore()
		}
		stream.WriteUint64(v)
	}
	stream.WriteArrayEnd()
	if err := stream.Flush(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.paths.Snapshot); err != nil {
		cleanup()
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}

	logging.Store("snapshot %s replaced with %d primes", s.paths.Snapshot, len(sorted))
	return nil
}

// Clear removes snapshot and log.
func (s *FileStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var errs []error
	for _, path := range []string{s.paths.Snapshot, s.paths.Log} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("failed to remove %s: %w", path, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	logging.Store("store cleared (%s, %s)", s.paths.Snapshot, s.paths.Log)
	return nil
}

// Close is a no-op; files are only held open by appenders.
func (s *FileStore) Close() error {
	return nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}

// fileAppender buffers values and writes whole chunks to the log.
type fileAppender struct {
	store *FileStore

	mu      sync.Mutex
	file    *os.File
	buffer  []uint64
	scratch []byte
	written int
	closed  bool
}

func (a *fileAppender) Add(v uint64) error {
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

func (a *fileAppender) Flush() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	return a.flushLocked()
}

func (a *fileAppender) flushLocked() error {
	if len(a.buffer) == 0 {
		return nil
	}
	a.scratch = a.scratch[:0]
	for _, v := range a.buffer {
		a.scratch = strconv.AppendUint(a.scratch, v, 10)
		a.scratch = append(a.scratch, '\n')
	}

	a.store.writeMu.Lock()
	_, err := a.file.Write(a.scratch)
	if err == nil {
		err = a.file.Sync()
	}
	a.store.writeMu.Unlock()

	if err != nil {
		logging.StoreError("log flush of %d values failed: %v", len(a.buffer), err)
		return fmt.Errorf("failed to append to log %s: %w", a.store.paths.Log, err)
	}

	n := len(a.buffer)
	a.written += n
	a.buffer = a.buffer[:0]
	logging.StoreDebug("flushed %d values to %s", n, a.store.paths.Log)
	if a.store.hook != nil {
		a.store.hook(n)
	}
	return nil
}

func (a *fileAppender) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	flushErr := a.flushLocked()
	closeErr := a.file.Close()
	if flushErr != nil {
		return flushErr
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close log: %w", closeErr)
	}
	return nil
}

func (a *fileAppender) Written() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.written
}
