package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const memoryPath = ":memory:"

var pragmas = []string{
	"PRAGMA foreign_keys = ON",
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 10000",
	"PRAGMA synchronous = NORMAL",
}

// openDB opens the database at path through the "sqlite" driver, applies
// pragmas then Schema.
func openDB(path string) (*sql.DB, error) {
	if path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	// Every connection to :memory: sees its own empty database.
	if path == memoryPath {
		db.SetMaxOpenConns(1)
	}

	for _, stmt := range append(pragmas, Schema) {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", firstLine(stmt), err)
		}
	}
	return db, nil
}

// OpenMemory returns an in-memory Store closed when t ends.
func OpenMemory(t testing.TB) *Store {
	t.Helper()
	db, err := openDB(memoryPath)
	if err != nil {
		t.Fatalf("store.OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db)
}

// isBusy reports whether err is SQLite refusing a write under contention.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

const writeAttempts = 3

// exec runs a write, backing off 100ms, then 200ms, while the database is
// busy.
func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	for attempt := 1; ; attempt++ {
		_, err := s.DB.ExecContext(ctx, query, args...)
		if err == nil || !isBusy(err) || attempt == writeAttempts {
			return err
		}
		t := time.NewTimer(time.Duration(attempt) * 100 * time.Millisecond)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
