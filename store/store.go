// Package store provides the SQLite persistence layer for reader settings
// and the preview outcome log.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/instantpreview/idgen"
)

// Store is the preview database handle.
type Store struct {
	DB  *sql.DB
	ids idgen.Generator
	now func() time.Time
}

// Open opens (or creates) the database at path and applies the schema.
// The caller must blank-import modernc.org/sqlite.
func Open(path string) (*Store, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

// New wraps an open database that already carries Schema.
func New(db *sql.DB) *Store {
	return &Store{DB: db, ids: idgen.Prefixed("out_", idgen.Default), now: time.Now}
}

// WithIDGenerator replaces the log row ID generator.
func (s *Store) WithIDGenerator(gen idgen.Generator) *Store {
	s.ids = gen
	return s
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// Load returns the setting stored under key. ok is false when absent.
func (s *Store) Load(ctx context.Context, key string) (value string, ok bool, err error) {
	err = s.DB.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: load %s: %w", key, err)
	}
	return value, true, nil
}

// Save stores value under key, replacing any previous value.
func (s *Store) Save(ctx context.Context, key, value string) error {
	err := s.exec(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("store: save %s: %w", key, err)
	}
	return nil
}
