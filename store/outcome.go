package store

import (
	"context"
	"fmt"
	"time"

)

// Entry is one preview_log row.
type Entry struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	Fragment   string    `json:"fragment,omitempty"`
	Outcome    string    `json:"outcome"`
	Detail     string    `json:"detail,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Record appends e to the log. ID and CreatedAt are filled when zero.
func (s *Store) Record(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = s.ids()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	err := s.exec(ctx, `
		INSERT INTO preview_log (id, url, fragment, outcome, detail, duration_ms, created_at)
		VALUES (?,?,?,?,?,?,?)`,
		e.ID, e.URL, e.Fragment, e.Outcome, e.Detail, e.DurationMS, e.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("store: record: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. A non-empty outcome
// filters on that outcome.
func (s *Store) Recent(ctx context.Context, limit int, outcome string) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, url, fragment, outcome, detail, duration_ms, created_at
		FROM preview_log`
	args := []any{}
	if outcome != "" {
		query += ` WHERE outcome = ?`
		args = append(args, outcome)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			created int64
		)
		if err := rows.Scan(&e.ID, &e.URL, &e.Fragment, &e.Outcome, &e.Detail, &e.DurationMS, &created); err != nil {
			return nil, fmt.Errorf("store: recent scan: %w", err)
		}
		e.CreatedAt = time.UnixMilli(created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Counts returns the number of log rows per outcome.
func (s *Store) Counts(ctx context.Context) (map[string]int, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT outcome, COUNT(*) FROM preview_log GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("store: counts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			k string
			n int
		)
		if err := rows.Scan(&k, &n); err != nil {
			return nil, fmt.Errorf("store: counts scan: %w", err)
		}
		out[k] = n
	}
	return out, rows.Err()
}
