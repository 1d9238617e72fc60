package store

// Schema contains the DDL for the preview tables.
const Schema = `
-- Settings: persisted reader preferences (key/value)
CREATE TABLE IF NOT EXISTS settings (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);

-- Preview log: one row per finished preview run
CREATE TABLE IF NOT EXISTS preview_log (
    id          TEXT PRIMARY KEY,
    url         TEXT NOT NULL,
    fragment    TEXT NOT NULL DEFAULT '',
    outcome     TEXT NOT NULL,
    detail      TEXT NOT NULL DEFAULT '',
    duration_ms INTEGER NOT NULL DEFAULT 0,
    created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_preview_log_created ON preview_log(created_at);
CREATE INDEX IF NOT EXISTS idx_preview_log_outcome ON preview_log(outcome);
`
