package db

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

const schema = `
-- Schema bookkeeping
CREATE TABLE IF NOT EXISTS schema_info (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- One row per ingested CSV file
CREATE TABLE IF NOT EXISTS datasets (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    source_path TEXT NOT NULL DEFAULT '',
    columns TEXT NOT NULL DEFAULT '[]',
    row_count INTEGER NOT NULL DEFAULT 0,
    ingested_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Melted data points: one row per (source row, numeric column)
CREATE TABLE IF NOT EXISTS points (
    dataset_id TEXT NOT NULL,
    ts DATETIME NOT NULL,
    metric TEXT NOT NULL,
    grp TEXT NOT NULL DEFAULT '',
    value REAL NOT NULL,
    FOREIGN KEY (dataset_id) REFERENCES datasets(id)
);

CREATE INDEX IF NOT EXISTS idx_points_lookup ON points(dataset_id, metric, ts);
CREATE INDEX IF NOT EXISTS idx_points_group ON points(dataset_id, metric, grp);
`
