package audit

import "database/sql"

// Schema contains the DDL for the audit tables.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    started_at INTEGER NOT NULL,
    finished_at INTEGER,
    case_dir TEXT NOT NULL DEFAULT '',
    stages INTEGER NOT NULL,
    width INTEGER NOT NULL DEFAULT 0,
    height INTEGER NOT NULL DEFAULT 0,
    params TEXT NOT NULL DEFAULT '{}',
    status TEXT NOT NULL DEFAULT 'running',
    failed_stage INTEGER,
    error_message TEXT,
    verified INTEGER,
    mse REAL,
    diff_percent REAL
);
CREATE INDEX IF NOT EXISTS idx_runs_started
    ON runs(started_at DESC);

CREATE TABLE IF NOT EXISTS run_stages (
    run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
    stage_index INTEGER NOT NULL,
    code INTEGER NOT NULL,
    operation TEXT NOT NULL,
    inverse TEXT NOT NULL,
    checked INTEGER NOT NULL,
    tried INTEGER NOT NULL,
    recorded_at INTEGER NOT NULL,
    width INTEGER NOT NULL DEFAULT 0,
    height INTEGER NOT NULL DEFAULT 0,
    snapshot BLOB,
    PRIMARY KEY (run_id, stage_index)
);
`

// Init creates the audit tables if they do not exist.
func Init(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
