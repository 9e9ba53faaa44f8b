package db

const schema = `
-- Performance and reliability settings
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA foreign_keys = ON;
PRAGMA temp_store = MEMORY;

-- One row per dataset processed by a post-processing run
CREATE TABLE IF NOT EXISTS runs (
    run_row_id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,             -- ULID shared by every dataset of one invocation
    dataset TEXT NOT NULL,
    started_at TEXT NOT NULL,         -- RFC3339
    finished_at TEXT,
    status TEXT NOT NULL DEFAULT 'running', -- running, success, failed
    error TEXT,

    metrics TEXT,                     -- comma-separated metric families
    workers INTEGER DEFAULT 0,

    total_documents INTEGER DEFAULT 0,
    accepted_documents INTEGER DEFAULT 0,
    file_size INTEGER DEFAULT 0,

    UNIQUE (run_id, dataset)
);

CREATE INDEX IF NOT EXISTS idx_runs_dataset ON runs(dataset);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

-- Skip counts per reason (duplicate, too_short, wrong_language, annotation_error)
CREATE TABLE IF NOT EXISTS run_skips (
    run_row_id INTEGER NOT NULL,
    reason TEXT NOT NULL,
    count INTEGER NOT NULL,
    PRIMARY KEY (run_row_id, reason),
    FOREIGN KEY (run_row_id) REFERENCES runs(run_row_id) ON DELETE CASCADE
);
`
