package ledger

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema creates the ledger tables. Times are Unix milliseconds so that both
// SQLite drivers read them back identically.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    family TEXT NOT NULL,
    run_trigger TEXT NOT NULL DEFAULT '',
    started_at INTEGER NOT NULL,
    finished_at INTEGER NOT NULL,
    status TEXT NOT NULL,
    error TEXT NOT NULL DEFAULT '',
    uploaded INTEGER NOT NULL DEFAULT 0,
    promoted INTEGER NOT NULL DEFAULT 0,
    deleted INTEGER NOT NULL DEFAULT 0,
    failures INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_family_started ON runs(family, started_at);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    family TEXT NOT NULL,
    kind TEXT NOT NULL,
    tier TEXT NOT NULL DEFAULT '',
    object_key TEXT NOT NULL,
    detail TEXT NOT NULL DEFAULT '',
    at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);
`

const (
	insertSchemaVersion = `INSERT OR IGNORE INTO schema_version (version) VALUES (?)`
	getSchemaVersion    = `SELECT MAX(version) FROM schema_version`

	insertRun = `INSERT OR REPLACE INTO runs
    (id, family, run_trigger, started_at, finished_at, status, error, uploaded, promoted, deleted, failures)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	deleteRunEvents = `DELETE FROM events WHERE run_id = ?`

	insertEvent = `INSERT INTO events (run_id, family, kind, tier, object_key, detail, at)
    VALUES (?, ?, ?, ?, ?, ?, ?)`

	selectEvents = `SELECT kind, tier, object_key, detail FROM events WHERE run_id = ? ORDER BY id`

	pruneEvents = `DELETE FROM events WHERE run_id NOT IN
    (SELECT id FROM runs ORDER BY started_at DESC, id DESC LIMIT ?)`

	pruneRuns = `DELETE FROM runs WHERE id NOT IN
    (SELECT id FROM runs ORDER BY started_at DESC, id DESC LIMIT ?)`
)
