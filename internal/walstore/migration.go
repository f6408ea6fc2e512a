package walstore

import (
	"context"
	"database/sql"
	"fmt"
)

// migrationStep is one versioned, forward-only schema change. Applied
// migrations are never rolled back; a step's SQL must be safe to
// re-run (CREATE TABLE/INDEX IF NOT EXISTS) since applyMigrations may
// be invoked against a database that already has some versions applied.
type migrationStep struct {
	Version     int
	Description string
	SQL         string
}

// migrations is the ordered list of every schema version. Required
// tables per spec: sessions, session_events, discovered_sessions,
// archived_session_ids, compaction_log, schema_version.
var migrations = []migrationStep{
	{
		Version:     1,
		Description: "initial sessions and session_events tables",
		SQL: `
CREATE TABLE IF NOT EXISTS sessions (
    session_id       TEXT PRIMARY KEY,
    machine_id       TEXT NOT NULL,
    backend_id       TEXT NOT NULL,
    current_revision INTEGER NOT NULL DEFAULT 1,
    cwd              TEXT,
    title            TEXT,
    agent_updated_at TEXT,
    created_at       TEXT NOT NULL,
    updated_at       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS session_events (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id   TEXT NOT NULL,
    revision     INTEGER NOT NULL,
    seq          INTEGER NOT NULL,
    kind         TEXT NOT NULL,
    payload      TEXT NOT NULL,
    created_at   TEXT NOT NULL,
    acked_at     TEXT,
    compacted_at TEXT
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_session_events_triple
    ON session_events(session_id, revision, seq);
CREATE INDEX IF NOT EXISTS idx_session_events_unacked
    ON session_events(session_id, revision) WHERE acked_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_session_events_acked
    ON session_events(session_id, revision) WHERE acked_at IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_session_events_kind
    ON session_events(session_id, revision, kind);
`,
	},
	{
		Version:     2,
		Description: "discovered_sessions catalogue and archive tombstones",
		SQL: `
CREATE TABLE IF NOT EXISTS discovered_sessions (
    session_id       TEXT PRIMARY KEY,
    backend_id       TEXT NOT NULL,
    cwd              TEXT,
    title            TEXT,
    agent_updated_at TEXT,
    discovered_at    TEXT NOT NULL,
    last_verified_at TEXT NOT NULL,
    is_stale         INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_discovered_sessions_backend
    ON discovered_sessions(backend_id, discovered_at DESC);
CREATE INDEX IF NOT EXISTS idx_discovered_sessions_stale
    ON discovered_sessions(is_stale, discovered_at);

CREATE TABLE IF NOT EXISTS archived_session_ids (
    session_id  TEXT PRIMARY KEY,
    archived_at TEXT NOT NULL
);
`,
	},
	{
		Version:     3,
		Description: "compaction_log audit trail",
		SQL: `
CREATE TABLE IF NOT EXISTS compaction_log (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id      TEXT NOT NULL,
    revision        INTEGER,
    operation       TEXT NOT NULL,
    events_affected INTEGER NOT NULL DEFAULT 0,
    started_at      TEXT NOT NULL,
    completed_at    TEXT
);

CREATE INDEX IF NOT EXISTS idx_compaction_log_session
    ON compaction_log(session_id, started_at DESC);
`,
	},
}

// ensureSchemaVersionTableTx creates the version-tracking table if absent.
func ensureSchemaVersionTableTx(tx *sql.Tx) error {
	_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS schema_version (
    version    INTEGER PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`)
	return err
}

func appliedVersionsTx(tx *sql.Tx) (map[int]bool, error) {
	rows, err := tx.Query(`SELECT version FROM schema_version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func recordMigrationTx(ctx context.Context, tx *sql.Tx, version int) error {
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, version)
	return err
}

// applyMigrations brings db up to the latest schema version inside a
// single serialised transaction, recording every newly-applied
// version. It also sets the durability pragmas required by spec.md
// §4.1 (write-ahead journalling, synchronous=NORMAL) — those pragmas
// are connection-scoped in SQLite, so they're set on every Open, not
// just on first creation.
func applyMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL;`); err != nil {
		return fmt.Errorf("%w: set journal_mode: %v", ErrMigration, err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA synchronous=NORMAL;`); err != nil {
		return fmt.Errorf("%w: set synchronous: %v", ErrMigration, err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys=OFF;`); err != nil {
		// Ownership is by convention (spec.md §9 "Ownership graph"),
		// not a declared foreign key, so cascades are deliberately off.
		return fmt.Errorf("%w: set foreign_keys: %v", ErrMigration, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrMigration, err)
	}
	defer tx.Rollback()

	if err := ensureSchemaVersionTableTx(tx); err != nil {
		return fmt.Errorf("%w: schema_version table: %v", ErrMigration, err)
	}

	applied, err := appliedVersionsTx(tx)
	if err != nil {
		return fmt.Errorf("%w: read applied versions: %v", ErrMigration, err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("%w: version %d (%s): %v", ErrMigration, m.Version, m.Description, err)
		}
		if err := recordMigrationTx(ctx, tx, m.Version); err != nil {
			return fmt.Errorf("%w: record version %d: %v", ErrMigration, m.Version, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrMigration, err)
	}
	return nil
}

// latestSchemaVersion returns the highest applied migration version.
func latestSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v int
	err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&v)
	return v, err
}
