package walstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Logger is the minimal structured-logging seam the store writes
// through. internal/walog.Logger satisfies it; tests can pass a no-op.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debugf(string, ...any) {}
func (noopLogger) Infof(string, ...any)  {}
func (noopLogger) Warnf(string, ...any)  {}

// Options configures Open.
type Options struct {
	// Strict, when true, makes AppendEvent fail with ErrSessionNotFound
	// if no session row exists yet (spec.md §9 open question (a)).
	// Default false, matching the source behaviour.
	Strict bool

	// BusyTimeout sets SQLite's busy_timeout pragma, bounding how long a
	// writer waits for the database lock before failing with IoError.
	BusyTimeout time.Duration

	// Logger receives structured progress messages. Defaults to a
	// no-op logger.
	Logger Logger

	// Clock overrides time.Now, for deterministic tests.
	Clock func() time.Time
}

func (o Options) withDefaults() Options {
	if o.BusyTimeout <= 0 {
		o.BusyTimeout = 5 * time.Second
	}
	if o.Logger == nil {
		o.Logger = noopLogger{}
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

// Store is the WAL store: the sole owner of the database handle and
// the in-memory sequence generator. All public mutation methods take
// mu; queries and read-side consolidation do not.
type Store struct {
	mu sync.Mutex

	db      *sql.DB
	dbPath  string
	absPath string // empty for :memory:, used as the process-open key
	opts    Options
	seq     *sequenceGenerator
	closed  atomic.Bool
}

// Open opens (creating if necessary) a WAL database at path, applies
// pending migrations, and rehydrates the sequence generator for every
// session/revision already present. Opening the same path twice in
// this process returns ErrAlreadyOpen.
func Open(ctx context.Context, path string, opts Options) (*Store, error) {
	opts = opts.withDefaults()

	var absPath string
	if path != ":memory:" && path != "" {
		abs, err := registerOpenPath(path)
		if err != nil {
			return nil, err
		}
		absPath = abs
	}

	if err := ensureParentDir(path); err != nil {
		if absPath != "" {
			unregisterOpenPath(absPath)
		}
		return nil, fmt.Errorf("%w: create database directory: %v", ErrIO, err)
	}

	dsn := path
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		if absPath != "" {
			unregisterOpenPath(absPath)
		}
		return nil, fmt.Errorf("%w: open sqlite: %v", ErrIO, err)
	}
	db.SetMaxOpenConns(1) // single writer; see spec.md §5 concurrency model

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d;", opts.BusyTimeout.Milliseconds())); err != nil {
		db.Close()
		if absPath != "" {
			unregisterOpenPath(absPath)
		}
		return nil, fmt.Errorf("%w: set busy_timeout: %v", ErrIO, err)
	}

	guard := newMigrationGuard(path)
	if err := guard.withLock(ctx, func(db *sql.DB) error { return applyMigrations(ctx, db) }, db); err != nil {
		db.Close()
		if absPath != "" {
			unregisterOpenPath(absPath)
		}
		return nil, err
	}

	s := &Store{
		db:      db,
		dbPath:  path,
		absPath: absPath,
		opts:    opts,
		seq:     newSequenceGenerator(),
	}

	if err := s.rehydrateSequences(ctx); err != nil {
		db.Close()
		if absPath != "" {
			unregisterOpenPath(absPath)
		}
		return nil, err
	}

	v, _ := latestSchemaVersion(ctx, db)
	opts.Logger.Infof("walstore: opened %s at schema version %d", path, v)

	return s, nil
}

// rehydrateSequences seeds the generator from persisted max(seq) for
// every (session, revision) pair that has at least one event, per
// spec.md §4.2 ("recovered on open by calling max(seq) per (session,
// current_revision)"); every revision is seeded, not just the current
// one, since append_event accepts an explicit revision argument and a
// host may legitimately append to a past revision's log.
func (s *Store) rehydrateSequences(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `
SELECT session_id, revision, MAX(seq)
FROM session_events
GROUP BY session_id, revision`)
	if err != nil {
		return fmt.Errorf("%w: rehydrate sequences: %v", ErrIO, err)
	}
	defer rows.Close()

	for rows.Next() {
		var sessionID string
		var revision, maxSeq int
		if err := rows.Scan(&sessionID, &revision, &maxSeq); err != nil {
			return fmt.Errorf("%w: scan sequence row: %v", ErrIO, err)
		}
		s.seq.initialize(sessionID, revision, maxSeq)
	}
	return rows.Err()
}

// Close releases the database handle. Every subsequent call on this
// Store returns ErrStoreClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return nil
	}
	s.closed.Store(true)
	if s.absPath != "" {
		unregisterOpenPath(s.absPath)
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("%w: close: %v", ErrIO, err)
	}
	return nil
}

func (s *Store) checkOpen() error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	return nil
}

func (s *Store) now() string {
	return nowString(s.opts.Clock)
}
