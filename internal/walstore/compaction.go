package walstore

import (
	"context"
	"database/sql"
	"fmt"
)

// recordCompaction writes one audit-trail row. Called by
// internal/consolidate after a destructive merge and by
// ArchiveSession/BulkArchiveSessions. Informational only — no
// invariant in spec.md depends on this table. A failed insert is
// returned wrapped in ErrIO, and every caller in this repository
// returns that error to its own caller.
func (s *Store) recordCompaction(ctx context.Context, sessionID string, revision *int, operation string, eventsAffected int) error {
	now := s.now()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO compaction_log (session_id, revision, operation, events_affected, started_at, completed_at)
VALUES (?, ?, ?, ?, ?, ?)`, sessionID, revision, operation, eventsAffected, now, now)
	if err != nil {
		return fmt.Errorf("%w: record compaction: %v", ErrIO, err)
	}
	return nil
}

func recordCompactionTx(ctx context.Context, tx *sql.Tx, now, sessionID string, operation string, eventsAffected int) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO compaction_log (session_id, revision, operation, events_affected, started_at, completed_at)
VALUES (?, NULL, ?, ?, ?, ?)`, sessionID, operation, eventsAffected, now, now)
	if err != nil {
		return fmt.Errorf("%w: record compaction: %v", ErrIO, err)
	}
	return nil
}

// RecordCompaction is the exported form used by internal/consolidate,
// which runs in a separate package and does not have access to the
// store's internal lock; it takes the lock itself.
func (s *Store) RecordCompaction(ctx context.Context, sessionID string, revision *int, operation string, eventsAffected int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.recordCompaction(ctx, sessionID, revision, operation, eventsAffected)
}

// QueryCompactionLog returns the most recent compaction_log rows for a
// session, newest first, up to limit (defaultQueryLimit when limit<=0).
func (s *Store) QueryCompactionLog(ctx context.Context, sessionID string, limit int) ([]CompactionLogEntry, error) {
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, session_id, revision, operation, events_affected, started_at, completed_at
FROM compaction_log
WHERE session_id = ?
ORDER BY started_at DESC
LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer rows.Close()

	var out []CompactionLogEntry
	for rows.Next() {
		var e CompactionLogEntry
		var revision sql.NullInt64
		var completedAt sql.NullString
		if err := rows.Scan(&e.ID, &e.SessionID, &revision, &e.Operation, &e.EventsAffected, &e.StartedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIO, err)
		}
		if revision.Valid {
			v := int(revision.Int64)
			e.Revision = &v
		}
		if completedAt.Valid {
			v := completedAt.String
			e.CompletedAt = &v
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
