package walstore

import (
	"context"
	"database/sql"
	"fmt"
)

// ArchiveSession deletes every event for sessionID (any revision),
// deletes the session row, and inserts (or leaves in place) an
// archived_session_ids tombstone. Idempotent: archiving a non-existent
// or already-archived session still succeeds and the tombstone remains.
func (s *Store) ArchiveSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return sessErr("ArchiveSession", sessionID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return sessErr("ArchiveSession", sessionID, fmt.Errorf("%w: %v", ErrIO, err))
	}
	defer tx.Rollback()

	now := s.now()
	affected, err := countEventsTx(ctx, tx, sessionID)
	if err != nil {
		return sessErr("ArchiveSession", sessionID, err)
	}
	if err := archiveSessionTx(ctx, tx, sessionID, now); err != nil {
		return sessErr("ArchiveSession", sessionID, err)
	}
	if err := recordCompactionTx(ctx, tx, now, sessionID, "archive_session", affected); err != nil {
		return sessErr("ArchiveSession", sessionID, err)
	}

	if err := tx.Commit(); err != nil {
		return sessErr("ArchiveSession", sessionID, fmt.Errorf("%w: %v", ErrIO, err))
	}
	return nil
}

func countEventsTx(ctx context.Context, tx *sql.Tx, sessionID string) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM session_events WHERE session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: count events: %v", ErrIO, err)
	}
	return n, nil
}

func archiveSessionTx(ctx context.Context, tx *sql.Tx, sessionID, now string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM session_events WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("%w: delete events: %v", ErrIO, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("%w: delete session: %v", ErrIO, err)
	}
	if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO archived_session_ids (session_id, archived_at) VALUES (?, ?)`, sessionID, now); err != nil {
		return fmt.Errorf("%w: insert tombstone: %v", ErrIO, err)
	}
	return nil
}

// BulkArchiveSessions archives every id in a single transaction,
// writing one compaction_log row per id, and returns how many
// tombstones were newly created (already-archived ids still succeed
// but don't count toward the total).
func (s *Store) BulkArchiveSessions(ctx context.Context, sessionIDs []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	if len(sessionIDs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin: %v", ErrIO, err)
	}
	defer tx.Rollback()

	now := s.now()
	newCount := 0
	for _, id := range sessionIDs {
		var alreadyArchived int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM archived_session_ids WHERE session_id = ?`, id).Scan(&alreadyArchived); err != nil && err != sql.ErrNoRows {
			return 0, sessErr("BulkArchiveSessions", id, fmt.Errorf("%w: %v", ErrIO, err))
		}

		affected, err := countEventsTx(ctx, tx, id)
		if err != nil {
			return 0, sessErr("BulkArchiveSessions", id, err)
		}
		if err := archiveSessionTx(ctx, tx, id, now); err != nil {
			return 0, sessErr("BulkArchiveSessions", id, err)
		}
		if err := recordCompactionTx(ctx, tx, now, id, "bulk_archive_sessions", affected); err != nil {
			return 0, sessErr("BulkArchiveSessions", id, err)
		}

		if alreadyArchived == 0 {
			newCount++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit: %v", ErrIO, err)
	}
	return newCount, nil
}

// IsArchived reports whether a tombstone exists for sessionID.
func (s *Store) IsArchived(ctx context.Context, sessionID string) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	var x int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM archived_session_ids WHERE session_id = ?`, sessionID).Scan(&x)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, sessErr("IsArchived", sessionID, fmt.Errorf("%w: %v", ErrIO, err))
	}
	return true, nil
}

// GetArchivedSessionIDs returns the unordered set of every archived
// session id.
func (s *Store) GetArchivedSessionIDs(ctx context.Context) ([]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT session_id FROM archived_session_ids`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIO, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
