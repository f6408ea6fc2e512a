package walstore

import (
	"context"
	"database/sql"
	"fmt"
)

// EnsureSession creates the session if absent (current_revision=1,
// sequence seeded at 0) or, if present, refreshes cwd/title (only
// where the new value is non-empty — empty means "no change"),
// touches updated_at, and reseeds the sequence generator from
// persisted state. Idempotent under repeated identical calls. Returns
// the session's current revision.
func (s *Store) EnsureSession(ctx context.Context, sessionID, machineID, backendID, cwd, title string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return 0, sessErr("EnsureSession", sessionID, err)
	}

	now := s.now()

	var existingRevision int
	err := s.db.QueryRowContext(ctx, `SELECT current_revision FROM sessions WHERE session_id = ?`, sessionID).Scan(&existingRevision)
	switch {
	case err == sql.ErrNoRows:
		_, err := s.db.ExecContext(ctx, `
INSERT INTO sessions (session_id, machine_id, backend_id, current_revision, cwd, title, created_at, updated_at)
VALUES (?, ?, ?, 1, ?, ?, ?, ?)`,
			sessionID, machineID, backendID, nullableString(cwd), nullableString(title), now, now)
		if err != nil {
			return 0, sessErr("EnsureSession", sessionID, fmt.Errorf("%w: %v", ErrConstraintViolation, err))
		}
		s.seq.initialize(sessionID, 1, 0)
		return 1, nil

	case err != nil:
		return 0, sessErr("EnsureSession", sessionID, fmt.Errorf("%w: %v", ErrIO, err))

	default:
		if _, err := s.db.ExecContext(ctx, `
UPDATE sessions
SET cwd = CASE WHEN ? <> '' THEN ? ELSE cwd END,
    title = CASE WHEN ? <> '' THEN ? ELSE title END,
    updated_at = ?
WHERE session_id = ?`,
			cwd, cwd, title, title, now, sessionID); err != nil {
			return 0, sessErr("EnsureSession", sessionID, fmt.Errorf("%w: %v", ErrIO, err))
		}

		var maxSeq int
		if err := s.db.QueryRowContext(ctx, `
SELECT COALESCE(MAX(seq), 0) FROM session_events WHERE session_id = ? AND revision = ?`,
			sessionID, existingRevision).Scan(&maxSeq); err != nil {
			return 0, sessErr("EnsureSession", sessionID, fmt.Errorf("%w: %v", ErrIO, err))
		}
		s.seq.initialize(sessionID, existingRevision, maxSeq)
		return existingRevision, nil
	}
}

// GetSession returns the current session record, or (nil, nil) if no
// such session exists.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return nil, sessErr("GetSession", sessionID, err)
	}

	var sess Session
	var cwd, title, agentUpdatedAt sql.NullString
	err := s.db.QueryRowContext(ctx, `
SELECT session_id, machine_id, backend_id, current_revision, cwd, title, agent_updated_at, created_at, updated_at
FROM sessions WHERE session_id = ?`, sessionID).Scan(
		&sess.SessionID, &sess.MachineID, &sess.BackendID, &sess.CurrentRevision,
		&cwd, &title, &agentUpdatedAt, &sess.CreatedAt, &sess.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, sessErr("GetSession", sessionID, fmt.Errorf("%w: %v", ErrIO, err))
	}
	sess.CWD = cwd.String
	sess.Title = title.String
	sess.AgentUpdatedAt = agentUpdatedAt.String
	return &sess, nil
}

// IncrementRevision bumps current_revision by one, refreshes
// updated_at, and resets the sequence generator so the new revision's
// next AppendEvent returns seq=1. Old-revision events are left
// untouched and remain queryable. Returns the new revision.
func (s *Store) IncrementRevision(ctx context.Context, sessionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return 0, sessErr("IncrementRevision", sessionID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, sessErr("IncrementRevision", sessionID, fmt.Errorf("%w: %v", ErrIO, err))
	}
	defer tx.Rollback()

	var current int
	err = tx.QueryRowContext(ctx, `SELECT current_revision FROM sessions WHERE session_id = ?`, sessionID).Scan(&current)
	if err == sql.ErrNoRows {
		return 0, sessErr("IncrementRevision", sessionID, ErrSessionNotFound)
	}
	if err != nil {
		return 0, sessErr("IncrementRevision", sessionID, fmt.Errorf("%w: %v", ErrIO, err))
	}

	newRevision := current + 1
	now := s.now()
	if _, err := tx.ExecContext(ctx, `
UPDATE sessions SET current_revision = ?, updated_at = ? WHERE session_id = ?`,
		newRevision, now, sessionID); err != nil {
		return 0, sessErr("IncrementRevision", sessionID, fmt.Errorf("%w: %v", ErrIO, err))
	}

	if err := tx.Commit(); err != nil {
		return 0, sessErr("IncrementRevision", sessionID, fmt.Errorf("%w: %v", ErrIO, err))
	}

	s.seq.reset(sessionID, newRevision)
	return newRevision, nil
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}
