package walstore

import (
	"context"
	"database/sql"
	"fmt"
)

// SaveDiscoveredSessions upserts each entry, setting last_verified_at
// to now and clearing is_stale.
func (s *Store) SaveDiscoveredSessions(ctx context.Context, sessions []DiscoveredSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	if len(sessions) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrIO, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO discovered_sessions (session_id, backend_id, cwd, title, agent_updated_at, discovered_at, last_verified_at, is_stale)
VALUES (?, ?, ?, ?, ?, ?, ?, 0)
ON CONFLICT(session_id) DO UPDATE SET
    backend_id       = excluded.backend_id,
    cwd              = excluded.cwd,
    title            = excluded.title,
    agent_updated_at = excluded.agent_updated_at,
    last_verified_at = excluded.last_verified_at,
    is_stale         = 0`)
	if err != nil {
		return fmt.Errorf("%w: prepare: %v", ErrIO, err)
	}
	defer stmt.Close()

	now := s.now()
	for _, d := range sessions {
		discoveredAt := d.DiscoveredAt
		if discoveredAt == "" {
			discoveredAt = now
		}
		if _, err := stmt.ExecContext(ctx, d.SessionID, d.BackendID, nullableString(d.CWD), nullableString(d.Title), nullableString(d.AgentUpdatedAt), discoveredAt, now); err != nil {
			return sessErr("SaveDiscoveredSessions", d.SessionID, fmt.Errorf("%w: %v", ErrIO, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrIO, err)
	}
	return nil
}

// GetDiscoveredSessions returns non-stale rows ordered by
// discovered_at descending, excluding any session id that appears in
// archived_session_ids. backendID filters to that backend when
// non-empty.
func (s *Store) GetDiscoveredSessions(ctx context.Context, backendID string) ([]DiscoveredSession, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	query := `
SELECT d.session_id, d.backend_id, d.cwd, d.title, d.agent_updated_at, d.discovered_at, d.last_verified_at, d.is_stale
FROM discovered_sessions d
WHERE d.is_stale = 0
  AND NOT EXISTS (SELECT 1 FROM archived_session_ids a WHERE a.session_id = d.session_id)`
	args := []any{}
	if backendID != "" {
		query += ` AND d.backend_id = ?`
		args = append(args, backendID)
	}
	query += ` ORDER BY d.discovered_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer rows.Close()

	var out []DiscoveredSession
	for rows.Next() {
		var d DiscoveredSession
		var cwd, title, agentUpdatedAt sql.NullString
		var stale int
		if err := rows.Scan(&d.SessionID, &d.BackendID, &cwd, &title, &agentUpdatedAt, &d.DiscoveredAt, &d.LastVerifiedAt, &stale); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIO, err)
		}
		d.CWD = cwd.String
		d.Title = title.String
		d.AgentUpdatedAt = agentUpdatedAt.String
		d.IsStale = stale != 0
		out = append(out, d)
	}
	return out, rows.Err()
}

// MarkDiscoveredSessionStale sets is_stale=1 for sessionID.
func (s *Store) MarkDiscoveredSessionStale(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return sessErr("MarkDiscoveredSessionStale", sessionID, err)
	}

	if _, err := s.db.ExecContext(ctx, `UPDATE discovered_sessions SET is_stale = 1 WHERE session_id = ?`, sessionID); err != nil {
		return sessErr("MarkDiscoveredSessionStale", sessionID, fmt.Errorf("%w: %v", ErrIO, err))
	}
	return nil
}

// DeleteStaleDiscoveredSessions removes stale rows discovered before
// olderThan (an ISO-8601 string), returning the count deleted. The
// comparison is on strings: for the UTC RFC3339Nano timestamps this
// store writes, that follows time order across different seconds, but
// within one second a value whose trailing fractional zeros were
// trimmed can compare out of order.
func (s *Store) DeleteStaleDiscoveredSessions(ctx context.Context, olderThan string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx, `
DELETE FROM discovered_sessions WHERE is_stale = 1 AND discovered_at < ?`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrIO, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return int(n), nil
}
