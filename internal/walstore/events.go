package walstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

const defaultQueryLimit = 100

// AppendEvent allocates the next seq for (sessionID, revision), inserts
// the event with acked_at/compacted_at NULL, and returns it with its
// assigned id. payload must be valid JSON; it is stored and returned
// verbatim (the store never interprets it beyond stub detection).
//
// In non-strict mode (the default, matching spec.md §9 open question
// (a)) this succeeds even if no session row exists yet — the sequence
// generator simply starts counting from 0. In Strict mode, an unknown
// session returns ErrSessionNotFound.
func (s *Store) AppendEvent(ctx context.Context, sessionID string, revision int, kind Kind, payload []byte) (*Event, error) {
	if !json.Valid(payload) {
		return nil, sessErr("AppendEvent", sessionID, ErrPayloadEncoding)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return nil, sessErr("AppendEvent", sessionID, err)
	}

	if s.opts.Strict {
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE session_id = ?`, sessionID).Scan(&exists); err == sql.ErrNoRows {
			return nil, sessErr("AppendEvent", sessionID, ErrSessionNotFound)
		} else if err != nil {
			return nil, sessErr("AppendEvent", sessionID, fmt.Errorf("%w: %v", ErrIO, err))
		}
	}

	seq := s.seq.next(sessionID, revision)
	now := s.now()

	result, err := s.db.ExecContext(ctx, `
INSERT INTO session_events (session_id, revision, seq, kind, payload, created_at, acked_at, compacted_at)
VALUES (?, ?, ?, ?, ?, ?, NULL, NULL)`,
		sessionID, revision, seq, string(kind), string(payload), now)
	if err != nil {
		return nil, sessErr("AppendEvent", sessionID, fmt.Errorf("%w: %v", ErrConstraintViolation, err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, sessErr("AppendEvent", sessionID, fmt.Errorf("%w: %v", ErrIO, err))
	}

	return &Event{
		ID:        id,
		SessionID: sessionID,
		Revision:  revision,
		Seq:       seq,
		Kind:      kind,
		Payload:   payload,
		CreatedAt: now,
	}, nil
}

func scanEvent(rows interface {
	Scan(dest ...any) error
}) (*Event, error) {
	var e Event
	var kind, payload string
	var acked, compacted sql.NullString
	if err := rows.Scan(&e.ID, &e.SessionID, &e.Revision, &e.Seq, &kind, &payload, &e.CreatedAt, &acked, &compacted); err != nil {
		return nil, err
	}
	e.Kind = Kind(kind)
	e.Payload = []byte(payload)
	if acked.Valid {
		v := acked.String
		e.AckedAt = &v
	}
	if compacted.Valid {
		v := compacted.String
		e.CompactedAt = &v
	}
	return &e, nil
}

const eventColumns = `id, session_id, revision, seq, kind, payload, created_at, acked_at, compacted_at`

// QueryEvents returns events with seq > afterSeq for (sessionID,
// revision), ascending by seq, up to limit (defaultQueryLimit=100 when
// limit<=0). No events are returned for unknown sessions; stub
// payloads are returned as-is.
func (s *Store) QueryEvents(ctx context.Context, sessionID string, revision int, afterSeq int, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	if err := s.checkOpen(); err != nil {
		return nil, sessErr("QueryEvents", sessionID, err)
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT `+eventColumns+`
FROM session_events
WHERE session_id = ? AND revision = ? AND seq > ?
ORDER BY seq ASC
LIMIT ?`, sessionID, revision, afterSeq, limit)
	if err != nil {
		return nil, sessErr("QueryEvents", sessionID, fmt.Errorf("%w: %v", ErrIO, err))
	}
	defer rows.Close()

	return collectEvents(rows, sessionID)
}

// QueryEventsBySeqRange returns events with fromSeq <= seq <= toSeq,
// inclusive on both ends. Returns an empty slice (no error) when
// fromSeq > toSeq.
func (s *Store) QueryEventsBySeqRange(ctx context.Context, sessionID string, revision int, fromSeq, toSeq int) ([]*Event, error) {
	if err := s.checkOpen(); err != nil {
		return nil, sessErr("QueryEventsBySeqRange", sessionID, err)
	}
	if fromSeq > toSeq {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT `+eventColumns+`
FROM session_events
WHERE session_id = ? AND revision = ? AND seq BETWEEN ? AND ?
ORDER BY seq ASC`, sessionID, revision, fromSeq, toSeq)
	if err != nil {
		return nil, sessErr("QueryEventsBySeqRange", sessionID, fmt.Errorf("%w: %v", ErrIO, err))
	}
	defer rows.Close()

	return collectEvents(rows, sessionID)
}

// GetUnackedEvents returns every event with acked_at IS NULL for
// (sessionID, revision), ascending by seq. Unbounded: callers paginate
// externally if needed.
func (s *Store) GetUnackedEvents(ctx context.Context, sessionID string, revision int) ([]*Event, error) {
	if err := s.checkOpen(); err != nil {
		return nil, sessErr("GetUnackedEvents", sessionID, err)
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT `+eventColumns+`
FROM session_events
WHERE session_id = ? AND revision = ? AND acked_at IS NULL
ORDER BY seq ASC`, sessionID, revision)
	if err != nil {
		return nil, sessErr("GetUnackedEvents", sessionID, fmt.Errorf("%w: %v", ErrIO, err))
	}
	defer rows.Close()

	return collectEvents(rows, sessionID)
}

func collectEvents(rows *sql.Rows, sessionID string) ([]*Event, error) {
	var events []*Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, sessErr("QueryEvents", sessionID, fmt.Errorf("%w: %v", ErrIO, err))
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, sessErr("QueryEvents", sessionID, fmt.Errorf("%w: %v", ErrIO, err))
	}
	return events, nil
}

// AckEvents sets acked_at=now for every event with seq<=upToSeq and
// acked_at IS NULL in (sessionID, revision). Idempotent: re-acking
// already-acked events is a no-op. Events from other revisions are
// never affected.
func (s *Store) AckEvents(ctx context.Context, sessionID string, revision int, upToSeq int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return sessErr("AckEvents", sessionID, err)
	}

	now := s.now()
	_, err := s.db.ExecContext(ctx, `
UPDATE session_events
SET acked_at = ?
WHERE session_id = ? AND revision = ? AND seq <= ? AND acked_at IS NULL`,
		now, sessionID, revision, upToSeq)
	if err != nil {
		return sessErr("AckEvents", sessionID, fmt.Errorf("%w: %v", ErrIO, err))
	}
	return nil
}

// GetCurrentSeq returns the sequence generator's current counter for
// (sessionID, revision), 0 if nothing has been appended yet.
func (s *Store) GetCurrentSeq(sessionID string, revision int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq.current(sessionID, revision)
}

// UpdateEventPayload replaces the payload of a single event by primary
// key, leaving seq/kind/created_at/acked_at untouched and stamping
// compacted_at. A no-op if the id does not exist — callers (destructive
// consolidation) rely on this to tolerate races with concurrent
// archival. Used exclusively by internal/consolidate.
func (s *Store) UpdateEventPayload(ctx context.Context, eventID int64, newPayload []byte) error {
	if !json.Valid(newPayload) {
		return eventErr("UpdateEventPayload", eventID, ErrPayloadEncoding)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return eventErr("UpdateEventPayload", eventID, err)
	}

	if _, err := s.db.ExecContext(ctx, `UPDATE session_events SET payload = ?, compacted_at = ? WHERE id = ?`, string(newPayload), s.now(), eventID); err != nil {
		return eventErr("UpdateEventPayload", eventID, fmt.Errorf("%w: %v", ErrIO, err))
	}
	return nil
}

// StubEventPayloads replaces each referenced event's payload with the
// canonical stub marker {"_c": true}. Empty input is a no-op.
func (s *Store) StubEventPayloads(ctx context.Context, eventIDs []int64) error {
	if len(eventIDs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrIO, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE session_events SET payload = ?, compacted_at = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("%w: prepare: %v", ErrIO, err)
	}
	defer stmt.Close()

	now := s.now()
	for _, id := range eventIDs {
		if _, err := stmt.ExecContext(ctx, stubPayload, now, id); err != nil {
			return eventErr("StubEventPayloads", id, fmt.Errorf("%w: %v", ErrIO, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrIO, err)
	}
	return nil
}
