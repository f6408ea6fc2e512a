package walstore

import (
	"context"
	"fmt"
)

// StoreStats aggregates counts used by the CLI's stats command and by
// host health checks. Cheap to compute: five scalar queries, no full
// table scans beyond COUNT(*).
type StoreStats struct {
	Sessions       int
	Events         int
	UnackedEvents  int
	ArchivedCount  int
	CompactionRuns int
}

// Stats returns aggregate counts across the whole database. Like the
// event query methods, it does not take the write lock: it only
// reads, and a snapshot that is briefly stale under concurrent writes
// is acceptable for a health check.
func (s *Store) Stats(ctx context.Context) (StoreStats, error) {
	if err := s.checkOpen(); err != nil {
		return StoreStats{}, err
	}

	var st StoreStats
	queries := []struct {
		dst *int
		sql string
	}{
		{&st.Sessions, `SELECT COUNT(*) FROM sessions`},
		{&st.Events, `SELECT COUNT(*) FROM session_events`},
		{&st.UnackedEvents, `SELECT COUNT(*) FROM session_events WHERE acked_at IS NULL`},
		{&st.ArchivedCount, `SELECT COUNT(*) FROM archived_session_ids`},
		{&st.CompactionRuns, `SELECT COUNT(*) FROM compaction_log`},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.sql).Scan(q.dst); err != nil {
			return StoreStats{}, fmt.Errorf("%w: stats: %v", ErrIO, err)
		}
	}
	return st, nil
}
