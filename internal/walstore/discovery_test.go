package walstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndGetDiscoveredSessions(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.SaveDiscoveredSessions(ctx, []DiscoveredSession{
		{SessionID: "s1", BackendID: "codex", CWD: "/a", Title: "first"},
		{SessionID: "s2", BackendID: "claude", CWD: "/b", Title: "second"},
	}))

	all, err := store.GetDiscoveredSessions(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	codexOnly, err := store.GetDiscoveredSessions(ctx, "codex")
	require.NoError(t, err)
	require.Len(t, codexOnly, 1)
	assert.Equal(t, "s1", codexOnly[0].SessionID)
}

func TestSaveDiscoveredSessions_UpsertClearsStale(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.SaveDiscoveredSessions(ctx, []DiscoveredSession{{SessionID: "s1", BackendID: "codex"}}))
	require.NoError(t, store.MarkDiscoveredSessionStale(ctx, "s1"))

	stale, err := store.GetDiscoveredSessions(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, stale)

	// Re-saving clears the stale flag.
	require.NoError(t, store.SaveDiscoveredSessions(ctx, []DiscoveredSession{{SessionID: "s1", BackendID: "codex", Title: "refreshed"}}))
	fresh, err := store.GetDiscoveredSessions(ctx, "")
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, "refreshed", fresh[0].Title)
}

func TestGetDiscoveredSessions_ExcludesArchived(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.SaveDiscoveredSessions(ctx, []DiscoveredSession{{SessionID: "s1", BackendID: "codex"}}))
	require.NoError(t, store.ArchiveSession(ctx, "s1"))

	sessions, err := store.GetDiscoveredSessions(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestDeleteStaleDiscoveredSessions(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.SaveDiscoveredSessions(ctx, []DiscoveredSession{
		{SessionID: "s1", BackendID: "codex"},
		{SessionID: "s2", BackendID: "codex"},
	}))
	require.NoError(t, store.MarkDiscoveredSessionStale(ctx, "s1"))

	n, err := store.DeleteStaleDiscoveredSessions(ctx, "9999-01-01T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	all, err := store.GetDiscoveredSessions(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "s2", all[0].SessionID)
}
