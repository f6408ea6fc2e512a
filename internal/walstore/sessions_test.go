package walstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), ":memory:", Options{})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestEnsureSession_CreatesThenUpdates(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	rev, err := store.EnsureSession(ctx, "s1", "m1", "codex", "/a", "first title")
	require.NoError(t, err)
	assert.Equal(t, 1, rev)

	sess, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "/a", sess.CWD)
	assert.Equal(t, "first title", sess.Title)

	// Empty fields mean "no change".
	rev, err = store.EnsureSession(ctx, "s1", "m1", "codex", "", "")
	require.NoError(t, err)
	assert.Equal(t, 1, rev)

	sess, err = store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "/a", sess.CWD)
	assert.Equal(t, "first title", sess.Title)

	// Non-empty fields overwrite.
	_, err = store.EnsureSession(ctx, "s1", "m1", "codex", "/b", "second title")
	require.NoError(t, err)
	sess, err = store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "/b", sess.CWD)
	assert.Equal(t, "second title", sess.Title)
}

func TestGetSession_UnknownReturnsNilNil(t *testing.T) {
	store := newTestStore(t)
	sess, err := store.GetSession(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestIncrementRevision(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.IncrementRevision(ctx, "missing")
	require.ErrorIs(t, err, ErrSessionNotFound)

	_, err = store.EnsureSession(ctx, "s1", "m1", "b1", "", "")
	require.NoError(t, err)

	_, err = store.AppendEvent(ctx, "s1", 1, KindUserMessage, []byte(`{}`))
	require.NoError(t, err)

	newRev, err := store.IncrementRevision(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, newRev)

	// Fresh revision starts seq allocation at 1 again.
	ev, err := store.AppendEvent(ctx, "s1", newRev, KindUserMessage, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, 1, ev.Seq)

	// Old revision's events remain queryable.
	old, err := store.QueryEvents(ctx, "s1", 1, 0, 0)
	require.NoError(t, err)
	assert.Len(t, old, 1)
}

func TestSessionIsolation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.EnsureSession(ctx, "s1", "m1", "b1", "", "")
	require.NoError(t, err)
	_, err = store.EnsureSession(ctx, "s2", "m1", "b1", "", "")
	require.NoError(t, err)

	_, err = store.AppendEvent(ctx, "s1", 1, KindUserMessage, []byte(`{}`))
	require.NoError(t, err)
	_, err = store.AppendEvent(ctx, "s1", 1, KindUserMessage, []byte(`{}`))
	require.NoError(t, err)
	_, err = store.AppendEvent(ctx, "s2", 1, KindUserMessage, []byte(`{}`))
	require.NoError(t, err)

	s1Events, err := store.QueryEvents(ctx, "s1", 1, 0, 0)
	require.NoError(t, err)
	assert.Len(t, s1Events, 2)

	s2Events, err := store.QueryEvents(ctx, "s2", 1, 0, 0)
	require.NoError(t, err)
	assert.Len(t, s2Events, 1)
}
