package walstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStats(t *testing.T) {
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
	require.NoError(t, store.AckEvents(ctx, "s1", 1, 1))

	require.NoError(t, store.ArchiveSession(ctx, "s2"))

	st, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Sessions) // s2 was deleted by archival
	assert.Equal(t, 2, st.Events)
	assert.Equal(t, 1, st.UnackedEvents)
	assert.Equal(t, 1, st.ArchivedCount)
	assert.Equal(t, 1, st.CompactionRuns)
}

func TestStats_ClosedStoreErrors(t *testing.T) {
	store, err := Open(context.Background(), ":memory:", Options{})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = store.Stats(context.Background())
	require.ErrorIs(t, err, ErrStoreClosed)
}
