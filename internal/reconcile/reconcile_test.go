package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open("file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestRecordAndPending(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.Record(ctx, "track-a", SideFingerprint, "olaf_c store: exit status 1"))
	require.NoError(t, j.Record(ctx, "track-b", SideEmbedding, "embedding service: connection refused"))

	pending, err := j.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "track-a", pending[0].TrackID)
	assert.Equal(t, SideFingerprint, pending[0].Side)
	assert.False(t, pending[0].Resolved)
}

func TestResolveRemovesFromPending(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.Record(ctx, "track-a", SideFingerprint, "failure"))
	pending, err := j.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, j.Resolve(ctx, pending[0].ID))

	pending, err = j.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
