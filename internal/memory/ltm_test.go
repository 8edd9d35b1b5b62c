package memory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ltm.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_StoreAndRecent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Store(ctx, "alice", "likes cats"))
	require.NoError(t, s.Store(ctx, "alice", "lives in Recife"))
	require.NoError(t, s.Store(ctx, "bob", "prefers audio replies"))
	require.NoError(t, s.Store(ctx, "alice", "   "), "blank text is a no-op")

	got, err := s.Recent(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "lives in Recife", got[0].Content)
	assert.Equal(t, "likes cats", got[1].Content)
	assert.False(t, got[0].CreatedAt.IsZero())

	got, err = s.Recent(ctx, "alice", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSQLiteStore_Clear(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Store(ctx, "alice", "one"))
	require.NoError(t, s.Store(ctx, "alice", "two"))

	n, err := s.Clear(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := s.Recent(ctx, "alice", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ltm.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Store(context.Background(), "alice", "persisted"))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Recent(context.Background(), "alice", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "persisted", got[0].Content)
}
