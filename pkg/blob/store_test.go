package blob

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"ai-insights-be/pkg/dataset"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_WriteAndRead(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)
	ctx := context.Background()

	ref, err := s.Write(ctx, Snapshot{
		SessionID: "abc-123",
		Version:   2,
		Operation: "remove_nulls",
		Columns:   []string{"Revenue"},
		Rows:      []dataset.Row{{"Revenue": 10.0}, {"Revenue": 12.5}},
	})
	require.NoError(t, err)
	assert.Equal(t, "abc-123/v2.json", ref)
	assert.FileExists(t, filepath.Join(dir, "abc-123", "v2.json"))

	snap, err := s.Read(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Version)
	assert.Equal(t, []dataset.Row{{"Revenue": 10.0}, {"Revenue": 12.5}}, snap.Rows)
	assert.False(t, snap.CreatedAt.IsZero())
}

func TestFileStore_VersionsAreImmutable(t *testing.T) {
	s := NewFileStore(t.TempDir())
	ctx := context.Background()

	_, err := s.Write(ctx, Snapshot{SessionID: "s1", Version: 1})
	require.NoError(t, err)
	_, err = s.Write(ctx, Snapshot{SessionID: "s1", Version: 1})
	assert.ErrorIs(t, err, os.ErrExist)
}

func TestFileStore_RejectsUnsafePaths(t *testing.T) {
	s := NewFileStore(t.TempDir())
	ctx := context.Background()

	_, err := s.Write(ctx, Snapshot{SessionID: "../etc", Version: 1})
	assert.Error(t, err)

	_, err = s.Read(ctx, "../../etc/passwd")
	assert.Error(t, err)

	_, err = s.Read(ctx, "s1/v9.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_DeleteSession(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)
	ctx := context.Background()

	_, err := s.Write(ctx, Snapshot{SessionID: "s1", Version: 1})
	require.NoError(t, err)
	require.NoError(t, s.DeleteSession(ctx, "s1"))
	assert.NoDirExists(t, filepath.Join(dir, "s1"))
}

func TestFileStore_RemoveFreesVersion(t *testing.T) {
	s := NewFileStore(t.TempDir())
	ctx := context.Background()

	ref, err := s.Write(ctx, Snapshot{SessionID: "s1", Version: 3})
	require.NoError(t, err)
	require.NoError(t, s.Remove(ctx, ref))
	require.NoError(t, s.Remove(ctx, ref))

	_, err = s.Write(ctx, Snapshot{SessionID: "s1", Version: 3})
	assert.NoError(t, err)
}
