package service

import (
	"context"
	"testing"

	"ai-insights-be/pkg/rag/vector"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkStore_SaveReplacesAndLoadKeepsOrder(t *testing.T) {
	db := newMemDB()
	s := NewChunkStore(memFactory{db})
	ctx := context.Background()
	id := uuid.NewString()

	require.NoError(t, s.Save(ctx, id, []vector.Chunk{{ID: "old", Type: vector.ChunkColumn, Content: "stale"}}))
	require.NoError(t, s.Save(ctx, id, []vector.Chunk{
		{ID: "col:Revenue", Type: vector.ChunkColumn, Content: "Revenue is numeric", Embedding: []float32{0.1, 0.2}},
		{ID: "stats:Revenue", Type: vector.ChunkStatistical, Content: "Revenue mean 135"},
	}))

	loaded, err := s.Load(ctx, id)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "col:Revenue", loaded[0].ID)
	assert.Equal(t, []float32{0.1, 0.2}, loaded[0].Embedding)
	assert.Equal(t, vector.ChunkStatistical, loaded[1].Type)
	assert.Nil(t, loaded[1].Embedding)

	require.NoError(t, s.Delete(ctx, id))
	loaded, err = s.Load(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, loaded)

	_, err = s.Load(ctx, "bad id")
	assert.Error(t, err)
}
