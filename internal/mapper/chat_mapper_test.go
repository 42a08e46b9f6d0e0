package mapper

import (
	"testing"
	"time"

	"ai-insights-be/internal/entity"
	"ai-insights-be/pkg/chart"
	"ai-insights-be/pkg/dataset"
	"ai-insights-be/pkg/rag/vector"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatSessionMapping_KeepsDatasetAndDeletion(t *testing.T) {
	m := NewChatMapper()
	rows := []dataset.Row{{"Revenue": 10.0, "Region": "North"}}
	deleted := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	in := &entity.ChatSession{
		Id:             uuid.New(),
		Title:          "Sales",
		Columns:        []string{"Revenue", "Region"},
		RawData:        rows,
		Summary:        dataset.Summarize(rows, []string{"Revenue", "Region"}),
		CurrentVersion: 3,
		DeletedAt:      &deleted,
	}

	out := m.ChatSessionToEntity(m.ChatSessionToModel(in))

	assert.Equal(t, in.RawData, out.RawData)
	assert.Equal(t, in.Columns, out.Columns)
	assert.Equal(t, []string{"Revenue"}, out.Summary.NumericColumns)
	assert.Equal(t, 3, out.CurrentVersion)
	assert.True(t, out.IsDeleted)
	assert.Nil(t, out.UpdatedAt)
}

func TestChatMessageToHistory(t *testing.T) {
	m := NewChatMapper()
	msg := &entity.ChatMessage{
		Role:   "assistant",
		Chat:   "Revenue peaked in April.",
		Charts: []chart.Spec{{Type: chart.TypeLine, Title: "Revenue by Month"}},
	}

	h := m.ChatMessageToHistory(msg)

	assert.True(t, h.IsAssistant())
	assert.Equal(t, "Revenue by Month", h.Charts[0].Title)
}

func TestChunkMapping_NilEmbeddingStaysNull(t *testing.T) {
	m := NewDatasetMapper()
	sessionID := uuid.New()

	stored := m.ChunkToModel(m.ChunkFromVector(sessionID, 2, vector.Chunk{ID: "col:Revenue", Type: vector.ChunkColumn, Content: "Revenue is numeric"}))
	assert.Nil(t, stored.EmbeddingValue)

	withVec := m.ChunkToModel(m.ChunkFromVector(sessionID, 0, vector.Chunk{ID: "stat:Revenue", Embedding: []float32{0.5, 0.5}}))
	require.NotNil(t, withVec.EmbeddingValue)

	back := m.ChunkToVector(m.ChunkToEntity(withVec))
	assert.Equal(t, "stat:Revenue", back.ID)
	assert.Equal(t, []float32{0.5, 0.5}, back.Embedding)
}
