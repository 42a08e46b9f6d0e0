package mapper

import (
	"ai-insights-be/internal/entity"
	"ai-insights-be/internal/model"
	"ai-insights-be/pkg/rag/vector"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type DatasetMapper struct{}

func NewDatasetMapper() *DatasetMapper {
	return &DatasetMapper{}
}

// Version Mappers

func (m *DatasetMapper) VersionToEntity(v *model.DatasetVersion) *entity.DatasetVersion {
	if v == nil {
		return nil
	}
	return &entity.DatasetVersion{
		Id:            v.Id,
		ChatSessionId: v.ChatSessionId,
		Version:       v.Version,
		RowCount:      v.RowCount,
		BlobRef:       v.BlobRef,
		Operation:     v.Operation,
		CreatedAt:     v.CreatedAt,
	}
}

func (m *DatasetMapper) VersionToModel(v *entity.DatasetVersion) *model.DatasetVersion {
	if v == nil {
		return nil
	}
	return &model.DatasetVersion{
		Id:            v.Id,
		ChatSessionId: v.ChatSessionId,
		Version:       v.Version,
		RowCount:      v.RowCount,
		BlobRef:       v.BlobRef,
		Operation:     v.Operation,
		CreatedAt:     v.CreatedAt,
	}
}

// Chunk Mappers

func (m *DatasetMapper) ChunkToEntity(c *model.DatasetChunk) *entity.DatasetChunk {
	if c == nil {
		return nil
	}
	var values []float32
	if c.EmbeddingValue != nil {
		values = c.EmbeddingValue.Slice()
	}
	return &entity.DatasetChunk{
		Id:            c.Id,
		ChatSessionId: c.ChatSessionId,
		ChunkKey:      c.ChunkKey,
		ChunkType:     c.ChunkType,
		Content:       c.Content,
		Metadata:      map[string]interface{}(c.Metadata),
		Embedding:     values,
		ChunkIndex:    c.ChunkIndex,
		CreatedAt:     c.CreatedAt,
	}
}

func (m *DatasetMapper) ChunkToModel(c *entity.DatasetChunk) *model.DatasetChunk {
	if c == nil {
		return nil
	}
	var vec *pgvector.Vector
	if len(c.Embedding) > 0 {
		v := pgvector.NewVector(c.Embedding)
		vec = &v
	}
	return &model.DatasetChunk{
		Id:             c.Id,
		ChatSessionId:  c.ChatSessionId,
		ChunkKey:       c.ChunkKey,
		ChunkType:      c.ChunkType,
		Content:        c.Content,
		Metadata:       datatypes.JSONMap(c.Metadata),
		EmbeddingValue: vec,
		ChunkIndex:     c.ChunkIndex,
		CreatedAt:      c.CreatedAt,
	}
}

// ChunkFromVector prepares a retrieval chunk for storage.
func (m *DatasetMapper) ChunkFromVector(sessionID uuid.UUID, index int, c vector.Chunk) *entity.DatasetChunk {
	return &entity.DatasetChunk{
		Id:            uuid.New(),
		ChatSessionId: sessionID,
		ChunkKey:      c.ID,
		ChunkType:     string(c.Type),
		Content:       c.Content,
		Metadata:      c.Metadata,
		Embedding:     c.Embedding,
		ChunkIndex:    index,
	}
}

func (m *DatasetMapper) ChunkToVector(c *entity.DatasetChunk) vector.Chunk {
	return vector.Chunk{
		ID:        c.ChunkKey,
		Type:      vector.ChunkType(c.ChunkType),
		Content:   c.Content,
		Metadata:  c.Metadata,
		Embedding: c.Embedding,
	}
}
