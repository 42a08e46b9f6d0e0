package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// DatasetChunk has no fixed vector dimension because the embedding model is
// configurable. A chunk whose embedding failed stores NULL.
type DatasetChunk struct {
	Id             uuid.UUID         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ChatSessionId  uuid.UUID         `gorm:"type:uuid;not null;index"`
	ChunkKey       string            `gorm:"type:text;not null"`
	ChunkType      string            `gorm:"type:varchar(32);not null"`
	Content        string            `gorm:"type:text;not null"`
	Metadata       datatypes.JSONMap `gorm:"type:jsonb"`
	EmbeddingValue *pgvector.Vector  `gorm:"type:vector"`
	ChunkIndex     int               `gorm:"default:0"`
	CreatedAt      time.Time         `gorm:"autoCreateTime"`
}

func (DatasetChunk) TableName() string {
	return "dataset_chunks"
}
