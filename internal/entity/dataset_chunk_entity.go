package entity

import (
	"time"

	"github.com/google/uuid"
)

// DatasetChunk is one embedded retrieval chunk of a session's dataset.
type DatasetChunk struct {
	Id            uuid.UUID
	ChatSessionId uuid.UUID
	ChunkKey      string
	ChunkType     string
	Content       string
	Metadata      map[string]interface{}
	Embedding     []float32
	ChunkIndex    int
	CreatedAt     time.Time
}
