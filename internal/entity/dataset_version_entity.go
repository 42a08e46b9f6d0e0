package entity

import (
	"time"

	"github.com/google/uuid"
)

// DatasetVersion records one immutable snapshot of a session's dataset.
type DatasetVersion struct {
	Id            uuid.UUID
	ChatSessionId uuid.UUID
	Version       int
	RowCount      int
	BlobRef       string
	Operation     string
	CreatedAt     time.Time
}
