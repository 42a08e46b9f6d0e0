package entity

import (
	"time"

	"ai-insights-be/pkg/dataset"

	"github.com/google/uuid"
)

// ChatSession owns one uploaded dataset and its conversation.
type ChatSession struct {
	Id             uuid.UUID
	Title          string
	Columns        []string
	RawData        []dataset.Row
	Summary        dataset.Summary
	CurrentVersion int
	CreatedAt      time.Time
	UpdatedAt      *time.Time
	DeletedAt      *time.Time
	IsDeleted      bool
}
