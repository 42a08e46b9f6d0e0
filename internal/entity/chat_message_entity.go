package entity

import (
	"time"

	"ai-insights-be/pkg/chart"

	"github.com/google/uuid"
)

type ChatMessage struct {
	Id              uuid.UUID
	ChatSessionId   uuid.UUID
	Role            string
	Chat            string
	Charts          []chart.Spec
	Insights        []chart.Insight
	Intent          string
	Degraded        bool
	DegradedReasons []string
	CreatedAt       time.Time
	UpdatedAt       *time.Time
	DeletedAt       *time.Time
	IsDeleted       bool
}
