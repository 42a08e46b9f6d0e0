package dto

import (
	"time"

	"ai-insights-be/pkg/ai/intent"
	"ai-insights-be/pkg/chart"
	"ai-insights-be/pkg/dataset"

	"github.com/google/uuid"
)

type CreateSessionRequest struct {
	Title   string        `json:"title" validate:"max=200"`
	Columns []string      `json:"columns,omitempty"`
	Rows    []dataset.Row `json:"rows" validate:"required,min=1"`
}

type CreateSessionResponse struct {
	Id      uuid.UUID       `json:"id"`
	Title   string          `json:"title"`
	Summary dataset.Summary `json:"summary"`
}

type GetSessionResponse struct {
	Id             uuid.UUID       `json:"id"`
	Title          string          `json:"title"`
	Columns        []string        `json:"columns"`
	RowCount       int             `json:"row_count"`
	Summary        dataset.Summary `json:"summary"`
	CurrentVersion int             `json:"current_version"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      *time.Time      `json:"updated_at"`
}

type GetChatHistoryResponse struct {
	Id              uuid.UUID       `json:"id"`
	Role            string          `json:"role"`
	Chat            string          `json:"chat"`
	Charts          []chart.Spec    `json:"charts,omitempty"`
	Insights        []chart.Insight `json:"insights,omitempty"`
	Intent          string          `json:"intent,omitempty"`
	Degraded        bool            `json:"degraded"`
	DegradedReasons []string        `json:"degraded_reasons,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

type SendChatRequest struct {
	ChatSessionId uuid.UUID `json:"chat_session_id" validate:"required"`
	Chat          string    `json:"chat" validate:"required,max=2000"`
}

type SendChatResponse struct {
	ChatSessionId         uuid.UUID           `json:"chat_session_id"`
	Answer                string              `json:"answer"`
	Charts                []chart.Spec        `json:"charts"`
	Insights              []chart.Insight     `json:"insights"`
	Suggestions           []string            `json:"suggestions,omitempty"`
	RequiresClarification bool                `json:"requires_clarification"`
	Error                 string              `json:"error,omitempty"`
	Intent                intent.Intent       `json:"intent"`
	Handler               string              `json:"handler,omitempty"`
	Degraded              bool                `json:"degraded"`
	DegradedReasons       []string            `json:"degraded_reasons,omitempty"`
	Dataset               *DatasetVersionInfo `json:"dataset,omitempty"`
	CreatedAt             time.Time           `json:"created_at"`
}

type DatasetVersionInfo struct {
	Version   int             `json:"version"`
	RowCount  int             `json:"row_count"`
	BlobRef   string          `json:"blob_ref"`
	Operation string          `json:"operation"`
	Summary   dataset.Summary `json:"summary"`
}

type DatasetVersionResponse struct {
	Version   int       `json:"version"`
	RowCount  int       `json:"row_count"`
	BlobRef   string    `json:"blob_ref"`
	Operation string    `json:"operation"`
	CreatedAt time.Time `json:"created_at"`
}

// SocketChatRequest is what a websocket client sends per turn.
type SocketChatRequest struct {
	Chat string `json:"chat" validate:"required,max=2000"`
}

// SocketEnvelope wraps every frame the server writes to a session socket.
type SocketEnvelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}
