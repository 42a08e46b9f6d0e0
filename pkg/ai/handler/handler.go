package handler

import (
	"context"

	"ai-insights-be/pkg/ai/intent"
	"ai-insights-be/pkg/chart"
	"ai-insights-be/pkg/chat"
	"ai-insights-be/pkg/dataset"
	"ai-insights-be/pkg/rag"
)

// Context is everything a handler may read while answering one question.
// Handlers must not mutate Data; DataOps works on a copy.
type Context struct {
	Question  string
	Data      []dataset.Row
	Summary   dataset.Summary
	Retrieval rag.Context
	History   []chat.Message
	SessionID string
}

// DatasetVersion describes a dataset version written by a mutating operation.
type DatasetVersion struct {
	Version   int             `json:"version"`
	BlobRef   string          `json:"blobRef"`
	RowCount  int             `json:"rowCount"`
	Operation string          `json:"operation"`
	Summary   dataset.Summary `json:"summary"`
}

type Response struct {
	Answer                string          `json:"answer"`
	Charts                []chart.Spec    `json:"charts,omitempty"`
	Insights              []chart.Insight `json:"insights,omitempty"`
	Error                 string          `json:"error,omitempty"`
	RequiresClarification bool            `json:"requiresClarification,omitempty"`
	Suggestions           []string        `json:"suggestions,omitempty"`
	Dataset               *DatasetVersion `json:"dataset,omitempty"`

	// Degraded is set when a template replaced model output somewhere in the answer.
	Degraded bool `json:"-"`
}

type Handler interface {
	Name() string
	CanHandle(in intent.Intent) bool
	Handle(ctx context.Context, in intent.Intent, hc *Context) (*Response, error)
}

// Resumer is implemented by handlers that parked work behind a clarifying
// question and want the next message routed back to them.
type Resumer interface {
	Resumes(ctx context.Context, sessionID string) bool
}

func acceptsAny(t intent.Type, accepted ...intent.Type) bool {
	for _, a := range accepted {
		if t == a {
			return true
		}
	}
	return false
}
