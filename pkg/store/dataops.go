package store

import (
	"context"
	"encoding/json"
	"time"

	"ai-insights-be/pkg/dataset"
)

const (
	LastFilterTTL       = 10 * time.Minute
	PendingOperationTTL = 5 * time.Minute
)

// FilterContext is the filter behind the last previewed row set, so a later
// "delete those rows" can reuse it.
type FilterContext struct {
	Conditions  []dataset.Condition `json:"conditions"`
	Description string              `json:"description"`
	MatchCount  int                 `json:"match_count"`
	CreatedAt   time.Time           `json:"created_at"`
}

// PendingOperation is a data operation parked while a clarifying question is open.
type PendingOperation struct {
	Operation string          `json:"operation"`
	Params    json.RawMessage `json:"params"`
	Missing   string          `json:"missing"`
	Question  string          `json:"question"`
	CreatedAt time.Time       `json:"created_at"`
}

// DataOpsStore keeps short-lived per-session data-operation context. Entries
// expire on their own; a nil result means nothing is stored or it expired.
type DataOpsStore interface {
	SaveLastFilter(ctx context.Context, sessionID string, f FilterContext) error
	LastFilter(ctx context.Context, sessionID string) (*FilterContext, error)
	SavePending(ctx context.Context, sessionID string, op PendingOperation) error
	Pending(ctx context.Context, sessionID string) (*PendingOperation, error)
	ClearPending(ctx context.Context, sessionID string) error
	Clear(ctx context.Context, sessionID string) error
}

func lastFilterKey(sessionID string) string { return "dataops:filter:" + sessionID }
func pendingKey(sessionID string) string    { return "dataops:pending:" + sessionID }
