package events

import (
	"context"
	"time"
)

const (
	// QueryProcessed is published once per answered question.
	QueryProcessed = "QUERY_PROCESSED"
	// DatasetVersionCreated is published after a data operation stored a new version.
	DatasetVersionCreated = "DATASET_VERSION_CREATED"
	// DatasetUpdated is pushed to websocket clients of the session.
	DatasetUpdated = "DATASET_UPDATED"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "QUERY_PROCESSED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Publisher is satisfied by the NATS publisher and the in-process bus.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// QueryProcessedData is the telemetry recorded for one question.
type QueryProcessedData struct {
	SessionID       string
	Intent          string
	Confidence      float64
	Handler         string
	Clarified       bool
	Degraded        bool
	DegradedReasons []string
	Charts          int
	Duration        time.Duration
}

func NewQueryProcessed(d QueryProcessedData) BaseEvent {
	reasons := d.DegradedReasons
	if reasons == nil {
		reasons = []string{}
	}
	return BaseEvent{
		Type: QueryProcessed,
		Data: map[string]interface{}{
			"session_id":       d.SessionID,
			"intent":           d.Intent,
			"confidence":       d.Confidence,
			"handler":          d.Handler,
			"clarified":        d.Clarified,
			"degraded":         d.Degraded,
			"degraded_reasons": reasons,
			"charts":           d.Charts,
			"duration_ms":      d.Duration.Milliseconds(),
		},
		OccurredAt: time.Now(),
	}
}

func NewDatasetVersionCreated(sessionID string, version, rowCount int, blobRef, operation string) BaseEvent {
	return BaseEvent{
		Type: DatasetVersionCreated,
		Data: map[string]interface{}{
			"session_id": sessionID,
			"version":    version,
			"row_count":  rowCount,
			"blob_ref":   blobRef,
			"operation":  operation,
		},
		OccurredAt: time.Now(),
	}
}

// SessionID reads the session id carried by any of this package's events.
func SessionID(e Event) string {
	if v, ok := e.Payload()["session_id"].(string); ok {
		return v
	}
	return ""
}
