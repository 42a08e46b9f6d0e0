package nats

import (
	"testing"

	"ai-insights-be/pkg/events"

	"github.com/stretchr/testify/assert"
)

func TestSubjectRoundTrip(t *testing.T) {
	assert.Equal(t, "insights.QUERY_PROCESSED", Subject(events.QueryProcessed))
	assert.Equal(t, events.QueryProcessed, EventTypeOf(Subject(events.QueryProcessed)))
}
