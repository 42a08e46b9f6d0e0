package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"ai-insights-be/internal/pkg/logger"
	"ai-insights-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu     sync.Mutex
	frames map[string][][]byte
}

func (n *recordingNotifier) NotifySession(sessionID string, data []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.frames == nil {
		n.frames = make(map[string][][]byte)
	}
	n.frames[sessionID] = append(n.frames[sessionID], data)
}

func (n *recordingNotifier) count(sessionID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.frames[sessionID])
}

func TestConsumer_VersionCreatedEvictsAndNotifies(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	evictor := &recordingEvictor{}
	notifier := &recordingNotifier{}
	consumer := NewConsumerService(pubSub, "dataset_events", evictor, notifier, logger.NewNop())
	require.NoError(t, consumer.Consume(ctx))

	publisher := NewPublisherService("dataset_events", pubSub)
	require.NoError(t, publisher.Publish(ctx, events.NewDatasetVersionCreated("s-1", 3, 40, "s-1/v3.json", "normalize")))
	require.NoError(t, publisher.Publish(ctx, events.NewQueryProcessed(events.QueryProcessedData{SessionID: "s-2"})))

	require.Eventually(t, func() bool { return notifier.count("s-1") == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"s-1"}, evictor.calls())
	assert.Zero(t, notifier.count("s-2"))

	var frame struct {
		Type string                 `json:"type"`
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(notifier.frames["s-1"][0], &frame))
	assert.Equal(t, events.DatasetUpdated, frame.Type)
	assert.EqualValues(t, 3, frame.Data["version"])
	assert.Equal(t, "normalize", frame.Data["operation"])
}
