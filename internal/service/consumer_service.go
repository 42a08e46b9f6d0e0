package service

import (
	"context"
	"encoding/json"

	"ai-insights-be/internal/pkg/logger"
	"ai-insights-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// IndexEvictor drops cached retrieval state for a session.
type IndexEvictor interface {
	Evict(ctx context.Context, sessionID string)
}

// SessionNotifier pushes a frame to every socket attached to a session.
type SessionNotifier interface {
	NotifySession(sessionID string, data []byte)
}

type consumerService struct {
	subscriber message.Subscriber
	topicName  string
	evictor    IndexEvictor
	notifier   SessionNotifier
	logger     logger.ILogger
}

func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	evictor IndexEvictor,
	notifier SessionNotifier,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		evictor:    evictor,
		notifier:   notifier,
		logger:     log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	event, err := decodeBusMessage(msg)
	if err != nil {
		cs.logger.Error("CHAT", "Failed to decode bus message", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
		msg.Ack()
		return
	}

	switch event.EventType() {
	case events.DatasetVersionCreated:
		cs.onVersionCreated(ctx, event)
	default:
		cs.logger.Debug("CHAT", "Ignoring bus event", map[string]interface{}{"type": event.EventType()})
	}
	msg.Ack()
}

// onVersionCreated drops the retrieval index built over the old rows and
// tells attached sockets the dataset changed.
func (cs *consumerService) onVersionCreated(ctx context.Context, event events.Event) {
	sessionID := events.SessionID(event)
	if sessionID == "" {
		cs.logger.Warn("CHAT", "Version event without session", nil)
		return
	}

	if cs.evictor != nil {
		cs.evictor.Evict(ctx, sessionID)
	}

	if cs.notifier == nil {
		return
	}
	frame, err := json.Marshal(map[string]interface{}{
		"type": events.DatasetUpdated,
		"data": event.Payload(),
	})
	if err != nil {
		cs.logger.Error("CHAT", "Failed to encode dataset update", map[string]interface{}{"error": err.Error()})
		return
	}
	cs.notifier.NotifySession(sessionID, frame)

	cs.logger.Info("CHAT", "Dataset update fanned out", map[string]interface{}{
		"session_id": sessionID,
		"version":    event.Payload()["version"],
	})
}
