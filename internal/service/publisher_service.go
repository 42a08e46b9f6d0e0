package service

import (
	"context"
	"encoding/json"
	"time"

	"ai-insights-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// busMessage is the watermill payload for in-process events.
type busMessage struct {
	Type       string                 `json:"type"`
	Data       map[string]interface{} `json:"data"`
	OccurredAt time.Time              `json:"occurred_at"`
}

type IPublisherService interface {
	events.Publisher
}

type publisherService struct {
	topicName string
	publisher message.Publisher
}

// NewPublisherService publishes events on the in-process bus under topicName.
func NewPublisherService(topicName string, publisher message.Publisher) IPublisherService {
	return &publisherService{
		topicName: topicName,
		publisher: publisher,
	}
}

func (ps *publisherService) Publish(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(busMessage{
		Type:       event.EventType(),
		Data:       event.Payload(),
		OccurredAt: event.Timestamp(),
	})
	if err != nil {
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("event_type", event.EventType())
	msg.SetContext(ctx)
	return ps.publisher.Publish(ps.topicName, msg)
}

func decodeBusMessage(msg *message.Message) (events.BaseEvent, error) {
	var m busMessage
	if err := json.Unmarshal(msg.Payload, &m); err != nil {
		return events.BaseEvent{}, err
	}
	return events.BaseEvent{Type: m.Type, Data: m.Data, OccurredAt: m.OccurredAt}, nil
}
