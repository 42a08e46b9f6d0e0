package service

import (
	"context"

	"ai-insights-be/internal/pkg/logger"
	"ai-insights-be/pkg/events"
	pktNats "ai-insights-be/pkg/nats"
)

const telemetryDurable = "insights-telemetry-log"

// TelemetryService tails QUERY_PROCESSED events and records degraded answers.
type TelemetryService struct {
	subscriber *pktNats.Subscriber
	logger     logger.ILogger
}

func NewTelemetryService(sub *pktNats.Subscriber, log logger.ILogger) *TelemetryService {
	return &TelemetryService{subscriber: sub, logger: log}
}

func (s *TelemetryService) Start(ctx context.Context) {
	if s.subscriber == nil {
		s.logger.Warn("TELEMETRY", "NATS subscriber unavailable, telemetry log disabled", nil)
		return
	}
	if err := s.subscriber.Subscribe(ctx, events.QueryProcessed, telemetryDurable, s.handleEvent); err != nil {
		s.logger.Error("TELEMETRY", "Failed to start telemetry subscriber", map[string]interface{}{"error": err.Error()})
		return
	}
	s.logger.Info("TELEMETRY", "Listening for query telemetry", nil)
}

func (s *TelemetryService) handleEvent(ctx context.Context, event events.Event) error {
	payload := event.Payload()
	details := map[string]interface{}{
		"session_id":  payload["session_id"],
		"intent":      payload["intent"],
		"handler":     payload["handler"],
		"duration_ms": payload["duration_ms"],
	}

	if degraded, _ := payload["degraded"].(bool); degraded {
		details["degraded_reasons"] = payload["degraded_reasons"]
		s.logger.Warn("TELEMETRY", "Degraded answer", details)
		return nil
	}
	s.logger.Debug("TELEMETRY", "Query processed", details)
	return nil
}
