package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"ai-insights-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const clusterChannel = "cluster_events"

// clusterMessage is what instances exchange over redis.
type clusterMessage struct {
	Origin          string          `json:"origin"`
	TargetSessionID string          `json:"target_session_id"`
	Message         json.RawMessage `json:"message"`
}

type Hub struct {
	// Registered clients: session id -> sockets attached to it
	clients map[string][]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	// Redis connection for cross-instance fan-out, nil when running alone
	rdb *redis.Client

	// instance tags our own redis publications so they are not delivered twice
	instance string

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[string][]*Client),
		rdb:        rdb,
		instance:   uuid.NewString(),
		logger:     log,
	}
}

func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.SessionID] = append(h.clients[client.SessionID], client)
			h.mu.Unlock()
			h.logger.Info("HUB", "Client registered", map[string]interface{}{"session_id": client.SessionID})

		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.clients[client.SessionID]
	if !ok {
		return
	}
	for i, c := range clients {
		if c == client {
			h.clients[client.SessionID] = append(clients[:i], clients[i+1:]...)
			client.mu.Lock()
			client.closed = true
			close(client.Send)
			client.mu.Unlock()
			break
		}
	}
	if len(h.clients[client.SessionID]) == 0 {
		delete(h.clients, client.SessionID)
		h.logger.Info("HUB", "Session has no sockets left", map[string]interface{}{"session_id": client.SessionID})
	}
}

// NotifySession delivers data to local sockets of the session and to every
// other instance through redis.
func (h *Hub) NotifySession(sessionID string, data []byte) {
	h.deliver(sessionID, data)

	if h.rdb == nil {
		return
	}
	payload, err := json.Marshal(clusterMessage{
		Origin:          h.instance,
		TargetSessionID: sessionID,
		Message:         data,
	})
	if err != nil {
		return
	}
	if err := h.rdb.Publish(context.Background(), clusterChannel, payload).Err(); err != nil {
		h.logger.Warn("HUB", "Redis publish failed", map[string]interface{}{"error": err.Error()})
	}
}

// deliver never blocks: a client whose buffer is full is dropped.
func (h *Hub) deliver(sessionID string, data []byte) int {
	h.mu.RLock()
	clients := append([]*Client(nil), h.clients[sessionID]...)
	h.mu.RUnlock()

	delivered := 0
	for _, client := range clients {
		if client.enqueue(data) {
			delivered++
			continue
		}
		h.logger.Warn("HUB", "Client send buffer full, dropping socket", map[string]interface{}{"session_id": sessionID})
		go func(c *Client) { h.unregister <- c }(client)
	}
	return delivered
}

// Sessions reports how many sockets each session has attached.
func (h *Hub) Sessions() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]int, len(h.clients))
	for id, cs := range h.clients {
		out[id] = len(cs)
	}
	return out
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var payload clusterMessage
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			h.logger.Warn("HUB", "Dropping malformed cluster message", map[string]interface{}{"error": err.Error()})
			continue
		}
		if payload.Origin == h.instance {
			continue
		}
		h.deliver(payload.TargetSessionID, payload.Message)
	}
}
