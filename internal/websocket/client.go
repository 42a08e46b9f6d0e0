package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"ai-insights-be/internal/dto"
	"ai-insights-be/internal/pkg/serverutils"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBuffer     = 64
	turnTimeout    = 3 * time.Minute
)

// Frame types written to a session socket.
const (
	FrameChatResponse = "chat_response"
	FrameError        = "error"
)

// ChatSender answers one chat turn.
type ChatSender interface {
	SendChat(ctx context.Context, request *dto.SendChatRequest) (*dto.SendChatResponse, error)
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	Hub *Hub

	Conn *websocket.Conn

	SessionID string

	// Buffered channel of outbound messages.
	Send chan []byte

	chat ChatSender

	mu     sync.Mutex
	closed bool
}

func (c *Client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) reply(frameType string, data interface{}) {
	frame, err := json.Marshal(dto.SocketEnvelope{Type: frameType, Data: data})
	if err != nil {
		return
	}
	c.enqueue(frame)
}

// readPump reads chat turns until the socket closes. Turns are answered in
// order, one at a time.
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	sessionID, _ := uuid.Parse(c.SessionID)
	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn("HUB", "Socket closed unexpectedly", map[string]interface{}{
					"session_id": c.SessionID,
					"error":      err.Error(),
				})
			}
			return
		}

		var req dto.SocketChatRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			c.reply(FrameError, serverutils.ErrorResponse(400, "malformed chat frame"))
			continue
		}
		if err := serverutils.ValidateRequest(req); err != nil {
			c.reply(FrameError, serverutils.ErrorResponse(400, err.Error()))
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), turnTimeout)
		res, err := c.chat.SendChat(ctx, &dto.SendChatRequest{ChatSessionId: sessionID, Chat: req.Chat})
		cancel()
		if err != nil {
			c.Hub.logger.Error("HUB", "Chat turn failed", map[string]interface{}{
				"session_id": c.SessionID,
				"error":      err.Error(),
			})
			c.reply(FrameError, serverutils.ErrorResponse(500, "could not answer this message"))
			continue
		}
		c.reply(FrameChatResponse, res)
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
