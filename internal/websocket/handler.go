package websocket

import (
	"github.com/gofiber/websocket/v2"
)

// ServeWs attaches a socket to sessionID and blocks until it closes.
func ServeWs(hub *Hub, chat ChatSender, c *websocket.Conn, sessionID string) {
	client := &Client{Hub: hub, Conn: c, SessionID: sessionID, Send: make(chan []byte, sendBuffer), chat: chat}
	client.Hub.register <- client

	go client.writePump()
	client.readPump()
}
