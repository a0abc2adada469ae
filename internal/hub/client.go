package hub

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mercaline/chat-service/internal/config"
	"github.com/mercaline/chat-service/internal/domain"
	"github.com/mercaline/chat-service/pkg/log"
)

// Client wraps one WebSocket connection. ConnID identifies the socket for
// logging; Identity is zero until the registration frame arrives.
type Client struct {
	ConnID   string
	Identity domain.Identity
	Conn     *websocket.Conn
	Send     chan []byte
	config   config.WebSocketConfig
}

// NewClient creates a client for a freshly upgraded connection.
func NewClient(connID string, conn *websocket.Conn, cfg config.WebSocketConfig) *Client {
	return &Client{
		ConnID: connID,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		config: cfg,
	}
}

// Registered reports whether the registration handshake completed.
func (c *Client) Registered() bool {
	return c.Identity.ID != ""
}

// ReadPump pumps inbound frames to handler, one at a time in arrival
// order. onClose runs exactly once when the socket dies.
func (c *Client) ReadPump(handler func(*Client, []byte), onClose func(*Client)) {
	defer func() {
		onClose(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				l := log.L()
				l.Warn().Str(log.FieldConnectionID, c.ConnID).Err(err).Msg("websocket read error")
			}
			break
		}

		handler(c, message)
	}
}

// WritePump drains the send channel to the socket and keeps the
// connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendEvent marshals and queues an event for this client without
// blocking. A full send buffer drops the event; slow consumers are the
// transport layer's problem.
func (c *Client) SendEvent(event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	select {
	case c.Send <- data:
	default:
	}
	return nil
}
