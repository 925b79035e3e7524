package notifications

import (
	"sync"
	"sync/atomic"
	"time"

	"commentboard/internal/middleware"
	"commentboard/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	sendBuffer = 64
)

// Client is a middleman between one websocket connection and the Hub.
type Client struct {
	hub *Hub

	// ID identifies the connection in logs.
	ID uint64

	// The websocket connection. Nil in tests that never pump.
	Conn *websocket.Conn

	// Buffered channel of outbound messages.
	Send chan []byte

	// IncomingHandler receives every text frame read from the peer.
	IncomingHandler func(*Client, []byte)

	closed    atomic.Bool
	closeOnce sync.Once
}

func newClient(hub *Hub, conn *websocket.Conn, id uint64) *Client {
	return &Client{
		hub:  hub,
		ID:   id,
		Conn: conn,
		Send: make(chan []byte, sendBuffer),
	}
}

// ReadPump pumps messages from the websocket connection to the hub. It
// returns when the peer goes away and unregisters the client.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.UnregisterClient(c)
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { _ = c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				middleware.Logger.Warn("websocket read failed", "client_id", c.ID, "error", err)
			}
			break
		}

		if c.IncomingHandler != nil {
			c.IncomingHandler(c, message)
		}
	}
}

// WritePump pumps messages from the hub to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closed.Store(true)
		_ = c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.Conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closed the connection"))
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// TrySend queues message without blocking. It reports false once the
// connection is gone so the caller can prune it; a full buffer drops the
// message but keeps the client.
func (c *Client) TrySend(message []byte) (alive bool) {
	if c.closed.Load() {
		observability.WebSocketBackpressureDrops.WithLabelValues(c.hub.Name(), "closed").Inc()
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			observability.WebSocketBackpressureDrops.WithLabelValues(c.hub.Name(), "closed").Inc()
			alive = false
		}
	}()

	select {
	case c.Send <- message:
	default:
		observability.WebSocketBackpressureDrops.WithLabelValues(c.hub.Name(), "full").Inc()
		middleware.Logger.Warn("websocket buffer full, dropped message", "client_id", c.ID)
	}
	return true
}

// close marks the client dead and closes Send exactly once.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.Send)
	})
}
