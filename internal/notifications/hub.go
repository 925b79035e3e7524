package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"commentboard/internal/middleware"
	"commentboard/internal/models"

	"github.com/gofiber/websocket/v2"
)

// Max total connections per instance.
const maxTotalConns = 10000

// ErrHubFull is returned by Register when the connection limit is reached.
var ErrHubFull = errors.New("server connection limit reached")

// ErrHubClosed is returned by Register after Shutdown.
var ErrHubClosed = errors.New("hub is shutting down")

// Hub tracks websocket viewers of the comment board. Connected clients
// receive broadcasts only after joining the comments group.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	members map[*Client]struct{}
	closed  bool
	nextID  atomic.Uint64
	done    chan struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		members: make(map[*Client]struct{}),
		done:    make(chan struct{}),
	}
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "comments hub" }

// Register adds a connection. The client starts outside the comments group.
func (h *Hub) Register(conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}
	if len(h.clients) >= maxTotalConns {
		return nil, ErrHubFull
	}

	client := newClient(h, conn, h.nextID.Add(1))
	client.IncomingHandler = h.handleIncoming
	h.clients[client] = struct{}{}
	middleware.ActiveWebSockets.Inc()
	return client, nil
}

// UnregisterClient removes client from the hub and closes its send queue.
// Calling it more than once is harmless.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		delete(h.members, client)
	}
	h.mu.Unlock()

	if ok {
		middleware.ActiveWebSockets.Dec()
		client.close()
	}
}

// Join puts client in the comments group.
func (h *Hub) Join(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		h.members[client] = struct{}{}
	}
}

// Leave takes client out of the comments group.
func (h *Hub) Leave(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.members, client)
}

// Counts returns the number of connected clients and of group members.
func (h *Hub) Counts() (connected, members int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients), len(h.members)
}

type inboundMessage struct {
	Type string `json:"type"`
}

func (h *Hub) handleIncoming(client *Client, raw []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		middleware.Logger.Debug("ignoring malformed websocket message", "client_id", client.ID, "error", err)
		return
	}
	switch msg.Type {
	case models.RealtimeJoinComments:
		h.Join(client)
	case models.RealtimeLeaveComments:
		h.Leave(client)
	default:
		middleware.Logger.Debug("ignoring websocket message", "client_id", client.ID, "type", msg.Type)
	}
}

// BroadcastGroup sends message to every group member and prunes members
// whose connection has gone away. It returns the number of live recipients.
func (h *Hub) BroadcastGroup(message []byte) int {
	h.mu.RLock()
	var dead []*Client
	delivered := 0
	for c := range h.members {
		if c.TrySend(message) {
			delivered++
		} else {
			dead = append(dead, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range dead {
		h.UnregisterClient(c)
	}
	return delivered
}

// StartWiring forwards every message received on the Redis broadcast
// channel to the local group.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartBroadcastSubscriber(ctx, func(payload string) {
		h.BroadcastGroup([]byte(payload))
	})
}

// Shutdown gracefully closes all websocket connections
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*Client]struct{})
	h.members = make(map[*Client]struct{})
	h.mu.Unlock()

	// Closing Send makes each WritePump send a going-away frame and hang up.
	for _, client := range clients {
		middleware.ActiveWebSockets.Dec()
		client.close()
	}

	close(h.done)
	return nil
}

// Done is closed once Shutdown has finished.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}
