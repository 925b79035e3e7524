package server

import (
	"errors"

	"commentboard/internal/middleware"
	"commentboard/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebSocketUpgradeRequired rejects plain HTTP requests to websocket routes.
func (s *Server) WebSocketUpgradeRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

// CommentsWebSocketHandler serves /ws/comments. A connection receives
// NewComment and DeletedComment frames once it has sent JoinComments.
func (s *Server) CommentsWebSocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		client, err := s.hub.Register(conn)
		if err != nil {
			reason := "server unavailable"
			if errors.Is(err, notifications.ErrHubFull) {
				reason = "too many connections"
			}
			middleware.Logger.Warn("websocket registration refused", "error", err)
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, reason))
			_ = conn.Close()
			return
		}

		middleware.Logger.Debug("websocket connected", "client_id", client.ID)

		// Read pump runs in the handler goroutine and unregisters on exit.
		go client.WritePump()
		client.ReadPump()

		middleware.Logger.Debug("websocket disconnected", "client_id", client.ID)
	})
}
