package server

import (
	"log/slog"

	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebsocketHandler streams post and comment events to the caller.
// @Summary Live content events
// @Description WebSocket stream of post_created, comment_created and auto_reply_created events. Narrow it with a comma-separated types list and/or a post_id.
// @Tags realtime
// @Security BearerAuth
// @Param types query string false "Event types to receive, e.g. comment_created,auto_reply_created"
// @Param post_id query int false "Only events for this post"
// @Success 101
// @Failure 400 {object} models.ErrorResponse
// @Failure 426 {object} models.ErrorResponse
// @Router /ws [get]
func (s *Server) WebsocketHandler() fiber.Handler {
	upgrade := websocket.New(func(conn *websocket.Conn) {
		uid, _ := conn.Locals("userID").(uint)
		filter, _ := conn.Locals("eventFilter").(notifications.Filter)

		client, err := s.hub.Register(uid, conn, filter)
		if err != nil {
			middleware.Logger.Warn("websocket registration rejected",
				slog.Uint64("user_id", uint64(uid)), slog.String("error", err.Error()))
			_ = conn.WriteJSON(models.ErrorResponse{Message: err.Error()})
			_ = conn.Close()
			return
		}
		client.Serve()
	})

	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		filter, err := notifications.ParseFilter(c.Query("types"), c.Query("post_id"))
		if err != nil {
			return respondError(c, models.NewValidationError(err.Error()), fiber.StatusUnauthorized)
		}
		c.Locals("eventFilter", filter)
		return upgrade(c)
	}
}
