package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/hyfer-go-api/internal/middleware"
	"github.com/noah-isme/hyfer-go-api/internal/service"
)

const (
	streamPingInterval = 30 * time.Second
	streamWriteTimeout = 10 * time.Second
)

// TimelineStreamHandler pushes timeline change events to websocket clients.
type TimelineStreamHandler struct {
	events *service.TimelineEvents
	logger zerolog.Logger
}

// NewTimelineStreamHandler creates the websocket stream handler.
func NewTimelineStreamHandler(events *service.TimelineEvents, logger zerolog.Logger) *TimelineStreamHandler {
	return &TimelineStreamHandler{
		events: events,
		logger: logger.With().Str("component", "timeline_stream_handler").Logger(),
	}
}

// Register binds the /ws route. It must run before any /:param route of the same group.
func (h *TimelineStreamHandler) Register(router fiber.Router) {
	router.Use("/ws", middleware.RequireUser(), func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/ws", websocket.New(h.handleConnection))
}

func (h *TimelineStreamHandler) handleConnection(conn *websocket.Conn) {
	logger := h.logger.With().
		Interface("user_id", conn.Locals("user_id")).
		Interface("correlation_id", conn.Locals("correlation_id")).
		Logger()

	stream, cleanup := h.events.Subscribe()
	defer cleanup()

	// The reader only exists to notice the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()

	logger.Info().Msg("timeline stream connected")
	defer logger.Info().Msg("timeline stream disconnected")

	for {
		select {
		case <-closed:
			return
		case event, ok := <-stream:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteJSON(event); err != nil {
				logger.Debug().Err(err).Msg("timeline stream write failed")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
