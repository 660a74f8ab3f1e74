package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/codebuildervaibhav/video-summarize/internal/queue"
	"github.com/codebuildervaibhav/video-summarize/internal/types"
)

// StreamHandler pushes job status over a WebSocket
type StreamHandler struct {
	manager  *queue.Manager
	interval time.Duration
	timeout  time.Duration
}

// NewStreamHandler creates a new stream handler; zero durations take the defaults
func NewStreamHandler(manager *queue.Manager, interval, timeout time.Duration) *StreamHandler {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if timeout <= 0 {
		timeout = DefaultStreamTimeout
	}
	return &StreamHandler{manager: manager, interval: interval, timeout: timeout}
}

// Upgrade only lets WebSocket handshakes through
func (h *StreamHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Handle sends the same events as the SSE stream, one JSON text frame each
func (h *StreamHandler) Handle(c *websocket.Conn) {
	defer c.Close()

	id := c.Params("id")
	job, live := h.manager.Store().Get(id)
	if !live {
		rec, err := h.manager.Lookup(context.Background(), id)
		if err != nil {
			_ = c.WriteJSON(fiber.Map{"error": "Job not found", "code": "ERR_NOT_FOUND"})
			return
		}
		_ = c.WriteJSON(rec.Event())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	// the client never sends anything we act on; a read error means it went away
	go func() {
		defer cancel()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	slog.Debug("websocket watching job", slog.String("job", id))
	err := watchJob(ctx, h.manager.Store(), job, h.interval, func(ev types.JobEvent) error {
		return c.WriteJSON(ev)
	})
	if err != nil && ctx.Err() == nil {
		slog.Warn("websocket stream ended", slog.String("job", id), slog.Any("error", err))
	}
}
