package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/video-summarize/internal/summarizer"
)

// Version is reported by /health
const Version = "1.0.0"

// StatusHandler serves health, readiness and recent logs
type StatusHandler struct {
	ready func() summarizer.Readiness
	logs  func() []string
}

func NewStatusHandler(ready func() summarizer.Readiness, logs func() []string) *StatusHandler {
	return &StatusHandler{ready: ready, logs: logs}
}

func (h *StatusHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"version": Version,
	})
}

// Ready answers 503 while the summarizer cannot take work
func (h *StatusHandler) Ready(c *fiber.Ctx) error {
	r := h.ready()
	if !r.OK {
		return c.Status(fiber.StatusServiceUnavailable).JSON(r)
	}
	return c.JSON(r)
}

func (h *StatusHandler) Logs(c *fiber.Ctx) error {
	var lines []string
	if h.logs != nil {
		lines = h.logs()
	}
	return c.JSON(fiber.Map{"logs": lines})
}
