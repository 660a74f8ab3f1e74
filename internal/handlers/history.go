package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/video-summarize/internal/queue"
	"github.com/codebuildervaibhav/video-summarize/internal/types"
)

// HistoryHandler lists finished and in-flight jobs
type HistoryHandler struct {
	manager *queue.Manager
}

func NewHistoryHandler(manager *queue.Manager) *HistoryHandler {
	return &HistoryHandler{manager: manager}
}

// activeJob is the index page's view of a running job
type activeJob struct {
	ID          string       `json:"id"`
	URL         string       `json:"url"`
	Title       string       `json:"title"`
	Status      types.Status `json:"status"`
	Progress    int          `json:"progress"`
	StageDetail string       `json:"stage_detail"`
}

func (h *HistoryHandler) history(c *fiber.Ctx, limit int) ([]types.HistoryEntry, error) {
	entries, err := h.manager.History(c.UserContext(), limit)
	if err != nil {
		slog.Error("list history", slog.Any("error", err))
		return nil, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load history",
			"code":  "ERR_INTERNAL",
		})
	}
	if entries == nil {
		entries = []types.HistoryEntry{}
	}
	return entries, nil
}

// List handles GET /api/history?limit=
func (h *HistoryHandler) List(c *fiber.Ctx) error {
	entries, err := h.history(c, c.QueryInt("limit", queue.DefaultHistoryLimit))
	if entries == nil {
		return err
	}
	return c.JSON(entries)
}

// Index returns recent history and the jobs still running
func (h *HistoryHandler) Index(c *fiber.Ctx) error {
	entries, err := h.history(c, queue.DefaultHistoryLimit)
	if entries == nil {
		return err
	}

	jobs := h.manager.Store().Active()
	active := make([]activeJob, 0, len(jobs))
	for _, job := range jobs {
		snap := job.Snapshot()
		active = append(active, activeJob{
			ID:          snap.ID,
			URL:         snap.URL,
			Title:       snap.Title(),
			Status:      snap.Status,
			Progress:    snap.Progress,
			StageDetail: snap.StageDetail,
		})
	}
	return c.JSON(fiber.Map{"history": entries, "active": active})
}
