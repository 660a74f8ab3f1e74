// Package handlers exposes the job pipeline over HTTP, SSE and WebSocket.
package handlers

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/video-summarize/internal/auth"
	"github.com/codebuildervaibhav/video-summarize/internal/queue"
	"github.com/codebuildervaibhav/video-summarize/internal/types"
)

// JobsHandler handles job submission, lookup and metadata previews
type JobsHandler struct {
	manager  *queue.Manager
	metadata queue.MetadataFetcher
}

// NewJobsHandler creates a new jobs handler
func NewJobsHandler(manager *queue.Manager, metadata queue.MetadataFetcher) *JobsHandler {
	return &JobsHandler{manager: manager, metadata: metadata}
}

// URLRequest is the body of job and metadata requests (JSON or form)
type URLRequest struct {
	URL string `json:"url" form:"url"`
}

// jobResponse is a job record plus its derived fields
type jobResponse struct {
	*types.JobRecord
	Title     string  `json:"title"`
	TotalTime float64 `json:"total_time"`
	WordCount int     `json:"word_count"`
}

func newJobResponse(rec *types.JobRecord) jobResponse {
	return jobResponse{
		JobRecord: rec,
		Title:     rec.Title(),
		TotalTime: rec.TotalTime(),
		WordCount: rec.WordCount(),
	}
}

func parseURL(c *fiber.Ctx) (string, error) {
	var req URLRequest
	if err := c.BodyParser(&req); err != nil {
		return "", c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
			"code":  "ERR_INVALID_BODY",
		})
	}
	url := strings.TrimSpace(req.URL)
	if url == "" {
		return "", c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "URL is required",
			"code":  "ERR_NO_URL",
		})
	}
	return url, nil
}

// Create submits a new job. A job whose metadata lookup failed is still
// returned, already failed, so the caller can inspect it.
func (h *JobsHandler) Create(c *fiber.Ctx) error {
	url, err := parseURL(c)
	if url == "" {
		return err
	}

	job, err := h.manager.Submit(c.UserContext(), url, c.Cookies(auth.UserCookie))
	switch {
	case job == nil && errors.Is(err, types.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid YouTube URL",
			"code":  "ERR_INVALID_URL",
		})
	case job == nil:
		slog.Error("submit job", slog.Any("error", err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create job",
			"code":  "ERR_INTERNAL",
		})
	case errors.Is(err, queue.ErrQueueFull):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":  "Job queue is full, try again later",
			"code":   "ERR_QUEUE_FULL",
			"job_id": job.ID(),
		})
	}

	snap := job.Snapshot()
	status := fiber.StatusAccepted
	if snap.Status == types.StatusFailed {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(fiber.Map{
		"job_id":       snap.ID,
		"status":       snap.Status,
		"title":        snap.Title(),
		"error":        snap.Error,
		"events_url":   "/api/jobs/" + snap.ID + "/events",
		"websocket":    "/ws/jobs/" + snap.ID,
		"result_url":   "/api/jobs/" + snap.ID,
		"created_by":   snap.CreatedBy,
		"stage_detail": snap.StageDetail,
	})
}

// Get returns the live job, or its durable record once evicted
func (h *JobsHandler) Get(c *fiber.Ctx) error {
	rec, err := h.manager.Lookup(c.UserContext(), c.Params("id"))
	if errors.Is(err, types.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Job not found",
			"code":  "ERR_NOT_FOUND",
		})
	}
	if err != nil {
		slog.Error("lookup job", slog.String("job", c.Params("id")), slog.Any("error", err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load job",
			"code":  "ERR_INTERNAL",
		})
	}
	return c.JSON(newJobResponse(rec))
}

// Metadata previews a video without creating a job
func (h *JobsHandler) Metadata(c *fiber.Ctx) error {
	url, err := parseURL(c)
	if url == "" {
		return err
	}

	if err := h.metadata.Validate(url); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
			"code":  "ERR_INVALID_URL",
		})
	}
	meta, err := h.metadata.FetchMetadata(c.UserContext(), url)
	if err != nil {
		slog.Error("metadata fetch failed", slog.String("url", url), slog.Any("error", err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch video info",
			"code":  "ERR_METADATA_FAILED",
		})
	}
	return c.JSON(fiber.Map{
		"url":             url,
		"metadata":        meta,
		"duration_string": meta.DurationString(),
	})
}
