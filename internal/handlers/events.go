package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/video-summarize/internal/queue"
	"github.com/codebuildervaibhav/video-summarize/internal/types"
)

// Event stream defaults
const (
	DefaultPollInterval  = 500 * time.Millisecond
	DefaultStreamTimeout = 2 * time.Hour
)

// EventsHandler streams job status as server-sent events
type EventsHandler struct {
	manager  *queue.Manager
	interval time.Duration
	timeout  time.Duration
}

// NewEventsHandler creates an SSE handler; zero durations take the defaults
func NewEventsHandler(manager *queue.Manager, interval, timeout time.Duration) *EventsHandler {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if timeout <= 0 {
		timeout = DefaultStreamTimeout
	}
	return &EventsHandler{manager: manager, interval: interval, timeout: timeout}
}

var errStreamClosed = errors.New("stream closed")

// watchJob polls job and calls emit whenever its status, progress, detail or
// error changes. It returns after emitting a terminal status, when the job is
// evicted, when ctx ends, or when emit fails.
func watchJob(ctx context.Context, store *queue.Store, job *queue.Job, interval time.Duration, emit func(types.JobEvent) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last *types.JobEvent
	for {
		snap := job.Snapshot()
		ev := snap.Event()
		if last == nil || ev != *last {
			if err := emit(ev); err != nil {
				return err
			}
			last = &ev
			if ev.Status.IsTerminal() {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if _, ok := store.Get(job.ID()); !ok {
			return nil
		}
	}
}

// writeEvent writes one SSE frame and flushes it
func writeEvent(w *bufio.Writer, ev types.JobEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return errStreamClosed
	}
	return nil
}

// Handle streams events for a live job. A job that only exists in the
// durable store gets a single terminal event.
func (h *EventsHandler) Handle(c *fiber.Ctx) error {
	id := c.Params("id")
	job, live := h.manager.Store().Get(id)

	var final *types.JobEvent
	if !live {
		rec, err := h.manager.Lookup(c.UserContext(), id)
		if err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Job not found",
				"code":  "ERR_NOT_FOUND",
			})
		}
		ev := rec.Event()
		final = &ev
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	store := h.manager.Store()
	interval, timeout := h.interval, h.timeout
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		if final != nil {
			_ = writeEvent(w, *final)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		err := watchJob(ctx, store, job, interval, func(ev types.JobEvent) error {
			return writeEvent(w, ev)
		})
		if err != nil && !errors.Is(err, errStreamClosed) && !errors.Is(err, context.DeadlineExceeded) {
			slog.Warn("event stream ended", slog.String("job", id), slog.Any("error", err))
		}
	})
	return nil
}
