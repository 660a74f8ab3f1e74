package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/codebuildervaibhav/video-summarize/internal/auth"
	"github.com/codebuildervaibhav/video-summarize/internal/queue"
	"github.com/codebuildervaibhav/video-summarize/internal/summarizer"
)

// Deps is everything the routes need
type Deps struct {
	Manager  *queue.Manager
	Metadata queue.MetadataFetcher
	Gate     *auth.Gate
	Limiter  *auth.RateLimiter
	Ready    func() summarizer.Readiness
	Logs     func() []string

	// zero values take DefaultPollInterval and DefaultStreamTimeout
	PollInterval  time.Duration
	StreamTimeout time.Duration
}

// Register mounts every route on app
func Register(app *fiber.App, d Deps) {
	jobs := NewJobsHandler(d.Manager, d.Metadata)
	events := NewEventsHandler(d.Manager, d.PollInterval, d.StreamTimeout)
	stream := NewStreamHandler(d.Manager, d.PollInterval, d.StreamTimeout)
	history := NewHistoryHandler(d.Manager)
	status := NewStatusHandler(d.Ready, d.Logs)

	if d.Gate != nil {
		app.Use(d.Gate.Middleware())
		if d.Gate.Enabled() {
			app.Get("/login", d.Gate.LoginPage)
			app.Post("/login", d.Gate.Login)
		}
	}

	limited := func(c *fiber.Ctx) error { return c.Next() }
	if d.Limiter != nil {
		limited = d.Limiter.Middleware()
	}

	app.Get("/health", status.Health)
	app.Get("/logs", status.Logs)
	app.Get("/", history.Index)

	api := app.Group("/api")
	api.Get("/status", status.Ready)
	api.Post("/metadata", limited, jobs.Metadata)
	api.Post("/jobs", limited, jobs.Create)
	api.Get("/jobs/:id", jobs.Get)
	api.Get("/jobs/:id/events", events.Handle)
	api.Get("/history", history.List)

	app.Use("/ws", stream.Upgrade)
	app.Get("/ws/jobs/:id", websocket.New(stream.Handle))
}
