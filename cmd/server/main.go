package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/codebuildervaibhav/video-summarize/internal/auth"
	"github.com/codebuildervaibhav/video-summarize/internal/cleanup"
	"github.com/codebuildervaibhav/video-summarize/internal/config"
	"github.com/codebuildervaibhav/video-summarize/internal/executor"
	"github.com/codebuildervaibhav/video-summarize/internal/handlers"
	"github.com/codebuildervaibhav/video-summarize/internal/queue"
	"github.com/codebuildervaibhav/video-summarize/internal/storage"
	"github.com/codebuildervaibhav/video-summarize/internal/summarizer"
	"github.com/codebuildervaibhav/video-summarize/internal/transcription"
	"github.com/codebuildervaibhav/video-summarize/internal/youtube"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	// Logs go to stdout and to the buffer served at /logs
	logBuffer := NewLogBuffer(1000)
	logOutput := io.MultiWriter(os.Stdout, logBuffer)
	slog.SetDefault(slog.New(slog.NewTextHandler(logOutput, &slog.HandlerOptions{
		Level: parseLevel(cfg.Logging.Level),
	})))

	if err := run(cfg, logBuffer, logOutput); err != nil {
		slog.Error("server failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logBuffer *LogBuffer, logOutput io.Writer) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scratchDir := filepath.Join(cfg.Storage.DataDir, "tmp")
	if err := cleanup.EnsureDir(scratchDir); err != nil {
		return err
	}

	slog.Info("initializing components")

	records, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer records.Close()

	runner := executor.New()

	yt := youtube.NewClient(runner, youtube.Options{
		YtDlp:           cfg.YouTube.Binary,
		FFmpeg:          cfg.YouTube.FFmpeg,
		MetadataBackend: cfg.YouTube.MetadataBackend,
		Headless:        cfg.YouTube.Headless,
	})

	// the model loads on first use, once
	transcriber := transcription.NewWhisperTranscriber(
		cfg.Whisper.Model,
		cfg.Whisper.ComputeType,
		transcription.NewCLIFactory(runner, cfg.Whisper.Binary, filepath.Join(cfg.Storage.DataDir, "whisper")),
	)

	summ, err := summarizer.New(ctx, cfg.Summarizer)
	if err != nil {
		return err
	}

	exporters := buildExporters(ctx, cfg)

	pool := queue.NewWorkerPool(cfg.Workers.Count, scratchDir, queue.Stages{
		Audio:       yt,
		Transcriber: transcriber,
		Summarizer:  summ,
		Records:     records,
		Exporters:   exporters,
	})
	pool.Start(ctx)
	defer pool.Stop()

	store := queue.NewStore()
	manager := queue.NewManager(store, pool, yt, records)

	scheduler := cleanup.NewScheduler(store, scratchDir,
		time.Duration(cfg.Cleanup.IntervalMinutes)*time.Minute,
		time.Duration(cfg.Cleanup.MaxAgeHours)*time.Hour)
	scheduler.Start()
	defer scheduler.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "video-summarize",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{Output: logOutput}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	gate := auth.NewGate(cfg.Auth.Password)
	if gate.Enabled() {
		slog.Info("login gate enabled")
	}

	handlers.Register(app, handlers.Deps{
		Manager:  manager,
		Metadata: yt,
		Gate:     gate,
		Limiter:  auth.NewRateLimiter(cfg.Limits.RateLimit),
		Ready:    func() summarizer.Readiness { return summarizer.CheckReady(cfg.Summarizer) },
		Logs:     logBuffer.Lines,
	})

	go func() {
		<-ctx.Done()
		slog.Info("shutting down gracefully")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			slog.Warn("shutdown", slog.Any("error", err))
		}
	}()

	addr := cfg.Addr()
	slog.Info("server starting",
		slog.String("addr", addr),
		slog.String("summarizer", summ.Model()),
		slog.String("whisper_model", transcriber.ModelName()),
		slog.String("storage", cfg.Storage.Driver))

	return app.Listen(addr)
}

// buildExporters returns the optional export targets. Drive problems only
// disable Drive export.
func buildExporters(ctx context.Context, cfg *config.Config) []queue.Exporter {
	var exporters []queue.Exporter
	if cfg.Storage.OutputDir != "" {
		exporters = append(exporters, storage.NewLocalExporter(cfg.Storage.OutputDir))
		slog.Info("local export enabled", slog.String("dir", cfg.Storage.OutputDir))
	}

	gd := cfg.GoogleDrive
	if gd.CredentialsFile == "" {
		return exporters
	}
	if _, err := os.Stat(gd.CredentialsFile); err != nil {
		slog.Info("Google Drive credentials not found, skipping Drive export")
		return exporters
	}
	drive, err := storage.NewDriveExporter(ctx, gd.CredentialsFile, gd.TokenFile, gd.FolderName)
	if err != nil {
		slog.Warn("Google Drive not available", slog.Any("error", err))
		return exporters
	}
	slog.Info("Google Drive export enabled", slog.String("folder", gd.FolderName))
	return append(exporters, drive)
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
