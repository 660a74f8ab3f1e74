package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/codebuildervaibhav/video-summarize/internal/types"
)

// ErrQueueFull is returned by Submit when the job buffer is saturated.
var ErrQueueFull = errors.New("job queue is full")

// AudioFetcher downloads a video's audio as 16kHz mono WAV into dir
type AudioFetcher interface {
	FetchAudio(ctx context.Context, url, dir string) (string, error)
}

// Transcriber turns a WAV file into timestamped text
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string, onProgress func(done, total int)) (*types.TranscriptionResult, error)
	ModelName() string
}

// Summarizer produces a markdown summary from a transcript
type Summarizer interface {
	Summarize(ctx context.Context, transcript, title string) (string, error)
	Model() string
}

// modelReporter is implemented by summarizers that can say which of several
// models produced a summary
type modelReporter interface {
	SummarizeWithModel(ctx context.Context, transcript, title string) (string, string, error)
}

// RecordSaver is the durable store's write side
type RecordSaver interface {
	Save(ctx context.Context, rec *types.JobRecord) error
}

// Exporter publishes a completed job somewhere outside the durable store
type Exporter interface {
	Name() string
	Export(ctx context.Context, rec *types.JobRecord) error
}

// Stages bundles the collaborators a pipeline run needs
type Stages struct {
	Audio       AudioFetcher
	Transcriber Transcriber
	Summarizer  Summarizer
	Records     RecordSaver // optional
	Exporters   []Exporter
}

// StageError records which stage a pipeline failure came from
type StageError struct {
	Stage types.Status
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// WorkerPool manages a pool of workers running job pipelines
type WorkerPool struct {
	jobQueue    chan *Job
	workerCount int
	scratchDir  string
	stages      Stages

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewWorkerPool creates a new worker pool. Each job gets <scratchDir>/<id> for its audio.
func NewWorkerPool(workerCount int, scratchDir string, stages Stages) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &WorkerPool{
		jobQueue:    make(chan *Job, 100),
		workerCount: workerCount,
		scratchDir:  scratchDir,
		stages:      stages,
	}
}

// Start launches the workers. Cancelling ctx (or calling Stop) aborts in-flight stages.
func (wp *WorkerPool) Start(ctx context.Context) {
	wp.ctx, wp.cancel = context.WithCancel(ctx)
	slog.Info("starting worker pool", slog.Int("workers", wp.workerCount))
	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop cancels running jobs and waits for workers to exit
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if wp.closed {
		wp.mu.Unlock()
		return
	}
	wp.closed = true
	close(wp.jobQueue)
	wp.mu.Unlock()

	if wp.cancel != nil {
		wp.cancel()
	}
	wp.wg.Wait()
}

// Submit queues a confirmed job without blocking
func (wp *WorkerPool) Submit(job *Job) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.closed {
		return ErrQueueFull
	}
	select {
	case wp.jobQueue <- job:
		slog.Info("job enqueued", slog.String("job", job.ID()), slog.String("url", job.URL()))
		return nil
	default:
		return ErrQueueFull
	}
}

// worker processes jobs from the queue
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		if wp.ctx.Err() != nil {
			_ = job.Fail("server shutting down")
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("panic processing job",
						slog.Int("worker", id),
						slog.String("job", job.ID()),
						slog.Any("panic", r),
						slog.String("stack", string(debug.Stack())))
					_ = job.Fail(fmt.Sprintf("worker panic: %v", r))
					wp.cleanupScratch(job.ID())
				}
			}()

			wp.Run(wp.ctx, job)
		}()
	}
}

// Run drives a confirmed job through download, transcription and summarization.
// Any stage failure leaves the job failed with the failure's message.
func (wp *WorkerPool) Run(ctx context.Context, job *Job) {
	log := slog.With(slog.String("job", job.ID()))
	log.Info("processing job")

	if err := wp.runStages(ctx, job); err != nil {
		log.Error("job failed", slog.Any("error", err))
		msg := err.Error()
		var se *StageError
		if errors.As(err, &se) {
			msg = se.Err.Error()
		}
		_ = job.Fail(msg)
		wp.cleanupScratch(job.ID())
		return
	}

	if err := job.Complete(); err != nil {
		log.Error("complete job", slog.Any("error", err))
		return
	}
	snap := job.Snapshot()
	log.Info("job completed",
		slog.Float64("total_seconds", snap.TotalTime()),
		slog.Int("words", snap.WordCount()))

	wp.persist(ctx, &snap)
}

func (wp *WorkerPool) runStages(ctx context.Context, job *Job) error {
	// download
	if err := job.StartStage(types.StatusDownloading, 0, "Downloading audio..."); err != nil {
		return err
	}
	start := time.Now()
	audioPath, err := wp.stages.Audio.FetchAudio(ctx, job.URL(), wp.jobDir(job.ID()))
	if err != nil {
		return &StageError{Stage: types.StatusDownloading, Err: err}
	}
	job.SetStageTime(types.StatusDownloading, time.Since(start))
	job.SetProgress(100, "Audio downloaded")

	// transcribe
	if err := job.StartStage(types.StatusTranscribing, 0, "Transcribing..."); err != nil {
		return err
	}
	start = time.Now()
	result, err := wp.stages.Transcriber.Transcribe(ctx, audioPath, func(done, total int) {
		job.SetProgress(transcribeProgress(done, total), fmt.Sprintf("Transcribing... (%d segments)", done))
	})
	if err != nil {
		return &StageError{Stage: types.StatusTranscribing, Err: err}
	}
	job.SetTranscript(result, wp.stages.Transcriber.ModelName())
	job.SetStageTime(types.StatusTranscribing, time.Since(start))
	job.SetProgress(100, fmt.Sprintf("Transcribed %d segments", len(result.Segments)))
	wp.cleanupScratch(job.ID())

	// summarize
	if err := job.StartStage(types.StatusSummarizing, 50, "Generating summary..."); err != nil {
		return err
	}
	start = time.Now()
	summary, model, err := wp.summarize(ctx, result.Text, job.Title())
	if err != nil {
		return &StageError{Stage: types.StatusSummarizing, Err: err}
	}
	job.SetSummary(summary, model)
	job.SetStageTime(types.StatusSummarizing, time.Since(start))
	return nil
}

func (wp *WorkerPool) summarize(ctx context.Context, transcript, title string) (string, string, error) {
	if mr, ok := wp.stages.Summarizer.(modelReporter); ok {
		return mr.SummarizeWithModel(ctx, transcript, title)
	}
	summary, err := wp.stages.Summarizer.Summarize(ctx, transcript, title)
	return summary, wp.stages.Summarizer.Model(), err
}

// persist writes the completed snapshot to the durable store, then the exporters.
// Failures here never change the job.
func (wp *WorkerPool) persist(ctx context.Context, rec *types.JobRecord) {
	if wp.stages.Records != nil {
		if err := wp.stages.Records.Save(ctx, rec); err != nil {
			slog.Error("save job record", slog.String("job", rec.ID), slog.Any("error", err))
		}
	}
	for _, exp := range wp.stages.Exporters {
		if err := exp.Export(ctx, rec); err != nil {
			slog.Warn("export failed", slog.String("job", rec.ID), slog.String("exporter", exp.Name()), slog.Any("error", err))
		}
	}
}

func (wp *WorkerPool) jobDir(id string) string {
	return filepath.Join(wp.scratchDir, id)
}

// cleanupScratch removes the job's audio directory, best effort
func (wp *WorkerPool) cleanupScratch(id string) {
	dir := wp.jobDir(id)
	if err := os.RemoveAll(dir); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to cleanup scratch dir", slog.String("dir", dir), slog.Any("error", err))
	}
}

// transcribeProgress stays below 100 until the stage itself finishes
func transcribeProgress(done, total int) int {
	if total <= 0 {
		total = 1
	}
	return min(done*100/total, 99)
}
