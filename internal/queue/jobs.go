package queue

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/codebuildervaibhav/video-summarize/internal/types"
)

// ErrJobTerminal is returned when mutating a completed or failed job.
var ErrJobTerminal = errors.New("job is in a terminal state")

// statusOrder is the only forward path a job may take.
var statusOrder = []types.Status{
	types.StatusPending,
	types.StatusFetchingMetadata,
	types.StatusConfirmed,
	types.StatusDownloading,
	types.StatusTranscribing,
	types.StatusSummarizing,
	types.StatusCompleted,
}

// Job is one summarization request and its mutable pipeline state.
//
// A job has a single writer (the submission path, then its worker); the
// mutex exists so concurrent status readers see consistent snapshots.
type Job struct {
	mu sync.RWMutex

	id        string
	url       string
	createdAt time.Time
	createdBy string

	status      types.Status
	progress    int
	stageDetail string
	metadata    *types.VideoMetadata

	transcriptText     string
	transcriptSegments []types.Segment
	transcriptLanguage string
	summary            string
	errMsg             string

	downloadTime    float64
	transcribeTime  float64
	summarizeTime   float64
	whisperModel    string
	summarizerModel string
}

// NewJob creates a pending job
func NewJob(id, url string) *Job {
	return &Job{
		id:        id,
		url:       url,
		createdAt: time.Now(),
		status:    types.StatusPending,
	}
}

func (j *Job) ID() string  { return j.id }
func (j *Job) URL() string { return j.url }

func (j *Job) CreatedAt() time.Time { return j.createdAt }

func (j *Job) Status() types.Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

// Title returns the video title, or "Unknown" when metadata is absent
func (j *Job) Title() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.metadata == nil || j.metadata.Title == "" {
		return "Unknown"
	}
	return j.metadata.Title
}

// Snapshot returns a copy safe to read without holding the lock
func (j *Job) Snapshot() types.JobRecord {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var meta *types.VideoMetadata
	if j.metadata != nil {
		m := *j.metadata
		meta = &m
	}
	segments := make([]types.Segment, len(j.transcriptSegments))
	copy(segments, j.transcriptSegments)

	return types.JobRecord{
		ID:                 j.id,
		URL:                j.url,
		Status:             j.status,
		Progress:           j.progress,
		StageDetail:        j.stageDetail,
		Metadata:           meta,
		TranscriptText:     j.transcriptText,
		TranscriptSegments: segments,
		TranscriptLanguage: j.transcriptLanguage,
		Summary:            j.summary,
		Error:              j.errMsg,
		CreatedAt:          j.createdAt,
		CreatedBy:          j.createdBy,
		DownloadTime:       j.downloadTime,
		TranscribeTime:     j.transcribeTime,
		SummarizeTime:      j.summarizeTime,
		WhisperModel:       j.whisperModel,
		SummarizerModel:    j.summarizerModel,
	}
}

// SetCreatedBy records who submitted the job
func (j *Job) SetCreatedBy(name string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.status.IsTerminal() {
		j.createdBy = name
	}
}

// StartStage moves the job to status and resets progress and detail in one step,
// so readers never observe the new status with the previous stage's progress.
func (j *Job) StartStage(status types.Status, progress int, detail string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.transitionLocked(status); err != nil {
		return err
	}
	j.progress = clampProgress(progress)
	j.stageDetail = detail
	return nil
}

// SetProgress updates progress within the current stage
func (j *Job) SetProgress(progress int, detail string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.IsTerminal() {
		return
	}
	j.progress = clampProgress(progress)
	j.stageDetail = detail
}

// Confirm attaches metadata and moves fetching_metadata -> confirmed.
// Metadata can be set only once.
func (j *Job) Confirm(meta types.VideoMetadata) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.metadata != nil {
		return fmt.Errorf("job %s: metadata already set", j.id)
	}
	if err := j.transitionLocked(types.StatusConfirmed); err != nil {
		return err
	}
	j.metadata = &meta
	return nil
}

// SetTranscript stores the transcription stage result
func (j *Job) SetTranscript(result *types.TranscriptionResult, model string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.IsTerminal() {
		return
	}
	j.transcriptText = result.Text
	j.transcriptSegments = result.Segments
	j.transcriptLanguage = result.Language
	j.whisperModel = model
}

// SetSummary stores the summarization stage result
func (j *Job) SetSummary(summary, model string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.IsTerminal() {
		return
	}
	j.summary = summary
	j.summarizerModel = model
}

// SetStageTime records how long a stage took
func (j *Job) SetStageTime(stage types.Status, elapsed time.Duration) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.IsTerminal() {
		return
	}
	seconds := elapsed.Seconds()
	switch stage {
	case types.StatusDownloading:
		j.downloadTime = seconds
	case types.StatusTranscribing:
		j.transcribeTime = seconds
	case types.StatusSummarizing:
		j.summarizeTime = seconds
	}
}

// Complete moves summarizing -> completed
func (j *Job) Complete() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionLocked(types.StatusCompleted); err != nil {
		return err
	}
	j.progress = 100
	return nil
}

// Fail moves any started, non-terminal job to failed with a reason
func (j *Job) Fail(reason string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionLocked(types.StatusFailed); err != nil {
		return err
	}
	j.errMsg = reason
	return nil
}

// transitionLocked enforces the job state machine. Caller holds j.mu.
func (j *Job) transitionLocked(to types.Status) error {
	if j.status.IsTerminal() {
		return ErrJobTerminal
	}
	if !isValidTransition(j.status, to) {
		return fmt.Errorf("invalid transition: %s -> %s", j.status, to)
	}
	j.status = to
	return nil
}

// isValidTransition allows the next status in order, or failed from any started stage
func isValidTransition(from, to types.Status) bool {
	if from.IsTerminal() {
		return false
	}
	if to == types.StatusFailed {
		return from != types.StatusPending
	}
	for i, s := range statusOrder[:len(statusOrder)-1] {
		if s == from {
			return statusOrder[i+1] == to
		}
	}
	return false
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
