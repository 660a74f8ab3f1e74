package types

import (
	"fmt"
	"strings"
	"time"
)

// Status is a job lifecycle state
type Status string

// Job status constants, in lifecycle order
const (
	StatusPending          Status = "pending"
	StatusFetchingMetadata Status = "fetching_metadata"
	StatusConfirmed        Status = "confirmed"
	StatusDownloading      Status = "downloading"
	StatusTranscribing     Status = "transcribing"
	StatusSummarizing      Status = "summarizing"
	StatusCompleted        Status = "completed"
	StatusFailed           Status = "failed"
)

// IsTerminal reports whether no further transitions are allowed
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// VideoMetadata describes a video without its media
type VideoMetadata struct {
	VideoID    string `json:"video_id"`
	Title      string `json:"title"`
	Thumbnail  string `json:"thumbnail"`
	Duration   int    `json:"duration"` // seconds
	Channel    string `json:"channel"`
	UploadDate string `json:"upload_date"`
}

// DurationString formats the duration as m:ss or h:mm:ss
func (m VideoMetadata) DurationString() string {
	return formatClock(m.Duration)
}

// Segment represents a timestamped segment of transcription
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

func (s Segment) StartString() string { return formatClock(int(s.Start)) }
func (s Segment) EndString() string   { return formatClock(int(s.End)) }

// TranscriptionResult represents the output from Whisper
type TranscriptionResult struct {
	Text     string
	Language string
	Duration float64
	Segments []Segment
}

// HistoryEntry is the lightweight projection used for history listings
type HistoryEntry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Channel   string    `json:"channel"`
	Thumbnail string    `json:"thumbnail"`
	Duration  int       `json:"duration"`
	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by"`
}

// JobEvent is what status streams emit
type JobEvent struct {
	Status      Status `json:"status"`
	Progress    int    `json:"progress"`
	StageDetail string `json:"stage_detail"`
	Error       string `json:"error"`
}

func formatClock(seconds int) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// JobRecord is a point-in-time copy of a job, used by readers and the durable store
type JobRecord struct {
	ID                 string         `json:"id"`
	URL                string         `json:"url"`
	Status             Status         `json:"status"`
	Progress           int            `json:"progress"`
	StageDetail        string         `json:"stage_detail"`
	Metadata           *VideoMetadata `json:"metadata,omitempty"`
	TranscriptText     string         `json:"transcript_text"`
	TranscriptSegments []Segment      `json:"transcript_segments"`
	TranscriptLanguage string         `json:"transcript_language"`
	Summary            string         `json:"summary"`
	Error              string         `json:"error"`
	CreatedAt          time.Time      `json:"created_at"`
	CreatedBy          string         `json:"created_by"`
	DownloadTime       float64        `json:"download_time"`
	TranscribeTime     float64        `json:"transcribe_time"`
	SummarizeTime      float64        `json:"summarize_time"`
	WhisperModel       string         `json:"whisper_model"`
	SummarizerModel    string         `json:"summarizer_model"`
}

// TotalTime is the sum of the per-stage elapsed seconds
func (r *JobRecord) TotalTime() float64 {
	return r.DownloadTime + r.TranscribeTime + r.SummarizeTime
}

// WordCount counts whitespace-separated words in the transcript
func (r *JobRecord) WordCount() int {
	return len(strings.Fields(r.TranscriptText))
}

// Title returns the video title, or "Unknown" when metadata is absent
func (r *JobRecord) Title() string {
	if r.Metadata == nil || r.Metadata.Title == "" {
		return "Unknown"
	}
	return r.Metadata.Title
}

// Event projects the fields status streams report
func (r *JobRecord) Event() JobEvent {
	return JobEvent{
		Status:      r.Status,
		Progress:    r.Progress,
		StageDetail: r.StageDetail,
		Error:       r.Error,
	}
}
