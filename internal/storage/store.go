package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/codebuildervaibhav/video-summarize/internal/config"
	"github.com/codebuildervaibhav/video-summarize/internal/types"
)

// JobStore is the durable tier of the job store, keyed by job id
type JobStore interface {
	Save(ctx context.Context, rec *types.JobRecord) error
	Load(ctx context.Context, id string) (*types.JobRecord, error)
	List(ctx context.Context, limit int) ([]types.HistoryEntry, error)
	Close() error
}

// Open returns the durable store selected by cfg.Driver
func Open(ctx context.Context, cfg config.StorageConfig) (JobStore, error) {
	switch cfg.Driver {
	case "postgres":
		return NewPostgresStore(ctx, cfg.DatabaseURL)
	case "sqlite", "":
		return NewSQLiteStore(filepath.Join(cfg.DataDir, "jobs.db"))
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// columnMigrations are the columns added after the first schema, in order.
// Both drivers append any that are missing on startup.
var columnMigrations = []struct {
	name       string
	sqliteType string
	pgType     string
}{
	{"download_time", "REAL DEFAULT 0", "DOUBLE PRECISION DEFAULT 0"},
	{"transcribe_time", "REAL DEFAULT 0", "DOUBLE PRECISION DEFAULT 0"},
	{"summarize_time", "REAL DEFAULT 0", "DOUBLE PRECISION DEFAULT 0"},
	{"whisper_model", "TEXT DEFAULT ''", "TEXT DEFAULT ''"},
	{"summarizer_model", "TEXT DEFAULT ''", "TEXT DEFAULT ''"},
	{"created_by", "TEXT DEFAULT ''", "TEXT DEFAULT ''"},
}

// row is the flat column layout shared by both drivers
type row struct {
	ID                 string
	URL                string
	Title              string
	Channel            string
	Thumbnail          string
	Duration           int
	UploadDate         string
	TranscriptText     string
	TranscriptSegments string
	TranscriptLanguage string
	Summary            string
	CreatedAt          float64 // unix seconds
	DownloadTime       float64
	TranscribeTime     float64
	SummarizeTime      float64
	WhisperModel       string
	SummarizerModel    string
	CreatedBy          string
}

func toRow(rec *types.JobRecord) (row, error) {
	segments := rec.TranscriptSegments
	if segments == nil {
		segments = []types.Segment{}
	}
	segJSON, err := json.Marshal(segments)
	if err != nil {
		return row{}, fmt.Errorf("encode segments: %w", err)
	}
	r := row{
		ID:                 rec.ID,
		URL:                rec.URL,
		TranscriptText:     rec.TranscriptText,
		TranscriptSegments: string(segJSON),
		TranscriptLanguage: rec.TranscriptLanguage,
		Summary:            rec.Summary,
		CreatedAt:          toUnix(rec.CreatedAt),
		DownloadTime:       rec.DownloadTime,
		TranscribeTime:     rec.TranscribeTime,
		SummarizeTime:      rec.SummarizeTime,
		WhisperModel:       rec.WhisperModel,
		SummarizerModel:    rec.SummarizerModel,
		CreatedBy:          rec.CreatedBy,
	}
	if m := rec.Metadata; m != nil {
		r.Title = m.Title
		r.Channel = m.Channel
		r.Thumbnail = m.Thumbnail
		r.Duration = m.Duration
		r.UploadDate = m.UploadDate
	}
	return r, nil
}

// toRecord rebuilds a completed job. Rows without a title carry no metadata.
func (r row) toRecord() (*types.JobRecord, error) {
	var segments []types.Segment
	if r.TranscriptSegments != "" {
		if err := json.Unmarshal([]byte(r.TranscriptSegments), &segments); err != nil {
			return nil, fmt.Errorf("decode segments for %s: %w", r.ID, err)
		}
	}
	if segments == nil {
		segments = []types.Segment{}
	}
	rec := &types.JobRecord{
		ID:                 r.ID,
		URL:                r.URL,
		Status:             types.StatusCompleted,
		Progress:           100,
		TranscriptText:     r.TranscriptText,
		TranscriptSegments: segments,
		TranscriptLanguage: r.TranscriptLanguage,
		Summary:            r.Summary,
		CreatedAt:          fromUnix(r.CreatedAt),
		CreatedBy:          r.CreatedBy,
		DownloadTime:       r.DownloadTime,
		TranscribeTime:     r.TranscribeTime,
		SummarizeTime:      r.SummarizeTime,
		WhisperModel:       r.WhisperModel,
		SummarizerModel:    r.SummarizerModel,
	}
	if r.Title != "" {
		rec.Metadata = &types.VideoMetadata{
			VideoID:    r.ID,
			Title:      r.Title,
			Channel:    r.Channel,
			Thumbnail:  r.Thumbnail,
			Duration:   r.Duration,
			UploadDate: r.UploadDate,
		}
	}
	return rec, nil
}

func toUnix(t time.Time) float64 {
	if t.IsZero() {
		t = time.Now()
	}
	return float64(t.UnixNano()) / 1e9
}

func fromUnix(sec float64) time.Time {
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*1e9))
}
