package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/codebuildervaibhav/video-summarize/internal/types"
)

// DefaultHistoryLimit bounds History when the caller passes no limit
const DefaultHistoryLimit = 20

// MetadataFetcher validates a URL and looks up its video metadata
type MetadataFetcher interface {
	Validate(url string) error
	FetchMetadata(ctx context.Context, url string) (*types.VideoMetadata, error)
}

// RecordReader is the durable store's read side
type RecordReader interface {
	Load(ctx context.Context, id string) (*types.JobRecord, error)
	List(ctx context.Context, limit int) ([]types.HistoryEntry, error)
}

// Manager ties together the live store, the worker pool and the durable store
type Manager struct {
	store    *Store
	pool     *WorkerPool
	metadata MetadataFetcher
	records  RecordReader
}

func NewManager(store *Store, pool *WorkerPool, metadata MetadataFetcher, records RecordReader) *Manager {
	return &Manager{store: store, pool: pool, metadata: metadata, records: records}
}

func (m *Manager) Store() *Store { return m.store }

// Submit validates url, creates a job, fetches its metadata and queues it.
// Invalid URLs return types.ErrInvalidInput and create no job. A metadata
// failure returns the (failed) job together with the error.
func (m *Manager) Submit(ctx context.Context, url, createdBy string) (*Job, error) {
	if err := m.metadata.Validate(url); err != nil {
		return nil, err
	}

	job := m.store.Create(url)
	job.SetCreatedBy(createdBy)
	log := slog.With(slog.String("job", job.ID()))

	if err := job.StartStage(types.StatusFetchingMetadata, 0, "Fetching video info..."); err != nil {
		return job, err
	}
	meta, err := m.metadata.FetchMetadata(ctx, url)
	if err != nil {
		log.Warn("metadata fetch failed", slog.Any("error", err))
		_ = job.Fail(fmt.Sprintf("Failed to fetch metadata: %v", err))
		return job, err
	}
	if err := job.Confirm(*meta); err != nil {
		return job, err
	}

	if err := m.pool.Submit(job); err != nil {
		_ = job.Fail(err.Error())
		return job, err
	}
	log.Info("job confirmed", slog.String("title", meta.Title))
	return job, nil
}

// Lookup returns the live job if present, else the durable record
func (m *Manager) Lookup(ctx context.Context, id string) (*types.JobRecord, error) {
	if job, ok := m.store.Get(id); ok {
		snap := job.Snapshot()
		return &snap, nil
	}
	if m.records == nil {
		return nil, types.ErrNotFound
	}
	rec, err := m.records.Load(ctx, id)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("load job %s: %w", id, err)
	}
	return rec, nil
}

// History lists completed jobs newest-first, at most limit entries
func (m *Manager) History(ctx context.Context, limit int) ([]types.HistoryEntry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if m.records == nil {
		return []types.HistoryEntry{}, nil
	}
	return m.records.List(ctx, limit)
}
