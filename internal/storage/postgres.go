package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codebuildervaibhav/video-summarize/internal/types"
)

// PostgresStore keeps completed jobs in PostgreSQL
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects a pgx pool and migrates the jobs table
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	config.MaxConns = 5
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.Info("postgres job store connected", slog.String("addr", config.ConnConfig.Host))
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		title TEXT,
		channel TEXT,
		thumbnail TEXT,
		duration INTEGER,
		upload_date TEXT,
		transcript_text TEXT,
		transcript_segments TEXT,
		transcript_language TEXT,
		summary TEXT,
		created_at DOUBLE PRECISION
	)`)
	if err != nil {
		return fmt.Errorf("create jobs table: %w", err)
	}
	if _, err := s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at)`); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	for _, col := range columnMigrations {
		stmt := fmt.Sprintf("ALTER TABLE jobs ADD COLUMN IF NOT EXISTS %s %s", col.name, col.pgType)
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("add column %s: %w", col.name, err)
		}
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, rec *types.JobRecord) error {
	r, err := toRow(rec)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
	INSERT INTO jobs
		(id, url, title, channel, thumbnail, duration, upload_date,
		 transcript_text, transcript_segments, transcript_language, summary, created_at,
		 download_time, transcribe_time, summarize_time, whisper_model, summarizer_model,
		 created_by)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	ON CONFLICT (id) DO UPDATE SET
		url = EXCLUDED.url, title = EXCLUDED.title, channel = EXCLUDED.channel,
		thumbnail = EXCLUDED.thumbnail, duration = EXCLUDED.duration,
		upload_date = EXCLUDED.upload_date, transcript_text = EXCLUDED.transcript_text,
		transcript_segments = EXCLUDED.transcript_segments,
		transcript_language = EXCLUDED.transcript_language, summary = EXCLUDED.summary,
		created_at = EXCLUDED.created_at, download_time = EXCLUDED.download_time,
		transcribe_time = EXCLUDED.transcribe_time, summarize_time = EXCLUDED.summarize_time,
		whisper_model = EXCLUDED.whisper_model, summarizer_model = EXCLUDED.summarizer_model,
		created_by = EXCLUDED.created_by`,
		r.ID, r.URL, r.Title, r.Channel, r.Thumbnail, r.Duration, r.UploadDate,
		r.TranscriptText, r.TranscriptSegments, r.TranscriptLanguage, r.Summary, r.CreatedAt,
		r.DownloadTime, r.TranscribeTime, r.SummarizeTime, r.WhisperModel, r.SummarizerModel,
		r.CreatedBy)
	if err != nil {
		return fmt.Errorf("save job %s: %w", rec.ID, err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, id string) (*types.JobRecord, error) {
	var r row
	err := s.pool.QueryRow(ctx, `
	SELECT id, url, COALESCE(title, ''), COALESCE(channel, ''), COALESCE(thumbnail, ''),
		COALESCE(duration, 0), COALESCE(upload_date, ''), COALESCE(transcript_text, ''),
		COALESCE(transcript_segments, ''), COALESCE(transcript_language, ''), COALESCE(summary, ''),
		COALESCE(created_at, 0), COALESCE(download_time, 0), COALESCE(transcribe_time, 0),
		COALESCE(summarize_time, 0), COALESCE(whisper_model, ''), COALESCE(summarizer_model, ''),
		COALESCE(created_by, '')
	FROM jobs WHERE id = $1`, id).Scan(
		&r.ID, &r.URL, &r.Title, &r.Channel, &r.Thumbnail,
		&r.Duration, &r.UploadDate, &r.TranscriptText,
		&r.TranscriptSegments, &r.TranscriptLanguage, &r.Summary,
		&r.CreatedAt, &r.DownloadTime, &r.TranscribeTime,
		&r.SummarizeTime, &r.WhisperModel, &r.SummarizerModel,
		&r.CreatedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", id, err)
	}
	return r.toRecord()
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]types.HistoryEntry, error) {
	rows, err := s.pool.Query(ctx, `
	SELECT id, COALESCE(title, ''), COALESCE(channel, ''), COALESCE(thumbnail, ''),
		COALESCE(duration, 0), COALESCE(created_at, 0), COALESCE(created_by, '')
	FROM jobs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	entries := []types.HistoryEntry{}
	for rows.Next() {
		var (
			e         types.HistoryEntry
			createdAt float64
		)
		if err := rows.Scan(&e.ID, &e.Title, &e.Channel, &e.Thumbnail, &e.Duration, &createdAt, &e.CreatedBy); err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		e.CreatedAt = fromUnix(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
