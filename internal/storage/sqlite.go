package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/codebuildervaibhav/video-summarize/internal/types"
)

// SQLiteStore keeps completed jobs in a local SQLite file
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at dbPath and migrates it
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection serializes writers
	db.SetMaxOpenConns(1)

	createTableSQL := `
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
		created_at REAL
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);
	`
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// migrate appends any columns missing from older databases
func (s *SQLiteStore) migrate() error {
	rows, err := s.db.Query("PRAGMA table_info(jobs)")
	if err != nil {
		return fmt.Errorf("failed to inspect jobs table: %w", err)
	}
	existing := make(map[string]bool)
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, typ        string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			rows.Close()
			return fmt.Errorf("failed to read table info: %w", err)
		}
		existing[name] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, col := range columnMigrations {
		if existing[col.name] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE jobs ADD COLUMN %s %s", col.name, col.sqliteType)
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to add column %s: %w", col.name, err)
		}
	}
	return nil
}

// Save inserts or replaces the job's row
func (s *SQLiteStore) Save(ctx context.Context, rec *types.JobRecord) error {
	r, err := toRow(rec)
	if err != nil {
		return err
	}

	query := `
	INSERT OR REPLACE INTO jobs
		(id, url, title, channel, thumbnail, duration, upload_date,
		 transcript_text, transcript_segments, transcript_language, summary, created_at,
		 download_time, transcribe_time, summarize_time, whisper_model, summarizer_model,
		 created_by)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		r.ID, r.URL, r.Title, r.Channel, r.Thumbnail, r.Duration, r.UploadDate,
		r.TranscriptText, r.TranscriptSegments, r.TranscriptLanguage, r.Summary, r.CreatedAt,
		r.DownloadTime, r.TranscribeTime, r.SummarizeTime, r.WhisperModel, r.SummarizerModel,
		r.CreatedBy)
	if err != nil {
		return fmt.Errorf("failed to save job %s: %w", rec.ID, err)
	}
	return nil
}

// Load returns the stored job, or types.ErrNotFound
func (s *SQLiteStore) Load(ctx context.Context, id string) (*types.JobRecord, error) {
	query := `
	SELECT id, url, COALESCE(title, ''), COALESCE(channel, ''), COALESCE(thumbnail, ''),
		COALESCE(duration, 0), COALESCE(upload_date, ''), COALESCE(transcript_text, ''),
		COALESCE(transcript_segments, ''), COALESCE(transcript_language, ''), COALESCE(summary, ''),
		COALESCE(created_at, 0), COALESCE(download_time, 0), COALESCE(transcribe_time, 0),
		COALESCE(summarize_time, 0), COALESCE(whisper_model, ''), COALESCE(summarizer_model, ''),
		COALESCE(created_by, '')
	FROM jobs WHERE id = ?
	`
	var r row
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&r.ID, &r.URL, &r.Title, &r.Channel, &r.Thumbnail,
		&r.Duration, &r.UploadDate, &r.TranscriptText,
		&r.TranscriptSegments, &r.TranscriptLanguage, &r.Summary,
		&r.CreatedAt, &r.DownloadTime, &r.TranscribeTime,
		&r.SummarizeTime, &r.WhisperModel, &r.SummarizerModel,
		&r.CreatedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", id, err)
	}
	return r.toRecord()
}

// List returns history projections, newest first
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]types.HistoryEntry, error) {
	query := `
	SELECT id, COALESCE(title, ''), COALESCE(channel, ''), COALESCE(thumbnail, ''),
		COALESCE(duration, 0), COALESCE(created_at, 0), COALESCE(created_by, '')
	FROM jobs ORDER BY created_at DESC LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	entries := []types.HistoryEntry{}
	for rows.Next() {
		var (
			e         types.HistoryEntry
			createdAt float64
		)
		if err := rows.Scan(&e.ID, &e.Title, &e.Channel, &e.Thumbnail, &e.Duration, &createdAt, &e.CreatedBy); err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		e.CreatedAt = fromUnix(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
