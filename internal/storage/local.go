package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/codebuildervaibhav/video-summarize/internal/types"
)

// LocalExporter writes completed summaries to the local filesystem as markdown
type LocalExporter struct {
	outputDir string
}

// NewLocalExporter creates a new local exporter rooted at outputDir
func NewLocalExporter(outputDir string) *LocalExporter {
	return &LocalExporter{
		outputDir: outputDir,
	}
}

func (le *LocalExporter) Name() string { return "local" }

// Export saves <stamp>_<title>.md and a _meta.json sidecar under a dated directory
func (le *LocalExporter) Export(_ context.Context, rec *types.JobRecord) error {
	// outputs/2025/01/23/
	now := time.Now()
	dateDir := filepath.Join(le.outputDir,
		fmt.Sprintf("%d", now.Year()),
		fmt.Sprintf("%02d", now.Month()),
		fmt.Sprintf("%02d", now.Day()))

	if err := os.MkdirAll(dateDir, 0755); err != nil {
		return fmt.Errorf("failed to create date directory: %w", err)
	}

	baseFilename := exportBaseName(now, rec)
	mdPath := filepath.Join(dateDir, baseFilename+".md")
	metaPath := filepath.Join(dateDir, baseFilename+"_meta.json")

	if err := os.WriteFile(mdPath, []byte(RenderMarkdown(rec)), 0644); err != nil {
		return fmt.Errorf("failed to save summary: %w", err)
	}

	metaJSON, err := exportMetadata(rec)
	if err != nil {
		return err
	}
	if err := os.WriteFile(metaPath, metaJSON, 0644); err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}
	return nil
}

// RenderMarkdown formats a completed job as a standalone markdown document
func RenderMarkdown(rec *types.JobRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", rec.Title())
	if m := rec.Metadata; m != nil {
		if m.Channel != "" {
			fmt.Fprintf(&b, "- Channel: %s\n", m.Channel)
		}
		fmt.Fprintf(&b, "- Duration: %s\n", m.DurationString())
	}
	fmt.Fprintf(&b, "- Source: %s\n", rec.URL)
	fmt.Fprintf(&b, "- Words: %d\n\n", rec.WordCount())

	b.WriteString("## Summary\n\n")
	b.WriteString(strings.TrimSpace(rec.Summary))
	b.WriteString("\n\n## Transcript\n\n")
	for _, seg := range rec.TranscriptSegments {
		fmt.Fprintf(&b, "**[%s]** %s\n\n", seg.StartString(), seg.Text)
	}
	return b.String()
}

func exportMetadata(rec *types.JobRecord) ([]byte, error) {
	metadata := map[string]interface{}{
		"job_id":           rec.ID,
		"url":              rec.URL,
		"title":            rec.Title(),
		"language":         rec.TranscriptLanguage,
		"word_count":       rec.WordCount(),
		"whisper_model":    rec.WhisperModel,
		"summarizer_model": rec.SummarizerModel,
		"total_time":       rec.TotalTime(),
		"created_at":       rec.CreatedAt,
		"created_by":       rec.CreatedBy,
	}
	if rec.Metadata != nil {
		metadata["duration_seconds"] = rec.Metadata.Duration
		metadata["channel"] = rec.Metadata.Channel
	}
	metaJSON, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return metaJSON, nil
}

// exportBaseName builds 20250123_143022_<title>
func exportBaseName(now time.Time, rec *types.JobRecord) string {
	return fmt.Sprintf("%s_%s", now.Format("20060102_150405"), sanitizeFilename(rec.Title()))
}

// sanitizeFilename replaces characters that are invalid in file names
func sanitizeFilename(name string) string {
	result := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 32 {
			return -1
		}
		return r
	}, strings.TrimSpace(name))
	if runes := []rune(result); len(runes) > 100 {
		result = string(runes[:100])
	}
	if result == "" {
		result = "untitled"
	}
	return result
}
