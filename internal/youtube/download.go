package youtube

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/codebuildervaibhav/video-summarize/internal/transcription"
	"github.com/codebuildervaibhav/video-summarize/internal/types"
)

// FetchAudio downloads the best audio stream into dir as <id>.wav, 16kHz mono.
// It returns types.ErrDownload when the expected file does not exist afterwards.
func (c *Client) FetchAudio(ctx context.Context, url, dir string) (string, error) {
	if err := ValidateURL(url); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}

	slog.Info("downloading audio", slog.String("url", url), slog.String("dir", dir))
	args := []string{
		"-f", "bestaudio/best",
		"-x",
		"--audio-format", "wav",
		"--postprocessor-args", "ffmpeg:-ar 16000 -ac 1",
		"-o", filepath.Join(dir, "%(id)s.%(ext)s"),
		"--no-playlist",
		"--no-warnings",
		"--print", "after_move:id",
		"--no-simulate",
	}
	// a bare name is resolved through PATH by yt-dlp itself
	if strings.ContainsRune(c.opts.FFmpeg, os.PathSeparator) {
		args = append(args, "--ffmpeg-location", c.opts.FFmpeg)
	}
	out, err := c.runner.Run(ctx, c.opts.YtDlp, append(args, url)...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrUpstream, err)
	}

	id := lastLine(out)
	if id == "" {
		id = VideoID(url)
	}
	wavPath := filepath.Join(dir, id+".wav")
	if _, err := os.Stat(wavPath); err != nil {
		return "", fmt.Errorf("%w: %s not found", types.ErrDownload, wavPath)
	}

	if err := transcription.EnsureNormalized(ctx, c.runner, c.opts.FFmpeg, wavPath); err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrUpstream, err)
	}
	return wavPath, nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
