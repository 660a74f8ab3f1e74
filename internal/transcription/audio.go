package transcription

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-audio/wav"

	"github.com/codebuildervaibhav/video-summarize/internal/executor"
)

// Format every stage downstream of the download expects
const (
	TargetSampleRate = 16000
	TargetChannels   = 1
)

// AudioInfo is what the WAV header says about a file
type AudioInfo struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   time.Duration
}

// IsNormalized reports whether the file is already 16kHz mono
func (a AudioInfo) IsNormalized() bool {
	return a.SampleRate == TargetSampleRate && a.Channels == TargetChannels
}

// InspectWAV reads the header of a WAV file
func InspectWAV(path string) (*AudioInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%s: not a valid WAV file", path)
	}
	dur, err := d.Duration()
	if err != nil {
		return nil, fmt.Errorf("%s: read duration: %w", path, err)
	}
	return &AudioInfo{
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
		BitDepth:   int(d.BitDepth),
		Duration:   dur,
	}, nil
}

// NormalizeAudio converts any audio file to 16kHz mono 16-bit PCM WAV at outputPath
func NormalizeAudio(ctx context.Context, runner executor.Runner, ffmpeg, inputPath, outputPath string) error {
	_, err := runner.Run(ctx, ffmpeg,
		"-i", inputPath,
		"-ar", "16000",
		"-ac", "1",
		"-c:a", "pcm_s16le",
		"-y",
		outputPath,
	)
	if err != nil {
		return fmt.Errorf("ffmpeg failed: %w", err)
	}
	return nil
}

// EnsureNormalized re-encodes path in place unless it is already 16kHz mono
func EnsureNormalized(ctx context.Context, runner executor.Runner, ffmpeg, path string) error {
	info, err := InspectWAV(path)
	if err == nil && info.IsNormalized() {
		return nil
	}
	if err != nil {
		slog.Warn("audio header unreadable, re-encoding", slog.String("path", path), slog.Any("error", err))
	} else {
		slog.Info("re-encoding audio",
			slog.String("path", path),
			slog.Int("sample_rate", info.SampleRate),
			slog.Int("channels", info.Channels))
	}

	tmp := path + ".norm.wav"
	if err := NormalizeAudio(ctx, runner, ffmpeg, path, tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
