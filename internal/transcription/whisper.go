package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/codebuildervaibhav/video-summarize/internal/executor"
	"github.com/codebuildervaibhav/video-summarize/internal/types"
)

// average seconds of audio per emitted segment, used only for progress estimates
const secondsPerSegment = 4

// Engine is a loaded speech-recognition model
type Engine interface {
	// Transcribe calls onSegment for every segment in order and returns the detected language.
	Transcribe(ctx context.Context, audioPath string, onSegment func(types.Segment)) (string, error)
}

// ModelFactory loads a model of the given size and numeric precision
type ModelFactory func(model, computeType string) (Engine, error)

// WhisperTranscriber runs a lazily loaded whisper model shared by all jobs
type WhisperTranscriber struct {
	modelName   string
	computeType string
	factory     ModelFactory

	mu     sync.Mutex
	engine Engine
}

// NewWhisperTranscriber creates a transcriber; the model loads on first use
func NewWhisperTranscriber(modelName, computeType string, factory ModelFactory) *WhisperTranscriber {
	return &WhisperTranscriber{
		modelName:   modelName,
		computeType: computeType,
		factory:     factory,
	}
}

func (wt *WhisperTranscriber) ModelName() string { return wt.modelName }

// model loads the engine at most once, even under concurrent first use
func (wt *WhisperTranscriber) model() (Engine, error) {
	wt.mu.Lock()
	defer wt.mu.Unlock()

	if wt.engine != nil {
		return wt.engine, nil
	}
	slog.Info("loading whisper model",
		slog.String("model", wt.modelName),
		slog.String("compute_type", wt.computeType))
	engine, err := wt.factory(wt.modelName, wt.computeType)
	if err != nil {
		return nil, fmt.Errorf("load whisper model %s: %w", wt.modelName, err)
	}
	wt.engine = engine
	return engine, nil
}

// Transcribe processes a 16kHz mono WAV and reports (segments done, estimated total) per segment
func (wt *WhisperTranscriber) Transcribe(ctx context.Context, audioPath string, onProgress func(done, total int)) (*types.TranscriptionResult, error) {
	engine, err := wt.model()
	if err != nil {
		return nil, err
	}

	var duration float64
	if info, err := InspectWAV(audioPath); err != nil {
		slog.Warn("cannot read audio duration", slog.String("path", audioPath), slog.Any("error", err))
	} else {
		duration = info.Duration.Seconds()
	}
	estimated := max(int(duration/secondsPerSegment), 1)

	var (
		segments []types.Segment
		parts    []string
	)
	language, err := engine.Transcribe(ctx, audioPath, func(seg types.Segment) {
		seg.Text = strings.TrimSpace(seg.Text)
		segments = append(segments, seg)
		parts = append(parts, seg.Text)
		if onProgress != nil {
			onProgress(len(segments), estimated)
		}
	})
	if err != nil {
		return nil, err
	}

	slog.Info("transcription completed",
		slog.Int("segments", len(segments)),
		slog.Float64("duration", duration),
		slog.String("language", language))

	return &types.TranscriptionResult{
		Text:     strings.Join(parts, " "),
		Language: language,
		Duration: duration,
		Segments: segments,
	}, nil
}

// CLIEngine drives faster-whisper through the whisper-ctranslate2 command line
type CLIEngine struct {
	runner      executor.Runner
	binary      string
	model       string
	computeType string
	tempDir     string
}

// NewCLIFactory returns a ModelFactory that checks binary is installed and
// streams segments from its verbose output
func NewCLIFactory(runner executor.Runner, binary, tempDir string) ModelFactory {
	return func(model, computeType string) (Engine, error) {
		if _, err := exec.LookPath(binary); err != nil {
			return nil, fmt.Errorf("%s not found: %w", binary, err)
		}
		return &CLIEngine{
			runner:      runner,
			binary:      binary,
			model:       model,
			computeType: computeType,
			tempDir:     tempDir,
		}, nil
	}
}

// [00:01.000 --> 00:04.500]  text   or   [01:00:01.000 --> 01:00:04.500]  text
var segmentLine = regexp.MustCompile(`^\[((?:\d+:)?\d+:\d+\.\d+) --> ((?:\d+:)?\d+:\d+\.\d+)\]\s*(.*)$`)

func (e *CLIEngine) Transcribe(ctx context.Context, audioPath string, onSegment func(types.Segment)) (string, error) {
	if err := os.MkdirAll(e.tempDir, 0755); err != nil {
		return "", err
	}
	outDir, err := os.MkdirTemp(e.tempDir, "whisper-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(outDir)

	streamed := 0
	err = e.runner.Stream(ctx, func(line string) {
		if seg, ok := parseSegmentLine(line); ok {
			streamed++
			onSegment(seg)
		}
	}, e.binary,
		audioPath,
		"--model", e.model,
		"--compute_type", e.computeType,
		"--device", "cpu",
		"--beam_size", "5",
		"--vad_filter", "True",
		"--output_dir", outDir,
		"--output_format", "json",
		"--verbose", "True",
	)
	if err != nil {
		return "", fmt.Errorf("whisper transcription failed: %w", err)
	}

	baseName := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	out, err := readWhisperOutput(filepath.Join(outDir, baseName+".json"))
	if err != nil {
		return "", err
	}

	// older builds print nothing per segment; take them from the JSON instead
	if streamed == 0 {
		for _, seg := range out.Segments {
			onSegment(types.Segment{Start: seg.Start, End: seg.End, Text: seg.Text})
		}
	}
	return out.Language, nil
}

// WhisperOutput matches the JSON output format
type WhisperOutput struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Segments []WhisperSegment `json:"segments"`
}

// WhisperSegment represents a timestamped segment from Whisper
type WhisperSegment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

func readWhisperOutput(path string) (*WhisperOutput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read whisper output: %w", err)
	}
	var out WhisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse whisper JSON: %w", err)
	}
	return &out, nil
}

func parseSegmentLine(line string) (types.Segment, bool) {
	m := segmentLine.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return types.Segment{}, false
	}
	start, err1 := parseTimestamp(m[1])
	end, err2 := parseTimestamp(m[2])
	if err1 != nil || err2 != nil {
		return types.Segment{}, false
	}
	return types.Segment{Start: start, End: end, Text: m[3]}, true
}

// parseTimestamp converts [hh:]mm:ss.mmm to seconds
func parseTimestamp(s string) (float64, error) {
	parts := strings.Split(s, ":")
	var total float64
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return 0, err
		}
		total = total*60 + v
	}
	return total, nil
}
