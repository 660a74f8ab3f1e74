// Package summarizer turns transcripts into markdown summaries through one of
// several text-generation backends.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/codebuildervaibhav/video-summarize/internal/config"
)

const systemPrompt = `You are an expert at summarizing video content. Given a video transcript and title, produce a clear, well-structured summary.

Your summary should include:
1. **Overview**: A 2-3 sentence high-level summary of the video.
2. **Key Points**: The main points or arguments made, as a bulleted list.
3. **Details & Examples**: Notable details, examples, or quotes mentioned.
4. **Takeaways**: Key conclusions or actionable takeaways.

Use markdown formatting. Be concise but comprehensive. Do not include preamble like "Here is a summary"; just output the summary directly.`

const maxTokens = 4096

// Summarizer produces a markdown summary of a transcript
type Summarizer interface {
	Summarize(ctx context.Context, transcript, title string) (string, error)
	// Model identifies the backend model, for the job record
	Model() string
}

// UserPrompt is the message every backend sends alongside the system prompt
func UserPrompt(title, transcript string) string {
	return fmt.Sprintf("Video Title: %s\n\nTranscript:\n%s", title, transcript)
}

// completeFunc sends one system+user exchange and returns the reply text
type completeFunc func(ctx context.Context, system, user string) (string, error)

// backend adapts a completeFunc to Summarizer
type backend struct {
	name     string
	model    string
	complete completeFunc
}

func (b *backend) Model() string { return b.model }

func (b *backend) String() string { return b.name }

func (b *backend) Summarize(ctx context.Context, transcript, title string) (string, error) {
	out, err := b.complete(ctx, systemPrompt, UserPrompt(title, transcript))
	if err != nil {
		return "", fmt.Errorf("%s: %w", b.name, err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("%s: empty response", b.name)
	}
	return out, nil
}

type factory func(ctx context.Context, cfg config.SummarizerConfig) (Summarizer, error)

// backends maps configuration names to constructors
var backends = map[string]factory{
	"openrouter": newOpenRouter,
	"ollama":     newOllama,
	"claude":     newClaude,
	"gemini":     newGemini,
}

// New builds the configured summarizer, wrapped in a Fallback when a distinct
// fallback backend is named. Unknown names are an error.
func New(ctx context.Context, cfg config.SummarizerConfig) (Summarizer, error) {
	primary, err := build(ctx, cfg.Primary, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Fallback == "" || cfg.Fallback == cfg.Primary {
		slog.Info("summarizer ready", slog.String("backend", cfg.Primary), slog.String("model", primary.Model()))
		return primary, nil
	}

	secondary, err := build(ctx, cfg.Fallback, cfg)
	if err != nil {
		return nil, fmt.Errorf("fallback: %w", err)
	}
	slog.Info("summarizer ready",
		slog.String("backend", cfg.Primary),
		slog.String("model", primary.Model()),
		slog.String("fallback", cfg.Fallback))
	return NewFallback(primary, secondary), nil
}

func build(ctx context.Context, name string, cfg config.SummarizerConfig) (Summarizer, error) {
	f, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("unknown summarizer backend %q", name)
	}
	return f(ctx, cfg)
}

var errMissingKey = errors.New("API key not configured")
