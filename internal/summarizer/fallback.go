package summarizer

import (
	"context"
	"fmt"
	"log/slog"
)

// Fallback tries the primary backend and, if it fails, the secondary exactly once
type Fallback struct {
	primary   Summarizer
	secondary Summarizer
}

func NewFallback(primary, secondary Summarizer) *Fallback {
	return &Fallback{primary: primary, secondary: secondary}
}

// Model names both backends
func (f *Fallback) Model() string {
	return fmt.Sprintf("%s (fallback %s)", f.primary.Model(), f.secondary.Model())
}

func (f *Fallback) Summarize(ctx context.Context, transcript, title string) (string, error) {
	out, _, err := f.SummarizeWithModel(ctx, transcript, title)
	return out, err
}

// SummarizeWithModel also returns the model that produced the summary.
// A secondary failure is returned unchanged.
func (f *Fallback) SummarizeWithModel(ctx context.Context, transcript, title string) (string, string, error) {
	out, err := f.primary.Summarize(ctx, transcript, title)
	if err == nil {
		return out, f.primary.Model(), nil
	}

	slog.Warn("primary summarizer failed, falling back",
		slog.String("primary", f.primary.Model()),
		slog.String("fallback", f.secondary.Model()),
		slog.Any("error", err))

	out, err = f.secondary.Summarize(ctx, transcript, title)
	if err != nil {
		return "", "", err
	}
	return out, f.secondary.Model(), nil
}
