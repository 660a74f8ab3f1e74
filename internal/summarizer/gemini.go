package summarizer

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/codebuildervaibhav/video-summarize/internal/config"
)

func newGemini(ctx context.Context, cfg config.SummarizerConfig) (Summarizer, error) {
	return newGeminiBackend(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, genai.HTTPOptions{})
}

func newGeminiBackend(ctx context.Context, apiKey, model string, httpOpts genai.HTTPOptions) (*backend, error) {
	b := &backend{name: "gemini", model: model}
	if apiKey == "" {
		// keep startup working without a key; calls fail like any other upstream error
		b.complete = func(context.Context, string, string) (string, error) { return "", errMissingKey }
		return b, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: httpOpts,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	b.complete = func(ctx context.Context, system, user string) (string, error) {
		// system and user text travel as a single prompt
		result, err := client.Models.GenerateContent(ctx, model, genai.Text(system+"\n\n"+user), nil)
		if err != nil {
			return "", fmt.Errorf("generate content: %w", err)
		}
		if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
			return "", errors.New("empty response from Gemini")
		}
		var text string
		for _, part := range result.Candidates[0].Content.Parts {
			if part.Text != "" {
				text += part.Text
			}
		}
		return text, nil
	}
	return b, nil
}
