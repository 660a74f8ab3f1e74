package summarizer

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/codebuildervaibhav/video-summarize/internal/config"
)

func newClaude(_ context.Context, cfg config.SummarizerConfig) (Summarizer, error) {
	return newClaudeBackend(cfg.Claude.APIKey, cfg.Claude.Model), nil
}

func newClaudeBackend(apiKey, model string, opts ...option.RequestOption) *backend {
	client := anthropic.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &backend{
		name:  "claude",
		model: model,
		complete: func(ctx context.Context, system, user string) (string, error) {
			if apiKey == "" {
				return "", errMissingKey
			}
			msg, err := client.Messages.New(ctx, anthropic.MessageNewParams{
				Model:     anthropic.Model(model),
				MaxTokens: maxTokens,
				System:    []anthropic.TextBlockParam{{Text: system}},
				Messages: []anthropic.MessageParam{
					anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
				},
			})
			if err != nil {
				return "", err
			}
			var b strings.Builder
			for _, block := range msg.Content {
				if block.Type == "text" {
					b.WriteString(block.Text)
				}
			}
			return b.String(), nil
		},
	}
}
