package summarizer

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/anatolykoptev/go-kit/llm"

	"github.com/codebuildervaibhav/video-summarize/internal/config"
)

const openRouterBase = "https://openrouter.ai/api/v1"

// newOpenRouter talks to OpenRouter's OpenAI-compatible chat API
func newOpenRouter(_ context.Context, cfg config.SummarizerConfig) (Summarizer, error) {
	c := cfg.OpenRouter
	return newChatBackend("openrouter", openRouterBase, c.APIKey, c.Model, 120*time.Second), nil
}

// newOllama talks to a local Ollama server through its OpenAI-compatible endpoint.
// Local models can be slow on CPU, hence the long timeout.
func newOllama(_ context.Context, cfg config.SummarizerConfig) (Summarizer, error) {
	c := cfg.Ollama
	base := strings.TrimRight(c.BaseURL, "/") + "/v1"
	return newChatBackend("ollama", base, "ollama", c.Model, 600*time.Second), nil
}

func newChatBackend(name, base, key, model string, timeout time.Duration) *backend {
	client := llm.NewClient(base, key, model,
		llm.WithMaxTokens(maxTokens),
		llm.WithHTTPClient(&http.Client{Timeout: timeout}),
	)
	return &backend{
		name:  name,
		model: model,
		complete: func(ctx context.Context, system, user string) (string, error) {
			return client.Complete(ctx, system, user)
		},
	}
}
