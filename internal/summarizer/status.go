package summarizer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/video-summarize/internal/config"
)

// Readiness is the result of a backend readiness probe
type Readiness struct {
	OK         bool   `json:"ok"`
	Summarizer string `json:"summarizer,omitempty"`
	Model      string `json:"model,omitempty"`
	Error      string `json:"error,omitempty"`
}

type ollamaTags struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// CheckReady reports whether the primary backend can serve requests.
// Only Ollama is probed; hosted backends are assumed ready.
func CheckReady(cfg config.SummarizerConfig) Readiness {
	if cfg.Primary != "ollama" {
		return Readiness{OK: true, Summarizer: cfg.Primary}
	}

	model := cfg.Ollama.Model
	a := fiber.Get(strings.TrimRight(cfg.Ollama.BaseURL, "/") + "/api/tags")
	a.Timeout(5 * time.Second)
	if err := a.Parse(); err != nil {
		return Readiness{Error: fmt.Sprintf("Status check failed: %v", err)}
	}

	var tags ollamaTags
	code, _, errs := a.Struct(&tags)
	if len(errs) > 0 {
		if isConnError(errs) {
			return Readiness{Error: "Ollama is not reachable. Is it running?"}
		}
		return Readiness{Error: fmt.Sprintf("Status check failed: %v", errors.Join(errs...))}
	}
	if code != fiber.StatusOK {
		return Readiness{Error: fmt.Sprintf("Status check failed: HTTP %d", code)}
	}

	for _, m := range tags.Models {
		if m.Name == model || m.Name == model+":latest" || strings.HasPrefix(m.Name, model+":") {
			return Readiness{OK: true, Model: model}
		}
	}
	return Readiness{Error: fmt.Sprintf("Model '%s' not pulled. Run: docker compose exec ollama ollama pull %s", model, model)}
}

func isConnError(errs []error) bool {
	for _, err := range errs {
		msg := err.Error()
		if strings.Contains(msg, "connection refused") || strings.Contains(msg, "dial") || strings.Contains(msg, "no such host") {
			return true
		}
	}
	return false
}
