package ai

import (
	"context"
	"log/slog"
	"time"

	"github.com/nokoro/statement-tracker/internal/extract"
)

// Provider validates candidate fields against the raw statement text and
// returns the authoritative field set with per-field confidences.
type Provider interface {
	Validate(ctx context.Context, rawText string, candidates extract.FieldSet, issuer string) extract.ValidationResult
}

// Config for the validation provider.
type Config struct {
	Provider string // "mock" | "openai"

	APIKey      string        // if empty, openai falls back to mock
	BaseURL     string        // default https://api.openai.com/v1
	Model       string        // e.g. "gpt-4o-mini"
	Temperature float32       // 0..2
	Timeout     time.Duration // http client timeout
}

// NewProvider picks the configured provider, degrading to the mock when the
// OpenAI provider is requested without an API key.
func NewProvider(cfg Config, logger *slog.Logger) Provider {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Provider {
	case "openai":
		if cfg.APIKey == "" {
			logger.Warn("ai.provider.no_api_key", "fallback", "mock")
			return NewMockProvider(logger)
		}
		return NewOpenAIProvider(cfg, logger)
	default:
		return NewMockProvider(logger)
	}
}
