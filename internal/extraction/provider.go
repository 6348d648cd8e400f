package extraction

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/docgrid/docgrid/internal/llm"
	"github.com/docgrid/docgrid/internal/llm/chatpdf"
	"github.com/docgrid/docgrid/internal/llm/gemini"
	"github.com/docgrid/docgrid/internal/llm/openrouter"
)

// ProviderConfig selects and configures the document-understanding provider.
type ProviderConfig struct {
	Name          string // chatpdf, gemini or openrouter
	APIKey        string
	Model         string
	FallbackModel string
	Timeout       time.Duration

	MaxRetries int
	BaseDelay  time.Duration
}

// NewProvider builds the configured adapter wrapped in the retry policy.
// Selection is a plain config discriminant; every adapter satisfies the same
// Extractor capability.
func NewProvider(cfg ProviderConfig, logger *slog.Logger) (llm.Extractor, error) {
	var inner llm.Extractor
	switch cfg.Name {
	case "chatpdf":
		inner = chatpdf.NewClient(chatpdf.Config{
			APIKey:  cfg.APIKey,
			Timeout: cfg.Timeout,
		}, logger)
	case "gemini":
		inner = gemini.NewClient(gemini.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}, logger)
	case "openrouter", "":
		inner = openrouter.NewClient(openrouter.Config{
			APIKey:        cfg.APIKey,
			Model:         cfg.Model,
			FallbackModel: cfg.FallbackModel,
			Timeout:       cfg.Timeout,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown extraction provider %q", cfg.Name)
	}

	return llm.NewRetryingExtractor(inner, llm.RetryConfig{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.BaseDelay,
	}, logger), nil
}
