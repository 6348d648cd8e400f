package openrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/docgrid/docgrid/internal/llm"
)

// Config for the OpenRouter client.
type Config struct {
	APIKey        string // if empty, falls back to env OPENROUTER_API_KEY
	BaseURL       string // default https://openrouter.ai/api/v1
	Model         string // primary model
	FallbackModel string // provider-side retry model, optional
	ParserEngine  string // PDF parsing engine, default pdf-text
	Timeout       time.Duration
}

// Client speaks the single-call chat-completion protocol: the prompt goes in
// as a text content part, the document as a file-attachment part referenced
// by URL. A primary/fallback model pair lets the provider retry internally
// with a secondary model.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENROUTER_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "google/gemini-2.0-flash-001"
	}
	if cfg.ParserEngine == "" {
		cfg.ParserEngine = "pdf-text"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

func (c *Client) Name() string { return "openrouter" }

func (c *Client) Extract(ctx context.Context, documentURL, prompt, displayName string) (string, error) {
	start := time.Now()
	c.logger.Info("openrouter.extract.start", "doc", displayName, "model", c.cfg.Model)

	body := map[string]any{
		"model": c.cfg.Model,
		"messages": []map[string]any{{
			"role": "user",
			"content": []map[string]any{
				{"type": "text", "text": prompt},
				{"type": "file", "file": map[string]string{
					"filename":  displayName,
					"file_data": documentURL,
				}},
			},
		}},
		"plugins": []map[string]any{{
			"id":  "file-parser",
			"pdf": map[string]string{"engine": c.cfg.ParserEngine},
		}},
	}
	if c.cfg.FallbackModel != "" {
		body["models"] = []string{c.cfg.Model, c.cfg.FallbackModel}
	}

	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"

	raw, _, err := llm.SendJSON(ctx, c.http, http.MethodPost, url, body, headers, c.logger)
	if err != nil {
		return "", fmt.Errorf("openrouter chat: %w", err)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", fmt.Errorf("decode openrouter response: %w", err)
	}
	// OpenRouter can return 200 with an error body; that is still a provider
	// failure, not a usable reply.
	if cc.Error != nil {
		return "", &llm.ProviderError{Status: cc.Error.Code, Message: cc.Error.Message}
	}
	if len(cc.Choices) == 0 {
		return "", &llm.ProviderError{Message: "openrouter returned no choices"}
	}

	content := cc.Choices[0].Message.Content
	c.logger.Info("openrouter.extract.ok",
		"doc", displayName,
		"reply_bytes", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}
