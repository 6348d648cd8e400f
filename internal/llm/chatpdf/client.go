package chatpdf

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

// Config for the ChatPDF client.
type Config struct {
	APIKey  string // if empty, falls back to env CHATPDF_API_KEY
	BaseURL string // default https://api.chatpdf.com/v1
	Timeout time.Duration
}

// Client speaks the two-step source+message protocol: register the remote
// document by URL to obtain a source handle, then send the prompt against
// that handle and read the textual reply.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("CHATPDF_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.chatpdf.com/v1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
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

func (c *Client) Name() string { return "chatpdf" }

func (c *Client) Extract(ctx context.Context, documentURL, prompt, displayName string) (string, error) {
	start := time.Now()
	headers := map[string]string{"x-api-key": c.cfg.APIKey}
	base := strings.TrimRight(c.cfg.BaseURL, "/")

	c.logger.Info("chatpdf.extract.start", "doc", displayName)

	raw, _, err := llm.SendJSON(ctx, c.http, http.MethodPost, base+"/sources/add-url",
		map[string]any{"url": documentURL}, headers, c.logger)
	if err != nil {
		return "", fmt.Errorf("chatpdf add source: %w", err)
	}

	var src struct {
		SourceID string `json:"sourceId"`
	}
	if err := json.Unmarshal(raw, &src); err != nil {
		return "", fmt.Errorf("chatpdf decode source: %w", err)
	}
	if src.SourceID == "" {
		return "", &llm.ProviderError{Message: "chatpdf returned empty sourceId"}
	}

	raw, _, err = llm.SendJSON(ctx, c.http, http.MethodPost, base+"/chats/message",
		map[string]any{
			"sourceId": src.SourceID,
			"messages": []map[string]string{
				{"role": "user", "content": prompt},
			},
		}, headers, c.logger)
	if err != nil {
		return "", fmt.Errorf("chatpdf message: %w", err)
	}

	var reply struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(raw, &reply); err != nil {
		return "", fmt.Errorf("chatpdf decode reply: %w", err)
	}
	if strings.TrimSpace(reply.Content) == "" {
		return "", &llm.ProviderError{Message: "chatpdf returned empty content"}
	}

	c.logger.Info("chatpdf.extract.ok",
		"doc", displayName,
		"source_id", src.SourceID,
		"reply_bytes", len(reply.Content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return reply.Content, nil
}
