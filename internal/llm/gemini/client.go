package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/docgrid/docgrid/internal/llm"
)

// Config for the Gemini file-API client.
type Config struct {
	APIKey       string // if empty, falls back to env GEMINI_API_KEY
	BaseURL      string // default https://generativelanguage.googleapis.com
	Model        string // default gemini-2.0-flash
	Timeout      time.Duration
	PollInterval time.Duration // default 2s
	MaxPolls     int           // default 15
}

// Client speaks the upload+generate protocol: fetch the document bytes,
// upload them as a blob, poll the file state until it leaves PROCESSING,
// then issue a single generateContent call referencing the blob.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
	// sleep is swapped out in tests so polls don't wait for real time.
	sleep func(context.Context, time.Duration) error
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = 15
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
		sleep:  sleepCtx,
	}
}

func (c *Client) Name() string { return "gemini" }

func (c *Client) Extract(ctx context.Context, documentURL, prompt, displayName string) (string, error) {
	start := time.Now()
	c.logger.Info("gemini.extract.start", "doc", displayName, "model", c.cfg.Model)

	blob, err := c.fetchDocument(ctx, documentURL)
	if err != nil {
		return "", fmt.Errorf("gemini fetch document: %w", err)
	}

	fileURI, fileName, err := c.uploadBlob(ctx, blob, displayName)
	if err != nil {
		return "", fmt.Errorf("gemini upload: %w", err)
	}

	if err := c.waitUntilActive(ctx, fileName); err != nil {
		return "", err
	}

	text, err := c.generate(ctx, fileURI, prompt)
	if err != nil {
		return "", err
	}

	c.logger.Info("gemini.extract.ok",
		"doc", displayName,
		"file", fileName,
		"reply_bytes", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

// fetchDocument downloads the signed URL fresh for this attempt; nothing is
// cached across attempts.
func (c *Client) fetchDocument(ctx context.Context, documentURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, documentURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &llm.ProviderError{Message: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, &llm.ProviderError{Status: resp.StatusCode, Message: "document fetch failed"}
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) uploadBlob(ctx context.Context, blob []byte, displayName string) (uri, name string, err error) {
	url := fmt.Sprintf("%s/upload/v1beta/files?key=%s", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(blob))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/pdf")
	req.Header.Set("X-Goog-Upload-Protocol", "raw")
	req.Header.Set("X-Goog-File-Name", displayName)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", "", &llm.ProviderError{Message: err.Error()}
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return "", "", &llm.ProviderError{Status: resp.StatusCode, Message: llm.Truncate(string(raw), 512)}
	}

	var out struct {
		File struct {
			Name string `json:"name"`
			URI  string `json:"uri"`
		} `json:"file"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", "", fmt.Errorf("decode upload response: %w", err)
	}
	if out.File.URI == "" {
		return "", "", &llm.ProviderError{Message: "upload returned no file uri"}
	}
	return out.File.URI, out.File.Name, nil
}

// waitUntilActive polls the file state with a fixed interval and a hard
// attempt ceiling. Exceeding the ceiling is a poll timeout, a FAILED state a
// provider error.
func (c *Client) waitUntilActive(ctx context.Context, fileName string) error {
	url := fmt.Sprintf("%s/v1beta/%s?key=%s", strings.TrimRight(c.cfg.BaseURL, "/"), fileName, c.cfg.APIKey)

	for attempt := 0; attempt < c.cfg.MaxPolls; attempt++ {
		raw, _, err := llm.SendJSON(ctx, c.http, http.MethodGet, url, nil, nil, c.logger)
		if err != nil {
			return fmt.Errorf("gemini poll file: %w", err)
		}
		var f struct {
			State string `json:"state"`
		}
		if err := json.Unmarshal(raw, &f); err != nil {
			return fmt.Errorf("decode file state: %w", err)
		}

		switch f.State {
		case "PROCESSING":
			c.logger.Info("gemini.file.processing", "file", fileName, "attempt", attempt+1)
			if err := c.sleep(ctx, c.cfg.PollInterval); err != nil {
				return err
			}
		case "FAILED":
			return &llm.ProviderError{Message: "gemini file processing failed"}
		default:
			// ACTIVE (or any post-processing state) is good to go.
			return nil
		}
	}
	return llm.ErrPollTimeout
}

func (c *Client) generate(ctx context.Context, fileURI, prompt string) (string, error) {
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Model, c.cfg.APIKey)

	body := map[string]any{
		"contents": []map[string]any{{
			"parts": []map[string]any{
				{"file_data": map[string]string{"mime_type": "application/pdf", "file_uri": fileURI}},
				{"text": prompt},
			},
		}},
	}

	raw, _, err := llm.SendJSON(ctx, c.http, http.MethodPost, url, body, nil, c.logger)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	var out struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", &llm.ProviderError{Message: "gemini returned no candidates"}
	}

	var b strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String(), nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
