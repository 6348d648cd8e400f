package llm

import (
	"context"
	"log/slog"
	"time"
)

// RetryConfig controls the bounded retry wrapper around one provider call.
type RetryConfig struct {
	MaxRetries int           // extra attempts after the first, default 1
	BaseDelay  time.Duration // default 900ms, doubled each attempt
}

var defaultRetryable = map[int]struct{}{
	429: {}, 500: {}, 502: {}, 503: {}, 504: {},
}

// retryingExtractor decorates an Extractor with the retry policy. Only
// transient provider statuses are retried; everything else (including
// sanitize-level failures upstream) propagates on the first attempt.
type retryingExtractor struct {
	inner  Extractor
	cfg    RetryConfig
	logger *slog.Logger
	sleep  func(context.Context, time.Duration) error
}

// NewRetryingExtractor wraps inner with bounded, backoff-delayed retries for
// transient failures (429 and 5xx gateway statuses).
func NewRetryingExtractor(inner Extractor, cfg RetryConfig, logger *slog.Logger) Extractor {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 1
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 900 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &retryingExtractor{inner: inner, cfg: cfg, logger: logger, sleep: sleepCtx}
}

func (r *retryingExtractor) Name() string { return r.inner.Name() }

func (r *retryingExtractor) Extract(ctx context.Context, documentURL, prompt, displayName string) (string, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		text, err := r.inner.Extract(ctx, documentURL, prompt, displayName)
		if err == nil {
			return text, nil
		}
		lastErr = err

		status := StatusOf(err)
		if _, retryable := defaultRetryable[status]; !retryable || attempt >= r.cfg.MaxRetries {
			return "", lastErr
		}

		delay := r.cfg.BaseDelay * (1 << attempt)
		r.logger.Warn("llm.retry.backoff",
			"provider", r.inner.Name(),
			"attempt", attempt+1,
			"status", status,
			"delay_ms", delay.Milliseconds(),
		)
		if err := r.sleep(ctx, delay); err != nil {
			return "", lastErr
		}
	}
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
