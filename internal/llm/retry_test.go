package llm

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedExtractor struct {
	calls   int
	results []error
	text    string
}

func (s *scriptedExtractor) Name() string { return "scripted" }

func (s *scriptedExtractor) Extract(_ context.Context, _, _, _ string) (string, error) {
	idx := s.calls
	s.calls++
	if idx < len(s.results) && s.results[idx] != nil {
		return "", s.results[idx]
	}
	return s.text, nil
}

func newTestRetrier(t *testing.T, inner Extractor, cfg RetryConfig) *retryingExtractor {
	t.Helper()

	r, ok := NewRetryingExtractor(inner, cfg, slog.New(slog.DiscardHandler)).(*retryingExtractor)
	require.True(t, ok)
	r.sleep = func(context.Context, time.Duration) error { return nil }
	return r
}

func TestRetryingExtractor_RetriesTransientStatus(t *testing.T) {
	t.Parallel()

	inner := &scriptedExtractor{
		results: []error{&ProviderError{Status: 503, Message: "overloaded"}, nil},
		text:    `{"total": "42.50"}`,
	}
	r := newTestRetrier(t, inner, RetryConfig{MaxRetries: 1})

	text, err := r.Extract(context.Background(), "https://example.com/doc.pdf", "prompt", "doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, `{"total": "42.50"}`, text)
	assert.Equal(t, 2, inner.calls)
}

func TestRetryingExtractor_ExhaustsRetries(t *testing.T) {
	t.Parallel()

	inner := &scriptedExtractor{
		results: []error{
			&ProviderError{Status: 503, Message: "down"},
			&ProviderError{Status: 502, Message: "still down"},
		},
	}
	r := newTestRetrier(t, inner, RetryConfig{MaxRetries: 1})

	_, err := r.Extract(context.Background(), "u", "p", "d")
	require.Error(t, err)
	assert.Equal(t, 2, inner.calls)

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 502, pe.Status)
}

func TestRetryingExtractor_NonRetryableStatus(t *testing.T) {
	t.Parallel()

	for _, status := range []int{400, 401, 403, 404, 422} {
		inner := &scriptedExtractor{
			results: []error{&ProviderError{Status: status, Message: "nope"}},
		}
		r := newTestRetrier(t, inner, RetryConfig{MaxRetries: 3})

		_, err := r.Extract(context.Background(), "u", "p", "d")
		require.Error(t, err)
		assert.Equal(t, 1, inner.calls, "status %d must not be retried", status)
	}
}

func TestRetryingExtractor_NonProviderError(t *testing.T) {
	t.Parallel()

	// Transport-level failures carry no HTTP status and are not retried.
	inner := &scriptedExtractor{results: []error{errors.New("connection reset")}}
	r := newTestRetrier(t, inner, RetryConfig{MaxRetries: 3})

	_, err := r.Extract(context.Background(), "u", "p", "d")
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestRetryingExtractor_BackoffDoubles(t *testing.T) {
	t.Parallel()

	inner := &scriptedExtractor{
		results: []error{
			&ProviderError{Status: 429},
			&ProviderError{Status: 429},
			&ProviderError{Status: 429},
			nil,
		},
		text: "{}",
	}
	r := newTestRetrier(t, inner, RetryConfig{MaxRetries: 3, BaseDelay: 100 * time.Millisecond})

	var delays []time.Duration
	r.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	_, err := r.Extract(context.Background(), "u", "p", "d")
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
	}, delays)
}

func TestRetryingExtractor_CanceledContextStopsBackoff(t *testing.T) {
	t.Parallel()

	inner := &scriptedExtractor{
		results: []error{&ProviderError{Status: 503, Message: "down"}},
	}
	r, ok := NewRetryingExtractor(inner, RetryConfig{MaxRetries: 3, BaseDelay: time.Hour}, slog.New(slog.DiscardHandler)).(*retryingExtractor)
	require.True(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Extract(ctx, "u", "p", "d")
	require.Error(t, err)

	// The provider failure wins over the context error so callers see what
	// actually went wrong upstream.
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 503, pe.Status)
	assert.Equal(t, 1, inner.calls)
}

func TestNewRetryingExtractor_Defaults(t *testing.T) {
	t.Parallel()

	r, ok := NewRetryingExtractor(&scriptedExtractor{}, RetryConfig{}, nil).(*retryingExtractor)
	require.True(t, ok)
	assert.Equal(t, 1, r.cfg.MaxRetries)
	assert.Equal(t, 900*time.Millisecond, r.cfg.BaseDelay)
}
