package gemini_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docgrid/docgrid/internal/llm"
	"github.com/docgrid/docgrid/internal/llm/gemini"
)

// fakeGemini serves the document, the file API and generateContent from one
// test server.
type fakeGemini struct {
	polls         atomic.Int32
	pollsToActive int32
	failFile      bool

	uploadedBytes atomic.Int32
}

func (f *fakeGemini) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/doc.pdf":
			_, _ = w.Write([]byte("%PDF-1.4 fake"))

		case r.URL.Path == "/upload/v1beta/files":
			assert.Equal(t, "raw", r.Header.Get("X-Goog-Upload-Protocol"))
			assert.Equal(t, "invoice.pdf", r.Header.Get("X-Goog-File-Name"))
			b, _ := io.ReadAll(r.Body)
			f.uploadedBytes.Store(int32(len(b)))
			_ = json.NewEncoder(w).Encode(map[string]any{
				"file": map[string]string{
					"name": "files/abc123",
					"uri":  "https://generativelanguage.googleapis.com/v1beta/files/abc123",
				},
			})

		case r.URL.Path == "/v1beta/files/abc123":
			state := "ACTIVE"
			if f.failFile {
				state = "FAILED"
			} else if f.polls.Add(1) <= f.pollsToActive {
				state = "PROCESSING"
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"state": state})

		case strings.HasSuffix(r.URL.Path, ":generateContent"):
			_ = json.NewEncoder(w).Encode(map[string]any{
				"candidates": []map[string]any{{
					"content": map[string]any{
						"parts": []map[string]string{
							{"text": `{"total": `},
							{"text": `"42.50"}`},
						},
					},
				}},
			})

		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}
}

func newTestClient(srvURL string, maxPolls int) *gemini.Client {
	return gemini.NewClient(gemini.Config{
		APIKey:       "test-key",
		BaseURL:      srvURL,
		Model:        "gemini-test",
		PollInterval: time.Millisecond,
		MaxPolls:     maxPolls,
	}, slog.New(slog.DiscardHandler))
}

func TestExtract(t *testing.T) {
	t.Parallel()

	fake := &fakeGemini{pollsToActive: 2}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	c := newTestClient(srv.URL, 15)

	text, err := c.Extract(context.Background(), srv.URL+"/doc.pdf", "extract fields", "invoice.pdf")
	require.NoError(t, err)

	// Candidate parts are concatenated in order.
	assert.Equal(t, `{"total": "42.50"}`, text)
	assert.Positive(t, fake.uploadedBytes.Load())
	assert.Equal(t, int32(3), fake.polls.Load())
}

func TestExtract_PollTimeout(t *testing.T) {
	t.Parallel()

	fake := &fakeGemini{pollsToActive: 100}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	c := newTestClient(srv.URL, 3)

	_, err := c.Extract(context.Background(), srv.URL+"/doc.pdf", "p", "invoice.pdf")
	require.ErrorIs(t, err, llm.ErrPollTimeout)
	assert.Equal(t, int32(3), fake.polls.Load())
}

func TestExtract_FileProcessingFailed(t *testing.T) {
	t.Parallel()

	fake := &fakeGemini{failFile: true}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	c := newTestClient(srv.URL, 15)

	_, err := c.Extract(context.Background(), srv.URL+"/doc.pdf", "p", "invoice.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "processing failed")
}

func TestExtract_DocumentFetchFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 15)

	_, err := c.Extract(context.Background(), srv.URL+"/missing.pdf", "p", "invoice.pdf")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, llm.StatusOf(err))
}
