package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docgrid/docgrid/internal/async"
	"github.com/docgrid/docgrid/internal/entity"
	"github.com/docgrid/docgrid/internal/export"
	"github.com/docgrid/docgrid/internal/extraction"
	"github.com/docgrid/docgrid/internal/quota"
	"github.com/docgrid/docgrid/internal/repository"
	"github.com/docgrid/docgrid/internal/storage"
)

type staticProvider struct{ reply string }

func (staticProvider) Name() string { return "static" }

func (p staticProvider) Extract(_ context.Context, _, _, _ string) (string, error) {
	return p.reply, nil
}

type staticSigner struct{}

func (staticSigner) SignedURL(_ context.Context, objectPath string, _ time.Duration) (string, error) {
	return "https://signed.example.com/" + objectPath, nil
}

var _ storage.DocumentSigner = staticSigner{}

type apiTest struct {
	srv       *httptest.Server
	accountID uuid.UUID
}

// newAPITest stands up the full stack on sqlite with a canned provider reply.
func newAPITest(t *testing.T, providerReply string) *apiTest {
	t.Helper()

	ctx := context.Background()
	log := slog.New(slog.DiscardHandler)

	db, err := repository.Open(ctx, repository.Config{
		Driver: repository.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "api.db"),
	}, log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(log) })
	require.NoError(t, repository.Migrate(db, repository.DriverSQLite, log))

	rowsRepo := repository.NewRowRepository(db, log)
	tablesRepo := repository.NewTableRepository(db, log)
	accountsRepo := repository.NewAccountRepository(db, log)

	now := time.Now().UTC()
	acct := &entity.Account{
		ID:                 uuid.New(),
		Email:              "api@example.com",
		PlanTier:           entity.PlanTrial,
		SubscriptionStatus: entity.SubTrialing,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	require.NoError(t, accountsRepo.Create(ctx, acct))

	gate := quota.NewGate(accountsRepo, log)
	orch := extraction.NewOrchestrator(rowsRepo, tablesRepo, gate, staticSigner{},
		staticProvider{reply: providerReply}, log)
	queue := async.NewExtractionQueue(orch, log, async.WithWorkers(1))
	t.Cleanup(func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		queue.Shutdown(sctx)
	})
	exporter := export.NewService(rowsRepo, tablesRepo, log)

	h := NewHandler(rowsRepo, tablesRepo, orch, queue, exporter, log)
	s := NewServer(HTTPConfig{Host: "127.0.0.1", Port: "0"}, h, log)

	ts := httptest.NewServer(s.httpServer.Handler)
	t.Cleanup(ts.Close)

	return &apiTest{srv: ts, accountID: acct.ID}
}

func (a *apiTest) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, a.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("X-Account-ID", a.accountID.String())
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (a *apiTest) createTable(t *testing.T, name string) uuid.UUID {
	t.Helper()

	resp := a.do(t, http.MethodPost, "/api/v1/tables", map[string]string{"name": name})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[entity.Table](t, resp).ID
}

func TestAPI_ExtractRowLifecycle(t *testing.T) {
	t.Parallel()

	api := newAPITest(t, "```json\n{\"total\": \"42.50\"}\n```")

	tableID := api.createTable(t, "Invoices")
	base := fmt.Sprintf("/api/v1/tables/%s", tableID)

	resp := api.do(t, http.MethodPost, base+"/columns", map[string]any{
		"key": "total", "description": "grand total", "position": 0,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = api.do(t, http.MethodPost, base+"/rows", map[string]string{
		"file_path": "docs/invoice.pdf", "file_name": "invoice.pdf",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	row := decode[entity.Row](t, resp)
	assert.Equal(t, "uploaded", string(row.Status))

	resp = api.do(t, http.MethodPost, fmt.Sprintf("%s/rows/%s/extract", base, row.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[extraction.Result](t, resp)
	assert.Equal(t, "extracted", string(res.Status))
	assert.Equal(t, map[string]any{"total": "42.50"}, res.Data)

	resp = api.do(t, http.MethodGet, fmt.Sprintf("%s/rows/%s", base, row.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[entity.Row](t, resp)
	assert.Equal(t, "extracted", string(got.Status))
	assert.Equal(t, map[string]any{"total": "42.50"}, got.Data)
}

func TestAPI_ExtractPendingEnqueues(t *testing.T) {
	t.Parallel()

	api := newAPITest(t, `{"total": "9.99"}`)

	tableID := api.createTable(t, "Batch")
	base := fmt.Sprintf("/api/v1/tables/%s", tableID)

	resp := api.do(t, http.MethodPost, base+"/columns", map[string]any{"key": "total", "position": 0})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	for i := range 3 {
		resp := api.do(t, http.MethodPost, base+"/rows", map[string]string{
			"file_path": fmt.Sprintf("docs/doc-%d.pdf", i),
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp = api.do(t, http.MethodPost, base+"/extract", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	queued := decode[map[string]int](t, resp)
	assert.Equal(t, 3, queued["queued"])
}

func TestAPI_StatusCSVExport(t *testing.T) {
	t.Parallel()

	api := newAPITest(t, "{}")

	tableID := api.createTable(t, "Report")
	base := fmt.Sprintf("/api/v1/tables/%s", tableID)

	resp := api.do(t, http.MethodPost, base+"/rows", map[string]string{
		"file_path": "docs/a.pdf", "file_name": "a.pdf",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = api.do(t, http.MethodGet, base+"/export.csv", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
}

func TestAPI_Errors(t *testing.T) {
	t.Parallel()

	api := newAPITest(t, "{}")
	tableID := api.createTable(t, "Errors")
	base := fmt.Sprintf("/api/v1/tables/%s", tableID)

	t.Run("missing account header", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, api.srv.URL+"/api/v1/tables", bytes.NewBufferString(`{"name":"x"}`))
		require.NoError(t, err)
		resp, err := api.srv.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("unknown row is 404", func(t *testing.T) {
		resp := api.do(t, http.MethodPost, fmt.Sprintf("%s/rows/%s/extract", base, uuid.New()), nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("bad row id is 400", func(t *testing.T) {
		resp := api.do(t, http.MethodGet, base+"/rows/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("row without file path is 400", func(t *testing.T) {
		resp := api.do(t, http.MethodPost, base+"/rows", map[string]string{"file_name": "no-path.pdf"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}
