package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/docgrid/docgrid/constants"
	"github.com/docgrid/docgrid/internal/async"
	"github.com/docgrid/docgrid/internal/common"
	"github.com/docgrid/docgrid/internal/entity"
	"github.com/docgrid/docgrid/internal/export"
	"github.com/docgrid/docgrid/internal/extraction"
	"github.com/docgrid/docgrid/internal/repository"
)

// Handler wires the HTTP boundary to the pipeline. Authentication is out of
// scope here; the account comes from the X-Account-ID header set upstream.
type Handler struct {
	rows     repository.RowRepository
	tables   repository.TableRepository
	orch     *extraction.Orchestrator
	queue    *async.ExtractionQueue
	exporter *export.Service
	logger   *slog.Logger
}

func NewHandler(
	rows repository.RowRepository,
	tables repository.TableRepository,
	orch *extraction.Orchestrator,
	queue *async.ExtractionQueue,
	exporter *export.Service,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		rows:     rows,
		tables:   tables,
		orch:     orch,
		queue:    queue,
		exporter: exporter,
		logger:   logger,
	}
}

// ExtractRow runs the pipeline synchronously for one row and returns the
// structured result. Pipeline failures come back as 200 with status=failed;
// only infrastructure faults are 5xx.
func (h *Handler) ExtractRow(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}
	tableID, rowID, ok := h.tableAndRow(w, r)
	if !ok {
		return
	}

	res, err := h.orch.ExtractRow(r.Context(), accountID, tableID, rowID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// ExtractPending enqueues every uploaded/failed row of the table for
// background extraction.
func (h *Handler) ExtractPending(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}
	tableID, ok := h.pathUUID(w, r, "table_id")
	if !ok {
		return
	}

	ids, err := h.rows.ListPending(r.Context(), tableID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	for _, id := range ids {
		_ = h.queue.Enqueue(r.Context(), async.Job{AccountID: accountID, TableID: tableID, RowID: id})
	}
	h.writeJSON(w, http.StatusAccepted, map[string]any{"queued": len(ids)})
}

// RegisterRow records an already-uploaded document as a new row in uploaded
// state. The object itself lives in the documents bucket.
func (h *Handler) RegisterRow(w http.ResponseWriter, r *http.Request) {
	tableID, ok := h.pathUUID(w, r, "table_id")
	if !ok {
		return
	}

	var req struct {
		FilePath string `json:"file_path"`
		FileName string `json:"file_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FilePath == "" {
		http.Error(w, "file_path is required", http.StatusBadRequest)
		return
	}

	now := time.Now().UTC()
	row := &entity.Row{
		ID:        uuid.New(),
		TableID:   tableID,
		FilePath:  req.FilePath,
		FileName:  req.FileName,
		Status:    constants.RowStatusUploaded,
		Data:      map[string]any{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.rows.Create(r.Context(), row); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, row)
}

func (h *Handler) GetRow(w http.ResponseWriter, r *http.Request) {
	tableID, rowID, ok := h.tableAndRow(w, r)
	if !ok {
		return
	}
	row, err := h.rows.GetByID(r.Context(), tableID, rowID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, row)
}

func (h *Handler) ListRows(w http.ResponseWriter, r *http.Request) {
	tableID, ok := h.pathUUID(w, r, "table_id")
	if !ok {
		return
	}
	rows, err := h.rows.ListByTable(r.Context(), tableID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func (h *Handler) DeleteRow(w http.ResponseWriter, r *http.Request) {
	tableID, rowID, ok := h.tableAndRow(w, r)
	if !ok {
		return
	}
	if err := h.rows.Delete(r.Context(), tableID, rowID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	tableID, ok := h.pathUUID(w, r, "table_id")
	if !ok {
		return
	}
	b, err := h.exporter.ExportGridXLSX(r.Context(), tableID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="table.xlsx"`)
	_, _ = w.Write(b)
}

func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	tableID, ok := h.pathUUID(w, r, "table_id")
	if !ok {
		return
	}
	b, err := h.exporter.ExportStatusCSV(r.Context(), tableID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="status.csv"`)
	_, _ = w.Write(b)
}

func (h *Handler) accountID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.Header.Get("X-Account-ID"))
	if err != nil {
		http.Error(w, "missing or invalid X-Account-ID header", http.StatusUnauthorized)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		http.Error(w, "invalid "+name, http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) tableAndRow(w http.ResponseWriter, r *http.Request) (tableID, rowID uuid.UUID, ok bool) {
	tableID, ok = h.pathUUID(w, r, "table_id")
	if !ok {
		return
	}
	rowID, ok = h.pathUUID(w, r, "row_id")
	return
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("response encode failed", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrRowNotFound),
		errors.Is(err, common.ErrTableNotFound),
		errors.Is(err, common.ErrAccountNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, common.ErrDocumentMissing),
		errors.Is(err, common.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error("request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
