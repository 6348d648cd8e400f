package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docgrid/docgrid/internal/entity"
)

// Thin table/column CRUD. The pipeline only reads schemas; these handlers
// exist so the system is operable end to end.

func (h *Handler) CreateTable(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	now := time.Now().UTC()
	t := &entity.Table{
		ID:        uuid.New(),
		AccountID: accountID,
		Name:      strings.TrimSpace(req.Name),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.tables.Create(r.Context(), t); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, t)
}

func (h *Handler) RenameTable(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}
	tableID, ok := h.pathUUID(w, r, "table_id")
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	if err := h.tables.Rename(r.Context(), accountID, tableID, strings.TrimSpace(req.Name)); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeleteTable(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}
	tableID, ok := h.pathUUID(w, r, "table_id")
	if !ok {
		return
	}
	if err := h.tables.Delete(r.Context(), accountID, tableID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AddColumn(w http.ResponseWriter, r *http.Request) {
	tableID, ok := h.pathUUID(w, r, "table_id")
	if !ok {
		return
	}

	var req struct {
		Key         string `json:"key"`
		Description string `json:"description"`
		Position    int    `json:"position"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Key) == "" {
		http.Error(w, "key is required", http.StatusBadRequest)
		return
	}

	c := &entity.Column{
		ID:          uuid.New(),
		TableID:     tableID,
		Key:         strings.TrimSpace(req.Key),
		Description: strings.TrimSpace(req.Description),
		Position:    req.Position,
	}
	if err := h.tables.AddColumn(r.Context(), c); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) DeleteColumn(w http.ResponseWriter, r *http.Request) {
	tableID, ok := h.pathUUID(w, r, "table_id")
	if !ok {
		return
	}
	columnID, ok := h.pathUUID(w, r, "column_id")
	if !ok {
		return
	}
	if err := h.tables.DeleteColumn(r.Context(), tableID, columnID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
