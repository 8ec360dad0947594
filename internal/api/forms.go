package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/XYIAN/form-flow-sub001/internal/form"
	"github.com/XYIAN/form-flow-sub001/internal/inference"
	"github.com/XYIAN/form-flow-sub001/internal/metrics"
	"github.com/XYIAN/form-flow-sub001/internal/store"
)

// requireStore answers 503 and returns false when no store is configured.
func (h *Handler) requireStore(w http.ResponseWriter) bool {
	if h.Store != nil {
		return true
	}
	writeError(w, http.StatusServiceUnavailable, "store_unavailable", "no form store configured")
	return false
}

// handleCreateForm persists a posted form.Form. Saving the same content
// twice answers 201 both times with the originally stored row.
func (h *Handler) handleCreateForm(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}

	var f form.Form
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		writeBodyError(w, err)
		return
	}
	if len(f.Fields) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "form has no fields")
		return
	}

	saveStart := time.Now()
	saved, err := h.Store.SaveForm(r.Context(), f)
	if err != nil {
		metrics.RecordStoreSave(h.driverLabel(), "error")
		writeError(w, http.StatusInternalServerError, "internal", "save form: "+err.Error())
		return
	}

	// Timestamps are stamped in-process, so a row that predates this
	// request is a fingerprint hit rather than a fresh insert.
	status := "created"
	if saved.CreatedAt.Before(saveStart) {
		status = "unchanged"
	}
	metrics.RecordStoreSave(h.driverLabel(), status)

	writeJSON(w, http.StatusCreated, saved)
}

func (h *Handler) handleListForms(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}

	forms, err := h.Store.ListForms(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "list forms: "+err.Error())
		return
	}
	if forms == nil {
		// An empty listing is [], not null.
		forms = []store.SavedForm{}
	}

	writeJSON(w, http.StatusOK, forms)
}

func (h *Handler) handleGetForm(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}

	saved, err := h.Store.GetForm(r.Context(), chi.URLParam(r, "formID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, saved)
}

func (h *Handler) handleDeleteForm(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}

	if err := h.Store.DeleteForm(r.Context(), chi.URLParam(r, "formID")); err != nil {
		writeStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleTemplateCSV renders a saved form back into a header-only CSV import
// template and serves it as a download.
func (h *Handler) handleTemplateCSV(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}

	saved, err := h.Store.GetForm(r.Context(), chi.URLParam(r, "formID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	name := form.FieldKey(saved.Form.Title)
	if name == "" {
		name = "form"
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+"_template.csv"))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, inference.ExportCSV(inference.TemplateTable(saved.Form)))
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "form not found")
		return
	}
	writeError(w, http.StatusInternalServerError, "internal", err.Error())
}
