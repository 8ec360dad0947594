package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/XYIAN/form-flow-sub001/internal/htmlimport"
	"github.com/XYIAN/form-flow-sub001/internal/inference"
	"github.com/XYIAN/form-flow-sub001/internal/metrics"
)

// handleGenerate turns uploaded CSV into a generated form.
//
// Input: raw CSV in the body, or a multipart upload under the "file" field.
// Query parameters: title, description, preview (preview=true attaches the
// first parsed rows).
func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	csvText, err := readCSVInput(r)
	if err != nil {
		writeBodyError(w, err)
		return
	}

	q := r.URL.Query()
	preview, _ := strconv.ParseBool(q.Get("preview"))

	start := time.Now()
	g, err := inference.Generate(csvText, inference.GenerateOptions{
		Title:          q.Get("title"),
		Description:    q.Get("description"),
		IncludePreview: preview,
		Thresholds:     h.Thresholds,
	})
	metrics.RecordGeneration(generationStatus(err), time.Since(start))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	for _, f := range g.Fields {
		metrics.RecordFieldType(string(f.Type))
	}
	metrics.RecordImport("csv")
	writeJSON(w, http.StatusOK, g)
}

// handleQuality reports advisory data quality for uploaded CSV without
// generating a form.
func (h *Handler) handleQuality(w http.ResponseWriter, r *http.Request) {
	csvText, err := readCSVInput(r)
	if err != nil {
		writeBodyError(w, err)
		return
	}

	table, err := inference.Tokenize(csvText)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, inference.AnalyzeQuality(table, h.Thresholds))
}

// handleImportHTML lifts form fields out of an HTML page posted as the
// request body.
func (h *Handler) handleImportHTML(w http.ResponseWriter, r *http.Request) {
	f, err := htmlimport.Import(r.Body)
	if err != nil {
		if errors.Is(err, htmlimport.ErrNoControls) {
			writeError(w, http.StatusUnprocessableEntity, "empty_input", err.Error())
			return
		}
		writeBodyError(w, err)
		return
	}

	metrics.RecordImport("html")
	writeJSON(w, http.StatusOK, f)
}

// readCSVInput pulls CSV text from the request: the "file" field of a
// multipart upload, or the raw body otherwise.
func readCSVInput(r *http.Request) (string, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return "", fmt.Errorf("parse multipart form: %w", err)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return "", fmt.Errorf("multipart field \"file\": %w", err)
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return "", fmt.Errorf("read upload: %w", err)
		}
		return string(data), nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(data), nil
}

// generationStatus maps an engine result to the metric status label.
func generationStatus(err error) string {
	var parseErr *inference.ParseError
	var emptyErr *inference.EmptyInputError

	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &parseErr):
		return "parse_error"
	case errors.As(err, &emptyErr):
		return "empty_input"
	default:
		return "error"
	}
}
