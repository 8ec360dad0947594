// Package api exposes the form builder over HTTP: CSV and HTML go in,
// generated forms and quality reports come out, and saved forms round-trip
// through the configured store.
//
// The surface is JSON throughout. Errors use one envelope, {"error", "kind"},
// where kind is a stable machine string ("parse_error", "empty_input",
// "bad_request", "not_found", "store_unavailable", "body_too_large",
// "internal"). Engine rejections map to 422 so clients can distinguish "your
// CSV is bad" from "your request is bad".
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/XYIAN/form-flow-sub001/internal/inference"
	"github.com/XYIAN/form-flow-sub001/internal/metrics"
	"github.com/XYIAN/form-flow-sub001/internal/store"
)

// maxBodyBytes caps every request body.
const maxBodyBytes = 1 << 20

// Handler carries the dependencies the routes need. A nil Store is a valid
// persistence-free deployment: store-backed routes answer 503.
type Handler struct {
	Store     store.Repository
	StoreKind string

	// Thresholds tunes every generation and quality pass served.
	Thresholds inference.Thresholds

	// CORSOrigins lists allowed origins; empty means "*" without
	// credentials.
	CORSOrigins []string
}

// Router assembles the full middleware stack and route table.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(h.corsOptions()))
	r.Use(limitBody)
	r.Use(recordMetrics)

	r.Get("/healthz", h.handleHealthz)

	r.Route("/api", func(r chi.Router) {
		r.Post("/generate", h.handleGenerate)
		r.Post("/quality", h.handleQuality)
		r.Post("/import/html", h.handleImportHTML)

		r.Route("/forms", func(r chi.Router) {
			r.Post("/", h.handleCreateForm)
			r.Get("/", h.handleListForms)
			r.Get("/{formID}", h.handleGetForm)
			r.Delete("/{formID}", h.handleDeleteForm)
			r.Get("/{formID}/template.csv", h.handleTemplateCSV)
		})
	})

	return r
}

func (h *Handler) corsOptions() cors.Options {
	origins := h.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	wildcard := false
	for _, o := range origins {
		if o == "*" {
			wildcard = true
			break
		}
	}

	return cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"Link"},
		// Browsers reject credentialed responses with a wildcard origin.
		AllowCredentials: !wildcard,
		MaxAge:           300,
	}
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) driverLabel() string {
	if h.StoreKind == "" {
		return "unknown"
	}
	return h.StoreKind
}

// limitBody caps the request body so one oversized upload cannot hold a
// worker. Reads past the cap surface *http.MaxBytesError.
func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next.ServeHTTP(w, r)
	})
}

// recordMetrics emits one count and one latency sample per request, keyed by
// the matched chi route pattern rather than the raw URL so /api/forms/{id}
// stays one series.
func recordMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordHTTP(route, ww.Status(), time.Since(start))
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	// The status line is already on the wire; an encode failure here has
	// nowhere useful to go.
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Kind: kind})
}

// writeEngineError maps the engine's two error kinds to 422 and everything
// else to 400.
func writeEngineError(w http.ResponseWriter, err error) {
	var parseErr *inference.ParseError
	var emptyErr *inference.EmptyInputError

	switch {
	case errors.As(err, &parseErr):
		writeError(w, http.StatusUnprocessableEntity, "parse_error", parseErr.Error())
	case errors.As(err, &emptyErr):
		writeError(w, http.StatusUnprocessableEntity, "empty_input", emptyErr.Error())
	default:
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
	}
}

// writeBodyError maps request-reading failures: the body cap answers 413,
// anything else 400.
func writeBodyError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
		return
	}
	writeError(w, http.StatusBadRequest, "bad_request", err.Error())
}
