package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/XYIAN/form-flow-sub001/internal/metrics"
	"github.com/XYIAN/form-flow-sub001/internal/store"

	_ "github.com/XYIAN/form-flow-sub001/internal/store/sqlite"
)

//
// helpers
//

func doRequest(t *testing.T, h *Handler, method, target, contentType string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()

	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

// wantError asserts the status code and the error envelope's kind.
func wantError(t *testing.T, rec *httptest.ResponseRecorder, status int, kind string) {
	t.Helper()

	if rec.Code != status {
		t.Fatalf("status=%d, want %d (body %q)", rec.Code, status, rec.Body.String())
	}
	var e errorResponse
	decodeBody(t, rec, &e)
	if e.Kind != kind {
		t.Fatalf("kind=%q, want %q (error %q)", e.Kind, kind, e.Error)
	}
	if e.Error == "" {
		t.Fatal("error message is empty")
	}
}

// newStoreHandler builds a handler backed by a live in-memory sqlite store.
func newStoreHandler(t *testing.T) *Handler {
	t.Helper()

	ctx := context.Background()
	repo, err := store.New(ctx, store.Config{Kind: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(repo.Close)
	if err := repo.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return &Handler{Store: repo, StoreKind: "sqlite"}
}

const signupCSV = "name,email,subscribe\nAda,ada@example.com,Yes\nLin,lin@example.com,No\n"

//
// tests
//

func TestHealthz(t *testing.T) {
	t.Parallel()

	rec := doRequest(t, &Handler{}, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", rec.Code)
	}
	var body map[string]string
	decodeBody(t, rec, &body)
	if body["status"] != "ok" {
		t.Fatalf("body=%v, want status ok", body)
	}
}

func TestBodyCap_AnswersTooLarge(t *testing.T) {
	t.Parallel()

	big := strings.NewReader("h\n" + strings.Repeat("a\n", maxBodyBytes))
	rec := doRequest(t, &Handler{}, http.MethodPost, "/api/generate", "text/csv", big)
	wantError(t, rec, http.StatusRequestEntityTooLarge, "body_too_large")
}

func TestStoreRoutes_Without_Store(t *testing.T) {
	t.Parallel()

	tests := []struct {
		method string
		target string
	}{
		{http.MethodPost, "/api/forms"},
		{http.MethodGet, "/api/forms"},
		{http.MethodGet, "/api/forms/abc"},
		{http.MethodDelete, "/api/forms/abc"},
		{http.MethodGet, "/api/forms/abc/template.csv"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			t.Parallel()

			rec := doRequest(t, &Handler{}, tt.method, tt.target, "application/json", strings.NewReader("{}"))
			wantError(t, rec, http.StatusServiceUnavailable, "store_unavailable")
		})
	}
}

// routeBackend tallies HTTP request counts by route pattern and status.
type routeBackend struct {
	mu     sync.Mutex
	counts map[string]float64
}

func (b *routeBackend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if name != metrics.MetricHTTPRequestsTotal {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.counts == nil {
		b.counts = make(map[string]float64)
	}
	b.counts[labels["route"]+"|"+labels["status"]] += delta
}

func (b *routeBackend) ObserveHistogram(string, float64, metrics.Labels) {}

// TestMetricsMiddleware_UsesRoutePattern swaps the process-wide metrics
// backend, so it must not run in parallel with other tests.
func TestMetricsMiddleware_UsesRoutePattern(t *testing.T) {
	b := &routeBackend{}
	metrics.SetBackend(b)
	defer metrics.SetBackend(nil)

	h := &Handler{}
	doRequest(t, h, http.MethodGet, "/healthz", "", nil)
	doRequest(t, h, http.MethodGet, "/api/forms/abc", "", nil)
	doRequest(t, h, http.MethodGet, "/api/forms/xyz", "", nil)

	b.mu.Lock()
	defer b.mu.Unlock()
	if got := b.counts["/healthz|200"]; got != 1 {
		t.Fatalf("healthz count=%v, want 1 (counts %v)", got, b.counts)
	}
	// Both form lookups land on one series keyed by the pattern, not the URL.
	if got := b.counts["/api/forms/{formID}|503"]; got != 2 {
		t.Fatalf("forms count=%v, want 2 (counts %v)", got, b.counts)
	}
}
