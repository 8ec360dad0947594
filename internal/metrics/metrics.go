// Package metrics defines the minimal instrumentation surface the rest of
// the codebase depends on.
//
// The core packages never import a vendor SDK: they call the package-level
// record helpers (or a Backend directly), and main wires a concrete backend
// at startup. With no backend configured every call is a cheap no-op, so
// library code can instrument unconditionally.
package metrics

import (
	"strconv"
	"sync"
	"time"
)

// Labels carries the dimension tags attached to one metric observation.
type Labels map[string]string

// Backend is the sink interface concrete metric systems implement.
//
// Implementations must be safe for concurrent use; callers fire metrics from
// request handlers and worker goroutines without coordination.
type Backend interface {
	// IncCounter adds delta to the named counter. Non-positive deltas are
	// ignored.
	IncCounter(name string, delta float64, labels Labels)

	// ObserveHistogram records one sample of the named distribution.
	// Negative values are ignored.
	ObserveHistogram(name string, value float64, labels Labels)
}

// Flusher is implemented by backends that buffer observations and submit
// them in batches. Flush is optional: the package-level Flush helper calls
// it when present.
type Flusher interface {
	Flush() error
}

// Metric names. Backends key their routing off these strings, so they are
// part of the operational contract and must not change casually.
const (
	MetricGenerateTotal           = "formflow_generate_total"
	MetricGenerateDurationSeconds = "formflow_generate_duration_seconds"
	MetricFieldsTotal             = "formflow_fields_total"
	MetricHTTPRequestsTotal       = "formflow_http_requests_total"
	MetricHTTPDurationSeconds     = "formflow_http_request_duration_seconds"
	MetricStoreSavesTotal         = "formflow_store_saves_total"
	MetricImportsTotal            = "formflow_imports_total"
	MetricBatchFilesTotal         = "formflow_batch_files_total"
)

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}

// Nop returns a backend that discards everything. Useful as an explicit
// dependency in tests and as the default before SetBackend runs.
func Nop() Backend { return nopBackend{} }

var (
	mu     sync.RWMutex
	active Backend = nopBackend{}
)

// SetBackend installs the process-wide backend. Call it once from main
// before any work starts; nil restores the no-op backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		active = nopBackend{}
		return
	}
	active = b
}

func backend() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return active
}

// Flush flushes the active backend if it buffers. No-op backends return nil.
func Flush() error {
	if f, ok := backend().(Flusher); ok {
		return f.Flush()
	}
	return nil
}

// IncCounter forwards to the active backend.
func IncCounter(name string, delta float64, labels Labels) {
	backend().IncCounter(name, delta, labels)
}

// ObserveHistogram forwards to the active backend.
func ObserveHistogram(name string, value float64, labels Labels) {
	backend().ObserveHistogram(name, value, labels)
}

// RecordGeneration records one engine run: outcome counter plus duration
// sample, both tagged with the outcome status ("ok", "parse_error",
// "empty_input").
func RecordGeneration(status string, d time.Duration) {
	labels := Labels{"status": status}
	IncCounter(MetricGenerateTotal, 1, labels)
	ObserveHistogram(MetricGenerateDurationSeconds, d.Seconds(), labels)
}

// RecordFieldType counts one generated field by its detected type.
func RecordFieldType(fieldType string) {
	IncCounter(MetricFieldsTotal, 1, Labels{"type": fieldType})
}

// RecordHTTP records one served request: count plus latency, tagged with the
// route pattern and numeric status code.
func RecordHTTP(route string, status int, d time.Duration) {
	labels := Labels{"route": route, "status": strconv.Itoa(status)}
	IncCounter(MetricHTTPRequestsTotal, 1, labels)
	ObserveHistogram(MetricHTTPDurationSeconds, d.Seconds(), labels)
}

// RecordStoreSave counts one persistence attempt, tagged with the store
// driver and the outcome ("created", "unchanged", "error").
func RecordStoreSave(driver, status string) {
	IncCounter(MetricStoreSavesTotal, 1, Labels{"driver": driver, "status": status})
}

// RecordImport counts one successful import by source kind ("csv", "html").
func RecordImport(source string) {
	IncCounter(MetricImportsTotal, 1, Labels{"source": source})
}

// RecordBatchFile counts one file processed by a batch run, tagged with its
// outcome ("ok", "error").
func RecordBatchFile(status string) {
	IncCounter(MetricBatchFilesTotal, 1, Labels{"status": status})
}
