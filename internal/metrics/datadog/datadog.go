// Package datadog implements a Datadog backend for the internal/metrics
// package.
//
// NOTE ABOUT FLUSHING:
// The backend serves both the long-running API server and one-shot CLI runs.
// Submitting only once at process exit would reduce a server's dashboards to
// a single spike, so instead we:
//
//   - buffer observations in-memory (fast, lock-protected)
//   - periodically Flush() on a ticker (default: once per minute)
//   - Flush() one final time on Close()
//
// Concurrency model:
//   - request handlers and workers call IncCounter/ObserveHistogram at any time
//   - Flush snapshots+resets buffers under a mutex, then submits out-of-lock
//   - the flush loop calls Flush() periodically; Close() stops the loop
//
// If the process dies with SIGKILL/OOM, Close() never runs and the last
// window of observations is lost; no client-side backend can fix that.
package datadog

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/XYIAN/form-flow-sub001/internal/metrics"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

// Options controls Datadog backend configuration.
type Options struct {
	// JobName becomes tag "job:<name>" on every metric.
	// If empty, defaults to "formflow".
	JobName string

	// Tags are extra Datadog tags (e.g. []string{"env:prod", "service:formflow"}).
	Tags []string

	// FlushEvery controls how often buffered metrics are submitted.
	// If <= 0, defaults to 60 seconds.
	FlushEvery time.Duration

	// The following fields are unexported test seams.
	//
	// Production code never sets them; unit tests do, to avoid real network
	// submission and nondeterministic clocks/tickers.
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter metricsSubmitter
}

// metricsSubmitter is the minimal interface needed to submit metrics.
//
// The Datadog SDK exposes a concrete *datadogV2.MetricsApi, which cannot be
// stubbed without real HTTP. Backend depends on this interface instead, so
// tests can inject a fake submitter.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// Backend implements metrics.Backend for Datadog.
type Backend struct {
	api metricsSubmitter
	ctx context.Context

	flushEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}

	baseTags []string

	// now is injected for deterministic tests. Production uses time.Now.
	now func() time.Time

	// newTicker is injected for deterministic tests. Production uses
	// time.NewTicker.
	newTicker func(d time.Duration) *time.Ticker

	mu sync.Mutex

	generateCounts  map[string]float64   // status -> count
	generateDur     map[string][]float64 // status -> seconds samples
	fieldCounts     map[string]float64   // field type -> count
	storeSaves      map[string]float64   // driver\x00status -> count
	importCounts    map[string]float64   // source -> count
	batchFileCounts map[string]float64   // status -> count

	httpReqCounts map[string]float64   // route\x00status -> count
	httpReqDur    map[string][]float64 // route\x00status -> seconds samples
}

func resolveEnvTag() string {
	if v := strings.TrimSpace(os.Getenv("ENV")); v != "" {
		return "env:" + v
	}
	if v := strings.TrimSpace(os.Getenv("DD_ENV")); v != "" {
		return "env:" + v
	}
	return "env:unknown"
}

func (b *Backend) loop() {
	defer close(b.doneCh)

	t := b.newTicker(b.flushEvery)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			_ = b.Flush()
		case <-b.stopCh:
			return
		}
	}
}

// Close stops the background flush loop and performs one final Flush().
//
// Errors:
//   - Returns any error from the final Flush() submission.
//   - Calling Close twice panics (stopCh closes twice). Standard "close
//     once" semantics for a process-lifetime backend.
func (b *Backend) Close() error {
	close(b.stopCh)
	<-b.doneCh
	return b.Flush()
}

// NewBackend constructs a Datadog backend using the official client.
//
// When to use:
//   - Wire it in main when Datadog credentials are configured; both the API
//     server (periodic flush) and one-shot commands (final flush on Close)
//     work.
//
// Edge cases:
//   - If opts.FlushEvery <= 0, defaults to 60s.
//   - If opts.JobName is empty, defaults to "formflow".
//   - Environment tag selection uses ENV then DD_ENV, otherwise env:unknown.
//
// Errors:
//   - Returns an error only if internal initialization fails; network errors
//     surface from Flush(), not from construction.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	job := opts.JobName
	if job == "" {
		job = "formflow"
	}

	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 60 * time.Second
	}

	envTag := resolveEnvTag()
	baseTags := make([]string, 0, 2+len(opts.Tags))
	baseTags = append(baseTags, envTag, "job:"+job)
	baseTags = append(baseTags, opts.Tags...)

	// Clock / ticker seams.
	nowFn := opts.now
	if nowFn == nil {
		nowFn = time.Now
	}
	newTicker := opts.newTicker
	if newTicker == nil {
		newTicker = time.NewTicker
	}

	// Submitter seam.
	submitter := opts.submitter
	if submitter == nil {
		cfg := dd.NewConfiguration()
		client := dd.NewAPIClient(cfg)
		submitter = datadogV2.NewMetricsApi(client)
	}

	b := &Backend{
		api:        submitter,
		ctx:        dd.NewDefaultContext(parent),
		flushEvery: flushEvery,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),

		baseTags: baseTags,

		now:       nowFn,
		newTicker: newTicker,

		generateCounts:  make(map[string]float64),
		generateDur:     make(map[string][]float64),
		fieldCounts:     make(map[string]float64),
		storeSaves:      make(map[string]float64),
		importCounts:    make(map[string]float64),
		batchFileCounts: make(map[string]float64),

		httpReqCounts: make(map[string]float64),
		httpReqDur:    make(map[string][]float64),
	}

	go b.loop()
	return b, nil
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch name {
	case metrics.MetricGenerateTotal:
		b.generateCounts[statusOrUnknown(labels)] += delta

	case metrics.MetricFieldsTotal:
		kind := labels["type"]
		if kind == "" {
			return
		}
		b.fieldCounts[kind] += delta

	case metrics.MetricHTTPRequestsTotal:
		b.httpReqCounts[pairKey(labels["route"], labels["status"])] += delta

	case metrics.MetricStoreSavesTotal:
		b.storeSaves[pairKey(labels["driver"], labels["status"])] += delta

	case metrics.MetricImportsTotal:
		source := labels["source"]
		if source == "" {
			return
		}
		b.importCounts[source] += delta

	case metrics.MetricBatchFilesTotal:
		b.batchFileCounts[statusOrUnknown(labels)] += delta

	default:
		// Ignore unknown metrics.
	}
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch name {
	case metrics.MetricGenerateDurationSeconds:
		k := statusOrUnknown(labels)
		b.generateDur[k] = append(b.generateDur[k], value)

	case metrics.MetricHTTPDurationSeconds:
		k := pairKey(labels["route"], labels["status"])
		b.httpReqDur[k] = append(b.httpReqDur[k], value)

	default:
		// Ignore unknown histograms.
	}
}

// snapshot is the detached buffered state one Flush submits.
//
// Flush() must reset buffers under a lock but submit out-of-lock; snapshot
// separates collect+reset from payload building+submission.
type snapshot struct {
	generateCounts  map[string]float64
	generateDur     map[string][]float64
	fieldCounts     map[string]float64
	storeSaves      map[string]float64
	importCounts    map[string]float64
	batchFileCounts map[string]float64

	httpReqCounts map[string]float64
	httpReqDur    map[string][]float64
}

// snapshotAndReset grabs current buffered metrics and resets the buffers.
//
// Concurrency:
//   - Must be called with no lock held.
//   - Takes the lock internally and returns detached maps/slices.
func (b *Backend) snapshotAndReset() snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := snapshot{
		generateCounts:  b.generateCounts,
		generateDur:     b.generateDur,
		fieldCounts:     b.fieldCounts,
		storeSaves:      b.storeSaves,
		importCounts:    b.importCounts,
		batchFileCounts: b.batchFileCounts,

		httpReqCounts: b.httpReqCounts,
		httpReqDur:    b.httpReqDur,
	}

	b.generateCounts = make(map[string]float64)
	b.generateDur = make(map[string][]float64)
	b.fieldCounts = make(map[string]float64)
	b.storeSaves = make(map[string]float64)
	b.importCounts = make(map[string]float64)
	b.batchFileCounts = make(map[string]float64)

	b.httpReqCounts = make(map[string]float64)
	b.httpReqDur = make(map[string][]float64)

	return s
}

// isEmpty returns true if the snapshot contains no data to submit.
func (s snapshot) isEmpty() bool {
	return len(s.generateCounts) == 0 &&
		len(s.generateDur) == 0 &&
		len(s.fieldCounts) == 0 &&
		len(s.storeSaves) == 0 &&
		len(s.importCounts) == 0 &&
		len(s.batchFileCounts) == 0 &&
		len(s.httpReqCounts) == 0 &&
		len(s.httpReqDur) == 0
}

// Flush submits buffered metrics to Datadog and resets local buffers.
//
// Errors:
//   - Returns any error from Datadog submission.
//   - Returns nil if there is nothing to submit.
//
// Edge cases:
//   - Safe to call concurrently with IncCounter/ObserveHistogram.
//   - Buffers reset even if submission fails, to keep the hot path from
//     blocking behind a broken intake. Delivery is best-effort.
func (b *Backend) Flush() error {
	snap := b.snapshotAndReset()
	if snap.isEmpty() {
		return nil
	}

	nowUnix := b.now().Unix()

	series := b.buildSeries(snap, nowUnix)
	payload := datadogV2.MetricPayload{Series: series}

	_, _, err := b.api.SubmitMetrics(b.ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters())
	return err
}

// buildSeries constructs Datadog series for a snapshot at a fixed timestamp.
//
// It is pure (no locks, no network, no clocks), which keeps the
// naming/tagging contract unit-testable.
func (b *Backend) buildSeries(s snapshot, nowUnix int64) []datadogV2.MetricSeries {
	addCount := func(metric string, value float64, tags []string) datadogV2.MetricSeries {
		return datadogV2.MetricSeries{
			Metric: metric,
			Type:   datadogV2.METRICINTAKETYPE_COUNT.Ptr(),
			Points: []datadogV2.MetricPoint{
				{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
			},
			Tags: tags,
		}
	}

	series := make([]datadogV2.MetricSeries, 0, len(s.generateCounts)+len(s.fieldCounts)+64)

	for status, v := range s.generateCounts {
		if v == 0 {
			continue
		}
		tags := withTags(b.baseTags, "status:"+status)
		series = append(series, addCount("formflow.generate.total", v, tags))
	}

	for kind, v := range s.fieldCounts {
		if v == 0 {
			continue
		}
		tags := withTags(b.baseTags, "type:"+kind)
		series = append(series, addCount("formflow.fields.total", v, tags))
	}

	for k, v := range s.storeSaves {
		if v == 0 {
			continue
		}
		driver, status := splitPairKey(k)
		tags := withTags(b.baseTags, "driver:"+driver, "status:"+status)
		series = append(series, addCount("formflow.store.saves.total", v, tags))
	}

	for source, v := range s.importCounts {
		if v == 0 {
			continue
		}
		tags := withTags(b.baseTags, "source:"+source)
		series = append(series, addCount("formflow.imports.total", v, tags))
	}

	for status, v := range s.batchFileCounts {
		if v == 0 {
			continue
		}
		tags := withTags(b.baseTags, "status:"+status)
		series = append(series, addCount("formflow.batch.files.total", v, tags))
	}

	for status, samples := range s.generateDur {
		tags := withTags(b.baseTags, "status:"+status)
		addPercentiles(&series, "formflow.generate.duration_seconds", tags, samples, nowUnix)
	}

	for k, v := range s.httpReqCounts {
		if v == 0 {
			continue
		}
		route, status := splitPairKey(k)
		tags := withTags(b.baseTags, "route:"+route, "status:"+status)
		series = append(series, addCount("formflow.http.requests.total", v, tags))
	}

	for k, samples := range s.httpReqDur {
		route, status := splitPairKey(k)
		tags := withTags(b.baseTags, "route:"+route, "status:"+status)
		addPercentiles(&series, "formflow.http.request_duration_seconds", tags, samples, nowUnix)
	}

	return series
}

// addPercentiles appends the fixed percentile gauge set for a sample set.
//
// Edge cases:
//   - If samples is empty, it does nothing.
//   - It sorts a copy of samples (does not mutate input).
func addPercentiles(series *[]datadogV2.MetricSeries, metricPrefix string, tags []string, samples []float64, nowUnix int64) {
	if len(samples) == 0 {
		return
	}
	cp := append([]float64(nil), samples...)
	sort.Float64s(cp)

	*series = append(*series, gaugeSeries(metricPrefix+".p50", percentileNearestRank(cp, 0.50), tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".p90", percentileNearestRank(cp, 0.90), tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".p95", percentileNearestRank(cp, 0.95), tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".p99", percentileNearestRank(cp, 0.99), tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".max", cp[len(cp)-1], tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".samples", float64(len(cp)), tags, nowUnix))
}

func gaugeSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   datadogV2.METRICINTAKETYPE_GAUGE.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func statusOrUnknown(labels metrics.Labels) string {
	if s := labels["status"]; s != "" {
		return s
	}
	return "unknown"
}

func pairKey(a, b string) string {
	return a + "\x00" + b
}

func splitPairKey(k string) (a, b string) {
	parts := strings.SplitN(k, "\x00", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return k, "unknown"
}

func withTags(base []string, extras ...string) []string {
	out := make([]string, 0, len(base)+len(extras))
	out = append(out, base...)
	out = append(out, extras...)
	return out
}

func percentileNearestRank(s []float64, p float64) float64 {
	n := len(s)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return s[0]
	}
	if p >= 1 {
		return s[n-1]
	}
	idx := int(p*float64(n-1) + 0.5)
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return s[idx]
}

var _ metrics.Backend = (*Backend)(nil)

// ParseTagsCSV parses comma-separated tags like "env:prod,service:formflow".
func ParseTagsCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func wrapInitErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("datadog metrics init: %w", err)
}
