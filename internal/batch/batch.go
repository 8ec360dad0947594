// Package batch fans workers over CSV files on disk and turns each file into
// a generated form, optionally persisting every result. One bad file never
// aborts the run; a canceled context does.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/XYIAN/form-flow-sub001/internal/form"
	"github.com/XYIAN/form-flow-sub001/internal/inference"
	"github.com/XYIAN/form-flow-sub001/internal/metrics"
	"github.com/XYIAN/form-flow-sub001/internal/store"
)

// Runner configures one batch run. The zero value processes files one at a
// time with default thresholds and no persistence.
type Runner struct {
	// Workers caps concurrent file generations. Values below 1 mean 1.
	Workers int

	// Thresholds tunes the engine for every file in the run.
	Thresholds inference.Thresholds

	// Store, when non-nil, receives each generated form.
	Store store.Repository

	// StoreKind labels persistence metrics; set it to the store.Config.Kind
	// the Store was built from.
	StoreKind string

	// Logger receives per-file progress lines. nil discards them.
	Logger *log.Logger
}

// FileError pairs one failed path with its cause.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string { return fmt.Sprintf("%s: %v", e.Path, e.Err) }

// Summary aggregates one run. Files counts every requested path; paths never
// dispatched because the context was canceled appear in neither Succeeded
// nor Failed.
type Summary struct {
	Files     int
	Succeeded int
	Failed    int
	Failures  []FileError
}

// Run processes paths and reports the aggregate outcome.
//
// Behavior:
//   - Each file is read, generated (title derived from the file name), and
//     saved when a Store is configured.
//   - Per-file errors land in Summary.Failures and processing continues.
//   - Context cancellation stops dispatching new files and returns the
//     context's error alongside the partial Summary.
func (r *Runner) Run(ctx context.Context, paths []string) (Summary, error) {
	sum := Summary{Files: len(paths)}
	if len(paths) == 0 {
		return sum, nil
	}
	if err := ctx.Err(); err != nil {
		return sum, err
	}

	workers := r.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(paths) {
		workers = len(paths)
	}

	logf := r.logf()

	// Workers report through record; the summary is only read again after
	// every worker has exited.
	var mu sync.Mutex
	record := func(path string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			sum.Failed++
			sum.Failures = append(sum.Failures, FileError{Path: path, Err: err})
			return
		}
		sum.Succeeded++
	}

	jobs := make(chan string)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(workerID int) {
			defer wg.Done()

			for path := range jobs {
				start := time.Now()
				err := r.processFile(ctx, path)
				dur := time.Since(start).Truncate(time.Millisecond)

				if err != nil {
					metrics.RecordBatchFile("error")
					logf("stage=batch_file worker=%d path=%s status=error duration=%s err=%v", workerID, path, dur, err)
				} else {
					metrics.RecordBatchFile("ok")
					logf("stage=batch_file worker=%d path=%s status=ok duration=%s", workerID, path, dur)
				}
				record(path, err)
			}
		}(w)
	}

	// Producer: stop dispatching as soon as the context dies; workers finish
	// what they already picked up.
	go func() {
		defer close(jobs)
		for _, p := range paths {
			select {
			case <-ctx.Done():
				return
			case jobs <- p:
			}
		}
	}()

	wg.Wait()

	return sum, ctx.Err()
}

// processFile runs the read -> generate -> save pipeline for one path.
func (r *Runner) processFile(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}

	start := time.Now()
	g, err := inference.Generate(string(data), inference.GenerateOptions{
		Title:      titleFromPath(path),
		Thresholds: r.Thresholds,
	})
	metrics.RecordGeneration(generationStatus(err), time.Since(start))
	if err != nil {
		return err
	}
	for _, f := range g.Fields {
		metrics.RecordFieldType(string(f.Type))
	}

	if r.Store == nil {
		return nil
	}

	saveStart := time.Now()
	saved, err := r.Store.SaveForm(ctx, g.Form())
	if err != nil {
		metrics.RecordStoreSave(r.driverLabel(), "error")
		return fmt.Errorf("save form: %w", err)
	}
	// Timestamps are stamped in-process, so a row created by an earlier save
	// carries a CreatedAt from before this attempt began.
	status := "created"
	if saved.CreatedAt.Before(saveStart) {
		status = "unchanged"
	}
	metrics.RecordStoreSave(r.driverLabel(), status)
	return nil
}

func (r *Runner) driverLabel() string {
	if r.StoreKind == "" {
		return "unknown"
	}
	return r.StoreKind
}

func (r *Runner) logf() func(format string, v ...any) {
	if r.Logger == nil {
		l := log.New(io.Discard, "", 0)
		return l.Printf
	}
	return r.Logger.Printf
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

// titleFromPath derives a human form title from a file name:
// "customer_list.csv" becomes "Customer List". An unusable name returns ""
// and the generator falls back to its default title.
func titleFromPath(path string) string {
	base := filepath.Base(path)
	return form.Humanize(strings.TrimSuffix(base, filepath.Ext(base)))
}
