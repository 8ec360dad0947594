// Command formgen turns CSV into form schemas from the command line.
//
// Single mode reads one CSV (file or stdin) and prints the generated form as
// JSON; -quality prints a quality report instead. Batch mode (-dir) fans
// workers over every .csv file in a directory. Either mode can persist the
// results with -save.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/XYIAN/form-flow-sub001/internal/batch"
	"github.com/XYIAN/form-flow-sub001/internal/inference"
	"github.com/XYIAN/form-flow-sub001/internal/metrics"
	"github.com/XYIAN/form-flow-sub001/internal/metrics/datadog"
	"github.com/XYIAN/form-flow-sub001/internal/store"

	_ "github.com/XYIAN/form-flow-sub001/internal/store/mssql"
	_ "github.com/XYIAN/form-flow-sub001/internal/store/postgres"
	_ "github.com/XYIAN/form-flow-sub001/internal/store/sqlite"
)

// backendCloser is the minimal interface this command needs to manage a
// metrics backend.
type backendCloser interface {
	metrics.Backend
	Close() error
}

// deps are external seams for testability.
//
// When to use:
//   - Unit tests: inject a fake backend factory and store, capture output.
//   - Alternate runtimes: swap the metrics backend or output sinks.
type deps struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	BackendFactory func(ctx context.Context, tags []string, flushEvery time.Duration) (backendCloser, error)
	OpenStore      func(ctx context.Context, cfg store.Config) (store.Repository, error)
}

// runConfig holds the parsed flags for a run.
type runConfig struct {
	In      string
	Dir     string
	Workers int

	Title   string
	Desc    string
	Preview bool
	Quality bool
	Out     string

	EnumMax         int
	EnumRatio       float64
	RequiredMaxNull float64

	Save      bool
	StoreKind string
	StoreDSN  string

	DDMetrics  bool
	DDTagsCSV  string
	FlushEvery time.Duration
}

func main() {
	code := run(context.Background(), os.Args[1:], deps{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		BackendFactory: func(ctx context.Context, tags []string, flushEvery time.Duration) (backendCloser, error) {
			return datadog.NewBackend(ctx, datadog.Options{
				JobName:    "formgen",
				Tags:       tags,
				FlushEvery: flushEvery,
			})
		},
		OpenStore: store.New,
	})
	os.Exit(code)
}

// run executes the command and returns an exit code.
//
// Exit codes:
//   - 0: success.
//   - 1: generation failed, or at least one batch file failed.
//   - 2: configuration/initialization error.
func run(ctx context.Context, args []string, d deps) int {
	if d.Stdin == nil {
		d.Stdin = strings.NewReader("")
	}
	if d.Stdout == nil {
		d.Stdout = io.Discard
	}
	if d.Stderr == nil {
		d.Stderr = io.Discard
	}

	cfg, err := parseFlags(args)
	if err != nil {
		fmt.Fprintln(d.Stderr, err.Error())
		return 2
	}

	if cfg.DDMetrics {
		if d.BackendFactory == nil {
			fmt.Fprintln(d.Stderr, "internal error: BackendFactory is nil")
			return 2
		}
		tags := append(datadog.ParseTagsCSV(cfg.DDTagsCSV), "tool:formgen")
		backend, err := d.BackendFactory(ctx, tags, cfg.FlushEvery)
		if err != nil {
			fmt.Fprintf(d.Stderr, "datadog backend init failed: %v\n", err)
			return 2
		}
		metrics.SetBackend(backend)
		defer func() {
			_ = metrics.Flush()
			_ = backend.Close()
		}()
	}

	var repo store.Repository
	storeKind := ""
	if cfg.Save {
		scfg, err := resolveStoreConfig(cfg)
		if err != nil {
			fmt.Fprintln(d.Stderr, err.Error())
			return 2
		}
		if d.OpenStore == nil {
			fmt.Fprintln(d.Stderr, "internal error: OpenStore is nil")
			return 2
		}
		repo, err = d.OpenStore(ctx, scfg)
		if err != nil {
			fmt.Fprintf(d.Stderr, "open store: %v\n", err)
			return 2
		}
		defer repo.Close()
		if err := repo.Init(ctx); err != nil {
			fmt.Fprintf(d.Stderr, "init store: %v\n", err)
			return 2
		}
		storeKind = scfg.Kind
	}

	if cfg.Dir != "" {
		return runBatch(ctx, cfg, d, repo, storeKind)
	}
	return runSingle(ctx, cfg, d, repo, storeKind)
}

// runSingle generates (or quality-checks) one CSV input.
func runSingle(ctx context.Context, cfg runConfig, d deps, repo store.Repository, storeKind string) int {
	text, err := readInput(cfg.In, d.Stdin)
	if err != nil {
		fmt.Fprintf(d.Stderr, "read input: %v\n", err)
		return 1
	}

	th := cfg.thresholds()

	if cfg.Quality {
		table, err := inference.Tokenize(text)
		if err != nil {
			fmt.Fprintf(d.Stderr, "quality: %v\n", err)
			return 1
		}
		report := inference.AnalyzeQuality(table, th)
		return writeOutput(cfg.Out, d.Stdout, d.Stderr, report)
	}

	start := time.Now()
	g, err := inference.Generate(text, inference.GenerateOptions{
		Title:          cfg.Title,
		Description:    cfg.Desc,
		IncludePreview: cfg.Preview,
		Thresholds:     th,
	})
	metrics.RecordGeneration(generationStatus(err), time.Since(start))
	if err != nil {
		fmt.Fprintf(d.Stderr, "generate: %v\n", err)
		return 1
	}
	for _, f := range g.Fields {
		metrics.RecordFieldType(string(f.Type))
	}
	metrics.RecordImport("csv")

	if repo == nil {
		return writeOutput(cfg.Out, d.Stdout, d.Stderr, g)
	}

	saveStart := time.Now()
	saved, err := repo.SaveForm(ctx, g.Form())
	if err != nil {
		metrics.RecordStoreSave(storeKind, "error")
		fmt.Fprintf(d.Stderr, "save form: %v\n", err)
		return 1
	}
	status := "created"
	if saved.CreatedAt.Before(saveStart) {
		status = "unchanged"
	}
	metrics.RecordStoreSave(storeKind, status)
	return writeOutput(cfg.Out, d.Stdout, d.Stderr, saved)
}

// runBatch fans workers over every .csv file in cfg.Dir.
func runBatch(ctx context.Context, cfg runConfig, d deps, repo store.Repository, storeKind string) int {
	paths, err := listCSVFiles(cfg.Dir)
	if err != nil {
		fmt.Fprintf(d.Stderr, "list %s: %v\n", cfg.Dir, err)
		return 2
	}
	if len(paths) == 0 {
		fmt.Fprintf(d.Stderr, "no .csv files in %s\n", cfg.Dir)
		return 2
	}

	r := batch.Runner{
		Workers:    cfg.Workers,
		Thresholds: cfg.thresholds(),
		Store:      repo,
		StoreKind:  storeKind,
		Logger:     log.New(d.Stderr, "", log.LstdFlags),
	}
	sum, runErr := r.Run(ctx, paths)

	for _, f := range sum.Failures {
		fmt.Fprintln(d.Stderr, f.Error())
	}
	fmt.Fprintf(d.Stderr, "processed %d files: %d ok, %d failed\n", sum.Files, sum.Succeeded, sum.Failed)

	if runErr != nil {
		fmt.Fprintf(d.Stderr, "batch aborted: %v\n", runErr)
		return 1
	}
	if sum.Failed > 0 {
		return 1
	}
	return 0
}

// parseFlags parses command arguments into a validated runConfig.
//
// Errors:
//   - Returns an error for invalid or conflicting flags.
//   - Does not exit the process (caller decides exit code).
func parseFlags(args []string) (runConfig, error) {
	fs := flag.NewFlagSet("formgen", flag.ContinueOnError)

	// Capture help/usage text instead of writing to stdout.
	var usageBuf strings.Builder
	fs.SetOutput(&usageBuf)
	fs.Usage = func() {
		fmt.Fprintf(&usageBuf, "Usage of %s:\n", fs.Name())
		fs.PrintDefaults()
	}

	var cfg runConfig
	fs.StringVar(&cfg.In, "in", "", "CSV input file, or - for stdin (default stdin)")
	fs.StringVar(&cfg.Dir, "dir", "", "Batch mode: process every .csv file in this directory")
	fs.IntVar(&cfg.Workers, "workers", 4, "Number of concurrent workers in batch mode")
	fs.StringVar(&cfg.Title, "title", "", "Form title (default derived by the engine)")
	fs.StringVar(&cfg.Desc, "desc", "", "Form description")
	fs.BoolVar(&cfg.Preview, "preview", false, "Include sample rows in the output")
	fs.BoolVar(&cfg.Quality, "quality", false, "Print a data quality report instead of a form")
	fs.StringVar(&cfg.Out, "out", "", "Write JSON output to this file instead of stdout")
	fs.IntVar(&cfg.EnumMax, "enum-max", 0, "Max distinct values for a select column (0 = engine default)")
	fs.Float64Var(&cfg.EnumRatio, "enum-ratio", 0, "Max distinct/non-null ratio for a select column (0 = engine default)")
	fs.Float64Var(&cfg.RequiredMaxNull, "required-max-null", 0, "Null ratio below which a field is required (0 = engine default)")
	fs.BoolVar(&cfg.Save, "save", false, "Persist generated forms to the configured store")
	fs.StringVar(&cfg.StoreKind, "store-kind", "", "Store backend: sqlite, postgres or mssql (env FORMFLOW_STORE_KIND, default sqlite)")
	fs.StringVar(&cfg.StoreDSN, "store-dsn", "", "Store DSN (env FORMFLOW_STORE_DSN)")
	fs.BoolVar(&cfg.DDMetrics, "dd-metrics", false, "Emit Datadog metrics")
	fs.StringVar(&cfg.DDTagsCSV, "dd-tags", "", "Extra Datadog tags CSV (e.g. env:prod,service:formflow)")
	fs.DurationVar(&cfg.FlushEvery, "metrics-flush", 1*time.Minute, "Datadog flush interval")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return runConfig{}, errors.New(usageBuf.String())
		}
		return runConfig{}, fmt.Errorf("%v\n\n%s", err, usageBuf.String())
	}

	if cfg.In != "" && cfg.Dir != "" {
		return runConfig{}, errors.New("use -in or -dir, not both")
	}
	if cfg.In == "" && cfg.Dir == "" {
		cfg.In = "-"
	}
	if cfg.Quality && cfg.Dir != "" {
		return runConfig{}, errors.New("-quality works on a single input, not -dir")
	}
	if cfg.Quality && cfg.Save {
		return runConfig{}, errors.New("-quality reports are not saveable; drop -save")
	}
	if cfg.Workers <= 0 {
		return runConfig{}, errors.New("-workers must be > 0")
	}
	if cfg.EnumMax < 0 {
		return runConfig{}, errors.New("-enum-max must be >= 0")
	}
	if cfg.EnumRatio < 0 || cfg.EnumRatio > 1 {
		return runConfig{}, errors.New("-enum-ratio must be in [0,1]")
	}
	if cfg.RequiredMaxNull < 0 || cfg.RequiredMaxNull > 1 {
		return runConfig{}, errors.New("-required-max-null must be in [0,1]")
	}

	return cfg, nil
}

// thresholds maps the flag values onto engine thresholds. Zero flag values
// stay zero so the engine fills its defaults.
func (cfg runConfig) thresholds() inference.Thresholds {
	return inference.Thresholds{
		MaxEnumDistinct:   cfg.EnumMax,
		MaxEnumRatio:      cfg.EnumRatio,
		RequiredNullRatio: cfg.RequiredMaxNull,
	}
}

// resolveStoreConfig resolves -save's store target from flags with
// environment fallback.
func resolveStoreConfig(cfg runConfig) (store.Config, error) {
	kind := cfg.StoreKind
	if kind == "" {
		kind = os.Getenv("FORMFLOW_STORE_KIND")
	}
	if kind == "" {
		kind = "sqlite"
	}
	dsn := cfg.StoreDSN
	if dsn == "" {
		dsn = os.Getenv("FORMFLOW_STORE_DSN")
	}
	if dsn == "" {
		return store.Config{}, errors.New("missing -store-dsn (or FORMFLOW_STORE_DSN)")
	}
	return store.Config{Kind: kind, DSN: dsn}, nil
}

// readInput reads the whole CSV input; "-" means stdin.
func readInput(path string, stdin io.Reader) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// listCSVFiles returns the .csv files directly inside dir, sorted by name.
func listCSVFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// writeOutput marshals v as indented JSON to -out or stdout. Returns an exit
// code so callers can pass it straight through.
func writeOutput(path string, stdout, stderr io.Writer, v any) int {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(stderr, "encode output: %v\n", err)
		return 1
	}
	b = append(b, '\n')
	if path == "" {
		if _, err := stdout.Write(b); err != nil {
			fmt.Fprintf(stderr, "write output: %v\n", err)
			return 1
		}
		return 0
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		fmt.Fprintf(stderr, "write %s: %v\n", path, err)
		return 1
	}
	return 0
}

// generationStatus maps an engine error onto the metric status label.
func generationStatus(err error) string {
	if err == nil {
		return "ok"
	}
	var pe *inference.ParseError
	if errors.As(err, &pe) {
		return "parse_error"
	}
	var ee *inference.EmptyInputError
	if errors.As(err, &ee) {
		return "empty_input"
	}
	return "error"
}
