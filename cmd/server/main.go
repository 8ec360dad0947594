// Command server runs the form generation HTTP API.
//
// The store is optional: without a configured DSN the service still generates
// and imports forms, and the /api/forms routes answer 503.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/XYIAN/form-flow-sub001/internal/api"
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
type deps struct {
	Stderr io.Writer

	BackendFactory func(ctx context.Context, tags []string, flushEvery time.Duration) (backendCloser, error)
	OpenStore      func(ctx context.Context, cfg store.Config) (store.Repository, error)
}

// runConfig holds the parsed flags for a run.
type runConfig struct {
	Addr        string
	StoreKind   string
	StoreDSN    string
	CORSOrigins string

	DDMetrics  bool
	DDTagsCSV  string
	FlushEvery time.Duration
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	code := run(ctx, os.Args[1:], deps{
		Stderr: os.Stderr,
		BackendFactory: func(ctx context.Context, tags []string, flushEvery time.Duration) (backendCloser, error) {
			return datadog.NewBackend(ctx, datadog.Options{
				JobName:    "formflow-api",
				Tags:       tags,
				FlushEvery: flushEvery,
			})
		},
		OpenStore: store.New,
	})
	os.Exit(code)
}

// run starts the server and blocks until ctx is canceled or serving fails.
//
// Exit codes:
//   - 0: clean shutdown.
//   - 1: serving or shutdown failure.
//   - 2: configuration/initialization error.
func run(ctx context.Context, args []string, d deps) int {
	if d.Stderr == nil {
		d.Stderr = io.Discard
	}

	cfg, err := parseFlags(args)
	if err != nil {
		fmt.Fprintln(d.Stderr, err.Error())
		return 2
	}
	addr := resolveAddr(cfg.Addr)

	if cfg.DDMetrics {
		if d.BackendFactory == nil {
			fmt.Fprintln(d.Stderr, "internal error: BackendFactory is nil")
			return 2
		}
		tags := append(datadog.ParseTagsCSV(cfg.DDTagsCSV), "tool:server")
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

	handler := &api.Handler{CORSOrigins: splitCSV(cfg.CORSOrigins)}

	if scfg, ok := resolveStoreConfig(cfg); ok {
		if d.OpenStore == nil {
			fmt.Fprintln(d.Stderr, "internal error: OpenStore is nil")
			return 2
		}
		repo, err := d.OpenStore(ctx, scfg)
		if err != nil {
			fmt.Fprintf(d.Stderr, "open store: %v\n", err)
			return 2
		}
		defer repo.Close()
		if err := repo.Init(ctx); err != nil {
			fmt.Fprintf(d.Stderr, "init store: %v\n", err)
			return 2
		}
		handler.Store = repo
		handler.StoreKind = scfg.Kind
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		fmt.Fprintf(d.Stderr, "listen: %v\n", err)
		return 2
	}

	srv := &http.Server{Handler: handler.Router()}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	fmt.Fprintf(d.Stderr, "listening on %s\n", ln.Addr())

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(d.Stderr, "server: %v\n", err)
			return 1
		}
		return 0
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(d.Stderr, "shutdown: %v\n", err)
			return 1
		}
		return 0
	}
}

// parseFlags parses command arguments into a runConfig.
func parseFlags(args []string) (runConfig, error) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)

	var usageBuf strings.Builder
	fs.SetOutput(&usageBuf)
	fs.Usage = func() {
		fmt.Fprintf(&usageBuf, "Usage of %s:\n", fs.Name())
		fs.PrintDefaults()
	}

	var cfg runConfig
	fs.StringVar(&cfg.Addr, "addr", "", "Listen address (default :8080, or :$PORT when set)")
	fs.StringVar(&cfg.StoreKind, "store-kind", "", "Store backend: sqlite, postgres or mssql (env FORMFLOW_STORE_KIND, default sqlite)")
	fs.StringVar(&cfg.StoreDSN, "store-dsn", "", "Store DSN; empty runs without persistence (env FORMFLOW_STORE_DSN)")
	fs.StringVar(&cfg.CORSOrigins, "cors-origins", "", "Allowed CORS origins CSV (default allow all)")
	fs.BoolVar(&cfg.DDMetrics, "dd-metrics", false, "Emit Datadog metrics")
	fs.StringVar(&cfg.DDTagsCSV, "dd-tags", "", "Extra Datadog tags CSV (e.g. env:prod,service:formflow)")
	fs.DurationVar(&cfg.FlushEvery, "metrics-flush", 1*time.Minute, "Datadog flush interval")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return runConfig{}, errors.New(usageBuf.String())
		}
		return runConfig{}, fmt.Errorf("%v\n\n%s", err, usageBuf.String())
	}
	return cfg, nil
}

// resolveAddr falls back from the -addr flag to $PORT to :8080.
func resolveAddr(addr string) string {
	if addr != "" {
		return addr
	}
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return ":8080"
}

// resolveStoreConfig resolves the optional store target from flags with
// environment fallback. ok is false when no DSN is configured anywhere.
func resolveStoreConfig(cfg runConfig) (store.Config, bool) {
	dsn := cfg.StoreDSN
	if dsn == "" {
		dsn = os.Getenv("FORMFLOW_STORE_DSN")
	}
	if dsn == "" {
		return store.Config{}, false
	}
	kind := cfg.StoreKind
	if kind == "" {
		kind = os.Getenv("FORMFLOW_STORE_KIND")
	}
	if kind == "" {
		kind = "sqlite"
	}
	return store.Config{Kind: kind, DSN: dsn}, true
}

// splitCSV splits a comma-separated list, trimming whitespace and dropping
// empty entries.
func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
