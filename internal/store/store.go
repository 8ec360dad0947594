// Package store persists generated forms behind a backend-agnostic
// Repository interface.
//
// Backends register themselves by kind ("postgres", "sqlite", "mssql") from
// their init() functions; New selects one by Config.Kind. Each backend keeps
// the same semantics in its own SQL dialect: one forms table with a UNIQUE
// content fingerprint, so saving a byte-identical form is a no-op that
// returns the existing row.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/XYIAN/form-flow-sub001/internal/form"
)

// Config is the minimal configuration needed to open a form store.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is
//     backend-specific.
type Config struct {
	Kind string
	DSN  string
}

// SavedForm is a stored form plus the identity and timestamps the store
// assigned to it. The Form value itself never carries these; they exist only
// once a form has been persisted.
type SavedForm struct {
	ID          string    `json:"id"`
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Form        form.Form `json:"form"`
}

// ErrNotFound is returned by GetForm and DeleteForm when no row matches the
// given id. Callers branch on it with errors.Is.
var ErrNotFound = errors.New("store: form not found")

// Repository is a backend-agnostic interface over form persistence.
//
// IMPORTANT: this interface is intentionally minimal and focused on what the
// API, batch runner, and CLIs need. Each backend implements the semantics in
// its own idiomatic way (Postgres ON CONFLICT, SQLite OR IGNORE, SQL Server
// NOT EXISTS).
type Repository interface {
	// Init creates the forms table if it does not exist. Idempotent; safe to
	// run on every startup.
	Init(ctx context.Context) error

	// SaveForm persists f and returns the stored row. Saving a form whose
	// content fingerprint already exists returns the existing row unchanged
	// instead of creating a duplicate.
	SaveForm(ctx context.Context, f form.Form) (SavedForm, error)

	// GetForm returns the stored form with the given id, or ErrNotFound.
	GetForm(ctx context.Context, id string) (SavedForm, error)

	// ListForms returns all stored forms, newest first.
	ListForms(ctx context.Context) ([]SavedForm, error)

	// DeleteForm removes the stored form with the given id, or returns
	// ErrNotFound if there is none.
	DeleteForm(ctx context.Context, id string) error

	// Close releases backend resources. Callers should treat Close as
	// "call once" at shutdown.
	Close()
}

// ---- backend factories ----

type factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu     sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind (e.g. "postgres", "sqlite").
//
// When to use:
//   - Call Register from an init() function in a backend package.
//   - The kind string becomes the lookup key used by New.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered. This is intentional to fail fast and
//     avoid ambiguous backend selection.
func Register(kind string, f factory) {
	regMu.Lock()
	defer regMu.Unlock()

	if kind == "" {
		panic("store: Register called with empty kind")
	}
	if f == nil {
		panic("store: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("store: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a Repository using the registered backend factory for
// cfg.Kind.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
//
// Concurrency:
//   - Safe for concurrent use with Register; New takes a read lock while
//     selecting the factory.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("store: missing store.Kind")
	}

	regMu.RLock()
	f := factories[cfg.Kind]
	regMu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported store.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}
