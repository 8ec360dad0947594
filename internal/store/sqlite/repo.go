package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/XYIAN/form-flow-sub001/internal/form"
	"github.com/XYIAN/form-flow-sub001/internal/store"
)

// Repo implements store.Repository for SQLite.
//
// Key design points vs Postgres:
//   - SQLite has no native TIMESTAMPTZ type; modernc.org/sqlite stores
//     timestamps with TEXT affinity. This repo writes them as RFC3339Nano
//     strings for reliable round-trip behavior and easy debugging.
//   - Fingerprint dedupe uses INSERT OR IGNORE, which relies on the UNIQUE
//     constraint on the fingerprint column.
type Repo struct {
	db *sql.DB
}

func init() {
	store.Register("sqlite", New)
}

// now is swapped in tests to control row timestamps.
var now = time.Now

func New(ctx context.Context, cfg store.Config) (store.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	// A single pooled connection keeps ":memory:" databases stable (each new
	// connection would otherwise see a fresh empty database) and avoids
	// SQLITE_BUSY between concurrent writers.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

const schemaSQL = `CREATE TABLE IF NOT EXISTS forms (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  description TEXT NOT NULL,
  fields_json TEXT NOT NULL,
  fingerprint TEXT NOT NULL UNIQUE,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);`

// Init creates the forms table. Idempotent; runs on every startup.
func (r *Repo) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("sqlite: create forms table: %w", err)
	}
	return nil
}

const selectCols = `id, title, description, fields_json, fingerprint, created_at, updated_at`

// SaveForm inserts f, or returns the already-stored row when a form with the
// same content fingerprint exists.
func (r *Repo) SaveForm(ctx context.Context, f form.Form) (store.SavedForm, error) {
	sf := store.NewSaved(f, now())
	fieldsJSON, err := store.EncodeFields(f.Fields)
	if err != nil {
		return store.SavedForm{}, fmt.Errorf("sqlite: encode fields: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO forms (`+selectCols+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sf.ID, f.Title, f.Description, fieldsJSON, sf.Fingerprint,
		formatTime(sf.CreatedAt), formatTime(sf.UpdatedAt),
	)
	if err != nil {
		return store.SavedForm{}, fmt.Errorf("sqlite: insert form: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Fingerprint already present: the insert was ignored, so the caller
		// gets the existing row.
		return r.getBy(ctx, "fingerprint", sf.Fingerprint)
	}
	return sf, nil
}

func (r *Repo) GetForm(ctx context.Context, id string) (store.SavedForm, error) {
	return r.getBy(ctx, "id", id)
}

func (r *Repo) getBy(ctx context.Context, column, value string) (store.SavedForm, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+selectCols+` FROM forms WHERE `+sqlIdent(column)+` = ?`, value)
	sf, err := scanSaved(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.SavedForm{}, store.ErrNotFound
	}
	return sf, err
}

// ListForms returns all stored forms ordered newest first.
func (r *Repo) ListForms(ctx context.Context) ([]store.SavedForm, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+selectCols+` FROM forms`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list forms: %w", err)
	}
	defer rows.Close()

	var out []store.SavedForm
	for rows.Next() {
		sf, err := scanSaved(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sf)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// RFC3339Nano trims trailing zeros, so the TEXT column does not collate
	// chronologically; order after scanning instead of in SQL.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *Repo) DeleteForm(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM forms WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: delete form: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSaved(row rowScanner) (store.SavedForm, error) {
	var sf store.SavedForm
	var fieldsJSON, createdRaw, updatedRaw string
	if err := row.Scan(&sf.ID, &sf.Form.Title, &sf.Form.Description,
		&fieldsJSON, &sf.Fingerprint, &createdRaw, &updatedRaw); err != nil {
		return store.SavedForm{}, err
	}

	fields, err := store.DecodeFields(fieldsJSON)
	if err != nil {
		return store.SavedForm{}, fmt.Errorf("sqlite: form %s: %w", sf.ID, err)
	}
	sf.Form.Fields = fields

	if sf.CreatedAt, err = parseTime(createdRaw); err != nil {
		return store.SavedForm{}, fmt.Errorf("sqlite: form %s: parse created_at=%q: %w", sf.ID, createdRaw, err)
	}
	if sf.UpdatedAt, err = parseTime(updatedRaw); err != nil {
		return store.SavedForm{}, fmt.Errorf("sqlite: form %s: parse updated_at=%q: %w", sf.ID, updatedRaw, err)
	}
	return sf, nil
}

func sqlIdent(id string) string {
	// SQLite supports "quoted identifiers"
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// formatTime formats a time as RFC3339Nano in UTC. Timestamps are stored as
// TEXT for reliable scanning/parsing with modernc.org/sqlite.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime parses timestamps returned by SQLite into time.Time.
//
// Supported formats:
//   - RFC3339Nano (what we write)
//   - RFC3339
//   - Common "SQLite-like" formats used by other tools/libs:
//     "2006-01-02 15:04:05Z07:00"
//     "2006-01-02 15:04:05.999999999Z07:00"
//     "2006-01-02 15:04:05" (interpreted as UTC)
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time string")
	}

	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if layout == "2006-01-02 15:04:05" {
			if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
				return ts.UTC(), nil
			}
			continue
		}
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time format: %q", s)
}

var _ store.Repository = (*Repo)(nil)
