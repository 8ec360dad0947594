package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/XYIAN/form-flow-sub001/internal/form"
	"github.com/XYIAN/form-flow-sub001/internal/store"
)

// Repo implements store.Repository for Postgres.
//
// Fingerprint dedupe uses INSERT ... ON CONFLICT (fingerprint) DO NOTHING,
// so duplicate saves (same request replayed, same CSV regenerated) are
// idempotent without a read-before-write.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a Postgres-backed Repo. pgxpool connects lazily; DSN problems
// that only a dial would reveal surface on the first operation.
func New(ctx context.Context, cfg store.Config) (store.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	return &Repo{pool: pool}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() { r.pool.Close() }

const schemaSQL = `CREATE TABLE IF NOT EXISTS forms (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  description TEXT NOT NULL,
  fields_json JSONB NOT NULL,
  fingerprint TEXT NOT NULL UNIQUE,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
);`

const insertSQL = `INSERT INTO forms (id, title, description, fields_json, fingerprint, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (fingerprint) DO NOTHING;`

const selectCols = `id, title, description, fields_json::text, fingerprint, created_at, updated_at`

// Init creates the forms table. Idempotent; safe on every startup.
func (r *Repo) Init(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("postgres: create forms table: %w", err)
	}
	return nil
}

// SaveForm inserts f, or returns the already-stored row when a form with the
// same content fingerprint exists.
func (r *Repo) SaveForm(ctx context.Context, f form.Form) (store.SavedForm, error) {
	sf := store.NewSaved(f, time.Now())
	fieldsJSON, err := store.EncodeFields(f.Fields)
	if err != nil {
		return store.SavedForm{}, fmt.Errorf("postgres: encode fields: %w", err)
	}

	cmd, err := r.pool.Exec(ctx, insertSQL,
		sf.ID, f.Title, f.Description, fieldsJSON, sf.Fingerprint, sf.CreatedAt, sf.UpdatedAt)
	if err != nil {
		return store.SavedForm{}, fmt.Errorf("postgres: insert form: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return r.getWhere(ctx, "fingerprint = $1", sf.Fingerprint)
	}
	return sf, nil
}

func (r *Repo) GetForm(ctx context.Context, id string) (store.SavedForm, error) {
	return r.getWhere(ctx, "id = $1", id)
}

func (r *Repo) getWhere(ctx context.Context, cond string, arg any) (store.SavedForm, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+selectCols+` FROM forms WHERE `+cond, arg)
	sf, err := scanSaved(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.SavedForm{}, store.ErrNotFound
	}
	return sf, err
}

// ListForms returns all stored forms ordered newest first.
func (r *Repo) ListForms(ctx context.Context) ([]store.SavedForm, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+selectCols+` FROM forms ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list forms: %w", err)
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
		return nil, fmt.Errorf("postgres: list forms: %w", err)
	}
	return out, nil
}

func (r *Repo) DeleteForm(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM forms WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete form: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// rowScanner covers pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanSaved materializes one row. Column order must match selectCols.
func scanSaved(row rowScanner) (store.SavedForm, error) {
	var sf store.SavedForm
	var fieldsJSON string
	if err := row.Scan(&sf.ID, &sf.Form.Title, &sf.Form.Description,
		&fieldsJSON, &sf.Fingerprint, &sf.CreatedAt, &sf.UpdatedAt); err != nil {
		return store.SavedForm{}, err
	}

	fields, err := store.DecodeFields(fieldsJSON)
	if err != nil {
		return store.SavedForm{}, fmt.Errorf("postgres: form %s: %w", sf.ID, err)
	}
	sf.Form.Fields = fields

	// TIMESTAMPTZ scans in the session time zone; normalize for stable
	// comparisons upstream.
	sf.CreatedAt = sf.CreatedAt.UTC()
	sf.UpdatedAt = sf.UpdatedAt.UTC()
	return sf, nil
}

var _ store.Repository = (*Repo)(nil)
