package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/XYIAN/form-flow-sub001/internal/form"
	"github.com/XYIAN/form-flow-sub001/internal/store"
)

// Repo implements store.Repository for Microsoft SQL Server.
//
// SQL Server has no ON CONFLICT, so fingerprint dedupe uses an
// INSERT ... SELECT ... WHERE NOT EXISTS over a VALUES derived table. The
// NOT EXISTS check and the insert are not atomic; a concurrent save of the
// same fingerprint can still trip the UNIQUE constraint, which SaveForm
// recovers from by re-reading the row.
type Repo struct {
	db dbConn
}

func init() {
	store.Register("mssql", New)
}

// New constructs a Repo using database/sql and the "sqlserver" driver.
// Connectivity is validated via PingContext.
func New(ctx context.Context, cfg store.Config) (store.Repository, error) {
	raw, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}

	// Modest pool bounds for API-style bursty traffic.
	raw.SetMaxOpenConns(16)
	raw.SetMaxIdleConns(16)

	if err := raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	return &Repo{db: &sqlDB{db: raw}}, nil
}

func (r *Repo) Close() {
	if r == nil || r.db == nil {
		return
	}
	_ = r.db.Close()
}

// NVARCHAR(MAX) cannot carry a UNIQUE index, so fingerprint is sized to its
// exact width (64 hex chars).
const schemaSQL = `IF OBJECT_ID(N'forms', N'U') IS NULL BEGIN CREATE TABLE [forms] (
  [id] NVARCHAR(36) NOT NULL PRIMARY KEY,
  [title] NVARCHAR(400) NOT NULL,
  [description] NVARCHAR(MAX) NOT NULL,
  [fields_json] NVARCHAR(MAX) NOT NULL,
  [fingerprint] NVARCHAR(64) NOT NULL UNIQUE,
  [created_at] DATETIME2 NOT NULL,
  [updated_at] DATETIME2 NOT NULL
); END;`

const insertSQL = `INSERT INTO [forms] ([id], [title], [description], [fields_json], [fingerprint], [created_at], [updated_at])
SELECT v.[id], v.[title], v.[description], v.[fields_json], v.[fingerprint], v.[created_at], v.[updated_at]
FROM (VALUES (@p1, @p2, @p3, @p4, @p5, @p6, @p7)) AS v([id], [title], [description], [fields_json], [fingerprint], [created_at], [updated_at])
WHERE NOT EXISTS (SELECT 1 FROM [forms] t WHERE t.[fingerprint] = v.[fingerprint])`

const selectPrefix = `SELECT [id], [title], [description], [fields_json], [fingerprint], [created_at], [updated_at] FROM [forms]`

// Init creates the forms table behind an OBJECT_ID guard, which keeps startup
// idempotent without IF NOT EXISTS syntax.
func (r *Repo) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("mssql: create forms table: %w", err)
	}
	return nil
}

// SaveForm inserts f, or returns the already-stored row when a form with the
// same content fingerprint exists.
func (r *Repo) SaveForm(ctx context.Context, f form.Form) (store.SavedForm, error) {
	sf := store.NewSaved(f, time.Now())
	fieldsJSON, err := store.EncodeFields(f.Fields)
	if err != nil {
		return store.SavedForm{}, fmt.Errorf("mssql: encode fields: %w", err)
	}

	res, err := r.db.ExecContext(ctx, insertSQL,
		sf.ID, f.Title, f.Description, fieldsJSON, sf.Fingerprint, sf.CreatedAt, sf.UpdatedAt)
	if err != nil {
		// A concurrent save of the same fingerprint can slip between the NOT
		// EXISTS check and the insert; if the row is there now, return it.
		if existing, gerr := r.getBy(ctx, `[fingerprint] = @p1`, sf.Fingerprint); gerr == nil {
			return existing, nil
		}
		return store.SavedForm{}, fmt.Errorf("mssql: insert form: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.getBy(ctx, `[fingerprint] = @p1`, sf.Fingerprint)
	}
	return sf, nil
}

func (r *Repo) GetForm(ctx context.Context, id string) (store.SavedForm, error) {
	return r.getBy(ctx, `[id] = @p1`, id)
}

func (r *Repo) getBy(ctx context.Context, cond string, arg any) (store.SavedForm, error) {
	row := r.db.QueryRowContext(ctx, selectPrefix+` WHERE `+cond, arg)
	sf, err := scanSaved(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.SavedForm{}, store.ErrNotFound
	}
	return sf, err
}

// ListForms returns all stored forms ordered newest first.
func (r *Repo) ListForms(ctx context.Context) ([]store.SavedForm, error) {
	rows, err := r.db.QueryContext(ctx, selectPrefix+` ORDER BY [created_at] DESC, [id]`)
	if err != nil {
		return nil, fmt.Errorf("mssql: list forms: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []store.SavedForm
	for rows.Next() {
		sf, err := scanSaved(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mssql: list forms: %w", err)
	}
	return out, nil
}

func (r *Repo) DeleteForm(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM [forms] WHERE [id] = @p1`, id)
	if err != nil {
		return fmt.Errorf("mssql: delete form: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// scanSaved materializes one row. Column order must match selectPrefix.
func scanSaved(row rowScanner) (store.SavedForm, error) {
	var sf store.SavedForm
	var fieldsJSON string
	if err := row.Scan(&sf.ID, &sf.Form.Title, &sf.Form.Description,
		&fieldsJSON, &sf.Fingerprint, &sf.CreatedAt, &sf.UpdatedAt); err != nil {
		return store.SavedForm{}, err
	}

	fields, err := store.DecodeFields(fieldsJSON)
	if err != nil {
		return store.SavedForm{}, fmt.Errorf("mssql: form %s: %w", sf.ID, err)
	}
	sf.Form.Fields = fields

	// DATETIME2 carries no zone; rows were written in UTC.
	sf.CreatedAt = sf.CreatedAt.UTC()
	sf.UpdatedAt = sf.UpdatedAt.UTC()
	return sf, nil
}

// ---- database/sql seam types ----

// dbConn is a small interface over *sql.DB used to make this package
// testable. It intentionally includes only the methods this file needs.
type dbConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (rowsScanner, error)
	QueryRowContext(ctx context.Context, query string, args ...any) rowScanner
	Close() error
}

// rowScanner is a narrow adapter over *sql.Row.Scan.
type rowScanner interface {
	Scan(dest ...any) error
}

// rowsScanner models the minimal iteration surface of *sql.Rows.
type rowsScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// sqlDB wraps *sql.DB to implement dbConn.
type sqlDB struct {
	db *sql.DB
}

func (s *sqlDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, query, args...)
}

func (s *sqlDB) QueryContext(ctx context.Context, query string, args ...any) (rowsScanner, error) {
	return s.db.QueryContext(ctx, query, args...)
}

func (s *sqlDB) QueryRowContext(ctx context.Context, query string, args ...any) rowScanner {
	return s.db.QueryRowContext(ctx, query, args...)
}

func (s *sqlDB) Close() error { return s.db.Close() }

var (
	_ dbConn           = (*sqlDB)(nil)
	_ store.Repository = (*Repo)(nil)
)
