package docstore

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// Schema creates the table backing Postgres.
const Schema = `
CREATE TABLE IF NOT EXISTS documents (
	path       TEXT PRIMARY KEY,
	parent     TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_documents_parent ON documents(parent);
`

// Postgres persists documents in a single table keyed by path. The parent
// column makes child listing an index lookup.
type Postgres struct {
	db *sql.DB
}

// NewPostgres wraps an open pgx-backed *sql.DB.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates the documents table if needed.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, Schema)
	return errors.Wrap(err, "migrate documents")
}

func (p *Postgres) Get(ctx context.Context, path string) (string, error) {
	var v string
	err := p.db.QueryRowContext(ctx, `SELECT value FROM documents WHERE path = $1`, path).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", errors.Wrapf(err, "get %s", path)
	}
	return v, nil
}

const upsertDocument = `
	INSERT INTO documents (path, parent, value)
	VALUES ($1, $2, $3)
	ON CONFLICT (path) DO UPDATE SET
		value = EXCLUDED.value,
		updated_at = NOW()
`

func (p *Postgres) Set(ctx context.Context, path, value string) error {
	if !validPath(path) {
		return ErrInvalidPath
	}
	_, err := p.db.ExecContext(ctx, upsertDocument, path, parentOf(path), value)
	return errors.Wrapf(err, "set %s", path)
}

func (p *Postgres) Update(ctx context.Context, values map[string]string) error {
	for path := range values {
		if !validPath(path) {
			return ErrInvalidPath
		}
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin update")
	}
	defer func() { _ = tx.Rollback() }()

	for path, v := range values {
		if _, err := tx.ExecContext(ctx, upsertDocument, path, parentOf(path), v); err != nil {
			return errors.Wrapf(err, "update %s", path)
		}
	}
	return errors.Wrap(tx.Commit(), "commit update")
}

func (p *Postgres) Children(ctx context.Context, prefix string) (map[string]string, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT path, value FROM documents WHERE parent = $1`, prefix)
	if err != nil {
		return nil, errors.Wrapf(err, "children of %s", prefix)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var path, v string
		if err := rows.Scan(&path, &v); err != nil {
			return nil, err
		}
		if name, ok := childName(prefix, path); ok {
			out[name] = v
		}
	}
	return out, rows.Err()
}

// left() avoids LIKE so names containing % or _ are matched literally
const deleteSubtree = `
	DELETE FROM documents
	WHERE path = $1 OR left(path, length($1) + 1) = $1 || '/'
`

func (p *Postgres) Delete(ctx context.Context, path string) error {
	_, err := p.db.ExecContext(ctx, deleteSubtree, path)
	return errors.Wrapf(err, "delete %s", path)
}

func (p *Postgres) DeleteAll(ctx context.Context, paths ...string) error {
	for _, path := range paths {
		if !validPath(path) {
			return ErrInvalidPath
		}
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin delete")
	}
	defer func() { _ = tx.Rollback() }()

	for _, path := range paths {
		if _, err := tx.ExecContext(ctx, deleteSubtree, path); err != nil {
			return errors.Wrapf(err, "delete %s", path)
		}
	}
	return errors.Wrap(tx.Commit(), "commit delete")
}

func parentOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return ""
}
