package library

import (
	"context"
	"database/sql"
	"errors"

	"creditmemo-backend/internal/shared/storage/db"
)

// SQLRepo implements Repo on Postgres or SQLite.
type SQLRepo struct {
	DB      *sql.DB
	Dialect db.Dialect
}

// NewSQLRepo constructs a SQLRepo.
func NewSQLRepo(conn *sql.DB, dialect db.Dialect) *SQLRepo {
	return &SQLRepo{DB: conn, Dialect: dialect}
}

const itemColumns = `id, kind, name, description, file_name, mime_type, size_bytes, storage_key, content, created_at`

// Create inserts a library item.
func (r *SQLRepo) Create(ctx context.Context, item Item) error {
	const query = `
INSERT INTO library_items (
    id,
    kind,
    name,
    description,
    file_name,
    mime_type,
    size_bytes,
    storage_key,
    content,
    created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(query),
		item.ID,
		string(item.Kind),
		item.Name,
		nullString(item.Description),
		item.FileName,
		item.MimeType,
		item.SizeBytes,
		item.StorageKey,
		nullString(item.Content),
		item.CreatedAt,
	)
	return err
}

// GetByID returns an item of the given kind.
func (r *SQLRepo) GetByID(ctx context.Context, kind Kind, id string) (Item, error) {
	query := `SELECT ` + itemColumns + ` FROM library_items WHERE id = $1 AND kind = $2`
	item, err := scanItem(r.DB.QueryRowContext(ctx, r.Dialect.Rebind(query), id, string(kind)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, err
	}
	return item, nil
}

// List returns the items of a kind oldest first.
func (r *SQLRepo) List(ctx context.Context, kind Kind) ([]Item, error) {
	query := `SELECT ` + itemColumns + `
FROM library_items
WHERE kind = $1
ORDER BY created_at ASC, id ASC`
	rows, err := r.DB.QueryContext(ctx, r.Dialect.Rebind(query), string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// Delete removes an item of the given kind.
func (r *SQLRepo) Delete(ctx context.Context, kind Kind, id string) error {
	res, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(`DELETE FROM library_items WHERE id = $1 AND kind = $2`), id, string(kind))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (Item, error) {
	var item Item
	var kind string
	var description sql.NullString
	var content sql.NullString
	if err := row.Scan(
		&item.ID,
		&kind,
		&item.Name,
		&description,
		&item.FileName,
		&item.MimeType,
		&item.SizeBytes,
		&item.StorageKey,
		&content,
		&item.CreatedAt,
	); err != nil {
		return Item{}, err
	}
	item.Kind = Kind(kind)
	item.Description = description.String
	item.Content = content.String
	return item, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

var _ Repo = (*SQLRepo)(nil)
