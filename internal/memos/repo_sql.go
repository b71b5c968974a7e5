package memos

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

const memoColumns = `id, document_id, provider, model, methodology_id, content, created_at`

// Create inserts a memo inside a transaction that first confirms the
// document exists. On Postgres the document row is share-locked so a
// concurrent delete cannot slip in between.
func (r *SQLRepo) Create(ctx context.Context, memo Memo) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	lookup := `SELECT id FROM documents WHERE id = $1`
	if r.Dialect == db.DialectPostgres {
		lookup += ` FOR SHARE`
	}
	var docID string
	if err := tx.QueryRowContext(ctx, r.Dialect.Rebind(lookup), memo.DocumentID).Scan(&docID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrDocumentNotFound
		}
		return err
	}

	const insert = `
INSERT INTO memos (
    id,
    document_id,
    provider,
    model,
    methodology_id,
    content,
    created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.ExecContext(ctx, r.Dialect.Rebind(insert),
		memo.ID,
		memo.DocumentID,
		memo.Provider,
		nullString(memo.Model),
		nullString(memo.MethodologyID),
		memo.Content,
		memo.CreatedAt,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// GetByID returns a memo by ID.
func (r *SQLRepo) GetByID(ctx context.Context, id string) (Memo, error) {
	query := `SELECT ` + memoColumns + ` FROM memos WHERE id = $1`
	memo, err := scanMemo(r.DB.QueryRowContext(ctx, r.Dialect.Rebind(query), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Memo{}, ErrNotFound
		}
		return Memo{}, err
	}
	return memo, nil
}

// List lists memos ordered oldest first. A limit <= 0 returns every memo
// after offset.
func (r *SQLRepo) List(ctx context.Context, limit, offset int) ([]Memo, error) {
	page, args := r.Dialect.Paginate(limit, offset, 1)
	query := `SELECT ` + memoColumns + `
FROM memos
ORDER BY created_at ASC, id ASC
` + page
	return r.query(ctx, query, args...)
}

// ListByDocument lists the memos of a document ordered oldest first.
func (r *SQLRepo) ListByDocument(ctx context.Context, documentID string) ([]Memo, error) {
	query := `SELECT ` + memoColumns + `
FROM memos
WHERE document_id = $1
ORDER BY created_at ASC, id ASC`
	return r.query(ctx, query, documentID)
}

func (r *SQLRepo) query(ctx context.Context, query string, args ...any) ([]Memo, error) {
	rows, err := r.DB.QueryContext(ctx, r.Dialect.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Memo{}
	for rows.Next() {
		memo, err := scanMemo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, memo)
	}
	return out, rows.Err()
}

// Delete removes a memo.
func (r *SQLRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(`DELETE FROM memos WHERE id = $1`), id)
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

// DeleteByDocument removes every memo of a document.
func (r *SQLRepo) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(`DELETE FROM memos WHERE document_id = $1`), documentID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemo(row rowScanner) (Memo, error) {
	var memo Memo
	var model sql.NullString
	var methodologyID sql.NullString
	if err := row.Scan(
		&memo.ID,
		&memo.DocumentID,
		&memo.Provider,
		&model,
		&methodologyID,
		&memo.Content,
		&memo.CreatedAt,
	); err != nil {
		return Memo{}, err
	}
	memo.Model = model.String
	memo.MethodologyID = methodologyID.String
	return memo, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

var _ Repo = (*SQLRepo)(nil)
