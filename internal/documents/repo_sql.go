package documents

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"creditmemo-backend/internal/financial"
	"creditmemo-backend/internal/shared/storage/db"
)

// SQLRepo implements DocumentsRepo on Postgres or SQLite.
type SQLRepo struct {
	DB      *sql.DB
	Dialect db.Dialect
}

// NewSQLRepo constructs a SQLRepo.
func NewSQLRepo(conn *sql.DB, dialect db.Dialect) *SQLRepo {
	return &SQLRepo{DB: conn, Dialect: dialect}
}

const documentColumns = `id, file_name, company_name, mime_type, size_bytes, storage_provider, storage_key, extracted_text_key, financial_data, extraction_status, extraction_error, extracted_at, created_at`

// Create inserts a new document.
func (r *SQLRepo) Create(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO documents (
    id,
    file_name,
    company_name,
    mime_type,
    size_bytes,
    storage_provider,
    storage_key,
    extraction_status,
    created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	storageProvider := doc.StorageProvider
	if storageProvider == "" {
		storageProvider = "local"
	}
	status := doc.ExtractionStatus
	if status == "" {
		status = StatusUploaded
	}

	_, err := r.DB.ExecContext(
		ctx,
		r.Dialect.Rebind(query),
		doc.ID,
		doc.FileName,
		nullString(doc.CompanyName),
		doc.MimeType,
		doc.SizeBytes,
		storageProvider,
		doc.StorageKey,
		string(status),
		doc.CreatedAt,
	)
	return err
}

// GetByID fetches a document by ID.
func (r *SQLRepo) GetByID(ctx context.Context, id string) (Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, r.Dialect.Rebind(query), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

// List lists documents ordered oldest first. A limit <= 0 returns every
// document after offset.
func (r *SQLRepo) List(ctx context.Context, limit, offset int) ([]Document, error) {
	page, args := r.Dialect.Paginate(limit, offset, 1)
	query := `SELECT ` + documentColumns + `
FROM documents
ORDER BY created_at ASC, id ASC
` + page

	rows, err := r.DB.QueryContext(ctx, r.Dialect.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// UpdateExtraction stores the extraction result unless the document is
// already extracted.
func (r *SQLRepo) UpdateExtraction(ctx context.Context, id string, ex Extraction) error {
	payload, err := json.Marshal(ex.Financials)
	if err != nil {
		return fmt.Errorf("encode financial data: %w", err)
	}
	const query = `
UPDATE documents
SET extracted_text_key = $1, financial_data = $2, extraction_status = $3, extraction_error = NULL, extracted_at = $4
WHERE id = $5 AND extraction_status <> $6`
	res, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(query),
		nullString(ex.TextKey),
		string(payload),
		string(StatusExtracted),
		ex.ExtractedAt,
		id,
		string(StatusExtracted),
	)
	if err != nil {
		return err
	}
	return r.explainNoUpdate(ctx, res, id)
}

// MarkExtractionFailed records a failed extraction attempt.
func (r *SQLRepo) MarkExtractionFailed(ctx context.Context, id, message string) error {
	const query = `
UPDATE documents
SET extraction_status = $1, extraction_error = $2
WHERE id = $3 AND extraction_status <> $4`
	res, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(query),
		string(StatusExtractionFailed),
		nullString(message),
		id,
		string(StatusExtracted),
	)
	if err != nil {
		return err
	}
	return r.explainNoUpdate(ctx, res, id)
}

// explainNoUpdate maps a guarded UPDATE that touched no rows to ErrNotFound
// or ErrAlreadyExtracted.
func (r *SQLRepo) explainNoUpdate(ctx context.Context, res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	var status string
	err = r.DB.QueryRowContext(ctx, r.Dialect.Rebind(`SELECT extraction_status FROM documents WHERE id = $1`), id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrAlreadyExtracted
}

// Delete removes a document. Memos and generation jobs referencing it are
// removed by the ON DELETE CASCADE foreign keys.
func (r *SQLRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(`DELETE FROM documents WHERE id = $1`), id)
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

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var companyName sql.NullString
	var storageProvider sql.NullString
	var extractedKey sql.NullString
	var financialData sql.NullString
	var status string
	var extractionError sql.NullString
	var extractedAt sql.NullTime
	if err := row.Scan(
		&doc.ID,
		&doc.FileName,
		&companyName,
		&doc.MimeType,
		&doc.SizeBytes,
		&storageProvider,
		&doc.StorageKey,
		&extractedKey,
		&financialData,
		&status,
		&extractionError,
		&extractedAt,
		&doc.CreatedAt,
	); err != nil {
		return Document{}, err
	}
	doc.CompanyName = companyName.String
	doc.StorageProvider = storageProvider.String
	doc.ExtractedTextKey = extractedKey.String
	doc.ExtractionStatus = ExtractionStatus(status)
	doc.ExtractionError = extractionError.String
	if extractedAt.Valid {
		doc.ExtractedAt = &extractedAt.Time
	}
	if financialData.Valid && financialData.String != "" {
		var data financial.Data
		if err := json.Unmarshal([]byte(financialData.String), &data); err != nil {
			return Document{}, fmt.Errorf("decode financial data for %s: %w", doc.ID, err)
		}
		doc.Financials = data
	}
	return doc, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

var _ DocumentsRepo = (*SQLRepo)(nil)
