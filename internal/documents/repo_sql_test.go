package documents

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"creditmemo-backend/internal/financial"
	"creditmemo-backend/internal/shared/storage/db"
)

func newMockRepo(t *testing.T, dialect db.Dialect) (*SQLRepo, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return NewSQLRepo(conn, dialect), mock
}

func documentRowColumns() []string {
	return []string{
		"id", "file_name", "company_name", "mime_type", "size_bytes", "storage_provider", "storage_key",
		"extracted_text_key", "financial_data", "extraction_status", "extraction_error", "extracted_at", "created_at",
	}
}

func TestSQLRepoCreateDefaultsStatus(t *testing.T) {
	repo, mock := newMockRepo(t, db.DialectPostgres)
	doc := Document{
		ID:          "doc-1",
		FileName:    "acme.pdf",
		CompanyName: "Acme",
		MimeType:    "application/pdf",
		SizeBytes:   42,
		StorageKey:  "documents/abc/acme.pdf",
		CreatedAt:   time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO documents").
		WithArgs(doc.ID, doc.FileName, sqlmock.AnyArg(), doc.MimeType, doc.SizeBytes, "local", doc.StorageKey, "uploaded", doc.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), doc); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestSQLRepoGetByIDDecodesFinancials(t *testing.T) {
	repo, mock := newMockRepo(t, db.DialectPostgres)
	now := time.Now().UTC()
	payload := `{"2023":{"balance_sheet":{"Current Assets":{"Cash":100}}}}`

	mock.ExpectQuery("SELECT (.+) FROM documents WHERE id = \\$1").
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows(documentRowColumns()).AddRow(
			"doc-1", "acme.pdf", "Acme", "application/pdf", int64(42), "local", "documents/abc/acme.pdf",
			"documents/abc/acme.pdf.extracted.txt", payload, "extracted", nil, now, now,
		))

	doc, err := repo.GetByID(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if doc.ExtractionStatus != StatusExtracted {
		t.Fatalf("expected extracted status, got %s", doc.ExtractionStatus)
	}
	if doc.ExtractedAt == nil || !doc.ExtractedAt.Equal(now) {
		t.Fatalf("expected extractedAt %v, got %v", now, doc.ExtractedAt)
	}
	v, ok := doc.Financials.Value(2023, financial.BalanceSheet, "Current Assets", "Cash")
	if !ok || v != 100 {
		t.Fatalf("expected cash 100, got %v (%v)", v, ok)
	}
}

func TestSQLRepoGetByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t, db.DialectPostgres)
	mock.ExpectQuery("SELECT (.+) FROM documents").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLRepoListUsesSQLitePlaceholders(t *testing.T) {
	repo, mock := newMockRepo(t, db.DialectSQLite)
	now := time.Now().UTC()
	mock.ExpectQuery(`ORDER BY created_at ASC, id ASC\s+LIMIT \?1 OFFSET \?2`).
		WithArgs(500, 0).
		WillReturnRows(sqlmock.NewRows(documentRowColumns()).
			AddRow("a", "a.pdf", nil, "application/pdf", int64(1), "local", "k1", nil, nil, "uploaded", nil, nil, now).
			AddRow("b", "b.pdf", nil, "application/pdf", int64(1), "local", "k2", nil, nil, "extraction_failed", "no years", nil, now.Add(time.Second)))

	docs, err := repo.List(context.Background(), 500, -1)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(docs) != 2 || docs[0].ID != "a" || docs[1].ID != "b" {
		t.Fatalf("unexpected docs %+v", docs)
	}
	if docs[1].ExtractionError != "no years" {
		t.Fatalf("expected extraction error, got %q", docs[1].ExtractionError)
	}
}

func TestSQLRepoListWithoutLimitReturnsAll(t *testing.T) {
	repo, mock := newMockRepo(t, db.DialectPostgres)
	mock.ExpectQuery(`ORDER BY created_at ASC, id ASC\s+OFFSET \$1$`).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows(documentRowColumns()))

	docs, err := repo.List(context.Background(), 0, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("expected no docs, got %d", len(docs))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestSQLRepoUpdateExtractionAlreadyExtracted(t *testing.T) {
	repo, mock := newMockRepo(t, db.DialectPostgres)
	data := financial.Data{2023: financial.NewYear()}
	data.Set(2023, financial.IncomeStatement, "Revenue", "Total Revenue", 1000)

	mock.ExpectExec("UPDATE documents").
		WithArgs("k.extracted.txt", sqlmock.AnyArg(), "extracted", sqlmock.AnyArg(), "doc-1", "extracted").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT extraction_status FROM documents").
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows([]string{"extraction_status"}).AddRow("extracted"))

	err := repo.UpdateExtraction(context.Background(), "doc-1", Extraction{TextKey: "k.extracted.txt", Financials: data, ExtractedAt: time.Now()})
	if !errors.Is(err, ErrAlreadyExtracted) {
		t.Fatalf("expected ErrAlreadyExtracted, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestSQLRepoMarkExtractionFailedNotFound(t *testing.T) {
	repo, mock := newMockRepo(t, db.DialectPostgres)
	mock.ExpectExec("UPDATE documents").
		WithArgs("extraction_failed", "boom", "missing", "extracted").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT extraction_status FROM documents").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	if err := repo.MarkExtractionFailed(context.Background(), "missing", "boom"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLRepoDelete(t *testing.T) {
	repo, mock := newMockRepo(t, db.DialectPostgres)
	mock.ExpectExec("DELETE FROM documents WHERE id = \\$1").
		WithArgs("doc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM documents").
		WithArgs("doc-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Delete(context.Background(), "doc-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := repo.Delete(context.Background(), "doc-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}
