package documents

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creditmemo-backend/internal/extract"
	"creditmemo-backend/internal/financial"
	"creditmemo-backend/internal/shared/storage/object"
	"creditmemo-backend/internal/shared/storage/object/local"
)

var samplePDF = []byte("%PDF-1.4\nsample statement")

type fakeExtractor struct {
	result extract.Result
	err    error
	calls  int
}

func (f *fakeExtractor) Extract(ctx context.Context, data []byte) (extract.Result, error) {
	f.calls++
	if f.err != nil {
		return extract.Result{}, f.err
	}
	return f.result, nil
}

type recordingCleaner struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (r *recordingCleaner) DeleteByDocument(ctx context.Context, documentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, documentID)
	return r.err
}

func sampleFinancials() financial.Data {
	data := financial.Data{}
	data.Set(2023, financial.IncomeStatement, financial.CatRevenue, "Total Revenue", 1000)
	data.Set(2023, financial.IncomeStatement, financial.CatProfit, "Net Income", 100)
	return data
}

func newTestService(t *testing.T, ex Extractor) (*Service, object.ObjectStore) {
	t.Helper()
	store := local.New(t.TempDir())
	return &Service{
		Store:           store,
		Repo:            NewMemoryRepo(),
		Extractor:       ex,
		StorageProvider: "local",
	}, store
}

func TestUploadCreatesUploadedDocument(t *testing.T) {
	svc, store := newTestService(t, &fakeExtractor{})
	ctx := context.Background()

	doc, err := svc.Upload(ctx, UploadInput{FileName: " acme.pdf ", CompanyName: " Acme ", Body: samplePDF})
	require.NoError(t, err)

	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, "acme.pdf", doc.FileName)
	assert.Equal(t, "Acme", doc.CompanyName)
	assert.Equal(t, StatusUploaded, doc.ExtractionStatus)
	assert.False(t, doc.HasExtractedData())
	assert.Equal(t, int64(len(samplePDF)), doc.SizeBytes)

	stored, err := object.ReadAll(ctx, store, doc.StorageKey)
	require.NoError(t, err)
	assert.Equal(t, samplePDF, stored)
}

func TestUploadRejectsNonPDF(t *testing.T) {
	svc, _ := newTestService(t, &fakeExtractor{})

	_, err := svc.Upload(context.Background(), UploadInput{FileName: "notes.txt", Body: []byte("hello")})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Upload(context.Background(), UploadInput{FileName: "", Body: samplePDF})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Upload(context.Background(), UploadInput{FileName: "empty.pdf"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRegisterDirectUpload(t *testing.T) {
	svc, store := newTestService(t, &fakeExtractor{})
	ctx := context.Background()

	_, err := store.SaveWithKey(ctx, "documents/abc_acme.pdf", extract.MimePDF, bytes.NewReader(samplePDF))
	require.NoError(t, err)

	doc, err := svc.Register(ctx, RegisterInput{StorageKey: "documents/abc_acme.pdf", CompanyName: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, "abc_acme.pdf", doc.FileName)
	assert.Equal(t, int64(len(samplePDF)), doc.SizeBytes)
	assert.Equal(t, StatusUploaded, doc.ExtractionStatus)

	_, err = svc.Register(ctx, RegisterInput{StorageKey: "library/methodology/x.pdf"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Register(ctx, RegisterInput{StorageKey: "documents/missing.pdf"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = store.SaveWithKey(ctx, "documents/notes.txt", extract.MimeText, bytes.NewReader([]byte("hello")))
	require.NoError(t, err)
	_, err = svc.Register(ctx, RegisterInput{StorageKey: "documents/notes.txt"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = object.ReadAll(ctx, store, "documents/notes.txt")
	assert.ErrorIs(t, err, object.ErrNotFound)
}

func TestExtractPersistsTextAndFinancials(t *testing.T) {
	ex := &fakeExtractor{result: extract.Result{Text: "Revenue 2023 1,000", Financials: sampleFinancials()}}
	svc, store := newTestService(t, ex)
	ctx := context.Background()

	doc, err := svc.Upload(ctx, UploadInput{FileName: "acme.pdf", Body: samplePDF})
	require.NoError(t, err)

	updated, err := svc.Extract(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExtracted, updated.ExtractionStatus)
	assert.True(t, updated.HasExtractedData())
	assert.Equal(t, []int{2023}, updated.Financials.Years())
	require.NotNil(t, updated.ExtractedAt)
	assert.Equal(t, extract.ExtractedKey(doc.StorageKey), updated.ExtractedTextKey)

	text, err := object.ReadAll(ctx, store, updated.ExtractedTextKey)
	require.NoError(t, err)
	assert.Equal(t, "Revenue 2023 1,000", string(text))

	got, err := svc.Text(ctx, updated)
	require.NoError(t, err)
	assert.Equal(t, "Revenue 2023 1,000", got)

	_, err = svc.Extract(ctx, doc.ID)
	assert.ErrorIs(t, err, ErrAlreadyExtracted)
	assert.Equal(t, 1, ex.calls)
}

func TestExtractFailureIsRecordedAndRetryable(t *testing.T) {
	ex := &fakeExtractor{err: errors.Join(extract.ErrExtraction, errors.New("no fiscal years\nfound"))}
	svc, _ := newTestService(t, ex)
	ctx := context.Background()

	doc, err := svc.Upload(ctx, UploadInput{FileName: "scan.pdf", Body: samplePDF})
	require.NoError(t, err)

	_, err = svc.Extract(ctx, doc.ID)
	require.ErrorIs(t, err, extract.ErrExtraction)

	failed, err := svc.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExtractionFailed, failed.ExtractionStatus)
	assert.NotContains(t, failed.ExtractionError, "\n")
	assert.Contains(t, failed.ExtractionError, "no fiscal years found")
	assert.Nil(t, failed.Financials)

	ex.err = nil
	ex.result = extract.Result{Financials: sampleFinancials()}
	retried, err := svc.Extract(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExtracted, retried.ExtractionStatus)
	assert.Empty(t, retried.ExtractionError)
	assert.Empty(t, retried.ExtractedTextKey)
}

func TestExtractUnknownDocument(t *testing.T) {
	svc, _ := newTestService(t, &fakeExtractor{})
	_, err := svc.Extract(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApplyExtractionRequiresValues(t *testing.T) {
	svc, _ := newTestService(t, &fakeExtractor{})
	doc, err := svc.Upload(context.Background(), UploadInput{FileName: "a.pdf", Body: samplePDF})
	require.NoError(t, err)

	_, err = svc.ApplyExtraction(context.Background(), doc.ID, extract.Result{Financials: financial.Data{2023: financial.NewYear()}})
	assert.ErrorIs(t, err, extract.ErrExtraction)
}

func TestDeleteCascadesAndRemovesObjects(t *testing.T) {
	ex := &fakeExtractor{result: extract.Result{Text: "text", Financials: sampleFinancials()}}
	svc, store := newTestService(t, ex)
	memos := &recordingCleaner{}
	jobs := &recordingCleaner{}
	svc.Dependents = []DependentCleaner{memos, jobs}
	ctx := context.Background()

	doc, err := svc.Upload(ctx, UploadInput{FileName: "acme.pdf", Body: samplePDF})
	require.NoError(t, err)
	doc, err = svc.Extract(ctx, doc.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, doc.ID))
	assert.Equal(t, []string{doc.ID, doc.ID}, memos.ids)
	assert.Equal(t, []string{doc.ID, doc.ID}, jobs.ids)

	_, err = svc.Get(ctx, doc.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Open(ctx, doc.StorageKey)
	assert.ErrorIs(t, err, object.ErrNotFound)
	_, err = store.Open(ctx, doc.ExtractedTextKey)
	assert.ErrorIs(t, err, object.ErrNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, doc.ID), ErrNotFound)
}

func TestDeleteStopsWhenDependentCleanupFails(t *testing.T) {
	svc, _ := newTestService(t, &fakeExtractor{})
	svc.Dependents = []DependentCleaner{&recordingCleaner{err: errors.New("db down")}}
	ctx := context.Background()

	doc, err := svc.Upload(ctx, UploadInput{FileName: "acme.pdf", Body: samplePDF})
	require.NoError(t, err)

	require.Error(t, svc.Delete(ctx, doc.ID))
	_, err = svc.Get(ctx, doc.ID)
	assert.NoError(t, err)
}

func TestListOldestFirst(t *testing.T) {
	svc, _ := newTestService(t, &fakeExtractor{})
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	step := 0
	svc.Now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Minute)
	}
	ctx := context.Background()

	var ids []string
	for _, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		doc, err := svc.Upload(ctx, UploadInput{FileName: name, Body: samplePDF})
		require.NoError(t, err)
		ids = append(ids, doc.ID)
	}

	docs, err := svc.List(ctx, 2, 1)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, ids[1], docs[0].ID)
	assert.Equal(t, ids[2], docs[1].ID)
}

func TestSanitizeErrorMessage(t *testing.T) {
	assert.Equal(t, "a b c", SanitizeErrorMessage("a\nb\t c"))
	long := make([]rune, 600)
	for i := range long {
		long[i] = 'é'
	}
	assert.Len(t, []rune(SanitizeErrorMessage(string(long))), 500)
}
