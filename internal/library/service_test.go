package library

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creditmemo-backend/internal/shared/storage/object"
	"creditmemo-backend/internal/shared/storage/object/local"
	"creditmemo-backend/memo/render"
)

func newTestService(t *testing.T) (*Service, object.ObjectStore) {
	t.Helper()
	store := local.New(t.TempDir())
	return &Service{Repo: NewMemoryRepo(), Store: store}, store
}

func TestDefaultMethodologyParses(t *testing.T) {
	m, err := DefaultMethodology()
	require.NoError(t, err)
	assert.Equal(t, DefaultMethodologyID, m.ID)
	assert.NotEmpty(t, m.Name)
	require.GreaterOrEqual(t, len(m.Sections), 5)

	text := m.Text()
	assert.Contains(t, text, "1. Character and Management")
	assert.Contains(t, text, "- Review leverage through debt-to-equity and debt-to-assets.")
}

func TestParseMethodologyRejectsIncomplete(t *testing.T) {
	_, err := ParseMethodology([]byte("name: Empty\n"))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = ParseMethodology([]byte("name: [unclosed"))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestUploadTextMethodology(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	item, err := svc.Upload(ctx, KindMethodology, UploadInput{
		FileName: "bank_policy.md",
		Body:     []byte("  # Bank policy\nFocus on cash flow.  "),
	})
	require.NoError(t, err)
	assert.Equal(t, "bank_policy", item.Name)
	assert.Equal(t, "text/markdown", item.MimeType)
	assert.Equal(t, "# Bank policy\nFocus on cash flow.", item.Content)

	resolved, err := svc.Methodology(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.Content, resolved.Content)

	_, data, err := svc.Download(ctx, KindMethodology, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "  # Bank policy\nFocus on cash flow.  ", string(data))

	require.NoError(t, svc.Delete(ctx, KindMethodology, item.ID))
	_, err = store.Open(ctx, item.StorageKey)
	assert.ErrorIs(t, err, object.ErrNotFound)
	_, err = svc.Get(ctx, KindMethodology, item.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUploadYAMLMethodology(t *testing.T) {
	svc, _ := newTestService(t)
	body := []byte("name: SME lending\nsections:\n  - title: Cash flow\n    guidance:\n      - Check DSCR above 1.25x.\n")

	item, err := svc.Upload(context.Background(), KindMethodology, UploadInput{Name: "SME", FileName: "sme.yaml", Body: body})
	require.NoError(t, err)
	assert.Equal(t, "SME", item.Name)
	assert.Equal(t, "SME lending\n\n1. Cash flow\n- Check DSCR above 1.25x.", item.Content)
}

func TestUploadMethodologyRejectsUnknownExtension(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Upload(context.Background(), KindMethodology, UploadInput{FileName: "tool.exe", Body: []byte("MZ")})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestMethodologyDefaultsToBuiltIn(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	item, err := svc.Methodology(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultMethodologyID, item.ID)
	assert.Contains(t, item.Content, "Capacity")

	_, err = svc.Methodology(ctx, "unknown")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, KindMethodology, DefaultMethodologyID), ErrInvalidInput)

	_, data, err := svc.Download(ctx, KindMethodology, DefaultMethodologyID)
	require.NoError(t, err)
	assert.Contains(t, string(data), "sections:")
}

func TestListMethodologiesStartsWithBuiltIn(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Upload(ctx, KindMethodology, UploadInput{FileName: "a.txt", Body: []byte("a")})
	require.NoError(t, err)

	items, err := svc.List(ctx, KindMethodology)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, DefaultMethodologyID, items[0].ID)
	assert.Equal(t, "a", items[1].Name)

	formats, err := svc.List(ctx, KindMemoFormat)
	require.NoError(t, err)
	assert.Empty(t, formats)
}

func TestUploadMemoFormat(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	template, err := render.Render(render.Input{Body: render.PlaceholderBody}, nil)
	require.NoError(t, err)

	item, err := svc.Upload(ctx, KindMemoFormat, UploadInput{FileName: "house_style.docx", Body: template})
	require.NoError(t, err)
	assert.Empty(t, item.Content)

	got, err := svc.FormatTemplate(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, template, got)

	_, err = svc.Get(ctx, KindMethodology, item.ID)
	assert.ErrorIs(t, err, ErrNotFound, "memo formats are not visible as methodologies")
}

func TestUploadMemoFormatValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	noBody, err := render.Render(render.Input{Body: "no placeholder here"}, nil)
	require.NoError(t, err)

	_, err = svc.Upload(ctx, KindMemoFormat, UploadInput{FileName: "plain.docx", Body: noBody})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Upload(ctx, KindMemoFormat, UploadInput{FileName: "notes.txt", Body: []byte("{{MEMO_BODY}}")})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Upload(ctx, KindMemoFormat, UploadInput{FileName: "fake.docx", Body: []byte("PK not really")})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Upload(ctx, Kind("other"), UploadInput{FileName: "x.txt", Body: []byte("x")})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
