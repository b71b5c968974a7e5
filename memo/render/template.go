package render

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

// Template placeholders filled in by Render.
const (
	PlaceholderCompany  = "{{COMPANY_NAME}}"
	PlaceholderDate     = "{{DATE}}"
	PlaceholderProvider = "{{PROVIDER}}"
	PlaceholderBody     = "{{MEMO_BODY}}"
)

var tokenPattern = regexp.MustCompile(`{{[A-Z_]+}}`)

func renderTemplate(in Input, template []byte) ([]byte, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(template), int64(len(template)))
	if err != nil {
		return nil, fmt.Errorf("%w: read template: %w", ErrFormat, err)
	}
	defer doc.Close()

	body := strings.ReplaceAll(cleanMarkdown(strings.TrimSpace(in.Body)), "\r\n", "\n")
	replacements := []struct {
		token string
		value string
	}{
		{PlaceholderCompany, in.company()},
		{PlaceholderDate, in.date().Format("January 02, 2006")},
		{PlaceholderProvider, in.providerLine()},
		{PlaceholderBody, body},
	}

	editable := doc.Editable()
	for _, r := range replacements {
		value := sanitizeXMLText(r.value)
		if err := editable.Replace(r.token, value, -1); err != nil {
			return nil, fmt.Errorf("%w: replace %s: %w", ErrFormat, r.token, err)
		}
		if err := editable.ReplaceHeader(r.token, value); err != nil {
			return nil, fmt.Errorf("%w: replace header %s: %w", ErrFormat, r.token, err)
		}
	}

	var out bytes.Buffer
	if err := editable.Write(&out); err != nil {
		return nil, fmt.Errorf("%w: write: %w", ErrFormat, err)
	}
	return out.Bytes(), nil
}

// Placeholders lists the template tokens present in a DOCX template's
// document body. Tokens split across runs by Word are not detected.
func Placeholders(template []byte) ([]string, error) {
	reader, err := zip.NewReader(bytes.NewReader(template), int64(len(template)))
	if err != nil {
		return nil, fmt.Errorf("%w: open template: %w", ErrFormat, err)
	}
	for _, file := range reader.File {
		if normalizeZipName(file.Name) != "word/document.xml" {
			continue
		}
		content, err := readZipFile(file)
		if err != nil {
			return nil, fmt.Errorf("%w: read document.xml: %w", ErrFormat, err)
		}
		seen := make(map[string]bool)
		for _, tok := range tokenPattern.FindAllString(string(content), -1) {
			seen[tok] = true
		}
		out := make([]string, 0, len(seen))
		for tok := range seen {
			out = append(out, tok)
		}
		sort.Strings(out)
		return out, nil
	}
	return nil, fmt.Errorf("%w: template has no word/document.xml", ErrFormat)
}

func readZipFile(file *zip.File) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return io.ReadAll(rc)
}

func normalizeZipName(name string) string {
	return strings.ReplaceAll(name, "\\", "/")
}
