package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"creditmemo-backend/internal/financial"
)

const (
	MimePDF      = "application/pdf"
	MimeDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeText     = "text/plain"
	MimeMarkdown = "text/markdown"
)

var (
	// ErrExtraction is returned when a PDF yields no usable text or financial data.
	ErrExtraction = errors.New("extraction failed")
	// ErrUnsupportedType is returned for payloads that are not PDF, DOCX or plain text.
	ErrUnsupportedType = errors.New("unsupported document type")
)

// Result is the outcome of a successful PDF extraction.
type Result struct {
	Text       string
	Financials financial.Data
}

// PDFExtractor pulls text from a PDF with github.com/ledongthuc/pdf and parses
// the financial statements found in it.
type PDFExtractor struct{}

// Extract returns the document text and the parsed financial data.
func (PDFExtractor) Extract(ctx context.Context, data []byte) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	text, err := pdfText(data)
	if err != nil {
		return Result{}, fmt.Errorf("%w: read pdf: %w", ErrExtraction, err)
	}
	return fromText(text)
}

func fromText(text string) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, fmt.Errorf("%w: pdf has no text layer", ErrExtraction)
	}
	fin, err := financial.Parse(text)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	return Result{Text: text, Financials: fin}, nil
}

// ExtractedKey is the object key of the plain-text copy stored next to an upload.
func ExtractedKey(fileKey string) string {
	return fileKey + ".extracted.txt"
}

// Text extracts plain text from a PDF, DOCX, text or markdown payload.
func Text(ctx context.Context, data []byte, mimeType string, fileName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch NormalizeMimeType(mimeType, fileName, data) {
	case MimePDF:
		text, err := pdfText(data)
		if err != nil {
			return "", fmt.Errorf("%w: read pdf: %w", ErrExtraction, err)
		}
		return text, nil
	case MimeDOCX:
		text, err := docxText(data)
		if err != nil {
			return "", fmt.Errorf("%w: read docx: %w", ErrExtraction, err)
		}
		return text, nil
	case MimeText, MimeMarkdown:
		return string(data), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mimeType)
	}
}

// pdfText reads the text of every page row by row, so statement line items
// keep their values on the same line. The reader panics on some malformed
// inputs; those are reported as errors.
func pdfText(data []byte) (text string, err error) {
	if len(data) == 0 {
		return "", errors.New("empty pdf data")
	}
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		for _, row := range rows {
			words := make([]string, 0, len(row.Content))
			for _, word := range row.Content {
				if s := strings.TrimSpace(word.S); s != "" {
					words = append(words, s)
				}
			}
			if len(words) == 0 {
				continue
			}
			buf.WriteString(strings.Join(words, " "))
			buf.WriteString("\n")
		}
	}
	if buf.Len() > 0 {
		return buf.String(), nil
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	if _, err := io.Copy(&out, plain); err != nil {
		return "", err
	}
	return out.String(), nil
}

func docxText(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty docx data")
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var docFile *zip.File
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", errors.New("document.xml file not found")
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return stripDocxXML(string(raw)), nil
}

func stripDocxXML(raw string) string {
	decoder := xml.NewDecoder(strings.NewReader(raw))
	var buf strings.Builder
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return raw
		}
		switch t := tok.(type) {
		case xml.CharData:
			buf.WriteString(string(t))
		case xml.EndElement:
			if (t.Name.Local == "p" || t.Name.Local == "br") && buf.Len() > 0 {
				buf.WriteString("\n")
			}
		}
	}
	return strings.TrimSpace(buf.String())
}

// NormalizeMimeType resolves the effective type of an upload from its declared
// mime type, its extension and, for zip containers, its contents.
func NormalizeMimeType(mimeType string, fileName string, data []byte) string {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	ext := strings.ToLower(filepath.Ext(fileName))

	switch clean {
	case MimePDF, MimeDOCX, MimeText, MimeMarkdown:
		return clean
	case "application/zip", "application/octet-stream", "":
	default:
		return clean
	}

	if bytes.HasPrefix(data, []byte("%PDF-")) {
		return MimePDF
	}
	if IsDocx(data) {
		return MimeDOCX
	}
	switch ext {
	case ".pdf":
		return MimePDF
	case ".txt":
		return MimeText
	case ".md", ".markdown":
		return MimeMarkdown
	}
	if clean == "" {
		return "application/octet-stream"
	}
	return clean
}

// IsDocx reports whether data is a zip package holding a Word document.
func IsDocx(data []byte) bool {
	if !bytes.HasPrefix(data, []byte("PK")) {
		return false
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return false
	}
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == "word/document.xml" {
			return true
		}
	}
	return false
}
