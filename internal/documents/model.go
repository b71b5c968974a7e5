package documents

import (
	"time"

	"creditmemo-backend/internal/financial"
)

// ExtractionStatus tracks how far a document got through extraction.
type ExtractionStatus string

const (
	StatusUploaded         ExtractionStatus = "uploaded"
	StatusExtracted        ExtractionStatus = "extracted"
	StatusExtractionFailed ExtractionStatus = "extraction_failed"
)

// Document is an uploaded financial statement and the data extracted from it.
type Document struct {
	ID               string
	FileName         string
	CompanyName      string
	MimeType         string
	SizeBytes        int64
	StorageProvider  string
	StorageKey       string
	ExtractedTextKey string
	Financials       financial.Data
	ExtractionStatus ExtractionStatus
	ExtractionError  string
	ExtractedAt      *time.Time
	CreatedAt        time.Time
}

// HasExtractedData reports whether the document is ready for memo generation.
func (d Document) HasExtractedData() bool {
	return d.ExtractionStatus == StatusExtracted && d.Financials.HasValues()
}

// Extraction is the result of a successful extraction run.
type Extraction struct {
	TextKey     string
	Financials  financial.Data
	ExtractedAt time.Time
}
