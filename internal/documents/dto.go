package documents

import (
	"time"

	"creditmemo-backend/internal/financial"
)

// DocumentResponse is the outward-facing representation of a document.
type DocumentResponse struct {
	DocumentID       string          `json:"documentId"`
	FileName         string          `json:"fileName"`
	CompanyName      string          `json:"companyName,omitempty"`
	MimeType         string          `json:"mimeType"`
	SizeBytes        int64           `json:"sizeBytes"`
	ExtractionStatus string          `json:"extractionStatus"`
	ExtractionError  string          `json:"extractionError,omitempty"`
	Years            []int           `json:"years"`
	FinancialData    *financial.Data `json:"financialData,omitempty"`
	ExtractedAt      *time.Time      `json:"extractedAt,omitempty"`
	UploadedAt       time.Time       `json:"uploadedAt"`
}

// NewResponse renders a document with its financial data.
func NewResponse(doc Document) DocumentResponse {
	return toResponse(doc, true)
}

// toResponse renders a document; withData includes the full financial data.
func toResponse(doc Document, withData bool) DocumentResponse {
	resp := DocumentResponse{
		DocumentID:       doc.ID,
		FileName:         doc.FileName,
		CompanyName:      doc.CompanyName,
		MimeType:         doc.MimeType,
		SizeBytes:        doc.SizeBytes,
		ExtractionStatus: string(doc.ExtractionStatus),
		ExtractionError:  doc.ExtractionError,
		Years:            doc.Financials.Years(),
		ExtractedAt:      doc.ExtractedAt,
		UploadedAt:       doc.CreatedAt,
	}
	if withData && doc.Financials.HasValues() {
		data := doc.Financials
		resp.FinancialData = &data
	}
	return resp
}
