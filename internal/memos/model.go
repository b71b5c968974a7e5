package memos

import "time"

// Memo is an LLM-generated credit memo for a single document and provider run.
type Memo struct {
	ID            string
	DocumentID    string
	Provider      string
	Model         string
	MethodologyID string
	Content       string
	CreatedAt     time.Time
}
