package memos

import "time"

// MemoResponse is the outward-facing representation of a memo.
type MemoResponse struct {
	MemoID        string    `json:"memoId"`
	DocumentID    string    `json:"documentId"`
	Provider      string    `json:"provider"`
	Model         string    `json:"model,omitempty"`
	MethodologyID string    `json:"methodologyId,omitempty"`
	Content       string    `json:"content,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

func toResponse(memo Memo, withContent bool) MemoResponse {
	resp := MemoResponse{
		MemoID:        memo.ID,
		DocumentID:    memo.DocumentID,
		Provider:      memo.Provider,
		Model:         memo.Model,
		MethodologyID: memo.MethodologyID,
		CreatedAt:     memo.CreatedAt,
	}
	if withContent {
		resp.Content = memo.Content
	}
	return resp
}
