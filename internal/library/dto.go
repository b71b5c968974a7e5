package library

import "time"

// ItemResponse is the outward-facing representation of a library item.
type ItemResponse struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	FileName    string     `json:"fileName"`
	MimeType    string     `json:"mimeType"`
	SizeBytes   int64      `json:"sizeBytes"`
	BuiltIn     bool       `json:"builtIn,omitempty"`
	Content     string     `json:"content,omitempty"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
}

func toResponse(item Item, withContent bool) ItemResponse {
	resp := ItemResponse{
		ID:          item.ID,
		Kind:        string(item.Kind),
		Name:        item.Name,
		Description: item.Description,
		FileName:    item.FileName,
		MimeType:    item.MimeType,
		SizeBytes:   item.SizeBytes,
		BuiltIn:     item.StorageKey == "",
	}
	if !item.CreatedAt.IsZero() {
		at := item.CreatedAt
		resp.CreatedAt = &at
	}
	if withContent {
		resp.Content = item.Content
	}
	return resp
}
