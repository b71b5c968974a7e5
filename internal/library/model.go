package library

import "time"

// Kind distinguishes the two kinds of library items.
type Kind string

const (
	KindMethodology Kind = "methodology"
	KindMemoFormat  Kind = "memo_format"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindMethodology || k == KindMemoFormat
}

// Label returns the human readable kind used in error messages.
func (k Kind) Label() string {
	if k == KindMemoFormat {
		return "memo format"
	}
	return string(k)
}

// Item is an uploaded methodology or memo-format template. Content holds
// the extracted text of methodologies and is empty for memo formats.
type Item struct {
	ID          string
	Kind        Kind
	Name        string
	Description string
	FileName    string
	MimeType    string
	SizeBytes   int64
	StorageKey  string
	Content     string
	CreatedAt   time.Time
}
