package render

// RunStyle captures the inline run formatting of generated paragraphs.
type RunStyle struct {
	Bold   bool
	Italic bool
	Size   int
	Color  string
}

const (
	HeadingColor = "1F2937"
	TitleColor   = "111111"
	BodySize     = 22
	HeadingSize  = 26
	TitleSize    = 32
	DateSize     = 20
)

// StyleMap centralizes the formatting of the memo elements.
var StyleMap = map[string]RunStyle{
	"title": {
		Bold:  true,
		Size:  TitleSize,
		Color: TitleColor,
	},
	"sectionHeading": {
		Bold:  true,
		Size:  HeadingSize,
		Color: HeadingColor,
	},
	"date": {
		Size: DateSize,
	},
	"company": {
		Bold: true,
	},
	"meta": {
		Italic: true,
		Size:   DateSize,
	},
}
