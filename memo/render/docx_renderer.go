// Package render formats credit memos as Word documents.
package render

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// ErrFormat wraps every rendering failure.
var ErrFormat = errors.New("docx formatting failed")

const defaultCompany = "Company"

// Input is the memo content placed into the document.
type Input struct {
	CompanyName string
	Provider    string
	Model       string
	Date        time.Time
	Body        string
}

func (in Input) company() string {
	if name := strings.TrimSpace(in.CompanyName); name != "" {
		return name
	}
	return defaultCompany
}

func (in Input) date() time.Time {
	if in.Date.IsZero() {
		return time.Now()
	}
	return in.Date
}

func (in Input) providerLine() string {
	p := strings.TrimSpace(in.Provider)
	if p == "" {
		return ""
	}
	if m := strings.TrimSpace(in.Model); m != "" {
		return "Generated with " + p + " (" + m + ")"
	}
	return "Generated with " + p
}

// Render produces DOCX bytes for the memo. With a non-empty template the
// template's placeholders are filled in; otherwise a plain document is built.
func Render(in Input, template []byte) ([]byte, error) {
	if len(template) > 0 {
		return renderTemplate(in, template)
	}
	return renderDefault(in)
}

// FileName returns the download name credit_memo_<company>_<YYYYMMDD>.docx.
func FileName(company string, date time.Time) string {
	if strings.TrimSpace(company) == "" {
		company = defaultCompany
	}
	sanitized := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, strings.TrimSpace(company))
	return fmt.Sprintf("credit_memo_%s_%s.docx", sanitized, date.Format("20060102"))
}

func renderDefault(in Input) ([]byte, error) {
	documentXML, err := buildDocumentXML(in)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}

	var output bytes.Buffer
	writer := zip.NewWriter(&output)
	parts := []struct {
		name    string
		content string
	}{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", rootRelsXML},
		{"word/_rels/document.xml.rels", documentRelsXML},
		{"word/styles.xml", stylesXML},
		{"word/document.xml", documentXML},
	}
	for _, part := range parts {
		if err := writeZipEntry(writer, part.name, []byte(part.content)); err != nil {
			return nil, fmt.Errorf("%w: write %s: %w", ErrFormat, part.name, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	return output.Bytes(), nil
}

func writeZipEntry(writer *zip.Writer, name string, content []byte) error {
	dst, err := writer.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return err
	}
	_, err = dst.Write(content)
	return err
}

var (
	numberedHeading = regexp.MustCompile(`^\d+(\.\d+)*\.\s+\S`)
	markdownHeading = regexp.MustCompile(`^#{1,6}\s+`)
	boldMarker      = regexp.MustCompile(`\*\*(.+?)\*\*`)
	blankLine       = regexp.MustCompile(`\n\s*\n`)
)

func buildDocumentXML(in Input) (string, error) {
	var body bytes.Buffer
	writeParagraph(&body, "Title", "center", StyleMap["title"], "Credit Memo")
	writeParagraph(&body, "", "right", StyleMap["date"], "Date: "+in.date().Format("January 02, 2006"))
	writeParagraph(&body, "", "left", StyleMap["company"], "Company: "+in.company())
	if line := in.providerLine(); line != "" {
		writeParagraph(&body, "", "left", StyleMap["meta"], line)
	}
	writeParagraph(&body, "", "", RunStyle{}, strings.Repeat("_", 50))

	for _, block := range splitSections(in.Body) {
		lines := strings.Split(block, "\n")
		first := strings.TrimSpace(lines[0])
		if heading, ok := headingText(first); ok {
			writeParagraph(&body, "Heading2", "", StyleMap["sectionHeading"], heading)
			lines = lines[1:]
		}
		text := cleanMarkdown(strings.TrimSpace(strings.Join(lines, "\n")))
		if text != "" {
			writeParagraph(&body, "", "", RunStyle{}, text)
		}
	}

	var doc strings.Builder
	doc.WriteString(xml.Header)
	doc.WriteString(`<w:document xmlns:w="` + wmlNamespace + `" xmlns:r="` + relNamespace + `"><w:body>`)
	doc.Write(body.Bytes())
	doc.WriteString(`<w:sectPr><w:pgSz w:w="12240" w:h="15840"/><w:pgMar w:top="1440" w:right="1440" w:bottom="1440" w:left="1440" w:header="720" w:footer="720" w:gutter="0"/></w:sectPr>`)
	doc.WriteString(`</w:body></w:document>`)

	out := doc.String()
	if err := validateXML(out); err != nil {
		return "", err
	}
	return out, nil
}

// splitSections splits memo prose on blank lines.
func splitSections(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	raw := blankLine.Split(text, -1)
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if strings.TrimSpace(s) != "" {
			out = append(out, strings.Trim(s, "\n"))
		}
	}
	return out
}

func headingText(line string) (string, bool) {
	if markdownHeading.MatchString(line) {
		return cleanMarkdown(markdownHeading.ReplaceAllString(line, "")), true
	}
	if numberedHeading.MatchString(line) {
		return cleanMarkdown(line), true
	}
	if strings.HasPrefix(line, "**") && strings.HasSuffix(line, "**") && len(line) > 4 {
		return cleanMarkdown(line), true
	}
	return "", false
}

func cleanMarkdown(s string) string {
	s = boldMarker.ReplaceAllString(s, "$1")
	return strings.ReplaceAll(s, "**", "")
}

func writeParagraph(buf *bytes.Buffer, style, align string, run RunStyle, text string) {
	buf.WriteString("<w:p>")
	if style != "" || align != "" {
		buf.WriteString("<w:pPr>")
		if style != "" {
			buf.WriteString(`<w:pStyle w:val="` + style + `"/>`)
		}
		if align != "" {
			buf.WriteString(`<w:jc w:val="` + align + `"/>`)
		}
		buf.WriteString("</w:pPr>")
	}
	buf.WriteString("<w:r>")
	writeRunProperties(buf, run)
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			buf.WriteString("<w:br/>")
		}
		buf.WriteString(`<w:t xml:space="preserve">`)
		_ = xml.EscapeText(buf, []byte(sanitizeXMLText(line)))
		buf.WriteString("</w:t>")
	}
	buf.WriteString("</w:r></w:p>")
}

func writeRunProperties(buf *bytes.Buffer, run RunStyle) {
	if run == (RunStyle{}) {
		return
	}
	buf.WriteString("<w:rPr>")
	if run.Bold {
		buf.WriteString("<w:b/>")
	}
	if run.Italic {
		buf.WriteString("<w:i/>")
	}
	if run.Color != "" {
		buf.WriteString(`<w:color w:val="` + run.Color + `"/>`)
	}
	if run.Size > 0 {
		buf.WriteString(`<w:sz w:val="` + strconv.Itoa(run.Size) + `"/>`)
	}
	buf.WriteString("</w:rPr>")
}

// sanitizeXMLText drops characters that are not allowed in XML 1.0.
func sanitizeXMLText(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			return r
		case r < 0x20, r == 0xFFFE, r == 0xFFFF:
			return -1
		default:
			return r
		}
	}, s)
}
