package render

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

const wmlNamespace = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
const relNamespace = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"

const contentTypesXML = xml.Header + `<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>` +
	`</Types>`

const rootRelsXML = xml.Header + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
	`</Relationships>`

const documentRelsXML = xml.Header + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>` +
	`</Relationships>`

const stylesXML = xml.Header + `<w:styles xmlns:w="` + wmlNamespace + `">` +
	`<w:docDefaults><w:rPrDefault><w:rPr><w:rFonts w:ascii="Calibri" w:hAnsi="Calibri" w:cs="Calibri"/><w:sz w:val="22"/></w:rPr></w:rPrDefault></w:docDefaults>` +
	`<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/><w:pPr><w:spacing w:after="160"/></w:pPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Title"><w:name w:val="Title"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/><w:pPr><w:spacing w:after="240"/></w:pPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading2"><w:name w:val="heading 2"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/><w:pPr><w:keepNext/><w:spacing w:before="240" w:after="80"/><w:outlineLvl w:val="1"/></w:pPr></w:style>` +
	`</w:styles>`

// validateXML checks the document is well formed and that no paragraph is
// nested in another or carries run properties after its text.
func validateXML(xmlText string) error {
	decoder := xml.NewDecoder(strings.NewReader(xmlText))
	var stack []xml.Name
	type runState struct {
		seenText bool
	}
	var runs []runState

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("document.xml parse failed: %w", err)
		}
		switch t := token.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name)
			if isWmlElement(t.Name, "p") {
				for i := len(stack) - 2; i >= 0; i-- {
					if isWmlElement(stack[i], "p") {
						return fmt.Errorf("document.xml has nested <w:p>")
					}
				}
			}
			if isWmlElement(t.Name, "r") {
				runs = append(runs, runState{})
			}
			if isWmlElement(t.Name, "t") && len(runs) > 0 {
				runs[len(runs)-1].seenText = true
			}
			if isWmlElement(t.Name, "rPr") && len(runs) > 0 && runs[len(runs)-1].seenText {
				return fmt.Errorf("document.xml has <w:rPr> after <w:t> in a run")
			}
		case xml.EndElement:
			if isWmlElement(t.Name, "r") && len(runs) > 0 {
				runs = runs[:len(runs)-1]
			}
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	return nil
}

func isWmlElement(name xml.Name, local string) bool {
	return name.Local == local && name.Space == wmlNamespace
}
