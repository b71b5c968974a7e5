package library

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultMethodologyID identifies the built-in methodology.
const DefaultMethodologyID = "default"

//go:embed defaults/methodology.yaml
var defaultMethodologyYAML []byte

// Methodology is a structured credit-analysis methodology.
type Methodology struct {
	ID          string               `yaml:"id"`
	Name        string               `yaml:"name"`
	Description string               `yaml:"description"`
	Sections    []MethodologySection `yaml:"sections"`
}

// MethodologySection is one area of analysis with its guidance points.
type MethodologySection struct {
	Title    string   `yaml:"title"`
	Guidance []string `yaml:"guidance"`
}

// Text renders the methodology as prompt-ready plain text.
func (m Methodology) Text() string {
	var b strings.Builder
	b.WriteString(m.Name)
	b.WriteString("\n")
	for i, sec := range m.Sections {
		fmt.Fprintf(&b, "\n%d. %s\n", i+1, sec.Title)
		for _, g := range sec.Guidance {
			b.WriteString("- ")
			b.WriteString(g)
			b.WriteString("\n")
		}
	}
	return strings.TrimSpace(b.String())
}

// ParseMethodology decodes a YAML methodology document.
func ParseMethodology(data []byte) (Methodology, error) {
	var m Methodology
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Methodology{}, fmt.Errorf("%w: parse methodology yaml: %w", ErrInvalidInput, err)
	}
	if strings.TrimSpace(m.Name) == "" || len(m.Sections) == 0 {
		return Methodology{}, fmt.Errorf("%w: methodology needs a name and at least one section", ErrInvalidInput)
	}
	return m, nil
}

var (
	defaultOnce        sync.Once
	defaultMethodology Methodology
	defaultErr         error
)

// DefaultMethodology returns the embedded built-in methodology.
func DefaultMethodology() (Methodology, error) {
	defaultOnce.Do(func() {
		defaultMethodology, defaultErr = ParseMethodology(defaultMethodologyYAML)
		if defaultErr == nil && defaultMethodology.ID == "" {
			defaultMethodology.ID = DefaultMethodologyID
		}
	})
	return defaultMethodology, defaultErr
}
