// Package provenance classifies declarations as generated, manual or
// unmarked from their leading comments and annotations.
package provenance

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dusk-indust/regenmerge/internal/decl"
)

// Markers is the marker vocabulary recognized by a Classifier.
type Markers struct {
	// Generated is the comment token marking generator-owned declarations.
	Generated string `yaml:"generated,omitempty" json:"generated,omitempty"`
	// Manual is the comment token marking hand-owned declarations.
	Manual string `yaml:"manual,omitempty" json:"manual,omitempty"`
	// Annotation is a substring that marks an annotation name as
	// generator-owned, e.g. "Generated" matches @Generated.
	Annotation string `yaml:"annotation,omitempty" json:"annotation,omitempty"`
}

// DefaultMarkers returns the stock "// Generated" / "// Manual" vocabulary.
func DefaultMarkers() Markers {
	return Markers{
		Generated:  "Generated",
		Manual:     "Manual",
		Annotation: "Generated",
	}
}

// WithDefaults fills empty markers from DefaultMarkers.
func (m Markers) WithDefaults() Markers {
	d := DefaultMarkers()
	if m.Generated == "" {
		m.Generated = d.Generated
	}
	if m.Manual == "" {
		m.Manual = d.Manual
	}
	if m.Annotation == "" {
		m.Annotation = d.Annotation
	}
	return m
}

// Classifier derives the effective provenance of a method.
type Classifier struct {
	markers Markers
}

// NewClassifier creates a Classifier. Empty markers fall back to defaults.
func NewClassifier(markers Markers) *Classifier {
	return &Classifier{markers: markers.WithDefaults()}
}

// Markers returns the vocabulary in use.
func (c *Classifier) Markers() Markers {
	return c.markers
}

// Classify returns Manual when the method is explicitly manual or carries
// the manual comment marker, otherwise Generated when it is explicitly
// generated, carries the generated comment marker or a generated
// annotation, otherwise Unmarked. Manual takes precedence.
func (c *Classifier) Classify(m decl.Method) decl.Provenance {
	if m.Provenance == decl.Manual || c.hasMarker(m.Comment, c.markers.Manual) {
		return decl.Manual
	}
	if m.Provenance == decl.Generated || c.hasMarker(m.Comment, c.markers.Generated) {
		return decl.Generated
	}
	for _, a := range m.Annotations {
		if strings.Contains(a.Name, c.markers.Annotation) {
			return decl.Generated
		}
	}
	return decl.Unmarked
}

// Replaceable reports whether regeneration may overwrite the method.
func (c *Classifier) Replaceable(m decl.Method) bool {
	return c.Classify(m) == decl.Generated
}

// hasMarker reports whether any comment line starts with token once comment
// delimiters are stripped. The token must end at a word boundary, so
// "Generated" matches "// Generated by tool" but not "// GeneratedFoo" and
// ordinary prose mentioning the word later in the line does not match.
func (c *Classifier) hasMarker(comments []string, token string) bool {
	if token == "" {
		return false
	}
	for _, comment := range comments {
		for _, line := range strings.Split(comment, "\n") {
			if matchesToken(stripDelimiters(line), token) {
				return true
			}
		}
	}
	return false
}

func matchesToken(text, token string) bool {
	if !strings.HasPrefix(text, token) {
		return false
	}
	rest := text[len(token):]
	if rest == "" {
		return true
	}
	r, _ := utf8.DecodeRuneInString(rest)
	return !(r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r))
}

func stripDelimiters(line string) string {
	s := strings.TrimSpace(line)
	for _, p := range []string{"///", "//!", "//", "/**", "/*", "#", "*"} {
		if strings.HasPrefix(s, p) {
			s = s[len(p):]
			break
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "*/")
	return strings.TrimSpace(s)
}
