package source

import (
	"strings"

	"github.com/dusk-indust/regenmerge/internal/decl"
)

// writer accumulates printed source, managing blank lines between
// sections.
type writer struct {
	b       strings.Builder
	pending int
}

// space requests at least n blank lines before the next write.
func (w *writer) space(n int) {
	if n > w.pending {
		w.pending = n
	}
}

func (w *writer) flush() {
	if w.b.Len() > 0 {
		for i := 0; i < w.pending; i++ {
			w.b.WriteByte('\n')
		}
	}
	w.pending = 0
}

// line writes text at indent followed by a newline.
func (w *writer) line(indent, text string) {
	w.flush()
	w.b.WriteString(indentText(text, indent))
	w.b.WriteByte('\n')
}

// open writes a line that opens a body; nothing separates it from the
// first body line.
func (w *writer) open(indent, text string) {
	w.line(indent, text)
}

// close writes the line ending a body, dropping any requested spacing.
func (w *writer) close(indent, text string) {
	w.pending = 0
	w.line(indent, text)
}

// section writes blocks separated by between blank lines, then requests
// after blank lines before whatever follows.
func (w *writer) section(indent string, blocks []string, between, after int) {
	if len(blocks) == 0 {
		return
	}
	for i, b := range blocks {
		if i > 0 {
			w.space(between)
		}
		w.line(indent, b)
	}
	w.space(after)
}

func (w *writer) String() string {
	return w.b.String()
}

// block joins comment lines and a declaration text.
func block(comments []string, text, lineComment string) string {
	parts := make([]string, 0, len(comments)+1)
	parts = append(parts, comments...)
	if lineComment != "" {
		text += " " + lineComment
	}
	parts = append(parts, text)
	return strings.Join(parts, "\n")
}

// fieldBlocks renders fields through render, which synthesizes declarations
// whose Text is empty.
func fieldBlocks(fields []decl.Field, render func(decl.Field) string) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, block(f.Comment, render(f), f.LineComment))
	}
	return out
}

func methodBlocks(methods []decl.Method) []string {
	out := make([]string, 0, len(methods))
	for _, m := range methods {
		out = append(out, block(m.Comment, m.Text, ""))
	}
	return out
}

func annotationLines(anns []decl.Annotation) []string {
	out := make([]string, 0, len(anns))
	for _, a := range anns {
		out = append(out, a.Text)
	}
	return out
}

// typeOpening joins the comment, annotations and header line of a type.
func typeOpening(t *decl.Type, headerLine string) string {
	parts := make([]string, 0, len(t.Comment)+len(t.Annotations)+1)
	parts = append(parts, t.Comment...)
	parts = append(parts, annotationLines(t.Annotations)...)
	parts = append(parts, headerLine)
	return strings.Join(parts, "\n")
}

// synthAnnotated prefixes a synthesized declaration with its annotations.
func synthAnnotated(anns []decl.Annotation, text string) string {
	if len(anns) == 0 {
		return text
	}
	return strings.Join(append(annotationLines(anns), text), "\n")
}
