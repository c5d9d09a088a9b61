// Package source maps concrete source files onto the declaration tree in
// package decl and prints declaration trees back to source text.
package source

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/dusk-indust/regenmerge/internal/decl"
)

// ErrUnsupportedLanguage is returned for languages without an adapter.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Adapter converts between source text and declaration trees.
type Adapter interface {
	// Parse builds a declaration tree from source text. Malformed input
	// fails with a *SyntaxError.
	Parse(ctx context.Context, src []byte, lang decl.Language) (*decl.Unit, error)

	// Print serializes a declaration tree in its canonical layout.
	Print(unit *decl.Unit) ([]byte, error)

	// SupportedLanguages returns the languages this adapter can handle.
	SupportedLanguages() []decl.Language

	// Close releases any resources held by the adapter.
	Close() error
}

// SyntaxError reports the first syntax error found in a source text.
// Line and Column are 1-based.
type SyntaxError struct {
	Message string
	Line    int
	Column  int
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message)
}

// extractor builds a declaration tree from a parsed tree-sitter AST.
type extractor interface {
	Extract(root *tree_sitter.Node, src []byte) (*decl.Unit, error)
}

// printer renders a declaration tree as source text.
type printer interface {
	Print(unit *decl.Unit) ([]byte, error)
}

// TreeSitterAdapter implements Adapter using tree-sitter grammars.
// A new tree-sitter parser is created per Parse call, so concurrent Parse
// calls on one adapter are safe.
type TreeSitterAdapter struct {
	languages  map[decl.Language]*tree_sitter.Language
	extractors map[decl.Language]extractor
	printers   map[decl.Language]printer
}

// NewTreeSitterAdapter creates an adapter with Java, Go, TypeScript,
// Python and Rust grammars registered.
func NewTreeSitterAdapter() *TreeSitterAdapter {
	langs := map[decl.Language]*tree_sitter.Language{
		decl.LangJava:       tree_sitter.NewLanguage(tree_sitter_java.Language()),
		decl.LangGo:         tree_sitter.NewLanguage(tree_sitter_go.Language()),
		decl.LangTypeScript: tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript()),
		decl.LangPython:     tree_sitter.NewLanguage(tree_sitter_python.Language()),
		decl.LangRust:       tree_sitter.NewLanguage(tree_sitter_rust.Language()),
	}

	extractors := map[decl.Language]extractor{
		decl.LangJava:       &javaExtractor{},
		decl.LangGo:         &goExtractor{},
		decl.LangTypeScript: &tsExtractor{},
		decl.LangPython:     &pyExtractor{},
		decl.LangRust:       &rsExtractor{},
	}

	printers := map[decl.Language]printer{
		decl.LangJava:       &javaPrinter{},
		decl.LangGo:         &goPrinter{},
		decl.LangTypeScript: &tsPrinter{},
		decl.LangPython:     &pyPrinter{},
		decl.LangRust:       &rsPrinter{},
	}

	return &TreeSitterAdapter{
		languages:  langs,
		extractors: extractors,
		printers:   printers,
	}
}

// Parse builds a declaration tree from src.
func (a *TreeSitterAdapter) Parse(_ context.Context, src []byte, lang decl.Language) (*decl.Unit, error) {
	tsLang, ok := a.languages[lang]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang)
	}
	ext, ok := a.extractors[lang]
	if !ok {
		return nil, fmt.Errorf("no extractor for language: %s", lang)
	}

	parser := tree_sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(tsLang); err != nil {
		return nil, fmt.Errorf("set language %s: %w", lang, err)
	}

	tree := parser.Parse(src, nil)
	if tree == nil {
		return nil, fmt.Errorf("tree-sitter returned nil tree for %s source", lang)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, firstSyntaxError(root, src)
	}

	unit, err := ext.Extract(root, src)
	if err != nil {
		return nil, err
	}
	unit.Language = lang
	return unit, nil
}

// Print renders unit in the canonical layout of its language.
func (a *TreeSitterAdapter) Print(unit *decl.Unit) ([]byte, error) {
	if unit == nil {
		return nil, errors.New("print: nil unit")
	}
	p, ok := a.printers[unit.Language]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, unit.Language)
	}
	return p.Print(unit)
}

// SupportedLanguages returns the registered languages in sorted order.
func (a *TreeSitterAdapter) SupportedLanguages() []decl.Language {
	langs := make([]decl.Language, 0, len(a.languages))
	for l := range a.languages {
		langs = append(langs, l)
	}
	sort.Slice(langs, func(i, j int) bool { return langs[i] < langs[j] })
	return langs
}

// Close is a no-op because parsers are created per Parse call.
func (a *TreeSitterAdapter) Close() error {
	return nil
}

var extToLanguage = map[string]decl.Language{
	".java": decl.LangJava,
	".go":   decl.LangGo,
	".ts":   decl.LangTypeScript,
	".tsx":  decl.LangTypeScript,
	".mts":  decl.LangTypeScript,
	".py":   decl.LangPython,
	".pyi":  decl.LangPython,
	".rs":   decl.LangRust,
}

// LanguageForPath maps a file name to its language by extension.
func LanguageForPath(path string) (decl.Language, bool) {
	lang, ok := extToLanguage[strings.ToLower(filepath.Ext(path))]
	return lang, ok
}

// firstSyntaxError locates the first ERROR or MISSING node in document
// order.
func firstSyntaxError(root *tree_sitter.Node, src []byte) *SyntaxError {
	var found *tree_sitter.Node
	var visit func(n *tree_sitter.Node) bool
	visit = func(n *tree_sitter.Node) bool {
		if n.IsError() || n.IsMissing() {
			found = n
			return true
		}
		if !n.HasError() {
			return false
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			if c := n.Child(i); c != nil && visit(c) {
				return true
			}
		}
		return false
	}
	visit(root)

	if found == nil {
		return &SyntaxError{Message: "syntax error", Line: 1, Column: 1}
	}

	pos := found.StartPosition()
	msg := "unexpected input"
	if found.IsMissing() {
		msg = fmt.Sprintf("missing %s", found.Kind())
	} else if text := strings.TrimSpace(found.Utf8Text(src)); text != "" {
		if len(text) > 40 {
			text = text[:40] + "..."
		}
		msg = fmt.Sprintf("unexpected %q", firstLine(text))
	}
	return &SyntaxError{
		Message: msg,
		Line:    int(pos.Row) + 1,
		Column:  int(pos.Column) + 1,
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
