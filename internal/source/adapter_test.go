package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/regenmerge/internal/decl"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// parseSource parses src with a fresh adapter and fails the test on error.
func parseSource(t *testing.T, lang decl.Language, src string) *decl.Unit {
	t.Helper()
	a := NewTreeSitterAdapter()
	defer a.Close()
	u, err := a.Parse(context.Background(), []byte(src), lang)
	require.NoError(t, err)
	require.NotNil(t, u)
	return u
}

// printUnit prints u and fails the test on error.
func printUnit(t *testing.T, u *decl.Unit) string {
	t.Helper()
	out, err := NewTreeSitterAdapter().Print(u)
	require.NoError(t, err)
	return string(out)
}

// assertStablePrint checks that printing is a fixed point after one round
// trip and returns the first printed form.
func assertStablePrint(t *testing.T, lang decl.Language, src string) string {
	t.Helper()
	first := printUnit(t, parseSource(t, lang, src))
	second := printUnit(t, parseSource(t, lang, first))
	assert.Equal(t, first, second, "print(parse(print(x))) should equal print(x)")
	return first
}

func signatures(typ *decl.Type) []string {
	out := make([]string, 0, len(typ.Methods))
	for _, m := range typ.Methods {
		out = append(out, m.Signature().String())
	}
	return out
}

func importKeys(u *decl.Unit) []string {
	out := make([]string, 0, len(u.Imports))
	for _, imp := range u.Imports {
		out = append(out, imp.Key())
	}
	return out
}

// ---------------------------------------------------------------------------
// TestTreeSitterAdapter_SupportedLanguages
// ---------------------------------------------------------------------------

func TestTreeSitterAdapter_SupportedLanguages(t *testing.T) {
	a := NewTreeSitterAdapter()
	defer a.Close()

	assert.Equal(t, []decl.Language{
		decl.LangGo,
		decl.LangJava,
		decl.LangPython,
		decl.LangRust,
		decl.LangTypeScript,
	}, a.SupportedLanguages())
}

// ---------------------------------------------------------------------------
// TestLanguageForPath
// ---------------------------------------------------------------------------

func TestLanguageForPath(t *testing.T) {
	tests := []struct {
		path string
		want decl.Language
		ok   bool
	}{
		{"src/main/java/com/example/Foo.java", decl.LangJava, true},
		{"internal/foo.go", decl.LangGo, true},
		{"web/foo.ts", decl.LangTypeScript, true},
		{"web/Foo.TSX", decl.LangTypeScript, true},
		{"app/models.py", decl.LangPython, true},
		{"stubs/models.pyi", decl.LangPython, true},
		{"src/lib.rs", decl.LangRust, true},
		{"README.md", "", false},
		{"Makefile", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := LanguageForPath(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

func TestTreeSitterAdapter_UnsupportedLanguage(t *testing.T) {
	a := NewTreeSitterAdapter()

	_, err := a.Parse(context.Background(), []byte("x"), decl.Language("cobol"))
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)

	_, err = a.Print(&decl.Unit{Language: "cobol"})
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)

	_, err = a.Print(nil)
	assert.Error(t, err)
}

func TestTreeSitterAdapter_SyntaxError(t *testing.T) {
	a := NewTreeSitterAdapter()
	src := "public class Foo {\n    void bar( {\n}\n"

	_, err := a.Parse(context.Background(), []byte(src), decl.LangJava)
	require.Error(t, err)

	var syn *SyntaxError
	require.True(t, errors.As(err, &syn), "expected *SyntaxError, got %T", err)
	assert.GreaterOrEqual(t, syn.Line, 1)
	assert.GreaterOrEqual(t, syn.Column, 1)
	assert.NotEmpty(t, syn.Message)
	assert.Contains(t, syn.Error(), syn.Message)
}

// ---------------------------------------------------------------------------
// Loader
// ---------------------------------------------------------------------------

func TestLoader_Absent(t *testing.T) {
	l := NewLoader(NewTreeSitterAdapter())
	_, _, err := l.Load(context.Background(), filepath.Join(t.TempDir(), "Missing.java"))
	assert.ErrorIs(t, err, ErrAbsent)
}

func TestLoader_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Foo.java")
	require.NoError(t, os.WriteFile(path, []byte("public class Foo {\n}\n"), 0o644))

	l := NewLoader(NewTreeSitterAdapter())
	u, data, err := l.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "public class Foo {\n}\n", string(data))
	require.NotNil(t, u.Primary())
	assert.Equal(t, "Foo", u.Primary().Name)
	assert.Equal(t, decl.LangJava, u.Language)
}

func TestLoader_UnsupportedExtension(t *testing.T) {
	l := NewLoader(NewTreeSitterAdapter())
	_, _, err := l.Load(context.Background(), "notes.txt")
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
}

// ---------------------------------------------------------------------------
// Text helpers
// ---------------------------------------------------------------------------

func TestDedentAndIndent(t *testing.T) {
	text := "void bar() {\n        return;\n    }"
	got := dedent(text, "    ")
	assert.Equal(t, "void bar() {\n    return;\n}", got)
	assert.Equal(t, "  void bar() {\n      return;\n  }", indentText(got, "  "))
	assert.Equal(t, "a\n\nb", dedent("a\n  \n  b", "  "))
}

func TestAnnotationName(t *testing.T) {
	assert.Equal(t, "Column", annotationName(`@Column(name = "x")`))
	assert.Equal(t, "dataclass", annotationName("@dataclass"))
	assert.Equal(t, "derive", annotationName("#[derive(Debug)]"))
	assert.Equal(t, "allow", annotationName("#![allow(dead_code)]"))
	assert.Equal(t, "functools.cache", annotationName("@functools.cache"))
}

func TestWriterSections(t *testing.T) {
	var w writer
	w.section("", []string{"header"}, 0, 1)
	w.open("", "class A {")
	w.section("  ", []string{"a;", "b;"}, 0, 1)
	w.section("  ", []string{"m1() {}", "m2() {}"}, 1, 1)
	w.close("", "}")
	assert.Equal(t, "header\n\nclass A {\n  a;\n  b;\n\n  m1() {}\n\n  m2() {}\n}\n", w.String())
}
