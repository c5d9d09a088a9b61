// Package decl defines the language-neutral declaration tree that the merge
// engine operates on. Source adapters map concrete syntax trees onto these
// types and print them back.
package decl

import (
	"strings"
	"unicode"
)

// Language identifies a source language supported by an adapter.
type Language string

const (
	LangJava       Language = "java"
	LangGo         Language = "go"
	LangTypeScript Language = "typescript"
	LangPython     Language = "python"
	LangRust       Language = "rust"
)

// Unit is one parsed compilation unit (a source file).
type Unit struct {
	Language Language

	// Header is opaque text printed before the imports: package clause,
	// license comments, module docstring.
	Header string

	Imports []Import
	Types   []Type

	// Chunks are top-level declarations that are not merged types. They
	// are carried verbatim from the side they were parsed from.
	Chunks []Chunk
}

// Chunk is an opaque top-level declaration positioned relative to Types.
type Chunk struct {
	// After is the index into Unit.Types this chunk follows, or -1 when it
	// precedes every type.
	After int
	Text  string
}

// Primary returns the primary type declaration of the unit, or nil when the
// unit declares none.
func (u *Unit) Primary() *Type {
	if u == nil || len(u.Types) == 0 {
		return nil
	}
	return &u.Types[0]
}

// TypeByName returns the type with the given name, or nil.
func (u *Unit) TypeByName(name string) *Type {
	for i := range u.Types {
		if u.Types[i].Name == name {
			return &u.Types[i]
		}
	}
	return nil
}

// Import is a single imported name.
type Import struct {
	// Path is the module, package or fully qualified name being imported.
	Path string
	// Name is the member imported from Path, when the language imports
	// members separately ("from x import Name", "import { Name } from 'x'").
	Name string
	// Alias is the local rename. It does not participate in identity.
	Alias string
	// Qualifier is a keyword that changes the meaning of the import, such
	// as Java "static", TypeScript "type" or Rust "pub".
	Qualifier string
}

// Key returns the identity of the import: its fully qualified name.
func (i Import) Key() string {
	full := i.Path
	if i.Name != "" {
		full += "." + i.Name
	}
	if i.Qualifier != "" {
		return i.Qualifier + " " + full
	}
	return full
}

// Annotation is an annotation, decorator or attribute attached to a
// declaration. Identity is Name; arguments are ignored.
type Annotation struct {
	Name string
	Text string
}

// Binding is one name bound by a field declaration.
type Binding struct {
	Name  string
	Type  string
	Value string
}

// Field is a field declaration statement, possibly binding several names.
type Field struct {
	Bindings    []Binding
	Modifiers   string
	Tag         string
	Embedded    bool
	Annotations []Annotation

	// Comment holds the comment lines directly preceding the field.
	Comment []string
	// LineComment is a comment on the same line after the field.
	LineComment string

	// Text is the verbatim declaration without Comment and LineComment.
	// An empty Text makes printers synthesize the declaration from its parts.
	Text string
}

// Names returns the names bound by the declaration.
func (f Field) Names() []string {
	names := make([]string, 0, len(f.Bindings))
	for _, b := range f.Bindings {
		names = append(names, b.Name)
	}
	return names
}

// Param is a method parameter.
type Param struct {
	Name string
	Type string
}

// Method is a method declaration. Bodies are opaque.
type Method struct {
	Name   string
	Params []Param

	// Comment holds the comment lines directly preceding the method.
	Comment     []string
	Annotations []Annotation

	// Text is the verbatim declaration, annotations included.
	Text string

	// Provenance is an explicit classification. Adapters leave it Unmarked
	// and the classifier derives the effective value from comments and
	// annotations.
	Provenance Provenance
}

// Signature returns the identity of the method: its name and the ordered
// list of parameter types. The return type is not part of the signature.
func (m Method) Signature() Signature {
	types := make([]string, len(m.Params))
	for i, p := range m.Params {
		types[i] = NormalizeType(p.Type)
	}
	return Signature(m.Name + "(" + strings.Join(types, ",") + ")")
}

// Type is a type declaration: a class, struct or equivalent.
type Type struct {
	Name string

	// Header is the declaration head without annotations, e.g.
	// "public class Foo extends Bar" or "type Foo struct".
	Header      string
	Comment     []string
	Annotations []Annotation

	Fields []Field
	// Members are opaque body members that are neither fields nor methods:
	// constructors, nested types, initializer blocks, dangling comments.
	Members []string
	Methods []Method

	// Layout carries adapter-specific printing hints.
	Layout map[string]string
}

// FieldNames returns every name bound by the type's fields, in order.
func (t *Type) FieldNames() []string {
	var names []string
	for _, f := range t.Fields {
		names = append(names, f.Names()...)
	}
	return names
}

// MethodBySignature returns the first method with the given signature.
func (t *Type) MethodBySignature(sig Signature) *Method {
	for i := range t.Methods {
		if t.Methods[i].Signature() == sig {
			return &t.Methods[i]
		}
	}
	return nil
}

// HasAnnotation reports whether the type carries an annotation with name.
func (t *Type) HasAnnotation(name string) bool {
	for _, a := range t.Annotations {
		if a.Name == name {
			return true
		}
	}
	return false
}

// Signature is the identity key of a method, e.g. "find(String,int)".
type Signature string

func (s Signature) String() string { return string(s) }

// NormalizeType canonicalizes whitespace in a type expression so that
// "Map<String, Integer>" and "Map<String,Integer>" compare equal. A space is
// kept only between two identifier characters ("&mut T").
func NormalizeType(t string) string {
	fields := strings.Fields(t)
	if len(fields) <= 1 {
		return strings.Join(fields, "")
	}
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			prev, _ := lastRune(fields[i-1])
			next := []rune(f)[0]
			if isIdentRune(prev) && isIdentRune(next) {
				b.WriteByte(' ')
			}
		}
		b.WriteString(f)
	}
	return b.String()
}

func lastRune(s string) (rune, bool) {
	r := []rune(s)
	if len(r) == 0 {
		return 0, false
	}
	return r[len(r)-1], true
}

func isIdentRune(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
