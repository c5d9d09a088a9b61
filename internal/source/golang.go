package source

import (
	"fmt"
	"go/format"
	"strconv"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/dusk-indust/regenmerge/internal/decl"
)

// goExtractor maps Go source files. Struct type declarations become types
// and methods are attached to their receiver's struct.
type goExtractor struct{}

func isGoComment(n *tree_sitter.Node) bool {
	return n.Kind() == "comment"
}

type goMethod struct {
	receiver string
	method   decl.Method
}

func (e *goExtractor) Extract(root *tree_sitter.Node, src []byte) (*decl.Unit, error) {
	s := scanner{src: src, isComment: isGoComment}
	items, dangling := s.scan(namedChildren(root))

	structs := make(map[string]bool)
	for _, it := range items {
		if it.node.Kind() != "type_declaration" {
			continue
		}
		if spec, _ := goStructSpec(it.node); spec != nil {
			structs[nodeText(spec.ChildByFieldName("name"), src)] = true
		}
	}

	u := &decl.Unit{}
	var methods []goMethod
	for _, it := range items {
		switch it.node.Kind() {
		case "package_clause":
			u.Header = joinHeader(u.Header, withLineComment(s.fullText(it), it.lineComment))

		case "import_declaration":
			if len(u.Imports) == 0 && len(u.Types) == 0 && len(u.Chunks) == 0 && len(it.comments) > 0 {
				u.Header = joinHeader(u.Header, strings.Join(it.comments, "\n"))
			}
			u.Imports = append(u.Imports, goImports(it.node, src)...)

		case "type_declaration":
			spec, st := goStructSpec(it.node)
			if spec == nil {
				addChunk(u, withLineComment(s.fullText(it), it.lineComment))
				continue
			}
			u.Types = append(u.Types, e.extractStruct(s, it, spec, st))

		case "method_declaration":
			recv := goReceiverType(it.node, src)
			if !structs[recv] {
				addChunk(u, withLineComment(s.fullText(it), it.lineComment))
				continue
			}
			methods = append(methods, goMethod{receiver: recv, method: e.extractMethod(s, it)})

		default:
			addChunk(u, withLineComment(s.fullText(it), it.lineComment))
		}
	}
	for _, d := range dangling {
		addChunk(u, d)
	}

	for _, gm := range methods {
		if t := u.TypeByName(gm.receiver); t != nil {
			t.Methods = append(t.Methods, gm.method)
		}
	}
	return u, nil
}

// goStructSpec returns the type spec and struct type of a declaration that
// declares exactly one struct type without parentheses.
func goStructSpec(n *tree_sitter.Node) (*tree_sitter.Node, *tree_sitter.Node) {
	if hasChildKind(n, "(") {
		return nil, nil
	}
	spec := firstChildOfKind(n, "type_spec")
	if spec == nil {
		return nil, nil
	}
	st := spec.ChildByFieldName("type")
	if st == nil || st.Kind() != "struct_type" {
		return nil, nil
	}
	return spec, st
}

func goImports(n *tree_sitter.Node, src []byte) []decl.Import {
	var specs []*tree_sitter.Node
	for _, c := range namedChildren(n) {
		switch c.Kind() {
		case "import_spec":
			specs = append(specs, c)
		case "import_spec_list":
			for _, sc := range namedChildren(c) {
				if sc.Kind() == "import_spec" {
					specs = append(specs, sc)
				}
			}
		}
	}

	imports := make([]decl.Import, 0, len(specs))
	for _, spec := range specs {
		imports = append(imports, decl.Import{
			Path:  unquote(nodeText(spec.ChildByFieldName("path"), src)),
			Alias: nodeText(spec.ChildByFieldName("name"), src),
		})
	}
	return imports
}

func unquote(s string) string {
	if u, err := strconv.Unquote(s); err == nil {
		return u
	}
	return strings.Trim(s, "\"'`")
}

// goReceiverType returns the base type name of a method receiver, with
// pointer and type arguments removed.
func goReceiverType(n *tree_sitter.Node, src []byte) string {
	recv := firstChildOfKind(n.ChildByFieldName("receiver"), "parameter_declaration")
	if recv == nil {
		return ""
	}
	return goBaseTypeName(nodeText(recv.ChildByFieldName("type"), src))
}

func goBaseTypeName(t string) string {
	t = strings.TrimLeft(strings.TrimSpace(t), "*")
	if i := strings.IndexByte(t, '['); i >= 0 {
		t = t[:i]
	}
	if i := strings.LastIndexByte(t, '.'); i >= 0 {
		t = t[i+1:]
	}
	return strings.TrimSpace(t)
}

// splitGoDirectives separates directive comments such as "//go:generate"
// or "// +kubebuilder:..." from ordinary comment lines.
func splitGoDirectives(comments []string) ([]string, []decl.Annotation) {
	var plain []string
	var directives []decl.Annotation
	for _, c := range comments {
		if name, ok := goDirectiveName(c); ok {
			directives = append(directives, decl.Annotation{Name: name, Text: c})
			continue
		}
		plain = append(plain, c)
	}
	return plain, directives
}

func goDirectiveName(comment string) (string, bool) {
	if strings.Contains(comment, "\n") || !strings.HasPrefix(comment, "//") {
		return "", false
	}
	body := comment[2:]
	switch {
	case strings.HasPrefix(body, "go:"):
	case strings.HasPrefix(strings.TrimSpace(body), "+"):
		body = strings.TrimSpace(body)
	default:
		return "", false
	}
	if i := strings.IndexAny(body, "= \t"); i >= 0 {
		body = body[:i]
	}
	return body, true
}

func (e *goExtractor) extractStruct(s scanner, it item, spec, st *tree_sitter.Node) decl.Type {
	src := s.src
	t := decl.Type{Name: nodeText(spec.ChildByFieldName("name"), src)}
	t.Comment, t.Annotations = splitGoDirectives(it.comments)

	body := firstChildOfKind(st, "field_declaration_list")
	if body == nil {
		t.Header = collapse(nodeText(it.node, src))
		return t
	}
	t.Header = spanWithout(src, it.node.StartByte(), body.StartByte(), nil)

	fields, dangling := s.scan(namedChildren(body))
	for _, f := range fields {
		if f.node.Kind() != "field_declaration" {
			t.Members = append(t.Members, block(f.comments, s.itemText(f), f.lineComment))
			continue
		}
		t.Fields = append(t.Fields, e.extractField(s, f))
	}
	t.Members = append(t.Members, dangling...)
	return t
}

func (e *goExtractor) extractField(s scanner, it item) decl.Field {
	n := it.node
	src := s.src
	tag := n.ChildByFieldName("tag")
	f := decl.Field{
		Comment:     it.comments,
		LineComment: it.lineComment,
		Text:        s.itemText(it),
		Tag:         nodeText(tag, src),
	}

	names := fieldChildren(n, "name")
	if len(names) == 0 {
		end := n.EndByte()
		if tag != nil {
			end = tag.StartByte()
		}
		typ := collapse(string(src[n.StartByte():end]))
		f.Embedded = true
		f.Bindings = []decl.Binding{{Name: goBaseTypeName(typ), Type: typ}}
		return f
	}

	typ := collapse(nodeText(n.ChildByFieldName("type"), src))
	for _, name := range names {
		f.Bindings = append(f.Bindings, decl.Binding{Name: name.Utf8Text(src), Type: typ})
	}
	return f
}

func (e *goExtractor) extractMethod(s scanner, it item) decl.Method {
	n := it.node
	src := s.src
	m := decl.Method{
		Name:    nodeText(n.ChildByFieldName("name"), src),
		Comment: it.comments,
		Text:    withLineComment(s.itemText(it), it.lineComment),
	}
	_, m.Annotations = splitGoDirectives(it.comments)

	for _, p := range namedChildren(n.ChildByFieldName("parameters")) {
		switch p.Kind() {
		case "parameter_declaration":
			typ := nodeText(p.ChildByFieldName("type"), src)
			names := fieldChildren(p, "name")
			if len(names) == 0 {
				m.Params = append(m.Params, decl.Param{Type: typ})
				continue
			}
			for _, name := range names {
				m.Params = append(m.Params, decl.Param{Name: name.Utf8Text(src), Type: typ})
			}
		case "variadic_parameter_declaration":
			m.Params = append(m.Params, decl.Param{
				Name: nodeText(p.ChildByFieldName("name"), src),
				Type: "..." + nodeText(p.ChildByFieldName("type"), src),
			})
		}
	}
	return m
}

// goPrinter prints Go units and runs the result through gofmt.
type goPrinter struct{}

func (p *goPrinter) Print(u *decl.Unit) ([]byte, error) {
	var w writer
	if u.Header != "" {
		w.section("", []string{u.Header}, 0, 1)
	}

	if len(u.Imports) > 0 {
		lines := []string{"import ("}
		for _, imp := range u.Imports {
			spec := strconv.Quote(imp.Path)
			if imp.Alias != "" {
				spec = imp.Alias + " " + spec
			}
			lines = append(lines, "\t"+spec)
		}
		lines = append(lines, ")")
		w.section("", []string{strings.Join(lines, "\n")}, 0, 1)
	}
	w.section("", chunksAfter(u, -1), 1, 1)

	for i := range u.Types {
		t := &u.Types[i]
		w.open("", typeOpening(t, t.Header+" {"))
		w.section("\t", fieldBlocks(t.Fields, goFieldText), 0, 1)
		w.section("\t", t.Members, 1, 1)
		w.close("", "}")
		w.space(1)
		w.section("", methodBlocks(t.Methods), 1, 1)
		w.section("", chunksAfter(u, i), 1, 1)
	}

	out, err := format.Source([]byte(w.String()))
	if err != nil {
		return nil, fmt.Errorf("format go source: %w", err)
	}
	return out, nil
}

func goFieldText(f decl.Field) string {
	if f.Text != "" {
		return f.Text
	}
	if len(f.Bindings) == 0 {
		return ""
	}
	var text string
	if f.Embedded {
		text = f.Bindings[0].Type
	} else {
		text = strings.Join(f.Names(), ", ") + " " + f.Bindings[0].Type
	}
	if f.Tag != "" {
		text += " " + f.Tag
	}
	return text
}
