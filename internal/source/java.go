package source

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/dusk-indust/regenmerge/internal/decl"
)

const javaIndent = "    "

// javaExtractor maps Java compilation units. Top-level classes, interfaces
// and records become types; enums are carried as opaque chunks.
type javaExtractor struct{}

func isJavaComment(n *tree_sitter.Node) bool {
	k := n.Kind()
	return k == "line_comment" || k == "block_comment"
}

func isJavaAnnotation(n *tree_sitter.Node) bool {
	k := n.Kind()
	return k == "annotation" || k == "marker_annotation"
}

func (e *javaExtractor) Extract(root *tree_sitter.Node, src []byte) (*decl.Unit, error) {
	s := scanner{src: src, isComment: isJavaComment}
	items, dangling := s.scan(namedChildren(root))

	u := &decl.Unit{}
	for _, it := range items {
		switch it.node.Kind() {
		case "package_declaration":
			u.Header = joinHeader(u.Header, withLineComment(s.fullText(it), it.lineComment))

		case "import_declaration":
			if len(u.Imports) == 0 && len(u.Types) == 0 && len(u.Chunks) == 0 && len(it.comments) > 0 {
				u.Header = joinHeader(u.Header, strings.Join(it.comments, "\n"))
			}
			u.Imports = append(u.Imports, javaImport(it.node, src))

		case "class_declaration", "interface_declaration", "record_declaration":
			u.Types = append(u.Types, e.extractClass(s, it))

		default:
			addChunk(u, withLineComment(s.fullText(it), it.lineComment))
		}
	}
	for _, d := range dangling {
		addChunk(u, d)
	}
	return u, nil
}

func javaImport(n *tree_sitter.Node, src []byte) decl.Import {
	imp := decl.Import{}
	for _, c := range children(n) {
		switch c.Kind() {
		case "static":
			imp.Qualifier = "static"
		case "identifier", "scoped_identifier":
			imp.Path = collapse(c.Utf8Text(src))
		case "asterisk":
			imp.Path += ".*"
		}
	}
	return imp
}

func (e *javaExtractor) extractClass(s scanner, it item) decl.Type {
	node := it.node
	src := s.src
	t := decl.Type{
		Name:    nodeText(node.ChildByFieldName("name"), src),
		Comment: it.comments,
	}

	var cuts []*tree_sitter.Node
	for _, c := range namedChildren(firstChildOfKind(node, "modifiers")) {
		if isJavaAnnotation(c) {
			t.Annotations = append(t.Annotations, javaAnnotation(s, c))
			cuts = append(cuts, c)
		}
	}

	body := node.ChildByFieldName("body")
	if body == nil {
		t.Header = collapse(nodeText(node, src))
		return t
	}
	t.Header = spanWithout(src, node.StartByte(), body.StartByte(), cuts)

	members, dangling := s.scan(namedChildren(body))
	for _, m := range members {
		switch m.node.Kind() {
		case "field_declaration", "constant_declaration":
			t.Fields = append(t.Fields, e.extractField(s, m))
		case "method_declaration":
			t.Methods = append(t.Methods, e.extractMethod(s, m))
		default:
			t.Members = append(t.Members, block(m.comments, s.itemText(m), m.lineComment))
		}
	}
	t.Members = append(t.Members, dangling...)
	return t
}

func javaAnnotation(s scanner, n *tree_sitter.Node) decl.Annotation {
	return decl.Annotation{
		Name: nodeText(n.ChildByFieldName("name"), s.src),
		Text: s.text(n.StartByte(), n.EndByte()),
	}
}

// javaModifiers splits a modifiers node into annotations and keywords.
func javaModifiers(s scanner, n *tree_sitter.Node) ([]decl.Annotation, string) {
	var anns []decl.Annotation
	var words []string
	for _, c := range children(firstChildOfKind(n, "modifiers")) {
		if isJavaAnnotation(c) {
			anns = append(anns, javaAnnotation(s, c))
			continue
		}
		if isJavaComment(c) {
			continue
		}
		words = append(words, c.Utf8Text(s.src))
	}
	return anns, strings.Join(words, " ")
}

func (e *javaExtractor) extractField(s scanner, it item) decl.Field {
	n := it.node
	src := s.src
	f := decl.Field{
		Comment:     it.comments,
		LineComment: it.lineComment,
		Text:        s.itemText(it),
	}
	f.Annotations, f.Modifiers = javaModifiers(s, n)

	typ := collapse(nodeText(n.ChildByFieldName("type"), src))
	for _, d := range fieldChildren(n, "declarator") {
		f.Bindings = append(f.Bindings, decl.Binding{
			Name:  nodeText(d.ChildByFieldName("name"), src),
			Type:  typ + nodeText(d.ChildByFieldName("dimensions"), src),
			Value: collapse(nodeText(d.ChildByFieldName("value"), src)),
		})
	}
	return f
}

func (e *javaExtractor) extractMethod(s scanner, it item) decl.Method {
	n := it.node
	src := s.src
	m := decl.Method{
		Name:    nodeText(n.ChildByFieldName("name"), src),
		Comment: it.comments,
		Text:    withLineComment(s.itemText(it), it.lineComment),
	}
	m.Annotations, _ = javaModifiers(s, n)

	for _, p := range namedChildren(n.ChildByFieldName("parameters")) {
		switch p.Kind() {
		case "formal_parameter":
			m.Params = append(m.Params, decl.Param{
				Name: nodeText(p.ChildByFieldName("name"), src),
				Type: nodeText(p.ChildByFieldName("type"), src) + nodeText(p.ChildByFieldName("dimensions"), src),
			})
		case "spread_parameter":
			var param decl.Param
			for _, c := range namedChildren(p) {
				switch {
				case c.Kind() == "modifiers" || isJavaAnnotation(c) || isJavaComment(c):
				case c.Kind() == "variable_declarator":
					param.Name = nodeText(c.ChildByFieldName("name"), src)
				case param.Type == "":
					param.Type = c.Utf8Text(src)
				}
			}
			param.Type += "..."
			m.Params = append(m.Params, param)
		}
	}
	return m
}

// javaPrinter prints Java units with four-space indentation.
type javaPrinter struct{}

func (p *javaPrinter) Print(u *decl.Unit) ([]byte, error) {
	var w writer
	if u.Header != "" {
		w.section("", []string{u.Header}, 0, 1)
	}

	imports := make([]string, 0, len(u.Imports))
	for _, imp := range u.Imports {
		if imp.Qualifier != "" {
			imports = append(imports, "import "+imp.Qualifier+" "+imp.Path+";")
		} else {
			imports = append(imports, "import "+imp.Path+";")
		}
	}
	w.section("", imports, 0, 1)
	w.section("", chunksAfter(u, -1), 1, 1)

	for i := range u.Types {
		t := &u.Types[i]
		w.open("", typeOpening(t, t.Header+" {"))
		w.section(javaIndent, fieldBlocks(t.Fields, javaFieldText), 0, 1)
		w.section(javaIndent, t.Members, 1, 1)
		w.section(javaIndent, methodBlocks(t.Methods), 1, 1)
		w.close("", "}")
		w.space(1)
		w.section("", chunksAfter(u, i), 1, 1)
	}
	return []byte(w.String()), nil
}

func javaFieldText(f decl.Field) string {
	if f.Text != "" {
		return f.Text
	}
	if len(f.Bindings) == 0 {
		return ""
	}
	vars := make([]string, 0, len(f.Bindings))
	for _, b := range f.Bindings {
		v := b.Name
		if b.Value != "" {
			v += " = " + b.Value
		}
		vars = append(vars, v)
	}
	parts := []string{}
	if f.Modifiers != "" {
		parts = append(parts, f.Modifiers)
	}
	parts = append(parts, f.Bindings[0].Type, strings.Join(vars, ", "))
	return synthAnnotated(f.Annotations, strings.Join(parts, " ")+";")
}

func joinHeader(header, part string) string {
	if header == "" {
		return part
	}
	if part == "" {
		return header
	}
	return header + "\n\n" + part
}

func withLineComment(text, lineComment string) string {
	if lineComment == "" {
		return text
	}
	return text + " " + lineComment
}
