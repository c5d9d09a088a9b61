package source

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/dusk-indust/regenmerge/internal/decl"
)

const rsIndent = "    "

// Layout keys used for the inherent impl block of a Rust struct.
const (
	layoutImpl        = "impl"
	layoutImplComment = "impl.comment"
	layoutImplItems   = "impl.items"
)

// rsExtractor maps Rust modules. Structs with named fields become types
// and their inherent impl blocks are folded into one method list. Trait
// impls are carried as opaque chunks.
type rsExtractor struct{}

func isRsComment(n *tree_sitter.Node) bool {
	k := n.Kind()
	return k == "line_comment" || k == "block_comment"
}

func isRsAttribute(n *tree_sitter.Node) bool {
	return n.Kind() == "attribute_item"
}

func (e *rsExtractor) Extract(root *tree_sitter.Node, src []byte) (*decl.Unit, error) {
	s := scanner{src: src, isComment: isRsComment, isPrefix: isRsAttribute}
	items, dangling := s.scan(namedChildren(root))

	structs := make(map[string]bool)
	for _, it := range items {
		if it.node.Kind() == "struct_item" && rsStructBody(it.node) != nil {
			structs[nodeText(it.node.ChildByFieldName("name"), src)] = true
		}
	}

	u := &decl.Unit{}
	var impls []item
	for _, it := range items {
		n := it.node
		switch n.Kind() {
		case "inner_attribute_item":
			if len(u.Imports) == 0 && len(u.Types) == 0 && len(u.Chunks) == 0 {
				u.Header = joinHeader(u.Header, s.fullText(it))
				continue
			}
			addChunk(u, withLineComment(s.fullText(it), it.lineComment))

		case "use_declaration":
			if len(it.prefix) > 0 {
				addChunk(u, withLineComment(s.fullText(it), it.lineComment))
				continue
			}
			if len(u.Imports) == 0 && len(u.Types) == 0 && len(u.Chunks) == 0 && len(it.comments) > 0 {
				u.Header = joinHeader(u.Header, strings.Join(it.comments, "\n"))
			}
			u.Imports = append(u.Imports, rsImports(n, src)...)

		case "struct_item":
			if rsStructBody(n) == nil {
				addChunk(u, withLineComment(s.fullText(it), it.lineComment))
				continue
			}
			u.Types = append(u.Types, e.extractStruct(s, it))

		case "impl_item":
			if n.ChildByFieldName("trait") != nil || len(it.prefix) > 0 || !structs[rsImplTarget(n, src)] {
				addChunk(u, withLineComment(s.fullText(it), it.lineComment))
				continue
			}
			impls = append(impls, it)

		default:
			addChunk(u, withLineComment(s.fullText(it), it.lineComment))
		}
	}
	for _, d := range dangling {
		addChunk(u, d)
	}

	for _, it := range impls {
		if t := u.TypeByName(rsImplTarget(it.node, src)); t != nil {
			e.extractImpl(s, it, t)
		}
	}
	return u, nil
}

func rsStructBody(n *tree_sitter.Node) *tree_sitter.Node {
	body := n.ChildByFieldName("body")
	if body == nil || body.Kind() != "field_declaration_list" {
		return nil
	}
	return body
}

func rsImplTarget(n *tree_sitter.Node, src []byte) string {
	t := nodeText(n.ChildByFieldName("type"), src)
	if i := strings.IndexByte(t, '<'); i >= 0 {
		t = t[:i]
	}
	if i := strings.LastIndex(t, "::"); i >= 0 {
		t = t[i+2:]
	}
	return strings.TrimSpace(t)
}

func rsImports(n *tree_sitter.Node, src []byte) []decl.Import {
	qualifier := collapse(nodeText(firstChildOfKind(n, "visibility_modifier"), src))
	var imports []decl.Import
	var expand func(n *tree_sitter.Node, prefix string)
	expand = func(n *tree_sitter.Node, prefix string) {
		if n == nil || isRsComment(n) {
			return
		}
		switch n.Kind() {
		case "use_as_clause":
			imports = append(imports, decl.Import{
				Path:      rsJoinPath(prefix, collapse(nodeText(n.ChildByFieldName("path"), src))),
				Alias:     nodeText(n.ChildByFieldName("alias"), src),
				Qualifier: qualifier,
			})
		case "scoped_use_list":
			next := prefix
			if p := n.ChildByFieldName("path"); p != nil {
				next = rsJoinPath(prefix, collapse(p.Utf8Text(src)))
			}
			expand(n.ChildByFieldName("list"), next)
		case "use_list":
			for _, c := range namedChildren(n) {
				expand(c, prefix)
			}
		case "self":
			if prefix != "" {
				imports = append(imports, decl.Import{Path: prefix, Qualifier: qualifier})
				return
			}
			fallthrough
		default:
			imports = append(imports, decl.Import{
				Path:      rsJoinPath(prefix, strings.ReplaceAll(n.Utf8Text(src), " ", "")),
				Qualifier: qualifier,
			})
		}
	}
	expand(n.ChildByFieldName("argument"), "")
	return imports
}

func rsJoinPath(prefix, path string) string {
	if prefix == "" {
		return path
	}
	return prefix + "::" + path
}

func rsAttributes(s scanner, nodes []*tree_sitter.Node) []decl.Annotation {
	anns := make([]decl.Annotation, 0, len(nodes))
	for _, n := range nodes {
		if !isRsAttribute(n) {
			continue
		}
		text := s.text(n.StartByte(), n.EndByte())
		anns = append(anns, decl.Annotation{Name: annotationName(text), Text: text})
	}
	return anns
}

func (e *rsExtractor) extractStruct(s scanner, it item) decl.Type {
	n := it.node
	src := s.src
	body := rsStructBody(n)
	t := decl.Type{
		Name:        nodeText(n.ChildByFieldName("name"), src),
		Comment:     it.comments,
		Annotations: rsAttributes(s, it.prefix),
		Header:      collapse(string(src[n.StartByte():body.StartByte()])),
	}

	fields, dangling := s.scan(namedChildren(body))
	for _, f := range fields {
		if f.node.Kind() != "field_declaration" {
			t.Members = append(t.Members, block(f.comments, s.itemText(f), f.lineComment))
			continue
		}
		fn := f.node
		t.Fields = append(t.Fields, decl.Field{
			Bindings: []decl.Binding{{
				Name: nodeText(fn.ChildByFieldName("name"), src),
				Type: collapse(nodeText(fn.ChildByFieldName("type"), src)),
			}},
			Modifiers:   collapse(nodeText(firstChildOfKind(fn, "visibility_modifier"), src)),
			Annotations: rsAttributes(s, f.prefix),
			Comment:     f.comments,
			LineComment: f.lineComment,
			Text:        s.itemText(f),
		})
	}
	t.Members = append(t.Members, dangling...)
	return t
}

func (e *rsExtractor) extractImpl(s scanner, it item, t *decl.Type) {
	n := it.node
	src := s.src
	body := n.ChildByFieldName("body")
	if t.Layout == nil {
		t.Layout = make(map[string]string)
	}
	if _, ok := t.Layout[layoutImpl]; !ok {
		end := n.EndByte()
		if body != nil {
			end = body.StartByte()
		}
		t.Layout[layoutImpl] = collapse(string(src[n.StartByte():end]))
		if len(it.comments) > 0 {
			t.Layout[layoutImplComment] = strings.Join(it.comments, "\n")
		}
	}
	if body == nil {
		return
	}

	var extra []string
	if prev := t.Layout[layoutImplItems]; prev != "" {
		extra = append(extra, prev)
	}
	members, dangling := s.scan(namedChildren(body))
	for _, m := range members {
		if m.node.Kind() != "function_item" {
			extra = append(extra, block(m.comments, s.itemText(m), m.lineComment))
			continue
		}
		t.Methods = append(t.Methods, e.extractMethod(s, m))
	}
	extra = append(extra, dangling...)
	if len(extra) > 0 {
		t.Layout[layoutImplItems] = strings.Join(extra, "\n\n")
	}
}

func (e *rsExtractor) extractMethod(s scanner, it item) decl.Method {
	n := it.node
	src := s.src
	m := decl.Method{
		Name:        nodeText(n.ChildByFieldName("name"), src),
		Comment:     it.comments,
		Annotations: rsAttributes(s, it.prefix),
		Text:        withLineComment(s.itemText(it), it.lineComment),
	}
	for _, p := range namedChildren(n.ChildByFieldName("parameters")) {
		switch p.Kind() {
		case "parameter":
			m.Params = append(m.Params, decl.Param{
				Name: nodeText(p.ChildByFieldName("pattern"), src),
				Type: collapse(nodeText(p.ChildByFieldName("type"), src)),
			})
		case "variadic_parameter":
			m.Params = append(m.Params, decl.Param{Type: "..."})
		}
	}
	return m
}

// rsPrinter prints Rust modules with four-space indentation. Methods are
// printed in a single inherent impl block after their struct.
type rsPrinter struct{}

func (p *rsPrinter) Print(u *decl.Unit) ([]byte, error) {
	var w writer
	if u.Header != "" {
		w.section("", []string{u.Header}, 0, 1)
	}

	imports := make([]string, 0, len(u.Imports))
	for _, imp := range u.Imports {
		line := "use " + imp.Path
		if imp.Qualifier != "" {
			line = imp.Qualifier + " " + line
		}
		if imp.Alias != "" {
			line += " as " + imp.Alias
		}
		imports = append(imports, line+";")
	}
	w.section("", imports, 0, 1)
	w.section("", chunksAfter(u, -1), 1, 1)

	for i := range u.Types {
		t := &u.Types[i]
		w.open("", typeOpening(t, t.Header+" {"))
		w.section(rsIndent, fieldBlocks(t.Fields, rsFieldText), 0, 1)
		w.section(rsIndent, t.Members, 1, 1)
		w.close("", "}")
		w.space(1)

		items := t.Layout[layoutImplItems]
		if len(t.Methods) > 0 || items != "" {
			header := t.Layout[layoutImpl]
			if header == "" {
				header = "impl " + t.Name
			}
			opening := header + " {"
			if c := t.Layout[layoutImplComment]; c != "" {
				opening = c + "\n" + opening
			}
			w.open("", opening)
			if items != "" {
				w.section(rsIndent, []string{items}, 0, 1)
			}
			w.section(rsIndent, methodBlocks(t.Methods), 1, 1)
			w.close("", "}")
			w.space(1)
		}
		w.section("", chunksAfter(u, i), 1, 1)
	}
	return []byte(w.String()), nil
}

func rsFieldText(f decl.Field) string {
	if f.Text != "" {
		return f.Text + ","
	}
	if len(f.Bindings) == 0 {
		return ""
	}
	b := f.Bindings[0]
	text := b.Name + ": " + b.Type + ","
	if f.Modifiers != "" {
		text = f.Modifiers + " " + text
	}
	return synthAnnotated(f.Annotations, text)
}
