package source

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/dusk-indust/regenmerge/internal/decl"
)

const pyIndent = "    "

// pyExtractor maps Python modules. Top-level classes become types; class
// attributes assigned to a plain name become fields.
type pyExtractor struct{}

func isPyComment(n *tree_sitter.Node) bool {
	return n.Kind() == "comment"
}

func (e *pyExtractor) Extract(root *tree_sitter.Node, src []byte) (*decl.Unit, error) {
	s := scanner{src: src, isComment: isPyComment}
	items, dangling := s.scan(namedChildren(root))

	u := &decl.Unit{}
	for i, it := range items {
		n := it.node
		switch n.Kind() {
		case "expression_statement":
			if i == 0 && isPyDocstring(n) {
				u.Header = joinHeader(u.Header, s.fullText(it))
				continue
			}
			addChunk(u, withLineComment(s.fullText(it), it.lineComment))

		case "import_statement", "import_from_statement", "future_import_statement":
			imports := pyImports(n, src)
			if len(imports) == 0 {
				addChunk(u, withLineComment(s.fullText(it), it.lineComment))
				continue
			}
			if len(u.Imports) == 0 && len(u.Types) == 0 && len(u.Chunks) == 0 && len(it.comments) > 0 {
				u.Header = joinHeader(u.Header, strings.Join(it.comments, "\n"))
			}
			u.Imports = append(u.Imports, imports...)

		case "class_definition":
			u.Types = append(u.Types, e.extractClass(s, it, n, nil))

		case "decorated_definition":
			def := n.ChildByFieldName("definition")
			if def != nil && def.Kind() == "class_definition" {
				u.Types = append(u.Types, e.extractClass(s, it, def, pyDecorators(s, n)))
				continue
			}
			addChunk(u, withLineComment(s.fullText(it), it.lineComment))

		default:
			addChunk(u, withLineComment(s.fullText(it), it.lineComment))
		}
	}
	for _, d := range dangling {
		addChunk(u, d)
	}
	return u, nil
}

func isPyDocstring(n *tree_sitter.Node) bool {
	first := n.NamedChild(0)
	return n.NamedChildCount() == 1 && first != nil && first.Kind() == "string"
}

func pyImports(n *tree_sitter.Node, src []byte) []decl.Import {
	var imports []decl.Import
	switch n.Kind() {
	case "import_statement":
		for _, name := range fieldChildren(n, "name") {
			path, alias := pyImportName(name, src)
			imports = append(imports, decl.Import{Path: path, Alias: alias})
		}

	case "import_from_statement":
		module := collapse(nodeText(n.ChildByFieldName("module_name"), src))
		if firstChildOfKind(n, "wildcard_import") != nil {
			imports = append(imports, decl.Import{Path: module, Name: "*"})
		}
		for _, name := range fieldChildren(n, "name") {
			member, alias := pyImportName(name, src)
			imports = append(imports, decl.Import{Path: module, Name: member, Alias: alias})
		}

	case "future_import_statement":
		for _, name := range fieldChildren(n, "name") {
			member, alias := pyImportName(name, src)
			imports = append(imports, decl.Import{Path: "__future__", Name: member, Alias: alias})
		}
	}
	return imports
}

func pyImportName(n *tree_sitter.Node, src []byte) (string, string) {
	if n.Kind() == "aliased_import" {
		return collapse(nodeText(n.ChildByFieldName("name"), src)), nodeText(n.ChildByFieldName("alias"), src)
	}
	return collapse(n.Utf8Text(src)), ""
}

func pyDecorators(s scanner, n *tree_sitter.Node) []decl.Annotation {
	var anns []decl.Annotation
	for _, c := range namedChildren(n) {
		if c.Kind() != "decorator" {
			continue
		}
		text := s.text(c.StartByte(), c.EndByte())
		anns = append(anns, decl.Annotation{Name: annotationName(text), Text: text})
	}
	return anns
}

func (e *pyExtractor) extractClass(s scanner, it item, cls *tree_sitter.Node, decorators []decl.Annotation) decl.Type {
	src := s.src
	t := decl.Type{
		Name:        nodeText(cls.ChildByFieldName("name"), src),
		Comment:     it.comments,
		Annotations: decorators,
	}

	body := cls.ChildByFieldName("body")
	headerEnd := cls.EndByte()
	var nodes []*tree_sitter.Node
	for _, c := range children(cls) {
		if c.Kind() == ":" && headerEnd == cls.EndByte() {
			headerEnd = c.StartByte()
			continue
		}
		// Comments between the colon and the first statement may hang off
		// the class node instead of its block.
		if isPyComment(c) && c.StartByte() > headerEnd {
			nodes = append(nodes, c)
		}
	}
	t.Header = collapse(string(src[cls.StartByte():headerEnd]))
	if body == nil {
		return t
	}
	nodes = append(nodes, namedChildren(body)...)

	members, dangling := s.scan(nodes)
	for i, m := range members {
		n := m.node
		switch n.Kind() {
		case "expression_statement":
			if i == 0 && isPyDocstring(n) {
				if t.Layout == nil {
					t.Layout = make(map[string]string)
				}
				t.Layout["doc"] = block(m.comments, s.itemText(m), m.lineComment)
				continue
			}
			if f, ok := e.extractField(s, m); ok {
				t.Fields = append(t.Fields, f)
				continue
			}
			t.Members = append(t.Members, block(m.comments, s.itemText(m), m.lineComment))

		case "function_definition":
			t.Methods = append(t.Methods, e.extractMethod(s, m, n, nil))

		case "decorated_definition":
			def := n.ChildByFieldName("definition")
			if def != nil && def.Kind() == "function_definition" {
				t.Methods = append(t.Methods, e.extractMethod(s, m, def, pyDecorators(s, n)))
				continue
			}
			t.Members = append(t.Members, block(m.comments, s.itemText(m), m.lineComment))

		case "pass_statement":
			t.Members = append(t.Members, m.comments...)

		default:
			t.Members = append(t.Members, block(m.comments, s.itemText(m), m.lineComment))
		}
	}
	t.Members = append(t.Members, dangling...)
	return t
}

func (e *pyExtractor) extractField(s scanner, it item) (decl.Field, bool) {
	src := s.src
	assign := it.node.NamedChild(0)
	if it.node.NamedChildCount() != 1 || assign == nil || assign.Kind() != "assignment" {
		return decl.Field{}, false
	}
	left := assign.ChildByFieldName("left")
	right := assign.ChildByFieldName("right")
	if left == nil || left.Kind() != "identifier" {
		return decl.Field{}, false
	}
	if right != nil && right.Kind() == "assignment" {
		return decl.Field{}, false
	}
	return decl.Field{
		Bindings: []decl.Binding{{
			Name:  left.Utf8Text(src),
			Type:  collapse(nodeText(assign.ChildByFieldName("type"), src)),
			Value: collapse(nodeText(right, src)),
		}},
		Comment:     it.comments,
		LineComment: it.lineComment,
		Text:        s.itemText(it),
	}, true
}

func (e *pyExtractor) extractMethod(s scanner, it item, fn *tree_sitter.Node, decorators []decl.Annotation) decl.Method {
	src := s.src
	m := decl.Method{
		Name:        nodeText(fn.ChildByFieldName("name"), src),
		Comment:     it.comments,
		Annotations: decorators,
		Text:        withLineComment(s.itemText(it), it.lineComment),
	}

	for i, p := range namedChildren(fn.ChildByFieldName("parameters")) {
		var param decl.Param
		switch p.Kind() {
		case "identifier":
			param = decl.Param{Name: p.Utf8Text(src), Type: "any"}
		case "typed_parameter":
			inner := p.NamedChild(0)
			param = decl.Param{Name: nodeText(inner, src), Type: collapse(nodeText(p.ChildByFieldName("type"), src))}
			if inner != nil {
				switch inner.Kind() {
				case "list_splat_pattern":
					param.Type = "*" + param.Type
				case "dictionary_splat_pattern":
					param.Type = "**" + param.Type
				}
			}
		case "default_parameter":
			param = decl.Param{Name: nodeText(p.ChildByFieldName("name"), src), Type: "any"}
		case "typed_default_parameter":
			param = decl.Param{
				Name: nodeText(p.ChildByFieldName("name"), src),
				Type: collapse(nodeText(p.ChildByFieldName("type"), src)),
			}
		case "list_splat_pattern":
			param = decl.Param{Name: p.Utf8Text(src), Type: "*any"}
		case "dictionary_splat_pattern":
			param = decl.Param{Name: p.Utf8Text(src), Type: "**any"}
		default:
			continue
		}
		if i == 0 && (param.Name == "self" || param.Name == "cls") {
			continue
		}
		m.Params = append(m.Params, param)
	}
	return m
}

// pyPrinter prints Python modules with four-space indentation and two
// blank lines between top-level definitions.
type pyPrinter struct{}

func (p *pyPrinter) Print(u *decl.Unit) ([]byte, error) {
	var w writer
	if u.Header != "" {
		w.section("", []string{u.Header}, 0, 1)
	}
	w.section("", pyImportLines(u.Imports), 0, 2)
	w.section("", chunksAfter(u, -1), 2, 2)

	for i := range u.Types {
		t := &u.Types[i]
		w.open("", typeOpening(t, t.Header+":"))

		doc := t.Layout["doc"]
		empty := doc == "" && len(t.Fields) == 0 && len(t.Methods) == 0
		for _, m := range t.Members {
			if !strings.HasPrefix(m, "#") {
				empty = false
			}
		}
		if doc != "" {
			w.section(pyIndent, []string{doc}, 0, 1)
		}
		w.section(pyIndent, fieldBlocks(t.Fields, pyFieldText), 0, 1)
		w.section(pyIndent, t.Members, 1, 1)
		w.section(pyIndent, methodBlocks(t.Methods), 1, 1)
		if empty {
			w.line(pyIndent, "pass")
		}
		w.space(2)
		w.section("", chunksAfter(u, i), 2, 2)
	}
	return []byte(w.String()), nil
}

func pyFieldText(f decl.Field) string {
	if f.Text != "" {
		return f.Text
	}
	if len(f.Bindings) == 0 {
		return ""
	}
	b := f.Bindings[0]
	text := b.Name
	if b.Type != "" {
		text += ": " + b.Type
	}
	if b.Value != "" {
		text += " = " + b.Value
	}
	return text
}

// pyImportLines prints __future__ imports first, then plain imports and
// grouped from-imports in order of first appearance.
func pyImportLines(imports []decl.Import) []string {
	type group struct {
		path  string
		names []string
	}
	var future []string
	var order []*group
	index := make(map[string]*group)
	var lines []string

	for _, imp := range imports {
		if imp.Name == "" {
			line := "import " + imp.Path
			if imp.Alias != "" {
				line += " as " + imp.Alias
			}
			order = append(order, &group{path: line})
			continue
		}
		name := imp.Name
		if imp.Alias != "" {
			name += " as " + imp.Alias
		}
		if imp.Path == "__future__" {
			future = append(future, name)
			continue
		}
		g, ok := index[imp.Path]
		if !ok {
			g = &group{path: imp.Path}
			index[imp.Path] = g
			order = append(order, g)
		}
		g.names = append(g.names, name)
	}

	if len(future) > 0 {
		lines = append(lines, "from __future__ import "+strings.Join(future, ", "))
	}
	for _, g := range order {
		if g.names == nil {
			lines = append(lines, g.path)
			continue
		}
		lines = append(lines, "from "+g.path+" import "+strings.Join(g.names, ", "))
	}
	return lines
}
