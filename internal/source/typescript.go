package source

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/dusk-indust/regenmerge/internal/decl"
)

const tsIndent = "  "

// tsExtractor maps TypeScript modules. Classes, exported or not, become
// types.
type tsExtractor struct{}

func isTSComment(n *tree_sitter.Node) bool {
	return n.Kind() == "comment"
}

func isTSClass(n *tree_sitter.Node) bool {
	if n == nil {
		return false
	}
	k := n.Kind()
	return k == "class_declaration" || k == "abstract_class_declaration"
}

// tsMemberPrefix matches nodes that belong to the following class member:
// decorators and overload signatures.
func tsMemberPrefix(n *tree_sitter.Node) bool {
	k := n.Kind()
	return k == "decorator" || k == "method_signature"
}

func (e *tsExtractor) Extract(root *tree_sitter.Node, src []byte) (*decl.Unit, error) {
	s := scanner{src: src, isComment: isTSComment}
	items, dangling := s.scan(namedChildren(root))

	u := &decl.Unit{}
	for _, it := range items {
		n := it.node
		switch n.Kind() {
		case "import_statement":
			imports, ok := tsImports(n, src)
			if !ok {
				addChunk(u, withLineComment(s.fullText(it), it.lineComment))
				continue
			}
			if len(u.Imports) == 0 && len(u.Types) == 0 && len(u.Chunks) == 0 && len(it.comments) > 0 {
				u.Header = joinHeader(u.Header, strings.Join(it.comments, "\n"))
			}
			u.Imports = append(u.Imports, imports...)

		case "export_statement":
			if cls := n.ChildByFieldName("declaration"); isTSClass(cls) {
				u.Types = append(u.Types, e.extractClass(s, it, cls))
				continue
			}
			addChunk(u, withLineComment(s.fullText(it), it.lineComment))

		case "class_declaration", "abstract_class_declaration":
			u.Types = append(u.Types, e.extractClass(s, it, n))

		default:
			addChunk(u, withLineComment(s.fullText(it), it.lineComment))
		}
	}
	for _, d := range dangling {
		addChunk(u, d)
	}
	return u, nil
}

func tsImports(n *tree_sitter.Node, src []byte) ([]decl.Import, bool) {
	source := n.ChildByFieldName("source")
	if source == nil {
		return nil, false
	}
	path := unquote(source.Utf8Text(src))

	var qualifier string
	for _, c := range children(n) {
		if !c.IsNamed() && (c.Kind() == "type" || c.Kind() == "typeof") {
			qualifier = c.Kind()
		}
	}

	clause := firstChildOfKind(n, "import_clause")
	if clause == nil {
		return []decl.Import{{Path: path, Qualifier: qualifier}}, true
	}

	var imports []decl.Import
	for _, c := range namedChildren(clause) {
		switch c.Kind() {
		case "identifier":
			imports = append(imports, decl.Import{Path: path, Name: "default", Alias: c.Utf8Text(src), Qualifier: qualifier})
		case "namespace_import":
			imports = append(imports, decl.Import{
				Path:      path,
				Name:      "*",
				Alias:     nodeText(firstChildOfKind(c, "identifier"), src),
				Qualifier: qualifier,
			})
		case "named_imports":
			for _, spec := range namedChildren(c) {
				if spec.Kind() != "import_specifier" {
					continue
				}
				imports = append(imports, decl.Import{
					Path:      path,
					Name:      nodeText(spec.ChildByFieldName("name"), src),
					Alias:     nodeText(spec.ChildByFieldName("alias"), src),
					Qualifier: qualifier,
				})
			}
		}
	}
	return imports, len(imports) > 0
}

func tsDecorators(s scanner, nodes ...*tree_sitter.Node) ([]decl.Annotation, []*tree_sitter.Node) {
	var anns []decl.Annotation
	var decos []*tree_sitter.Node
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if n.Kind() == "decorator" {
			text := s.text(n.StartByte(), n.EndByte())
			anns = append(anns, decl.Annotation{Name: annotationName(text), Text: text})
			decos = append(decos, n)
			continue
		}
		for _, c := range namedChildren(n) {
			if c.Kind() == "decorator" {
				text := s.text(c.StartByte(), c.EndByte())
				anns = append(anns, decl.Annotation{Name: annotationName(text), Text: text})
				decos = append(decos, c)
			}
		}
	}
	return anns, decos
}

func (e *tsExtractor) extractClass(s scanner, it item, cls *tree_sitter.Node) decl.Type {
	src := s.src
	outer := it.node
	t := decl.Type{
		Name:    nodeText(cls.ChildByFieldName("name"), src),
		Comment: it.comments,
	}

	nodes := []*tree_sitter.Node{outer}
	if cls != outer {
		nodes = append(nodes, cls)
	}
	var decos []*tree_sitter.Node
	t.Annotations, decos = tsDecorators(s, nodes...)

	body := cls.ChildByFieldName("body")
	if body == nil {
		t.Header = collapse(nodeText(outer, src))
		return t
	}
	t.Header = spanWithout(src, outer.StartByte(), body.StartByte(), decos)

	members, dangling := (scanner{src: src, isComment: isTSComment, isPrefix: tsMemberPrefix}).scan(namedChildren(body))
	for _, m := range members {
		switch m.node.Kind() {
		case "public_field_definition":
			t.Fields = append(t.Fields, e.extractField(s, m))
		case "method_definition":
			t.Methods = append(t.Methods, e.extractMethod(s, m))
		default:
			text := s.itemText(m)
			if tsNeedsSemicolon(m.node.Kind()) {
				text += ";"
			}
			t.Members = append(t.Members, block(m.comments, text, m.lineComment))
		}
	}
	for _, d := range dangling {
		if !strings.HasPrefix(d, "//") && !strings.HasPrefix(d, "/*") && !strings.HasPrefix(d, "@") && !strings.HasSuffix(d, ";") {
			d += ";"
		}
		t.Members = append(t.Members, d)
	}
	return t
}

func tsNeedsSemicolon(kind string) bool {
	switch kind {
	case "abstract_method_signature", "index_signature", "method_signature":
		return true
	}
	return false
}

func (e *tsExtractor) extractField(s scanner, it item) decl.Field {
	n := it.node
	src := s.src
	f := decl.Field{
		Comment:     it.comments,
		LineComment: it.lineComment,
		Text:        s.itemText(it),
	}
	f.Annotations, _ = tsDecorators(s, append(it.prefix, n)...)

	name := n.ChildByFieldName("name")
	if name == nil {
		return f
	}
	modStart := n.StartByte()
	for _, c := range namedChildren(n) {
		if c.Kind() == "decorator" && c.EndByte() > modStart {
			modStart = c.EndByte()
		}
	}
	if modStart < name.StartByte() {
		f.Modifiers = collapse(string(src[modStart:name.StartByte()]))
	}

	f.Bindings = []decl.Binding{{
		Name:  name.Utf8Text(src),
		Type:  tsTypeAnnotation(n.ChildByFieldName("type"), src),
		Value: collapse(nodeText(n.ChildByFieldName("value"), src)),
	}}
	return f
}

func tsTypeAnnotation(n *tree_sitter.Node, src []byte) string {
	t := strings.TrimSpace(nodeText(n, src))
	return strings.TrimSpace(strings.TrimPrefix(t, ":"))
}

func (e *tsExtractor) extractMethod(s scanner, it item) decl.Method {
	n := it.node
	src := s.src
	m := decl.Method{
		Name:    nodeText(n.ChildByFieldName("name"), src),
		Comment: it.comments,
		Text:    withLineComment(s.itemText(it), it.lineComment),
	}
	m.Annotations, _ = tsDecorators(s, append(it.prefix, n)...)

	for _, p := range namedChildren(n.ChildByFieldName("parameters")) {
		k := p.Kind()
		if k != "required_parameter" && k != "optional_parameter" {
			continue
		}
		pattern := p.ChildByFieldName("pattern")
		name := nodeText(pattern, src)
		if name == "this" {
			continue
		}
		typ := tsTypeAnnotation(p.ChildByFieldName("type"), src)
		if typ == "" {
			typ = "any"
		}
		if pattern != nil && pattern.Kind() == "rest_pattern" {
			typ = "..." + typ
		}
		m.Params = append(m.Params, decl.Param{Name: name, Type: typ})
	}
	return m
}

// tsPrinter prints TypeScript units with two-space indentation. Named
// imports from one module are grouped into a single statement.
type tsPrinter struct{}

func (p *tsPrinter) Print(u *decl.Unit) ([]byte, error) {
	var w writer
	if u.Header != "" {
		w.section("", []string{u.Header}, 0, 1)
	}
	w.section("", tsImportLines(u.Imports), 0, 1)
	w.section("", chunksAfter(u, -1), 1, 1)

	for i := range u.Types {
		t := &u.Types[i]
		w.open("", typeOpening(t, t.Header+" {"))
		w.section(tsIndent, fieldBlocks(t.Fields, tsFieldText), 0, 1)
		w.section(tsIndent, t.Members, 1, 1)
		w.section(tsIndent, methodBlocks(t.Methods), 1, 1)
		w.close("", "}")
		w.space(1)
		w.section("", chunksAfter(u, i), 1, 1)
	}
	return []byte(w.String()), nil
}

func tsFieldText(f decl.Field) string {
	if f.Text != "" {
		return f.Text + ";"
	}
	if len(f.Bindings) == 0 {
		return ""
	}
	b := f.Bindings[0]
	text := b.Name
	if f.Modifiers != "" {
		text = f.Modifiers + " " + text
	}
	if b.Type != "" {
		text += ": " + b.Type
	}
	if b.Value != "" {
		text += " = " + b.Value
	}
	return synthAnnotated(f.Annotations, text+";")
}

type tsImportGroup struct {
	path      string
	qualifier string
	bare      bool
	def       string
	namespace string
	named     []string
}

func tsImportLines(imports []decl.Import) []string {
	var groups []*tsImportGroup
	index := make(map[string]*tsImportGroup)
	for _, imp := range imports {
		key := imp.Qualifier + "\x00" + imp.Path
		g, ok := index[key]
		if !ok {
			g = &tsImportGroup{path: imp.Path, qualifier: imp.Qualifier}
			index[key] = g
			groups = append(groups, g)
		}
		switch imp.Name {
		case "":
			g.bare = true
		case "default":
			if g.def == "" {
				g.def = imp.Alias
			}
		case "*":
			if g.namespace == "" {
				g.namespace = imp.Alias
			}
		default:
			spec := imp.Name
			if imp.Alias != "" {
				spec += " as " + imp.Alias
			}
			g.named = append(g.named, spec)
		}
	}

	var lines []string
	for _, g := range groups {
		keyword := "import "
		if g.qualifier != "" {
			keyword += g.qualifier + " "
		}
		from := " from \"" + g.path + "\";"

		if g.bare {
			lines = append(lines, keyword+"\""+g.path+"\";")
		}
		var head []string
		if g.def != "" {
			head = append(head, g.def)
		}
		if g.namespace != "" {
			head = append(head, "* as "+g.namespace)
		}
		named := ""
		if len(g.named) > 0 {
			named = "{ " + strings.Join(g.named, ", ") + " }"
		}
		switch {
		case g.namespace != "" && named != "":
			lines = append(lines, keyword+strings.Join(head, ", ")+from)
			lines = append(lines, keyword+named+from)
		case named != "":
			lines = append(lines, keyword+strings.Join(append(head, named), ", ")+from)
		case len(head) > 0:
			lines = append(lines, keyword+strings.Join(head, ", ")+from)
		}
	}
	return lines
}
