package source

import (
	"bytes"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/dusk-indust/regenmerge/internal/decl"
)

// item is one declaration inside a body together with the comments and
// prefix nodes (decorators, attributes) that belong to it.
type item struct {
	node *tree_sitter.Node

	// prefix holds sibling nodes that precede node and belong to it.
	prefix []*tree_sitter.Node

	comments    []string
	lineComment string

	// start is where the declaration text begins: the first prefix node,
	// or node itself. fullStart also covers the leading comments.
	start     uint
	fullStart uint
}

// scanner groups the children of a body into items.
type scanner struct {
	src       []byte
	isComment func(n *tree_sitter.Node) bool
	isPrefix  func(n *tree_sitter.Node) bool
}

// scan walks nodes in order. Comments directly preceding a declaration are
// attached to it; a comment on the same line as the end of the previous
// declaration becomes that declaration's line comment. Comments and prefix
// nodes with no following declaration are returned as dangling text.
func (s scanner) scan(nodes []*tree_sitter.Node) ([]item, []string) {
	var (
		items     []item
		comments  []string
		prefix    []*tree_sitter.Node
		fullStart uint
		pending   bool
	)

	for _, n := range nodes {
		switch {
		case s.isComment != nil && s.isComment(n):
			if !pending && len(items) > 0 {
				last := &items[len(items)-1]
				if last.lineComment == "" && n.StartPosition().Row == last.node.EndPosition().Row {
					last.lineComment = strings.TrimSpace(n.Utf8Text(s.src))
					continue
				}
			}
			if len(prefix) > 0 {
				// Covered by the span of the pending prefix.
				continue
			}
			if !pending {
				fullStart = n.StartByte()
				pending = true
			}
			comments = append(comments, s.text(n.StartByte(), n.EndByte()))

		case s.isPrefix != nil && s.isPrefix(n):
			if !pending {
				fullStart = n.StartByte()
				pending = true
			}
			prefix = append(prefix, n)

		default:
			it := item{
				node:      n,
				prefix:    prefix,
				comments:  comments,
				start:     n.StartByte(),
				fullStart: n.StartByte(),
			}
			if len(prefix) > 0 {
				it.start = prefix[0].StartByte()
			}
			if pending {
				it.fullStart = fullStart
			}
			items = append(items, it)
			comments, prefix, pending = nil, nil, false
		}
	}

	dangling := comments
	for _, p := range prefix {
		dangling = append(dangling, s.text(p.StartByte(), p.EndByte()))
	}
	return items, dangling
}

// text returns src[start:end] with the indentation of its first line
// removed from every line and trailing whitespace trimmed.
func (s scanner) text(start, end uint) string {
	return sliceText(s.src, start, end)
}

// itemText returns the declaration text of it, prefix nodes included.
func (s scanner) itemText(it item) string {
	return s.text(it.start, it.node.EndByte())
}

// fullText returns the text of it including its leading comments.
func (s scanner) fullText(it item) string {
	return s.text(it.fullStart, it.node.EndByte())
}

func sliceText(src []byte, start, end uint) string {
	lineStart := bytes.LastIndexByte(src[:start], '\n') + 1
	indent := string(src[lineStart:start])
	if strings.TrimSpace(indent) != "" {
		indent = leadingSpace(indent)
	}
	return strings.TrimRight(dedent(string(src[start:end]), indent), "\n")
}

func leadingSpace(s string) string {
	return s[:len(s)-len(strings.TrimLeft(s, " \t"))]
}

func dedent(text, indent string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		l = strings.TrimRight(l, " \t\r")
		if i > 0 && indent != "" {
			l = strings.TrimPrefix(l, indent)
		}
		lines[i] = l
	}
	return strings.Join(lines, "\n")
}

// indentText prefixes every non-empty line of text with indent.
func indentText(text, indent string) string {
	if indent == "" {
		return text
	}
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = indent + l
		}
	}
	return strings.Join(lines, "\n")
}

// collapse joins the whitespace-separated words of s with single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// spanWithout returns src[start:end] with the given child spans cut out,
// collapsed to a single line.
func spanWithout(src []byte, start, end uint, cuts []*tree_sitter.Node) string {
	var b strings.Builder
	pos := start
	for _, c := range cuts {
		if c.StartByte() < pos || c.EndByte() > end {
			continue
		}
		b.Write(src[pos:c.StartByte()])
		b.WriteByte(' ')
		pos = c.EndByte()
	}
	b.Write(src[pos:end])
	return collapse(b.String())
}

func namedChildren(n *tree_sitter.Node) []*tree_sitter.Node {
	if n == nil {
		return nil
	}
	count := n.NamedChildCount()
	out := make([]*tree_sitter.Node, 0, count)
	for i := uint(0); i < count; i++ {
		if c := n.NamedChild(i); c != nil {
			out = append(out, c)
		}
	}
	return out
}

func children(n *tree_sitter.Node) []*tree_sitter.Node {
	if n == nil {
		return nil
	}
	count := n.ChildCount()
	out := make([]*tree_sitter.Node, 0, count)
	for i := uint(0); i < count; i++ {
		if c := n.Child(i); c != nil {
			out = append(out, c)
		}
	}
	return out
}

func fieldChildren(n *tree_sitter.Node, field string) []*tree_sitter.Node {
	cursor := n.Walk()
	defer cursor.Close()
	nodes := n.ChildrenByFieldName(field, cursor)
	out := make([]*tree_sitter.Node, len(nodes))
	for i := range nodes {
		out[i] = &nodes[i]
	}
	return out
}

func hasChildKind(n *tree_sitter.Node, kind string) bool {
	for _, c := range children(n) {
		if c.Kind() == kind {
			return true
		}
	}
	return false
}

func firstChildOfKind(n *tree_sitter.Node, kinds ...string) *tree_sitter.Node {
	for _, c := range namedChildren(n) {
		for _, k := range kinds {
			if c.Kind() == k {
				return c
			}
		}
	}
	return nil
}

func nodeText(n *tree_sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	return n.Utf8Text(src)
}

// annotationName returns the identity of an annotation-like text such as
// "@Column(name = \"x\")", "#[serde(rename = \"x\")]" or "@dataclass".
func annotationName(text string) string {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "#![")
	s = strings.TrimPrefix(s, "#[")
	s = strings.TrimPrefix(s, "@")
	s = strings.TrimSuffix(s, "]")
	if i := strings.IndexAny(s, "(=] \t\n"); i >= 0 {
		s = s[:i]
	}
	return s
}

// chunkAfter returns the Chunk.After value for a chunk appended to u now.
func chunkAfter(u *decl.Unit) int {
	return len(u.Types) - 1
}

// addChunk appends an opaque top-level chunk positioned after the most
// recent type.
func addChunk(u *decl.Unit, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	u.Chunks = append(u.Chunks, decl.Chunk{After: chunkAfter(u), Text: text})
}

// chunksAfter returns the chunk texts positioned after type index i.
func chunksAfter(u *decl.Unit, i int) []string {
	var out []string
	for _, c := range u.Chunks {
		if c.After == i || (i == len(u.Types)-1 && c.After > i) {
			out = append(out, c.Text)
		}
	}
	return out
}
