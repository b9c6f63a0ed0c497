package extract

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// extractMarkdown walks the goldmark AST top-level blocks; every heading
// starts a new section and non-heading blocks accumulate into the current
// one.
func extractMarkdown(data []byte) (*Result, error) {
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(data))

	var b sectionBuilder
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok {
			b.heading(string(h.Text(data)))
			continue
		}
		b.text(markdownText(n, data))
	}
	return b.result(), nil
}

// markdownText gets the text content of a goldmark AST node. Leaf blocks
// carry their raw source lines; container blocks join their children.
func markdownText(n ast.Node, src []byte) string {
	if n.Type() == ast.TypeBlock && n.Lines().Len() > 0 {
		var buf bytes.Buffer
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(src))
		}
		return strings.TrimSpace(buf.String())
	}

	var parts []string
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t := markdownText(c, src); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}
