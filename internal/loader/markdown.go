package loader

import (
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/siwzmap/siwzmap/internal/document"
)

// MarkdownLoader handles Markdown files using goldmark. Headings become
// section labels for the blocks that follow them.
type MarkdownLoader struct{}

func (l *MarkdownLoader) Load(r io.Reader, filename string) ([]document.Block, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(src))

	var b blockBuilder
	section := ""

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			title := nodeText(node, src)
			if title != "" {
				section = title
				b.add(title, 1, nil, section)
			}
		case *ast.List:
			if t := listText(node, src); t != "" {
				b.add(t, 1, nil, section)
			}
		default:
			if t := nodeText(n, src); t != "" {
				b.add(t, 1, nil, section)
			}
		}
	}

	return b.result(), nil
}

// listText renders a list with its item markers restored, one item per
// line, so downstream bullet detection still sees the list shape.
func listText(list *ast.List, src []byte) string {
	marker := string(list.Marker)
	var items []string
	num := list.Start
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		t := nodeText(item, src)
		if t == "" {
			continue
		}
		if list.IsOrdered() {
			items = append(items, strconv.Itoa(num)+marker+" "+t)
			num++
		} else {
			items = append(items, marker+" "+t)
		}
	}
	return strings.Join(items, "\n")
}

// nodeText gets the text content of a goldmark AST node.
func nodeText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock && n.Lines().Len() > 0 {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
		return strings.TrimSpace(buf.String())
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
			continue
		}
		ct := nodeText(c, src)
		if ct == "" {
			continue
		}
		// Child blocks (list items, nested lists) keep line structure.
		if c.Type() == ast.TypeBlock && buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(ct)
	}
	return strings.TrimSpace(buf.String())
}
