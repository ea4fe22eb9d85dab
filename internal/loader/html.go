package loader

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/siwzmap/siwzmap/internal/document"
)

// HTMLLoader handles HTML files. Heading tags set the section label for
// the blocks that follow; each content element becomes its own block.
type HTMLLoader struct{}

func (l *HTMLLoader) Load(r io.Reader, filename string) ([]document.Block, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var b blockBuilder
	section := ""

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if level := headingLevel(n.Data); level > 0 {
				title := textContent(n)
				if title != "" {
					section = title
					b.add(title, 1, nil, section)
				}
				return
			}

			// Skip non-content elements.
			switch n.Data {
			case "script", "style", "nav", "footer", "header":
				return
			case "p", "td", "blockquote", "pre":
				if t := textContent(n); t != "" {
					b.add(t, 1, nil, section)
				}
				return
			case "ul", "ol":
				if t := listContent(n); t != "" {
					b.add(t, 1, nil, section)
				}
				return
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	if body := findBody(doc); body != nil {
		walk(body)
	} else {
		walk(doc)
	}

	return b.result(), nil
}

func headingLevel(tag string) int {
	switch tag {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	case "h4":
		return 4
	case "h5":
		return 5
	case "h6":
		return 6
	}
	return 0
}

// listContent renders a list element one item per line with a bullet
// glyph, keeping the list shape visible to downstream splitting.
func listContent(n *html.Node) string {
	var items []string
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "li" {
			if t := textContent(n); t != "" {
				items = append(items, "• "+t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.Join(items, "\n")
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(buf.String())
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
