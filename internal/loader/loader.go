// Package loader turns uploaded document files into the flat sequence of
// layout blocks the segmenter consumes. Each format keeps as much
// provenance as it can offer: PDFs carry pages and bounding boxes, the
// rest at least character offsets.
package loader

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/siwzmap/siwzmap/internal/document"
)

// Loader converts raw document bytes into layout blocks.
type Loader interface {
	Load(r io.Reader, filename string) ([]document.Block, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
	".csv":      true,
}

// ForFile returns the appropriate loader for a filename.
func ForFile(filename string) (Loader, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextLoader{}, nil
	case ".md", ".markdown":
		return &MarkdownLoader{}, nil
	case ".html", ".htm":
		return &HTMLLoader{}, nil
	case ".pdf":
		return &PDFLoader{}, nil
	case ".docx":
		return &DOCXLoader{}, nil
	case ".csv":
		return &CSVLoader{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// blockBuilder numbers blocks and tracks the running character offset so
// every emitted block carries document-wide offsets.
type blockBuilder struct {
	blocks []document.Block
	offset int
}

func (b *blockBuilder) add(text string, page int, bbox *document.BBox, sectionLabel string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if page < 1 {
		page = 1
	}
	start := b.offset
	b.blocks = append(b.blocks, document.Block{
		ID:           fmt.Sprintf("blk_%04d", len(b.blocks)),
		Text:         text,
		Page:         page,
		BBox:         bbox,
		StartChar:    document.IntPtr(start),
		EndChar:      document.IntPtr(start + len(text)),
		SectionLabel: sectionLabel,
	})
	b.offset = start + len(text) + 1
}

// markTabular flags the most recently added block as column-structured.
func (b *blockBuilder) markTabular() {
	if n := len(b.blocks); n > 0 {
		b.blocks[n-1].Tabular = true
	}
}

func (b *blockBuilder) result() []document.Block {
	return b.blocks
}
