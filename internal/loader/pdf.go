package loader

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/siwzmap/siwzmap/internal/document"
)

// PDFLoader extracts page-aware text blocks with bounding boxes. Text
// runs are grouped into lines by vertical position and lines into blocks
// by vertical gaps, which approximates the visual layout well enough for
// segmentation.
type PDFLoader struct {
	// YGapThreshold is the vertical gap (in PDF units) that starts a new
	// block. Zero means the default of 8.
	YGapThreshold float64
}

// lineTolerance is the max Y distance for two runs to share a line.
const lineTolerance = 2.0

func (l *PDFLoader) Load(r io.Reader, filename string) ([]document.Block, error) {
	// ledongthuc/pdf needs a ReadSeeker+size, so write to a temp file.
	tmp, err := os.CreateTemp("", "siwzmap-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	f, reader, err := pdflib.Open(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	gap := l.YGapThreshold
	if gap <= 0 {
		gap = 8.0
	}

	var b blockBuilder
	numPages := reader.NumPage()
	for pageNum := 1; pageNum <= numPages; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		for _, blk := range pageBlocks(page.Content().Text, pageNum, gap) {
			b.add(blk.text, pageNum, &blk.bbox, "")
		}
	}

	return b.result(), nil
}

type pdfLine struct {
	y     float64
	texts []pdflib.Text
}

type pdfBlock struct {
	text string
	bbox document.BBox
}

// pageBlocks groups raw text runs into reading-order blocks.
func pageBlocks(texts []pdflib.Text, pageNum int, yGap float64) []pdfBlock {
	if len(texts) == 0 {
		return nil
	}

	// Group runs into lines by Y, then sort lines top-down and runs
	// left-to-right. PDF Y grows upward.
	var lns []*pdfLine
	for _, t := range texts {
		if t.S == "" {
			continue
		}
		var line *pdfLine
		for _, l := range lns {
			if math.Abs(l.y-t.Y) <= lineTolerance {
				line = l
				break
			}
		}
		if line == nil {
			line = &pdfLine{y: t.Y}
			lns = append(lns, line)
		}
		line.texts = append(line.texts, t)
	}
	sort.Slice(lns, func(i, j int) bool { return lns[i].y > lns[j].y })
	for _, l := range lns {
		sort.Slice(l.texts, func(i, j int) bool { return l.texts[i].X < l.texts[j].X })
	}

	var blocks []pdfBlock
	var cur []*pdfLine
	flush := func() {
		if len(cur) == 0 {
			return
		}
		var sb strings.Builder
		bbox := document.BBox{Page: pageNum, X0: math.MaxFloat64, Y0: math.MaxFloat64}
		for i, l := range cur {
			if i > 0 {
				sb.WriteByte('\n')
			}
			prevEnd := 0.0
			for j, t := range l.texts {
				// Re-insert a space when runs are visibly apart.
				if j > 0 && t.X-prevEnd > 1.0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(t.S)
				prevEnd = t.X + t.W
				bbox.X0 = math.Min(bbox.X0, t.X)
				bbox.X1 = math.Max(bbox.X1, t.X+t.W)
				bbox.Y0 = math.Min(bbox.Y0, t.Y)
				bbox.Y1 = math.Max(bbox.Y1, t.Y+t.FontSize)
			}
		}
		blocks = append(blocks, pdfBlock{text: sb.String(), bbox: bbox})
		cur = nil
	}

	for i, l := range lns {
		if i > 0 && lns[i-1].y-l.y > yGap {
			flush()
		}
		cur = append(cur, l)
	}
	flush()

	return blocks
}
