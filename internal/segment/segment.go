// Package segment splits raw layout blocks into smaller, size-bounded
// units while preserving page, bbox and character-offset provenance.
//
// Each block is normalized first, then split by the first matching
// strategy: bullet list, table rows, blank-line paragraphs, and
// sentence-bounded splitting for oversize paragraphs. Splitting is
// O(block length) and keeps no cross-block state.
package segment

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/siwzmap/siwzmap/internal/document"
	"github.com/siwzmap/siwzmap/internal/normalize"
)

// Config controls segmentation behavior. Soft limits are targets, not
// hard caps: a unit is never cut mid-sentence to satisfy them.
type Config struct {
	SoftMinChars  int // target lower bound per unit
	SoftMaxChars  int // target upper bound per unit
	MinBlockChars int // blocks shorter than this (trimmed) are dropped
	DetectBullets bool
	DetectTables  bool
	Normalize     normalize.Config
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		SoftMinChars:  800,
		SoftMaxChars:  1200,
		MinBlockChars: 1,
		DetectBullets: true,
		DetectTables:  true,
		Normalize:     normalize.DefaultConfig(),
	}
}

func (c Config) withDefaults() Config {
	if c.SoftMinChars <= 0 {
		c.SoftMinChars = 800
	}
	if c.SoftMaxChars <= 0 {
		c.SoftMaxChars = 1200
	}
	if c.MinBlockChars <= 0 {
		c.MinBlockChars = 1
	}
	return c
}

// span is a substring of the normalized block text together with its byte
// offset inside that text. Offsets stay exact so emitted units keep
// monotonic, non-overlapping provenance.
type span struct {
	text string
	off  int
}

// Split segments one block into 1..N units. Blocks whose trimmed text is
// shorter than MinBlockChars produce no units and no error. Malformed
// provenance (page < 1, inverted offsets) is fatal.
func Split(block document.Block, cfg Config) ([]document.Unit, error) {
	cfg = cfg.withDefaults()

	if err := block.Validate(); err != nil {
		return nil, err
	}

	normCfg := cfg.Normalize
	if block.Tabular {
		// Column spacing is structure in tabular blocks, not noise.
		normCfg.CollapseWhitespace = false
	}
	text := normalize.Normalize(block.Text, normCfg)
	if len(strings.TrimSpace(text)) < cfg.MinBlockChars {
		return nil, nil
	}

	// Strategy 1: bullet list.
	if cfg.DetectBullets && normalize.IsBulletPoint(firstNonBlankLine(text)) {
		return emitSpans(block, bulletItems(span{text: text}), "_bullet"), nil
	}

	// Strategy 2: table-like block, one unit per row. Marked blocks skip
	// detection; for the rest it is best-effort and false positives are
	// acceptable.
	if cfg.DetectTables && (block.Tabular || looksTabular(text)) {
		return emitSpans(block, nonBlankLines(text), "_row"), nil
	}

	// Strategy 3: blank-line paragraphs.
	paras := paragraphs(text)

	if len(paras) == 1 {
		p := paras[0]
		if len(p.text) > cfg.SoftMaxChars {
			chunks := sentenceChunks(p, cfg.SoftMaxChars)
			if len(chunks) == 1 {
				// No usable boundary: the block passes through whole.
				return []document.Unit{unitFromBlock(block, chunks[0], "")}, nil
			}
			return emitSpans(block, chunks, "_split"), nil
		}
		// Single short paragraph: pass through with the original id.
		return []document.Unit{unitFromBlock(block, p, "")}, nil
	}

	var units []document.Unit
	for i, p := range paras {
		prefix := fmt.Sprintf("_p%d", i)
		switch {
		case cfg.DetectBullets && normalize.IsBulletPoint(firstNonBlankLine(p.text)):
			units = append(units, emitSpans(block, bulletItems(p), prefix+"_bullet")...)
		case len(p.text) > cfg.SoftMaxChars:
			units = append(units, emitSpans(block, sentenceChunks(p, cfg.SoftMaxChars), prefix+"_split")...)
		default:
			units = append(units, unitFromBlock(block, p, prefix))
		}
	}
	return units, nil
}

// SplitAll segments many blocks, preserving block order. The first
// malformed block aborts the whole call.
func SplitAll(blocks []document.Block, cfg Config) ([]document.Unit, error) {
	var units []document.Unit
	for i := range blocks {
		u, err := Split(blocks[i], cfg)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		units = append(units, u...)
	}
	return units, nil
}

// unitFromBlock creates a unit inheriting page, bbox and section label
// from the parent block. Offsets are recomputed against the parent's
// start offset when the parent carries one.
func unitFromBlock(block document.Block, s span, suffix string) document.Unit {
	u := document.Unit{
		ID:           block.ID + suffix,
		Text:         s.text,
		Page:         block.Page,
		SectionLabel: block.SectionLabel,
	}
	if block.BBox != nil {
		bbox := *block.BBox
		u.BBox = &bbox
	}
	if block.StartChar != nil {
		start := *block.StartChar + s.off
		u.StartChar = document.IntPtr(start)
		u.EndChar = document.IntPtr(start + len(s.text))
	}
	return u
}

func emitSpans(block document.Block, spans []span, prefix string) []document.Unit {
	units := make([]document.Unit, 0, len(spans))
	for i, s := range spans {
		units = append(units, unitFromBlock(block, s, fmt.Sprintf("%s%d", prefix, i)))
	}
	return units
}

// lines splits text into lines with their byte offsets. The trailing
// newline is not part of any line.
func lines(text string) []span {
	var out []span
	off := 0
	for {
		i := strings.IndexByte(text[off:], '\n')
		if i < 0 {
			out = append(out, span{text: text[off:], off: off})
			return out
		}
		out = append(out, span{text: text[off : off+i], off: off})
		off += i + 1
	}
}

func firstNonBlankLine(text string) string {
	for _, l := range lines(text) {
		if strings.TrimSpace(l.text) != "" {
			return l.text
		}
	}
	return ""
}

func nonBlankLines(text string) []span {
	var out []span
	for _, l := range lines(text) {
		if strings.TrimSpace(l.text) != "" {
			out = append(out, l)
		}
	}
	return out
}

// paragraphs groups consecutive non-blank lines. Each paragraph is the
// exact substring spanning its first through last line.
func paragraphs(text string) []span {
	var out []span
	start := -1
	end := 0
	for _, l := range lines(text) {
		if strings.TrimSpace(l.text) == "" {
			if start >= 0 {
				out = append(out, span{text: text[start:end], off: start})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = l.off
		}
		end = l.off + len(l.text)
	}
	if start >= 0 {
		out = append(out, span{text: text[start:end], off: start})
	}
	return out
}

// bulletItems splits a bullet list into one span per item. A new item
// starts at every line matching the bullet predicate; other lines continue
// the current item. Emitted offsets are absolute within the normalized
// block text, like sentenceChunks.
func bulletItems(p span) []span {
	var items []span
	start := -1
	end := 0
	flush := func() {
		if start >= 0 {
			items = append(items, span{text: p.text[start:end], off: p.off + start})
			start = -1
		}
	}
	for _, l := range lines(p.text) {
		if strings.TrimSpace(l.text) == "" {
			continue
		}
		if normalize.IsBulletPoint(l.text) {
			flush()
		}
		if start < 0 {
			start = l.off
		}
		end = l.off + len(l.text)
	}
	flush()
	return items
}

var tableRowRe = regexp.MustCompile(`\t| {3,}`)

// looksTabular reports whether more than half of the non-blank lines carry
// column-style spacing. Requires at least two such lines.
func looksTabular(text string) bool {
	rows := nonBlankLines(text)
	if len(rows) < 2 {
		return false
	}
	hits := 0
	for _, r := range rows {
		if tableRowRe.MatchString(r.text) {
			hits++
		}
	}
	return float64(hits) > float64(len(rows))*0.5
}
