// Package document holds the data model shared by every stage of the
// pipeline: raw layout blocks, segmentation units, classifications and
// variant groups.
package document

import "fmt"

// BBox is a rectangle in page coordinate space. It has no meaning across
// pages.
type BBox struct {
	Page int     `json:"page" yaml:"page"`
	X0   float64 `json:"x0" yaml:"x0"`
	Y0   float64 `json:"y0" yaml:"y0"`
	X1   float64 `json:"x1" yaml:"x1"`
	Y1   float64 `json:"y1" yaml:"y1"`
}

// Block is a raw layout-level text chunk with position metadata, as
// received from upstream extraction. BBox and char offsets may be absent.
type Block struct {
	ID           string `json:"id" yaml:"id"`
	Text         string `json:"text" yaml:"text"`
	Page         int    `json:"page" yaml:"page"`
	BBox         *BBox  `json:"bbox,omitempty" yaml:"bbox,omitempty"`
	StartChar    *int   `json:"start_char,omitempty" yaml:"start_char,omitempty"`
	EndChar      *int   `json:"end_char,omitempty" yaml:"end_char,omitempty"`
	SectionLabel string `json:"section_label,omitempty" yaml:"section_label,omitempty"`
	// Tabular marks blocks whose inner whitespace is column structure,
	// e.g. tab-joined spreadsheet rows. Normalization must not collapse it.
	Tabular bool `json:"tabular,omitempty" yaml:"tabular,omitempty"`
}

// Validate checks the provenance fields a block must carry before it can
// be segmented.
func (b *Block) Validate() error {
	if b.Page < 1 {
		return fmt.Errorf("block %s: page must be >= 1, got %d", b.ID, b.Page)
	}
	if b.StartChar != nil && *b.StartChar < 0 {
		return fmt.Errorf("block %s: start_char must be >= 0, got %d", b.ID, *b.StartChar)
	}
	if b.EndChar != nil && *b.EndChar < 0 {
		return fmt.Errorf("block %s: end_char must be >= 0, got %d", b.ID, *b.EndChar)
	}
	if b.StartChar != nil && b.EndChar != nil && *b.EndChar < *b.StartChar {
		return fmt.Errorf("block %s: end_char %d before start_char %d", b.ID, *b.EndChar, *b.StartChar)
	}
	if b.BBox != nil && b.BBox.Page != b.Page {
		return fmt.Errorf("block %s: bbox page %d does not match block page %d", b.ID, b.BBox.Page, b.Page)
	}
	return nil
}

// Unit is the atomic addressable text chunk flowing through the pipeline.
// It is created once by the segmenter and never mutated in place: later
// stages clone it and set additional fields on the copy.
type Unit struct {
	ID           string `json:"id" yaml:"id"`
	Text         string `json:"text" yaml:"text"`
	Page         int    `json:"page" yaml:"page"`
	BBox         *BBox  `json:"bbox,omitempty" yaml:"bbox,omitempty"`
	StartChar    *int   `json:"start_char,omitempty" yaml:"start_char,omitempty"`
	EndChar      *int   `json:"end_char,omitempty" yaml:"end_char,omitempty"`
	SectionLabel string `json:"section_label,omitempty" yaml:"section_label,omitempty"`
	GroupID      string `json:"group_id,omitempty" yaml:"group_id,omitempty"`
}

// Clone returns a deep copy of the unit. Pointer fields are re-allocated
// so the copy shares no memory with the original.
func (u Unit) Clone() Unit {
	c := u
	if u.BBox != nil {
		bbox := *u.BBox
		c.BBox = &bbox
	}
	if u.StartChar != nil {
		v := *u.StartChar
		c.StartChar = &v
	}
	if u.EndChar != nil {
		v := *u.EndChar
		c.EndChar = &v
	}
	return c
}

// IntPtr is a small helper for building optional offsets.
func IntPtr(v int) *int { return &v }
