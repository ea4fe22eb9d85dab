package document

import "fmt"

// Label is the category assigned to a unit by the external classifier.
type Label string

const (
	// LabelIrrelevant marks introductory, legal or meta text.
	LabelIrrelevant Label = "irrelevant"
	// LabelGeneral marks general scope descriptions outside any variant.
	LabelGeneral Label = "general"
	// LabelGroupHeader marks headings that open a variant, e.g. "WARIANT 2".
	LabelGroupHeader Label = "group_header"
	// LabelGroupBody marks service lists belonging to a variant.
	LabelGroupBody Label = "group_body"
	// LabelAnnex marks supplementary program sections, e.g. prophylaxis.
	LabelAnnex Label = "annex"
	// LabelPricingTable marks offer forms where variant names are only
	// pricing columns, not content.
	LabelPricingTable Label = "pricing_table"
)

var validLabels = map[Label]bool{
	LabelIrrelevant:   true,
	LabelGeneral:      true,
	LabelGroupHeader:  true,
	LabelGroupBody:    true,
	LabelAnnex:        true,
	LabelPricingTable: true,
}

// ParseLabel validates a raw label string. Unknown values are a contract
// violation, never coerced.
func ParseLabel(s string) (Label, error) {
	l := Label(s)
	if !validLabels[l] {
		return "", fmt.Errorf("unknown label %q", s)
	}
	return l, nil
}

// Valid reports whether the label is one of the six allowed values.
func (l Label) Valid() bool { return validLabels[l] }

// Classification is the externally produced label plus metadata for one
// unit. The pipeline consumes it; the core never produces it.
type Classification struct {
	UnitID     string  `json:"unit_id" yaml:"unit_id"`
	Label      Label   `json:"label" yaml:"label"`
	GroupHint  string  `json:"group_hint,omitempty" yaml:"group_hint,omitempty"`
	AnnexFlag  bool    `json:"annex_flag" yaml:"annex_flag"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
	Rationale  string  `json:"rationale" yaml:"rationale"`
}

// Validate checks the classification against its contract.
func (c *Classification) Validate() error {
	if !c.Label.Valid() {
		return fmt.Errorf("classification %s: unknown label %q", c.UnitID, c.Label)
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return fmt.Errorf("classification %s: confidence %v outside [0,1]", c.UnitID, c.Confidence)
	}
	return nil
}

// Group is an ordered bundle of units sharing one group id, anchored by an
// optional header unit. Annex units are tracked apart from the body because
// downstream processing applies different rules to them.
type Group struct {
	GroupID string `json:"group_id" yaml:"group_id"`
	Header  *Unit  `json:"header_unit,omitempty" yaml:"header_unit,omitempty"`
	Body    []Unit `json:"body_units" yaml:"body_units"`
	Annex   []Unit `json:"annex_units" yaml:"annex_units"`
}

// UnitCount returns the number of units held by the group, header included.
func (g *Group) UnitCount() int {
	n := len(g.Body) + len(g.Annex)
	if g.Header != nil {
		n++
	}
	return n
}
