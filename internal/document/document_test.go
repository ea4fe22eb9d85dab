package document

import "testing"

func TestBlockValidate(t *testing.T) {
	tests := []struct {
		name    string
		block   Block
		wantErr bool
	}{
		{"valid minimal", Block{ID: "b1", Text: "tekst", Page: 1}, false},
		{"page zero", Block{ID: "b1", Text: "tekst", Page: 0}, true},
		{"negative start", Block{ID: "b1", Text: "t", Page: 1, StartChar: IntPtr(-1)}, true},
		{"inverted offsets", Block{ID: "b1", Text: "t", Page: 1, StartChar: IntPtr(10), EndChar: IntPtr(5)}, true},
		{"bbox page mismatch", Block{ID: "b1", Text: "t", Page: 2, BBox: &BBox{Page: 1}}, true},
		{"full valid", Block{
			ID: "b1", Text: "t", Page: 3,
			BBox:      &BBox{Page: 3, X0: 10, Y0: 20, X1: 100, Y1: 40},
			StartChar: IntPtr(0), EndChar: IntPtr(1),
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.block.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestUnitClone_DeepCopy(t *testing.T) {
	u := Unit{
		ID:        "u1",
		Text:      "tekst",
		Page:      2,
		BBox:      &BBox{Page: 2, X0: 1, Y0: 2, X1: 3, Y1: 4},
		StartChar: IntPtr(100),
		EndChar:   IntPtr(105),
	}
	c := u.Clone()

	if c.BBox == u.BBox || c.StartChar == u.StartChar || c.EndChar == u.EndChar {
		t.Error("clone shares pointers with the original")
	}

	c.BBox.X0 = 999
	*c.StartChar = 0
	c.GroupID = "V1"

	if u.BBox.X0 != 1 || *u.StartChar != 100 || u.GroupID != "" {
		t.Error("mutating the clone changed the original")
	}
}

func TestParseLabel(t *testing.T) {
	for _, s := range []string{"irrelevant", "general", "group_header", "group_body", "annex", "pricing_table"} {
		if _, err := ParseLabel(s); err != nil {
			t.Errorf("ParseLabel(%q) unexpected error: %v", s, err)
		}
	}
	for _, s := range []string{"", "header", "GROUP_HEADER", "variant_body"} {
		if _, err := ParseLabel(s); err == nil {
			t.Errorf("ParseLabel(%q) expected error", s)
		}
	}
}

func TestClassificationValidate(t *testing.T) {
	c := Classification{UnitID: "u1", Label: LabelGeneral, Confidence: 0.5}
	if err := c.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	c.Confidence = 1.5
	if err := c.Validate(); err == nil {
		t.Error("expected error for confidence > 1")
	}

	c = Classification{UnitID: "u1", Label: "made_up", Confidence: 0.5}
	if err := c.Validate(); err == nil {
		t.Error("expected error for unknown label")
	}
}

func TestGroupUnitCount(t *testing.T) {
	g := Group{GroupID: "V1"}
	if g.UnitCount() != 0 {
		t.Errorf("empty group count = %d, want 0", g.UnitCount())
	}

	header := Unit{ID: "h1", Text: "WARIANT 1", Page: 1}
	g = Group{
		GroupID: "V1",
		Header:  &header,
		Body:    []Unit{{ID: "b1", Page: 1}, {ID: "b2", Page: 1}},
		Annex:   []Unit{{ID: "a1", Page: 2}},
	}
	if g.UnitCount() != 4 {
		t.Errorf("group count = %d, want 4", g.UnitCount())
	}
}
