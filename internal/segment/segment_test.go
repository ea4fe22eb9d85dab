package segment

import (
	"strings"
	"testing"

	"github.com/siwzmap/siwzmap/internal/document"
)

func block(id, text string) document.Block {
	return document.Block{ID: id, Text: text, Page: 1}
}

func mustSplit(t *testing.T, b document.Block, cfg Config) []document.Unit {
	t.Helper()
	units, err := Split(b, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return units
}

func TestSplit_ShortBlockPassesThrough(t *testing.T) {
	b := block("blk_1", "Krótki opis zakresu usług medycznych.")
	units := mustSplit(t, b, DefaultConfig())

	if len(units) != 1 {
		t.Fatalf("expected 1 unit, got %d", len(units))
	}
	if units[0].ID != "blk_1" {
		t.Errorf("expected passthrough id blk_1, got %q", units[0].ID)
	}
	if units[0].Text != "Krótki opis zakresu usług medycznych." {
		t.Errorf("unexpected text %q", units[0].Text)
	}
}

func TestSplit_BlankLineParagraphs(t *testing.T) {
	b := block("blk_1", "Pierwszy akapit.\n\nDrugi akapit.\n\nTrzeci akapit.")
	units := mustSplit(t, b, DefaultConfig())

	if len(units) != 3 {
		t.Fatalf("expected 3 units, got %d", len(units))
	}
	wantIDs := []string{"blk_1_p0", "blk_1_p1", "blk_1_p2"}
	wantTexts := []string{"Pierwszy akapit.", "Drugi akapit.", "Trzeci akapit."}
	for i, u := range units {
		if u.ID != wantIDs[i] {
			t.Errorf("unit %d: expected id %q, got %q", i, wantIDs[i], u.ID)
		}
		if u.Text != wantTexts[i] {
			t.Errorf("unit %d: expected text %q, got %q", i, wantTexts[i], u.Text)
		}
	}
}

func TestSplit_BulletList(t *testing.T) {
	b := block("blk_1", "• Konsultacja kardiologiczna\n• USG serca\nz kontrastem\n• Morfologia krwi")
	units := mustSplit(t, b, DefaultConfig())

	if len(units) != 3 {
		t.Fatalf("expected 3 units, got %d", len(units))
	}
	if units[0].ID != "blk_1_bullet0" {
		t.Errorf("expected id blk_1_bullet0, got %q", units[0].ID)
	}
	// Continuation line stays with its bullet.
	if units[1].Text != "• USG serca\nz kontrastem" {
		t.Errorf("expected continuation merged, got %q", units[1].Text)
	}
}

func TestSplit_NumberedList(t *testing.T) {
	b := block("blk_1", "1. Pierwsza usługa\n2. Druga usługa\n3. Trzecia usługa")
	units := mustSplit(t, b, DefaultConfig())

	if len(units) != 3 {
		t.Fatalf("expected 3 units, got %d", len(units))
	}
	for i, u := range units {
		if !strings.Contains(u.ID, "_bullet") {
			t.Errorf("unit %d: expected bullet suffix in %q", i, u.ID)
		}
	}
}

func TestSplit_HeaderParagraphThenBullets(t *testing.T) {
	b := block("blk_1", "WARIANT 1\n\n• Usługa A\n• Usługa B")
	units := mustSplit(t, b, DefaultConfig())

	if len(units) != 3 {
		t.Fatalf("expected 3 units, got %d", len(units))
	}
	if units[0].Text != "WARIANT 1" {
		t.Errorf("expected header paragraph first, got %q", units[0].Text)
	}
	if units[1].Text != "• Usługa A" || units[2].Text != "• Usługa B" {
		t.Errorf("expected bullet units, got %q and %q", units[1].Text, units[2].Text)
	}
	for _, u := range units {
		if u.Page != 1 {
			t.Errorf("unit %s: expected inherited page 1, got %d", u.ID, u.Page)
		}
	}
}

func TestSplit_TableRows(t *testing.T) {
	// Whitespace collapsing would fold the column gaps, so table
	// detection is exercised with collapsing off.
	cfg := DefaultConfig()
	cfg.Normalize.CollapseWhitespace = false

	b := block("blk_1", "Usługa\tCena\nKonsultacja\t120 zł\nUSG\t200 zł")
	units := mustSplit(t, b, cfg)

	if len(units) != 3 {
		t.Fatalf("expected 3 row units, got %d", len(units))
	}
	for i, u := range units {
		if !strings.Contains(u.ID, "_row") {
			t.Errorf("row %d: expected row suffix in %q", i, u.ID)
		}
	}
}

func TestSplit_TabularBlockKeepsColumnsUnderDefaults(t *testing.T) {
	// Default normalization collapses tabs, so row splitting for marked
	// blocks must survive it.
	b := document.Block{
		ID:      "blk_1",
		Text:    "Usługa\tWariant 1\tWariant 2\nKonsultacja\t50 zł\t40 zł\nBadanie\t30 zł\t25 zł",
		Page:    1,
		Tabular: true,
	}
	units := mustSplit(t, b, DefaultConfig())

	if len(units) != 3 {
		t.Fatalf("expected 3 row units, got %d", len(units))
	}
	if units[1].ID != "blk_1_row1" {
		t.Errorf("expected id blk_1_row1, got %q", units[1].ID)
	}
	if units[1].Text != "Konsultacja\t50 zł\t40 zł" {
		t.Errorf("expected tabs preserved, got %q", units[1].Text)
	}
}

func TestSplit_TableDetectionDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Normalize.CollapseWhitespace = false
	cfg.DetectTables = false

	b := block("blk_1", "Usługa\tCena\nKonsultacja\t120 zł\nUSG\t200 zł")
	units := mustSplit(t, b, cfg)

	if len(units) != 1 {
		t.Fatalf("expected single unit with tables off, got %d", len(units))
	}
}

func TestSplit_LongParagraphSentenceBounded(t *testing.T) {
	sentence := "To jest zdanie opisujące zakres świadczeń medycznych w pakiecie. "
	b := block("blk_1", strings.Repeat(sentence, 40))

	cfg := DefaultConfig()
	cfg.SoftMinChars = 200
	cfg.SoftMaxChars = 300
	units := mustSplit(t, b, cfg)

	if len(units) < 2 {
		t.Fatalf("expected multiple units for long paragraph, got %d", len(units))
	}
	for i, u := range units {
		if !strings.Contains(u.ID, "_split") {
			t.Errorf("unit %d: expected split suffix in %q", i, u.ID)
		}
		// Never cut mid-sentence: every chunk ends at a boundary.
		if !strings.HasSuffix(u.Text, ".") {
			t.Errorf("unit %d ends mid-sentence: %q", i, u.Text)
		}
	}
}

func TestSplit_NoSentenceBoundariesEmitsWhole(t *testing.T) {
	b := block("blk_1", strings.Repeat("wyraz ", 500)) // ~3000 chars, no punctuation
	units := mustSplit(t, b, DefaultConfig())

	if len(units) != 1 {
		t.Fatalf("expected exactly 1 unit, got %d", len(units))
	}
	if units[0].ID != "blk_1" {
		t.Errorf("expected passthrough id, got %q", units[0].ID)
	}
}

func TestSplit_SingleOversizeSentenceEmittedWhole(t *testing.T) {
	long := strings.Repeat("bardzo długa wyliczanka świadczeń ", 40) + "koniec. "
	b := block("blk_1", long+"Krótkie zdanie na deser.")

	cfg := DefaultConfig()
	cfg.SoftMaxChars = 200
	units := mustSplit(t, b, cfg)

	if len(units) != 2 {
		t.Fatalf("expected 2 units, got %d", len(units))
	}
	if len(units[0].Text) <= cfg.SoftMaxChars {
		t.Errorf("expected oversize sentence kept whole, got %d chars", len(units[0].Text))
	}
}

func TestSplit_ProvenanceInheritance(t *testing.T) {
	bbox := &document.BBox{Page: 3, X0: 50, Y0: 200, X1: 400, Y1: 260}
	b := document.Block{
		ID:        "blk_7",
		Text:      "Akapit pierwszy.\n\nAkapit drugi.",
		Page:      3,
		BBox:      bbox,
		StartChar: document.IntPtr(1000),
	}
	units := mustSplit(t, b, DefaultConfig())

	if len(units) != 2 {
		t.Fatalf("expected 2 units, got %d", len(units))
	}
	for _, u := range units {
		if u.Page != 3 {
			t.Errorf("unit %s: page %d, want 3", u.ID, u.Page)
		}
		if u.BBox == nil || *u.BBox != *bbox {
			t.Errorf("unit %s: bbox not inherited", u.ID)
		}
		if u.BBox == bbox {
			t.Errorf("unit %s: bbox aliases the parent's", u.ID)
		}
	}

	if *units[0].StartChar != 1000 {
		t.Errorf("first unit start_char = %d, want 1000", *units[0].StartChar)
	}
	if *units[0].EndChar != 1000+len("Akapit pierwszy.") {
		t.Errorf("first unit end_char = %d", *units[0].EndChar)
	}
	if *units[1].StartChar < *units[0].EndChar {
		t.Errorf("sibling offsets overlap: %d < %d", *units[1].StartChar, *units[0].EndChar)
	}
}

func TestSplit_OffsetsAbsentStayAbsent(t *testing.T) {
	b := block("blk_1", "Akapit pierwszy.\n\nAkapit drugi.")
	units := mustSplit(t, b, DefaultConfig())

	for _, u := range units {
		if u.StartChar != nil || u.EndChar != nil {
			t.Errorf("unit %s: expected nil offsets when parent has none", u.ID)
		}
		if u.BBox != nil {
			t.Errorf("unit %s: expected nil bbox when parent has none", u.ID)
		}
	}
}

func TestSplit_OffsetMonotonicity(t *testing.T) {
	text := "WARIANT 1\n\n• Usługa A\n• Usługa B\n• Usługa C\n\n" +
		"Dłuższy akapit opisowy. Zawiera kilka zdań. Na końcu jeszcze jedno."
	base := 10
	b := document.Block{ID: "blk_1", Text: text, Page: 1, StartChar: document.IntPtr(base)}
	units := mustSplit(t, b, DefaultConfig())

	if len(units) < 5 {
		t.Fatalf("expected header, bullets and tail units, got %d", len(units))
	}
	for i := 1; i < len(units); i++ {
		prev, cur := units[i-1], units[i]
		if prev.EndChar != nil && cur.StartChar != nil && *prev.EndChar > *cur.StartChar {
			t.Errorf("offsets not monotonic: unit %s ends at %d, unit %s starts at %d",
				prev.ID, *prev.EndChar, cur.ID, *cur.StartChar)
		}
	}
	// Offsets must slice the unit's own text out of the block, so bullet
	// units inside a later paragraph carry block-absolute positions.
	for _, u := range units {
		if u.StartChar == nil || u.EndChar == nil {
			t.Fatalf("unit %s: missing offsets", u.ID)
		}
		if got := text[*u.StartChar-base : *u.EndChar-base]; got != u.Text {
			t.Errorf("unit %s: offsets [%d,%d) recover %q, want %q",
				u.ID, *u.StartChar, *u.EndChar, got, u.Text)
		}
	}
}

func TestSplit_NoInformationLoss(t *testing.T) {
	text := "Akapit pierwszy o usługach.\n\n• pozycja jeden\n• pozycja dwa\n\nAkapit końcowy."
	b := block("blk_1", text)
	units := mustSplit(t, b, DefaultConfig())

	var joined []string
	for _, u := range units {
		joined = append(joined, u.Text)
	}
	got := strings.Join(joined, "\n\n")
	// Bullets re-joined with a paragraph separator differ only in blank
	// lines, never in content.
	want := "Akapit pierwszy o usługach.\n\n• pozycja jeden\n\n• pozycja dwa\n\nAkapit końcowy."
	if got != want {
		t.Errorf("content lost in splitting:\n got %q\nwant %q", got, want)
	}
}

func TestSplit_EmptyAndWhitespaceBlocksDropped(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\n\t\n"} {
		units := mustSplit(t, block("blk_1", text), DefaultConfig())
		if len(units) != 0 {
			t.Errorf("expected no units for %q, got %d", text, len(units))
		}
	}
}

func TestSplit_MinBlockCharsDropsShortBlocks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinBlockChars = 10

	units := mustSplit(t, block("blk_1", "krótko"), cfg)
	if len(units) != 0 {
		t.Errorf("expected short block dropped, got %d units", len(units))
	}
}

func TestSplit_InvalidPageFails(t *testing.T) {
	b := document.Block{ID: "blk_1", Text: "tekst", Page: 0}
	if _, err := Split(b, DefaultConfig()); err == nil {
		t.Fatal("expected error for page < 1")
	}
}

func TestSplit_InvertedOffsetsFail(t *testing.T) {
	b := document.Block{
		ID:        "blk_1",
		Text:      "tekst",
		Page:      1,
		StartChar: document.IntPtr(100),
		EndChar:   document.IntPtr(50),
	}
	if _, err := Split(b, DefaultConfig()); err == nil {
		t.Fatal("expected error for end_char < start_char")
	}
}

func TestSplitAll_PreservesBlockOrderAndHandlesEmpty(t *testing.T) {
	units, err := SplitAll(nil, DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(units) != 0 {
		t.Errorf("expected 0 units for 0 blocks, got %d", len(units))
	}

	blocks := []document.Block{
		block("blk_1", "Pierwszy blok."),
		block("blk_2", ""),
		block("blk_3", "Trzeci blok."),
	}
	units, err = SplitAll(blocks, DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(units) != 2 {
		t.Fatalf("expected 2 units, got %d", len(units))
	}
	if units[0].ID != "blk_1" || units[1].ID != "blk_3" {
		t.Errorf("block order not preserved: %q, %q", units[0].ID, units[1].ID)
	}
}

func TestSplit_NormalizationAppliedBeforeSplitting(t *testing.T) {
	b := block("blk_1", "usłu-\ngi   medyczne\u200B w pakiecie")
	units := mustSplit(t, b, DefaultConfig())

	if len(units) != 1 {
		t.Fatalf("expected 1 unit, got %d", len(units))
	}
	if units[0].Text != "usługi medyczne w pakiecie" {
		t.Errorf("expected normalized text, got %q", units[0].Text)
	}
}
