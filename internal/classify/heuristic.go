package classify

import (
	"context"
	"regexp"
	"strings"

	"github.com/siwzmap/siwzmap/internal/document"
)

// Substrings that suggest a heading opens a variant or package rather than
// naming a single service.
var headerKeywords = []string{
	"wariant",
	"pakiet",
	"zestaw",
	"plan",
	"program",
	"grupa",
	"opcja",
	"standard",
	"rozszerzon",
	"max",
	"maks",
	"plus",
	"rodzina",
	"dzieci",
}

var (
	// "WARIANT 2", "Pakiet nr 3", "Opcja II".
	groupHintRe = regexp.MustCompile(`(?i)\b(?:wariant|pakiet|opcja)\s+(?:nr\s*)?(\d+|[IVX]+)\b`)
	// "11. Konsultacja internisty" reads as a numbered service item.
	numberedItemRe = regexp.MustCompile(`^\s*\d{1,3}\.\s`)
	romanToArabic  = map[string]string{
		"I": "1", "II": "2", "III": "3", "IV": "4", "V": "5",
		"VI": "6", "VII": "7", "VIII": "8", "IX": "9", "X": "10",
	}
)

// HeuristicClassifier labels units with keyword rules alone. It needs no
// API key and serves as the offline fallback for the LLM classifier. The
// rules mirror the header heuristics the aggregator applies to decide
// whether a candidate heading really opens a variant.
type HeuristicClassifier struct{}

func (h *HeuristicClassifier) Classify(ctx context.Context, units []document.Unit) ([]document.Classification, error) {
	out := make([]document.Classification, 0, len(units))
	sawHeader := false
	for _, u := range units {
		c := h.classifyOne(u, sawHeader)
		if c.Label == document.LabelGroupHeader {
			sawHeader = true
		}
		out = append(out, c)
	}
	return out, nil
}

func (h *HeuristicClassifier) classifyOne(u document.Unit, sawHeader bool) document.Classification {
	c := document.Classification{UnitID: u.ID, Confidence: 0.5}
	text := strings.TrimSpace(u.Text)
	lowered := strings.ToLower(text)

	switch {
	case text == "":
		c.Label = document.LabelIrrelevant
		c.Confidence = 0.9
		c.Rationale = "pusty segment"
	case isPricingText(lowered):
		c.Label = document.LabelPricingTable
		c.Confidence = 0.7
		c.Rationale = "formularz cenowy"
	// "profilakty" covers both "profilaktyka" and "profilaktyczny".
	case strings.Contains(lowered, "profilakty"):
		c.Label = document.LabelAnnex
		c.AnnexFlag = true
		c.Confidence = 0.7
		c.Rationale = "sekcja profilaktyczna"
	case isHeaderText(text, lowered):
		c.Label = document.LabelGroupHeader
		c.GroupHint = extractGroupHint(text)
		c.Confidence = 0.8
		c.Rationale = "nagłówek ze słowem kluczowym wariantu"
	case sawHeader:
		c.Label = document.LabelGroupBody
		c.Confidence = 0.6
		c.Rationale = "treść po nagłówku wariantu"
	default:
		c.Label = document.LabelGeneral
		c.Rationale = "tekst przed pierwszym wariantem"
	}
	return c
}

// isHeaderText applies the aggregator's header heuristics: a short leading
// line carrying a variant keyword, not a numbered service item and not a
// bare attachment heading.
func isHeaderText(text, lowered string) bool {
	firstLine := lowered
	if i := strings.IndexByte(firstLine, '\n'); i >= 0 {
		firstLine = firstLine[:i]
	}
	firstLine = strings.TrimSpace(firstLine)

	hasKeyword := false
	for _, kw := range headerKeywords {
		if strings.Contains(firstLine, kw) {
			hasKeyword = true
			break
		}
	}
	if !hasKeyword {
		return false
	}
	if numberedItemRe.MatchString(firstLine) {
		return false
	}
	if strings.Contains(firstLine, "załącznik") && !groupHintRe.MatchString(firstLine) {
		return false
	}
	// Headers are short. A long paragraph mentioning "wariant" is body text.
	return len(firstLine) <= 120
}

func isPricingText(lowered string) bool {
	if strings.Contains(lowered, "formularz cenow") || strings.Contains(lowered, "formularz ofertow") {
		return true
	}
	// Price listings mention the currency repeatedly.
	return strings.Count(lowered, "zł") >= 3
}

// extractGroupHint pulls the variant number out of a header, e.g.
// "WARIANT 2" yields "2" and "Opcja II" yields "2".
func extractGroupHint(text string) string {
	m := groupHintRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	hint := strings.ToUpper(m[1])
	if arabic, ok := romanToArabic[hint]; ok {
		return arabic
	}
	return m[1]
}
