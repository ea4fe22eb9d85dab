// Package normalize cleans up text extracted from procurement documents:
// unicode canonicalization, invisible characters, line-break hyphenation,
// smart quotes and whitespace noise. Normalization is deterministic and
// idempotent, and never fails.
package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Config toggles the individual cleanup steps. All steps default to on.
type Config struct {
	Unicode            bool // NFC canonical composition
	StripInvisible     bool // zero-width characters, soft hyphen, BOM
	FixHyphenation     bool // rejoin words hyphenated at line breaks
	StraightenQuotes   bool // smart quotes to ASCII
	CollapseWhitespace bool // space runs, per-line trim, newline runs
}

// DefaultConfig returns a config with every step enabled.
func DefaultConfig() Config {
	return Config{
		Unicode:            true,
		StripInvisible:     true,
		FixHyphenation:     true,
		StraightenQuotes:   true,
		CollapseWhitespace: true,
	}
}

var invisibleReplacer = strings.NewReplacer(
	"\u200B", "", // zero-width space
	"\u200C", "", // zero-width non-joiner
	"\u200D", "", // zero-width joiner
	"\uFEFF", "", // BOM / zero-width no-break space
	"\u00AD", "", // soft hyphen
)

var quoteReplacer = strings.NewReplacer(
	"“", `"`, "”", `"`, // smart double quotes
	"„", `"`, "‟", `"`, // Polish low/high double quotes
	"‘", "'", "’", "'", // smart single quotes
	"‚", "'", "‛", "'", // low/high single quotes
)

// Word hyphenated across a line break: letters, hyphen, newline, letters.
// \pL keeps this working for diacritics.
var hyphenationRe = regexp.MustCompile(`(\p{L}+)-[ \t]*\n[ \t]*(\p{L}+)`)

var (
	spaceRunRe   = regexp.MustCompile(` +`)
	newlineRunRe = regexp.MustCompile(`\n{3,}`)
)

// Normalize applies the enabled cleanup steps in a fixed order. Empty or
// unrecognized input passes through unchanged.
func Normalize(text string, cfg Config) string {
	if text == "" {
		return text
	}

	if cfg.Unicode {
		text = norm.NFC.String(text)
	}
	if cfg.StripInvisible {
		text = invisibleReplacer.Replace(text)
	}
	if cfg.FixHyphenation {
		text = hyphenationRe.ReplaceAllString(text, "$1$2")
	}
	if cfg.StraightenQuotes {
		text = quoteReplacer.Replace(text)
	}
	if cfg.CollapseWhitespace {
		text = collapseWhitespace(text)
	}

	return text
}

func collapseWhitespace(text string) string {
	text = strings.ReplaceAll(text, "\t", " ")
	text = spaceRunRe.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")

	// Keep paragraph breaks but nothing wider.
	text = newlineRunRe.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}

var (
	bulletGlyphRe = regexp.MustCompile(`^[•◦▪▫●○■□\-–—*]\s`)
	enumPrefixRe  = regexp.MustCompile(`^(\d+|[A-Za-z])[.)]\s`)
)

// IsBulletPoint reports whether the line, after trimming, starts with a
// bullet glyph or a numbered/lettered list prefix followed by whitespace.
func IsBulletPoint(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	return bulletGlyphRe.MatchString(line) || enumPrefixRe.MatchString(line)
}
