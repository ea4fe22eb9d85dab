package segment

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// sentenceSpans splits a paragraph into sentences using a boundary
// heuristic: sentence-ending punctuation followed by whitespace and an
// uppercase letter (or end of text). Offsets are absolute within the
// normalized block text. When no boundary exists the whole paragraph is
// returned as a single span.
func sentenceSpans(p span) []span {
	text := p.text
	var out []span
	start := 0

	i := 0
	for i < len(text) {
		c := text[i]
		if c != '.' && c != '!' && c != '?' {
			i++
			continue
		}
		// Consume punctuation runs ("...", "?!").
		end := i + 1
		for end < len(text) && (text[end] == '.' || text[end] == '!' || text[end] == '?') {
			end++
		}
		// The boundary needs trailing whitespace, then uppercase or EOT.
		ws := end
		for ws < len(text) {
			r, size := utf8.DecodeRuneInString(text[ws:])
			if !unicode.IsSpace(r) {
				break
			}
			ws += size
		}
		if ws == end && end < len(text) {
			i = end
			continue
		}
		if ws < len(text) {
			r, _ := utf8.DecodeRuneInString(text[ws:])
			if !unicode.IsUpper(r) {
				i = end
				continue
			}
		}
		if s := strings.TrimSpace(text[start:end]); s != "" {
			out = append(out, span{text: s, off: p.off + start + leadingSpace(text[start:end])})
		}
		start = ws
		i = ws
	}

	if start < len(text) {
		if s := strings.TrimSpace(text[start:]); s != "" {
			out = append(out, span{text: s, off: p.off + start + leadingSpace(text[start:])})
		}
	}

	if len(out) == 0 {
		return []span{p}
	}
	return out
}

func leadingSpace(s string) int {
	return len(s) - len(strings.TrimLeft(s, " \t\n"))
}

// sentenceChunks greedily packs sentences into chunks of at most maxChars,
// flushing before a sentence that would overflow. A single sentence longer
// than maxChars is emitted whole rather than truncated. A paragraph with
// no detectable boundary comes back as one chunk.
func sentenceChunks(p span, maxChars int) []span {
	sentences := sentenceSpans(p)
	if len(sentences) == 1 {
		return sentences
	}

	var chunks []span
	first := 0
	size := 0
	for i, s := range sentences {
		if size > 0 && size+len(s.text)+1 > maxChars {
			chunks = append(chunks, joinSpan(p, sentences[first], sentences[i-1]))
			first = i
			size = 0
		}
		if size > 0 {
			size++ // separator
		}
		size += len(s.text)
	}
	chunks = append(chunks, joinSpan(p, sentences[first], sentences[len(sentences)-1]))
	return chunks
}

// joinSpan returns the exact substring covering the first through last
// sentence, so chunk offsets stay true to the source text.
func joinSpan(p span, firstSent, lastSent span) span {
	start := firstSent.off - p.off
	end := lastSent.off - p.off + len(lastSent.text)
	return span{text: p.text[start:end], off: firstSent.off}
}
