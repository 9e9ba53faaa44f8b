// Package textsplit cuts long text into bounded chunks at whitespace.
package textsplit

import (
	"unicode"
	"unicode/utf8"
)

// Split cuts text into ordered chunks of at most maxBytes bytes, breaking
// only at whitespace. A single token longer than maxBytes is never cut; it
// becomes its own oversized chunk. Whitespace at a cut point stays with the
// preceding chunk, so concatenating the chunks yields text unchanged.
// maxBytes <= 0 disables splitting.
func Split(text string, maxBytes int) []string {
	if text == "" {
		return nil
	}
	if maxBytes <= 0 || len(text) <= maxBytes {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(text) {
		if len(text)-start <= maxBytes {
			chunks = append(chunks, text[start:])
			break
		}
		cut := lastBreak(text, start, start+maxBytes)
		if cut <= start {
			cut = nextBreak(text, start+maxBytes)
		}
		chunks = append(chunks, text[start:cut])
		start = cut
	}
	return chunks
}

// lastBreak returns the offset just past the last whitespace rune that ends
// at or before limit, or start when the window holds none.
func lastBreak(text string, start, limit int) int {
	for i := limit; i > start; {
		r, size := utf8.DecodeLastRuneInString(text[start:i])
		if unicode.IsSpace(r) {
			return i
		}
		i -= size
	}
	return start
}

// nextBreak returns the offset just past the first whitespace run at or
// after from, or len(text) when the rest is a single token.
func nextBreak(text string, from int) int {
	i := from
	// from may land inside a multi-byte rune
	for i < len(text) && !utf8.RuneStart(text[i]) {
		i++
	}
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if unicode.IsSpace(r) {
			break
		}
		i += size
	}
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !unicode.IsSpace(r) {
			break
		}
		i += size
	}
	return i
}
