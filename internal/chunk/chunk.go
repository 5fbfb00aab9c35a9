// Package chunk splits document bodies into overlapping passages sized
// for embedding.
//
// The splitter targets a maximum passage size with a fixed overlap
// between consecutive passages, preferring to break at natural
// boundaries (paragraph, then sentence, then word) and falling back to a
// hard cut when no boundary exists inside the window. Splitting is
// deterministic: the same input and configuration always produce the
// same passages.
package chunk

import (
	"strings"
	"unicode/utf8"
)

const (
	// DefaultSize is the target maximum passage length in bytes.
	DefaultSize = 1000

	// DefaultOverlap is the number of bytes shared between consecutive
	// passages.
	DefaultOverlap = 200
)

// Passage is a contiguous slice of a document body together with the
// parent document's identity. Passages are write-once: they exist only to
// be embedded and inserted into the vector store.
type Passage struct {
	Text   string
	Source string
	Title  string
}

// Splitter divides text into overlapping passages.
type Splitter struct {
	size    int
	overlap int
}

// New creates a Splitter. Non-positive size falls back to DefaultSize;
// an overlap outside [0, size) falls back to DefaultOverlap (or 0 when
// even that would not fit).
func New(size, overlap int) *Splitter {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultOverlap
		if overlap >= size {
			overlap = 0
		}
	}
	return &Splitter{size: size, overlap: overlap}
}

// sentenceEnders mark preferred sentence-level break points, tried in
// order after paragraph breaks.
var sentenceEnders = []string{". ", "! ", "? ", "\n"}

// Split divides text into passages carrying the given source and title.
// Any non-blank input yields at least one passage; no passage exceeds the
// configured size.
func (s *Splitter) Split(text, source, title string) []Passage {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var passages []Passage
	start := 0
	for start < len(text) {
		end := s.cutPoint(text, start)

		piece := strings.TrimSpace(text[start:end])
		if piece != "" {
			passages = append(passages, Passage{Text: piece, Source: source, Title: title})
		}

		if end >= len(text) {
			break
		}

		next := end - s.overlap
		if next <= start {
			// Overlap must never stall the window
			next = start + 1
		}
		start = next
	}

	return passages
}

// cutPoint returns the exclusive end index for the passage starting at
// start, preferring natural boundaries inside the window.
func (s *Splitter) cutPoint(text string, start int) int {
	limit := start + s.size
	if limit >= len(text) {
		return len(text)
	}

	window := text[start:limit]

	// Paragraph break first
	if i := strings.LastIndex(window, "\n\n"); i > 0 {
		return start + i + len("\n\n")
	}

	// Then sentence boundaries
	for _, sep := range sentenceEnders {
		if i := strings.LastIndex(window, sep); i > 0 {
			return start + i + len(sep)
		}
	}

	// Then any word boundary
	if i := strings.LastIndex(window, " "); i > 0 {
		return start + i + 1
	}

	// Hard cut: no boundary inside the window. Back up to a rune start so
	// the cut never splits a multi-byte character.
	for limit > start && !utf8.RuneStart(text[limit]) {
		limit--
	}
	return limit
}
