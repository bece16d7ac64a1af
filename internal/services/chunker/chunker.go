// Package chunker splits extracted document text into overlapping,
// boundary-aligned chunks for embedding and retrieval.
package chunker

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/ternarybob/docchat/internal/interfaces"
	"github.com/ternarybob/docchat/internal/models"
)

// DefaultSize and DefaultOverlap match the PDF pipeline defaults
const (
	DefaultSize    = 10000
	DefaultOverlap = 1000
)

// separators in order of preference. Whitespace is the final soft boundary
// before a hard cut.
var separators = [][]rune{
	[]rune("\n\n"),
	[]rune("\n"),
	[]rune(". "),
	[]rune("! "),
	[]rune("? "),
}

// Split cuts text into chunks of at most size runes, with roughly overlap
// runes shared between neighbours. Cuts prefer paragraph, then line, then
// sentence, then word boundaries, and fall back to a hard cut at size.
//
// Chunk offsets refer to the original text with surrounding whitespace
// trimmed; whitespace-only windows are dropped.
func Split(text string, size, overlap int) ([]models.Chunk, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("size=%d overlap=%d: %w", size, overlap, interfaces.ErrInvalidChunkParams)
	}
	if strings.TrimSpace(text) == "" {
		return nil, interfaces.ErrEmptyInput
	}

	runes := []rune(text)
	n := len(runes)
	chunks := make([]models.Chunk, 0, n/size+1)

	start := 0
	for start < n {
		end := start + size
		if end >= n {
			end = n
		} else {
			end = boundary(runes, start, end, size)
		}

		if c, ok := trimmed(runes, start, end); ok {
			c.Index = len(chunks)
			chunks = append(chunks, c)
		}

		if end >= n {
			break
		}
		start = nextStart(runes, start, end, overlap)
	}

	return chunks, nil
}

// boundary returns the best cut position in (start, limit]. A cut shorter
// than a quarter of size is not worth taking; the next separator class is
// tried instead.
func boundary(runes []rune, start, limit, size int) int {
	minEnd := start + max(size/4, 1)

	for _, sep := range separators {
		for pos := limit; pos >= minEnd; pos-- {
			if endsWith(runes, pos, sep) {
				return pos
			}
		}
	}

	for pos := limit; pos >= minEnd; pos-- {
		if unicode.IsSpace(runes[pos-1]) {
			return pos
		}
	}

	return limit
}

func endsWith(runes []rune, pos int, sep []rune) bool {
	if pos < len(sep) {
		return false
	}
	for i, r := range sep {
		if runes[pos-len(sep)+i] != r {
			return false
		}
	}
	return true
}

// nextStart steps back overlap runes from end and snaps forward to the
// start of a word so that the overlap does not begin mid-word.
func nextStart(runes []rune, start, end, overlap int) int {
	next := end - overlap
	if next <= start {
		return end
	}
	if overlap == 0 {
		return next
	}

	for p := next; p < end; p++ {
		if p > 0 && unicode.IsSpace(runes[p-1]) && !unicode.IsSpace(runes[p]) {
			return p
		}
	}
	return next
}

func trimmed(runes []rune, start, end int) (models.Chunk, bool) {
	for start < end && unicode.IsSpace(runes[start]) {
		start++
	}
	for end > start && unicode.IsSpace(runes[end-1]) {
		end--
	}
	if start == end {
		return models.Chunk{}, false
	}

	return models.Chunk{
		Text:  string(runes[start:end]),
		Size:  end - start,
		Start: start,
		End:   end,
	}, true
}
