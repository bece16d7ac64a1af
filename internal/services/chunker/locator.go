package chunker

import (
	"fmt"
	"sort"

	"github.com/ternarybob/docchat/internal/models"
)

// Locator describes where the rune range [start, end) sits in the source document
type Locator func(start, end int) string

// Annotate sets each chunk's Locator in place
func Annotate(chunks []models.Chunk, locate Locator) {
	if locate == nil {
		return
	}
	for i := range chunks {
		chunks[i].Locator = locate(chunks[i].Start, chunks[i].End)
	}
}

// LineLocator reports 1-based line ranges, e.g. "lines 3-7"
func LineLocator(text string) Locator {
	lineStarts := []int{0}
	offset := 0
	for _, r := range text {
		offset++
		if r == '\n' {
			lineStarts = append(lineStarts, offset)
		}
	}

	lineAt := func(off int) int {
		return sort.Search(len(lineStarts), func(i int) bool { return lineStarts[i] > off })
	}

	return func(start, end int) string {
		first := lineAt(start)
		last := lineAt(max(end-1, start))
		if first == last {
			return fmt.Sprintf("line %d", first)
		}
		return fmt.Sprintf("lines %d-%d", first, last)
	}
}

// PageLocator reports the PDF pages a range touches, e.g. "page 2" or "pages 2-3"
func PageLocator(pages []models.PageSpan) Locator {
	return func(start, end int) string {
		first, last := 0, 0
		for _, p := range pages {
			if p.End <= start || p.Start >= end {
				continue
			}
			if first == 0 {
				first = p.Number
			}
			last = p.Number
		}
		switch {
		case first == 0:
			return ""
		case first == last:
			return fmt.Sprintf("page %d", first)
		default:
			return fmt.Sprintf("pages %d-%d", first, last)
		}
	}
}
