package models

// Chunk is a bounded slice of a document's extracted text, the unit of
// embedding and retrieval. Start and End are rune offsets into the source
// text; Size is the rune count of Text.
type Chunk struct {
	Index   int    `json:"index"`
	Text    string `json:"text"`
	Size    int    `json:"size"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Locator string `json:"locator,omitempty"` // "page 2", "pages 2-3", "lines 10-42"
}

// ScoredChunk is a search hit with its similarity score
type ScoredChunk struct {
	Chunk
	Score float32 `json:"score"`
}

// PageSpan records where a PDF page's text sits inside the joined document text
type PageSpan struct {
	Number int `json:"number"` // 1-based page number
	Start  int `json:"start"`  // rune offset, inclusive
	End    int `json:"end"`    // rune offset, exclusive
}

// ExtractedPDF is the result of reading a PDF upload
type ExtractedPDF struct {
	Text      string     `json:"text"`
	PageCount int        `json:"page_count"`
	Pages     []PageSpan `json:"pages"` // only pages that produced text
}
