package models

import "time"

// DocumentKind identifies the type of an uploaded document
type DocumentKind string

const (
	DocumentText  DocumentKind = "text"
	DocumentImage DocumentKind = "image"
	DocumentPDF   DocumentKind = "pdf"
)

// DocumentRecord is the persisted metadata of one upload. Document bytes are never stored.
type DocumentRecord struct {
	ID            string       `json:"id"` // rec_{uuid}
	SessionID     string       `json:"session_id" badgerhold:"index"`
	Kind          DocumentKind `json:"kind"`
	FileName      string       `json:"file_name"`
	FileSize      int64        `json:"file_size"`
	FileHash      string       `json:"file_hash" badgerhold:"index"` // sha256 hex
	MIMEType      string       `json:"mime_type,omitempty"`
	PageCount     int          `json:"page_count,omitempty"`
	ContentLength int          `json:"content_length,omitempty"`
	LineCount     int          `json:"line_count,omitempty"`
	WordCount     int          `json:"word_count,omitempty"`
	Width         int          `json:"width,omitempty"`
	Height        int          `json:"height,omitempty"`
	Format        string       `json:"format,omitempty"`
	ChunkCount    int          `json:"chunk_count,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

// ChunkRecord is a persisted chunk of a PDF or text document
type ChunkRecord struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id" badgerhold:"index"`
	Index      int    `json:"index"`
	Text       string `json:"text"`
	Size       int    `json:"size"`
	Locator    string `json:"locator,omitempty"`
}

// QueryRecord captures one question/answer round trip for analytics
type QueryRecord struct {
	ID             string       `json:"id"`
	DocumentID     string       `json:"document_id,omitempty" badgerhold:"index"`
	SessionID      string       `json:"session_id" badgerhold:"index"`
	Kind           DocumentKind `json:"kind"`
	QueryText      string       `json:"query_text"`
	ResponseText   string       `json:"response_text"`
	Status         Status       `json:"status"`
	ResponseTimeMs int64        `json:"response_time_ms"`
	RelevantChunks int          `json:"relevant_chunks"`
	CreatedAt      time.Time    `json:"created_at"`
}
