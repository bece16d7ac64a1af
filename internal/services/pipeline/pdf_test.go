package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docchat/internal/common"
	"github.com/ternarybob/docchat/internal/interfaces"
	"github.com/ternarybob/docchat/internal/models"
	pdfextract "github.com/ternarybob/docchat/internal/services/pdf"
)

var paragraphs = []string{
	"Apples grow on trees in temperate orchards and ripen slowly during the autumn.",
	"Bananas need warm tropical weather with plenty of rain across the whole year.",
	"Cherries blossom early in spring and attract many bees to the hillside farms.",
	"Zebra quartz lantern is the secret phrase hidden inside the fourth paragraph.",
	"Dates are harvested from tall palms growing in dry desert oases near wells.",
}

// threePageExtraction lays the paragraphs out over three pages the way the
// extractor would report them.
func threePageExtraction() *models.ExtractedPDF {
	pages := [][]string{paragraphs[0:2], paragraphs[2:4], paragraphs[4:5]}

	var text strings.Builder
	var spans []models.PageSpan
	for i, page := range pages {
		if i > 0 {
			text.WriteString("\n\n")
		}
		start := len([]rune(text.String()))
		text.WriteString(strings.Join(page, "\n\n"))
		spans = append(spans, models.PageSpan{Number: i + 1, Start: start, End: len([]rune(text.String()))})
	}

	return &models.ExtractedPDF{Text: text.String(), PageCount: 3, Pages: spans}
}

func pdfOptions() Options {
	return Options{ChunkSize: 100, ChunkOverlap: 10, TopK: 4, PDFTemperature: 0.5, CacheIndex: true}
}

func TestPDF_RetrievesChunkWithPhrase(t *testing.T) {
	f := newFixture(pdfOptions())
	f.extractor.result = threePageExtraction()

	outcome := f.service.PDF(context.Background(), PDFRequest{
		SessionID: "s1",
		Prompt:    "zebra quartz lantern",
		FileName:  "fruit.pdf",
		Data:      []byte("%PDF-fake"),
	})
	require.Equal(t, models.StatusOK, outcome.Status)

	require.Len(t, f.recorder.documents, 1)
	doc := f.recorder.documents[0]
	chunks := f.recorder.chunks[doc.ID]
	require.Len(t, chunks, 5)
	assert.Equal(t, 5, doc.ChunkCount)
	assert.Equal(t, 3, doc.PageCount)
	assert.Contains(t, chunks[3].Text, "Zebra quartz lantern")
	assert.Equal(t, "page 2", chunks[3].Locator)
	for i, c := range chunks {
		if i != 3 {
			assert.NotContains(t, c.Text, "Zebra quartz lantern")
		}
	}

	req := f.generator.last()
	require.Len(t, req.Parts, 1)
	require.NotNil(t, req.Temperature)
	assert.Equal(t, float32(0.5), *req.Temperature)

	prompt := req.Parts[0].Text
	assert.True(t, strings.HasPrefix(prompt, "Answer question as detailed as possible"))
	contextStart := strings.Index(prompt, "Context:\n") + len("Context:\n")
	assert.True(t, strings.HasPrefix(prompt[contextStart:], chunks[3].Text), "best match first in context")
	assert.True(t, strings.HasSuffix(prompt, "Question:\nzebra quartz lantern\n\nAnswer:\n"))

	require.Len(t, f.recorder.queries, 1)
	assert.Equal(t, 4, f.recorder.queries[0].RelevantChunks)
	assert.Equal(t, doc.ID, f.recorder.queries[0].DocumentID)
}

func TestPDF_NoTextLayer(t *testing.T) {
	f := newFixture(pdfOptions())
	f.extractor.result = &models.ExtractedPDF{Text: "  \n ", PageCount: 2}

	outcome := f.service.PDF(context.Background(), PDFRequest{SessionID: "s1", Prompt: "q", Data: []byte("%PDF")})

	assert.Equal(t, models.StatusClientError, outcome.Status)
	assert.Equal(t, MessageNoPDFText, outcome.Text)
	assert.Equal(t, 0, f.embedder.batchCalls)
	assert.Equal(t, 0, f.generator.calls())
}

func TestPDF_Unreadable(t *testing.T) {
	f := newFixture(pdfOptions())
	f.extractor.err = fmt.Errorf("bad xref: %w", interfaces.ErrUnreadablePDF)

	outcome := f.service.PDF(context.Background(), PDFRequest{SessionID: "s1", Prompt: "q", Data: []byte("junk")})

	assert.Equal(t, models.StatusClientError, outcome.Status)
	assert.Equal(t, MessageUnreadablePDF, outcome.Text)
}

func TestPDF_MissingFields(t *testing.T) {
	f := newFixture(pdfOptions())
	f.extractor.result = threePageExtraction()

	for _, req := range []PDFRequest{
		{Prompt: "q", Data: []byte("x")},
		{SessionID: "s1", Data: []byte("x")},
		{SessionID: "s1", Prompt: "q"},
	} {
		outcome := f.service.PDF(context.Background(), req)
		assert.Equal(t, models.StatusClientError, outcome.Status)
	}
	assert.Equal(t, 0, f.extractor.calls)
	assert.Equal(t, 0, f.generator.calls())
}

func TestPDF_ReusesIndexForSameDocument(t *testing.T) {
	f := newFixture(pdfOptions())
	f.extractor.result = threePageExtraction()
	data := []byte("%PDF-same")

	for _, prompt := range []string{"apples", "bananas", "dates"} {
		outcome := f.service.PDF(context.Background(), PDFRequest{SessionID: "s1", Prompt: prompt, Data: data})
		require.Equal(t, models.StatusOK, outcome.Status)
	}

	assert.Equal(t, 1, f.extractor.calls)
	assert.Equal(t, 1, f.embedder.batchCalls)
	assert.Len(t, f.recorder.documents, 1)
	assert.Len(t, f.recorder.queries, 3)

	// A different document replaces the cached index
	f.service.PDF(context.Background(), PDFRequest{SessionID: "s1", Prompt: "q", Data: []byte("%PDF-other")})
	assert.Equal(t, 2, f.extractor.calls)

	// Another session never sees this session's index
	f.service.PDF(context.Background(), PDFRequest{SessionID: "s2", Prompt: "q", Data: []byte("%PDF-other")})
	assert.Equal(t, 3, f.extractor.calls)
}

func TestPDF_CacheDisabledRebuildsEachTime(t *testing.T) {
	options := pdfOptions()
	options.CacheIndex = false
	f := newFixture(options)
	f.extractor.result = threePageExtraction()

	for i := 0; i < 2; i++ {
		f.service.PDF(context.Background(), PDFRequest{SessionID: "s1", Prompt: "q", Data: []byte("%PDF")})
	}
	assert.Equal(t, 2, f.extractor.calls)
	assert.Equal(t, 2, f.embedder.batchCalls)
}

func TestPDF_FailedBuildIsNotCached(t *testing.T) {
	f := newFixture(pdfOptions())
	f.extractor.result = threePageExtraction()
	f.embedder.err = fmt.Errorf("%w: quota exhausted", interfaces.ErrEmbeddingService)

	outcome := f.service.PDF(context.Background(), PDFRequest{SessionID: "s1", Prompt: "q", Data: []byte("%PDF")})
	assert.Equal(t, models.StatusTransientError, outcome.Status)
	assert.Equal(t, MessageTransient, outcome.Text)

	_, cached := f.store.Index("s1", common.HashBytes([]byte("%PDF")))
	assert.False(t, cached)

	f.embedder.err = nil
	outcome = f.service.PDF(context.Background(), PDFRequest{SessionID: "s1", Prompt: "q", Data: []byte("%PDF")})
	assert.Equal(t, models.StatusOK, outcome.Status)
	assert.Equal(t, 2, f.extractor.calls)
}

func TestPDF_BlockedAnswer(t *testing.T) {
	f := newFixture(pdfOptions())
	f.extractor.result = threePageExtraction()
	f.generator.result = &models.Generation{Blocked: true, BlockReason: "SAFETY"}

	outcome := f.service.PDF(context.Background(), PDFRequest{SessionID: "s1", Prompt: "q", Data: []byte("%PDF")})

	assert.Equal(t, models.StatusOK, outcome.Status)
	assert.Equal(t, MessageBlocked, outcome.Text)
}

func TestPDF_RealDocument(t *testing.T) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetFont("Arial", "", 11)
	for _, text := range []string{paragraphs[0], paragraphs[3], paragraphs[4]} {
		doc.AddPage()
		doc.MultiCell(0, 6, text, "", "L", false)
	}
	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))

	f := newFixture(defaultOptions())
	f.service.extractor = pdfextract.NewExtractor(arbor.NewLogger())

	outcome := f.service.PDF(context.Background(), PDFRequest{SessionID: "s1", Prompt: "secret phrase", Data: buf.Bytes()})
	require.Equal(t, models.StatusOK, outcome.Status)

	prompt := f.generator.last().Parts[0].Text
	assert.Contains(t, prompt, "secret phrase hidden")
	assert.Equal(t, 3, f.recorder.documents[0].PageCount)
}

func TestBuildRAGPrompt(t *testing.T) {
	empty := BuildRAGPrompt(nil, "Where is it?")
	assert.Contains(t, empty, "Context:\n?\nQuestion:\nWhere is it?\n")
	assert.Contains(t, empty, `"your question's answer is not available in the PDF provided"`)

	filled := BuildRAGPrompt([]models.ScoredChunk{
		{Chunk: models.Chunk{Text: "one"}},
		{Chunk: models.Chunk{Text: "two"}},
	}, "q")
	assert.Contains(t, filled, "Context:\none\n\ntwo?\nQuestion:\nq\n\nAnswer:\n")
}
