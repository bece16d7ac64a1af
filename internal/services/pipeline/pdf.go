package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ternarybob/docchat/internal/common"
	"github.com/ternarybob/docchat/internal/interfaces"
	"github.com/ternarybob/docchat/internal/models"
	"github.com/ternarybob/docchat/internal/services/chunker"
	"github.com/ternarybob/docchat/internal/services/vectorindex"
)

// ragTemplate is filled with the retrieved context and the user's question
const ragTemplate = `Answer question as detailed as possible from the provided context, make sure to provide all the details. If the answer is not in provided context, just say "your question's answer is not available in the PDF provided", do not provide the wrong answer

Context:
%s?
Question:
%s

Answer:
`

// contextSeparator joins retrieved chunk texts
const contextSeparator = "\n\n"

// PDFRequest is a question about an uploaded PDF
type PDFRequest struct {
	SessionID string
	Prompt    string
	FileName  string
	Data      []byte
}

// PDF answers a question with retrieval over the document's chunks. When
// caching is enabled the session reuses its index while the same PDF bytes
// are sent; a different document replaces it.
func (s *Service) PDF(ctx context.Context, req PDFRequest) models.Outcome {
	started := s.now()

	if strings.TrimSpace(req.SessionID) == "" {
		return s.fail(fmt.Errorf("%w: session_id", interfaces.ErrMissingField), models.DocumentPDF, req.SessionID)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return s.fail(fmt.Errorf("%w: prompt", interfaces.ErrMissingField), models.DocumentPDF, req.SessionID)
	}
	if len(req.Data) == 0 {
		return s.fail(fmt.Errorf("%w: pdf", interfaces.ErrMissingField), models.DocumentPDF, req.SessionID)
	}

	unlock := s.sessions.Lock(req.SessionID)
	defer unlock()

	docHash := common.HashBytes(req.Data)
	docID := pdfDocumentID(req.SessionID, docHash)

	idx, outcome, ok := s.pdfIndex(ctx, req, docID, docHash)
	if !ok {
		return outcome
	}

	results, err := idx.Search(ctx, req.Prompt, s.options.TopK, s.embedder)
	if err != nil {
		outcome = s.fail(err, models.DocumentPDF, req.SessionID)
		s.recordQuery(ctx, &models.QueryRecord{
			DocumentID: docID,
			SessionID:  req.SessionID,
			Kind:       models.DocumentPDF,
			QueryText:  req.Prompt,
		}, started, outcome)
		return outcome
	}

	temperature := s.options.PDFTemperature
	gen, err := s.generator.Generate(ctx, models.GenerateRequest{
		Parts:       []models.Part{models.TextPart(BuildRAGPrompt(results, req.Prompt))},
		Temperature: &temperature,
	})

	if err != nil {
		outcome = s.fail(err, models.DocumentPDF, req.SessionID)
	} else {
		if gen.Blocked {
			s.logger.Warn().
				Str("session_id", req.SessionID).
				Str("block_reason", gen.BlockReason).
				Msg("PDF response blocked")
		}
		outcome = answer(gen)
	}

	s.recordQuery(ctx, &models.QueryRecord{
		DocumentID:     docID,
		SessionID:      req.SessionID,
		Kind:           models.DocumentPDF,
		QueryText:      req.Prompt,
		RelevantChunks: len(results),
	}, started, outcome)

	s.logger.Info().
		Str("session_id", req.SessionID).
		Int("indexed_chunks", idx.Len()).
		Int("relevant_chunks", len(results)).
		Str("status", string(outcome.Status)).
		Msg("PDF request completed")

	return outcome
}

// pdfIndex returns the session's cached index for this document or builds a
// new one. The index is published to the cache only once fully built. When
// ok is false the returned outcome is final.
func (s *Service) pdfIndex(ctx context.Context, req PDFRequest, docID, docHash string) (*vectorindex.Index, models.Outcome, bool) {
	if s.options.CacheIndex && s.indexes != nil {
		if idx, found := s.indexes.Index(req.SessionID, docHash); found {
			s.logger.Debug().
				Str("session_id", req.SessionID).
				Int("chunks", idx.Len()).
				Msg("Reusing cached PDF index")
			return idx, models.Outcome{}, true
		}
	}

	extracted, err := s.extractor.Extract(ctx, req.Data)
	if err != nil {
		return nil, s.fail(err, models.DocumentPDF, req.SessionID), false
	}

	if strings.TrimSpace(extracted.Text) == "" {
		s.logger.Warn().
			Str("session_id", req.SessionID).
			Int("page_count", extracted.PageCount).
			Msg("PDF has no extractable text")
		return nil, models.Outcome{Text: MessageNoPDFText, Status: models.StatusClientError}, false
	}

	chunks, err := chunker.Split(extracted.Text, s.options.ChunkSize, s.options.ChunkOverlap)
	if errors.Is(err, interfaces.ErrEmptyInput) || (err == nil && len(chunks) == 0) {
		return nil, models.Outcome{Text: MessageNoChunks, Status: models.StatusClientError}, false
	}
	if err != nil {
		return nil, s.fail(err, models.DocumentPDF, req.SessionID), false
	}
	chunker.Annotate(chunks, chunker.PageLocator(extracted.Pages))

	idx, err := vectorindex.Build(ctx, chunks, s.embedder)
	if err != nil {
		return nil, s.fail(err, models.DocumentPDF, req.SessionID), false
	}

	s.recordDocument(ctx, &models.DocumentRecord{
		ID:            docID,
		SessionID:     req.SessionID,
		Kind:          models.DocumentPDF,
		FileName:      req.FileName,
		FileSize:      int64(len(req.Data)),
		FileHash:      docHash,
		MIMEType:      "application/pdf",
		PageCount:     extracted.PageCount,
		ContentLength: len([]rune(extracted.Text)),
		WordCount:     len(strings.Fields(extracted.Text)),
		ChunkCount:    len(chunks),
		CreatedAt:     s.now(),
	}, chunks)

	if s.options.CacheIndex && s.indexes != nil {
		s.indexes.PutIndex(req.SessionID, docHash, idx)
	}

	s.logger.Debug().
		Str("session_id", req.SessionID).
		Int("page_count", extracted.PageCount).
		Int("chunks", len(chunks)).
		Msg("Built PDF index")

	return idx, models.Outcome{}, true
}

// BuildRAGPrompt fills the retrieval template. No results give an empty context.
func BuildRAGPrompt(results []models.ScoredChunk, question string) string {
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Text
	}
	return fmt.Sprintf(ragTemplate, strings.Join(texts, contextSeparator), question)
}

// pdfDocumentID is stable for one document within one session so repeated
// questions attach to the same record.
func pdfDocumentID(sessionID, docHash string) string {
	return "doc_" + common.HashBytes([]byte(sessionID + ":" + docHash))[:32]
}
