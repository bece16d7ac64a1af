// Package pipeline composes extraction, chunking, retrieval and generation
// into the text, image and PDF question-answering flows.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docchat/internal/common"
	"github.com/ternarybob/docchat/internal/interfaces"
	"github.com/ternarybob/docchat/internal/models"
	"github.com/ternarybob/docchat/internal/services/vectorindex"
)

// User-facing messages returned in place of raw provider errors
const (
	MessageBlocked          = "Error: The response was blocked by safety filters."
	MessageTransient        = "Something went wrong. Please try again later."
	MessageNoPDFText        = "Could not extract text from the PDF."
	MessageNoChunks         = "PDF text is empty after splitting."
	MessageUnreadablePDF    = "Could not read the PDF file."
	MessageUnsupportedImage = "Could not decode the image."
)

// IndexCache holds at most one built index per session
type IndexCache interface {
	Index(sessionID, docHash string) (*vectorindex.Index, bool)
	PutIndex(sessionID, docHash string, idx *vectorindex.Index)
}

// Dependencies are the collaborators injected into the pipelines.
// Indexes and Recorder may be nil.
type Dependencies struct {
	Embedder  interfaces.Embedder
	Generator interfaces.Generator
	Extractor interfaces.PDFExtractor
	Sessions  interfaces.SessionStore
	Indexes   IndexCache
	Recorder  interfaces.Recorder
}

// Options tune chunking, retrieval and PDF generation
type Options struct {
	ChunkSize      int
	ChunkOverlap   int
	TopK           int
	PDFTemperature float32
	CacheIndex     bool
}

// OptionsFromConfig reads pipeline options from the application config
func OptionsFromConfig(config *common.Config) Options {
	return Options{
		ChunkSize:      config.Chunking.Size,
		ChunkOverlap:   config.Chunking.Overlap,
		TopK:           config.Retrieval.TopK,
		PDFTemperature: config.PDF.Temperature,
		CacheIndex:     config.PDF.CacheIndex,
	}
}

// Service runs the three pipelines. Every method resolves to a models.Outcome;
// no error crosses this boundary.
type Service struct {
	embedder  interfaces.Embedder
	generator interfaces.Generator
	extractor interfaces.PDFExtractor
	sessions  interfaces.SessionStore
	indexes   IndexCache
	recorder  interfaces.Recorder
	options   Options
	logger    arbor.ILogger
	now       func() time.Time
}

// NewService creates the pipeline service
func NewService(deps Dependencies, options Options, logger arbor.ILogger) *Service {
	recorder := deps.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}

	return &Service{
		embedder:  deps.Embedder,
		generator: deps.Generator,
		extractor: deps.Extractor,
		sessions:  deps.Sessions,
		indexes:   deps.Indexes,
		recorder:  recorder,
		options:   options,
		logger:    logger,
		now:       time.Now,
	}
}

// Classify maps an error to the outcome a caller sees. Input errors carry a
// descriptive message, configuration errors name what is missing, and
// provider failures collapse to a generic retry message.
func Classify(err error) models.Outcome {
	switch {
	case err == nil:
		return models.Outcome{Status: models.StatusOK}
	case errors.Is(err, interfaces.ErrProviderNotConfigured):
		return models.Outcome{Text: err.Error(), Status: models.StatusConfigError}
	case errors.Is(err, interfaces.ErrUnreadablePDF):
		return models.Outcome{Text: MessageUnreadablePDF, Status: models.StatusClientError}
	case errors.Is(err, interfaces.ErrUnsupportedImage):
		return models.Outcome{Text: MessageUnsupportedImage, Status: models.StatusClientError}
	case errors.Is(err, interfaces.ErrMissingField),
		errors.Is(err, interfaces.ErrEmptyInput),
		errors.Is(err, interfaces.ErrInvalidChunkParams):
		return models.Outcome{Text: err.Error(), Status: models.StatusClientError}
	default:
		return models.Outcome{Text: MessageTransient, Status: models.StatusTransientError}
	}
}

// answer turns a generation into an outcome
func answer(gen *models.Generation) models.Outcome {
	if gen == nil || gen.Blocked {
		return models.Outcome{Text: MessageBlocked, Status: models.StatusOK}
	}
	return models.Outcome{Text: gen.Text, Status: models.StatusOK}
}

// fail logs the underlying error and returns its classified outcome
func (s *Service) fail(err error, kind models.DocumentKind, sessionID string) models.Outcome {
	outcome := Classify(err)
	event := s.logger.Warn()
	if outcome.Status == models.StatusTransientError || outcome.Status == models.StatusConfigError {
		event = s.logger.Error()
	}
	event.Err(err).
		Str("kind", string(kind)).
		Str("session_id", sessionID).
		Str("status", string(outcome.Status)).
		Msg("Pipeline request failed")
	return outcome
}

func (s *Service) recordDocument(ctx context.Context, doc *models.DocumentRecord, chunks []models.Chunk) {
	if err := s.recorder.RecordDocument(ctx, doc); err != nil {
		s.logger.Warn().Err(err).Str("document_id", doc.ID).Msg("Failed to record document")
		return
	}
	if len(chunks) == 0 {
		return
	}
	if err := s.recorder.RecordChunks(ctx, doc.ID, chunks); err != nil {
		s.logger.Warn().Err(err).Str("document_id", doc.ID).Msg("Failed to record chunks")
	}
}

func (s *Service) recordQuery(ctx context.Context, query *models.QueryRecord, started time.Time, outcome models.Outcome) {
	query.ID = common.NewRecordID("qry")
	query.ResponseText = outcome.Text
	query.Status = outcome.Status
	query.ResponseTimeMs = s.now().Sub(started).Milliseconds()
	query.CreatedAt = s.now()

	if err := s.recorder.RecordQuery(ctx, query); err != nil {
		s.logger.Warn().Err(err).Str("session_id", query.SessionID).Msg("Failed to record query")
	}
}

type nopRecorder struct{}

func (nopRecorder) RecordDocument(ctx context.Context, doc *models.DocumentRecord) error {
	return nil
}

func (nopRecorder) RecordChunks(ctx context.Context, documentID string, chunks []models.Chunk) error {
	return nil
}

func (nopRecorder) RecordQuery(ctx context.Context, query *models.QueryRecord) error {
	return nil
}
