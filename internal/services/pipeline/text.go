package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/docchat/internal/common"
	"github.com/ternarybob/docchat/internal/interfaces"
	"github.com/ternarybob/docchat/internal/models"
	"github.com/ternarybob/docchat/internal/services/chunker"
)

// TextRequest is a conversational question with an optional system prompt
type TextRequest struct {
	SessionID    string
	SystemPrompt string
	Prompt       string
}

// Text answers a prompt in the context of the session's history. The
// exchange is appended only after a successful, unblocked generation.
func (s *Service) Text(ctx context.Context, req TextRequest) models.Outcome {
	started := s.now()

	if strings.TrimSpace(req.SessionID) == "" {
		return s.fail(fmt.Errorf("%w: session_id", interfaces.ErrMissingField), models.DocumentText, req.SessionID)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return s.fail(fmt.Errorf("%w: prompt", interfaces.ErrMissingField), models.DocumentText, req.SessionID)
	}

	unlock := s.sessions.Lock(req.SessionID)
	defer unlock()

	history := s.sessions.History(req.SessionID)

	parts := make([]models.Part, 0, 2)
	if strings.TrimSpace(req.SystemPrompt) != "" {
		parts = append(parts, models.SystemPart(req.SystemPrompt))
	}
	parts = append(parts, models.TextPart(req.Prompt))

	gen, err := s.generator.Generate(ctx, models.GenerateRequest{Parts: parts, History: history})

	var outcome models.Outcome
	switch {
	case err != nil:
		outcome = s.fail(err, models.DocumentText, req.SessionID)
	case gen.Blocked:
		s.logger.Warn().
			Str("session_id", req.SessionID).
			Str("block_reason", gen.BlockReason).
			Msg("Text response blocked")
		outcome = answer(gen)
	default:
		s.sessions.Append(req.SessionID,
			models.Turn{Role: models.RoleUser, Text: req.Prompt},
			models.Turn{Role: models.RoleModel, Text: gen.Text},
		)
		outcome = answer(gen)
	}

	doc := s.textDocument(req)
	chunks := s.textChunks(req.Prompt)
	doc.ChunkCount = len(chunks)
	s.recordDocument(ctx, doc, chunks)
	s.recordQuery(ctx, &models.QueryRecord{
		DocumentID: doc.ID,
		SessionID:  req.SessionID,
		Kind:       models.DocumentText,
		QueryText:  req.Prompt,
	}, started, outcome)

	s.logger.Info().
		Str("session_id", req.SessionID).
		Int("history", len(history)).
		Str("status", string(outcome.Status)).
		Msg("Text request completed")

	return outcome
}

func (s *Service) textDocument(req TextRequest) *models.DocumentRecord {
	return &models.DocumentRecord{
		ID:            common.NewRecordID("doc"),
		SessionID:     req.SessionID,
		Kind:          models.DocumentText,
		FileSize:      int64(len(req.Prompt)),
		FileHash:      common.HashBytes([]byte(req.Prompt)),
		MIMEType:      "text/plain",
		ContentLength: len([]rune(req.Prompt)),
		LineCount:     strings.Count(req.Prompt, "\n") + 1,
		WordCount:     len(strings.Fields(req.Prompt)),
		CreatedAt:     s.now(),
	}
}

// textChunks splits long prompts so recorded text can be cited by line range
func (s *Service) textChunks(prompt string) []models.Chunk {
	chunks, err := chunker.Split(prompt, s.options.ChunkSize, s.options.ChunkOverlap)
	if err != nil || len(chunks) < 2 {
		return nil
	}
	chunker.Annotate(chunks, chunker.LineLocator(prompt))
	return chunks
}
