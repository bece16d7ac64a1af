package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/docchat/internal/interfaces"
	"github.com/ternarybob/docchat/internal/models"
	"github.com/ternarybob/docchat/internal/services/llm"
)

func TestText_TwoTurnConversation(t *testing.T) {
	f := newFixture(defaultOptions())
	ctx := context.Background()

	first := f.service.Text(ctx, TextRequest{SessionID: "s1", Prompt: "Hi"})
	require.Equal(t, models.StatusOK, first.Status)
	assert.Equal(t, "echo: Hi", first.Text)

	history := f.store.History("s1")
	require.Len(t, history, 2, "one exchange recorded")
	assert.Equal(t, models.Turn{Role: models.RoleUser, Text: "Hi"}, history[0])
	assert.Equal(t, models.Turn{Role: models.RoleModel, Text: "echo: Hi"}, history[1])

	second := f.service.Text(ctx, TextRequest{SessionID: "s1", Prompt: "What did I just say?"})
	require.Equal(t, models.StatusOK, second.Status)

	req := f.generator.last()
	require.Len(t, req.History, 2)
	assert.Equal(t, "Hi", req.History[0].Text)
	assert.Len(t, f.store.History("s1"), 4)
}

func TestText_SystemPromptComesFirst(t *testing.T) {
	f := newFixture(defaultOptions())

	f.service.Text(context.Background(), TextRequest{SessionID: "s1", SystemPrompt: "Be brief", Prompt: "Hello"})

	req := f.generator.last()
	require.Len(t, req.Parts, 2)
	assert.Equal(t, models.PartSystem, req.Parts[0].Kind)
	assert.Equal(t, "Be brief", req.Parts[0].Text)
	assert.Equal(t, models.PartText, req.Parts[1].Kind)
	assert.Equal(t, "Hello", req.Parts[1].Text)
}

func TestText_BlockedDoesNotAppend(t *testing.T) {
	f := newFixture(defaultOptions())
	f.generator.result = &models.Generation{Blocked: true, BlockReason: "SAFETY"}

	outcome := f.service.Text(context.Background(), TextRequest{SessionID: "s1", Prompt: "something"})

	assert.Equal(t, models.StatusOK, outcome.Status)
	assert.Equal(t, MessageBlocked, outcome.Text)
	assert.Empty(t, f.store.History("s1"))
}

func TestText_IdenticalCallsBothRecorded(t *testing.T) {
	f := newFixture(defaultOptions())
	req := TextRequest{SessionID: "s1", SystemPrompt: "sys", Prompt: "same question"}

	a := f.service.Text(context.Background(), req)
	b := f.service.Text(context.Background(), req)

	assert.Equal(t, a, b)
	history := f.store.History("s1")
	assert.Len(t, history, 4, "two exchanges, not deduplicated")
	assert.Equal(t, history[0], history[2])
	assert.Equal(t, history[1], history[3])
}

func TestText_ProviderErrorIsTransient(t *testing.T) {
	f := newFixture(defaultOptions())
	f.generator.err = fmt.Errorf("%w: 503 unavailable", interfaces.ErrGeneration)

	outcome := f.service.Text(context.Background(), TextRequest{SessionID: "s1", Prompt: "hello"})

	assert.Equal(t, models.StatusTransientError, outcome.Status)
	assert.Equal(t, MessageTransient, outcome.Text)
	assert.NotContains(t, outcome.Text, "503")
	assert.Empty(t, f.store.History("s1"))
}

func TestText_TimeoutLeavesHistoryUntouched(t *testing.T) {
	f := newFixture(defaultOptions())
	f.store.Append("s1", models.Turn{Role: models.RoleUser, Text: "earlier"})
	f.generator.err = fmt.Errorf("%w: %w", interfaces.ErrGeneration, context.DeadlineExceeded)

	outcome := f.service.Text(context.Background(), TextRequest{SessionID: "s1", Prompt: "hello"})

	assert.Equal(t, models.StatusTransientError, outcome.Status)
	assert.Len(t, f.store.History("s1"), 1)
}

func TestText_UnconfiguredProvider(t *testing.T) {
	f := newFixture(defaultOptions())
	f.service.generator = llm.Unconfigured{
		Err: fmt.Errorf("GEMINI_API_KEY not configured: %w", interfaces.ErrProviderNotConfigured),
	}

	outcome := f.service.Text(context.Background(), TextRequest{SessionID: "s1", Prompt: "hello"})

	assert.Equal(t, models.StatusConfigError, outcome.Status)
	assert.Contains(t, outcome.Text, "GEMINI_API_KEY not configured")
}

func TestText_MissingFields(t *testing.T) {
	f := newFixture(defaultOptions())

	for _, req := range []TextRequest{
		{SessionID: "", Prompt: "hi"},
		{SessionID: "s1", Prompt: "   "},
	} {
		outcome := f.service.Text(context.Background(), req)
		assert.Equal(t, models.StatusClientError, outcome.Status)
		assert.Contains(t, outcome.Text, "missing required field")
	}
	assert.Equal(t, 0, f.generator.calls(), "input errors never reach the provider")
}

func TestText_RecordsDocumentAndQuery(t *testing.T) {
	f := newFixture(defaultOptions())

	f.service.Text(context.Background(), TextRequest{SessionID: "s1", Prompt: "one two\nthree"})

	require.Len(t, f.recorder.documents, 1)
	doc := f.recorder.documents[0]
	assert.Equal(t, models.DocumentText, doc.Kind)
	assert.Equal(t, 2, doc.LineCount)
	assert.Equal(t, 3, doc.WordCount)

	require.Len(t, f.recorder.queries, 1)
	query := f.recorder.queries[0]
	assert.Equal(t, doc.ID, query.DocumentID)
	assert.Equal(t, "s1", query.SessionID)
	assert.Equal(t, models.StatusOK, query.Status)
	assert.Equal(t, "echo: one two\nthree", query.ResponseText)
}

func TestText_RecorderFailureIsIgnored(t *testing.T) {
	f := newFixture(defaultOptions())
	f.recorder.err = errors.New("disk full")

	outcome := f.service.Text(context.Background(), TextRequest{SessionID: "s1", Prompt: "hi"})

	assert.Equal(t, models.StatusOK, outcome.Status)
	assert.Len(t, f.store.History("s1"), 2)
}

func TestText_LongPromptRecordsLineChunks(t *testing.T) {
	f := newFixture(Options{ChunkSize: 20, ChunkOverlap: 4, TopK: 4})
	prompt := "first line here\nsecond line here\nthird line here"

	f.service.Text(context.Background(), TextRequest{SessionID: "s1", Prompt: prompt})

	require.Len(t, f.recorder.documents, 1)
	doc := f.recorder.documents[0]
	chunks := f.recorder.chunks[doc.ID]
	require.NotEmpty(t, chunks)
	assert.Equal(t, len(chunks), doc.ChunkCount)
	assert.Equal(t, "line 1", chunks[0].Locator)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status models.Status
		text   string
	}{
		{"nil", nil, models.StatusOK, ""},
		{"unreadable pdf", fmt.Errorf("x: %w", interfaces.ErrUnreadablePDF), models.StatusClientError, MessageUnreadablePDF},
		{"bad image", fmt.Errorf("x: %w", interfaces.ErrUnsupportedImage), models.StatusClientError, MessageUnsupportedImage},
		{"missing field", fmt.Errorf("%w: prompt", interfaces.ErrMissingField), models.StatusClientError, "missing required field: prompt"},
		{"empty input", interfaces.ErrEmptyInput, models.StatusClientError, interfaces.ErrEmptyInput.Error()},
		{"embedding", fmt.Errorf("%w: %w", interfaces.ErrIndexBuild, interfaces.ErrEmbeddingService), models.StatusTransientError, MessageTransient},
		{"generation", interfaces.ErrGeneration, models.StatusTransientError, MessageTransient},
		{"unknown", errors.New("boom"), models.StatusTransientError, MessageTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := Classify(tt.err)
			assert.Equal(t, tt.status, outcome.Status)
			assert.Equal(t, tt.text, outcome.Text)
		})
	}

	config := Classify(fmt.Errorf("%w: %w", interfaces.ErrIndexBuild, fmt.Errorf("GEMINI_API_KEY not configured: %w", interfaces.ErrProviderNotConfigured)))
	assert.Equal(t, models.StatusConfigError, config.Status)
}
