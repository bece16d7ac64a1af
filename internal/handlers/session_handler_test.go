package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docchat/internal/interfaces"
	"github.com/ternarybob/docchat/internal/models"
	"github.com/ternarybob/docchat/internal/services/sessions"
)

// mockMetadata implements interfaces.MetadataStorage for testing
type mockMetadata struct {
	documents     map[string]*models.DocumentRecord
	queries       map[string][]models.QueryRecord
	chunks        map[string][]models.ChunkRecord
	deletedFor    []string
	listDocsError error
}

func newMockMetadata() *mockMetadata {
	return &mockMetadata{
		documents: make(map[string]*models.DocumentRecord),
		queries:   make(map[string][]models.QueryRecord),
		chunks:    make(map[string][]models.ChunkRecord),
	}
}

func (m *mockMetadata) RecordDocument(ctx context.Context, doc *models.DocumentRecord) error {
	m.documents[doc.ID] = doc
	return nil
}

func (m *mockMetadata) RecordChunks(ctx context.Context, documentID string, chunks []models.Chunk) error {
	return nil
}

func (m *mockMetadata) RecordQuery(ctx context.Context, query *models.QueryRecord) error {
	m.queries[query.DocumentID] = append(m.queries[query.DocumentID], *query)
	return nil
}

func (m *mockMetadata) GetDocument(ctx context.Context, id string) (*models.DocumentRecord, error) {
	doc, ok := m.documents[id]
	if !ok {
		return nil, interfaces.ErrRecordNotFound
	}
	return doc, nil
}

func (m *mockMetadata) ListDocuments(ctx context.Context, sessionID string) ([]models.DocumentRecord, error) {
	if m.listDocsError != nil {
		return nil, m.listDocsError
	}
	var docs []models.DocumentRecord
	for _, doc := range m.documents {
		if doc.SessionID == sessionID {
			docs = append(docs, *doc)
		}
	}
	return docs, nil
}

func (m *mockMetadata) ListQueries(ctx context.Context, documentID string) ([]models.QueryRecord, error) {
	return m.queries[documentID], nil
}

func (m *mockMetadata) ListChunks(ctx context.Context, documentID string) ([]models.ChunkRecord, error) {
	return m.chunks[documentID], nil
}

func (m *mockMetadata) DeleteSession(ctx context.Context, sessionID string) (int, error) {
	m.deletedFor = append(m.deletedFor, sessionID)
	return 2, nil
}

// mockTranscripts returns a fixed document or an error
type mockTranscripts struct {
	err     error
	history []models.Turn
}

func (m *mockTranscripts) Render(sessionID string, history []models.Turn, generatedAt time.Time) ([]byte, error) {
	m.history = history
	if m.err != nil {
		return nil, m.err
	}
	return []byte("%PDF-transcript"), nil
}

func newTestSessionHandler(metadata interfaces.MetadataStorage, transcripts TranscriptRenderer) (*SessionHandler, *sessions.Store) {
	logger := arbor.NewLogger()
	store := sessions.NewStore(0, 0, logger)
	return NewSessionHandler(store, metadata, transcripts, logger), store
}

func sessionRequest(method, path, id string) *http.Request {
	return mux.SetURLVars(httptest.NewRequest(method, path, nil), map[string]string{"id": id})
}

func seedHistory(store *sessions.Store, id string) {
	store.Append(id,
		models.Turn{Role: models.RoleUser, Text: "Hello"},
		models.Turn{Role: models.RoleModel, Text: "Hi"},
	)
}

func TestHistoryHandler(t *testing.T) {
	handler, store := newTestSessionHandler(nil, &mockTranscripts{})
	seedHistory(store, "s1")

	rec := httptest.NewRecorder()
	handler.HistoryHandler(rec, sessionRequest(http.MethodGet, "/api/sessions/s1", "s1"))

	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		SessionID string        `json:"session_id"`
		History   []models.Turn `json:"history"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "s1", body.SessionID)
	require.Len(t, body.History, 2)
	assert.Equal(t, "Hi", body.History[1].Text)
}

func TestHistoryHandler_UnknownSessionIsEmpty(t *testing.T) {
	handler, _ := newTestSessionHandler(nil, &mockTranscripts{})

	rec := httptest.NewRecorder()
	handler.HistoryHandler(rec, sessionRequest(http.MethodGet, "/api/sessions/nope", "nope"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"session_id":"nope","history":[]}`, rec.Body.String())
}

func TestDeleteHandler(t *testing.T) {
	metadata := newMockMetadata()
	handler, store := newTestSessionHandler(metadata, &mockTranscripts{})
	seedHistory(store, "s1")

	rec := httptest.NewRecorder()
	handler.DeleteHandler(rec, sessionRequest(http.MethodDelete, "/api/sessions/s1", "s1"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success","session_id":"s1","existed":true}`, rec.Body.String())
	assert.Empty(t, store.History("s1"))
	assert.Empty(t, metadata.deletedFor)
}

func TestDeleteHandler_WithRecords(t *testing.T) {
	metadata := newMockMetadata()
	handler, store := newTestSessionHandler(metadata, &mockTranscripts{})
	seedHistory(store, "s1")

	rec := httptest.NewRecorder()
	handler.DeleteHandler(rec, sessionRequest(http.MethodDelete, "/api/sessions/s1?records=true", "s1"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success","session_id":"s1","existed":true,"documents_deleted":2}`, rec.Body.String())
	assert.Equal(t, []string{"s1"}, metadata.deletedFor)
}

func TestDeleteHandler_UnknownSession(t *testing.T) {
	handler, _ := newTestSessionHandler(nil, &mockTranscripts{})

	rec := httptest.NewRecorder()
	handler.DeleteHandler(rec, sessionRequest(http.MethodDelete, "/api/sessions/nope?records=true", "nope"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success","session_id":"nope","existed":false}`, rec.Body.String())
}

func TestTranscriptHandler(t *testing.T) {
	transcripts := &mockTranscripts{}
	handler, store := newTestSessionHandler(nil, transcripts)
	seedHistory(store, "s1")

	rec := httptest.NewRecorder()
	handler.TranscriptHandler(rec, sessionRequest(http.MethodGet, "/api/sessions/s1/transcript", "s1"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="transcript-s1.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-transcript", rec.Body.String())
	assert.Len(t, transcripts.history, 2)
}

func TestTranscriptHandler_NoHistory(t *testing.T) {
	handler, _ := newTestSessionHandler(nil, &mockTranscripts{})

	rec := httptest.NewRecorder()
	handler.TranscriptHandler(rec, sessionRequest(http.MethodGet, "/api/sessions/s1/transcript", "s1"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTranscriptHandler_RenderError(t *testing.T) {
	handler, store := newTestSessionHandler(nil, &mockTranscripts{err: errors.New("font missing")})
	seedHistory(store, "s1")

	rec := httptest.NewRecorder()
	handler.TranscriptHandler(rec, sessionRequest(http.MethodGet, "/api/sessions/s1/transcript", "s1"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "font missing")
}
