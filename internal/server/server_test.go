package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docchat/internal/app"
	"github.com/ternarybob/docchat/internal/common"
	"github.com/ternarybob/docchat/internal/handlers"
	"github.com/ternarybob/docchat/internal/models"
	"github.com/ternarybob/docchat/internal/services/pdf"
	"github.com/ternarybob/docchat/internal/services/pipeline"
	"github.com/ternarybob/docchat/internal/services/sessions"
)

// echoPipelines answers every request with the prompt it was given
type echoPipelines struct{}

func (echoPipelines) Text(ctx context.Context, req pipeline.TextRequest) models.Outcome {
	return models.Outcome{Text: "echo: " + req.Prompt, Status: models.StatusOK}
}

func (echoPipelines) Image(ctx context.Context, req pipeline.ImageRequest) models.Outcome {
	return models.Outcome{Text: "image", Status: models.StatusOK}
}

func (echoPipelines) PDF(ctx context.Context, req pipeline.PDFRequest) models.Outcome {
	return models.Outcome{Text: "pdf", Status: models.StatusOK}
}

func newTestServer(t *testing.T) (*Server, *sessions.Store) {
	t.Helper()

	logger := arbor.NewLogger()
	config := common.NewDefaultConfig()
	store := sessions.NewStore(0, 0, logger)

	application := &app.App{
		Config:          config,
		Logger:          logger,
		Sessions:        store,
		QueryHandler:    handlers.NewQueryHandler(echoPipelines{}, config.Uploads.MaxBytes, logger),
		SessionHandler:  handlers.NewSessionHandler(store, nil, pdf.NewTranscriptRenderer(logger), logger),
		DocumentHandler: handlers.NewDocumentHandler(nil, logger),
		SystemHandler:   handlers.NewSystemHandler(store, "gemini", false),
	}

	return New(application), store
}

func TestRoutes_Text(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/text", strings.NewReader(`{"session_id":"s1","prompt":"Hello"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"generated_text":"echo: Hello","status":"ok"}`, rec.Body.String())
}

func TestRoutes_MethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/text", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRoutes_UnknownPath(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nothing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoutes_SessionLifecycle(t *testing.T) {
	srv, store := newTestServer(t)
	store.Append("s1",
		models.Turn{Role: models.RoleUser, Text: "What is the refund policy?"},
		models.Turn{Role: models.RoleModel, Text: "Refunds are accepted within **30 days**."},
	)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/s1/transcript", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF"))

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/sessions/s1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"existed":true`)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/s1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"history":[]`)
}

func TestRoutes_DocumentsDisabled(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents?session_id=s1", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMiddleware_RequestID(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(requestIDHeader, "req-123")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get(requestIDHeader))
}

func TestMiddleware_CORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/pdf", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMiddleware_Recovery(t *testing.T) {
	srv, _ := newTestServer(t)

	handler := srv.recoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
