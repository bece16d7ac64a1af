package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docchat/internal/interfaces"
)

// DocumentHandler serves recorded document and query metadata
type DocumentHandler struct {
	metadata interfaces.MetadataStorage
	logger   arbor.ILogger
}

// NewDocumentHandler creates a new DocumentHandler. metadata may be nil.
func NewDocumentHandler(metadata interfaces.MetadataStorage, logger arbor.ILogger) *DocumentHandler {
	return &DocumentHandler{
		metadata: metadata,
		logger:   logger,
	}
}

func (h *DocumentHandler) available(w http.ResponseWriter) bool {
	if h.metadata == nil {
		WriteError(w, http.StatusServiceUnavailable, "Metadata storage is disabled")
		return false
	}
	return true
}

// ListHandler handles GET /api/documents?session_id=
func (h *DocumentHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) || !h.available(w) {
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		WriteError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	docs, err := h.metadata.ListDocuments(r.Context(), sessionID)
	if err != nil {
		h.logger.Error().Err(err).Str("session_id", sessionID).Msg("Failed to list documents")
		WriteError(w, http.StatusInternalServerError, "Failed to list documents")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"documents":  docs,
		"count":      len(docs),
	})
}

// GetHandler handles GET /api/documents/{id} and includes the document's chunks
func (h *DocumentHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) || !h.available(w) {
		return
	}

	id := mux.Vars(r)["id"]
	doc, err := h.metadata.GetDocument(r.Context(), id)
	if errors.Is(err, interfaces.ErrRecordNotFound) {
		WriteError(w, http.StatusNotFound, "Document not found")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("document_id", id).Msg("Failed to get document")
		WriteError(w, http.StatusInternalServerError, "Failed to get document")
		return
	}

	chunks, err := h.metadata.ListChunks(r.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Str("document_id", id).Msg("Failed to list chunks")
		WriteError(w, http.StatusInternalServerError, "Failed to list chunks")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"document": doc,
		"chunks":   chunks,
	})
}

// QueriesHandler handles GET /api/documents/{id}/queries
func (h *DocumentHandler) QueriesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) || !h.available(w) {
		return
	}

	id := mux.Vars(r)["id"]
	if _, err := h.metadata.GetDocument(r.Context(), id); err != nil {
		if errors.Is(err, interfaces.ErrRecordNotFound) {
			WriteError(w, http.StatusNotFound, "Document not found")
			return
		}
		h.logger.Error().Err(err).Str("document_id", id).Msg("Failed to get document")
		WriteError(w, http.StatusInternalServerError, "Failed to get document")
		return
	}

	queries, err := h.metadata.ListQueries(r.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Str("document_id", id).Msg("Failed to list queries")
		WriteError(w, http.StatusInternalServerError, "Failed to list queries")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"document_id": id,
		"queries":     queries,
		"count":       len(queries),
	})
}
