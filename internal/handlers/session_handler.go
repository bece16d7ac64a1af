package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docchat/internal/interfaces"
	"github.com/ternarybob/docchat/internal/models"
)

// TranscriptRenderer renders a session's history as a document
type TranscriptRenderer interface {
	Render(sessionID string, history []models.Turn, generatedAt time.Time) ([]byte, error)
}

// SessionHandler manages conversation sessions
type SessionHandler struct {
	sessions    interfaces.SessionStore
	metadata    interfaces.MetadataStorage
	transcripts TranscriptRenderer
	logger      arbor.ILogger
}

// NewSessionHandler creates a new SessionHandler. metadata may be nil when
// record keeping is disabled.
func NewSessionHandler(sessions interfaces.SessionStore, metadata interfaces.MetadataStorage, transcripts TranscriptRenderer, logger arbor.ILogger) *SessionHandler {
	return &SessionHandler{
		sessions:    sessions,
		metadata:    metadata,
		transcripts: transcripts,
		logger:      logger,
	}
}

// DeleteHandler handles DELETE /api/sessions/{id}. History and the cached
// index are dropped; ?records=true also deletes the session's metadata.
func (h *SessionHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}

	sessionID := mux.Vars(r)["id"]
	existed := h.sessions.Delete(sessionID)

	response := map[string]interface{}{
		"status":     "success",
		"session_id": sessionID,
		"existed":    existed,
	}

	if r.URL.Query().Get("records") == "true" && h.metadata != nil {
		deleted, err := h.metadata.DeleteSession(r.Context(), sessionID)
		if err != nil {
			h.logger.Error().Err(err).Str("session_id", sessionID).Msg("Failed to delete session records")
			WriteError(w, http.StatusInternalServerError, "Failed to delete session records")
			return
		}
		response["documents_deleted"] = deleted
	}

	h.logger.Info().Str("session_id", sessionID).Bool("existed", existed).Msg("Session deleted")
	WriteJSON(w, http.StatusOK, response)
}

// HistoryHandler handles GET /api/sessions/{id}
func (h *SessionHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	sessionID := mux.Vars(r)["id"]
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"history":    h.sessions.History(sessionID),
	})
}

// TranscriptHandler handles GET /api/sessions/{id}/transcript
func (h *SessionHandler) TranscriptHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	sessionID := mux.Vars(r)["id"]
	history := h.sessions.History(sessionID)
	if len(history) == 0 {
		WriteError(w, http.StatusNotFound, "Session has no history")
		return
	}

	data, err := h.transcripts.Render(sessionID, history, time.Now())
	if err != nil {
		h.logger.Error().Err(err).Str("session_id", sessionID).Msg("Failed to render transcript")
		WriteError(w, http.StatusInternalServerError, "Failed to render transcript")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "transcript-"+sessionID+".pdf"))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
