package handlers

import (
	"net/http"

	"github.com/ternarybob/docchat/internal/common"
)

// SessionCounter reports how many sessions are live
type SessionCounter interface {
	Len() int
}

// SystemHandler serves health and version information
type SystemHandler struct {
	sessions       SessionCounter
	provider       string
	storageEnabled bool
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(sessions SessionCounter, provider string, storageEnabled bool) *SystemHandler {
	return &SystemHandler{
		sessions:       sessions,
		provider:       provider,
		storageEnabled: storageEnabled,
	}
}

// HealthHandler handles GET /api/health
func (h *SystemHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "ok",
		"provider":        h.provider,
		"sessions":        h.sessions.Len(),
		"storage_enabled": h.storageEnabled,
	})
}

// VersionHandler handles GET /api/version
func (h *SystemHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, common.GetVersionInfo())
}
