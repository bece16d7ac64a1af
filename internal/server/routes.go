package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	// Question answering
	api.HandleFunc("/text", s.app.QueryHandler.TextHandler).Methods(http.MethodPost)
	api.HandleFunc("/image", s.app.QueryHandler.ImageHandler).Methods(http.MethodPost)
	api.HandleFunc("/pdf", s.app.QueryHandler.PDFHandler).Methods(http.MethodPost)

	// Sessions
	api.HandleFunc("/sessions/{id}", s.app.SessionHandler.HistoryHandler).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", s.app.SessionHandler.DeleteHandler).Methods(http.MethodDelete)
	api.HandleFunc("/sessions/{id}/transcript", s.app.SessionHandler.TranscriptHandler).Methods(http.MethodGet)

	// Recorded metadata
	api.HandleFunc("/documents", s.app.DocumentHandler.ListHandler).Methods(http.MethodGet)
	api.HandleFunc("/documents/{id}", s.app.DocumentHandler.GetHandler).Methods(http.MethodGet)
	api.HandleFunc("/documents/{id}/queries", s.app.DocumentHandler.QueriesHandler).Methods(http.MethodGet)

	// System
	api.HandleFunc("/health", s.app.SystemHandler.HealthHandler).Methods(http.MethodGet)
	api.HandleFunc("/version", s.app.SystemHandler.VersionHandler).Methods(http.MethodGet)

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	return r
}
