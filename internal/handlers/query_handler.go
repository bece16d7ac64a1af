package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docchat/internal/models"
	"github.com/ternarybob/docchat/internal/services/pipeline"
)

// Pipelines is the orchestrator surface the query endpoints call
type Pipelines interface {
	Text(ctx context.Context, req pipeline.TextRequest) models.Outcome
	Image(ctx context.Context, req pipeline.ImageRequest) models.Outcome
	PDF(ctx context.Context, req pipeline.PDFRequest) models.Outcome
}

// QueryHandler decodes uploads and questions and hands them to the pipelines
type QueryHandler struct {
	pipelines Pipelines
	maxBytes  int64
	validate  *validator.Validate
	logger    arbor.ILogger
}

// NewQueryHandler creates a new QueryHandler. maxBytes bounds request bodies.
func NewQueryHandler(pipelines Pipelines, maxBytes int64, logger arbor.ILogger) *QueryHandler {
	return &QueryHandler{
		pipelines: pipelines,
		maxBytes:  maxBytes,
		validate:  newValidator(),
		logger:    logger,
	}
}

type textRequest struct {
	SessionID    string `json:"session_id" validate:"required"`
	SystemPrompt string `json:"system_prompt"`
	Prompt       string `json:"prompt" validate:"required"`
}

type imageForm struct {
	SessionID    string `json:"session_id" validate:"required"`
	SystemPrompt string `json:"system_prompt"`
	Prompt       string `json:"prompt"`
}

type pdfForm struct {
	SessionID string `json:"session_id" validate:"required"`
	Prompt    string `json:"prompt" validate:"required"`
}

// TextHandler handles POST /api/text
func (h *QueryHandler) TextHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	var req textRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeBodyError(w, err, "Invalid JSON body")
		return
	}
	req.SessionID = strings.TrimSpace(req.SessionID)

	if err := h.validate.Struct(req); err != nil {
		WriteOutcome(w, validationOutcome(err))
		return
	}

	outcome := h.pipelines.Text(r.Context(), pipeline.TextRequest{
		SessionID:    req.SessionID,
		SystemPrompt: req.SystemPrompt,
		Prompt:       req.Prompt,
	})
	WriteOutcome(w, outcome)
}

// ImageHandler handles POST /api/image (multipart: session_id, system_prompt, prompt, image)
func (h *QueryHandler) ImageHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if !h.parseMultipart(w, r) {
		return
	}

	form := imageForm{
		SessionID:    strings.TrimSpace(r.FormValue("session_id")),
		SystemPrompt: r.FormValue("system_prompt"),
		Prompt:       r.FormValue("prompt"),
	}
	if err := h.validate.Struct(form); err != nil {
		WriteOutcome(w, validationOutcome(err))
		return
	}

	data, fileName, err := readFormFile(r, "image")
	if errors.Is(err, http.ErrMissingFile) {
		WriteOutcome(w, models.Outcome{Text: "No image uploaded", Status: models.StatusClientError})
		return
	}
	if err != nil {
		h.writeBodyError(w, err, "Failed to read uploaded image")
		return
	}

	outcome := h.pipelines.Image(r.Context(), pipeline.ImageRequest{
		SessionID:    form.SessionID,
		SystemPrompt: form.SystemPrompt,
		Prompt:       form.Prompt,
		FileName:     fileName,
		Data:         data,
	})
	WriteOutcome(w, outcome)
}

// PDFHandler handles POST /api/pdf (multipart: session_id, prompt, pdf)
func (h *QueryHandler) PDFHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if !h.parseMultipart(w, r) {
		return
	}

	data, fileName, err := readFormFile(r, "pdf")
	if errors.Is(err, http.ErrMissingFile) {
		WriteOutcome(w, models.Outcome{Text: "No PDF uploaded", Status: models.StatusClientError})
		return
	}
	if err != nil {
		h.writeBodyError(w, err, "Failed to read uploaded PDF")
		return
	}

	form := pdfForm{
		SessionID: strings.TrimSpace(r.FormValue("session_id")),
		Prompt:    r.FormValue("prompt"),
	}
	if err := h.validate.Struct(form); err != nil {
		WriteOutcome(w, validationOutcome(err))
		return
	}

	outcome := h.pipelines.PDF(r.Context(), pipeline.PDFRequest{
		SessionID: form.SessionID,
		Prompt:    form.Prompt,
		FileName:  fileName,
		Data:      data,
	})
	WriteOutcome(w, outcome)
}

func (h *QueryHandler) parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		h.writeBodyError(w, err, "Invalid multipart form")
		return false
	}
	return true
}

// writeBodyError distinguishes an oversized body from a malformed one
func (h *QueryHandler) writeBodyError(w http.ResponseWriter, err error, message string) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		WriteError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Upload exceeds %d bytes", tooLarge.Limit))
		return
	}
	h.logger.Debug().Err(err).Msg(message)
	WriteError(w, http.StatusBadRequest, message)
}

func readFormFile(r *http.Request, field string) ([]byte, string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", err
	}
	return data, header.Filename, nil
}
