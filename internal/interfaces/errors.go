package interfaces

import "errors"

// Input errors. The request never reaches a provider.
var (
	ErrEmptyInput         = errors.New("input text is empty")
	ErrInvalidChunkParams = errors.New("invalid chunk size or overlap")
	ErrUnreadablePDF      = errors.New("unreadable PDF")
	ErrUnsupportedImage   = errors.New("unsupported image")
	ErrMissingField       = errors.New("missing required field")
)

// ErrProviderNotConfigured signals a deployment gap (missing key or model name)
var ErrProviderNotConfigured = errors.New("provider not configured")

// Provider errors
var (
	ErrEmbeddingService = errors.New("embedding service error")
	ErrGeneration       = errors.New("generation error")
	ErrIndexBuild       = errors.New("index build error")
)

// ErrRecordNotFound is returned when a metadata record does not exist
var ErrRecordNotFound = errors.New("record not found")
