package entity

import "errors"

// Domain errors
var (
	// Document errors
	ErrDocumentNotFound  = errors.New("document not found")
	ErrDuplicateName     = errors.New("document with this name already exists")
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrDecodeFailed      = errors.New("failed to extract document text")
	ErrStorageFull       = errors.New("document storage is full")

	// File upload errors
	ErrInvalidFile       = errors.New("invalid file")
	ErrFileTooLarge      = errors.New("file too large")
	ErrTooManyFiles      = errors.New("too many files")
	ErrInvalidExtension  = errors.New("invalid file extension")
	ErrTotalSizeTooLarge = errors.New("total file size too large")

	// Index errors
	ErrNoDocumentsIndexed     = errors.New("no documents indexed")
	ErrEmbeddingModelMismatch = errors.New("embedding model mismatch")

	// External service errors, retryable by the caller
	ErrEmbeddingService  = errors.New("embedding service error")
	ErrGenerationService = errors.New("generation service error")

	// Session errors
	ErrSessionNotFound       = errors.New("session not found")
	ErrDuplicateEmptySession = errors.New("an empty chat session is already open")
	ErrEmptyMessage          = errors.New("message cannot be empty")

	// Validation errors
	ErrMissingField     = errors.New("required field is missing")
	ErrInvalidFormat    = errors.New("invalid format")
	ErrInvalidParameter = errors.New("invalid parameter")
)
