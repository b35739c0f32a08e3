// Package apierr maps domain errors to HTTP responses.
package apierr

import (
	"context"
	"errors"
	"net/http"

	"github.com/futig/docchat-backend/internal/entity"
	"github.com/futig/docchat-backend/internal/pkg/response"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

const NoDocumentsDetail = "No documents found. Please upload documents first."

// Classify returns the status code and client-facing detail for err.
func Classify(err error) (int, string) {
	switch {
	case errors.Is(err, entity.ErrNoDocumentsIndexed):
		return http.StatusNotFound, NoDocumentsDetail
	case errors.Is(err, entity.ErrDocumentNotFound):
		return http.StatusNotFound, "Document not found"
	case errors.Is(err, entity.ErrSessionNotFound):
		return http.StatusNotFound, "Session not found"

	case errors.Is(err, entity.ErrEmptyMessage),
		errors.Is(err, entity.ErrInvalidExtension),
		errors.Is(err, entity.ErrFileTooLarge),
		errors.Is(err, entity.ErrTotalSizeTooLarge),
		errors.Is(err, entity.ErrTooManyFiles),
		errors.Is(err, entity.ErrInvalidFile),
		errors.Is(err, entity.ErrMissingField),
		errors.Is(err, entity.ErrInvalidFormat),
		errors.Is(err, entity.ErrInvalidParameter):
		return http.StatusBadRequest, err.Error()

	case errors.Is(err, entity.ErrUnsupportedFormat), errors.Is(err, entity.ErrDecodeFailed):
		return http.StatusUnprocessableEntity, err.Error()

	case errors.Is(err, entity.ErrDuplicateName),
		errors.Is(err, entity.ErrDuplicateEmptySession),
		errors.Is(err, entity.ErrEmbeddingModelMismatch):
		return http.StatusConflict, err.Error()

	case errors.Is(err, entity.ErrEmbeddingService):
		return http.StatusServiceUnavailable, "Embedding service is unavailable, please retry later"
	case errors.Is(err, entity.ErrGenerationService):
		return http.StatusServiceUnavailable, "Generation service is unavailable, please retry later"

	case errors.Is(err, entity.ErrStorageFull):
		return http.StatusInsufficientStorage, "Document storage is full"

	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// Respond logs err and writes its {"detail"} response.
func Respond(ctx context.Context, w http.ResponseWriter, err error) {
	status, detail := Classify(err)

	switch {
	case errors.Is(err, context.Canceled):
		ctxzap.Info(ctx, "request canceled by client", zap.Error(err))
	case status >= http.StatusInternalServerError:
		ctxzap.Error(ctx, "request failed", zap.Int("status", status), zap.Error(err))
	default:
		ctxzap.Warn(ctx, "request rejected", zap.Int("status", status), zap.Error(err))
	}

	response.Error(w, status, detail)
}
