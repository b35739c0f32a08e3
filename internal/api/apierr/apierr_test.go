package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/futig/docchat-backend/internal/entity"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{err: entity.ErrNoDocumentsIndexed, status: http.StatusNotFound},
		{err: fmt.Errorf("delete: %w", entity.ErrDocumentNotFound), status: http.StatusNotFound},
		{err: entity.ErrSessionNotFound, status: http.StatusNotFound},
		{err: entity.ErrEmptyMessage, status: http.StatusBadRequest},
		{err: fmt.Errorf("%w: .exe", entity.ErrInvalidExtension), status: http.StatusBadRequest},
		{err: entity.ErrFileTooLarge, status: http.StatusBadRequest},
		{err: fmt.Errorf("ingest: %w", entity.ErrDecodeFailed), status: http.StatusUnprocessableEntity},
		{err: entity.ErrUnsupportedFormat, status: http.StatusUnprocessableEntity},
		{err: entity.ErrDuplicateName, status: http.StatusConflict},
		{err: entity.ErrDuplicateEmptySession, status: http.StatusConflict},
		{err: entity.ErrEmbeddingModelMismatch, status: http.StatusConflict},
		{err: fmt.Errorf("embed query: %w", entity.ErrEmbeddingService), status: http.StatusServiceUnavailable},
		{err: entity.ErrGenerationService, status: http.StatusServiceUnavailable},
		{err: entity.ErrStorageFull, status: http.StatusInsufficientStorage},
		{err: errors.New("boom"), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			status, detail := Classify(tt.err)
			assert.Equal(t, tt.status, status)
			assert.NotEmpty(t, detail)
		})
	}
}

func TestClassify_NoDocumentsDetail(t *testing.T) {
	_, detail := Classify(fmt.Errorf("search index: %w", entity.ErrNoDocumentsIndexed))
	assert.Equal(t, "No documents found. Please upload documents first.", detail)
}

func TestClassify_InternalErrorsAreNotLeaked(t *testing.T) {
	_, detail := Classify(errors.New("pq: password authentication failed"))
	assert.Equal(t, "Internal server error", detail)
}
