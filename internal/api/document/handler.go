package document

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/futig/docchat-backend/internal/api/apierr"
	"github.com/futig/docchat-backend/internal/config"
	"github.com/futig/docchat-backend/internal/entity"
	"github.com/futig/docchat-backend/internal/pkg/logger"
	"github.com/futig/docchat-backend/internal/pkg/response"
	"github.com/futig/docchat-backend/internal/pkg/validator"
	docusecase "github.com/futig/docchat-backend/internal/usecase/document"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// multipartOverhead covers form boundaries and part headers on top of the file limits.
const multipartOverhead = 1 << 20

type Handler struct {
	usecase   DocumentUsecase
	cfg       config.FileUploadConfig
	validator *validator.Validator
}

func NewHandler(
	usecase DocumentUsecase,
	cfg config.FileUploadConfig,
	validator *validator.Validator,
) *Handler {
	return &Handler{
		usecase:   usecase,
		cfg:       cfg,
		validator: validator,
	}
}

// ListDocuments handles GET /documents/list
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "ListDocuments")

	docs, err := h.usecase.List(ctx)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	ctxzap.Debug(ctx, "documents listed", zap.Int("count", len(docs)))

	response.Success(w, toListDocumentsResponse(docs))
}

// UploadDocument handles POST /documents/upload
func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "UploadDocument")

	files, ok := h.parseFiles(ctx, w, r, "file")
	if !ok {
		return
	}
	if len(files) != 1 {
		h.respondError(ctx, w, http.StatusBadRequest, "exactly one file is expected in field 'file'", nil)
		return
	}

	if err := h.validator.ValidateFile(files[0]); err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	upload, err := readUpload(files[0])
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	ctxzap.Info(ctx, "uploading document",
		zap.String("filename", upload.Filename),
		zap.Int("size_bytes", len(upload.Content)),
	)

	doc, chunks, err := h.usecase.Upload(ctx, upload)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	response.Success(w, entity.UploadResponse{
		Message:    "Document uploaded and processed successfully",
		Filename:   doc.Filename,
		Status:     docusecase.UploadStatusSuccess,
		DocumentID: doc.ID,
		ChunkCount: chunks,
	})
}

// UploadMultipleDocuments handles POST /documents/upload-multiple.
// Invalid files are reported in place; the rest are ingested concurrently.
func (h *Handler) UploadMultipleDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "UploadMultipleDocuments")

	files, ok := h.parseFiles(ctx, w, r, "files")
	if !ok {
		return
	}

	if err := h.validator.ValidateUpload(files); err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	results := make([]entity.UploadResult, len(files))
	uploads := make([]entity.UploadFile, 0, len(files))
	positions := make([]int, 0, len(files))

	for i, fh := range files {
		err := h.validator.ValidateFile(fh)
		var upload entity.UploadFile
		if err == nil {
			upload, err = readUpload(fh)
		}
		if err != nil {
			results[i] = entity.UploadResult{
				Filename: fh.Filename,
				Status:   docusecase.UploadStatusError,
				Message:  err.Error(),
			}
			continue
		}
		uploads = append(uploads, upload)
		positions = append(positions, i)
	}

	ctxzap.Info(ctx, "uploading documents",
		zap.Int("file_count", len(files)),
		zap.Int("accepted", len(uploads)),
	)

	for j, res := range h.usecase.UploadMany(ctx, uploads) {
		results[positions[j]] = res
	}

	response.Success(w, entity.UploadMultipleResponse{Results: results})
}

// DownloadDocument handles GET /documents/download/{filename}
func (h *Handler) DownloadDocument(w http.ResponseWriter, r *http.Request) {
	filename, err := filenameParam(r)
	if err != nil {
		h.respondError(logger.WithAction(r.Context(), "DownloadDocument"), w, http.StatusBadRequest, "invalid filename in path", err)
		return
	}
	ctx := logger.AddFields(r.Context(),
		zap.String("action", "DownloadDocument"),
		zap.String("filename", filename),
	)

	doc, data, err := h.usecase.Download(ctx, filename)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	response.Attachment(w, doc.ContentType, doc.Filename, data)
}

// DeleteDocument handles DELETE /documents/delete/{filename}
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	filename, err := filenameParam(r)
	if err != nil {
		h.respondError(logger.WithAction(r.Context(), "DeleteDocument"), w, http.StatusBadRequest, "invalid filename in path", err)
		return
	}
	ctx := logger.AddFields(r.Context(),
		zap.String("action", "DeleteDocument"),
		zap.String("filename", filename),
	)

	if err = h.usecase.Delete(ctx, filename); err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	ctxzap.Info(ctx, "document deleted")

	response.Success(w, entity.MessageResponse{
		Message: fmt.Sprintf("File %s deleted successfully", filename),
	})
}

// ReprocessDocuments handles POST /documents/reprocess
func (h *Handler) ReprocessDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "ReprocessDocuments")

	result, err := h.usecase.Reprocess(ctx)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	response.Success(w, toReprocessResponse(result))
}

// parseFiles reads the multipart form and returns the files of field.
// It writes the error response itself and reports false on failure.
func (h *Handler) parseFiles(ctx context.Context, w http.ResponseWriter, r *http.Request, field string) ([]*multipart.FileHeader, bool) {
	if h.cfg.MaxTotalSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxTotalSize+multipartOverhead)
	}

	if err := r.ParseMultipartForm(h.cfg.MaxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondError(ctx, w, http.StatusBadRequest, "upload is too large", err)
			return nil, false
		}
		h.respondError(ctx, w, http.StatusBadRequest, "invalid form data", err)
		return nil, false
	}

	files := r.MultipartForm.File[field]
	if len(files) == 0 {
		h.respondError(ctx, w, http.StatusBadRequest, fmt.Sprintf("no file provided in field '%s'", field), nil)
		return nil, false
	}

	return files, true
}

func (h *Handler) respondError(ctx context.Context, w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		ctxzap.Warn(ctx, message, zap.Error(err))
	} else {
		ctxzap.Warn(ctx, message)
	}
	response.Error(w, status, message)
}

func (h *Handler) handleUsecaseError(ctx context.Context, w http.ResponseWriter, err error) {
	apierr.Respond(ctx, w, err)
}
