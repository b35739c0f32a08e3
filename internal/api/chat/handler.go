package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/futig/docchat-backend/internal/api/apierr"
	"github.com/futig/docchat-backend/internal/entity"
	"github.com/futig/docchat-backend/internal/pkg/logger"
	"github.com/futig/docchat-backend/internal/pkg/response"
	"github.com/futig/docchat-backend/internal/pkg/validator"
	"github.com/go-chi/chi/v5"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

const maxBodySize = 1 << 20

type Handler struct {
	usecase ChatUsecase
}

func NewHandler(usecase ChatUsecase) *Handler {
	return &Handler{
		usecase: usecase,
	}
}

// Query handles POST /chat/query
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "Query")

	var req entity.QueryRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		h.respondError(ctx, w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	ctxzap.Debug(ctx, "processing query", zap.Int("message_length", len(req.Message)))

	answer, err := h.usecase.Query(ctx, req)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	response.Success(w, toQueryResponse(answer))
}

// NewSession handles POST /chat/new-session. The body is optional.
func (h *Handler) NewSession(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "NewSession")

	var req entity.NewSessionRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		h.respondError(ctx, w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	session, err := h.usecase.NewSession(ctx, req)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	response.Success(w, entity.NewSessionResponse{
		SessionID: session.ID,
		Title:     session.Title,
		Status:    statusSuccess,
	})
}

// ListSessions handles GET /chat/sessions
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "ListSessions")

	sessions, err := h.usecase.ListSessions(ctx)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	response.Success(w, toListSessionsResponse(sessions))
}

// GetSession handles GET /chat/sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	ctx := logger.AddFields(r.Context(),
		zap.String("session_id", sessionID),
		zap.String("action", "GetSession"),
	)

	session, err := h.usecase.GetSession(ctx, sessionID)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	response.Success(w, toSessionDTO(session))
}

// ExportSession handles GET /chat/sessions/{id}/export?format=markdown|docx|pdf
func (h *Handler) ExportSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	ctx := logger.AddFields(r.Context(),
		zap.String("session_id", sessionID),
		zap.String("action", "ExportSession"),
	)

	format, err := validator.ParseExportFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	file, err := h.usecase.ExportSession(ctx, sessionID, format)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	ctxzap.Info(ctx, "session exported", zap.String("format", string(format)), zap.Int("size_bytes", len(file.Data)))

	response.Attachment(w, file.ContentType, file.Filename, file.Data)
}

// DeleteSession handles DELETE /chat/sessions/{id}
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	ctx := logger.AddFields(r.Context(),
		zap.String("session_id", sessionID),
		zap.String("action", "DeleteSession"),
	)

	if err := h.usecase.DeleteSession(ctx, sessionID); err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	response.Success(w, entity.MessageResponse{Message: "Session deleted successfully"})
}

// ClearHistory handles POST /chat/clear-history
func (h *Handler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "ClearHistory")

	deleted, err := h.usecase.ClearHistory(ctx)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	response.Success(w, entity.ClearHistoryResponse{
		Message: "Chat history cleared successfully",
		Deleted: deleted,
	})
}

// Status handles GET /chat/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "Status")

	status, err := h.usecase.Status(ctx)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	response.Success(w, toStatusResponse(status))
}

// RefreshVectorstore handles POST /chat/refresh-vectorstore
func (h *Handler) RefreshVectorstore(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "RefreshVectorstore")

	chunks, err := h.usecase.Refresh(ctx)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	response.Success(w, entity.RefreshResponse{
		Message:    "Vectorstore refreshed successfully",
		Status:     statusSuccess,
		ChunkCount: chunks,
	})
}

// Health handles GET /chat/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	response.Success(w, entity.HealthResponse{Status: "healthy"})
}

// decodeJSON decodes the request body into dst. With optional set an empty body is accepted.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, optional bool) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(dst)
	if errors.Is(err, io.EOF) {
		if optional {
			return nil
		}
		return fmt.Errorf("%w: request body", entity.ErrMissingField)
	}
	return err
}

func (h *Handler) respondError(ctx context.Context, w http.ResponseWriter, status int, message string, err error) {
	ctxzap.Warn(ctx, message, zap.Error(err))
	response.Error(w, status, message)
}

func (h *Handler) handleUsecaseError(ctx context.Context, w http.ResponseWriter, err error) {
	apierr.Respond(ctx, w, err)
}
