package chat

import (
	"context"

	"github.com/futig/docchat-backend/internal/entity"
)

type ChatUsecase interface {
	Query(ctx context.Context, req entity.QueryRequest) (*entity.Answer, error)
	NewSession(ctx context.Context, req entity.NewSessionRequest) (*entity.Session, error)
	ListSessions(ctx context.Context) ([]*entity.SessionSummary, error)
	GetSession(ctx context.Context, id string) (*entity.Session, error)
	DeleteSession(ctx context.Context, id string) error
	ClearHistory(ctx context.Context) (int, error)
	ExportSession(ctx context.Context, id string, format entity.ExportFormat) (*entity.ExportedFile, error)
	Status(ctx context.Context) (*entity.VectorStoreStatus, error)
	Refresh(ctx context.Context) (int, error)
}
