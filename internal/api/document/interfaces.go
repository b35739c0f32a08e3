package document

import (
	"context"

	"github.com/futig/docchat-backend/internal/entity"
)

type DocumentUsecase interface {
	Upload(ctx context.Context, file entity.UploadFile) (*entity.Document, int, error)
	UploadMany(ctx context.Context, files []entity.UploadFile) []entity.UploadResult
	List(ctx context.Context) ([]*entity.Document, error)
	Download(ctx context.Context, filename string) (*entity.Document, []byte, error)
	Delete(ctx context.Context, filename string) error
	Reprocess(ctx context.Context) (*entity.ReprocessResult, error)
}
