package chat

import (
	"context"

	"github.com/futig/docchat-backend/internal/entity"
	"github.com/futig/docchat-backend/internal/index"
	"github.com/futig/docchat-backend/internal/pkg/formatter"
)

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	ModelTag() string
}

// Searcher is the read side of the embedding index.
type Searcher interface {
	Search(ctx context.Context, query []float32, k int, model string) ([]index.Hit, error)
	IsAvailable() bool
}

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Documents exposes the index maintenance operations owned by the document use case.
type Documents interface {
	Status(ctx context.Context) (*entity.VectorStoreStatus, error)
	Refresh(ctx context.Context) (int, error)
}

type FormatterFactory interface {
	Create(format entity.ExportFormat) (formatter.Formatter, error)
}
