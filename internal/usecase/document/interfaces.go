package document

import (
	"context"

	"github.com/futig/docchat-backend/internal/entity"
)

type Extractor interface {
	Supports(filename string) bool
	Extract(ctx context.Context, filename string, data []byte) (string, error)
}

type Chunker interface {
	Split(documentID, text string) []entity.Chunk
}

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	ModelTag() string
}

// VectorIndex is the write side of the embedding index.
type VectorIndex interface {
	Upsert(embeddings ...entity.Embedding) error
	RemoveDocument(documentID string) int
	Rebuild(embeddings []entity.Embedding) error
	IsAvailable() bool
	Size() int
}
