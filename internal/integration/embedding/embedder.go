// Package embedding turns text into vectors for the retrieval index.
package embedding

import (
	"fmt"

	"github.com/futig/docchat-backend/internal/entity"
)

// checkVectors makes sure every input got a non-empty vector of one dimension.
func checkVectors(vectors [][]float32, want int) error {
	dim := want
	for i, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("%w: missing embedding for input %d", entity.ErrEmbeddingService, i)
		}
		if dim == 0 {
			dim = len(v)
		}
		if len(v) != dim {
			return fmt.Errorf("%w: embedding dimension mismatch: expected %d, got %d",
				entity.ErrEmbeddingService, dim, len(v))
		}
	}
	return nil
}
