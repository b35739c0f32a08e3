package embedding

import (
	"context"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Embedder is the provider contract wrapped by CachedEmbedder.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	ModelTag() string
}

// CachedEmbedder memoizes vectors per text, so repeated questions skip the provider.
type CachedEmbedder struct {
	next  Embedder
	cache *cache.Cache
}

func NewCachedEmbedder(next Embedder, ttl time.Duration) *CachedEmbedder {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &CachedEmbedder{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (c *CachedEmbedder) ModelTag() string {
	return c.next.ModelTag()
}

func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if v, ok := c.cache.Get(c.key(text)); ok {
			vectors[i] = v.([]float32)
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		ctxzap.Debug(ctx, "embedding cache hit", zap.Int("count", len(texts)))
		return vectors, nil
	}

	fresh, err := c.next.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}

	for j, v := range fresh {
		vectors[missingIdx[j]] = v
		c.cache.SetDefault(c.key(missing[j]), v)
	}

	return vectors, nil
}

func (c *CachedEmbedder) key(text string) string {
	return c.next.ModelTag() + "\x00" + text
}
