package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"strings"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

const DefaultHashDimension = 256

// HashEmbedder is a local, deterministic embedder based on feature hashing of word tokens.
// It needs no external service and serves as the mock provider and as the embedder in tests.
type HashEmbedder struct {
	dim          int
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
	logger       *zap.Logger
}

func NewHashEmbedder(dim int, logger *zap.Logger) *HashEmbedder {
	if dim <= 0 {
		dim = DefaultHashDimension
	}
	return &HashEmbedder{
		dim:          dim,
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`),
		stopwords:    defaultStopwords(),
		logger:       logger,
	}
}

func (e *HashEmbedder) ModelTag() string {
	return fmt.Sprintf("hash-v1/%d", e.dim)
}

func (e *HashEmbedder) Dimension() int { return e.dim }

func (e *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	ctxzap.Debug(ctx, "[MOCK] embedding texts with feature hashing", zap.Int("count", len(texts)))

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vectors[i] = e.embed(text)
	}
	return vectors, nil
}

func (e *HashEmbedder) embed(text string) []float32 {
	acc := make([]float64, e.dim)

	tokens := e.tokenize(text)
	for _, tok := range tokens {
		idx, sign := e.bucket(tok)
		acc[idx] += sign
	}
	// Bigrams sharpen phrase matches without drowning out single terms.
	for i := 1; i < len(tokens); i++ {
		idx, sign := e.bucket(tokens[i-1] + " " + tokens[i])
		acc[idx] += 0.5 * sign
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	vec := make([]float32, e.dim)
	if norm == 0 {
		// Keep the vector non-zero so it stays comparable.
		vec[0] = 1
		return vec
	}
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec
}

func (e *HashEmbedder) bucket(token string) (int, float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(token))
	sum := h.Sum64()

	sign := 1.0
	if sum>>63 == 1 {
		sign = -1
	}
	return int(sum % uint64(e.dim)), sign
}

func (e *HashEmbedder) tokenize(text string) []string {
	raw := e.tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := e.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by",
		"with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those",
		"from", "so", "such", "into", "about", "can", "will", "just", "do", "does", "did", "what", "which", "who",
		"how", "i", "you", "we", "they", "my", "your",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
