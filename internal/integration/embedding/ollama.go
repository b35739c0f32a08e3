package embedding

import (
	"context"
	"fmt"
	"net/http"

	"github.com/futig/docchat-backend/internal/config"
	"github.com/futig/docchat-backend/internal/entity"
	"github.com/futig/docchat-backend/internal/integration/common"
	pkgretry "github.com/futig/docchat-backend/internal/pkg/retry"
	pkghttp "github.com/futig/docchat-backend/pkg/http"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

const ollamaEmbedEndpoint = "/api/embed"

// OllamaConnector embeds text through the Ollama /api/embed endpoint.
type OllamaConnector struct {
	config    config.EmbeddingConfig
	connector *pkghttp.Connector
	logger    *zap.Logger
}

func NewOllamaConnector(cfg config.EmbeddingConfig, logger *zap.Logger) *OllamaConnector {
	return &OllamaConnector{
		connector: common.NewBaseConnector(cfg.HTTPClientConfig, logger, pkghttp.WithRateLimit(cfg.RateLimit, cfg.RateBurst)),
		config:    cfg,
		logger:    logger,
	}
}

func (c *OllamaConnector) ModelTag() string {
	return "ollama/" + c.config.Model
}

func (c *OllamaConnector) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctxzap.Debug(ctx, "embedding texts via ollama", zap.Int("count", len(texts)))

	req := &entity.OllamaEmbedRequest{
		Model: c.config.Model,
		Input: texts,
	}

	var resp entity.OllamaEmbedResponse
	err := pkgretry.Do(ctx, c.config.Retry, func(ctx context.Context) error {
		return c.connector.DoRequest(ctx, http.MethodPost, ollamaEmbedEndpoint, req, &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: ollama embed: %v", entity.ErrEmbeddingService, err)
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: ollama returned %d embeddings for %d inputs",
			entity.ErrEmbeddingService, len(resp.Embeddings), len(texts))
	}

	if err := checkVectors(resp.Embeddings, c.config.Dimension); err != nil {
		return nil, err
	}

	return resp.Embeddings, nil
}
