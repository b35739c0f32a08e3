package embedding

import (
	"context"
	"fmt"

	"github.com/futig/docchat-backend/internal/config"
	"github.com/futig/docchat-backend/internal/entity"
	"github.com/futig/docchat-backend/internal/integration/common"
	pkgretry "github.com/futig/docchat-backend/internal/pkg/retry"
	pkghttp "github.com/futig/docchat-backend/pkg/http"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIConnector embeds text through an OpenAI compatible embeddings API.
type OpenAIConnector struct {
	config config.EmbeddingConfig
	client *openai.Client
	logger *zap.Logger
}

func NewOpenAIConnector(cfg config.EmbeddingConfig, logger *zap.Logger) *OpenAIConnector {
	conn := common.NewBaseConnector(cfg.HTTPClientConfig, logger, pkghttp.WithRateLimit(cfg.RateLimit, cfg.RateBurst))

	clientCfg := openai.DefaultConfig(cfg.Token)
	if cfg.Url != "" {
		clientCfg.BaseURL = cfg.Url
	}
	clientCfg.HTTPClient = conn.Client()

	return &OpenAIConnector{
		config: cfg,
		client: openai.NewClientWithConfig(clientCfg),
		logger: logger,
	}
}

func (c *OpenAIConnector) ModelTag() string {
	return "openai/" + c.config.Model
}

func (c *OpenAIConnector) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req := openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(c.config.Model),
	}
	if c.config.Dimension > 0 {
		req.Dimensions = c.config.Dimension
	}

	ctxzap.Debug(ctx, "embedding texts via openai", zap.Int("count", len(texts)))

	var resp openai.EmbeddingResponse
	err := pkgretry.Do(ctx, c.config.Retry, func(ctx context.Context) error {
		r, err := c.client.CreateEmbeddings(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create openai embeddings: %v", entity.ErrEmbeddingService, err)
	}

	vectors := make([][]float32, len(texts))
	for _, datum := range resp.Data {
		if datum.Index < 0 || datum.Index >= len(texts) {
			return nil, fmt.Errorf("%w: openai returned embedding index %d for %d inputs",
				entity.ErrEmbeddingService, datum.Index, len(texts))
		}
		vectors[datum.Index] = datum.Embedding
	}

	if err := checkVectors(vectors, c.config.Dimension); err != nil {
		return nil, err
	}

	return vectors, nil
}
