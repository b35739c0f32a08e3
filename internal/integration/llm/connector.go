package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/futig/docchat-backend/internal/config"
	"github.com/futig/docchat-backend/internal/entity"
	"github.com/futig/docchat-backend/internal/integration/common"
	pkgretry "github.com/futig/docchat-backend/internal/pkg/retry"
	pkghttp "github.com/futig/docchat-backend/pkg/http"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// Connector talks to a plain HTTP generation service that takes a prompt and returns text.
type Connector struct {
	config    config.LLMConfig
	connector *pkghttp.Connector
	logger    *zap.Logger
}

func NewConnector(
	cfg config.LLMConfig,
	logger *zap.Logger,
) *Connector {
	return &Connector{
		connector: common.NewBaseConnector(cfg.HTTPClientConfig, logger),
		config:    cfg,
		logger:    logger,
	}
}

// Generate sends the grounded prompt to the generation service
func (c *Connector) Generate(ctx context.Context, prompt string) (string, error) {
	ctxzap.Info(ctx, "generating answer via LLM service", zap.Int("prompt_length", len(prompt)))

	req := &entity.GenerateRequest{
		Prompt:      prompt,
		Model:       c.config.Model,
		Temperature: c.config.Temperature,
	}

	var resp entity.GenerateResponse
	err := pkgretry.Do(ctx, c.config.Retry, func(ctx context.Context) error {
		return c.connector.DoRequest(ctx, http.MethodPost, c.config.GenerateEndpoint, req, &resp)
	})
	if err != nil {
		return "", fmt.Errorf("%w: generate answer: %v", entity.ErrGenerationService, err)
	}

	result := strings.TrimSpace(resp.Result())
	if result == "" {
		return "", fmt.Errorf("%w: invalid generate response: empty or missing text field", entity.ErrGenerationService)
	}

	ctxzap.Info(ctx, "answer generated successfully", zap.Int("result_length", len(result)))

	return result, nil
}
