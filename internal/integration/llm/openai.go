package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/futig/docchat-backend/internal/config"
	"github.com/futig/docchat-backend/internal/entity"
	"github.com/futig/docchat-backend/internal/integration/common"
	pkgretry "github.com/futig/docchat-backend/internal/pkg/retry"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIConnector generates answers with an OpenAI compatible chat completion API.
type OpenAIConnector struct {
	config config.LLMConfig
	client *openai.Client
	logger *zap.Logger
}

func NewOpenAIConnector(cfg config.LLMConfig, logger *zap.Logger) *OpenAIConnector {
	clientCfg := openai.DefaultConfig(cfg.Token)
	if cfg.Url != "" {
		clientCfg.BaseURL = cfg.Url
	}
	clientCfg.HTTPClient = common.NewBaseConnector(cfg.HTTPClientConfig, logger).Client()

	return &OpenAIConnector{
		config: cfg,
		client: openai.NewClientWithConfig(clientCfg),
		logger: logger,
	}
}

func (c *OpenAIConnector) Generate(ctx context.Context, prompt string) (string, error) {
	ctxzap.Info(ctx, "generating answer via openai", zap.String("model", c.config.Model))

	req := openai.ChatCompletionRequest{
		Model:       c.config.Model,
		Temperature: c.config.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	var resp openai.ChatCompletionResponse
	err := pkgretry.Do(ctx, c.config.Retry, func(ctx context.Context) error {
		r, err := c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: create openai chat completion: %v", entity.ErrGenerationService, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openai chat completion returned no choices", entity.ErrGenerationService)
	}

	result := strings.TrimSpace(resp.Choices[0].Message.Content)
	if result == "" {
		return "", fmt.Errorf("%w: openai chat completion returned empty content", entity.ErrGenerationService)
	}

	ctxzap.Info(ctx, "answer generated successfully", zap.Int("result_length", len(result)))

	return result, nil
}
