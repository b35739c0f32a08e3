package llm

import (
	"context"
	"strings"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// MockConnector answers without a model: it echoes the most relevant context passage.
type MockConnector struct {
	logger *zap.Logger
}

func NewMockConnector(logger *zap.Logger) *MockConnector {
	return &MockConnector{
		logger: logger,
	}
}

func (m *MockConnector) Generate(ctx context.Context, prompt string) (string, error) {
	ctxzap.Info(ctx, "[MOCK] generating answer")

	passage := firstContextPassage(prompt)
	if passage == "" {
		return "I don't know.", nil
	}

	answer := "Based on the provided documents: " + passage

	ctxzap.Info(ctx, "[MOCK] answer generated", zap.Int("result_length", len(answer)))
	return answer, nil
}

// firstContextPassage returns the first non-empty line after the "Context:" marker.
func firstContextPassage(prompt string) string {
	_, rest, ok := strings.Cut(prompt, "Context:")
	if !ok {
		return ""
	}
	for _, line := range strings.Split(rest, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "[") {
			continue
		}
		if line == "Chat history:" || strings.HasPrefix(line, "Question:") {
			break
		}
		return line
	}
	return ""
}
