package logger

import (
	"context"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// AddFields adds fields to the logger in context and returns new context
func AddFields(ctx context.Context, fields ...zap.Field) context.Context {
	logger := ctxzap.Extract(ctx)
	return ctxzap.ToContext(ctx, logger.With(fields...))
}

// WithAction adds "action" field to context logger to describe the flow
func WithAction(ctx context.Context, action string) context.Context {
	logger := ctxzap.Extract(ctx)
	return ctxzap.ToContext(ctx, logger.With(zap.String("action", action)))
}

// Detach returns a context that keeps the request logger and values but is not
// canceled when the client goes away.
func Detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

// Background builds a fresh context carrying the given logger.
func Background(logger *zap.Logger) context.Context {
	return ctxzap.ToContext(context.Background(), logger)
}
