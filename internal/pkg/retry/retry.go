package retry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	pkghttp "github.com/futig/docchat-backend/pkg/http"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	defaultAttempts = 3
	defaultMaxDelay = 2 * time.Second
	defaultDelay    = 100 * time.Millisecond
	defaultTimeout  = 30 * time.Second
)

type RetryConfig struct {
	Attempts uint          `env:"ATTEMPTS" envDefault:"3"`
	Delay    time.Duration `env:"DELAY" envDefault:"200ms"`
	MaxDelay time.Duration `env:"MAX_DELAY" envDefault:"5s"`
	Timeout  time.Duration `env:"TIMEOUT" envDefault:"30s"` // per attempt
}

func (rc *RetryConfig) ToRetryOptions() []retry.Option {
	return []retry.Option{
		retry.Attempts(rc.Attempts),
		retry.MaxDelay(rc.MaxDelay),
		retry.Delay(rc.Delay),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.LastErrorOnly(true),
	}
}

func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		Attempts: defaultAttempts,
		Delay:    defaultDelay,
		MaxDelay: defaultMaxDelay,
		Timeout:  defaultTimeout,
	}
}

// Do runs fn until it succeeds, fails with a non-transient error or attempts run out.
// Each attempt gets its own deadline so a hung call never blocks the caller.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	if cfg.Attempts == 0 {
		cfg.Attempts = 1
	}

	opts := append(cfg.ToRetryOptions(),
		retry.Context(ctx),
		retry.RetryIf(func(err error) bool {
			return ctx.Err() == nil && IsTransient(err)
		}),
		retry.OnRetry(func(n uint, err error) {
			ctxzap.Warn(ctx, "retrying external call",
				zap.Uint("attempt", n+1),
				zap.Error(err),
			)
		}),
	)

	return retry.Do(func() error {
		attemptCtx := ctx
		if cfg.Timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()
		}
		return fn(attemptCtx)
	}, opts...)
}

// IsTransient reports whether err is worth retrying: timeouts, network failures,
// rate limiting and server-side errors.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr *pkghttp.NetworkError
	if errors.As(err, &netErr) {
		return true
	}

	var httpErr *pkghttp.HTTPError
	if errors.As(err, &httpErr) {
		return transientStatus(httpErr.StatusCode)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return transientStatus(apiErr.HTTPStatusCode)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return transientStatus(reqErr.HTTPStatusCode)
	}

	var dialErr net.Error
	return errors.As(err, &dialErr)
}

func transientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= http.StatusInternalServerError
}
