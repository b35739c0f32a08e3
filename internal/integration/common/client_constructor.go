package common

import (
	"github.com/futig/docchat-backend/internal/config"
	pkgHTTP "github.com/futig/docchat-backend/pkg/http"
	"go.uber.org/zap"
)

// NewBaseConnector builds the shared HTTP connector for an external service.
// extra options are applied after the defaults derived from cfg.
func NewBaseConnector(cfg config.HTTPClientConfig, logger *zap.Logger, extra ...pkgHTTP.HttpOpts) *pkgHTTP.Connector {
	connCfg := &pkgHTTP.ConnectorConfig{
		Logger:  logger,
		BaseURL: cfg.Url,
	}

	opts := []pkgHTTP.HttpOpts{
		pkgHTTP.WithRequestTimeout(cfg.RequestTimeout),
		pkgHTTP.WithConnClientTimeout(cfg.ConnTimeout),
		pkgHTTP.WithClientKeepAlive(cfg.KeepAlive),
		pkgHTTP.WithIdleConnTimeout(cfg.IdleConnTimeout),
		pkgHTTP.WithResponseHeaderTimeout(cfg.ResponseHeaderTimeout),
		pkgHTTP.WithRequestLogging(),
		pkgHTTP.WithAuthToken(cfg.Token),
	}

	return pkgHTTP.NewConnector(connCfg, append(opts, extra...)...)
}
