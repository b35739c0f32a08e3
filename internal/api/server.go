package api

import (
	"net/http"

	chatapi "github.com/futig/docchat-backend/internal/api/chat"
	"github.com/futig/docchat-backend/internal/api/docs"
	documentapi "github.com/futig/docchat-backend/internal/api/document"
	"github.com/futig/docchat-backend/internal/api/middleware"
	"github.com/futig/docchat-backend/internal/config"
	"github.com/futig/docchat-backend/internal/entity"
	"github.com/futig/docchat-backend/internal/pkg/response"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// SetupRouter creates and configures the HTTP router
func SetupRouter(
	cfg *config.Config,
	documentHandler *documentapi.Handler,
	chatHandler *chatapi.Handler,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigin))
	if cfg.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
	}

	r.Get("/health", health)

	// Swagger documentation endpoints
	docs.RegisterRoutes(r)

	prefix := cfg.APIPrefix
	if prefix == "" {
		prefix = "/"
	}
	r.Route(prefix, func(r chi.Router) {
		documentapi.RegisterRoutes(r, documentHandler)
		chatapi.RegisterRoutes(r, chatHandler)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	return r
}

func health(w http.ResponseWriter, r *http.Request) {
	response.Success(w, entity.HealthResponse{Status: "healthy"})
}
