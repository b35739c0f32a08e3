package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_PutsRequestLoggerIntoContext(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)

	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxzap.Info(r.Context(), "inside handler")
		w.WriteHeader(http.StatusTeapot)
	})
	handler = chimiddleware.RequestID(Logger(zap.New(core))(handler))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chat/sessions", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "inside handler", entries[1].Message)
	assert.NotEmpty(t, entries[1].ContextMap()["request_id"])
	assert.Equal(t, "/api/chat/sessions", entries[1].ContextMap()["path"])
	assert.EqualValues(t, http.StatusTeapot, entries[2].ContextMap()["status"])
}

func TestLogger_ProbesLogAtDebug(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	handler := Logger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/chat/health", nil))

	assert.Zero(t, logs.Len())
}

func TestCORS(t *testing.T) {
	handler := CORS("http://localhost:3000, http://example.com")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/documents/list", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("unknown origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/documents/list", nil)
		req.Header.Set("Origin", "http://evil.test")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/chat/query", nil)
		req.Header.Set("Origin", "http://example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, "http://example.com", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
	})
}
