package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/futig/docchat-backend/internal/config"
	"github.com/futig/docchat-backend/internal/entity"
	pkgretry "github.com/futig/docchat-backend/internal/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func testEmbeddingConfig(url string) config.EmbeddingConfig {
	return config.EmbeddingConfig{
		HTTPClientConfig: config.HTTPClientConfig{
			RequestTimeout:        5 * time.Second,
			ConnTimeout:           time.Second,
			KeepAlive:             time.Second,
			IdleConnTimeout:       time.Second,
			ResponseHeaderTimeout: 5 * time.Second,
			Token:                 "test-token",
			Url:                   url,
		},
		Model:     "test-embed",
		BatchSize: 16,
		Retry:     pkgretry.RetryConfig{Attempts: 2, Delay: time.Millisecond, MaxDelay: time.Millisecond, Timeout: time.Second},
	}
}

func TestHashEmbedder(t *testing.T) {
	e := NewHashEmbedder(0, zap.NewNop())
	assert.Equal(t, "hash-v1/256", e.ModelTag())

	vectors, err := e.Embed(context.Background(), []string{
		"The sky is blue.",
		"What color is the sky?",
		"Invoices are due within thirty days.",
		"the of and",
	})
	require.NoError(t, err)
	require.Len(t, vectors, 4)

	for _, v := range vectors {
		assert.Len(t, v, DefaultHashDimension)
		assert.InDelta(t, 1.0, dot(v, v), 1e-5, "vectors are unit length")
	}

	again, err := e.Embed(context.Background(), []string{"The sky is blue."})
	require.NoError(t, err)
	assert.Equal(t, vectors[0], again[0], "embedding is deterministic")

	assert.Greater(t, dot(vectors[1], vectors[0]), dot(vectors[1], vectors[2]),
		"question about the sky is closer to the sky passage")
}

func TestCachedEmbedder(t *testing.T) {
	var calls atomic.Int32
	inner := &countingEmbedder{HashEmbedder: NewHashEmbedder(32, zap.NewNop()), calls: &calls}
	c := NewCachedEmbedder(inner, time.Minute)

	first, err := c.Embed(context.Background(), []string{"alpha", "beta"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	second, err := c.Embed(context.Background(), []string{"beta", "alpha"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "cached texts skip the provider")
	assert.Equal(t, first[0], second[1])

	_, err = c.Embed(context.Background(), []string{"alpha", "gamma"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []string{"gamma"}, inner.lastBatch)
}

type countingEmbedder struct {
	*HashEmbedder
	calls     *atomic.Int32
	lastBatch []string
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(1)
	c.lastBatch = texts
	return c.HashEmbedder.Embed(ctx, texts)
}

func TestOllamaConnector_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)

		var req entity.OllamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-embed", req.Model)

		resp := entity.OllamaEmbedResponse{Model: req.Model}
		for range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float32{1, 2, 3})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewOllamaConnector(testEmbeddingConfig(srv.URL), zap.NewNop())
	assert.Equal(t, "ollama/test-embed", c.ModelTag())

	vectors, err := c.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 2, 3}, {1, 2, 3}}, vectors)
}

func TestOllamaConnector_ServiceDown(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewOllamaConnector(testEmbeddingConfig(srv.URL), zap.NewNop())

	_, err := c.Embed(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, entity.ErrEmbeddingService)
	assert.Equal(t, int32(2), hits.Load(), "transient failures are retried")
}

func TestOpenAIConnector_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		// Answer out of order to check that results are placed by index.
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"test-embed","data":[
			{"object":"embedding","index":1,"embedding":[0,1]},
			{"object":"embedding","index":0,"embedding":[1,0]}
		]}`))
	}))
	defer srv.Close()

	c := NewOpenAIConnector(testEmbeddingConfig(srv.URL), zap.NewNop())
	assert.Equal(t, "openai/test-embed", c.ModelTag())

	vectors, err := c.Embed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vectors)
}

func TestOpenAIConnector_BadRequestIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad input","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	c := NewOpenAIConnector(testEmbeddingConfig(srv.URL), zap.NewNop())

	_, err := c.Embed(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, entity.ErrEmbeddingService)
	assert.Equal(t, int32(1), hits.Load())
}
