package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/futig/docchat-backend/internal/config"
	"github.com/futig/docchat-backend/internal/entity"
	pkgretry "github.com/futig/docchat-backend/internal/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLLMConfig(url string) config.LLMConfig {
	return config.LLMConfig{
		HTTPClientConfig: config.HTTPClientConfig{
			RequestTimeout:        5 * time.Second,
			ConnTimeout:           time.Second,
			KeepAlive:             time.Second,
			IdleConnTimeout:       time.Second,
			ResponseHeaderTimeout: 5 * time.Second,
			Token:                 "secret",
			Url:                   url,
		},
		Model:            "test-model",
		GenerateEndpoint: "/generate",
		Temperature:      0.3,
		Retry:            pkgretry.RetryConfig{Attempts: 1, Timeout: time.Second},
	}
}

func TestConnector_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/generate", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req entity.GenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "prompt text", req.Prompt)
		assert.Equal(t, "test-model", req.Model)

		_ = json.NewEncoder(w).Encode(entity.GenerateResponse{Response: "  The sky is blue.  "})
	}))
	defer srv.Close()

	got, err := NewConnector(testLLMConfig(srv.URL), zap.NewNop()).Generate(context.Background(), "prompt text")
	require.NoError(t, err)
	assert.Equal(t, "The sky is blue.", got)
}

func TestConnector_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
		},
		{
			name: "empty answer",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"text":""}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewConnector(testLLMConfig(srv.URL), zap.NewNop()).Generate(context.Background(), "p")
			assert.ErrorIs(t, err, entity.ErrGenerationService)
		})
	}
}

func TestOpenAIConnector_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body["model"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","model":"test-model",
			"choices":[{"index":0,"message":{"role":"assistant","content":"Blue."},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	got, err := NewOpenAIConnector(testLLMConfig(srv.URL), zap.NewNop()).Generate(context.Background(), "What color is the sky?")
	require.NoError(t, err)
	assert.Equal(t, "Blue.", got)
}

func TestMockConnector_Generate(t *testing.T) {
	m := NewMockConnector(zap.NewNop())

	prompt := "Answer from the context.\n\nContext:\n[1] notes.txt\nThe sky is blue.\n\nQuestion: What color is the sky?\nHelpful answer:"
	got, err := m.Generate(context.Background(), prompt)
	require.NoError(t, err)
	assert.Equal(t, "Based on the provided documents: The sky is blue.", got)

	got, err = m.Generate(context.Background(), "Context:\n\nQuestion: anything?")
	require.NoError(t, err)
	assert.Equal(t, "I don't know.", got)
}
