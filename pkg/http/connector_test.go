package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type echoBody struct {
	Value string `json:"value"`
}

func newTestConnector(url string, opts ...HttpOpts) *Connector {
	return NewConnector(&ConnectorConfig{BaseURL: url, Logger: zap.NewNop()}, opts...)
}

func TestConnector_DoRequest(t *testing.T) {
	t.Run("round trips json and sets bearer token", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/echo", r.URL.Path)
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"value":"pong"}`))
		}))
		defer srv.Close()

		c := newTestConnector(srv.URL, WithAuthToken("secret"), WithRequestLogging())

		var resp echoBody
		err := c.DoRequest(context.Background(), http.MethodPost, "/echo", echoBody{Value: "ping"}, &resp)
		require.NoError(t, err)
		assert.Equal(t, "pong", resp.Value)
	})

	t.Run("non 2xx becomes HTTPError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("overloaded"))
		}))
		defer srv.Close()

		err := newTestConnector(srv.URL).DoRequest(context.Background(), http.MethodGet, "/", nil, nil)

		var httpErr *HTTPError
		require.True(t, errors.As(err, &httpErr))
		assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
		assert.Equal(t, "overloaded", httpErr.Message)
	})

	t.Run("unreachable host becomes NetworkError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		url := srv.URL
		srv.Close()

		err := newTestConnector(url, WithRequestTimeout(time.Second)).DoRequest(context.Background(), http.MethodGet, "/", nil, nil)

		var netErr *NetworkError
		assert.True(t, errors.As(err, &netErr))
	})
}

func TestWithRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := newTestConnector(srv.URL, WithRateLimit(1, 1))

	require.NoError(t, c.DoRequest(context.Background(), http.MethodGet, "/", nil, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := c.DoRequest(ctx, http.MethodGet, "/", nil, nil)
	assert.Error(t, err, "second call within the same second must wait past the deadline")
}
