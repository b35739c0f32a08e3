package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// maxErrorBody caps how much of a failed response is kept in HTTPError.
const maxErrorBody = 4 << 10

type Connector struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

type ConnectorConfig struct {
	BaseURL string
	Logger  *zap.Logger
}

func NewConnector(config *ConnectorConfig, options ...HttpOpts) *Connector {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Connector{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: NewClient(options...),
		logger:     logger,
	}
}

// Client exposes the configured client for SDKs that accept their own *http.Client.
func (c *Connector) Client() *http.Client {
	return c.httpClient
}

// DoRequest sends reqBody as JSON to baseURL+endpoint and decodes a 2xx JSON answer into respBody.
// Non-2xx answers come back as *HTTPError, transport failures as *NetworkError.
func (c *Connector) DoRequest(ctx context.Context, method, endpoint string, reqBody, respBody any) error {
	var body io.Reader
	if reqBody != nil {
		payload, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		body = bytes.NewReader(payload)
		ctx = context.WithValue(ctx, payloadContextKey{}, payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.send(req, respBody)
}

func (c *Connector) send(req *http.Request, respBody any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Err: fmt.Errorf("read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(bodyBytes) > maxErrorBody {
			bodyBytes = bodyBytes[:maxErrorBody]
		}
		c.logger.Debug("service returned error status",
			zap.String("url", req.URL.Redacted()),
			zap.Int("status", resp.StatusCode),
		)
		return &HTTPError{
			StatusCode: resp.StatusCode,
			Message:    string(bodyBytes),
		}
	}

	if respBody != nil && len(bodyBytes) > 0 {
		if err := json.Unmarshal(bodyBytes, respBody); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}

// HTTPError represents an HTTP error response
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// NetworkError represents a network-level error (connection, timeout, etc.)
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
