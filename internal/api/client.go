// Package api is the HTTP transport to the presence-simulation backend.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestIDHeader carries the per-call correlation id.
const RequestIDHeader = "X-Request-ID"

// TransportError is returned when the backend answers with a non-success status.
// Its message is the raw response body so backend diagnostics surface verbatim.
type TransportError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *TransportError) Error() string {
	return e.Body
}

// Client wraps resty for JSON calls against the backend. It never retries and
// sets no timeout; the caller's context is the only way to abandon a call.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

// New creates a client for the backend at baseURL.
func New(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetRetryCount(0).
		SetHeader("Accept", "application/json").
		SetLogger(logger.Sugar())
	return &Client{http: httpClient, logger: logger}
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.http.BaseURL
}

// Get issues a GET and returns the decoded JSON body.
func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// Post issues a POST with a JSON body. A nil body is sent as an empty object.
func (c *Client) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	if body == nil {
		body = map[string]any{}
	}
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *Client) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	requestID := uuid.NewString()
	req := c.http.R().
		SetContext(ctx).
		SetHeader(RequestIDHeader, requestID)
	if body != nil {
		req = req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	started := time.Now()
	resp, err := req.Execute(method, path)
	fields := []zap.Field{
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", requestID),
		zap.Duration("duration", time.Since(started)),
	}
	if err != nil {
		c.logger.Warn("backend call failed", append(fields, zap.Error(err))...)
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	fields = append(fields, zap.Int("status_code", resp.StatusCode()))
	if !resp.IsSuccess() {
		c.logger.Warn("backend rejected call", fields...)
		return nil, &TransportError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode(),
			Body:       string(resp.Body()),
		}
	}
	c.logger.Debug("backend call", fields...)

	raw := resp.Body()
	if !json.Valid(raw) {
		return nil, fmt.Errorf("%s %s: response is not valid JSON", method, path)
	}
	return json.RawMessage(raw), nil
}
