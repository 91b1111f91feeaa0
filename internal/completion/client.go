// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Configuration constants for the completions API.
const (
	// DefaultBaseURI is the OpenAI v1 endpoint.
	DefaultBaseURI = "https://api.openai.com/v1"

	// DefaultMaxRetries is the default number of attempts for transient errors.
	DefaultMaxRetries = 3

	// MaxResponseSize caps a non-streaming response body.
	MaxResponseSize = 10 * 1024 * 1024

	// UserAgent is sent with every request.
	UserAgent = "circus/1.0"
)

var (
	// sharedHTTPClient has no overall timeout; requests are bounded by their
	// context so streams can stay open as long as the caller allows.
	sharedHTTPClient = &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
)

// Credentials are the per-request connection settings.
type Credentials struct {
	APIKey  string
	BaseURI string
}

// Configured reports whether both fields are set.
func (c Credentials) Configured() bool {
	return strings.TrimSpace(c.APIKey) != "" && strings.TrimSpace(c.BaseURI) != ""
}

// Fingerprint identifies the key in logs without exposing it.
func (c Credentials) Fingerprint() string {
	if c.APIKey == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(c.APIKey))
	return hex.EncodeToString(h[:4])
}

// Endpoint joins the base URI and a path.
func (c Credentials) Endpoint(path string) string {
	return strings.TrimRight(strings.TrimSpace(c.BaseURI), "/") + path
}

// Client talks to a completions endpoint. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	retry      RetryPolicy
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewClient creates a client with default retry settings and no pacing.
func NewClient(logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: sharedHTTPClient,
		retry:      DefaultRetryPolicy(),
		logger:     logger,
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// WithRetryPolicy sets the backoff policy for transient failures.
func (c *Client) WithRetryPolicy(p RetryPolicy) *Client {
	c.retry = p.normalized()
	return c
}

// WithMaxRetries sets the number of attempts for transient failures.
func (c *Client) WithMaxRetries(n int) *Client {
	c.retry.MaxAttempts = n
	c.retry = c.retry.normalized()
	return c
}

// WithRequestsPerMinute paces outgoing attempts. Zero disables pacing.
func (c *Client) WithRequestsPerMinute(rpm int) *Client {
	if rpm <= 0 {
		c.limiter = nil
		return c
	}
	c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
	return c
}

// setHeaders sets the required headers for API requests.
func setHeaders(req *http.Request, creds Credentials) {
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(creds.APIKey))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)
}

// readResponse reads the body with a size limit.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// open sends req (rebuilding it for each attempt) and returns the first
// response with a 2xx status. 4xx other than 429 fails immediately; 429, 5xx
// and transport errors are retried with backoff until attempts run out.
func (c *Client) open(ctx context.Context, creds Credentials, method, path string, body []byte, stream bool) (*http.Response, error) {
	url := creds.Endpoint(path)

	return doWithRetry(ctx, c.retry, func(attempt int) (*http.Response, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, permanent(fmt.Errorf("failed to create request: %w", err))
		}
		setHeaders(req, creds)
		if stream {
			req.Header.Set("Accept", "text/event-stream")
			req.Header.Set("Cache-Control", "no-cache")
		} else {
			req.Header.Set("Accept", "application/json")
		}

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Debug("request failed",
				zap.String("method", method), zap.String("path", path),
				zap.Int("attempt", attempt), zap.Error(err))
			return nil, fmt.Errorf("request failed: %w", err)
		}

		c.logger.Debug("response",
			zap.String("method", method), zap.String("path", path),
			zap.Int("status", resp.StatusCode), zap.Int("attempt", attempt),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("key", creds.Fingerprint()))

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody+1))
		apiErr := newAPIError(resp.StatusCode, errBody)
		if apiErr.Transient() {
			return nil, &retryAfterError{err: apiErr, after: parseRetryAfter(resp.Header.Get("Retry-After"))}
		}
		return nil, permanent(apiErr)
	})
}

// Complete performs a non-streaming completion. req.Stream is forced false.
func (c *Client) Complete(ctx context.Context, creds Credentials, req Request) (*Response, error) {
	if !creds.Configured() {
		return nil, ErrNotConfigured
	}
	req.Stream = false
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.open(ctx, creds, http.MethodPost, "/completions", body, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := readResponse(resp)
	if err != nil {
		return nil, err
	}

	var out Response
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &out, nil
}

// Stream opens a streaming completion. req.Stream is forced true. The caller
// must Close the returned stream.
func (c *Client) Stream(ctx context.Context, creds Credentials, req Request) (*Stream, error) {
	if !creds.Configured() {
		return nil, ErrNotConfigured
	}
	req.Stream = true
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.open(ctx, creds, http.MethodPost, "/completions", body, true)
	if err != nil {
		return nil, err
	}
	return newStream(ctx, resp), nil
}

// ModelInfo is one entry of GET /models.
type ModelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
	Created int64  `json:"created"`
}

type modelsResponse struct {
	Data []ModelInfo `json:"data"`
}

// ListModels retrieves the models the endpoint offers.
func (c *Client) ListModels(ctx context.Context, creds Credentials) ([]ModelInfo, error) {
	if !creds.Configured() {
		return nil, ErrNotConfigured
	}
	resp, err := c.open(ctx, creds, http.MethodGet, "/models", nil, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := readResponse(resp)
	if err != nil {
		return nil, err
	}
	var out modelsResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse models response: %w", err)
	}
	return out.Data, nil
}

// IsTransient reports whether err is a failure the transport would retry.
func IsTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}
	return false
}
