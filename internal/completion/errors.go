// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error variables for common API failures.
var (
	// ErrNotConfigured indicates the API key or base URI is missing.
	ErrNotConfigured = errors.New("API key or base URI not configured")

	// ErrAuthFailed indicates the key was rejected (HTTP 401/403).
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates HTTP 429 after all retries were spent.
	ErrRateLimited = errors.New("rate limited")

	// ErrModelNotFound indicates HTTP 404, usually an unknown model.
	ErrModelNotFound = errors.New("model not found")

	// ErrServer indicates a 5xx response after all retries were spent.
	ErrServer = errors.New("server error")

	// ErrStreamTruncated indicates the server closed a stream before [DONE].
	ErrStreamTruncated = errors.New("stream closed before [DONE]")
)

// maxErrorBody caps how much of an error body is kept for display.
const maxErrorBody = 8 * 1024

// APIError is a non-2xx response. Body holds the raw payload so the error
// popup can show exactly what the server said.
type APIError struct {
	Status  int
	Type    string
	Code    string
	Message string
	Body    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("API error [%s] (HTTP %d): %s", e.Code, e.Status, msg)
	}
	return fmt.Sprintf("API error (HTTP %d): %s", e.Status, msg)
}

// Is lets errors.Is match the sentinel that corresponds to the status.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrAuthFailed:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	case ErrModelNotFound:
		return e.Status == http.StatusNotFound
	case ErrServer:
		return e.Status >= 500
	}
	return false
}

// Transient reports whether the status is worth retrying.
func (e *APIError) Transient() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// apiErrorResponse is the OpenAI error envelope. Code may be a string or a
// number depending on the server.
type apiErrorResponse struct {
	Error struct {
		Message string          `json:"message"`
		Type    string          `json:"type"`
		Code    json.RawMessage `json:"code"`
	} `json:"error"`
}

// newAPIError converts an error response into an *APIError.
func newAPIError(status int, body []byte) *APIError {
	raw := string(body)
	if len(raw) > maxErrorBody {
		raw = raw[:maxErrorBody] + "...(truncated)"
	}
	apiErr := &APIError{Status: status, Body: raw}

	var env apiErrorResponse
	if err := json.Unmarshal(body, &env); err == nil && env.Error.Message != "" {
		apiErr.Message = env.Error.Message
		apiErr.Type = env.Error.Type
		apiErr.Code = strings.Trim(string(env.Error.Code), `"`)
		if apiErr.Code == "null" {
			apiErr.Code = ""
		}
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(raw)
	return apiErr
}

// StreamError is a failure after some text was already delivered.
type StreamError struct {
	Partial string // text received before the error
	Err     error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream error (partial content received: %d chars): %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *StreamError) Unwrap() error {
	return e.Err
}

// Diagnostic renders err as indented JSON for the error popup, including the
// raw server body when there is one.
func Diagnostic(err error) string {
	if err == nil {
		return ""
	}
	payload := map[string]any{"message": err.Error()}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		payload["status"] = apiErr.Status
		if apiErr.Type != "" {
			payload["type"] = apiErr.Type
		}
		if apiErr.Code != "" {
			payload["code"] = apiErr.Code
		}
		var body any
		if json.Unmarshal([]byte(apiErr.Body), &body) == nil {
			payload["body"] = body
		} else if apiErr.Body != "" {
			payload["body"] = apiErr.Body
		}
	}
	var streamErr *StreamError
	if errors.As(err, &streamErr) {
		payload["partial_chars"] = len(streamErr.Partial)
	}

	out, mErr := json.MarshalIndent(payload, "", "  ")
	if mErr != nil {
		return err.Error()
	}
	return string(out)
}
