// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package completion is the HTTP transport for OpenAI-compatible
// /completions endpoints.
//
// Complete performs a single blocking request. Stream opens a server-sent
// event connection and hands back a Stream whose Next method yields text
// deltas until the "[DONE]" sentinel or the end of the body.
//
// Transient failures (HTTP 429, 5xx, network errors before the response
// arrives) are retried with exponential backoff. Any other 4xx status is
// returned immediately as an *APIError.
package completion
