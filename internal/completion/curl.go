// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CurlOptions controls how CurlCommand renders the key.
type CurlOptions struct {
	// RevealKey prints the real key instead of $OPENAI_API_KEY.
	RevealKey bool
}

// CurlCommand renders the shell command that performs req against creds.
func CurlCommand(req Request, creds Credentials, opts CurlOptions) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	key := "$OPENAI_API_KEY"
	if opts.RevealKey && creds.APIKey != "" {
		key = creds.APIKey
	}
	base := creds.BaseURI
	if strings.TrimSpace(base) == "" {
		base = DefaultBaseURI
	}

	var b strings.Builder
	fmt.Fprintf(&b, "curl %s", shellQuote(Credentials{BaseURI: base}.Endpoint("/completions")))
	b.WriteString(" \\\n  -H \"Content-Type: application/json\"")
	if req.Stream {
		b.WriteString(" \\\n  -H \"Accept: text/event-stream\"")
	}
	fmt.Fprintf(&b, " \\\n  -H \"Authorization: Bearer %s\"", key)
	fmt.Fprintf(&b, " \\\n  -d %s", shellQuote(string(body)))
	return b.String(), nil
}

// shellQuote wraps s in single quotes for POSIX shells.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
