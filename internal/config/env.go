// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads KEY=value files into the process environment. Variables
// already set are left alone and missing files are skipped. With no
// arguments it reads ".env" in the working directory.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// firstEnv returns the first non-empty variable among names.
func firstEnv(names ...string) string {
	for _, n := range names {
		if v := strings.TrimSpace(os.Getenv(n)); v != "" {
			return v
		}
	}
	return ""
}

func parseBool(v string) (bool, bool) {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}

// ApplyEnvOverrides applies environment variables on top of the file values.
func (c *Config) ApplyEnvOverrides() {
	// OPENAI_API_KEY, with the browser playground's variable as a fallback
	if key := firstEnv("CIRCUS_API_KEY", "OPENAI_API_KEY", "NEXT_PUBLIC_OPENAI_API_KEY"); key != "" {
		c.API.APIKey = key
	}

	if uri := firstEnv("CIRCUS_BASE_URI", "OPENAI_BASE_URI", "OPENAI_BASE_URL", "NEXT_PUBLIC_OPENAI_BASE_URI"); uri != "" {
		c.API.BaseURI = uri
	}

	if v := os.Getenv("CIRCUS_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			c.API.TimeoutSecs = secs
		}
	}

	if v := os.Getenv("CIRCUS_STRICT_DONE"); v != "" {
		if b, ok := parseBool(v); ok {
			c.API.StrictDone = b
		}
	}

	if model := os.Getenv("CIRCUS_MODEL"); model != "" {
		c.Defaults.Model = model
	}

	if preset := os.Getenv("CIRCUS_PRESET"); preset != "" {
		c.Defaults.Preset = preset
	}

	if v := os.Getenv("CIRCUS_STREAM"); v != "" {
		if b, ok := parseBool(v); ok {
			c.Defaults.Stream = b
		}
	}

	if level := os.Getenv("CIRCUS_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}

	if file := os.Getenv("CIRCUS_PRESETS_FILE"); file != "" {
		c.PresetsFile = file
	}
}
