// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/semperai/circus-tui/internal/config"
)

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, lvl)

	lvl, err = ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestNew_NoSinksIsNop(t *testing.T) {
	logger, closeFn, err := New(config.LoggingConfig{Level: "info"}, Options{})
	require.NoError(t, err)
	logger.Info("dropped")
	assert.NoError(t, closeFn())
}

func TestNew_WritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "circus.log")
	logger, closeFn, err := New(config.LoggingConfig{Level: "warn", File: path, MaxSizeMB: 1}, Options{JSON: true})
	require.NoError(t, err)

	logger.Info("below level")
	logger.Warn("stream closed", zap.String("run", "r1"))
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "stream closed", entry["msg"])
	assert.Equal(t, "r1", entry["run"])
	assert.Equal(t, "WARN", entry["level"])
	assert.Contains(t, entry, "time")
}

func TestNew_DebugOverridesLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "circus.log")
	logger, closeFn, err := New(config.LoggingConfig{Level: "error", File: path}, Options{Debug: true})
	require.NoError(t, err)

	logger.Debug("visible")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "visible")
}
