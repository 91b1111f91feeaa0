// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable ApplyEnvOverrides reads for the test's duration.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"CIRCUS_API_KEY", "OPENAI_API_KEY", "NEXT_PUBLIC_OPENAI_API_KEY",
		"CIRCUS_BASE_URI", "OPENAI_BASE_URI", "OPENAI_BASE_URL", "NEXT_PUBLIC_OPENAI_BASE_URI",
		"CIRCUS_TIMEOUT", "CIRCUS_STRICT_DONE", "CIRCUS_MODEL", "CIRCUS_PRESET",
		"CIRCUS_STREAM", "CIRCUS_LOG_LEVEL", "CIRCUS_PRESETS_FILE",
	} {
		t.Setenv(name, "")
	}
	t.Setenv("CIRCUS_HOME", t.TempDir())
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultBaseURI, cfg.API.BaseURI)
	assert.True(t, cfg.Defaults.Stream)
	assert.False(t, cfg.API.StrictDone)
	assert.False(t, cfg.HasCredentials())
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURI, cfg.API.BaseURI)
	assert.Equal(t, 120, cfg.API.TimeoutSecs)
}

func TestLoadFromPath_TOMLOverlaysDefaults(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[api]
api_key = "sk-test"
base_uri = "http://localhost:8080/v1/"
strict_done = true

[defaults]
model = "davinci-002"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.API.APIKey)
	assert.Equal(t, "http://localhost:8080/v1", cfg.API.BaseURI, "trailing slash is trimmed")
	assert.True(t, cfg.API.StrictDone)
	assert.Equal(t, "davinci-002", cfg.Defaults.Model)
	assert.True(t, cfg.Defaults.Stream, "unset keys keep their defaults")
	assert.Equal(t, 3, cfg.API.MaxRetries)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestLoadFromPath_JSON(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"api":{"api_key":"sk-json"},"defaults":{"stream":false}}`), 0600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-json", cfg.API.APIKey)
	assert.False(t, cfg.Defaults.Stream)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("NEXT_PUBLIC_OPENAI_API_KEY", "sk-next")
	t.Setenv("OPENAI_BASE_URI", "https://proxy.example.com/v1")
	t.Setenv("CIRCUS_STREAM", "false")
	t.Setenv("CIRCUS_STRICT_DONE", "yes")
	t.Setenv("CIRCUS_MODEL", "babbage-002")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "sk-next", cfg.API.APIKey)
	assert.Equal(t, "https://proxy.example.com/v1", cfg.API.BaseURI)
	assert.False(t, cfg.Defaults.Stream)
	assert.True(t, cfg.API.StrictDone)
	assert.Equal(t, "babbage-002", cfg.Defaults.Model)

	t.Setenv("OPENAI_API_KEY", "sk-openai")
	cfg.ApplyEnvOverrides()
	assert.Equal(t, "sk-openai", cfg.API.APIKey, "OPENAI_API_KEY wins over the NEXT_PUBLIC alias")
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("OPENAI_API_KEY=sk-from-dotenv\n"), 0600))
	// godotenv never overrides a variable that exists, even when empty.
	os.Unsetenv("OPENAI_API_KEY")

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "sk-from-dotenv", os.Getenv("OPENAI_API_KEY"))
}

func TestValidate_CollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.API.BaseURI = "ftp://example.com"
	cfg.API.MaxRetries = 0
	cfg.Logging.Level = "verbose"
	cfg.Presets = []Preset{{ID: "bad", Temperature: 1.5, StopSequences: []string{"a", "b", "c", "d", "e"}}}

	err := cfg.Validate()
	require.Error(t, err)

	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))

	fields := make(map[string]bool)
	for _, v := range verrs {
		fields[v.Field] = true
	}
	assert.True(t, fields["api.base_uri"])
	assert.True(t, fields["api.max_retries"])
	assert.True(t, fields["logging.level"])
	assert.True(t, fields["presets[0].temperature"])
	assert.True(t, fields["presets[0].stop_sequences"])
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	cfg := Default()
	cfg.API.APIKey = "sk-save"
	cfg.Defaults.Preset = "qa"

	require.NoError(t, SaveTOML(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-save", loaded.API.APIKey)
	assert.Equal(t, "qa", loaded.Defaults.Preset)
}

func TestDefaultCatalog(t *testing.T) {
	cat, err := DefaultCatalog()
	require.NoError(t, err)
	require.NotEmpty(t, cat.Models)
	require.NotEmpty(t, cat.Presets)

	for _, m := range cat.Models {
		assert.Empty(t, m.validate(m.ID), "model %s", m.ID)
	}
	for _, p := range cat.Presets {
		assert.Empty(t, p.validate(p.ID), "preset %s", p.ID)
		_, ok := cat.Model(p.Model)
		assert.True(t, ok, "preset %s references unknown model %s", p.ID, p.Model)
	}

	qa, ok := cat.Preset("qa")
	require.True(t, ok)
	assert.Equal(t, []string{"\n"}, qa.StopSequences)
	assert.Equal(t, "\nA:", qa.StartText)
}

func TestCatalog_MergeReplacesByID(t *testing.T) {
	cat, err := DefaultCatalog()
	require.NoError(t, err)
	n := len(cat.Models)

	cat.Merge(
		[]Model{{ID: "text-davinci-003", Name: "Renamed", MaxTokens: 100, Tokenizer: "gpt3"}, {ID: "local", Name: "Local", MaxTokens: 2048, Tokenizer: "cl100k"}},
		[]Preset{{ID: "mine", Name: "Mine", Model: "local"}},
	)

	assert.Len(t, cat.Models, n+1)
	m, _ := cat.Model("text-davinci-003")
	assert.Equal(t, "Renamed", m.Name)
	assert.Equal(t, "text-davinci-003", cat.Models[0].ID, "order is preserved")
	_, ok := cat.Preset("mine")
	assert.True(t, ok)
	assert.Equal(t, cat.Models[0].ID, cat.ModelOrDefault("nope").ID)
}

func TestCatalog_PresetIsCopied(t *testing.T) {
	cat, err := DefaultCatalog()
	require.NoError(t, err)

	p, _ := cat.Preset("chat")
	p.StopSequences[0] = "changed"
	again, _ := cat.Preset("chat")
	assert.Equal(t, " Human:", again.StopSequences[0])
}

func TestConfigCatalog_PresetsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "presets.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[[presets]]
id = "haiku"
name = "Haiku"
model = "davinci-002"
temperature = 0.9
max_tokens = 40
top_p = 1.0
input = "Write a haiku about the sea:\n"
`), 0600))

	cfg := Default()
	cfg.PresetsFile = path
	cat, err := cfg.Catalog()
	require.NoError(t, err)

	p, ok := cat.Preset("haiku")
	require.True(t, ok)
	assert.Equal(t, 40, p.MaxTokens)
}

func TestConfigCatalog_InvalidPresetsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.toml")
	require.NoError(t, os.WriteFile(path, []byte("[[presets]]\nid = \"x\"\ntop_p = 7.0\n"), 0600))

	cfg := Default()
	cfg.PresetsFile = path
	_, err := cfg.Catalog()
	require.Error(t, err)

	var verrs ValidateErrors
	assert.True(t, errors.As(err, &verrs))
}

func TestCatalogWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "presets.toml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0600))

	cfg := Default()
	cfg.PresetsFile = path

	changed := make(chan *Catalog, 4)
	w, err := NewCatalogWatcher(cfg, func(c *Catalog) { changed <- c }, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("[[presets]]\nid = \"fresh\"\ntop_p = 1.0\n"), 0600))

	select {
	case cat := <-changed:
		_, ok := cat.Preset("fresh")
		assert.True(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("catalogue was not reloaded")
	}

	cancel()
	require.NoError(t, <-done)
}
