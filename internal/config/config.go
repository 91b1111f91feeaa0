// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/semperai/circus-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// DefaultBaseURI is used when no base URI is configured.
const DefaultBaseURI = "https://api.openai.com/v1"

// Config represents the complete circus configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Completion API connection
	API APIConfig `toml:"api" json:"api"`

	// Initial playground state
	Defaults DefaultsConfig `toml:"defaults" json:"defaults"`

	// Log file settings
	Logging LoggingConfig `toml:"logging" json:"logging"`

	// Terminal UI settings
	UI UIConfig `toml:"ui" json:"ui"`

	// PresetsFile is an optional TOML file with extra [[presets]] and [[models]].
	PresetsFile string `toml:"presets_file,omitempty" json:"presets_file,omitempty"`

	Models  []Model  `toml:"models,omitempty" json:"models,omitempty"`
	Presets []Preset `toml:"presets,omitempty" json:"presets,omitempty"`
}

// APIConfig contains the completion endpoint settings.
type APIConfig struct {
	APIKey  string `toml:"api_key" json:"api_key"`
	BaseURI string `toml:"base_uri" json:"base_uri"`

	// TimeoutSecs bounds a whole submission. 0 disables the deadline.
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`

	// MaxRetries is the number of attempts for 429 and 5xx responses.
	MaxRetries int `toml:"max_retries" json:"max_retries"`

	// RequestsPerMinute paces outgoing attempts. 0 disables pacing.
	RequestsPerMinute int `toml:"requests_per_minute" json:"requests_per_minute"`

	// StrictDone treats a stream that closes without [DONE] as a failure.
	StrictDone bool `toml:"strict_done" json:"strict_done"`
}

// Timeout returns the submission timeout as a duration.
func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSecs) * time.Second
}

// DefaultsConfig holds the state the playground starts in.
type DefaultsConfig struct {
	Model  string `toml:"model" json:"model"`
	Preset string `toml:"preset" json:"preset"`
	Stream bool   `toml:"stream" json:"stream"`
}

// LoggingConfig controls the rotating log file.
type LoggingConfig struct {
	Level      string `toml:"level" json:"level"`
	File       string `toml:"file" json:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" json:"max_age_days"`
	Compress   bool   `toml:"compress" json:"compress"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	Theme         string `toml:"theme" json:"theme"`
	MarkdownStyle string `toml:"markdown_style" json:"markdown_style"`
	SidebarOpen   bool   `toml:"sidebar_open" json:"sidebar_open"`
	ShowMarkdown  bool   `toml:"show_markdown" json:"show_markdown"`
	ShowCurl      bool   `toml:"show_curl" json:"show_curl"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with the playground's stock settings.
func Default() *Config {
	return &Config{
		Version: "1",
		API: APIConfig{
			BaseURI:           DefaultBaseURI,
			TimeoutSecs:       120,
			MaxRetries:        3,
			RequestsPerMinute: 0,
			StrictDone:        false,
		},
		Defaults: DefaultsConfig{
			Model:  "",
			Preset: "",
			Stream: true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		UI: UIConfig{
			Theme:         "auto",
			MarkdownStyle: "auto",
			SidebarOpen:   true,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the circus configuration directory path.
func ConfigDir() (string, error) {
	if dir := os.Getenv("CIRCUS_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".circus"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// DefaultLogPath returns ~/.circus/circus.log.
func DefaultLogPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "circus.log"), nil
}

// ensureSecurePermissions tightens config files to 0600 since they may hold an API key.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the config from the default location. TOML is tried first, then
// JSON, then built-in defaults. Environment overrides are applied last.
func Load() (*Config, error) {
	if path, err := ConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}
	if path, err := ConfigPathJSON(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}
	return finish(Default())
}

// LoadFromPath loads configuration from a specific file. Files ending in .json
// are decoded as JSON, everything else as TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file on top of cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file on top of cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// SetDefaults fills zero values that a partial config file may have left.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Version == "" {
		c.Version = d.Version
	}
	if strings.TrimSpace(c.API.BaseURI) == "" {
		c.API.BaseURI = d.API.BaseURI
	}
	c.API.BaseURI = strings.TrimRight(strings.TrimSpace(c.API.BaseURI), "/")
	c.API.APIKey = strings.TrimSpace(c.API.APIKey)
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = d.API.MaxRetries
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = d.Logging.MaxSizeMB
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	if c.UI.MarkdownStyle == "" {
		c.UI.MarkdownStyle = d.UI.MarkdownStyle
	}
	if c.PresetsFile != "" {
		c.PresetsFile = util.ExpandHome(c.PresetsFile)
	}
	if c.Logging.File != "" {
		c.Logging.File = util.ExpandHome(c.Logging.File)
	}
}

// HasCredentials reports whether both the API key and base URI are set.
func (c *Config) HasCredentials() bool {
	return c.API.APIKey != "" && c.API.BaseURI != ""
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg as TOML with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var b strings.Builder
	b.WriteString("# circus configuration file\n")
	b.WriteString("# Values here are overridden by OPENAI_* and CIRCUS_* environment variables.\n\n")

	if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

var validThemes = map[string]bool{"auto": true, "dark": true, "light": true}

// Validate checks ranges and enumerations. Missing credentials are not an
// error here; the playground reports them when the user submits.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if u, err := url.Parse(c.API.BaseURI); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "api.base_uri",
			Message: fmt.Sprintf("invalid URL %q", c.API.BaseURI),
		})
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, ValidationError{
			Field:   "api.base_uri",
			Message: fmt.Sprintf("unsupported scheme %q, must be http or https", u.Scheme),
		})
	}
	if c.API.TimeoutSecs < 0 {
		errs = append(errs, ValidationError{Field: "api.timeout_secs", Message: "cannot be negative"})
	}
	if c.API.MaxRetries < 1 || c.API.MaxRetries > 10 {
		errs = append(errs, ValidationError{
			Field:   "api.max_retries",
			Message: fmt.Sprintf("%d out of range, must be between 1 and 10", c.API.MaxRetries),
		})
	}
	if c.API.RequestsPerMinute < 0 {
		errs = append(errs, ValidationError{Field: "api.requests_per_minute", Message: "cannot be negative"})
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Logging.Level),
		})
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 || c.Logging.MaxAgeDays < 0 {
		errs = append(errs, ValidationError{Field: "logging", Message: "rotation limits cannot be negative"})
	}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: auto, dark, light", c.UI.Theme),
		})
	}
	for i, m := range c.Models {
		errs = append(errs, m.validate(fmt.Sprintf("models[%d]", i))...)
	}
	for i, p := range c.Presets {
		errs = append(errs, p.validate(fmt.Sprintf("presets[%d]", i))...)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
