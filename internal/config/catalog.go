// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed catalog.toml
var builtinCatalog []byte

// MaxStopSequences is the most stop sequences the completions API accepts.
const MaxStopSequences = 4

// ErrEmptyCatalog is returned when no model is available after merging.
var ErrEmptyCatalog = errors.New("catalogue has no models")

// Model describes a selectable completion model.
type Model struct {
	ID        string `toml:"id" json:"id"`
	Name      string `toml:"name" json:"name"`
	MaxTokens int    `toml:"max_tokens" json:"max_tokens"`

	// Tokenizer names the BPE family used for the token counter.
	Tokenizer string `toml:"tokenizer" json:"tokenizer"`
}

// Preset is a named bundle of parameters plus the text it seeds the buffer with.
type Preset struct {
	ID               string   `toml:"id" json:"id"`
	Name             string   `toml:"name" json:"name"`
	Model            string   `toml:"model" json:"model"`
	Temperature      float64  `toml:"temperature" json:"temperature"`
	MaxTokens        int      `toml:"max_tokens" json:"max_tokens"`
	StopSequences    []string `toml:"stop_sequences" json:"stop_sequences"`
	TopP             float64  `toml:"top_p" json:"top_p"`
	FrequencyPenalty float64  `toml:"frequency_penalty" json:"frequency_penalty"`
	PresencePenalty  float64  `toml:"presence_penalty" json:"presence_penalty"`
	StartText        string   `toml:"start_text" json:"start_text"`
	RestartText      string   `toml:"restart_text" json:"restart_text"`
	Input            string   `toml:"input" json:"input"`
}

func (m Model) validate(field string) []ValidationError {
	var errs []ValidationError
	if strings.TrimSpace(m.ID) == "" {
		errs = append(errs, ValidationError{Field: field + ".id", Message: "is required"})
	}
	if m.MaxTokens <= 0 {
		errs = append(errs, ValidationError{Field: field + ".max_tokens", Message: "must be positive"})
	}
	if m.Tokenizer == "" {
		errs = append(errs, ValidationError{Field: field + ".tokenizer", Message: "is required"})
	}
	return errs
}

func (p Preset) validate(field string) []ValidationError {
	var errs []ValidationError
	if strings.TrimSpace(p.ID) == "" {
		errs = append(errs, ValidationError{Field: field + ".id", Message: "is required"})
	}
	if p.Temperature < 0 || p.Temperature > 1 {
		errs = append(errs, ValidationError{Field: field + ".temperature", Message: "must be between 0 and 1"})
	}
	if p.TopP < 0 || p.TopP > 1 {
		errs = append(errs, ValidationError{Field: field + ".top_p", Message: "must be between 0 and 1"})
	}
	if p.FrequencyPenalty < 0 || p.FrequencyPenalty > 2 {
		errs = append(errs, ValidationError{Field: field + ".frequency_penalty", Message: "must be between 0 and 2"})
	}
	if p.PresencePenalty < 0 || p.PresencePenalty > 2 {
		errs = append(errs, ValidationError{Field: field + ".presence_penalty", Message: "must be between 0 and 2"})
	}
	if p.MaxTokens < 0 {
		errs = append(errs, ValidationError{Field: field + ".max_tokens", Message: "cannot be negative"})
	}
	if len(p.StopSequences) > MaxStopSequences {
		errs = append(errs, ValidationError{
			Field:   field + ".stop_sequences",
			Message: fmt.Sprintf("has %d entries, at most %d allowed", len(p.StopSequences), MaxStopSequences),
		})
	}
	return errs
}

// Catalog is the ordered list of models and presets offered by the playground.
type Catalog struct {
	Models  []Model  `toml:"models"`
	Presets []Preset `toml:"presets"`
}

// DefaultCatalog decodes the embedded catalogue.
func DefaultCatalog() (*Catalog, error) {
	var cat Catalog
	if err := toml.Unmarshal(builtinCatalog, &cat); err != nil {
		return nil, fmt.Errorf("failed to decode built-in catalogue: %w", err)
	}
	return &cat, nil
}

// LoadCatalogFile reads a TOML file holding [[models]] and [[presets]] tables.
func LoadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read presets file: %w", err)
	}
	var cat Catalog
	if err := toml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("failed to decode presets file %s: %w", path, err)
	}

	var errs ValidateErrors
	for i, m := range cat.Models {
		errs = append(errs, m.validate(fmt.Sprintf("models[%d]", i))...)
	}
	for i, p := range cat.Presets {
		errs = append(errs, p.validate(fmt.Sprintf("presets[%d]", i))...)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid presets file %s: %w", path, errs)
	}
	return &cat, nil
}

// Catalog builds the effective catalogue: built-ins, then the presets file,
// then models and presets from the config itself.
func (c *Config) Catalog() (*Catalog, error) {
	cat, err := DefaultCatalog()
	if err != nil {
		return nil, err
	}
	if c.PresetsFile != "" {
		extra, err := LoadCatalogFile(c.PresetsFile)
		if err != nil {
			return nil, err
		}
		cat.Merge(extra.Models, extra.Presets)
	}
	cat.Merge(c.Models, c.Presets)
	if len(cat.Models) == 0 {
		return nil, ErrEmptyCatalog
	}
	return cat, nil
}

// Merge replaces entries with matching IDs and appends the rest, keeping order.
func (c *Catalog) Merge(models []Model, presets []Preset) {
	for _, m := range models {
		if i := c.modelIndex(m.ID); i >= 0 {
			c.Models[i] = m
		} else {
			c.Models = append(c.Models, m)
		}
	}
	for _, p := range presets {
		if i := c.presetIndex(p.ID); i >= 0 {
			c.Presets[i] = p
		} else {
			c.Presets = append(c.Presets, p)
		}
	}
}

func (c *Catalog) modelIndex(id string) int {
	for i := range c.Models {
		if c.Models[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *Catalog) presetIndex(id string) int {
	for i := range c.Presets {
		if c.Presets[i].ID == id {
			return i
		}
	}
	return -1
}

// Model looks up a model by ID.
func (c *Catalog) Model(id string) (Model, bool) {
	if i := c.modelIndex(id); i >= 0 {
		return c.Models[i], true
	}
	return Model{}, false
}

// ModelOrDefault returns the named model, or the first one when id is unknown.
func (c *Catalog) ModelOrDefault(id string) Model {
	if m, ok := c.Model(id); ok {
		return m
	}
	if len(c.Models) == 0 {
		return Model{}
	}
	return c.Models[0]
}

// Preset looks up a preset by ID.
func (c *Catalog) Preset(id string) (Preset, bool) {
	if i := c.presetIndex(id); i >= 0 {
		p := c.Presets[i]
		p.StopSequences = append([]string(nil), p.StopSequences...)
		return p, true
	}
	return Preset{}, false
}
