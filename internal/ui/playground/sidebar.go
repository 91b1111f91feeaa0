// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package playground

import (
	"strings"

	"github.com/semperai/circus-tui/internal/completion"
	"github.com/semperai/circus-tui/internal/config"
	"github.com/semperai/circus-tui/internal/params"
	"github.com/semperai/circus-tui/internal/ui/components"
	"github.com/semperai/circus-tui/internal/ui/styles"
	"github.com/semperai/circus-tui/internal/util"
)

const sidebarWidth = 36

// sidebar holds the parameter widgets in display order.
type sidebar struct {
	preset      *components.Dropdown
	model       *components.Dropdown
	temperature *components.Slider
	maxTokens   *components.Slider
	stops       *components.TagInput
	topP        *components.Slider
	frequency   *components.Slider
	presence    *components.Slider
	startText   *components.TextField
	restartText *components.TextField

	advanced   *components.Checkbox
	apiKey     *components.TextField
	baseURI    *components.TextField
	stream     *components.Checkbox
	strictDone *components.Checkbox
}

func newSidebar() *sidebar {
	s := &sidebar{
		preset:      components.NewDropdown("Preset", nil),
		model:       components.NewDropdown("Model", nil),
		temperature: components.NewSlider("Temperature", params.MinTemperature, params.MaxTemperature, 0.01, 2),
		maxTokens:   components.NewSlider("Maximum length", 1, 4096, 1, 0),
		stops:       components.NewTagInput("Stop sequences", `enter a sequence, e.g. \n`),
		topP:        components.NewSlider("Top P", params.MinTopP, params.MaxTopP, 0.01, 2),
		frequency:   components.NewSlider("Frequency penalty", params.MinPenalty, params.MaxPenalty, 0.01, 2),
		presence:    components.NewSlider("Presence penalty", params.MinPenalty, params.MaxPenalty, 0.01, 2),
		startText:   components.NewTextField("Inject start text", `e.g. \nA:`, false),
		restartText: components.NewTextField("Inject restart text", `e.g. \nQ:`, false),
		advanced:    components.NewCheckbox("Advanced settings", false),
		apiKey:      components.NewTextField("API key", "sk-...", true),
		baseURI:     components.NewTextField("Base URI", completion.DefaultBaseURI, false),
		stream:      components.NewCheckbox("Stream", true),
		strictDone:  components.NewCheckbox("Require [DONE]", false),
	}
	s.preset.Placeholder = "Select a preset"
	return s
}

// widgets returns the visible widgets in focus order.
func (s *sidebar) widgets() []components.Widget {
	ws := []components.Widget{
		s.preset, s.model, s.temperature, s.maxTokens, s.stops,
		s.topP, s.frequency, s.presence, s.startText, s.restartText,
		s.advanced,
	}
	if s.advanced.Checked() {
		ws = append(ws, s.apiKey, s.baseURI, s.stream, s.strictDone)
	}
	return ws
}

func modelOptions(cat *config.Catalog) []components.Option {
	opts := make([]components.Option, 0, len(cat.Models))
	for _, m := range cat.Models {
		opts = append(opts, components.Option{Value: m.ID, Label: m.Name})
	}
	return opts
}

func presetOptions(cat *config.Catalog) []components.Option {
	opts := make([]components.Option, 0, len(cat.Presets))
	for _, p := range cat.Presets {
		opts = append(opts, components.Option{Value: p.ID, Label: p.Name})
	}
	return opts
}

// setCatalog refreshes the option lists.
func (s *sidebar) setCatalog(cat *config.Catalog) {
	s.model.SetOptions(modelOptions(cat))
	s.preset.SetOptions(presetOptions(cat))
}

// sync pushes a parameter snapshot into the widgets. Focused text fields
// are left alone so typing is not disturbed.
func (s *sidebar) sync(p params.Params, ceiling int, presetID string) {
	s.preset.SetValue(presetID)
	s.model.SetValue(p.Model)

	s.temperature.SetValue(p.Temperature)
	if ceiling > 0 {
		s.maxTokens.SetMax(float64(ceiling))
	}
	s.maxTokens.SetValue(float64(p.MaxTokens))
	s.topP.SetValue(p.TopP)
	s.frequency.SetValue(p.FrequencyPenalty)
	s.presence.SetValue(p.PresencePenalty)
	s.stops.SetTags(p.StopSequences)
	s.stream.SetChecked(p.Stream)

	if !s.startText.Focused() {
		s.startText.SetValue(util.Escape(p.StartText))
	}
	if !s.restartText.Focused() {
		s.restartText.SetValue(util.Escape(p.RestartText))
	}
}

// syncCredentials fills the advanced fields.
func (s *sidebar) syncCredentials(creds completion.Credentials) {
	if !s.apiKey.Focused() {
		s.apiKey.SetValue(creds.APIKey)
	}
	if !s.baseURI.Focused() {
		s.baseURI.SetValue(creds.BaseURI)
	}
}

func (s *sidebar) blurAll() {
	for _, w := range []components.Widget{
		s.preset, s.model, s.temperature, s.maxTokens, s.stops,
		s.topP, s.frequency, s.presence, s.startText, s.restartText,
		s.advanced, s.apiKey, s.baseURI, s.stream, s.strictDone,
	} {
		w.Blur()
	}
}

func (s *sidebar) view(theme *styles.Theme, height int, focused bool) string {
	inner := sidebarWidth - 4
	parts := make([]string, 0, 16)
	parts = append(parts, theme.PanelTitle.Render("Parameters"))
	for _, w := range s.widgets() {
		parts = append(parts, w.View(theme, inner))
	}
	body := strings.Join(parts, "\n\n")

	// Keep the focused widget on screen when the panel is short.
	lines := strings.Split(body, "\n")
	if height > 2 && len(lines) > height-2 {
		start := 0
		for i, w := range s.widgets() {
			if w.Focused() {
				start = focusLine(parts[:i+2])
				break
			}
		}
		if start > len(lines)-(height-2) {
			start = len(lines) - (height - 2)
		}
		lines = lines[start : start+height-2]
		body = strings.Join(lines, "\n")
	}

	panel := theme.Panel
	if focused {
		panel = theme.PanelFocused
	}
	return panel.Width(sidebarWidth - 2).Height(max(height-2, 1)).Render(body)
}

// focusLine returns the first line of the last part when parts are joined
// by blank lines.
func focusLine(parts []string) int {
	n := 0
	for _, p := range parts[:len(parts)-1] {
		n += strings.Count(p, "\n") + 2
	}
	return n
}
