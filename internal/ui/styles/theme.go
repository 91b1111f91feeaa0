// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styles for every playground surface.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	App    lipgloss.Style
	Header lipgloss.Style
	Brand  lipgloss.Style

	// Panels
	Panel        lipgloss.Style
	PanelFocused lipgloss.Style
	PanelTitle   lipgloss.Style

	// Editor
	Editor     lipgloss.Style
	EditorBusy lipgloss.Style

	// Sidebar widgets
	Label         lipgloss.Style
	Value         lipgloss.Style
	WidgetFocused lipgloss.Style
	Hint          lipgloss.Style
	Tag           lipgloss.Style
	SliderFill    lipgloss.Style
	SliderEmpty   lipgloss.Style

	// Status bar
	StatusBar    lipgloss.Style
	StatusIdle   lipgloss.Style
	StatusBusy   lipgloss.Style
	StatusError  lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style

	// Error toast and dialogs
	Toast        lipgloss.Style
	ToastTitle   lipgloss.Style
	ToastDetail  lipgloss.Style
	Dialog       lipgloss.Style
	Button       lipgloss.Style
	ButtonActive lipgloss.Style

	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
}

// NewTheme builds a theme. mode is "auto", "dark" or "light".
func NewTheme(mode string) *Theme {
	profile := termenv.ColorProfile()

	var dark bool
	switch strings.ToLower(mode) {
	case "dark":
		dark = true
		lipgloss.SetHasDarkBackground(true)
	case "light":
		dark = false
		lipgloss.SetHasDarkBackground(false)
	default:
		dark = termenv.HasDarkBackground()
	}

	t := &Theme{IsDark: dark, ColorProfile: profile}
	t.initStyles()
	return t
}

// Spinner returns the spinner suited to the terminal.
func (t *Theme) Spinner() spinner.Spinner {
	if t.ColorProfile == termenv.Ascii {
		return ASCIISpinner
	}
	return Spinner
}

// GlamourStyle names the glamour style for markdown rendering. An explicit
// configured style wins over the detected background.
func (t *Theme) GlamourStyle(configured string) string {
	if configured != "" && configured != "auto" {
		return configured
	}
	if t.ColorProfile == termenv.Ascii {
		return "notty"
	}
	if t.IsDark {
		return "dark"
	}
	return "light"
}

func (t *Theme) initStyles() {
	t.App = lipgloss.NewStyle()

	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)
	t.Brand = lipgloss.NewStyle().Bold(true).Foreground(Cyan)

	t.Panel = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.PanelFocused = t.Panel.BorderForeground(FocusRing)
	t.PanelTitle = lipgloss.NewStyle().Bold(true).Foreground(Purple)

	t.Editor = lipgloss.NewStyle().Foreground(TextPrimary)
	t.EditorBusy = lipgloss.NewStyle().Foreground(TextSecondary)

	t.Label = lipgloss.NewStyle().Foreground(TextSecondary)
	t.Value = lipgloss.NewStyle().Foreground(TextPrimary).Bold(true)
	t.WidgetFocused = lipgloss.NewStyle().Foreground(Purple).Bold(true)
	t.Hint = lipgloss.NewStyle().Foreground(TextMuted).Italic(true)
	t.Tag = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Cyan).
		Padding(0, 1)
	t.SliderFill = lipgloss.NewStyle().Foreground(Purple)
	t.SliderEmpty = lipgloss.NewStyle().Foreground(OverlayDim)

	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)
	t.StatusIdle = lipgloss.NewStyle().Foreground(Emerald).Bold(true)
	t.StatusBusy = lipgloss.NewStyle().Foreground(Amber).Bold(true)
	t.StatusError = lipgloss.NewStyle().Foreground(Rose).Bold(true)
	t.ShortcutKey = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	t.ShortcutDesc = lipgloss.NewStyle().Foreground(TextMuted)

	t.Toast = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Rose).
		Background(ErrorBg).
		Padding(0, 1)
	t.ToastTitle = lipgloss.NewStyle().Foreground(Rose).Bold(true)
	t.ToastDetail = lipgloss.NewStyle().Foreground(TextPrimary)

	t.Dialog = lipgloss.NewStyle().
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(Amber).
		Padding(1, 2)
	t.Button = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Padding(0, 2)
	t.ButtonActive = t.Button.
		Foreground(TextInverse).
		Background(Purple).
		Bold(true)

	t.Success = lipgloss.NewStyle().Foreground(Emerald).Bold(true)
	t.Error = lipgloss.NewStyle().Foreground(Rose).Bold(true)
	t.Warning = lipgloss.NewStyle().Foreground(Amber).Bold(true)
}
