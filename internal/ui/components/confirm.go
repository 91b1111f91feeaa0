// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/semperai/circus-tui/internal/ui/styles"
)

// ConfirmResultMsg is emitted when a dialog closes. Tag identifies what was
// being confirmed.
type ConfirmResultMsg struct {
	Tag       string
	Confirmed bool
}

// ConfirmDialog is a modal yes/no question.
type ConfirmDialog struct {
	prompt string
	tag    string
	active bool
	yes    bool
}

// Ask opens the dialog. "No" is preselected.
func (d *ConfirmDialog) Ask(prompt, tag string) {
	d.prompt = prompt
	d.tag = tag
	d.active = true
	d.yes = false
}

// Active reports whether the dialog is showing.
func (d *ConfirmDialog) Active() bool { return d.active }

func (d *ConfirmDialog) close(confirmed bool) tea.Cmd {
	d.active = false
	tag := d.tag
	return func() tea.Msg { return ConfirmResultMsg{Tag: tag, Confirmed: confirmed} }
}

// Update handles keys while the dialog is active.
func (d *ConfirmDialog) Update(msg tea.Msg) tea.Cmd {
	key, ok := msg.(tea.KeyMsg)
	if !ok || !d.active {
		return nil
	}
	switch key.String() {
	case "left", "right", "tab", "shift+tab", "h", "l":
		d.yes = !d.yes
	case "y", "Y":
		return d.close(true)
	case "n", "N", "esc", "ctrl+c":
		return d.close(false)
	case "enter", " ":
		return d.close(d.yes)
	}
	return nil
}

// View renders the dialog centred in width×height.
func (d *ConfirmDialog) View(theme *styles.Theme, width, height int) string {
	if !d.active {
		return ""
	}
	yes, no := theme.Button.Render("Yes"), theme.ButtonActive.Render("No")
	if d.yes {
		yes, no = theme.ButtonActive.Render("Yes"), theme.Button.Render("No")
	}
	body := lipgloss.JoinVertical(lipgloss.Center,
		theme.Warning.Render(d.prompt),
		"",
		lipgloss.JoinHorizontal(lipgloss.Top, yes, "  ", no),
	)
	box := theme.Dialog.Render(body)
	if width <= 0 || height <= 0 {
		return box
	}
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}
