// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package playground

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the playground's global bindings. Keys not listed here go to
// the focused widget or the editor.
type KeyMap struct {
	Submit        key.Binding
	Cancel        key.Binding
	NextFocus     key.Binding
	PrevFocus     key.Binding
	FocusEditor   key.Binding
	ToggleSidebar key.Binding
	ToggleCurl    key.Binding
	ToggleMD      key.Binding
	Dismiss       key.Binding
	Quit          key.Binding
}

// DefaultKeyMap returns the default bindings. Terminals cannot tell
// ctrl+enter from enter, so submit is ctrl+s or alt+enter.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Submit: key.NewBinding(
			key.WithKeys("ctrl+s", "alt+enter"),
			key.WithHelp("C-s", "submit"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
		NextFocus: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next field"),
		),
		PrevFocus: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("S-tab", "prev field"),
		),
		FocusEditor: key.NewBinding(
			key.WithKeys("ctrl+e"),
			key.WithHelp("C-e", "editor"),
		),
		ToggleSidebar: key.NewBinding(
			key.WithKeys("ctrl+b"),
			key.WithHelp("C-b", "sidebar"),
		),
		ToggleCurl: key.NewBinding(
			key.WithKeys("ctrl+u"),
			key.WithHelp("C-u", "curl"),
		),
		ToggleMD: key.NewBinding(
			key.WithKeys("f2"),
			key.WithHelp("F2", "markdown"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("C-x", "dismiss"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "ctrl+q"),
			key.WithHelp("C-c", "quit"),
		),
	}
}
