// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/semperai/circus-tui/internal/ui/styles"
	"github.com/semperai/circus-tui/internal/util"
)

var numberPrinter = message.NewPrinter(language.English)

// FormatCount renders n with thousands separators.
func FormatCount(n int) string {
	return numberPrinter.Sprintf("%d", n)
}

// Shortcut is a key hint.
type Shortcut struct {
	Key  string
	Desc string
}

// StatusBar is the bottom line of the playground.
type StatusBar struct {
	Model   string
	Preset  string
	State   string
	Busy    bool
	Spinner string // current spinner frame, shown while Busy

	Tokens    int
	Tokenizer string // empty when the model's family is unknown

	// Blocked explains why submit is disabled. Empty means it is enabled.
	Blocked string
	Failed  bool

	Shortcuts []Shortcut
}

// TokenLabel describes the buffer size, e.g. "1,234 tokens (cl100k)".
func (s StatusBar) TokenLabel() string {
	if s.Tokenizer == "" {
		return "tokens n/a"
	}
	unit := " tokens"
	if s.Tokens == 1 {
		unit = " token"
	}
	return FormatCount(s.Tokens) + unit + " (" + s.Tokenizer + ")"
}

// View renders the bar at width cells. Shortcuts are dropped first, then
// the preset name, when space runs out.
func (s StatusBar) View(theme *styles.Theme, width int) string {
	var state string
	switch {
	case s.Busy:
		state = theme.StatusBusy.Render(strings.TrimSpace(s.Spinner + " " + s.State))
	case s.Failed:
		state = theme.StatusError.Render(styles.Indicators.Error + " " + s.State)
	case s.Blocked != "":
		state = theme.Warning.Render(styles.Indicators.Warning + " " + s.Blocked)
	default:
		state = theme.StatusIdle.Render(styles.Indicators.Success + " " + s.State)
	}

	left := []string{theme.Brand.Render("circus"), theme.Value.Render(s.Model)}
	if s.Preset != "" {
		left = append(left, theme.Label.Render(s.Preset))
	}
	right := theme.Label.Render(s.TokenLabel())

	var keys []string
	for _, sc := range s.Shortcuts {
		keys = append(keys, theme.ShortcutKey.Render(sc.Key)+" "+theme.ShortcutDesc.Render(sc.Desc))
	}

	sep := theme.Hint.Render(" · ")
	build := func(left []string, withKeys bool) string {
		line := strings.Join(left, sep) + sep + state
		tail := right
		if withKeys && len(keys) > 0 {
			tail = strings.Join(keys, "  ") + sep + right
		}
		gap := width - 2 - lipgloss.Width(line) - lipgloss.Width(tail)
		if gap < 1 {
			return ""
		}
		return line + strings.Repeat(" ", gap) + tail
	}

	line := build(left, true)
	if line == "" {
		line = build(left, false)
	}
	if line == "" && len(left) > 2 {
		line = build(left[:2], false)
	}
	if line == "" {
		line = util.TruncateWidth(s.Model+" "+s.State, max(width-2, 1))
	}
	return theme.StatusBar.Width(width).Render(line)
}
