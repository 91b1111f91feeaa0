// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package playground

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/semperai/circus-tui/internal/ui/components"
)

const maxCurlHeight = 12

func (m *Model) curlHeight() int {
	if !m.showCurl {
		return 0
	}
	lines := strings.Count(m.curl.Command(), "\n") + 1
	return min(lines+3, maxCurlHeight)
}

func (m *Model) mainWidth() int {
	w := m.width
	if m.showSidebar {
		w -= sidebarWidth
	}
	return max(w, 10)
}

func (m *Model) bodyHeight() int {
	return max(m.height-2-m.curlHeight(), 3)
}

// layout sizes the editor and the markdown viewport.
func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	main := m.mainWidth()
	editorWidth := main
	if m.showMarkdown {
		editorWidth = main / 2
		m.markdown.Width = main - editorWidth - 4
		m.markdown.Height = m.bodyHeight() - 3
	} else {
		m.markdown.Width = 0
	}
	m.editor.SetWidth(max(editorWidth-4, 1))
	m.editor.SetHeight(max(m.bodyHeight()-3, 1))
}

// View renders the playground.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "loading..."
	}

	header := m.headerView()
	status := m.statusView()

	if m.confirm.Active() {
		dialog := m.confirm.View(m.theme, m.width, m.height-2)
		return lipgloss.JoinVertical(lipgloss.Left, header, dialog, status)
	}

	body := m.bodyView()
	if m.showCurl {
		body = lipgloss.JoinVertical(lipgloss.Left, body, m.curl.View(m.theme, m.width))
	}
	body = m.overlayToasts(body)

	return lipgloss.JoinVertical(lipgloss.Left, header, body, status)
}

func (m *Model) headerView() string {
	title := m.theme.Brand.Render("circus") + m.theme.Label.Render("  completion playground")
	hint := m.theme.Hint.Render("tab fields · C-b sidebar · C-u curl · F2 markdown")
	gap := m.width - 2 - lipgloss.Width(title) - lipgloss.Width(hint)
	if gap < 1 {
		return m.theme.Header.Width(m.width).Render(title)
	}
	return m.theme.Header.Width(m.width).Render(title + strings.Repeat(" ", gap) + hint)
}

func (m *Model) bodyView() string {
	height := m.bodyHeight()

	editorPanel := m.theme.Panel
	if m.focus == focusEditor {
		editorPanel = m.theme.PanelFocused
	}
	title := "Prompt"
	editorStyle := m.theme.Editor
	if m.Busy() {
		title = "Prompt (read-only while generating)"
		editorStyle = m.theme.EditorBusy
	}
	editor := editorPanel.
		Width(m.editor.Width() + 2).
		Height(height - 2).
		Render(m.theme.PanelTitle.Render(title) + "\n" + editorStyle.Render(m.editor.View()))

	main := editor
	if m.showMarkdown {
		md := m.theme.Panel.
			Width(m.markdown.Width + 2).
			Height(height - 2).
			Render(m.theme.PanelTitle.Render("Markdown") + "\n" + m.markdown.View())
		main = lipgloss.JoinHorizontal(lipgloss.Top, editor, md)
	}

	if !m.showSidebar {
		return main
	}
	side := m.side.view(m.theme, height, m.focus != focusEditor)
	return lipgloss.JoinHorizontal(lipgloss.Top, main, side)
}

func (m *Model) statusView() string {
	sb := components.StatusBar{
		Model:     m.store.Snapshot().Model,
		Preset:    m.loader.Current(),
		Tokens:    m.tokens,
		Tokenizer: m.tokenizer,
		Blocked:   m.blockedReason(),
		Shortcuts: []components.Shortcut{
			{Key: "C-s", Desc: "submit"},
			{Key: "esc", Desc: "cancel"},
			{Key: "C-c", Desc: "quit"},
		},
	}
	switch {
	case m.Busy():
		sb.Busy = true
		sb.Blocked = ""
		sb.Spinner = m.spinner.View()
		sb.State = m.run.State().String()
	case m.run != nil:
		out := m.run.Outcome()
		sb.State = out.State.String()
		sb.Failed = out.Err != nil && !out.Cancelled
		if out.Cancelled {
			sb.State = "cancelled"
		}
	default:
		sb.State = "ready"
	}
	return sb.View(m.theme, m.width)
}

// overlayToasts replaces the bottom lines of body with the toast stack.
func (m *Model) overlayToasts(body string) string {
	toasts := m.toasts.Toasts()
	if len(toasts) == 0 {
		return body
	}
	stack := components.RenderToasts(m.theme, toasts, m.width, 0)
	stackLines := strings.Split(stack, "\n")
	lines := strings.Split(body, "\n")
	if len(stackLines) > len(lines) {
		stackLines = stackLines[len(stackLines)-len(lines):]
	}
	start := len(lines) - len(stackLines)
	for i, l := range stackLines {
		lines[start+i] = lipgloss.PlaceHorizontal(m.width, lipgloss.Right, l)
	}
	return strings.Join(lines, "\n")
}
