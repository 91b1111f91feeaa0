// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package playground

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/semperai/circus-tui/internal/controller"
	"github.com/semperai/circus-tui/internal/preset"
	"github.com/semperai/circus-tui/internal/ui/components"
)

// Update handles one message.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case runEventMsg:
		return m, m.handleRunEvent(msg)

	case runClosedMsg:
		if msg.run == m.run {
			m.settle()
		}
		return m, nil

	case components.ConfirmResultMsg:
		m.applyPreset(msg)
		return m, nil

	case catalogMsg:
		m.loader.SetCatalog(msg.catalog)
		m.side.setCatalog(msg.catalog)
		m.afterParamsChange()
		m.toasts.Info("Presets reloaded")
		return m, waitForCatalog(m.catalogs)

	case components.ToastTickMsg:
		m.toasts.Tick()
		return m, components.ToastTick()

	case spinner.TickMsg:
		if !m.Busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	// Cursor blink and other internal messages.
	var cmd tea.Cmd
	if m.focus == focusEditor {
		m.editor, cmd = m.editor.Update(msg)
	} else if w := m.focused(); w != nil {
		cmd = w.Update(msg)
	}
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirm.Active() {
		return m, m.confirm.Update(msg)
	}

	w := m.focused()
	capturing := w != nil && w.Capturing()

	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.Busy() {
			m.ctrl.Cancel()
		}
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Submit):
		return m, m.submit()

	case key.Matches(msg, m.keys.Cancel) && !capturing:
		if m.Busy() {
			m.cancel()
			return m, nil
		}
		return m, m.setFocus(focusEditor)

	case key.Matches(msg, m.keys.NextFocus):
		return m, m.moveFocus(1)

	case key.Matches(msg, m.keys.PrevFocus):
		return m, m.moveFocus(-1)

	case key.Matches(msg, m.keys.FocusEditor):
		return m, m.setFocus(focusEditor)

	case key.Matches(msg, m.keys.ToggleSidebar):
		m.showSidebar = !m.showSidebar
		if !m.showSidebar {
			m.setFocus(focusEditor)
		}
		m.layout()
		return m, nil

	case key.Matches(msg, m.keys.ToggleCurl):
		m.showCurl = !m.showCurl
		m.layout()
		return m, nil

	case key.Matches(msg, m.keys.ToggleMD):
		m.showMarkdown = !m.showMarkdown
		m.layout()
		m.refreshMarkdown(true)
		return m, nil

	case key.Matches(msg, m.keys.Dismiss):
		m.toasts.DismissAll()
		return m, nil
	}

	if w != nil {
		before := m.store.Snapshot()
		cmd := w.Update(msg)
		if !before.Equal(m.store.Snapshot()) || w == m.side.apiKey || w == m.side.baseURI {
			m.afterParamsChange()
		}
		if w == m.side.advanced && !m.side.advanced.Checked() {
			// The focused index may now point past the visible widgets.
			m.focus = min(m.focus, len(m.side.widgets())-1)
		}
		return m, cmd
	}

	if m.Busy() {
		// The buffer belongs to the run until it settles.
		return m, nil
	}
	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	if text := m.editor.Value(); text != m.buf.Text() {
		m.buf.SetText(text)
		m.afterBufferChange()
	}
	return m, cmd
}

// focused returns the focused sidebar widget, or nil for the editor.
func (m *Model) focused() components.Widget {
	ws := m.side.widgets()
	if m.focus < 0 || m.focus >= len(ws) || !m.showSidebar {
		return nil
	}
	return ws[m.focus]
}

func (m *Model) setFocus(i int) tea.Cmd {
	m.side.blurAll()
	m.editor.Blur()
	m.focus = i
	if w := m.focused(); w != nil {
		return w.Focus()
	}
	m.focus = focusEditor
	return m.editor.Focus()
}

// moveFocus cycles editor -> widgets -> editor.
func (m *Model) moveFocus(delta int) tea.Cmd {
	if !m.showSidebar {
		return m.setFocus(focusEditor)
	}
	n := len(m.side.widgets()) + 1 // editor included
	pos := (m.focus + 1 + delta + n) % n
	return m.setFocus(pos - 1)
}

// submit starts a completion for the current buffer.
func (m *Model) submit() tea.Cmd {
	if reason := m.blockedReason(); reason != "" {
		m.toasts.Warning("Cannot submit: " + reason)
		return nil
	}
	run, err := m.ctrl.Submit(m.ctx, m.buf, m.store.Snapshot(), m.creds)
	if err != nil {
		m.toasts.NotifyError(err)
		return nil
	}
	m.run = run
	m.afterBufferChange()
	return tea.Batch(waitForEvent(run), m.spinner.Tick)
}

func (m *Model) cancel() {
	if m.ctrl.Cancel() {
		m.toasts.Info("Completion cancelled")
		m.afterBufferChange()
	}
}

func (m *Model) handleRunEvent(msg runEventMsg) tea.Cmd {
	if msg.run != m.run {
		return nil
	}
	if msg.run.Apply(msg.ev) {
		switch msg.ev.Kind {
		case controller.EventDelta:
			m.afterAppend(msg.ev.Text)
		case controller.EventFinished:
			m.afterBufferChange()
		}
	}
	if msg.ev.Kind == controller.EventFinished {
		m.settle()
	}
	return waitForEvent(msg.run)
}

// settle reports the outcome of a finished run once.
func (m *Model) settle() {
	if m.run == nil || m.reported == m.run {
		return
	}
	select {
	case <-m.run.Done():
	default:
		return
	}
	m.reported = m.run
	out := m.run.Outcome()
	if out.Err != nil && !out.Cancelled {
		m.toasts.NotifyError(out.Err)
	}
	m.logger.Debug("run settled", zap.String("run", out.RunID), zap.Stringer("state", out.State))
}

// applyPreset handles the answer of the preset confirmation dialog.
func (m *Model) applyPreset(msg components.ConfirmResultMsg) {
	if !msg.Confirmed {
		m.afterParamsChange()
		return
	}
	if m.Busy() {
		m.cancel()
	}
	if _, err := m.loader.Apply(msg.Tag, preset.Always); err != nil {
		m.toasts.NotifyError(err)
	}
	m.afterBufferChange()
	m.afterParamsChange()
}
