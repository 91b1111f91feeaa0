// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/semperai/circus-tui/internal/completion"
	"github.com/semperai/circus-tui/internal/ui/styles"
	"github.com/semperai/circus-tui/internal/util"
)

// ToastKind selects a toast's colour and lifetime.
type ToastKind int

const (
	ToastInfo ToastKind = iota
	ToastSuccess
	ToastWarning
	ToastError
)

// Lifetimes. Errors stay longer because their detail takes time to read.
const (
	InfoToastDuration  = 4 * time.Second
	ErrorToastDuration = 12 * time.Second
)

const maxToasts = 4

// maxDetailLines caps the serialised error shown in a toast.
const maxDetailLines = 12

// Toast is one notification.
type Toast struct {
	ID        int
	Kind      ToastKind
	Title     string
	Detail    string
	CreatedAt time.Time
	Duration  time.Duration
}

func (t Toast) expired(now time.Time) bool {
	return now.Sub(t.CreatedAt) >= t.Duration
}

// ToastManager keeps the visible toasts, newest first.
type ToastManager struct {
	mu     sync.Mutex
	toasts []Toast
	nextID int
	now    func() time.Time
}

// NewToastManager creates an empty manager.
func NewToastManager() *ToastManager {
	return &ToastManager{nextID: 1, now: time.Now}
}

func (m *ToastManager) add(t Toast) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	t.ID = m.nextID
	m.nextID++
	t.CreatedAt = m.now()
	m.toasts = append([]Toast{t}, m.toasts...)
	if len(m.toasts) > maxToasts {
		m.toasts = m.toasts[:maxToasts]
	}
	return t.ID
}

// Info shows a short message.
func (m *ToastManager) Info(title string) int {
	return m.add(Toast{Kind: ToastInfo, Title: title, Duration: InfoToastDuration})
}

// Success shows a confirmation.
func (m *ToastManager) Success(title string) int {
	return m.add(Toast{Kind: ToastSuccess, Title: title, Duration: InfoToastDuration})
}

// Warning shows a message that needs attention but is not a failure.
func (m *ToastManager) Warning(title string) int {
	return m.add(Toast{Kind: ToastWarning, Title: title, Duration: InfoToastDuration * 2})
}

// NotifyError reports err. The title is a one-line summary and the detail
// is the serialised error, including the raw response body of API errors.
// Cancellation is not an error worth a toast and is ignored.
func (m *ToastManager) NotifyError(err error) int {
	if err == nil || errors.Is(err, context.Canceled) {
		return 0
	}
	return m.add(Toast{
		Kind:     ToastError,
		Title:    errorTitle(err),
		Detail:   completion.Diagnostic(err),
		Duration: ErrorToastDuration,
	})
}

func errorTitle(err error) string {
	var apiErr *completion.APIError
	switch {
	case errors.Is(err, completion.ErrAuthFailed):
		return "Authentication failed. Check the API key."
	case errors.Is(err, completion.ErrRateLimited):
		return "Rate limited by the API."
	case errors.Is(err, completion.ErrModelNotFound):
		return "Model not found."
	case errors.Is(err, completion.ErrStreamTruncated):
		return "Stream ended before [DONE]."
	case errors.As(err, &apiErr):
		return "Request failed: " + util.FirstLine(apiErr.Message)
	}
	return util.FirstLine(err.Error())
}

// Dismiss removes the toast with id.
func (m *ToastManager) Dismiss(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.toasts {
		if t.ID == id {
			m.toasts = append(m.toasts[:i], m.toasts[i+1:]...)
			return
		}
	}
}

// DismissAll clears every toast.
func (m *ToastManager) DismissAll() {
	m.mu.Lock()
	m.toasts = nil
	m.mu.Unlock()
}

// Tick drops expired toasts and returns what remains.
func (m *ToastManager) Tick() []Toast {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	active := m.toasts[:0]
	for _, t := range m.toasts {
		if !t.expired(now) {
			active = append(active, t)
		}
	}
	m.toasts = active
	return append([]Toast(nil), m.toasts...)
}

// Toasts returns a copy of the visible toasts.
func (m *ToastManager) Toasts() []Toast {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Toast(nil), m.toasts...)
}

// Len is the number of visible toasts.
func (m *ToastManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.toasts)
}

// ToastTickMsg drives expiry.
type ToastTickMsg time.Time

// ToastTick schedules the next expiry check.
func ToastTick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return ToastTickMsg(t)
	})
}

// RenderToast draws one toast at most width cells wide.
func RenderToast(theme *styles.Theme, t Toast, width int) string {
	if width > 72 {
		width = 72
	}
	if width < 24 {
		width = 24
	}

	var icon string
	var color lipgloss.AdaptiveColor
	switch t.Kind {
	case ToastError:
		icon, color = styles.Indicators.Error, styles.Rose
	case ToastWarning:
		icon, color = styles.Indicators.Warning, styles.Amber
	case ToastSuccess:
		icon, color = styles.Indicators.Success, styles.Emerald
	default:
		icon, color = styles.Indicators.Info, styles.Cyan
	}

	inner := width - 4
	title := theme.ToastTitle.Foreground(color).Render(icon + " " + util.TruncateWidth(t.Title, inner-len(icon)-1))
	body := title
	if t.Detail != "" {
		lines := strings.Split(t.Detail, "\n")
		if len(lines) > maxDetailLines {
			lines = append(lines[:maxDetailLines], "...")
		}
		for i, l := range lines {
			lines[i] = util.TruncateWidth(l, inner)
		}
		body += "\n" + theme.ToastDetail.Render(strings.Join(lines, "\n"))
	}
	body += "\n" + theme.Hint.Render("x dismiss")

	box := theme.Toast
	if t.Kind != ToastError {
		box = box.BorderForeground(color).UnsetBackground()
	}
	return box.Width(width - 2).Render(body)
}

// RenderToasts stacks toasts in the bottom-right corner of a width×height area.
func RenderToasts(theme *styles.Theme, toasts []Toast, width, height int) string {
	if len(toasts) == 0 {
		return ""
	}
	rendered := make([]string, 0, len(toasts))
	for i := len(toasts) - 1; i >= 0; i-- {
		rendered = append(rendered, RenderToast(theme, toasts[i], width/2))
	}
	stack := lipgloss.JoinVertical(lipgloss.Right, rendered...)
	if width <= 0 || height <= 0 {
		return stack
	}
	return lipgloss.Place(width, height, lipgloss.Right, lipgloss.Bottom, stack)
}
