// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package playground

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/semperai/circus-tui/internal/config"
	"github.com/semperai/circus-tui/internal/controller"
)

// runEventMsg carries one controller event to the update loop, which is
// the only goroutine allowed to apply it to the buffer.
type runEventMsg struct {
	run *controller.Run
	ev  controller.Event
}

// runClosedMsg means the run's event channel is drained.
type runClosedMsg struct {
	run *controller.Run
}

// catalogMsg delivers a reloaded catalogue.
type catalogMsg struct {
	catalog *config.Catalog
}

// waitForEvent blocks on the run's next event.
func waitForEvent(run *controller.Run) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-run.Events()
		if !ok {
			return runClosedMsg{run: run}
		}
		return runEventMsg{run: run, ev: ev}
	}
}

// waitForCatalog blocks on the next catalogue reload.
func waitForCatalog(ch <-chan *config.Catalog) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		cat, ok := <-ch
		if !ok {
			return nil
		}
		return catalogMsg{catalog: cat}
	}
}
