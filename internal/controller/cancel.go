// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

import "sync"

// cancelManager tracks the run that may still be cancelled.
type cancelManager struct {
	mu  sync.Mutex
	run *Run
}

func (cm *cancelManager) set(r *Run) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.run = r
}

func (cm *cancelManager) current() *Run {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.run
}

// isCurrent reports whether r is the latest run.
func (cm *cancelManager) isCurrent(r *Run) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.run == r
}
