// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package preset applies catalogue presets to the parameter store and the
// prompt buffer.
package preset

import (
	"errors"
	"fmt"
	"sync"

	"github.com/semperai/circus-tui/internal/buffer"
	"github.com/semperai/circus-tui/internal/config"
	"github.com/semperai/circus-tui/internal/params"
)

// ConfirmPrompt is the question shown before a preset overwrites the session.
const ConfirmPrompt = "This will reset everything, are you sure?"

// ErrUnknownPreset is returned when the ID is not in the catalogue.
var ErrUnknownPreset = errors.New("unknown preset")

// Confirmer asks the user to approve a destructive action.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

// Confirm calls f.
func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// Always approves without asking.
var Always Confirmer = ConfirmFunc(func(string) bool { return true })

// Loader owns preset selection for one session.
type Loader struct {
	mu      sync.RWMutex
	catalog *config.Catalog
	current string

	store *params.Store
	buf   *buffer.Buffer
}

// NewLoader binds a catalogue to the session's store and buffer.
func NewLoader(cat *config.Catalog, store *params.Store, buf *buffer.Buffer) *Loader {
	return &Loader{catalog: cat, store: store, buf: buf}
}

// Catalog returns the catalogue in use.
func (l *Loader) Catalog() *config.Catalog {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.catalog
}

// SetCatalog swaps in a reloaded catalogue. The current selection is kept
// even if the new catalogue no longer lists it.
func (l *Loader) SetCatalog(cat *config.Catalog) {
	l.mu.Lock()
	l.catalog = cat
	l.mu.Unlock()
}

// Current returns the ID of the last applied preset.
func (l *Loader) Current() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// Apply asks confirm and, when approved, replaces every parameter and the
// whole buffer with the preset's values. A declined confirmation returns
// (false, nil) and changes nothing. The stream toggle is not part of a
// preset and keeps its value.
func (l *Loader) Apply(id string, confirm Confirmer) (bool, error) {
	l.mu.RLock()
	cat := l.catalog
	l.mu.RUnlock()

	p, ok := cat.Preset(id)
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownPreset, id)
	}
	if confirm == nil {
		confirm = Always
	}
	if !confirm.Confirm(ConfirmPrompt) {
		return false, nil
	}

	model := cat.ModelOrDefault(p.Model)
	stream := l.store.Snapshot().Stream
	if err := l.store.Replace(params.FromPreset(p, model.ID, stream), &model); err != nil {
		return false, fmt.Errorf("preset %q: %w", id, err)
	}

	l.buf.Clear()
	l.buf.Insert(l.buf.End(), p.Input)

	l.mu.Lock()
	l.current = id
	l.mu.Unlock()
	return true, nil
}
