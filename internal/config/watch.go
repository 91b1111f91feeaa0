// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// CatalogWatcher reloads the catalogue when the presets file changes.
// Editors often write through a rename, so the parent directory is watched
// and events are filtered by file name.
type CatalogWatcher struct {
	cfg      *Config
	watcher  *fsnotify.Watcher
	debounce time.Duration

	onChange func(*Catalog)
	onError  func(error)

	mu      sync.Mutex
	pending *time.Timer
}

// NewCatalogWatcher creates a watcher for cfg.PresetsFile. onChange receives
// the freshly merged catalogue; onError receives decode and watch errors.
func NewCatalogWatcher(cfg *Config, onChange func(*Catalog), onError func(error)) (*CatalogWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if onError == nil {
		onError = func(error) {}
	}
	return &CatalogWatcher{
		cfg:      cfg,
		watcher:  w,
		debounce: 200 * time.Millisecond,
		onChange: onChange,
		onError:  onError,
	}, nil
}

// Run watches until ctx is cancelled. It returns immediately when no presets
// file is configured.
func (cw *CatalogWatcher) Run(ctx context.Context) error {
	defer cw.watcher.Close()

	if cw.cfg.PresetsFile == "" {
		return nil
	}
	target := filepath.Clean(cw.cfg.PresetsFile)
	if err := cw.watcher.Add(filepath.Dir(target)); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			cw.mu.Lock()
			if cw.pending != nil {
				cw.pending.Stop()
			}
			cw.mu.Unlock()
			return nil

		case event, ok := <-cw.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				cw.schedule()
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return nil
			}
			cw.onError(err)
		}
	}
}

// schedule coalesces bursts of events into one reload.
func (cw *CatalogWatcher) schedule() {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.pending != nil {
		cw.pending.Stop()
	}
	cw.pending = time.AfterFunc(cw.debounce, cw.reload)
}

func (cw *CatalogWatcher) reload() {
	cat, err := cw.cfg.Catalog()
	if err != nil {
		cw.onError(err)
		return
	}
	if cw.onChange != nil {
		cw.onChange(cat)
	}
}
