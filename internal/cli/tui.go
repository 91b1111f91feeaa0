// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/semperai/circus-tui/internal/config"
	"github.com/semperai/circus-tui/internal/ui/playground"
)

// watchCatalog starts reloading the presets file in the background. Only the
// newest catalogue is kept if the UI falls behind.
func (a *app) watchCatalog(ctx context.Context) <-chan *config.Catalog {
	if a.cfg.PresetsFile == "" {
		return nil
	}
	updates := make(chan *config.Catalog, 1)

	w, err := config.NewCatalogWatcher(a.cfg,
		func(cat *config.Catalog) {
			select {
			case <-updates:
			default:
			}
			updates <- cat
		},
		func(err error) {
			a.logger.Warn("presets reload failed", zap.Error(err))
		})
	if err != nil {
		a.logger.Warn("presets watcher unavailable", zap.Error(err))
		return nil
	}
	go func() {
		if err := w.Run(ctx); err != nil {
			a.logger.Warn("presets watcher stopped", zap.Error(err))
		}
	}()
	return updates
}

func (a *app) runTUI(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ctrl := a.newController()
	model, err := playground.New(ctx, playground.Options{
		Config:         a.cfg,
		Catalog:        a.catalog,
		Controller:     ctrl,
		Tokenizers:     a.tokenizers,
		Logger:         a.logger,
		CatalogUpdates: a.watchCatalog(ctx),
	})
	if err != nil {
		return err
	}

	a.logger.Info("starting playground")
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("playground: %w", err)
	}
	ctrl.Cancel()
	return nil
}
