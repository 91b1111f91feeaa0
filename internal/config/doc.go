// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and saves circus configuration and the model/preset
// catalogue.
//
// # Configuration Precedence
//
// Values are resolved in this order (later wins):
//   - Built-in defaults
//   - ~/.circus/config.toml (or config.json as a fallback)
//   - .env files loaded through LoadDotEnv
//   - Environment variables (OPENAI_*, NEXT_PUBLIC_OPENAI_*, CIRCUS_*)
//
// # Catalogue
//
// The model and preset lists ship embedded in catalog.toml. Models and presets
// declared in the config file, or in the file named by presets_file, replace
// entries with the same ID and append new ones.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	cat, err := cfg.Catalog()
package config
