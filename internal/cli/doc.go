// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli wires configuration, logging and the completion controller
// into the circus commands.
//
// # Commands
//
//   - circus: the full-screen playground
//   - complete: one submission, printed to stdout
//   - repl: a line-oriented session with history
//   - presets, models, tokens, curl: catalogue and request inspection
//   - config show|init|path, version
//
// Every command shares the persistent flags --config, --env-file, --debug
// and --verbose. Errors are returned to main, which prints them and exits 1.
package cli
