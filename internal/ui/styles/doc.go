// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles holds the colour palette and Lip Gloss styles of the
playground.

# Colours (colors.go)

Every colour is a lipgloss.AdaptiveColor so it reads on light and dark
terminals. Accents:

	Purple  - focus, selected widgets, the completion highlight
	Cyan    - brand, headings, keys in help text
	Emerald - success, the idle indicator
	Amber   - warnings, in-flight runs
	Rose    - errors and the error toast

# Theme (theme.go)

NewTheme detects the terminal profile with termenv. The "dark" and
"light" config values force Lip Gloss' background detection.

	theme := styles.NewTheme("auto")
	box := theme.Panel.Width(40).Render(body)

# Spinner (spinner.go)

Frames shown in the status bar while a run is connecting or streaming.
*/
package styles
