// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package components provides the widgets of the playground.

# Widgets (widgets.go)

Each sidebar control is typed by the value it edits and reports changes
through a callback:

	Slider    float64 or int, clamped to [Min, Max] and snapped to Step
	Checkbox  bool
	Dropdown  one of a fixed list of options
	TagInput  a bounded list of strings (stop sequences)
	TextField a single string, with optional masking for secrets

Widgets do not know about the parameter store. The playground wires their
callbacks to params.Store setters and pushes store snapshots back with
SetValue.

# Notifications (toast.go)

ToastManager is the error notifier. NotifyError adds a toast whose detail
is the serialised error, so API responses reach the user unedited.

# Other pieces

StatusBar, ConfirmDialog and CurlView (chroma-highlighted shell command).
*/
package components
