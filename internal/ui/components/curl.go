// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/muesli/termenv"

	"github.com/semperai/circus-tui/internal/completion"
	"github.com/semperai/circus-tui/internal/ui/styles"
)

// CurlView shows the shell command equivalent to the next submission.
type CurlView struct {
	command string
	err     error
}

// SetRequest rebuilds the command. The API key is never revealed here.
func (v *CurlView) SetRequest(req completion.Request, creds completion.Credentials) {
	v.command, v.err = completion.CurlCommand(req, creds, completion.CurlOptions{})
}

// Command returns the plain command text.
func (v *CurlView) Command() string { return v.command }

// View renders the highlighted command inside a panel of the given width.
func (v *CurlView) View(theme *styles.Theme, width int) string {
	title := theme.PanelTitle.Render("cURL")
	if v.err != nil {
		return theme.Panel.Width(width - 2).Render(title + "\n" + theme.Error.Render(v.err.Error()))
	}
	body := Highlight(v.command, "bash", theme)
	return theme.Panel.Width(width - 2).Render(title + "\n" + body)
}

// Highlight colours code with chroma. It falls back to the plain text if
// the terminal has no colour or highlighting fails.
func Highlight(code, language string, theme *styles.Theme) string {
	if theme.ColorProfile == termenv.Ascii {
		return code
	}

	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	styleName := "github"
	if theme.IsDark {
		styleName = "monokai"
	}
	style := chromaStyles.Get(styleName)
	if style == nil {
		style = chromaStyles.Fallback
	}

	formatterName := "terminal256"
	if theme.ColorProfile == termenv.TrueColor {
		formatterName = "terminal16m"
	}
	formatter := formatters.Get(formatterName)
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return strings.TrimRight(buf.String(), "\n")
}
