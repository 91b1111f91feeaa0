// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/termenv"

	"github.com/semperai/circus-tui/internal/ui/styles"
)

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	case "end":
		return tea.KeyMsg{Type: tea.KeyEnd}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestSlider_StepsAndClamps(t *testing.T) {
	s := NewSlider("Temperature", 0, 1, 0.01, 2)
	var got []float64
	s.OnChange = func(v float64) { got = append(got, v) }
	s.Focus()

	s.SetValue(0.8)
	s.Update(key("right"))
	if s.Value() != 0.81 {
		t.Errorf("expected 0.81, got %v", s.Value())
	}
	s.Update(key("end"))
	s.Update(key("right"))
	if s.Value() != 1 {
		t.Errorf("expected clamp at 1, got %v", s.Value())
	}
	if len(got) != 2 {
		t.Errorf("expected 2 change callbacks, got %v", got)
	}

	s.SetValue(7)
	if s.Value() != 1 {
		t.Errorf("SetValue should clamp, got %v", s.Value())
	}
}

func TestSlider_SetMaxPullsValueDown(t *testing.T) {
	s := NewSlider("Maximum length", 1, 4000, 1, 0)
	s.SetValue(3000)
	s.SetMax(2048)
	if s.Value() != 2048 {
		t.Errorf("expected 2048, got %v", s.Value())
	}
}

func TestSlider_IgnoresKeysWhenBlurred(t *testing.T) {
	s := NewSlider("Top P", 0, 1, 0.01, 2)
	s.Update(key("right"))
	if s.Value() != 0 {
		t.Error("blurred slider changed")
	}
}

func TestCheckbox_Toggle(t *testing.T) {
	c := NewCheckbox("Stream", true)
	var seen []bool
	c.OnChange = func(v bool) { seen = append(seen, v) }
	c.Focus()
	c.Update(key(" "))
	if c.Checked() || len(seen) != 1 || seen[0] {
		t.Errorf("toggle failed: checked=%v seen=%v", c.Checked(), seen)
	}
	if !strings.Contains(c.View(styles.NewTheme("dark"), 20), "[ ]") {
		t.Error("unchecked box should render [ ]")
	}
}

func TestDropdown_Selection(t *testing.T) {
	d := NewDropdown("Model", []Option{{Value: "a", Label: "A"}, {Value: "b", Label: "B"}})
	var chosen string
	d.OnChange = func(o Option) { chosen = o.Value }
	d.Focus()

	if _, ok := d.Selected(); ok {
		t.Fatal("nothing should be selected yet")
	}
	d.Update(key("enter"))
	if !d.Open() || !d.Capturing() {
		t.Fatal("enter should open the list")
	}
	d.Update(key("down"))
	d.Update(key("enter"))
	if chosen != "b" || d.Open() {
		t.Errorf("expected b chosen and list closed, got %q open=%v", chosen, d.Open())
	}

	d.SetOptions([]Option{{Value: "c", Label: "C"}, {Value: "b", Label: "B2"}})
	if o, _ := d.Selected(); o.Label != "B2" {
		t.Errorf("selection should follow value across SetOptions, got %+v", o)
	}
	if d.SetValue("zzz") {
		t.Error("unknown value should not be found")
	}
}

func TestTagInput_AddRemove(t *testing.T) {
	ti := NewTagInput("Stop sequences", `\n`)
	var tags []string
	ti.OnAdd = func(s string) error {
		if len(tags) == 1 {
			return errors.New("full")
		}
		tags = append(tags, s)
		return nil
	}
	ti.OnRemove = func(s string) { tags = tags[:0] }
	ti.Focus()

	for _, r := range `\n` {
		ti.Update(key(string(r)))
	}
	ti.Update(key("enter"))
	if got := ti.Tags(); len(got) != 1 || got[0] != "\n" {
		t.Fatalf("expected unescaped newline tag, got %q", got)
	}

	ti.Update(key("x"))
	ti.Update(key("enter"))
	if ti.Err() != "full" || len(ti.Tags()) != 1 {
		t.Errorf("rejected tag should set Err, got %q %q", ti.Err(), ti.Tags())
	}

	ti.Update(key("backspace")) // removes the typed x
	ti.Update(key("backspace")) // removes the tag
	if len(ti.Tags()) != 0 || len(tags) != 0 {
		t.Errorf("backspace on empty input should remove the last tag, got %q", ti.Tags())
	}
}

func TestTextField_ChangeCallback(t *testing.T) {
	f := NewTextField("API key", "sk-...", true)
	var last string
	f.OnChange = func(v string) { last = v }
	f.Focus()
	f.Update(key("s"))
	f.Update(key("k"))
	if last != "sk" || f.Value() != "sk" {
		t.Errorf("expected sk, got %q / %q", last, f.Value())
	}
	if strings.Contains(f.View(styles.NewTheme("dark"), 30), "sk") {
		t.Error("secret field should be masked")
	}
}

func TestConfirmDialog(t *testing.T) {
	var d ConfirmDialog
	d.Ask("Reset?", "preset:qa")
	if !d.Active() {
		t.Fatal("dialog should be active")
	}
	cmd := d.Update(key("enter"))
	msg := cmd().(ConfirmResultMsg)
	if msg.Confirmed || msg.Tag != "preset:qa" {
		t.Errorf("enter on the default choice should decline, got %+v", msg)
	}

	d.Ask("Reset?", "preset:chat")
	d.Update(key("left"))
	msg = d.Update(key("enter"))().(ConfirmResultMsg)
	if !msg.Confirmed {
		t.Error("switching to Yes then enter should confirm")
	}
}

func TestStatusBar_TokenLabel(t *testing.T) {
	sb := StatusBar{Tokens: 12345, Tokenizer: "cl100k"}
	if got := sb.TokenLabel(); got != "12,345 tokens (cl100k)" {
		t.Errorf("got %q", got)
	}
	sb.Tokenizer = ""
	if got := sb.TokenLabel(); got != "tokens n/a" {
		t.Errorf("got %q", got)
	}
	out := sb.View(styles.NewTheme("dark"), 30)
	if out == "" {
		t.Error("narrow status bar should still render")
	}
}

func TestHighlight_PlainOnASCII(t *testing.T) {
	theme := styles.NewTheme("dark")
	theme.ColorProfile = termenv.Ascii
	code := "curl https://example.com"
	if got := Highlight(code, "bash", theme); got != code {
		t.Errorf("expected plain text, got %q", got)
	}
}
