// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/semperai/circus-tui/internal/ui/styles"
	"github.com/semperai/circus-tui/internal/util"
)

// Widget is a focusable sidebar control.
type Widget interface {
	Label() string
	Focus() tea.Cmd
	Blur()
	Focused() bool
	// Capturing reports whether the widget consumes plain keys such as
	// letters and esc, which are otherwise playground shortcuts.
	Capturing() bool
	Update(msg tea.Msg) tea.Cmd
	View(theme *styles.Theme, width int) string
}

type focusState struct{ focused bool }

func (f *focusState) Focus() tea.Cmd { f.focused = true; return nil }
func (f *focusState) Blur()          { f.focused = false }
func (f *focusState) Focused() bool  { return f.focused }

func labelStyle(theme *styles.Theme, focused bool) func(...string) string {
	if focused {
		return theme.WidgetFocused.Render
	}
	return theme.Label.Render
}

// -----------------------------------------------------------------------------
// Slider

// Slider edits a number in [Min, Max], moving by Step.
type Slider struct {
	focusState

	label     string
	Min, Max  float64
	Step      float64
	Precision int

	value    float64
	OnChange func(float64)
}

// NewSlider creates a slider. precision is the number of decimals shown.
func NewSlider(label string, min, max, step float64, precision int) *Slider {
	return &Slider{label: label, Min: min, Max: max, Step: step, Precision: precision, value: min}
}

func (s *Slider) Label() string   { return s.label }
func (s *Slider) Capturing() bool { return false }

// Value returns the current value.
func (s *Slider) Value() float64 { return s.value }

// SetValue sets the value without firing OnChange.
func (s *Slider) SetValue(v float64) { s.value = s.normalize(v) }

// SetMax changes the upper bound, pulling the value down if needed.
func (s *Slider) SetMax(max float64) {
	s.Max = max
	s.value = s.normalize(s.value)
}

func (s *Slider) normalize(v float64) float64 {
	if s.Step > 0 {
		v = s.Min + math.Round((v-s.Min)/s.Step)*s.Step
	}
	p := math.Pow(10, float64(s.Precision))
	v = math.Round(v*p) / p
	return math.Max(s.Min, math.Min(s.Max, v))
}

// Nudge moves the value by n steps and fires OnChange if it changed.
func (s *Slider) Nudge(n int) {
	s.set(s.value + float64(n)*s.Step)
}

func (s *Slider) set(v float64) {
	v = s.normalize(v)
	if v == s.value {
		return
	}
	s.value = v
	if s.OnChange != nil {
		s.OnChange(v)
	}
}

func (s *Slider) Update(msg tea.Msg) tea.Cmd {
	key, ok := msg.(tea.KeyMsg)
	if !ok || !s.focused {
		return nil
	}
	switch key.String() {
	case "left", "h":
		s.Nudge(-1)
	case "right", "l":
		s.Nudge(1)
	case "shift+left", "H":
		s.Nudge(-10)
	case "shift+right", "L":
		s.Nudge(10)
	case "home":
		s.set(s.Min)
	case "end":
		s.set(s.Max)
	}
	return nil
}

func (s *Slider) View(theme *styles.Theme, width int) string {
	value := strconv.FormatFloat(s.value, 'f', s.Precision, 64)
	label := util.TruncateWidth(s.label, width-len(value)-1)
	head := labelStyle(theme, s.focused)(util.PadRight(label, width-len(value))) + theme.Value.Render(value)

	bar := width
	if bar < 4 {
		bar = 4
	}
	filled := 0
	if s.Max > s.Min {
		filled = int(math.Round((s.value - s.Min) / (s.Max - s.Min) * float64(bar)))
	}
	track := theme.SliderFill.Render(strings.Repeat("━", filled)) +
		theme.SliderEmpty.Render(strings.Repeat("─", bar-filled))
	return head + "\n" + track
}

// -----------------------------------------------------------------------------
// Checkbox

// Checkbox edits a boolean.
type Checkbox struct {
	focusState

	label    string
	checked  bool
	OnChange func(bool)
}

// NewCheckbox creates a checkbox.
func NewCheckbox(label string, checked bool) *Checkbox {
	return &Checkbox{label: label, checked: checked}
}

func (c *Checkbox) Label() string     { return c.label }
func (c *Checkbox) Capturing() bool   { return false }
func (c *Checkbox) Checked() bool     { return c.checked }
func (c *Checkbox) SetChecked(v bool) { c.checked = v }

// Toggle flips the value and fires OnChange.
func (c *Checkbox) Toggle() {
	c.checked = !c.checked
	if c.OnChange != nil {
		c.OnChange(c.checked)
	}
}

func (c *Checkbox) Update(msg tea.Msg) tea.Cmd {
	if key, ok := msg.(tea.KeyMsg); ok && c.focused {
		switch key.String() {
		case " ", "enter", "x":
			c.Toggle()
		}
	}
	return nil
}

func (c *Checkbox) View(theme *styles.Theme, width int) string {
	box := "[ ]"
	if c.checked {
		box = "[x]"
	}
	return labelStyle(theme, c.focused)(box + " " + util.TruncateWidth(c.label, width-4))
}

// -----------------------------------------------------------------------------
// Dropdown

// Option is one dropdown entry.
type Option struct {
	Value string
	Label string
}

// Dropdown selects one of a list of options.
type Dropdown struct {
	focusState

	label    string
	options  []Option
	selected int
	cursor   int
	open     bool

	// Placeholder is shown when nothing is selected.
	Placeholder string
	OnChange    func(Option)
}

// NewDropdown creates a dropdown with nothing selected.
func NewDropdown(label string, options []Option) *Dropdown {
	return &Dropdown{label: label, options: options, selected: -1}
}

func (d *Dropdown) Label() string   { return d.label }
func (d *Dropdown) Capturing() bool { return d.open }
func (d *Dropdown) Open() bool      { return d.open }

func (d *Dropdown) Blur() {
	d.focused = false
	d.open = false
}

// Selected returns the selected option.
func (d *Dropdown) Selected() (Option, bool) {
	if d.selected < 0 || d.selected >= len(d.options) {
		return Option{}, false
	}
	return d.options[d.selected], true
}

// SetOptions replaces the list, keeping the selection when its value is
// still present.
func (d *Dropdown) SetOptions(opts []Option) {
	cur, ok := d.Selected()
	d.options = opts
	d.selected = -1
	if ok {
		d.SetValue(cur.Value)
	}
	d.cursor = max(d.selected, 0)
}

// SetValue selects the option with value v without firing OnChange. It
// reports whether v was found; if not the selection is cleared.
func (d *Dropdown) SetValue(v string) bool {
	for i, o := range d.options {
		if o.Value == v {
			d.selected = i
			return true
		}
	}
	d.selected = -1
	return false
}

// Choose selects options[i] and fires OnChange.
func (d *Dropdown) Choose(i int) {
	if i < 0 || i >= len(d.options) {
		return
	}
	d.selected = i
	d.open = false
	if d.OnChange != nil {
		d.OnChange(d.options[i])
	}
}

func (d *Dropdown) Update(msg tea.Msg) tea.Cmd {
	key, ok := msg.(tea.KeyMsg)
	if !ok || !d.focused || len(d.options) == 0 {
		return nil
	}
	if !d.open {
		switch key.String() {
		case "enter", " ":
			d.open = true
			d.cursor = max(d.selected, 0)
		}
		return nil
	}
	switch key.String() {
	case "up", "k":
		if d.cursor > 0 {
			d.cursor--
		}
	case "down", "j":
		if d.cursor < len(d.options)-1 {
			d.cursor++
		}
	case "enter", " ":
		d.Choose(d.cursor)
	case "esc":
		d.open = false
	}
	return nil
}

func (d *Dropdown) View(theme *styles.Theme, width int) string {
	current := d.Placeholder
	if o, ok := d.Selected(); ok {
		current = o.Label
	}
	arrow := " ▾"
	if d.open {
		arrow = " ▴"
	}
	lines := []string{
		labelStyle(theme, d.focused)(d.label),
		theme.Value.Render(util.TruncateWidth(current, width-2)) + theme.Hint.Render(arrow),
	}
	if d.open {
		for i, o := range d.options {
			text := "  " + util.TruncateWidth(o.Label, width-2)
			if i == d.cursor {
				text = theme.WidgetFocused.Render("> " + util.TruncateWidth(o.Label, width-2))
			}
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, "\n")
}

// -----------------------------------------------------------------------------
// TagInput

// TagInput edits a short list of strings. Typed text is unescaped, so "\n"
// adds a newline tag.
type TagInput struct {
	focusState

	label string
	tags  []string
	input textinput.Model
	err   string

	// OnAdd validates and records a new tag. A returned error rejects it.
	OnAdd func(string) error
	// OnRemove is called after a tag is removed.
	OnRemove func(string)
}

// NewTagInput creates an empty tag input.
func NewTagInput(label, placeholder string) *TagInput {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Prompt = "+ "
	return &TagInput{label: label, input: ti}
}

func (t *TagInput) Label() string { return t.label }

func (t *TagInput) Capturing() bool { return t.focused }

func (t *TagInput) Focus() tea.Cmd {
	t.focused = true
	return t.input.Focus()
}

func (t *TagInput) Blur() {
	t.focused = false
	t.input.Blur()
}

// Tags returns a copy of the tags.
func (t *TagInput) Tags() []string { return append([]string(nil), t.tags...) }

// SetTags replaces the tags without firing callbacks.
func (t *TagInput) SetTags(tags []string) {
	t.tags = append([]string(nil), tags...)
	t.err = ""
}

// Err is the last rejection message.
func (t *TagInput) Err() string { return t.err }

// Add validates and appends tag.
func (t *TagInput) Add(tag string) bool {
	if t.OnAdd != nil {
		if err := t.OnAdd(tag); err != nil {
			t.err = err.Error()
			return false
		}
	}
	t.err = ""
	t.tags = append(t.tags, tag)
	return true
}

// RemoveLast drops the last tag.
func (t *TagInput) RemoveLast() {
	if len(t.tags) == 0 {
		return
	}
	last := t.tags[len(t.tags)-1]
	t.tags = t.tags[:len(t.tags)-1]
	t.err = ""
	if t.OnRemove != nil {
		t.OnRemove(last)
	}
}

func (t *TagInput) Update(msg tea.Msg) tea.Cmd {
	if !t.focused {
		return nil
	}
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "enter":
			if v := t.input.Value(); v != "" && t.Add(util.Unescape(v)) {
				t.input.SetValue("")
			}
			return nil
		case "backspace":
			if t.input.Value() == "" {
				t.RemoveLast()
				return nil
			}
		}
	}
	var cmd tea.Cmd
	t.input, cmd = t.input.Update(msg)
	return cmd
}

func (t *TagInput) View(theme *styles.Theme, width int) string {
	var chips []string
	for _, tag := range t.tags {
		chips = append(chips, theme.Tag.Render(util.TruncateWidth(util.Escape(tag), width-2)))
	}
	lines := []string{labelStyle(theme, t.focused)(t.label)}
	if len(chips) > 0 {
		lines = append(lines, strings.Join(chips, " "))
	}
	t.input.Width = max(width-3, 1)
	lines = append(lines, t.input.View())
	if t.err != "" {
		lines = append(lines, theme.Error.Render(util.TruncateWidth(t.err, width)))
	}
	return strings.Join(lines, "\n")
}

// -----------------------------------------------------------------------------
// TextField

// TextField edits one line of text.
type TextField struct {
	focusState

	label    string
	input    textinput.Model
	OnChange func(string)
}

// NewTextField creates a text field. Secret fields are masked.
func NewTextField(label, placeholder string, secret bool) *TextField {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Prompt = ""
	if secret {
		ti.EchoMode = textinput.EchoPassword
		ti.EchoCharacter = '•'
	}
	return &TextField{label: label, input: ti}
}

func (f *TextField) Label() string { return f.label }

func (f *TextField) Capturing() bool { return f.focused }

func (f *TextField) Focus() tea.Cmd {
	f.focused = true
	return f.input.Focus()
}

func (f *TextField) Blur() {
	f.focused = false
	f.input.Blur()
}

// Value returns the raw text.
func (f *TextField) Value() string { return f.input.Value() }

// SetValue replaces the text without firing OnChange.
func (f *TextField) SetValue(v string) { f.input.SetValue(v) }

func (f *TextField) Update(msg tea.Msg) tea.Cmd {
	if !f.focused {
		return nil
	}
	before := f.input.Value()
	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	if after := f.input.Value(); after != before && f.OnChange != nil {
		f.OnChange(after)
	}
	return cmd
}

func (f *TextField) View(theme *styles.Theme, width int) string {
	f.input.Width = max(width-1, 1)
	return labelStyle(theme, f.focused)(f.label) + "\n" + f.input.View()
}
