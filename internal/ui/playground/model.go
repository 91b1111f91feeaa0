// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package playground is the Bubble Tea front end of circus.
//
// The Model owns the prompt buffer and the parameter store. Widget
// callbacks write to the store, the editor writes to the buffer, and
// controller events are applied to the buffer from Update, so every
// mutation happens on the Bubble Tea goroutine.
package playground

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"

	"github.com/semperai/circus-tui/internal/buffer"
	"github.com/semperai/circus-tui/internal/completion"
	"github.com/semperai/circus-tui/internal/config"
	"github.com/semperai/circus-tui/internal/controller"
	"github.com/semperai/circus-tui/internal/params"
	"github.com/semperai/circus-tui/internal/preset"
	"github.com/semperai/circus-tui/internal/tokenizer"
	"github.com/semperai/circus-tui/internal/ui/components"
	"github.com/semperai/circus-tui/internal/ui/styles"
	"github.com/semperai/circus-tui/internal/util"
)

// Options configure a playground session.
type Options struct {
	Config     *config.Config
	Catalog    *config.Catalog
	Controller *controller.Controller
	Tokenizers *tokenizer.Registry
	Logger     *zap.Logger

	// CatalogUpdates delivers reloaded catalogues, typically from a
	// config.CatalogWatcher. May be nil.
	CatalogUpdates <-chan *config.Catalog
}

// focusEditor is the focus index of the editor; sidebar widgets use 0..n-1.
const focusEditor = -1

// Model is the playground session.
type Model struct {
	ctx    context.Context
	theme  *styles.Theme
	keys   KeyMap
	logger *zap.Logger
	cfg    *config.Config

	buf        *buffer.Buffer
	store      *params.Store
	loader     *preset.Loader
	ctrl       *controller.Controller
	tokenizers *tokenizer.Registry
	creds      completion.Credentials
	run        *controller.Run
	reported   *controller.Run // last run whose outcome was surfaced
	catalogs   <-chan *config.Catalog

	editor   textarea.Model
	mirrored uint64 // buffer version the editor shows
	side     *sidebar
	spinner  spinner.Model
	markdown viewport.Model
	curl     components.CurlView
	toasts   *components.ToastManager
	confirm  components.ConfirmDialog
	status   components.StatusBar

	focus        int
	showSidebar  bool
	showCurl     bool
	showMarkdown bool

	mdRenderer *glamour.TermRenderer
	mdWidth    int
	mdVersion  uint64

	tokens    int
	tokenizer string

	width, height int
	quitting      bool
}

// New builds a session from the configuration and catalogue.
func New(ctx context.Context, opts Options) (*Model, error) {
	if opts.Config == nil || opts.Catalog == nil || opts.Controller == nil {
		return nil, fmt.Errorf("playground: config, catalog and controller are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tokenizers := opts.Tokenizers
	if tokenizers == nil {
		tokenizers = tokenizer.NewRegistry()
	}
	cfg := opts.Config

	theme := styles.NewTheme(cfg.UI.Theme)
	buf := buffer.New("")
	store := params.NewStore(params.Defaults())
	p := store.Snapshot()
	p.Stream = cfg.Defaults.Stream
	model := opts.Catalog.ModelOrDefault(cfg.Defaults.Model)
	p.Model = model.ID
	if err := store.Replace(p, &model); err != nil {
		return nil, err
	}

	m := &Model{
		ctx:          ctx,
		theme:        theme,
		keys:         DefaultKeyMap(),
		logger:       logger.Named("playground"),
		cfg:          cfg,
		buf:          buf,
		store:        store,
		loader:       preset.NewLoader(opts.Catalog, store, buf),
		ctrl:         opts.Controller,
		tokenizers:   tokenizers,
		creds:        completion.Credentials{APIKey: cfg.API.APIKey, BaseURI: cfg.API.BaseURI},
		catalogs:     opts.CatalogUpdates,
		side:         newSidebar(),
		toasts:       components.NewToastManager(),
		focus:        focusEditor,
		showSidebar:  cfg.UI.SidebarOpen,
		showCurl:     cfg.UI.ShowCurl,
		showMarkdown: cfg.UI.ShowMarkdown,
	}

	m.editor = textarea.New()
	m.editor.Placeholder = "Write a prompt, then press ctrl+s"
	m.editor.ShowLineNumbers = false
	m.editor.CharLimit = 0
	m.editor.MaxHeight = 0
	m.editor.Prompt = ""
	m.editor.Focus()

	m.spinner = spinner.New(spinner.WithSpinner(theme.Spinner()), spinner.WithStyle(theme.StatusBusy))
	m.markdown = viewport.New(0, 0)

	m.wireSidebar()
	m.side.setCatalog(opts.Catalog)
	m.side.advanced.SetChecked(!m.creds.Configured())
	m.side.strictDone.SetChecked(m.ctrl.StrictDone())

	if id := cfg.Defaults.Preset; id != "" {
		if _, err := m.loader.Apply(id, preset.Always); err != nil {
			m.toasts.NotifyError(err)
		}
	}
	m.afterParamsChange()
	m.afterBufferChange()
	return m, nil
}

// wireSidebar connects widget callbacks to the store, the loader and the
// session credentials.
func (m *Model) wireSidebar() {
	s := m.side

	s.preset.OnChange = func(o components.Option) {
		m.confirm.Ask(preset.ConfirmPrompt, o.Value)
	}
	s.model.OnChange = func(o components.Option) {
		mod, ok := m.loader.Catalog().Model(o.Value)
		if !ok {
			return
		}
		m.store.SetModel(mod)
	}
	s.temperature.OnChange = m.store.SetTemperature
	s.maxTokens.OnChange = func(v float64) { m.store.SetMaxTokens(int(v)) }
	s.topP.OnChange = m.store.SetTopP
	s.frequency.OnChange = m.store.SetFrequencyPenalty
	s.presence.OnChange = m.store.SetPresencePenalty
	s.stops.OnAdd = m.store.AddStop
	s.stops.OnRemove = func(seq string) { m.store.RemoveStop(seq) }
	s.startText.OnChange = func(v string) { m.store.SetStartText(util.Unescape(v)) }
	s.restartText.OnChange = func(v string) { m.store.SetRestartText(util.Unescape(v)) }
	s.stream.OnChange = m.store.SetStream
	s.strictDone.OnChange = m.ctrl.SetStrictDone

	s.apiKey.OnChange = func(v string) { m.creds.APIKey = v }
	s.baseURI.OnChange = func(v string) { m.creds.BaseURI = v }
}

// Buffer exposes the prompt buffer.
func (m *Model) Buffer() *buffer.Buffer { return m.buf }

// Params returns the current parameters.
func (m *Model) Params() params.Params { return m.store.Snapshot() }

// Busy reports whether a completion is in flight.
func (m *Model) Busy() bool { return m.run != nil && !m.run.State().Terminal() }

// blockedReason explains why submit is unavailable, or returns "".
func (m *Model) blockedReason() string {
	switch {
	case m.Busy():
		return "completion in progress"
	case !m.creds.Configured():
		return "set an API key and base URI (advanced settings)"
	}
	return ""
}

// afterParamsChange refreshes everything derived from the parameters.
func (m *Model) afterParamsChange() {
	p := m.store.Snapshot()
	m.side.sync(p, m.store.MaxTokensCeiling(), m.loader.Current())
	m.side.syncCredentials(m.creds)

	m.tokenizer = ""
	if mod, ok := m.loader.Catalog().Model(p.Model); ok && m.tokenizers.Known(tokenizer.Family(mod.Tokenizer)) {
		m.tokenizer = mod.Tokenizer
	}
	m.recount()
	m.curl.SetRequest(p.Request(m.buf.Text()+p.StartText), m.creds)
	m.layout()
}

// afterBufferChange refreshes the editor and views from the buffer.
func (m *Model) afterBufferChange() {
	text := m.buf.Text()
	if m.editor.Value() != text {
		m.editor.SetValue(text)
		m.editor.CursorEnd()
	}
	m.mirrored = m.buf.Version()
	m.refreshViews(text)
}

// afterAppend mirrors text that was just appended to the buffer. The editor
// gets only the new text unless it has fallen behind by more than one edit.
func (m *Model) afterAppend(text string) {
	if m.mirrored+1 != m.buf.Version() {
		m.afterBufferChange()
		return
	}
	for m.editor.Line() < m.editor.LineCount()-1 {
		m.editor.CursorDown()
	}
	m.editor.CursorEnd()
	m.editor.InsertString(text)
	m.mirrored = m.buf.Version()
	m.refreshViews(m.buf.Text())
}

func (m *Model) refreshViews(text string) {
	m.recount()
	p := m.store.Snapshot()
	m.curl.SetRequest(p.Request(text+p.StartText), m.creds)
	m.layout()
	m.refreshMarkdown(false)
}

func (m *Model) recount() {
	m.tokens = 0
	if m.tokenizer == "" {
		return
	}
	n, err := m.tokenizers.Count(tokenizer.Family(m.tokenizer), m.buf.Text())
	if err != nil {
		m.logger.Debug("token count failed", zap.Error(err))
		return
	}
	m.tokens = n
}

// refreshMarkdown re-renders the markdown panel when the buffer or width
// changed since the last render.
func (m *Model) refreshMarkdown(force bool) {
	if !m.showMarkdown || m.markdown.Width <= 0 {
		return
	}
	if !force && m.mdVersion == m.buf.Version() && m.mdWidth == m.markdown.Width {
		return
	}
	if m.mdRenderer == nil || m.mdWidth != m.markdown.Width {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(m.theme.GlamourStyle(m.cfg.UI.MarkdownStyle)),
			glamour.WithWordWrap(max(m.markdown.Width-2, 10)),
		)
		if err != nil {
			m.logger.Warn("markdown renderer", zap.Error(err))
			m.markdown.SetContent(m.buf.Text())
			return
		}
		m.mdRenderer = r
		m.mdWidth = m.markdown.Width
	}
	out, err := m.mdRenderer.Render(m.buf.Text())
	if err != nil {
		out = m.buf.Text()
	}
	m.markdown.SetContent(out)
	m.markdown.GotoBottom()
	m.mdVersion = m.buf.Version()
}

// Init starts the cursor blink and the catalogue listener.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, waitForCatalog(m.catalogs), components.ToastTick())
}
