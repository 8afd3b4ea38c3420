// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the main chat view for the TUI: a sidebar of
// conversations, the message transcript with streaming scratchpad, a
// multi-line input, and a status bar.
package chat

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/morganforge/parley/internal/api"
	"github.com/morganforge/parley/internal/chat"
	"github.com/morganforge/parley/internal/search"
	"github.com/morganforge/parley/internal/storage"
	"github.com/morganforge/parley/internal/store"
	"github.com/morganforge/parley/internal/ui/components"
	"github.com/morganforge/parley/internal/ui/styles"
)

// =============================================================================
// CHAT MODEL
// =============================================================================

// Deps carries everything the chat view needs. History is optional;
// when present it backs the offline conversation relist and message
// fallback. All other fields are required.
type Deps struct {
	Client        *api.Client
	Sender        *chat.Sender
	Conversations *store.Conversations
	Messages      *store.Messages
	Prompts       *store.Prompts
	Errors        *store.Errors
	History       *storage.History
	Theme         *styles.Theme
}

// viewMode selects which screen the main body shows.
type viewMode int

const (
	modeChat viewMode = iota
	modeSearch
	modePrompts
)

// Model is the Bubble Tea model for the chat view.
type Model struct {
	// Backend and state
	client  *api.Client
	sender  *chat.Sender
	convs   *store.Conversations
	msgs    *store.Messages
	prompts *store.Prompts
	errs    *store.Errors
	history *storage.History
	search  *search.Store
	draft   *search.Draft

	// Styling
	theme *styles.Theme

	// Dimensions
	width  int
	height int

	// UI components
	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	toasts   *components.ToastManager
	markdown *components.MarkdownRenderer
	refs     *components.ReferenceList

	// Key bindings
	keyMap KeyMap

	// View state
	mode        viewMode
	showSidebar bool
	showHelp    bool
	sidebarSel  int // index into convs.List(), -1 = none
	promptSel   int // index into prompts.List(), -1 = none

	// Reference overlay, shown over the transcript until dismissed.
	overlayTitle string
	overlayText  string
	showOverlay  bool
	refCursor    int // next reference to open on the last answer

	// True while the send goroutine and its stream ticks run.
	streaming bool
}

// New creates the chat view model.
func New(deps Deps) Model {
	input := textarea.New()
	input.Placeholder = "Ask anything..."
	input.CharLimit = 0
	input.SetHeight(3)
	input.ShowLineNumbers = false
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = deps.Theme.Spinner

	vp := viewport.New(0, 0)

	return Model{
		client:      deps.Client,
		sender:      deps.Sender,
		convs:       deps.Conversations,
		msgs:        deps.Messages,
		prompts:     deps.Prompts,
		errs:        deps.Errors,
		history:     deps.History,
		search:      search.NewStore(deps.Client),
		draft:       search.NewDraft(deps.Client),
		theme:       deps.Theme,
		viewport:    vp,
		input:       input,
		spinner:     sp,
		toasts:      components.NewToastManager(),
		markdown:    components.NewMarkdownRenderer(deps.Theme.Palette.IsDark()),
		refs:        components.NewReferenceList(deps.Client),
		keyMap:      DefaultKeyMap(),
		showSidebar: true,
		sidebarSel:  -1,
		promptSel:   -1,
	}
}

// Init loads the first conversation page and the model list.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		loadConversationsCmd(m.convs),
		loadModelsCmd(m.prompts),
		m.spinner.Tick,
		textarea.Blink,
	)
}

// Toasts exposes the toast manager, used by main to surface startup
// warnings.
func (m *Model) Toasts() *components.ToastManager {
	return m.toasts
}
