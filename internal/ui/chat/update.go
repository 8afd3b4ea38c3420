// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the main chat view for the TUI.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/morganforge/parley/internal/api"
	sendpkg "github.com/morganforge/parley/internal/chat"
	"github.com/morganforge/parley/internal/model"
	"github.com/morganforge/parley/internal/search"
	"github.com/morganforge/parley/internal/storage"
	"github.com/morganforge/parley/internal/store"
	"github.com/morganforge/parley/internal/ui/components"
)

// streamTickInterval paces scratchpad redraws while chunks drain.
const streamTickInterval = 80 * time.Millisecond

// =============================================================================
// COMMAND CREATORS
// =============================================================================

// sendCmd runs the full send turn on a background goroutine. The
// orchestrator blocks until the assistant message is committed or the
// turn aborts, so the result message marks the end of streaming.
func sendCmd(sender *sendpkg.Sender, text string) tea.Cmd {
	return func() tea.Msg {
		err := sender.Send(context.Background(), text)
		return SendFinishedMsg{Err: err}
	}
}

// loadConversationsCmd fetches the next conversation page.
func loadConversationsCmd(convs *store.Conversations) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return ConversationsLoadedMsg{Err: convs.LoadNextPage(ctx)}
	}
}

// loadMessagesCmd fetches the message history of a conversation.
func loadMessagesCmd(client *api.Client, conversationID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		msgs, err := client.ConversationMessages(ctx, conversationID)
		return MessagesLoadedMsg{ConversationID: conversationID, Messages: msgs, Err: err}
	}
}

// loadModelsCmd fetches the model list through the prompt store's
// TTL cache.
func loadModelsCmd(prompts *store.Prompts) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		models, err := prompts.Models(ctx)
		return ModelsLoadedMsg{Models: models, Err: err}
	}
}

// deleteConversationCmd deletes a conversation on the backend.
func deleteConversationCmd(convs *store.Conversations, id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return ConversationDeletedMsg{ID: id, Err: convs.Delete(ctx, id)}
	}
}

// renameConversationCmd renames a conversation on the backend.
func renameConversationCmd(convs *store.Conversations, id, title string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return ConversationRenamedMsg{ID: id, Title: title, Err: convs.Rename(ctx, id, title)}
	}
}

// seedHistoryCmd loads locally cached conversations when the backend
// refused the live page.
func seedHistoryCmd(history *storage.History, convs *store.Conversations) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		cached, err := history.Conversations(ctx)
		if err != nil {
			return HistorySeededMsg{Count: 0}
		}
		convs.Seed(cached)
		return HistorySeededMsg{Count: len(cached)}
	}
}

// loadCachedMessagesCmd reads a conversation's messages from the
// local cache after the live fetch failed.
func loadCachedMessagesCmd(history *storage.History, conversationID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		msgs, err := history.Messages(ctx, conversationID)
		return MessagesLoadedMsg{ConversationID: conversationID, Messages: msgs, Cached: true, Err: err}
	}
}

// openReferenceCmd resolves the content behind a source reference.
func openReferenceCmd(refs *components.ReferenceList, ref model.Reference) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		content, err := refs.Open(ctx, ref)
		if err != nil {
			return ReferenceOpenedMsg{Err: err}
		}
		return ReferenceOpenedMsg{
			Title: content.Title,
			Text:  content.Text,
			Size:  len(content.Blob),
		}
	}
}

// searchQueryCmd runs a smart-search query.
func searchQueryCmd(st *search.Store, query string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_, err := st.Query(ctx, query)
		return SearchResultsMsg{Query: query, Err: err}
	}
}

// loadSchemaCmd fetches the server-owned schema groups.
func loadSchemaCmd(st *search.Store) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_, err := st.LoadSchema(ctx)
		return SchemaLoadedMsg{Err: err}
	}
}

// saveSchemaGroupCmd validates and saves one draft group. On a
// validation failure the violations stay recorded on the draft for
// rendering.
func saveSchemaGroupCmd(draft *search.Draft, st *search.Store, groupID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := draft.SaveGroup(ctx, groupID); err != nil {
			return SchemaSavedMsg{Violations: len(draft.ValidateAll()), Err: err}
		}
		// Refresh the server view so the new group shows up.
		_, err := st.LoadSchema(ctx)
		return SchemaSavedMsg{Err: err}
	}
}

// loadPromptsCmd fetches the system prompt list.
func loadPromptsCmd(prompts *store.Prompts) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return PromptsLoadedMsg{Err: prompts.Load(ctx)}
	}
}

// createPromptCmd creates a system prompt.
func createPromptCmd(prompts *store.Prompts, title, content string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_, err := prompts.Create(ctx, title, content)
		return PromptSavedMsg{Title: title, Err: err}
	}
}

// updatePromptCmd updates a system prompt.
func updatePromptCmd(prompts *store.Prompts, id, title, content string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return PromptSavedMsg{Title: title, Err: prompts.Update(ctx, id, title, content)}
	}
}

// deletePromptCmd deletes a system prompt.
func deletePromptCmd(prompts *store.Prompts, id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return PromptDeletedMsg{Err: prompts.Delete(ctx, id)}
	}
}

// streamTickCmd schedules the next scratchpad redraw.
func streamTickCmd() tea.Cmd {
	return tea.Tick(streamTickInterval, func(t time.Time) tea.Msg {
		return StreamTickMsg{Time: t}
	})
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.theme.SetSize(msg.Width, msg.Height)
		m.layout()
		m.refreshTranscript(true)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case StreamTickMsg:
		// Keep ticking while the turn is alive so the scratchpad and
		// phase indicator stay fresh.
		m.refreshTranscript(true)
		if m.streaming {
			return m, streamTickCmd()
		}
		return m, nil

	case SendFinishedMsg:
		m.streaming = false
		m.drainErrors()
		if msg.Err != nil {
			m.toasts.Error(sendErrorText(msg.Err))
		}
		m.refreshTranscript(true)
		return m, m.toasts.Tick()

	case ConversationsLoadedMsg:
		if msg.Err != nil {
			m.toasts.Error("Failed to load conversations: " + msg.Err.Error())
			// Fall back to the local cache so past work stays reachable
			// while the backend is down.
			if m.history != nil && len(m.convs.List()) == 0 {
				return m, tea.Batch(seedHistoryCmd(m.history, m.convs), m.toasts.Tick())
			}
			return m, m.toasts.Tick()
		}
		if m.sidebarSel < 0 && len(m.convs.List()) > 0 {
			m.sidebarSel = 0
		}
		return m, nil

	case HistorySeededMsg:
		if msg.Count == 0 {
			return m, nil
		}
		if m.sidebarSel < 0 {
			m.sidebarSel = 0
		}
		m.toasts.Status(fmt.Sprintf("Offline: showing %d cached conversations", msg.Count))
		return m, m.toasts.Tick()

	case MessagesLoadedMsg:
		if msg.Err != nil {
			if m.history != nil && !msg.Cached {
				return m, loadCachedMessagesCmd(m.history, msg.ConversationID)
			}
			m.toasts.Error("Failed to load messages: " + msg.Err.Error())
			return m, m.toasts.Tick()
		}
		// Ignore stale fetches after the user moved on.
		if msg.ConversationID != m.convs.ActiveID() {
			return m, nil
		}
		m.msgs.Replace(msg.Messages)
		m.refreshTranscript(true)
		return m, nil

	case ModelsLoadedMsg:
		if msg.Err != nil {
			m.toasts.Error("Failed to load models: " + msg.Err.Error())
			return m, m.toasts.Tick()
		}
		// Adopt the first advertised model when none is configured.
		if m.sender.Model() == "" && len(msg.Models) > 0 {
			m.sender.SetModel(msg.Models[0].Name)
		}
		return m, nil

	case ConversationDeletedMsg:
		if msg.Err != nil {
			m.toasts.Error("Failed to delete conversation: " + msg.Err.Error())
		} else {
			m.toasts.Status("Conversation deleted")
			if m.convs.ActiveID() == "" {
				m.msgs.Replace(nil)
			}
			m.clampSidebarSel()
			m.refreshTranscript(true)
		}
		return m, m.toasts.Tick()

	case ConversationRenamedMsg:
		if msg.Err != nil {
			m.toasts.Error("Failed to rename conversation: " + msg.Err.Error())
		} else {
			m.toasts.Status("Renamed to " + msg.Title)
		}
		return m, m.toasts.Tick()

	case ReferenceOpenedMsg:
		if msg.Err != nil {
			m.toasts.Error("Failed to open source: " + msg.Err.Error())
			return m, m.toasts.Tick()
		}
		m.overlayTitle = msg.Title
		m.overlayText = msg.Text
		if msg.Text == "" && msg.Size > 0 {
			m.overlayText = fmt.Sprintf("(binary document, %d bytes)", msg.Size)
		}
		m.showOverlay = true
		return m, nil

	case SearchResultsMsg:
		if msg.Err != nil {
			m.toasts.Error("Search failed: " + msg.Err.Error())
			return m, m.toasts.Tick()
		}
		return m, nil

	case SchemaLoadedMsg:
		if msg.Err != nil {
			m.toasts.Error("Failed to load schema: " + msg.Err.Error())
			return m, m.toasts.Tick()
		}
		return m, nil

	case SchemaSavedMsg:
		switch {
		case msg.Violations > 0:
			m.toasts.Error(fmt.Sprintf("Schema has %d validation errors", msg.Violations))
		case msg.Err != nil:
			m.toasts.Error("Failed to save schema: " + msg.Err.Error())
		default:
			m.toasts.Status("Schema group saved")
		}
		return m, m.toasts.Tick()

	case PromptsLoadedMsg:
		if msg.Err != nil {
			m.toasts.Error("Failed to load prompts: " + msg.Err.Error())
			return m, m.toasts.Tick()
		}
		m.clampPromptSel()
		return m, nil

	case PromptSavedMsg:
		if msg.Err != nil {
			m.toasts.Error("Failed to save prompt: " + msg.Err.Error())
			return m, m.toasts.Tick()
		}
		m.toasts.Status("Prompt saved: " + msg.Title)
		return m, tea.Batch(loadPromptsCmd(m.prompts), m.toasts.Tick())

	case PromptDeletedMsg:
		if msg.Err != nil {
			m.toasts.Error("Failed to delete prompt: " + msg.Err.Error())
			return m, m.toasts.Tick()
		}
		m.clampPromptSel()
		m.toasts.Status("Prompt deleted")
		return m, m.toasts.Tick()

	case components.ToastTickMsg:
		if m.toasts.Prune() {
			return m, m.toasts.Tick()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// handleKey routes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keyMap.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keyMap.Help):
		m.showHelp = !m.showHelp
		return m, nil

	case key.Matches(msg, m.keyMap.ToggleSidebar):
		m.showSidebar = !m.showSidebar
		m.layout()
		m.refreshTranscript(false)
		return m, nil

	case key.Matches(msg, m.keyMap.DismissToast):
		if m.showOverlay {
			m.showOverlay = false
			return m, nil
		}
		if m.showHelp {
			m.showHelp = false
			return m, nil
		}
		m.toasts.Dismiss()
		return m, nil

	case key.Matches(msg, m.keyMap.Submit):
		return m.submit()

	case key.Matches(msg, m.keyMap.SearchMode):
		if m.mode == modeSearch {
			m.mode = modeChat
			return m, nil
		}
		m.mode = modeSearch
		if len(m.search.Schema()) == 0 {
			return m, loadSchemaCmd(m.search)
		}
		return m, nil

	case key.Matches(msg, m.keyMap.PromptMode):
		if m.mode == modePrompts {
			m.mode = modeChat
			return m, nil
		}
		m.mode = modePrompts
		return m, loadPromptsCmd(m.prompts)

	case key.Matches(msg, m.keyMap.Attach):
		path := strings.TrimSpace(m.input.Value())
		if path == "" {
			m.toasts.Status("Type a file path, then C-a to attach it")
			return m, m.toasts.Tick()
		}
		m.msgs.Attach(path)
		m.input.Reset()
		m.toasts.Status("Attached " + path)
		return m, m.toasts.Tick()

	case key.Matches(msg, m.keyMap.RenameConv):
		title := strings.TrimSpace(m.input.Value())
		list := m.convs.List()
		if title == "" || m.sidebarSel < 0 || m.sidebarSel >= len(list) {
			m.toasts.Status("Select a conversation and type the new title first")
			return m, m.toasts.Tick()
		}
		m.input.Reset()
		return m, renameConversationCmd(m.convs, list[m.sidebarSel].ID, title)

	case key.Matches(msg, m.keyMap.OpenRef):
		refs := m.lastAnswerRefs()
		if len(refs) == 0 {
			m.toasts.Status("No sources on the last answer")
			return m, m.toasts.Tick()
		}
		ref := refs[m.refCursor%len(refs)]
		m.refCursor++
		return m, openReferenceCmd(m.refs, ref)

	case key.Matches(msg, m.keyMap.NewConv):
		m.convs.SetActive("")
		m.msgs.Replace(nil)
		m.sidebarSel = -1
		m.refreshTranscript(true)
		return m, nil

	case key.Matches(msg, m.keyMap.NextConv):
		return m.selectConversation(m.sidebarSel + 1)

	case key.Matches(msg, m.keyMap.PrevConv):
		return m.selectConversation(m.sidebarSel - 1)

	case key.Matches(msg, m.keyMap.DeleteConv):
		if m.mode == modePrompts {
			if list := m.prompts.List(); m.promptSel >= 0 && m.promptSel < len(list) {
				return m, deletePromptCmd(m.prompts, list[m.promptSel].ID)
			}
			return m, nil
		}
		list := m.convs.List()
		if m.sidebarSel >= 0 && m.sidebarSel < len(list) {
			return m, deleteConversationCmd(m.convs, list[m.sidebarSel].ID)
		}
		return m, nil

	case key.Matches(msg, m.keyMap.ScrollUp):
		if m.mode == modePrompts {
			m.promptSel--
			m.clampPromptSel()
			return m, nil
		}
		m.viewport.LineUp(1)
		return m, nil

	case key.Matches(msg, m.keyMap.ScrollDown):
		if m.mode == modePrompts {
			m.promptSel++
			m.clampPromptSel()
			return m, nil
		}
		m.viewport.LineDown(1)
		return m, nil

	case key.Matches(msg, m.keyMap.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keyMap.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit dispatches the current input according to the active mode:
// a chat turn, a search query or /schema command, or a prompt
// command.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())

	switch m.mode {
	case modeSearch:
		return m.submitSearch(text)
	case modePrompts:
		return m.submitPrompt(text)
	}

	if text == "" {
		return m, nil
	}
	if m.sender.InFlight() {
		m.toasts.Status("Still responding, hang on")
		return m, m.toasts.Tick()
	}

	m.input.Reset()
	m.streaming = true
	m.refreshTranscript(true)
	return m, tea.Batch(sendCmd(m.sender, text), streamTickCmd())
}

// submitSearch runs a query, or a /schema command that drafts and
// saves a new schema group.
func (m Model) submitSearch(text string) (tea.Model, tea.Cmd) {
	if text == "" {
		return m, nil
	}
	m.input.Reset()

	if name, desc, fields, ok := parseSchemaCommand(text); ok {
		groupID := buildSchemaGroup(m.draft, name, desc, fields)
		return m, saveSchemaGroupCmd(m.draft, m.search, groupID)
	}
	return m, searchQueryCmd(m.search, text)
}

// submitPrompt handles the prompt manager: /new and /edit commands,
// or plain Enter to select the highlighted prompt for future sends.
func (m Model) submitPrompt(text string) (tea.Model, tea.Cmd) {
	if title, content, ok := parsePromptCommand(text, promptNewCommand); ok {
		m.input.Reset()
		return m, createPromptCmd(m.prompts, title, content)
	}
	if title, content, ok := parsePromptCommand(text, promptEditCommand); ok {
		list := m.prompts.List()
		if m.promptSel < 0 || m.promptSel >= len(list) {
			m.toasts.Status("Select a prompt to edit first")
			return m, m.toasts.Tick()
		}
		m.input.Reset()
		return m, updatePromptCmd(m.prompts, list[m.promptSel].ID, title, content)
	}

	list := m.prompts.List()
	if m.promptSel >= 0 && m.promptSel < len(list) {
		m.prompts.Select(list[m.promptSel].ID)
		m.toasts.Status("System prompt: " + list[m.promptSel].Title)
		return m, m.toasts.Tick()
	}
	return m, nil
}

// selectConversation activates the conversation at idx and loads its
// history. Selecting past the end triggers the next page fetch.
func (m Model) selectConversation(idx int) (tea.Model, tea.Cmd) {
	list := m.convs.List()
	if len(list) == 0 {
		return m, loadConversationsCmd(m.convs)
	}
	if idx < 0 {
		idx = 0
	}
	if idx >= len(list) {
		if !m.convs.FullyLoaded() {
			return m, loadConversationsCmd(m.convs)
		}
		idx = len(list) - 1
	}

	m.sidebarSel = idx
	conv := list[idx]
	m.convs.SetActive(conv.ID)
	m.msgs.Replace(nil)
	m.refreshTranscript(true)
	return m, loadMessagesCmd(m.client, conv.ID)
}

// clampSidebarSel keeps the selection inside the list after deletes.
func (m *Model) clampSidebarSel() {
	n := len(m.convs.List())
	if n == 0 {
		m.sidebarSel = -1
	} else if m.sidebarSel >= n {
		m.sidebarSel = n - 1
	}
}

// drainErrors surfaces orchestrator-pushed errors as toasts.
func (m *Model) drainErrors() {
	for _, e := range m.errs.Drain() {
		m.toasts.Error(e)
	}
}

// sendErrorText maps orchestrator rejections to user-facing text.
func sendErrorText(err error) string {
	switch {
	case errors.Is(err, sendpkg.ErrEmptyMessage):
		return "Nothing to send"
	case errors.Is(err, sendpkg.ErrSendInFlight):
		return "Still responding, hang on"
	default:
		return err.Error()
	}
}
