// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the main chat view for the TUI.
package chat

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/morganforge/parley/internal/model"
	"github.com/morganforge/parley/internal/store"
	"github.com/morganforge/parley/internal/util"
)

// Layout constants.
const (
	sidebarWidth    = 28
	headerHeight    = 1
	statusBarHeight = 1
	inputHeight     = 5 // 3 text rows plus border
	minBodyWidth    = 20
)

// =============================================================================
// LAYOUT
// =============================================================================

// layout resizes the viewport and input to the current window.
func (m *Model) layout() {
	bodyWidth := m.width
	if m.showSidebar {
		bodyWidth -= sidebarWidth
	}
	if bodyWidth < minBodyWidth {
		bodyWidth = minBodyWidth
	}

	bodyHeight := m.height - headerHeight - inputHeight - statusBarHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}

	m.viewport.Width = bodyWidth
	m.viewport.Height = bodyHeight
	m.input.SetWidth(bodyWidth - 2)
	m.markdown.SetWidth(bodyWidth - 4)
}

// refreshTranscript rebuilds the viewport content from the message
// store and scratchpad.
func (m *Model) refreshTranscript(gotoBottom bool) {
	m.viewport.SetContent(m.renderTranscript())
	if gotoBottom {
		m.viewport.GotoBottom()
	}
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the full chat screen.
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var rows []string
	rows = append(rows, m.renderHeader())

	var body string
	switch m.mode {
	case modeSearch:
		body = m.renderSearch()
	case modePrompts:
		body = m.renderPrompts()
	default:
		body = m.viewport.View()
		if m.showSidebar {
			body = lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), body)
		}
	}
	rows = append(rows, body)

	rows = append(rows, m.renderInput())
	rows = append(rows, m.renderStatusBar())

	screen := lipgloss.JoinVertical(lipgloss.Left, rows...)

	if toasts := m.toasts.Render(m.theme); toasts != "" {
		screen = lipgloss.JoinVertical(lipgloss.Left, toasts, screen)
	}
	if m.showOverlay {
		screen = lipgloss.JoinVertical(lipgloss.Left, screen, m.renderOverlay())
	}
	if m.showHelp {
		screen = lipgloss.JoinVertical(lipgloss.Left, screen, m.renderHelp())
	}
	return screen
}

// renderHeader draws the title line with the active conversation or
// screen name.
func (m Model) renderHeader() string {
	title := "parley"
	switch m.mode {
	case modeSearch:
		title += " / search"
	case modePrompts:
		title += " / prompts"
	default:
		if conv, ok := m.convs.Active(); ok && conv.Title != "" {
			title += " — " + util.TruncateWidth(conv.Title, m.width/2)
		}
	}
	return m.theme.Header.Width(m.width).Render(title)
}

// renderSidebar draws the conversation list.
func (m Model) renderSidebar() string {
	list := m.convs.List()

	var b strings.Builder
	b.WriteString(m.theme.ConvMeta.Render("Conversations"))
	b.WriteString("\n")

	if len(list) == 0 {
		b.WriteString(m.theme.ConvItem.Render("(none yet)"))
	}
	for i, conv := range list {
		title := conv.Title
		if title == "" {
			title = "Untitled"
		}
		title = util.TruncateWidth(title, sidebarWidth-4)

		style := m.theme.ConvItem
		if i == m.sidebarSel {
			style = m.theme.ConvItemSelected
		}
		b.WriteString(style.Render(title))
		b.WriteString("\n")
	}
	if !m.convs.FullyLoaded() {
		b.WriteString(m.theme.ConvMeta.Render("C-n for more..."))
	}

	return m.theme.Sidebar.
		Width(sidebarWidth).
		Height(m.viewport.Height).
		Render(b.String())
}

// renderTranscript draws the committed messages plus the live
// scratchpad and phase indicator.
func (m Model) renderTranscript() string {
	var b strings.Builder

	for _, msg := range m.msgs.List() {
		b.WriteString(m.renderMessage(msg))
		b.WriteString("\n\n")
	}

	// Live streaming text renders raw; markdown needs the complete
	// document to lay out fences and tables correctly.
	if scratch := m.msgs.Scratchpad(); scratch != "" {
		b.WriteString(m.theme.StreamingText.Render(scratch))
		b.WriteString("\n")
	}

	switch m.msgs.Phase() {
	case store.PhaseThinking:
		b.WriteString(m.spinner.View())
		b.WriteString(m.theme.ThinkingText.Render(" thinking..."))
	case store.PhaseProcessing:
		b.WriteString(m.spinner.View())
		b.WriteString(m.theme.ThinkingText.Render(" finishing up..."))
	}

	return b.String()
}

// renderMessage draws one committed message.
func (m Model) renderMessage(msg model.Message) string {
	if msg.Role == model.RoleUser {
		return m.theme.UserBubble.Render(msg.Content)
	}

	body := m.markdown.Render(msg.Content)
	out := m.theme.AssistantBubble.Render(body)
	if refs := m.refs.Render(m.theme, msg.References); refs != "" {
		out += "\n" + refs
	}
	return out
}

// renderInput draws the input area with attachment chips.
func (m Model) renderInput() string {
	var parts []string
	if atts := m.msgs.Attachments(); len(atts) > 0 {
		chips := make([]string, len(atts))
		for i, path := range atts {
			chips[i] = m.theme.AttachmentChip.Render("📎 " + util.TruncateWidth(path, 30))
		}
		parts = append(parts, strings.Join(chips, " "))
	}
	parts = append(parts, m.input.View())
	return m.theme.InputContainer.Render(strings.Join(parts, "\n"))
}

// renderStatusBar draws the bottom bar with model name, phase, and
// key hints.
func (m Model) renderStatusBar() string {
	left := m.theme.StatusModel.Render(m.sender.Model())
	if m.sender.InFlight() {
		left += " " + m.theme.ThinkingText.Render("streaming")
	}

	var hints []string
	for _, binding := range m.keyMap.ShortHelp() {
		h := binding.Help()
		hints = append(hints,
			m.theme.ShortcutKey.Render(h.Key)+" "+m.theme.ShortcutDesc.Render(h.Desc))
	}
	right := strings.Join(hints, "  ")

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return m.theme.StatusBar.Render(left + strings.Repeat(" ", gap) + right)
}

// =============================================================================
// SEARCH AND PROMPT SCREENS
// =============================================================================

// renderSearch draws the smart-search screen: the schema groups, any
// unsaved draft with its validation errors, and the hits of the last
// query.
func (m Model) renderSearch() string {
	var b strings.Builder

	b.WriteString(m.theme.ConvMeta.Render("Schema"))
	b.WriteString("\n")
	groups := m.search.Schema()
	if len(groups) == 0 {
		b.WriteString(m.theme.ConvItem.Render("(no schema groups yet)"))
		b.WriteString("\n")
	}
	for _, group := range groups {
		b.WriteString(m.theme.RefTitle.Render(group.Name))
		for _, field := range group.Fields {
			b.WriteString("\n  ")
			b.WriteString(m.theme.RefPreview.Render(field.Name + " (" + field.Type + ")"))
		}
		b.WriteString("\n")
	}

	for _, group := range m.draft.Groups() {
		b.WriteString(m.theme.RefTitle.Render("draft: " + group.Name))
		b.WriteString("\n")
		for _, attr := range []string{"name", "description", "fields"} {
			if e := m.draft.Error(group.ID, "", attr); e != "" {
				b.WriteString("  ")
				b.WriteString(m.theme.FieldError.Render(attr + ": " + e))
				b.WriteString("\n")
			}
		}
		for _, field := range group.Fields {
			for _, attr := range []string{"name", "description", "type"} {
				if e := m.draft.Error(group.ID, field.ID, attr); e != "" {
					b.WriteString("  ")
					b.WriteString(m.theme.FieldError.Render(field.Name + "." + attr + ": " + e))
					b.WriteString("\n")
				}
			}
		}
	}

	if q := m.search.LastQuery(); q != "" {
		b.WriteString("\n")
		b.WriteString(m.theme.ConvMeta.Render(fmt.Sprintf("Results for %q", q)))
		b.WriteString("\n")
		hits := m.search.Hits()
		if len(hits) == 0 {
			b.WriteString(m.theme.ConvItem.Render("(no matches)"))
			b.WriteString("\n")
		}
		for i, hit := range hits {
			b.WriteString(m.theme.RefTitle.Render(fmt.Sprintf("%d.", i+1)))
			b.WriteString("\n")
			keys := make([]string, 0, len(hit.Formatted))
			for k := range hit.Formatted {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				line := fmt.Sprintf("  %s: %v", k, hit.Formatted[k])
				b.WriteString(m.theme.RefPreview.Render(util.TruncateRunes(line, 160)))
				b.WriteString("\n")
			}
		}
	}

	b.WriteString("\n")
	b.WriteString(m.theme.ConvMeta.Render(
		"Enter to search, or /schema Name | Description | field:desc[:type]; ..."))

	return m.theme.Container.
		Width(m.viewport.Width).
		Height(m.viewport.Height).
		Render(b.String())
}

// renderPrompts draws the system prompt manager.
func (m Model) renderPrompts() string {
	var b strings.Builder
	b.WriteString(m.theme.ConvMeta.Render("System prompts"))
	b.WriteString("\n")

	list := m.prompts.List()
	if len(list) == 0 {
		b.WriteString(m.theme.ConvItem.Render("(none yet)"))
		b.WriteString("\n")
	}
	for i, prompt := range list {
		title := prompt.Title
		if prompt.ID == m.prompts.SelectedID() {
			title = "* " + title
		}
		style := m.theme.ConvItem
		if i == m.promptSel {
			style = m.theme.ConvItemSelected
		}
		b.WriteString(style.Render(title))
		b.WriteString("\n  ")
		b.WriteString(m.theme.RefPreview.Render(util.TruncateRunes(prompt.Content, 100)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.theme.ConvMeta.Render(
		"Enter to select, /new Title | Content, /edit Title | Content, C-x to delete"))

	return m.theme.Container.
		Width(m.viewport.Width).
		Height(m.viewport.Height).
		Render(b.String())
}

// renderOverlay draws the content of an opened source reference.
func (m Model) renderOverlay() string {
	var b strings.Builder
	b.WriteString(m.theme.RefBadge.Render(m.overlayTitle))
	b.WriteString("\n")
	b.WriteString(util.TruncateRunes(m.overlayText, 2000))
	b.WriteString("\n")
	b.WriteString(m.theme.ConvMeta.Render("Esc to close"))
	return m.theme.Container.Width(m.viewport.Width).Render(b.String())
}

// renderHelp draws the full key binding reference.
func (m Model) renderHelp() string {
	var b strings.Builder
	for _, group := range m.keyMap.FullHelp() {
		var line []string
		for _, binding := range group {
			h := binding.Help()
			line = append(line, fmt.Sprintf("%s %s",
				m.theme.ShortcutKey.Render(h.Key),
				m.theme.ShortcutDesc.Render(h.Desc)))
		}
		b.WriteString(strings.Join(line, "   "))
		b.WriteString("\n")
	}
	return m.theme.Container.Render(b.String())
}
