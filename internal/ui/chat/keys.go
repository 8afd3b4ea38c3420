// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the main chat view for the TUI.
//
// This file defines keyboard bindings for the chat interface, with
// help text generated from the bindings themselves.
package chat

import (
	"github.com/charmbracelet/bubbles/key"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines all keyboard bindings for the chat interface.
type KeyMap struct {
	Submit        key.Binding
	Quit          key.Binding
	ScrollUp      key.Binding
	ScrollDown    key.Binding
	PageUp        key.Binding
	PageDown      key.Binding
	NextConv      key.Binding
	PrevConv      key.Binding
	NewConv       key.Binding
	DeleteConv    key.Binding
	RenameConv    key.Binding
	Attach        key.Binding
	OpenRef       key.Binding
	SearchMode    key.Binding
	PromptMode    key.Binding
	ToggleSidebar key.Binding
	DismissToast  key.Binding
	Help          key.Binding
}

// DefaultKeyMap returns the default key bindings for the chat view.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "send"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "ctrl+q"),
			key.WithHelp("C-c", "quit"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("up"),
			key.WithHelp("up", "scroll up"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("down"),
			key.WithHelp("down", "scroll down"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("PgUp", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("PgDn", "page down"),
		),
		NextConv: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("C-n", "next conversation"),
		),
		PrevConv: key.NewBinding(
			key.WithKeys("ctrl+p"),
			key.WithHelp("C-p", "previous conversation"),
		),
		NewConv: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("C-t", "new conversation"),
		),
		DeleteConv: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("C-x", "delete conversation"),
		),
		RenameConv: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("C-r", "rename conversation to input text"),
		),
		Attach: key.NewBinding(
			key.WithKeys("ctrl+a"),
			key.WithHelp("C-a", "attach file at input path"),
		),
		OpenRef: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("C-o", "open next source reference"),
		),
		SearchMode: key.NewBinding(
			key.WithKeys("ctrl+f"),
			key.WithHelp("C-f", "smart search"),
		),
		PromptMode: key.NewBinding(
			key.WithKeys("ctrl+g"),
			key.WithHelp("C-g", "system prompts"),
		),
		ToggleSidebar: key.NewBinding(
			key.WithKeys("ctrl+b"),
			key.WithHelp("C-b", "toggle sidebar"),
		),
		DismissToast: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "dismiss notification"),
		),
		Help: key.NewBinding(
			key.WithKeys("ctrl+h"),
			key.WithHelp("C-h", "toggle help"),
		),
	}
}

// ShortHelp returns the bindings shown in the status bar.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.NewConv, k.ToggleSidebar, k.Quit}
}

// FullHelp returns the bindings shown in the help overlay.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.ScrollUp, k.ScrollDown, k.PageUp, k.PageDown},
		{k.NextConv, k.PrevConv, k.NewConv, k.DeleteConv, k.RenameConv},
		{k.Attach, k.OpenRef, k.SearchMode, k.PromptMode},
		{k.Submit, k.ToggleSidebar, k.DismissToast, k.Quit},
	}
}
