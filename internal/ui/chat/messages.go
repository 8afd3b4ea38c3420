// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the main chat view for the TUI.
//
// This file defines the Bubble Tea messages exchanged between the
// async command layer and the Update loop.
package chat

import (
	"time"

	"github.com/morganforge/parley/internal/model"
)

// =============================================================================
// SEND LIFECYCLE
// =============================================================================

// SendFinishedMsg is emitted when the orchestrator returns. Err is nil
// on a committed turn; rejection errors (empty message, already in
// flight) and stream failures arrive here too.
type SendFinishedMsg struct {
	Err error
}

// StreamTickMsg drives scratchpad re-renders while a response is
// draining through the chunk queue.
type StreamTickMsg struct {
	Time time.Time
}

// =============================================================================
// DATA LOADING
// =============================================================================

// ConversationsLoadedMsg reports a conversation page fetch.
type ConversationsLoadedMsg struct {
	Err error
}

// MessagesLoadedMsg reports a conversation history fetch. Cached is
// set when the messages came from the local cache instead of the
// backend.
type MessagesLoadedMsg struct {
	ConversationID string
	Messages       []model.Message
	Cached         bool
	Err            error
}

// ModelsLoadedMsg reports the model list fetch.
type ModelsLoadedMsg struct {
	Models []model.ModelInfo
	Err    error
}

// ConversationDeletedMsg reports a conversation delete.
type ConversationDeletedMsg struct {
	ID  string
	Err error
}

// ConversationRenamedMsg reports a conversation rename.
type ConversationRenamedMsg struct {
	ID    string
	Title string
	Err   error
}

// HistorySeededMsg reports an offline relist from the local cache
// after the backend refused the conversation page.
type HistorySeededMsg struct {
	Count int
}

// =============================================================================
// REFERENCES
// =============================================================================

// ReferenceOpenedMsg carries the retrieved content of one source
// reference.
type ReferenceOpenedMsg struct {
	Title string
	Text  string
	Size  int // blob size in bytes, 0 when the source is inline text
	Err   error
}

// =============================================================================
// SEARCH AND SCHEMA
// =============================================================================

// SearchResultsMsg reports an as-you-type search round trip.
type SearchResultsMsg struct {
	Query string
	Err   error
}

// SchemaLoadedMsg reports the smart-search schema fetch.
type SchemaLoadedMsg struct {
	Err error
}

// SchemaSavedMsg reports a schema group save attempt. Violations is
// non-empty when validation blocked the save.
type SchemaSavedMsg struct {
	Violations int
	Err        error
}

// =============================================================================
// PROMPTS
// =============================================================================

// PromptsLoadedMsg reports the system prompt list fetch.
type PromptsLoadedMsg struct {
	Err error
}

// PromptSavedMsg reports a prompt create or update.
type PromptSavedMsg struct {
	Title string
	Err   error
}

// PromptDeletedMsg reports a prompt delete.
type PromptDeletedMsg struct {
	Err error
}
