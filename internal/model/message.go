// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message. Only user and assistant
// messages appear in the visible message list; system prompts live on
// the backend and are referenced by id.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// PlaceholderConversationID is the conversation id given to messages
// appended before the backend has created a conversation. It is
// replaced once chat.start delivers the server-assigned id.
const PlaceholderConversationID = "temp"

// Message is a single message in a conversation.
//
// A user message carries a client-generated temporary id until the
// backend acknowledges the request with an input id. While an
// assistant response is streaming its text lives in the message
// store's scratchpad, not here; a Message is only materialized once
// the stream completes.
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversationId"`
	Role           Role        `json:"role"`
	Content        string      `json:"content"`
	References     []Reference `json:"references,omitempty"`
}

// NewUserMessage creates a user message with a temporary client id.
func NewUserMessage(conversationID, content string) Message {
	if conversationID == "" {
		conversationID = PlaceholderConversationID
	}
	return Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           RoleUser,
		Content:        content,
	}
}

// NewAssistantMessage creates a finalized assistant message with the
// server-issued id and the fully accumulated content.
func NewAssistantMessage(id, conversationID, content string, refs []Reference) Message {
	return Message{
		ID:             id,
		ConversationID: conversationID,
		Role:           RoleAssistant,
		Content:        content,
		References:     refs,
	}
}

// IsEmpty returns true if the message has no content.
func (m *Message) IsEmpty() bool {
	return len(m.Content) == 0
}

// HasReferences returns true if the message cites any sources.
func (m *Message) HasReferences() bool {
	return len(m.References) > 0
}

// Preview returns a truncated single-line preview of the content.
// Uses rune-based truncation to handle Unicode correctly.
func (m *Message) Preview(maxLen int) string {
	content := strings.ReplaceAll(m.Content, "\n", " ")
	runes := []rune(content)
	if len(runes) <= maxLen {
		return content
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
