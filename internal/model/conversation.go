// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is a lightweight conversation record as listed in the
// sidebar. Message history is loaded separately and held by the
// message store; the backend owns the full conversation document.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// NewConversation creates a conversation with the given title and a
// server-assigned id. When id is empty a client-generated UUID is
// used; such a conversation exists only locally until the backend
// confirms it via chat.start.
func NewConversation(title, id string) Conversation {
	if id == "" {
		id = uuid.NewString()
	}
	return Conversation{
		ID:        id,
		Title:     title,
		CreatedAt: time.Now(),
	}
}

// DisplayTitle returns the title or a default for untitled threads.
func (c *Conversation) DisplayTitle() string {
	if c.Title != "" {
		return c.Title
	}
	return "New Conversation"
}

// =============================================================================
// MODEL DESCRIPTOR
// =============================================================================

// ModelInfo describes an inference model offered by the backend.
// The /api/models endpoint returns bare name strings; they are mapped
// to descriptors so the UI has a stable type to extend.
type ModelInfo struct {
	Name string `json:"name"`
}

// =============================================================================
// SYSTEM PROMPT
// =============================================================================

// Prompt is a reusable system prompt managed through the backend's
// prompt CRUD endpoints.
type Prompt struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
