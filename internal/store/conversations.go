// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/morganforge/parley/internal/api"
	"github.com/morganforge/parley/internal/model"
)

// DefaultPageLimit is the conversation page size requested from the
// backend.
const DefaultPageLimit = 20

// conversationLister is the backend surface Conversations needs.
type conversationLister interface {
	ListConversations(ctx context.Context, page, limit int) (*api.ConversationsPage, error)
	RenameConversation(ctx context.Context, conversationID, title string) error
	DeleteConversation(ctx context.Context, conversationID string) error
}

// =============================================================================
// CONVERSATION STORE
// =============================================================================

// Conversations tracks the conversation list, the active conversation
// id, and the paging cursor for server-side history.
type Conversations struct {
	mu sync.Mutex

	client conversationLister

	list     []model.Conversation
	activeID string

	page    int
	loading bool
	done    bool
	seeded  bool
}

// NewConversations creates an empty conversation store backed by the
// given client.
func NewConversations(client conversationLister) *Conversations {
	return &Conversations{client: client}
}

// List returns a snapshot of the conversation list, newest first.
func (s *Conversations) List() []model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Conversation, len(s.list))
	copy(out, s.list)
	return out
}

// ActiveID returns the active conversation id, or "" when no
// conversation is selected.
func (s *Conversations) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Active returns the active conversation record, if present in the list.
func (s *Conversations) Active() (model.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conv := range s.list {
		if conv.ID == s.activeID {
			return conv, true
		}
	}
	return model.Conversation{}, false
}

// SetActive switches the active conversation pointer. It is a pure
// state change; loading the new conversation's messages is the
// caller's concern.
func (s *Conversations) SetActive(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeID = id
}

// Create prepends a conversation with the given title and id and
// makes it active. An empty id gets a locally generated one.
func (s *Conversations) Create(title, id string) model.Conversation {
	conv := model.NewConversation(title, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.list = append([]model.Conversation{conv}, s.list...)
	s.activeID = conv.ID
	return conv
}

// Seed replaces the list with locally cached conversations. Used for
// an offline relist when the backend is unreachable at startup; a
// later successful page load is expected to supersede it, so seeding
// an already populated store is a no-op.
func (s *Conversations) Seed(convs []model.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.list) > 0 || len(convs) == 0 {
		return
	}
	s.list = make([]model.Conversation, len(convs))
	copy(s.list, convs)
	s.seeded = true
}

// FullyLoaded reports whether every history page has been fetched.
func (s *Conversations) FullyLoaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// LoadNextPage fetches the next page of conversation history and
// appends it to the list. It is a no-op while a load is in flight or
// after the last page has been reached.
func (s *Conversations) LoadNextPage(ctx context.Context) error {
	s.mu.Lock()
	if s.loading || s.done {
		s.mu.Unlock()
		return nil
	}
	s.loading = true
	page := s.page + 1
	s.mu.Unlock()

	result, err := s.client.ListConversations(ctx, page, DefaultPageLimit)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		return fmt.Errorf("failed to load conversations: %w", err)
	}

	s.page = page
	if s.seeded && page == 1 {
		// The first live page supersedes the offline seed.
		s.list = nil
		s.seeded = false
	}
	s.list = append(s.list, result.Items...)
	if page >= result.TotalPages || len(result.Items) == 0 {
		s.done = true
	}
	return nil
}

// Rename updates a conversation title on the server, then patches the
// local record. Local state is untouched when the server call fails.
func (s *Conversations) Rename(ctx context.Context, id, title string) error {
	if err := s.client.RenameConversation(ctx, id, title); err != nil {
		return fmt.Errorf("failed to rename conversation: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.list {
		if s.list[i].ID == id {
			s.list[i].Title = title
			break
		}
	}
	return nil
}

// Delete removes a conversation on the server, then drops the local
// record. The active pointer is cleared when the active conversation
// is deleted. Local state is untouched when the server call fails.
func (s *Conversations) Delete(ctx context.Context, id string) error {
	if err := s.client.DeleteConversation(ctx, id); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.list {
		if s.list[i].ID == id {
			s.list = append(s.list[:i], s.list[i+1:]...)
			break
		}
	}
	if s.activeID == id {
		s.activeID = ""
	}
	return nil
}
