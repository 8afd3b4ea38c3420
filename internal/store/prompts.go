// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/morganforge/parley/internal/model"
)

// modelCacheTTL is how long a fetched model list stays fresh. The
// backend's model catalog changes rarely; refetching on every
// settings view open is wasted traffic.
const modelCacheTTL = 5 * time.Minute

// promptClient is the backend surface Prompts needs.
type promptClient interface {
	ListModels(ctx context.Context) ([]model.ModelInfo, error)
	ListPrompts(ctx context.Context) ([]model.Prompt, error)
	CreatePrompt(ctx context.Context, title, content string) (*model.Prompt, error)
	UpdatePrompt(ctx context.Context, promptID, title, content string) (*model.Prompt, error)
	DeletePrompt(ctx context.Context, promptID string) error
}

// =============================================================================
// PROMPT AND MODEL CATALOG
// =============================================================================

// Prompts holds the system prompt catalog, the selected prompt, and
// a TTL-cached copy of the backend's model list.
type Prompts struct {
	mu sync.Mutex

	client promptClient

	prompts    []model.Prompt
	selectedID string

	models        []model.ModelInfo
	modelsFetched time.Time
	now           func() time.Time
}

// NewPrompts creates an empty prompt store backed by the given client.
func NewPrompts(client promptClient) *Prompts {
	return &Prompts{client: client, now: time.Now}
}

// List returns a snapshot of the loaded system prompts.
func (s *Prompts) List() []model.Prompt {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Prompt, len(s.prompts))
	copy(out, s.prompts)
	return out
}

// SelectedID returns the selected system prompt id, "" for none.
func (s *Prompts) SelectedID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedID
}

// Select sets the selected system prompt id.
func (s *Prompts) Select(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedID = id
}

// Load fetches the prompt catalog from the backend.
func (s *Prompts) Load(ctx context.Context) error {
	prompts, err := s.client.ListPrompts(ctx)
	if err != nil {
		return fmt.Errorf("failed to load prompts: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = prompts
	return nil
}

// Create stores a new prompt on the backend and appends it locally.
func (s *Prompts) Create(ctx context.Context, title, content string) (*model.Prompt, error) {
	prompt, err := s.client.CreatePrompt(ctx, title, content)
	if err != nil {
		return nil, fmt.Errorf("failed to create prompt: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, *prompt)
	return prompt, nil
}

// Update edits a prompt on the backend and patches the local record.
func (s *Prompts) Update(ctx context.Context, id, title, content string) error {
	updated, err := s.client.UpdatePrompt(ctx, id, title, content)
	if err != nil {
		return fmt.Errorf("failed to update prompt: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.prompts {
		if s.prompts[i].ID == id {
			s.prompts[i] = *updated
			break
		}
	}
	return nil
}

// Delete removes a prompt on the backend and locally. Selecting a
// deleted prompt falls back to none.
func (s *Prompts) Delete(ctx context.Context, id string) error {
	if err := s.client.DeletePrompt(ctx, id); err != nil {
		return fmt.Errorf("failed to delete prompt: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.prompts {
		if s.prompts[i].ID == id {
			s.prompts = append(s.prompts[:i], s.prompts[i+1:]...)
			break
		}
	}
	if s.selectedID == id {
		s.selectedID = ""
	}
	return nil
}

// Models returns the backend's model list, served from cache while
// fresh and refetched after the TTL expires.
func (s *Prompts) Models(ctx context.Context) ([]model.ModelInfo, error) {
	s.mu.Lock()
	if s.models != nil && s.now().Sub(s.modelsFetched) < modelCacheTTL {
		cached := make([]model.ModelInfo, len(s.models))
		copy(cached, s.models)
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	models, err := s.client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load models: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.models = models
	s.modelsFetched = s.now()

	out := make([]model.ModelInfo, len(models))
	copy(out, models)
	return out, nil
}
