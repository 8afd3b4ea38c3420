// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import "sync"

// =============================================================================
// USER-VISIBLE ERROR FEED
// =============================================================================

// Errors is the feed of user-facing error messages. Store methods and
// the send path push plain strings here instead of surfacing raw
// transport errors; the toast layer drains them for display.
type Errors struct {
	mu      sync.Mutex
	pending []string
}

// NewErrors creates an empty error feed.
func NewErrors() *Errors {
	return &Errors{}
}

// Push appends an error message to the feed. Empty strings are
// ignored.
func (s *Errors) Push(message string) {
	if message == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, message)
}

// Drain returns and clears all pending error messages.
func (s *Errors) Drain() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = nil
	return out
}

// Len returns the number of pending error messages.
func (s *Errors) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
