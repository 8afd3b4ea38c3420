// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"sync"

	"github.com/morganforge/parley/internal/model"
)

// Phase describes what the assistant is currently doing for the
// active turn, driving the typing indicator.
type Phase int

// Assistant phases, in rough pipeline order.
const (
	PhaseIdle Phase = iota
	// PhaseThinking covers the gap between dispatch and first output.
	PhaseThinking
	// PhaseStreaming means answer chunks are arriving or draining.
	PhaseStreaming
	// PhaseProcessing covers post-stream work before the final commit.
	PhaseProcessing
)

// =============================================================================
// MESSAGE STORE
// =============================================================================

// Messages holds the visible message list for the active conversation
// plus the streaming scratchpad and per-turn send state.
//
// While a turn streams, the accumulating answer lives in the
// scratchpad, not the list; completion flushes it as one assistant
// message. The list therefore only ever contains committed messages.
type Messages struct {
	mu sync.Mutex

	list       []model.Message
	scratchpad string
	phase      Phase

	attachments []string
	temperature float64
}

// NewMessages creates an empty message store with default generation
// parameters.
func NewMessages() *Messages {
	return &Messages{temperature: 0.7}
}

// List returns a snapshot of the committed messages.
func (s *Messages) List() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Message, len(s.list))
	copy(out, s.list)
	return out
}

// Replace swaps in a full message history, e.g. after switching
// conversations. Any in-progress scratchpad is discarded.
func (s *Messages) Replace(messages []model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list = make([]model.Message, len(messages))
	copy(s.list, messages)
	s.scratchpad = ""
	s.phase = PhaseIdle
}

// Append adds a message to the list. An assistant message whose
// content matches a trailing assistant message is suppressed;
// duplicate server delivery of the same answer must not render twice.
func (s *Messages) Append(msg model.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(msg)
}

func (s *Messages) appendLocked(msg model.Message) bool {
	// Only assistant answers are deduplicated. Users legitimately
	// resend the same text after a failed turn.
	if n := len(s.list); n > 0 {
		last := s.list[n-1]
		if last.Role == model.RoleAssistant && last.Role == msg.Role && last.Content == msg.Content {
			return false
		}
	}
	s.list = append(s.list, msg)
	return true
}

// ReconcileID replaces a client-generated temporary message id with
// the server-issued one, and moves the message onto the server's
// conversation id.
func (s *Messages) ReconcileID(tempID, serverID, conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.list {
		if s.list[i].ID == tempID {
			s.list[i].ID = serverID
			s.list[i].ConversationID = conversationID
			return
		}
	}
}

// Scratchpad returns the streaming text accumulated so far.
func (s *Messages) Scratchpad() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scratchpad
}

// AppendScratchpad adds one chunk of streamed text to the scratchpad.
func (s *Messages) AppendScratchpad(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scratchpad += text
	s.phase = PhaseStreaming
}

// ClearScratchpad discards any accumulated streaming text.
func (s *Messages) ClearScratchpad() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scratchpad = ""
}

// CommitAssistant flushes the scratchpad as one assistant message
// with the server id and references, then resets the turn state. The
// duplicate-trailing-message guard applies.
func (s *Messages) CommitAssistant(serverID, conversationID string, refs []model.Reference) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := model.NewAssistantMessage(serverID, conversationID, s.scratchpad, refs)
	appended := s.appendLocked(msg)
	s.scratchpad = ""
	s.phase = PhaseIdle
	return appended
}

// Phase returns the current assistant phase.
func (s *Messages) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// SetPhase updates the assistant phase.
func (s *Messages) SetPhase(p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = p
}

// Attachments returns the file paths queued for the next send.
func (s *Messages) Attachments() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.attachments))
	copy(out, s.attachments)
	return out
}

// Attach queues a local file path for the next send.
func (s *Messages) Attach(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachments = append(s.attachments, path)
}

// ClearAttachments empties the attachment queue, normally after a
// successful upload.
func (s *Messages) ClearAttachments() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachments = nil
}

// Temperature returns the sampling temperature for the next send.
func (s *Messages) Temperature() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.temperature
}

// SetTemperature updates the sampling temperature.
func (s *Messages) SetTemperature(t float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.temperature = t
}
