// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/morganforge/parley/internal/api"
	"github.com/morganforge/parley/internal/model"
	"github.com/morganforge/parley/internal/store"
)

// Error variables for send guards.
var (
	// ErrEmptyMessage indicates a send with no text.
	ErrEmptyMessage = errors.New("cannot send an empty message")

	// ErrSendInFlight indicates a send while another is running.
	// Concurrent sends are rejected, never queued.
	ErrSendInFlight = errors.New("a message is already being sent")

	// ErrStreamIncomplete indicates the stream ended cleanly but
	// without a completion event.
	ErrStreamIncomplete = errors.New("stream ended without a completion")
)

// backend is the api.Client surface the sender needs.
type backend interface {
	UploadFiles(ctx context.Context, paths []string) (*api.UploadResult, error)
	ChatStream(ctx context.Context, params api.ChatParams, cb api.StreamCallbacks) (*api.CompletionData, error)
}

// =============================================================================
// SEND ORCHESTRATOR
// =============================================================================

// Sender runs the full send-message operation: the optimistic local
// append, the upload phase, the streaming chat call, routing chunks
// through the throttling queue, and the final assistant commit. It is
// the single entry point UI code calls to send a message.
type Sender struct {
	client   backend
	convs    *store.Conversations
	msgs     *store.Messages
	prompts  *store.Prompts
	errs     *store.Errors
	queue    *ChunkQueue
	inFlight atomic.Bool

	mu        sync.Mutex
	modelName string
	vdb       bool
	dbConnect bool
}

// NewSender wires a sender over the given stores. The chunk queue is
// created here so its sink is the message scratchpad.
func NewSender(client backend, convs *store.Conversations, msgs *store.Messages, prompts *store.Prompts, errs *store.Errors) *Sender {
	s := &Sender{
		client:  client,
		convs:   convs,
		msgs:    msgs,
		prompts: prompts,
		errs:    errs,
	}
	s.queue = NewChunkQueue(msgs.AppendScratchpad)
	return s
}

// Queue exposes the chunk queue, mainly for quiescence checks in
// tests and the UI's streaming indicator.
func (s *Sender) Queue() *ChunkQueue {
	return s.queue
}

// SetModel selects the model used for subsequent sends.
func (s *Sender) SetModel(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modelName = name
}

// Model returns the selected model name.
func (s *Sender) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modelName
}

// SetVDB toggles knowledge-base retrieval for the next sends.
func (s *Sender) SetVDB(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vdb = enabled
}

// VDB reports whether knowledge-base retrieval is enabled.
func (s *Sender) VDB() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vdb
}

// SetDBConnect toggles tabular database access for the next sends.
func (s *Sender) SetDBConnect(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dbConnect = enabled
}

// InFlight reports whether a send is currently running.
func (s *Sender) InFlight() bool {
	return s.inFlight.Load()
}

// Send runs one complete send operation for the given text. The user
// message appears locally before any network traffic; on failure it
// stays in place so the user can see what they sent, and the error is
// both returned and pushed to the error feed. There is no automatic
// retry.
func (s *Sender) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		return ErrSendInFlight
	}
	defer s.inFlight.Store(false)

	// Optimistic append under the current conversation, or the
	// placeholder when none exists yet.
	activeID := s.convs.ActiveID()
	optimistic := model.NewUserMessage(activeID, text)
	s.msgs.Append(optimistic)
	s.msgs.SetPhase(store.PhaseThinking)

	filePaths, err := s.uploadAttachments(ctx)
	if err != nil {
		s.msgs.SetPhase(store.PhaseIdle)
		s.errs.Push(fmt.Sprintf("File upload failed: %v", err))
		return err
	}

	params := s.buildParams(activeID, text, filePaths)

	var streamErr string
	completion, err := s.client.ChatStream(ctx, params, api.StreamCallbacks{
		OnStart: func(d api.StartData) {
			s.msgs.ReconcileID(optimistic.ID, d.InputID, d.ConversationID)
			if activeID == "" {
				s.convs.Create(d.Title, d.ConversationID)
			}
		},
		OnStatusChange: func(d api.StatusData) {
			s.msgs.SetPhase(store.PhaseThinking)
		},
		OnChunk: func(d api.ChunkData) {
			s.queue.Enqueue(d.Content)
		},
		OnError: func(msg string) {
			streamErr = msg
		},
	})
	if err != nil {
		s.abortTurn()
		s.errs.Push(fmt.Sprintf("Streaming error: %v", err))
		return err
	}
	if streamErr != "" {
		s.abortTurn()
		s.errs.Push(fmt.Sprintf("Streaming error: %s", streamErr))
		return errors.New(streamErr)
	}
	if completion == nil {
		s.abortTurn()
		s.errs.Push("Streaming error: the response ended unexpectedly")
		return ErrStreamIncomplete
	}

	// All chunks must reach the scratchpad before the commit, or the
	// finalized message would truncate the tail of the answer.
	s.msgs.SetPhase(store.PhaseProcessing)
	if err := s.queue.WaitQuiet(ctx); err != nil {
		s.abortTurn()
		return err
	}
	s.msgs.CommitAssistant(completion.MessageID, completion.ConversationID, completion.References)
	return nil
}

// uploadAttachments uploads any queued files and returns the stored
// paths the chat endpoint expects. An upload failure aborts the send
// before the chat endpoint is contacted.
func (s *Sender) uploadAttachments(ctx context.Context) ([]string, error) {
	attachments := s.msgs.Attachments()
	if len(attachments) == 0 {
		return nil, nil
	}

	result, err := s.client.UploadFiles(ctx, attachments)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(result.Files))
	for _, f := range result.Files {
		paths = append(paths, f.FilePath)
	}
	s.msgs.ClearAttachments()
	return paths, nil
}

// buildParams assembles the chat request from the current store state.
func (s *Sender) buildParams(activeID, text string, filePaths []string) api.ChatParams {
	s.mu.Lock()
	modelName, vdb, dbConnect := s.modelName, s.vdb, s.dbConnect
	s.mu.Unlock()

	var conversationID *string
	if activeID != "" {
		conversationID = &activeID
	}

	return api.ChatParams{
		ConversationID: conversationID,
		Query:          text,
		Model:          modelName,
		File:           len(filePaths) > 0,
		FilePaths:      filePaths,
		VDB:            vdb,
		SystemPromptID: s.prompts.SelectedID(),
		Temperature:    s.msgs.Temperature(),
		Stream:         true,
		DBConnect:      dbConnect,
	}
}

// abortTurn clears partial streaming state after a failed turn. The
// optimistic user message is deliberately left in place. The drain
// loop must stop before the scratchpad clears, or an in-flight
// fragment would land in the emptied scratchpad.
func (s *Sender) abortTurn() {
	s.queue.Clear()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = s.queue.WaitQuiet(ctx)
	s.msgs.ClearScratchpad()
	s.msgs.SetPhase(store.PhaseIdle)
}
