// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morganforge/parley/internal/api"
	"github.com/morganforge/parley/internal/model"
	"github.com/morganforge/parley/internal/store"
)

// scriptedBackend drives the sender with canned stream events.
type scriptedBackend struct {
	mu          sync.Mutex
	uploadErr   error
	uploadPaths []string
	chatCalls   int
	lastParams  api.ChatParams

	// script runs the callbacks as a fake stream would.
	script func(cb api.StreamCallbacks) (*api.CompletionData, error)

	// release, when set, blocks ChatStream until closed.
	release chan struct{}
}

func (b *scriptedBackend) UploadFiles(_ context.Context, paths []string) (*api.UploadResult, error) {
	if b.uploadErr != nil {
		return nil, b.uploadErr
	}
	files := make([]api.UploadedFile, len(paths))
	for i, p := range paths {
		files[i] = api.UploadedFile{FileID: p, FilePath: "/store/" + p}
	}
	b.uploadPaths = paths
	return &api.UploadResult{Count: len(files), Files: files}, nil
}

func (b *scriptedBackend) ChatStream(_ context.Context, params api.ChatParams, cb api.StreamCallbacks) (*api.CompletionData, error) {
	b.mu.Lock()
	b.chatCalls++
	b.lastParams = params
	b.mu.Unlock()
	if b.release != nil {
		<-b.release
	}
	if b.script == nil {
		return nil, nil
	}
	return b.script(cb)
}

func (b *scriptedBackend) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.chatCalls
}

// newTestSender builds a sender over fresh stores with a collapsed
// queue cadence.
func newTestSender(b *scriptedBackend) (*Sender, *store.Conversations, *store.Messages, *store.Errors) {
	convs := store.NewConversations(nil)
	msgs := store.NewMessages()
	prompts := store.NewPrompts(nil)
	errs := store.NewErrors()
	s := NewSender(b, convs, msgs, prompts, errs)
	s.queue.burstDelay = 0
	s.queue.steadyDelay = 0
	s.queue.idleGrace = time.Millisecond
	s.SetModel("qwen3:8b")
	return s, convs, msgs, errs
}

func TestSendEmptyMessageRejected(t *testing.T) {
	s, _, msgs, _ := newTestSender(&scriptedBackend{})
	assert.ErrorIs(t, s.Send(context.Background(), "   \n"), ErrEmptyMessage)
	assert.Empty(t, msgs.List())
}

func TestSendSingleFlight(t *testing.T) {
	backend := &scriptedBackend{release: make(chan struct{})}
	s, _, msgs, _ := newTestSender(backend)

	done := make(chan error, 1)
	go func() { done <- s.Send(context.Background(), "first") }()

	// Wait for the first send to reach the backend.
	require.Eventually(t, func() bool { return backend.calls() == 1 }, time.Second, time.Millisecond)

	// A concurrent send is rejected outright: no duplicate optimistic
	// message, no second request.
	assert.ErrorIs(t, s.Send(context.Background(), "second"), ErrSendInFlight)
	assert.Len(t, msgs.List(), 1)
	assert.Equal(t, 1, backend.calls())

	close(backend.release)
	<-done
}

func TestSendNewConversationFlow(t *testing.T) {
	backend := &scriptedBackend{
		script: func(cb api.StreamCallbacks) (*api.CompletionData, error) {
			cb.OnStart(api.StartData{
				MessageID: "m-1", ConversationID: "c1", Title: "Hello", InputID: "in-1",
			})
			cb.OnChunk(api.ChunkData{Content: "Hi "})
			cb.OnChunk(api.ChunkData{Content: "there"})
			completion := &api.CompletionData{MessageID: "m-1", ConversationID: "c1"}
			if cb.OnComplete != nil {
				cb.OnComplete(*completion)
			}
			return completion, nil
		},
	}
	s, convs, msgs, _ := newTestSender(backend)

	require.NoError(t, s.Send(context.Background(), "Hello"))

	// The server-issued conversation exists, has the server title,
	// and is active.
	list := convs.List()
	require.Len(t, list, 1)
	assert.Equal(t, "c1", list[0].ID)
	assert.Equal(t, "Hello", list[0].Title)
	assert.Equal(t, "c1", convs.ActiveID())

	// The optimistic user message was reconciled to the input id, and
	// the assistant answer committed once.
	messages := msgs.List()
	require.Len(t, messages, 2)
	assert.Equal(t, "in-1", messages[0].ID)
	assert.Equal(t, "c1", messages[0].ConversationID)
	assert.Equal(t, model.RoleUser, messages[0].Role)
	assert.Equal(t, "Hi there", messages[1].Content)
	assert.Equal(t, "m-1", messages[1].ID)
	assert.Empty(t, msgs.Scratchpad())
	assert.False(t, s.InFlight())
}

func TestSendExistingConversationKeepsList(t *testing.T) {
	backend := &scriptedBackend{
		script: func(cb api.StreamCallbacks) (*api.CompletionData, error) {
			cb.OnStart(api.StartData{ConversationID: "c-9", InputID: "in-2"})
			completion := &api.CompletionData{MessageID: "m-2", ConversationID: "c-9"}
			if cb.OnComplete != nil {
				cb.OnComplete(*completion)
			}
			return completion, nil
		},
	}
	s, convs, _, _ := newTestSender(backend)
	convs.Create("Existing", "c-9")

	require.NoError(t, s.Send(context.Background(), "more"))

	assert.Len(t, convs.List(), 1, "no second conversation is created")
	require.NotNil(t, backend.lastParams.ConversationID)
	assert.Equal(t, "c-9", *backend.lastParams.ConversationID)
}

func TestSendUploadFailureAbortsBeforeChat(t *testing.T) {
	backend := &scriptedBackend{uploadErr: errors.New("disk full")}
	s, _, msgs, errs := newTestSender(backend)
	msgs.Attach("report.pdf")

	err := s.Send(context.Background(), "summarize this")
	require.Error(t, err)

	assert.Equal(t, 0, backend.calls(), "chat endpoint must not be contacted")
	// The optimistic user message stays visible.
	require.Len(t, msgs.List(), 1)
	assert.Equal(t, model.RoleUser, msgs.List()[0].Role)

	drained := errs.Drain()
	require.Len(t, drained, 1)
	assert.Contains(t, drained[0], "File upload failed")
}

func TestSendUploadedPathsForwarded(t *testing.T) {
	backend := &scriptedBackend{
		script: func(cb api.StreamCallbacks) (*api.CompletionData, error) {
			completion := &api.CompletionData{MessageID: "m-3", ConversationID: "c-3"}
			if cb.OnComplete != nil {
				cb.OnComplete(*completion)
			}
			return completion, nil
		},
	}
	s, _, msgs, _ := newTestSender(backend)
	msgs.Attach("a.pdf")

	require.NoError(t, s.Send(context.Background(), "read it"))

	assert.True(t, backend.lastParams.File)
	assert.Equal(t, []string{"/store/a.pdf"}, backend.lastParams.FilePaths)
	assert.Empty(t, msgs.Attachments(), "attachments clear after a successful upload")
}

func TestSendStreamErrorKeepsUserMessage(t *testing.T) {
	backend := &scriptedBackend{
		script: func(cb api.StreamCallbacks) (*api.CompletionData, error) {
			cb.OnChunk(api.ChunkData{Content: "partial answ"})
			cb.OnError("MODEL_OVERLOADED - try again later")
			return nil, nil
		},
	}
	s, _, msgs, errs := newTestSender(backend)

	err := s.Send(context.Background(), "hi")
	require.Error(t, err)

	// Partial streaming state is discarded; the user message is not
	// rolled back.
	require.Eventually(t, func() bool { return s.queue.Quiescent() }, time.Second, time.Millisecond)
	assert.Empty(t, msgs.Scratchpad())
	require.Len(t, msgs.List(), 1)
	assert.Equal(t, model.RoleUser, msgs.List()[0].Role)

	drained := errs.Drain()
	require.Len(t, drained, 1)
	assert.Contains(t, drained[0], "MODEL_OVERLOADED")
}

func TestSendTransportErrorSurfaced(t *testing.T) {
	backend := &scriptedBackend{
		script: func(cb api.StreamCallbacks) (*api.CompletionData, error) {
			return nil, errors.New("connection reset")
		},
	}
	s, _, msgs, errs := newTestSender(backend)

	require.Error(t, s.Send(context.Background(), "hi"))
	assert.Len(t, msgs.List(), 1)
	assert.Contains(t, errs.Drain()[0], "Streaming error")
	assert.False(t, s.InFlight(), "the in-flight guard always clears")
}

func TestSendWaitsForQueueBeforeCommit(t *testing.T) {
	backend := &scriptedBackend{
		script: func(cb api.StreamCallbacks) (*api.CompletionData, error) {
			// Completion lands while chunks are still queued.
			for _, frag := range []string{"a", "b", "c", "d", "e", "f"} {
				cb.OnChunk(api.ChunkData{Content: frag})
			}
			completion := &api.CompletionData{MessageID: "m-4", ConversationID: "c-4"}
			if cb.OnComplete != nil {
				cb.OnComplete(*completion)
			}
			return completion, nil
		},
	}
	s, _, msgs, _ := newTestSender(backend)
	s.queue.steadyDelay = 2 * time.Millisecond

	require.NoError(t, s.Send(context.Background(), "hi"))

	messages := msgs.List()
	require.Len(t, messages, 2)
	assert.Equal(t, "abcdef", messages[1].Content, "the commit must include every queued chunk")
}
