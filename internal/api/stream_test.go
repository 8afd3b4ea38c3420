// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morganforge/parley/internal/model"
)

// sseHandler writes the given SSE frames verbatim.
func sseHandler(t *testing.T, raw string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chat", r.URL.Path)

		var params ChatParams
		require.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		assert.True(t, params.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(raw))
	}
}

func TestChatStreamFullTurn(t *testing.T) {
	raw := "event: chat.start\n" +
		`data: {"message_id":"m-1","conversation_id":"c-1","title":"Deadlines","input_id":"in-1","response_id":"r-1"}` + "\n\n" +
		"event: chat.status\n" +
		`data: {"message_id":"m-1","step":"retrieval","status":"running"}` + "\n\n" +
		"event: chat.chunk\n" +
		`data: {"message_id":"m-1","type":"text","content":"Hello","index":0}` + "\n\n" +
		"event: chat.chunk\n" +
		`data: {"message_id":"m-1","type":"text","content":" world","index":1}` + "\n\n" +
		"event: chat.completion\n" +
		`data: {"message_id":"m-1","conversation_id":"c-1","input_id":"in-1",` +
		`"tokens_used":{"prompt_tokens":12,"completion_tokens":30,"total_tokens":42},"references":[]}` + "\n\n"

	server := httptest.NewServer(sseHandler(t, raw))
	defer server.Close()

	var (
		started  *StartData
		statuses []StatusData
		chunks   []string
	)
	client := NewClient(server.URL)
	completion, err := client.ChatStream(context.Background(), ChatParams{Query: "hi", Model: "qwen3:8b"}, StreamCallbacks{
		OnStart:        func(d StartData) { started = &d },
		OnStatusChange: func(d StatusData) { statuses = append(statuses, d) },
		OnChunk:        func(d ChunkData) { chunks = append(chunks, d.Content) },
	})
	require.NoError(t, err)
	require.NotNil(t, completion)
	assert.Equal(t, TokenUsage{PromptTokens: 12, CompletionTokens: 30, TotalTokens: 42}, completion.TokensUsed)

	require.NotNil(t, started)
	assert.Equal(t, "c-1", started.ConversationID)
	assert.Equal(t, "Deadlines", started.Title)
	require.Len(t, statuses, 1)
	assert.Equal(t, "retrieval", statuses[0].Step)
	assert.Equal(t, []string{"Hello", " world"}, chunks)
}

// Events that straddle packet boundaries must reassemble: the partial
// trailing frame is carried across reads until its terminator arrives.
func TestChatStreamSplitFrames(t *testing.T) {
	frame := "event: chat.chunk\n" +
		`data: {"message_id":"m-1","type":"text","content":"split across packets","index":0}` + "\n\n"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		// Deliver the frame in three fragments with flushes between.
		for _, part := range []string{frame[:10], frame[10:30], frame[30:]} {
			w.Write([]byte(part))
			flusher.Flush()
		}
	}))
	defer server.Close()

	var chunks []string
	client := NewClient(server.URL)
	_, err := client.ChatStream(context.Background(), ChatParams{Query: "hi"}, StreamCallbacks{
		OnChunk: func(d ChunkData) { chunks = append(chunks, d.Content) },
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"split across packets"}, chunks)
}

func TestChatStreamUnknownEventIsFatal(t *testing.T) {
	raw := "event: chat.chunk\n" +
		`data: {"message_id":"m-1","type":"text","content":"ok","index":0}` + "\n\n" +
		"event: chat.telemetry\n" +
		`data: {"anything":true}` + "\n\n"

	server := httptest.NewServer(sseHandler(t, raw))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.ChatStream(context.Background(), ChatParams{Query: "hi"}, StreamCallbacks{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownEvent)
	assert.Contains(t, err.Error(), "chat.telemetry")
}

// A malformed payload inside a known event type is skipped; later
// events on the same stream still arrive.
func TestChatStreamMalformedPayloadSkipped(t *testing.T) {
	raw := "event: chat.chunk\n" +
		"data: {not valid json\n\n" +
		"event: chat.chunk\n" +
		`data: {"message_id":"m-1","type":"text","content":"recovered","index":1}` + "\n\n"

	server := httptest.NewServer(sseHandler(t, raw))
	defer server.Close()

	var chunks []string
	client := NewClient(server.URL)
	_, err := client.ChatStream(context.Background(), ChatParams{Query: "hi"}, StreamCallbacks{
		OnChunk: func(d ChunkData) { chunks = append(chunks, d.Content) },
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"recovered"}, chunks)
}

func TestChatStreamServerError(t *testing.T) {
	raw := "event: chat.error\n" +
		`data: {"message_id":"m-1","code":"MODEL_OVERLOADED","message":"try again later"}` + "\n\n"

	server := httptest.NewServer(sseHandler(t, raw))
	defer server.Close()

	var errMsg string
	client := NewClient(server.URL)
	completion, err := client.ChatStream(context.Background(), ChatParams{Query: "hi"}, StreamCallbacks{
		OnError: func(msg string) { errMsg = msg },
	})
	require.NoError(t, err)
	assert.Nil(t, completion)
	assert.Equal(t, "MODEL_OVERLOADED - try again later", errMsg)
}

func TestChatStreamHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.ChatStream(context.Background(), ChatParams{Query: ""}, StreamCallbacks{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
}

func TestChatStreamCompletionReferences(t *testing.T) {
	raw := "event: chat.completion\n" +
		`data: {"message_id":"m-1","conversation_id":"c-1","input_id":"in-1","tokens_used":{"total_tokens":7},` +
		`"references":[{"id":"ref-1","source_type":"knowledge_base","title":"Handbook",` +
		`"location":{"parent_id":"p-1","file_path":"docs/handbook.pdf"},"matched_chunks":[]}]}` + "\n\n"

	server := httptest.NewServer(sseHandler(t, raw))
	defer server.Close()

	client := NewClient(server.URL)
	completion, err := client.ChatStream(context.Background(), ChatParams{Query: "hi"}, StreamCallbacks{})
	require.NoError(t, err)
	require.Len(t, completion.References, 1)

	ref := completion.References[0]
	assert.Equal(t, model.SourceKnowledgeBase, ref.SourceType)
	loc, ok := ref.Location.(model.KnowledgeBaseLocation)
	require.True(t, ok)
	assert.Equal(t, "p-1", loc.ParentID)
}

func TestNonStreamingChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var params ChatParams
		require.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		assert.False(t, params.Stream)
		json.NewEncoder(w).Encode(map[string]any{
			"message_id": "m-2", "conversation_id": "c-2",
			"content": "Full answer.", "tokens_used": map[string]int{"total_tokens": 9}, "references": []any{},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	resp, err := client.Chat(context.Background(), ChatParams{Query: "hi", Model: "qwen3:8b"})
	require.NoError(t, err)
	assert.Equal(t, "Full answer.", resp.Content)
	assert.Equal(t, 9, resp.TokensUsed.TotalTokens)
	assert.False(t, strings.Contains(resp.Content, "event:"))
}

// Empty chunk payloads must never reach the callback; only fragments
// carrying answer text are delivered.
func TestChatStreamEmptyChunkNotDelivered(t *testing.T) {
	raw := "event: chat.chunk\n" +
		`data: {"message_id":"m-1","type":"text","content":"","index":0}` + "\n\n" +
		"event: chat.chunk\n" +
		`data: {"message_id":"m-1","type":"text","content":"text","index":1}` + "\n\n"

	server := httptest.NewServer(sseHandler(t, raw))
	defer server.Close()

	var chunks []string
	client := NewClient(server.URL)
	_, err := client.ChatStream(context.Background(), ChatParams{Query: "hi"}, StreamCallbacks{
		OnChunk: func(d ChunkData) { chunks = append(chunks, d.Content) },
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"text"}, chunks)
}

// The request body always carries tool_choice and sends the retrieval
// toggle as a boolean.
func TestChatStreamRequestDefaults(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "text/event-stream")
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.ChatStream(context.Background(), ChatParams{Query: "hi", VDB: true}, StreamCallbacks{})
	require.NoError(t, err)

	assert.Equal(t, DefaultToolChoice, body["tool_choice"])
	assert.Equal(t, true, body["VDB"])
}
