// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/morganforge/parley/internal/model"
)

// Stream event types emitted by POST /api/chat.
const (
	EventChatStart      = "chat.start"
	EventChatStatus     = "chat.status"
	EventChatChunk      = "chat.chunk"
	EventChatCompletion = "chat.completion"
	EventChatError      = "chat.error"
)

// ChatParams is the request payload of POST /api/chat.
type ChatParams struct {
	// ConversationID is nil for the first turn of a new conversation.
	ConversationID *string  `json:"conversation_id"`
	Query          string   `json:"query"`
	Model          string   `json:"model"`
	File           bool     `json:"file"`
	FilePaths      []string `json:"file_paths"`
	// VDB toggles knowledge-base retrieval for the turn.
	VDB            bool    `json:"VDB"`
	SystemPromptID string  `json:"system_prompt_id,omitempty"`
	Temperature    float64 `json:"temperature"`
	Stream         bool    `json:"stream"`
	ToolChoice     string  `json:"tool_choice"`
	DBConnect      bool    `json:"db_connect"`
}

// DefaultToolChoice is sent whenever the caller leaves ToolChoice
// unset.
const DefaultToolChoice = "auto"

// StartData is the payload of chat.start: the server has accepted the
// turn and assigned durable identifiers.
type StartData struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
	Title          string `json:"title"`
	InputID        string `json:"input_id"`
	ResponseID     string `json:"response_id"`
}

// StatusData is the payload of chat.status: a pipeline step changed state.
type StatusData struct {
	MessageID string `json:"message_id"`
	Step      string `json:"step"`
	Status    string `json:"status"`
}

// ChunkData is the payload of chat.chunk: one increment of answer text.
type ChunkData struct {
	MessageID string `json:"message_id"`
	Type      string `json:"type"`
	Content   string `json:"content"`
	Index     int    `json:"index"`
}

// TokenUsage is the token accounting object attached to completed
// turns.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionData is the payload of chat.completion: the turn finished
// and the full answer with its source references is available.
type CompletionData struct {
	MessageID      string            `json:"message_id"`
	ConversationID string            `json:"conversation_id"`
	InputID        string            `json:"input_id"`
	TokensUsed     TokenUsage        `json:"tokens_used"`
	References     []model.Reference `json:"references"`
}

// ErrorData is the payload of chat.error: the turn failed server-side.
type ErrorData struct {
	MessageID string `json:"message_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// StreamCallbacks receives typed stream events as they arrive. Nil
// callbacks are skipped. OnError receives the formatted server error;
// the stream keeps running afterwards in case the server recovers.
type StreamCallbacks struct {
	OnStart        func(StartData)
	OnStatusChange func(StatusData)
	OnChunk        func(ChunkData)
	OnComplete     func(CompletionData)
	OnError        func(message string)
}

// ChatResponse is the non-streaming answer shape of POST /api/chat.
type ChatResponse struct {
	MessageID      string            `json:"message_id"`
	ConversationID string            `json:"conversation_id"`
	Content        string            `json:"content"`
	TokensUsed     TokenUsage        `json:"tokens_used"`
	References     []model.Reference `json:"references"`
}

// =============================================================================
// STREAMING CHAT
// =============================================================================

// ChatStream sends a chat turn and consumes the SSE response, invoking
// callbacks per event. It returns the completion payload when the
// stream ends cleanly, or an error for transport failures, HTTP
// failures, and protocol violations (unknown event types).
//
// Malformed JSON inside a known event is logged and skipped: one bad
// frame should not kill a stream that is otherwise delivering answer
// text.
func (c *Client) ChatStream(ctx context.Context, params ChatParams, cb StreamCallbacks) (*CompletionData, error) {
	if c.baseURL == "" {
		return nil, ErrNoBaseURL
	}
	params.Stream = true
	if params.ToolChoice == "" {
		params.ToolChoice = DefaultToolChoice
	}

	bodyBytes, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("User-Agent", c.userAgent)

	c.logRequest(req)
	start := time.Now()
	resp, err := c.streamer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()
	c.logResponse(resp, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, readErr := readResponse(resp)
		if readErr != nil {
			return nil, readErr
		}
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	return consumeEvents(resp.Body, cb)
}

// consumeEvents reads SSE frames from r until EOF. Frames are
// delimited by a blank line; a trailing partial frame is retained
// across reads so events split by packet boundaries reassemble.
func consumeEvents(r io.Reader, cb StreamCallbacks) (*CompletionData, error) {
	var (
		buffer     string
		completion *CompletionData
		readBuf    = make([]byte, 4096)
	)

	for {
		n, err := r.Read(readBuf)
		if n > 0 {
			buffer += string(readBuf[:n])

			frames := strings.Split(buffer, "\n\n")
			// The last element is incomplete until its blank-line
			// terminator arrives.
			buffer = frames[len(frames)-1]
			for _, frame := range frames[:len(frames)-1] {
				completionData, perr := dispatchFrame(frame, cb)
				if perr != nil {
					return nil, perr
				}
				if completionData != nil {
					completion = completionData
				}
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("stream read failed: %w", err)
		}
	}

	return completion, nil
}

// dispatchFrame parses one SSE frame and invokes the matching
// callback. It returns the completion payload for chat.completion
// frames, and an error only for unknown event types.
func dispatchFrame(frame string, cb StreamCallbacks) (*CompletionData, error) {
	var eventType, data string
	for _, line := range strings.Split(frame, "\n") {
		switch {
		case strings.HasPrefix(line, "event: "):
			eventType = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
	if eventType == "" && data == "" {
		return nil, nil
	}

	switch eventType {
	case EventChatStart:
		var payload StartData
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			log.Printf("Skipping malformed %s payload: %v", eventType, err)
			return nil, nil
		}
		if cb.OnStart != nil {
			cb.OnStart(payload)
		}

	case EventChatStatus:
		var payload StatusData
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			log.Printf("Skipping malformed %s payload: %v", eventType, err)
			return nil, nil
		}
		if cb.OnStatusChange != nil {
			cb.OnStatusChange(payload)
		}

	case EventChatChunk:
		var payload ChunkData
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			log.Printf("Skipping malformed %s payload: %v", eventType, err)
			return nil, nil
		}
		// Empty fragments carry no answer text and are not delivered.
		if cb.OnChunk != nil && payload.Content != "" {
			cb.OnChunk(payload)
		}

	case EventChatCompletion:
		var payload CompletionData
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			log.Printf("Skipping malformed %s payload: %v", eventType, err)
			return nil, nil
		}
		if cb.OnComplete != nil {
			cb.OnComplete(payload)
		}
		return &payload, nil

	case EventChatError:
		var payload ErrorData
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			log.Printf("Skipping malformed %s payload: %v", eventType, err)
			return nil, nil
		}
		if cb.OnError != nil {
			cb.OnError(fmt.Sprintf("%s - %s", payload.Code, payload.Message))
		}

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, eventType)
	}

	return nil, nil
}

// =============================================================================
// NON-STREAMING CHAT
// =============================================================================

// Chat sends a chat turn with streaming disabled and returns the
// complete answer as a single payload.
func (c *Client) Chat(ctx context.Context, params ChatParams) (*ChatResponse, error) {
	params.Stream = false
	if params.ToolChoice == "" {
		params.ToolChoice = DefaultToolChoice
	}
	var resp ChatResponse
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/api/chat", params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
