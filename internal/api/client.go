// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/morganforge/parley/internal/model"
)

// Configuration constants for the backend client.
const (
	// DefaultTimeout is the timeout for unary API requests.
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	// Limits memory use when the backend misbehaves.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB
)

var (
	// sharedHTTPClient is used for unary requests. Connection pooling
	// reduces TCP handshake overhead across store refreshes.
	sharedHTTPClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
		Timeout: DefaultTimeout,
	}

	// sharedStreamingClient is used for SSE requests. No client
	// timeout; lifetime is controlled by the request context.
	sharedStreamingClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
)

// Error variables for common backend errors.
var (
	// ErrNoBaseURL indicates the client has no backend URL configured.
	ErrNoBaseURL = errors.New("backend base URL not configured")

	// ErrUnknownEvent indicates the SSE stream delivered an event type
	// outside the chat.* protocol. Treated as fatal: silently dropping
	// an unrecognized event could lose model output.
	ErrUnknownEvent = errors.New("unknown stream event type")
)

// APIError represents a non-2xx response from the backend. It carries
// the HTTP status and the raw body text so callers can surface both.
type APIError struct {
	Status int
	Body   string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d - %s", e.Status, e.Body)
}

// Is allows APIError values with the same status to match.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.Status == t.Status
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the assistant backend. A zero user id is valid; the
// backend then scopes requests to the anonymous user.
type Client struct {
	baseURL    string
	userID     string
	httpClient *http.Client
	streamer   *http.Client
	userAgent  string
}

// NewClient creates a backend client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: sharedHTTPClient,
		streamer:   sharedStreamingClient,
		userAgent:  "parley/0.3.0",
	}
}

// WithUserID sets the user id sent on user-scoped endpoints.
func (c *Client) WithUserID(id string) *Client {
	c.userID = id
	return c
}

// WithHTTPClient overrides both HTTP clients. Used by tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	c.streamer = hc
	return c
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// logRequest logs an API request. Headers and bodies are never logged;
// uploads and queries may contain user content.
func (c *Client) logRequest(req *http.Request) {
	log.Printf("API request: %s %s", req.Method, req.URL.Path)
}

// logResponse logs status and duration for an API response.
func (c *Client) logResponse(resp *http.Response, duration time.Duration) {
	log.Printf("API response: %d %s (%v)", resp.StatusCode, resp.Status, duration)
}

// readResponse reads a response body with the size limit applied.
func readResponse(resp *http.Response) ([]byte, error) {
	limited := io.LimitReader(resp.Body, MaxResponseSize)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) == MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// doJSON performs a request with an optional JSON body and decodes a
// 2xx JSON response into out (when out is non-nil).
func (c *Client) doJSON(ctx context.Context, method, requestURL string, in, out any) error {
	if c.baseURL == "" {
		return ErrNoBaseURL
	}

	var bodyReader io.Reader
	if in != nil {
		bodyBytes, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", c.userAgent)

	c.logRequest(req)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	c.logResponse(resp, time.Since(start))

	body, err := readResponse(resp)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

// =============================================================================
// MODELS
// =============================================================================

// modelsResponse is the wire shape of GET /api/models.
type modelsResponse struct {
	Models []string `json:"models"`
}

// ListModels retrieves the models the backend can serve.
func (c *Client) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	var resp modelsResponse
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/api/models", nil, &resp); err != nil {
		return nil, err
	}

	models := make([]model.ModelInfo, 0, len(resp.Models))
	for _, name := range resp.Models {
		models = append(models, model.ModelInfo{Name: name})
	}
	return models, nil
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// ConversationsPage is one page of the conversation listing.
type ConversationsPage struct {
	Count      int                  `json:"count"`
	Page       int                  `json:"page"`
	Limit      int                  `json:"limit"`
	TotalPages int                  `json:"total_pages"`
	Items      []model.Conversation `json:"items"`
}

// ListConversations fetches one page of conversation history.
func (c *Client) ListConversations(ctx context.Context, page, limit int) (*ConversationsPage, error) {
	q := url.Values{}
	q.Set("user_id", c.userID)
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	var resp ConversationsPage
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/api/conversations?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// conversationDetail is the wire shape of GET /api/conversations/{id}.
type conversationDetail struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Messages []model.Message `json:"messages"`
}

// ConversationMessages fetches the full message history of a conversation.
func (c *Client) ConversationMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	var resp conversationDetail
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/api/conversations/"+url.PathEscape(conversationID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// RenameConversation updates a conversation's title on the backend.
func (c *Client) RenameConversation(ctx context.Context, conversationID, title string) error {
	body := map[string]string{"title": title}
	return c.doJSON(ctx, http.MethodPatch, c.baseURL+"/api/conversations/"+url.PathEscape(conversationID), body, nil)
}

// DeleteConversation removes a conversation on the backend.
func (c *Client) DeleteConversation(ctx context.Context, conversationID string) error {
	return c.doJSON(ctx, http.MethodDelete, c.baseURL+"/api/conversations/"+url.PathEscape(conversationID), nil, nil)
}

// =============================================================================
// SYSTEM PROMPTS
// =============================================================================

// promptsResponse is the wire shape of GET /api/systemprompt.
type promptsResponse struct {
	Count int            `json:"count"`
	Items []model.Prompt `json:"items"`
}

// ListPrompts retrieves the system prompts available to the user.
func (c *Client) ListPrompts(ctx context.Context) ([]model.Prompt, error) {
	q := url.Values{}
	q.Set("user_id", c.userID)

	var resp promptsResponse
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/api/systemprompt?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// CreatePrompt creates a user system prompt and returns the stored record.
func (c *Client) CreatePrompt(ctx context.Context, title, content string) (*model.Prompt, error) {
	q := url.Values{}
	q.Set("user_id", c.userID)

	body := map[string]string{"title": title, "content": content}
	var resp model.Prompt
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/api/systemprompt/user?"+q.Encode(), body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdatePrompt edits an existing user system prompt.
func (c *Client) UpdatePrompt(ctx context.Context, promptID, title, content string) (*model.Prompt, error) {
	body := map[string]string{"title": title, "content": content}
	var resp model.Prompt
	if err := c.doJSON(ctx, http.MethodPatch, c.baseURL+"/api/systemprompt/user/"+url.PathEscape(promptID), body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeletePrompt removes a user system prompt.
func (c *Client) DeletePrompt(ctx context.Context, promptID string) error {
	return c.doJSON(ctx, http.MethodDelete, c.baseURL+"/api/systemprompt/user/"+url.PathEscape(promptID), nil, nil)
}

// =============================================================================
// FILE UPLOAD
// =============================================================================

// UploadedFile describes one stored file from POST /api/upload.
type UploadedFile struct {
	FileID   string `json:"file_id"`
	Filename string `json:"filename"`
	FilePath string `json:"file_path"`
	Size     int64  `json:"size"`
}

// UploadResult is the response of POST /api/upload.
type UploadResult struct {
	Count int            `json:"count"`
	Files []UploadedFile `json:"files"`
}

// UploadFiles uploads local files as one multipart request. The
// returned file paths are what the chat endpoint expects in
// file_paths when answering over uploaded documents.
func (c *Client) UploadFiles(ctx context.Context, paths []string) (*UploadResult, error) {
	if c.baseURL == "" {
		return nil, ErrNoBaseURL
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		part, err := writer.CreateFormFile("files", filepath.Base(path))
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create form file: %w", err)
		}
		if _, err := io.Copy(part, f); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		f.Close()
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize upload body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("User-Agent", c.userAgent)

	c.logRequest(req)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()
	c.logResponse(resp, time.Since(start))

	body, err := readResponse(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	var result UploadResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse upload response: %w", err)
	}
	return &result, nil
}

// =============================================================================
// SMART SEARCH
// =============================================================================

// SearchHit is one ranked result from the search engine. Formatted
// holds the document fields with match highlighting markers applied;
// the key set varies by schema group.
type SearchHit struct {
	Formatted map[string]any `json:"_formatted"`
}

// SearchResponse is the wire shape of GET /api/search.
type SearchResponse struct {
	Hits   []SearchHit `json:"hits"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// SmartSearch runs a smart-search query and returns ranked hits.
func (c *Client) SmartSearch(ctx context.Context, query string) (*SearchResponse, error) {
	q := url.Values{}
	q.Set("query", query)

	var resp SearchResponse
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/api/search?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// =============================================================================
// EXTRACTION SCHEMA
// =============================================================================

// SchemaField is a server-owned smart-search schema field.
type SchemaField struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
	GroupID     string `json:"group_id"`
	GroupName   string `json:"group_name"`
}

// SchemaGroup is a server-owned smart-search schema group.
type SchemaGroup struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Fields      []SchemaField `json:"field_schemas"`
}

// schemaResponse is the wire shape of GET /extraction/schema.
type schemaResponse struct {
	Schemas []SchemaGroup `json:"schemas"`
}

// SchemaFieldCreate is one field of a schema creation payload. Ids
// are assigned server-side, so none are transmitted.
type SchemaFieldCreate struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

// SchemaCreateRequest is the payload of POST /extraction/schema/create/new.
type SchemaCreateRequest struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Fields      []SchemaFieldCreate `json:"fields"`
}

// SearchSchema fetches the existing smart-search schema groups.
func (c *Client) SearchSchema(ctx context.Context) ([]SchemaGroup, error) {
	var resp schemaResponse
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/extraction/schema", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Schemas, nil
}

// CreateSearchSchema persists one schema group with its fields.
func (c *Client) CreateSearchSchema(ctx context.Context, req SchemaCreateRequest) error {
	return c.doJSON(ctx, http.MethodPost, c.baseURL+"/extraction/schema/create/new", req, nil)
}

// =============================================================================
// REFERENCE RETRIEVAL
// =============================================================================

// Chunk is a parent chunk of the knowledge base.
type Chunk struct {
	ID       string `json:"id"`
	Content  string `json:"content"`
	DocID    string `json:"doc_id"`
	FileName string `json:"file_name"`
	FilePath string `json:"file_path"`
}

// ParentChunk fetches a knowledge-base parent chunk by id.
func (c *Client) ParentChunk(ctx context.Context, chunkID string) (*Chunk, error) {
	var resp Chunk
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/api/vectors/parents/"+url.PathEscape(chunkID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DocumentFile fetches a stored document as a raw blob. Returns the
// bytes and the content type reported by the backend (defaulting to
// application/pdf, the dominant upload format).
func (c *Client) DocumentFile(ctx context.Context, filename string) ([]byte, string, error) {
	if c.baseURL == "" {
		return nil, "", ErrNoBaseURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/documents/files/"+url.PathEscape(filename), nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	c.logRequest(req)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	c.logResponse(resp, time.Since(start))

	body, err := readResponse(resp)
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/pdf"
	}
	return body, contentType, nil
}
