// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api implements the HTTP client for the assistant backend.
//
// The backend exposes plain JSON endpoints for conversations, models,
// system prompts, uploads, smart search, and reference retrieval, plus
// one streaming endpoint: POST /api/chat, which answers either with a
// single JSON object or with a Server-Sent-Events stream of typed
// chat events (chat.start, chat.status, chat.chunk, chat.completion,
// chat.error).
//
// The package performs no retries and no caching; both are the
// caller's concern. All methods take a context and return explicit
// errors; HTTP failures carry the status code and body text in an
// *APIError.
package api
