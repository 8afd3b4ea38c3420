// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures shared between the API
// client, the state containers, and the UI: conversations, messages,
// and source references.
//
// Identity rules:
//   - Conversations and user messages are created locally with
//     client-generated UUIDs so the UI can update optimistically.
//   - The backend issues the authoritative ids; local ids are
//     reconciled when the first streaming event arrives.
package model
