// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store holds the client-side application state: the
// conversation list, the active conversation's messages, the system
// prompt and model catalogs, and the user-visible error feed.
//
// Stores are plain injectable containers, one set per application
// root, guarded by mutexes. UI code reads snapshots and mutates
// through the exposed actions; nothing in this package touches the
// network except through the api.Client it was handed.
package store
