// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/morganforge/parley/internal/model"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS conversations (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	seq             INTEGER NOT NULL,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	refs            TEXT NOT NULL DEFAULT '[]',
	FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation
	ON messages(conversation_id, seq);
`

// =============================================================================
// HISTORY CACHE
// =============================================================================

// History is a local sqlite cache of conversation history. The
// sidebar renders from it immediately on startup while the backend
// listing refreshes in the background; it is a cache, never the
// source of truth.
type History struct {
	db *sql.DB
}

// OpenHistory opens (and migrates) the history database at path.
func OpenHistory(path string) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate history schema: %w", err)
	}
	return &History{db: db}, nil
}

// DefaultHistoryPath returns ~/.parley/history.db.
func DefaultHistoryPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".parley", "history.db"), nil
}

// Close closes the database.
func (h *History) Close() error {
	return h.db.Close()
}

// UpsertConversations writes conversation records, replacing titles
// of existing ones.
func (h *History) UpsertConversations(ctx context.Context, convs []model.Conversation) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO conversations (id, title, created_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET title = excluded.title`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, conv := range convs {
		createdAt := conv.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx, conv.ID, conv.Title, createdAt); err != nil {
			return fmt.Errorf("failed to upsert conversation %s: %w", conv.ID, err)
		}
	}
	return tx.Commit()
}

// Conversations returns all cached conversations, newest first.
func (h *History) Conversations(ctx context.Context) ([]model.Conversation, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT id, title, created_at FROM conversations ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	var out []model.Conversation
	for rows.Next() {
		var conv model.Conversation
		if err := rows.Scan(&conv.ID, &conv.Title, &conv.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		out = append(out, conv)
	}
	return out, rows.Err()
}

// ReplaceMessages swaps the cached message list of one conversation.
func (h *History) ReplaceMessages(ctx context.Context, conversationID string, messages []model.Message) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM messages WHERE conversation_id = ?`, conversationID); err != nil {
		return fmt.Errorf("failed to clear cached messages: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (id, conversation_id, seq, role, content, refs)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, msg := range messages {
		refs, err := json.Marshal(msg.References)
		if err != nil {
			return fmt.Errorf("failed to encode references: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, msg.ID, conversationID, i, string(msg.Role), msg.Content, string(refs)); err != nil {
			return fmt.Errorf("failed to cache message %s: %w", msg.ID, err)
		}
	}
	return tx.Commit()
}

// Messages returns the cached messages of a conversation in order.
func (h *History) Messages(ctx context.Context, conversationID string) ([]model.Message, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT id, role, content, refs FROM messages
		WHERE conversation_id = ? ORDER BY seq`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var (
			msg  model.Message
			role string
			refs string
		)
		if err := rows.Scan(&msg.ID, &role, &msg.Content, &refs); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.ConversationID = conversationID
		msg.Role = model.Role(role)
		if err := json.Unmarshal([]byte(refs), &msg.References); err != nil {
			return nil, fmt.Errorf("failed to decode references: %w", err)
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// DeleteConversation drops a conversation and its messages from the
// cache.
func (h *History) DeleteConversation(ctx context.Context, conversationID string) error {
	if _, err := h.db.ExecContext(ctx,
		`DELETE FROM conversations WHERE id = ?`, conversationID); err != nil {
		return fmt.Errorf("failed to delete cached conversation: %w", err)
	}
	return nil
}
