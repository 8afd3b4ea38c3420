// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists local client state: small UI preferences
// that survive restarts, and a sqlite cache of conversation history
// for instant startup rendering.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/morganforge/parley/internal/util"
)

// Preference namespaces within the prefs file. Chat settings and
// appearance settings are stored under separate keys so either can be
// reset without touching the other.
const (
	NamespaceChat  = "chat-storage"
	NamespaceTheme = "theme-storage"
)

// ChatPrefs are the chat settings restored on startup.
type ChatPrefs struct {
	SelectedModel  string  `json:"selected_model"`
	SystemPromptID string  `json:"system_prompt_id"`
	Temperature    float64 `json:"temperature"`
}

// ThemePrefs are the appearance settings restored on startup. They
// are applied before the first frame so the UI never flashes the
// default theme.
type ThemePrefs struct {
	Theme string `json:"theme"`
}

// =============================================================================
// PREFS FILE
// =============================================================================

// Prefs is a namespaced JSON key-value file for small persisted
// preferences. Writes are atomic; a crash never leaves a torn file.
type Prefs struct {
	mu   sync.Mutex
	path string
	data map[string]json.RawMessage
}

// OpenPrefs loads the prefs file at path, creating an empty set when
// the file does not exist yet.
func OpenPrefs(path string) (*Prefs, error) {
	p := &Prefs{
		path: path,
		data: make(map[string]json.RawMessage),
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read prefs: %w", err)
	}
	if err := json.Unmarshal(raw, &p.data); err != nil {
		return nil, fmt.Errorf("failed to parse prefs: %w", err)
	}
	return p, nil
}

// DefaultPrefsPath returns ~/.parley/prefs.json.
func DefaultPrefsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".parley", "prefs.json"), nil
}

// Get decodes the value stored under namespace into out. It reports
// false when the namespace has no stored value.
func (p *Prefs) Get(namespace string, out any) (bool, error) {
	p.mu.Lock()
	raw, ok := p.data[namespace]
	p.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("failed to decode prefs namespace %q: %w", namespace, err)
	}
	return true, nil
}

// Set stores a value under namespace and writes the file.
func (p *Prefs) Set(namespace string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode prefs value: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.data[namespace] = raw
	return p.flushLocked()
}

// Delete removes a namespace and writes the file.
func (p *Prefs) Delete(namespace string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.data, namespace)
	return p.flushLocked()
}

// flushLocked writes the whole prefs map atomically. Caller holds mu.
func (p *Prefs) flushLocked() error {
	raw, err := json.MarshalIndent(p.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode prefs: %w", err)
	}
	if err := util.AtomicWriteFile(p.path, raw, 0600); err != nil {
		return fmt.Errorf("failed to write prefs: %w", err)
	}
	return nil
}
