// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "dark", cfg.UI.Theme)
	assert.InDelta(t, 0.7, cfg.Chat.Temperature, 0.001)
}

func TestLoadFromPathTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
version = "0.3.0"

[backend]
base_url = "https://assistant.example.com"
user_id = "u-7"

[chat]
default_model = "llama3.1:70b"
temperature = 0.2

[ui]
theme = "nord"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "https://assistant.example.com", cfg.Backend.BaseURL)
	assert.Equal(t, "u-7", cfg.Backend.UserID)
	assert.Equal(t, "llama3.1:70b", cfg.Chat.DefaultModel)
	assert.Equal(t, "nord", cfg.UI.Theme)
	// Omitted fields pick up defaults, including boolean toggles.
	assert.True(t, cfg.Chat.VDB)
}

func TestLoadFromPathJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{"backend": {"base_url": "http://localhost:9000"}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000", cfg.Backend.BaseURL)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Backend.BaseURL = "not a url"
	cfg.Chat.Temperature = 3.5

	err := cfg.Validate()
	require.Error(t, err)
	verrs, ok := err.(ValidateErrors)
	require.True(t, ok)
	assert.Len(t, verrs, 2)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PARLEY_BACKEND_URL", "http://override:8000")
	t.Setenv("PARLEY_MODEL", "mistral:7b")
	t.Setenv("PARLEY_TEMPERATURE", "1.3")

	cfg := Default()
	cfg.ApplyEnvOverrides()
	assert.Equal(t, "http://override:8000", cfg.Backend.BaseURL)
	assert.Equal(t, "mistral:7b", cfg.Chat.DefaultModel)
	assert.InDelta(t, 1.3, cfg.Chat.Temperature, 0.001)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := Default()
	cfg.UI.Theme = "dracula"
	require.NoError(t, SaveTOML(cfg, path))

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "dracula", loaded.UI.Theme)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, SaveTOML(Default(), path))

	var mu sync.Mutex
	var got *Config
	w, err := Watch(path, func(cfg *Config) {
		mu.Lock()
		got = cfg
		mu.Unlock()
	})
	require.NoError(t, err)
	defer w.Close()

	updated := Default()
	updated.UI.Theme = "monokai"
	require.NoError(t, SaveTOML(updated, path))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got != nil && got.UI.Theme == "monokai"
	}, 5*time.Second, 50*time.Millisecond)
}

func TestWatcherIgnoresInvalidReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, SaveTOML(Default(), path))

	calls := make(chan *Config, 10)
	w, err := Watch(path, func(cfg *Config) { calls <- cfg })
	require.NoError(t, err)
	defer w.Close()

	// A broken file must not reach the callback.
	require.NoError(t, os.WriteFile(path, []byte("not [valid toml"), 0o600))

	select {
	case cfg := <-calls:
		t.Fatalf("unexpected reload delivered: %+v", cfg)
	case <-time.After(600 * time.Millisecond):
	}
}
