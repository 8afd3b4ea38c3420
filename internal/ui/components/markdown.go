// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"sync"

	"github.com/charmbracelet/glamour"
)

// MarkdownRenderer renders assistant answers as terminal markdown.
// Glamour renderers are expensive to build, so one instance is reused
// and rebuilt only when the wrap width changes.
type MarkdownRenderer struct {
	mu       sync.Mutex
	renderer *glamour.TermRenderer
	width    int
	dark     bool
}

// NewMarkdownRenderer creates a renderer for the given background.
func NewMarkdownRenderer(dark bool) *MarkdownRenderer {
	return &MarkdownRenderer{dark: dark, width: 80}
}

// SetWidth updates the wrap width; the renderer rebuilds lazily.
func (r *MarkdownRenderer) SetWidth(width int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if width != r.width {
		r.width = width
		r.renderer = nil
	}
}

// Render converts markdown to styled terminal output. On renderer
// failure the raw text is returned so an answer is never lost to a
// styling problem.
func (r *MarkdownRenderer) Render(markdown string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.renderer == nil {
		style := glamour.WithStandardStyle("light")
		if r.dark {
			style = glamour.WithStandardStyle("dark")
		}
		renderer, err := glamour.NewTermRenderer(
			style,
			glamour.WithWordWrap(r.width),
			glamour.WithEmoji(),
		)
		if err != nil {
			return markdown
		}
		r.renderer = renderer
	}

	out, err := r.renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return out
}
