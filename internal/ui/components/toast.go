// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides the reusable view pieces of the parley
// TUI: toasts, the status bar, markdown rendering, and reference
// display.
package components

import (
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/morganforge/parley/internal/ui/styles"
)

// ToastKind represents the type of toast notification.
type ToastKind int

const (
	// ToastStatus is an informational toast
	ToastStatus ToastKind = iota
	// ToastWarning is a warning toast
	ToastWarning
	// ToastError is an error toast
	ToastError
)

// Auto-dismiss durations. Errors stay longest so they can be read.
const (
	StatusToastDuration  = 4 * time.Second
	WarningToastDuration = 6 * time.Second
	ErrorToastDuration   = 8 * time.Second
)

// Toast is one non-blocking notification. Toasts render in a corner
// and auto-dismiss; they never steal focus from the input.
type Toast struct {
	ID        int
	Message   string
	Kind      ToastKind
	CreatedAt time.Time
	Duration  time.Duration
}

// Expired reports whether the toast should be dismissed.
func (t *Toast) Expired() bool {
	return time.Since(t.CreatedAt) >= t.Duration
}

// ToastTickMsg drives toast expiry from the bubbletea loop.
type ToastTickMsg struct{}

// =============================================================================
// TOAST MANAGER
// =============================================================================

// ToastManager owns the active toast list. It is safe for use from
// the send goroutine and the UI loop concurrently.
type ToastManager struct {
	mu     sync.Mutex
	toasts []Toast
	nextID int
}

// NewToastManager creates an empty manager.
func NewToastManager() *ToastManager {
	return &ToastManager{}
}

// Push adds a toast of the given kind.
func (m *ToastManager) Push(kind ToastKind, message string) {
	if message == "" {
		return
	}
	duration := StatusToastDuration
	switch kind {
	case ToastWarning:
		duration = WarningToastDuration
	case ToastError:
		duration = ErrorToastDuration
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.toasts = append(m.toasts, Toast{
		ID:        m.nextID,
		Message:   message,
		Kind:      kind,
		CreatedAt: time.Now(),
		Duration:  duration,
	})
}

// Error pushes an error toast.
func (m *ToastManager) Error(message string) { m.Push(ToastError, message) }

// Status pushes an informational toast.
func (m *ToastManager) Status(message string) { m.Push(ToastStatus, message) }

// Dismiss removes the oldest toast, if any.
func (m *ToastManager) Dismiss() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.toasts) > 0 {
		m.toasts = m.toasts[1:]
	}
}

// Prune drops expired toasts and reports whether any remain.
func (m *ToastManager) Prune() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.toasts[:0]
	for _, t := range m.toasts {
		if !t.Expired() {
			kept = append(kept, t)
		}
	}
	m.toasts = kept
	return len(m.toasts) > 0
}

// Active returns a snapshot of the live toasts.
func (m *ToastManager) Active() []Toast {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Toast, len(m.toasts))
	copy(out, m.toasts)
	return out
}

// Tick schedules the next expiry check while toasts are visible.
func (m *ToastManager) Tick() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return ToastTickMsg{}
	})
}

// Render draws the active toasts, newest last.
func (m *ToastManager) Render(theme *styles.Theme) string {
	toasts := m.Active()
	if len(toasts) == 0 {
		return ""
	}

	var b strings.Builder
	for i, t := range toasts {
		if i > 0 {
			b.WriteString("\n")
		}
		switch t.Kind {
		case ToastError:
			b.WriteString(theme.ToastError.Render("✗ " + t.Message))
		case ToastWarning:
			b.WriteString(theme.ToastWarning.Render("⚠ " + t.Message))
		default:
			b.WriteString(theme.ToastStatus.Render("ℹ " + t.Message))
		}
	}
	return b.String()
}
