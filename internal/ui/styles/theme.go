// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds all the styled components for the application, built
// from one palette. It detects the terminal's color capability on
// creation.
type Theme struct {
	Palette      Palette
	ColorProfile termenv.Profile
	HasTrueColor bool

	// Layout
	Width  int
	Height int

	// =========================================================================
	// CONTAINERS AND HEADER
	// =========================================================================

	App       lipgloss.Style
	Header    lipgloss.Style
	Sidebar   lipgloss.Style
	Container lipgloss.Style

	// =========================================================================
	// MESSAGES
	// =========================================================================

	UserBubble      lipgloss.Style
	AssistantBubble lipgloss.Style
	StreamingText   lipgloss.Style

	// =========================================================================
	// CONVERSATION LIST
	// =========================================================================

	ConvItem         lipgloss.Style
	ConvItemSelected lipgloss.Style
	ConvMeta         lipgloss.Style

	// =========================================================================
	// INPUT AREA
	// =========================================================================

	InputContainer   lipgloss.Style
	InputPrompt      lipgloss.Style
	InputPlaceholder lipgloss.Style
	AttachmentChip   lipgloss.Style

	// =========================================================================
	// STATUS BAR AND INDICATORS
	// =========================================================================

	StatusBar    lipgloss.Style
	StatusModel  lipgloss.Style
	Spinner      lipgloss.Style
	ThinkingText lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style

	// =========================================================================
	// TOASTS AND ERRORS
	// =========================================================================

	ToastError   lipgloss.Style
	ToastWarning lipgloss.Style
	ToastStatus  lipgloss.Style

	// =========================================================================
	// REFERENCES AND SEARCH
	// =========================================================================

	RefBadge        lipgloss.Style
	RefTitle        lipgloss.Style
	RefPreview      lipgloss.Style
	SearchHighlight lipgloss.Style
	FieldError      lipgloss.Style
}

// NewTheme creates a theme for the named palette.
func NewTheme(paletteName string) *Theme {
	profile := termenv.ColorProfile()
	t := &Theme{
		Palette:      Lookup(paletteName),
		ColorProfile: profile,
		HasTrueColor: profile == termenv.TrueColor,
	}
	t.initStyles()
	return t
}

// initStyles builds every lipgloss style from the palette.
func (t *Theme) initStyles() {
	p := t.Palette

	t.App = lipgloss.NewStyle()
	t.Container = lipgloss.NewStyle().Padding(0, 1)

	t.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(p.Accent).
		Background(p.SurfaceDim).
		Padding(0, 2)

	t.Sidebar = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(p.Overlay).
		PaddingRight(1)

	t.UserBubble = lipgloss.NewStyle().
		Foreground(p.Text).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(p.Accent).
		Padding(0, 2).
		MarginLeft(4)

	t.AssistantBubble = lipgloss.NewStyle().
		Foreground(p.Text).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(p.Secondary).
		Padding(0, 2).
		MarginRight(4)

	t.StreamingText = lipgloss.NewStyle().
		Foreground(p.TextDim).
		Italic(true)

	t.ConvItem = lipgloss.NewStyle().
		Foreground(p.TextDim).
		Padding(0, 1)

	t.ConvItemSelected = lipgloss.NewStyle().
		Foreground(p.Accent).
		Bold(true).
		Padding(0, 1)

	t.ConvMeta = lipgloss.NewStyle().
		Foreground(p.TextMuted)

	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(p.Overlay).
		Padding(0, 1)

	t.InputPrompt = lipgloss.NewStyle().
		Foreground(p.Accent).
		Bold(true)

	t.InputPlaceholder = lipgloss.NewStyle().
		Foreground(p.TextMuted).
		Italic(true)

	t.AttachmentChip = lipgloss.NewStyle().
		Foreground(p.Warning).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(p.Overlay).
		Padding(0, 1)

	t.StatusBar = lipgloss.NewStyle().
		Background(p.SurfaceDim).
		Foreground(p.TextDim).
		Padding(0, 1)

	t.StatusModel = lipgloss.NewStyle().
		Foreground(p.Success).
		Bold(true)

	t.Spinner = lipgloss.NewStyle().
		Foreground(p.Secondary)

	t.ThinkingText = lipgloss.NewStyle().
		Foreground(p.TextMuted).
		Italic(true)

	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(p.Accent).
		Bold(true)

	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(p.TextMuted)

	t.ToastError = lipgloss.NewStyle().
		Foreground(p.Error).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(p.Error).
		Padding(0, 1)

	t.ToastWarning = lipgloss.NewStyle().
		Foreground(p.Warning).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(p.Warning).
		Padding(0, 1)

	t.ToastStatus = lipgloss.NewStyle().
		Foreground(p.Accent).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(p.Overlay).
		Padding(0, 1)

	t.RefBadge = lipgloss.NewStyle().
		Foreground(p.Secondary).
		Bold(true)

	t.RefTitle = lipgloss.NewStyle().
		Foreground(p.Text)

	t.RefPreview = lipgloss.NewStyle().
		Foreground(p.TextMuted)

	t.SearchHighlight = lipgloss.NewStyle().
		Foreground(p.Warning).
		Bold(true)

	t.FieldError = lipgloss.NewStyle().
		Foreground(p.Error).
		Italic(true)
}

// SetSize records the terminal dimensions for layout.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}
