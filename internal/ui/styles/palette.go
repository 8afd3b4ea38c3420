// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the parley TUI.
package styles

import "github.com/charmbracelet/lipgloss"

// Palette is one named color scheme. Every theme style derives from
// these slots, so switching palettes restyles the whole UI.
type Palette struct {
	Name string

	// Accents
	Accent    lipgloss.Color // user highlights, prompts
	Secondary lipgloss.Color // assistant accents, selections
	Success   lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color

	// Surfaces
	Surface    lipgloss.Color // main background
	SurfaceDim lipgloss.Color // headers, footers
	Overlay    lipgloss.Color // borders, separators

	// Text
	Text      lipgloss.Color
	TextDim   lipgloss.Color
	TextMuted lipgloss.Color
}

// Built-in palette names.
const (
	ThemeDark      = "dark"
	ThemeLight     = "light"
	ThemeNord      = "nord"
	ThemeDracula   = "dracula"
	ThemeSolarized = "solarized"
	ThemeMonokai   = "monokai"
)

// palettes holds every built-in color scheme.
var palettes = map[string]Palette{
	ThemeDark: {
		Name:       ThemeDark,
		Accent:     "#22D3EE",
		Secondary:  "#A78BFA",
		Success:    "#34D399",
		Warning:    "#FBBF24",
		Error:      "#FB7185",
		Surface:    "#1E1E2E",
		SurfaceDim: "#181825",
		Overlay:    "#313244",
		Text:       "#CDD6F4",
		TextDim:    "#A6ADC8",
		TextMuted:  "#6C7086",
	},
	ThemeLight: {
		Name:       ThemeLight,
		Accent:     "#0891B2",
		Secondary:  "#7C3AED",
		Success:    "#059669",
		Warning:    "#D97706",
		Error:      "#E11D48",
		Surface:    "#FFFFFF",
		SurfaceDim: "#F5F5F5",
		Overlay:    "#E5E5E5",
		Text:       "#1F2937",
		TextDim:    "#6B7280",
		TextMuted:  "#9CA3AF",
	},
	ThemeNord: {
		Name:       ThemeNord,
		Accent:     "#88C0D0",
		Secondary:  "#81A1C1",
		Success:    "#A3BE8C",
		Warning:    "#EBCB8B",
		Error:      "#BF616A",
		Surface:    "#2E3440",
		SurfaceDim: "#272C36",
		Overlay:    "#434C5E",
		Text:       "#ECEFF4",
		TextDim:    "#D8DEE9",
		TextMuted:  "#4C566A",
	},
	ThemeDracula: {
		Name:       ThemeDracula,
		Accent:     "#8BE9FD",
		Secondary:  "#BD93F9",
		Success:    "#50FA7B",
		Warning:    "#F1FA8C",
		Error:      "#FF5555",
		Surface:    "#282A36",
		SurfaceDim: "#21222C",
		Overlay:    "#44475A",
		Text:       "#F8F8F2",
		TextDim:    "#BFBFBF",
		TextMuted:  "#6272A4",
	},
	ThemeSolarized: {
		Name:       ThemeSolarized,
		Accent:     "#2AA198",
		Secondary:  "#268BD2",
		Success:    "#859900",
		Warning:    "#B58900",
		Error:      "#DC322F",
		Surface:    "#002B36",
		SurfaceDim: "#00252E",
		Overlay:    "#073642",
		Text:       "#839496",
		TextDim:    "#657B83",
		TextMuted:  "#586E75",
	},
	ThemeMonokai: {
		Name:       ThemeMonokai,
		Accent:     "#66D9EF",
		Secondary:  "#AE81FF",
		Success:    "#A6E22E",
		Warning:    "#E6DB74",
		Error:      "#F92672",
		Surface:    "#272822",
		SurfaceDim: "#1E1F1C",
		Overlay:    "#49483E",
		Text:       "#F8F8F2",
		TextDim:    "#CFCFC2",
		TextMuted:  "#75715E",
	},
}

// IsDark reports whether the palette sits on a dark background.
// Solarized here is the dark variant, so light is the only exception.
func (p Palette) IsDark() bool {
	return p.Name != ThemeLight
}

// Lookup returns the palette for name, falling back to dark for
// unknown names so a stale pref never breaks startup.
func Lookup(name string) Palette {
	if p, ok := palettes[name]; ok {
		return p
	}
	return palettes[ThemeDark]
}

// Names returns the available palette names in a stable order.
func Names() []string {
	return []string{ThemeDark, ThemeLight, ThemeNord, ThemeDracula, ThemeSolarized, ThemeMonokai}
}
