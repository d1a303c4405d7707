// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styled components of the TUI.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	Width  int
	Height int

	Header      lipgloss.Style
	HeaderBrand lipgloss.Style
	ModeBadge   lipgloss.Style
	SpaceBadge  lipgloss.Style

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	Timestamp      lipgloss.Style
	Loading        lipgloss.Style
	ErrorNote      lipgloss.Style

	CodeBox   lipgloss.Style
	CodeIndex lipgloss.Style

	InputBox        lipgloss.Style
	InputBoxFocused lipgloss.Style
	ConsolePrompt   lipgloss.Style
	GhostText       lipgloss.Style
	ConsoleOutput   lipgloss.Style

	StatusBar    lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style
}

// NewTheme detects terminal capabilities and builds the styles.
func NewTheme() *Theme {
	t := &Theme{
		IsDark:       termenv.HasDarkBackground(),
		ColorProfile: termenv.ColorProfile(),
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)
	t.HeaderBrand = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	t.ModeBadge = lipgloss.NewStyle().Foreground(Amber).Bold(true)
	t.SpaceBadge = lipgloss.NewStyle().Foreground(Emerald)

	t.UserLabel = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	t.AssistantLabel = lipgloss.NewStyle().Bold(true).Foreground(Purple)
	t.Timestamp = lipgloss.NewStyle().Foreground(TextMuted)
	t.Loading = lipgloss.NewStyle().Foreground(TextSecondary).Italic(true)
	t.ErrorNote = lipgloss.NewStyle().Foreground(Rose)

	t.CodeBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(OverlayDim).
		Padding(0, 1)
	t.CodeIndex = lipgloss.NewStyle().Foreground(Amber)

	t.InputBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.InputBoxFocused = t.InputBox.BorderForeground(Purple)
	t.ConsolePrompt = lipgloss.NewStyle().Foreground(Emerald).Bold(true)
	t.GhostText = lipgloss.NewStyle().Foreground(Ghost).Italic(true)
	t.ConsoleOutput = lipgloss.NewStyle().Foreground(TextSecondary)

	t.StatusBar = lipgloss.NewStyle().Foreground(TextSecondary).Padding(0, 1)
	t.ShortcutKey = lipgloss.NewStyle().Foreground(Cyan)
	t.ShortcutDesc = lipgloss.NewStyle().Foreground(TextMuted)
}

// SetSize records the terminal size.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// GlamourStyle names the glamour style matching the background.
func (t *Theme) GlamourStyle() string {
	if t.ColorProfile == termenv.Ascii {
		return "notty"
	}
	if t.IsDark {
		return "dark"
	}
	return "light"
}
