// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"github.com/charmbracelet/lipgloss"
)

func init() {
	lipgloss.SetColorProfile(ColorProfile())
}

// =============================================================================
// SHARED STYLES
// =============================================================================

// Palette follows the TUI theme: blue headings, green prompts, and nGQL
// statements in the same cyan the code boxes use.
var (
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).MarginBottom(1)
	SectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255"))
	ValueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	SuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	ErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	WarningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	DimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	PromptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	GQLStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))

	fieldLabel = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(18)
)

// renderField renders one "label value" line of stats or config output.
func renderField(label, value string) string {
	return fieldLabel.Render(label) + ValueStyle.Render(value)
}
