// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/gqlpilot/internal/util"
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the screen. Layout, top to bottom: header, transcript,
// question box, console box, console output, status bar.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.viewport.View(),
		m.renderQuestion(),
		m.renderConsole(),
		m.renderConsoleLog(),
		m.renderStatusBar(),
	)
}

func (m Model) renderHeader() string {
	space := m.asst.Space()
	if space == "" {
		space = "no space"
	}
	line := m.theme.HeaderBrand.Render("gqlpilot") + "  " +
		m.theme.ModeBadge.Render(string(m.asst.Mode())) + "  " +
		m.theme.SpaceBadge.Render(space)
	return m.theme.Header.Width(m.width).Render(line)
}

func (m Model) box(focused bool) lipgloss.Style {
	style := m.theme.InputBox
	if focused {
		style = m.theme.InputBoxFocused
	}
	return style.Width(max(m.width-2, 10))
}

func (m Model) renderQuestion() string {
	return m.box(m.focus == focusQuestion).Render(m.question.View())
}

// renderConsole draws the statement input. While a copilot suggestion is
// shown the line is drawn by hand so the ghost text sits right after the
// typed text instead of after the input's padding.
func (m Model) renderConsole() string {
	view := m.console.View()
	value, _, ghost := m.editor.State()
	if ghost != "" && m.focus == focusConsole {
		line := m.console.Prompt + value
		room := m.width - 6 - lipgloss.Width(line)
		if room > 0 {
			view = line + m.theme.GhostText.Render(util.TruncateWidth(ghost, room))
		}
	}
	return m.box(m.focus == focusConsole).Render(view)
}

func (m Model) renderConsoleLog() string {
	lines := make([]string, maxConsoleLog)
	start := maxConsoleLog - len(m.consoleLog)
	for i, l := range m.consoleLog {
		lines[start+i] = m.theme.ConsoleOutput.Render(util.TruncateWidth(l, max(m.width-2, 10)))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderStatusBar() string {
	var parts []string
	if m.asking {
		parts = append(parts, m.spinner.View()+" answering")
	}
	if m.trigger != nil && m.focus == focusConsole {
		parts = append(parts, "copilot "+m.trigger.State().String())
	}
	if m.status != "" {
		parts = append(parts, m.status)
	} else {
		for _, b := range m.keys.ShortHelp() {
			h := b.Help()
			parts = append(parts, m.theme.ShortcutKey.Render(h.Key)+" "+m.theme.ShortcutDesc.Render(h.Desc))
		}
	}
	return m.theme.StatusBar.MaxWidth(max(m.width, 10)).Render(strings.Join(parts, "  "))
}
