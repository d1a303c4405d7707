// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the bubbletea model of the gqlpilot TUI: a scrolling chat
// transcript, a question box, and a one-line query console with copilot
// ghost text.
//
// # Key Types
//
//   - Model: the bubbletea model
//   - ConsoleEditor: the console line as seen by the copilot trigger
//   - Renderer: markdown and highlighted code spans for finished turns
//
// # Usage
//
//	m := chat.New(chat.Config{Theme: styles.NewTheme(), Assistant: a})
//	defer m.Close()
//	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
package chat
