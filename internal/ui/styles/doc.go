// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling of the gqlpilot TUI.
// Colors are lipgloss AdaptiveColors so light and dark terminals both work.
package styles
