// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small string and file helpers shared by gqlpilot.
//
// # Key Functions
//
// String Utilities:
//   - TruncateRunes: UTF-8 safe head truncation with ellipsis
//   - HeadRunes, TailRunes: keep the first or last N characters
//   - CollapseSpace: fold runs of spaces and newlines into one space
//   - TruncateWidth, StringWidth: display-width aware helpers (go-runewidth)
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
//
// # Usage
//
//	// Keep the most recent tail of an old chat turn
//	tail := util.TailRunes(strings.TrimSpace(turn), 100)
//
//	// Write files atomically to prevent data loss
//	err := util.AtomicWriteFile(path, data, 0600)
package util
