// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
)

// Lengths here count runes. Prompt ceilings are character counts and
// Chinese questions are as common as English ones.

const ellipsis = "..."

// RuneLen returns the number of runes in s.
func RuneLen(s string) int { return utf8.RuneCountInString(s) }

// HeadRunes returns the first n runes of s.
func HeadRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	for i := range s {
		if n == 0 {
			return s[:i]
		}
		n--
	}
	return s
}

// TailRunes returns the last n runes of s.
func TailRunes(s string, n int) string {
	if skip := RuneLen(s) - n; skip > 0 {
		for i := range s {
			if skip == 0 {
				return s[i:]
			}
			skip--
		}
	}
	if n <= 0 {
		return ""
	}
	return s
}

// TruncateRunes cuts s to at most limit runes, ending in "..." when there
// is room for it.
func TruncateRunes(s string, limit int) string {
	if RuneLen(s) <= limit {
		return s
	}
	if limit <= len(ellipsis) {
		return HeadRunes(s, limit)
	}
	return HeadRunes(s, limit-len(ellipsis)) + ellipsis
}

var (
	newlineRun    = regexp.MustCompile(`\s*\n\s*`)
	repeatedSpace = regexp.MustCompile(` {2,}`)
)

// CollapseSpace puts a multi-line statement on one line for list previews.
func CollapseSpace(s string) string {
	s = newlineRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(repeatedSpace.ReplaceAllString(s, " "))
}

// TruncateWidth fits s into maxWidth terminal columns. Wide runes count
// double.
func TruncateWidth(s string, maxWidth int) string {
	switch {
	case maxWidth <= 0:
		return ""
	case runewidth.StringWidth(s) <= maxWidth:
		return s
	case maxWidth <= len(ellipsis):
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, ellipsis)
}

// PadRight pads s with spaces to width terminal columns.
func PadRight(s string, width int) string {
	return runewidth.FillRight(s, width)
}
