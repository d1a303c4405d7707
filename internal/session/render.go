// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jeranaias/gqlpilot/internal/wire"
)

// SegmentKind tells prose from query code.
type SegmentKind int

const (
	SegmentProse SegmentKind = iota
	SegmentCode
)

// Segment is a span of turn content.
type Segment struct {
	Kind SegmentKind
	Text string
}

var (
	fence       = regexp.MustCompile("```([^`]+)```")
	fenceLeader = regexp.MustCompile(`^(\n|ngql|gql|cypher)`)
)

// Segments splits content on triple-backtick fences. Fenced spans become
// code segments with their language tag and surrounding newlines removed.
// Empty prose between fences is omitted. An unterminated fence stays prose,
// which is how partial streaming output renders.
func Segments(content string) []Segment {
	var out []Segment
	prev := 0
	for _, m := range fence.FindAllStringSubmatchIndex(content, -1) {
		if prose := content[prev:m[0]]; prose != "" {
			out = append(out, Segment{Kind: SegmentProse, Text: prose})
		}
		out = append(out, Segment{Kind: SegmentCode, Text: cleanCode(content[m[2]:m[3]])})
		prev = m[1]
	}
	if rest := content[prev:]; rest != "" {
		out = append(out, Segment{Kind: SegmentProse, Text: rest})
	}
	return out
}

func cleanCode(code string) string {
	code = fenceLeader.ReplaceAllString(code, "")
	code = strings.TrimPrefix(code, "\n")
	return strings.TrimSuffix(code, "\n")
}

// CodeSpans returns the runnable code of a finished assistant turn. User
// turns and pending turns have none.
func CodeSpans(m Message) []string {
	if m.Role != wire.RoleAssistant || m.Status != StatusDone {
		return nil
	}
	var spans []string
	for _, seg := range Segments(m.Content) {
		if seg.Kind == SegmentCode && strings.TrimSpace(seg.Text) != "" {
			spans = append(spans, seg.Text)
		}
	}
	return spans
}

// =============================================================================
// CONSOLE
// =============================================================================

// Console executes query text. Submission is fire and forget.
type Console interface {
	RunGQL(gql string)
}

// ConsoleFunc adapts a function to Console.
type ConsoleFunc func(gql string)

// RunGQL calls f.
func (f ConsoleFunc) RunGQL(gql string) { f(gql) }

// ErrNotRunnable means the requested code span does not exist or the turn
// is still streaming.
var ErrNotRunnable = errors.New("no runnable code span")

// RunInConsole submits code span index of m to c.
func RunInConsole(c Console, m Message, index int) error {
	if m.Status == StatusPending {
		return fmt.Errorf("%w: turn still streaming", ErrNotRunnable)
	}
	spans := CodeSpans(m)
	if index < 0 || index >= len(spans) {
		return fmt.Errorf("%w: index %d of %d", ErrNotRunnable, index, len(spans))
	}
	c.RunGQL(spans[index])
	return nil
}
