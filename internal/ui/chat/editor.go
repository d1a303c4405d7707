// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"sync"

	"github.com/jeranaias/gqlpilot/internal/copilot"
	"github.com/jeranaias/gqlpilot/internal/util"
)

// ConsoleEditor mirrors the console input line for the copilot trigger and
// receives code spans sent to the console. The textinput widget stays the
// source of truth for typing; Sync copies its state in after every key.
type ConsoleEditor struct {
	mu     sync.Mutex
	value  []rune
	cursor int
	ghost  string

	notify func()
}

// NewConsoleEditor returns an empty editor. notify is called, without locks
// held, when the line or ghost text changes from outside the UI loop; it
// must not block.
func NewConsoleEditor(notify func()) *ConsoleEditor {
	if notify == nil {
		notify = func() {}
	}
	return &ConsoleEditor{notify: notify}
}

// Sync records the widget state.
func (e *ConsoleEditor) Sync(value string, cursor int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.value = []rune(value)
	e.cursor = clamp(cursor, len(e.value))
}

// State returns the line, cursor and ghost text.
func (e *ConsoleEditor) State() (value string, cursor int, ghost string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return string(e.value), e.cursor, e.ghost
}

// Cursor implements copilot.Editor. The console has a single line.
func (e *ConsoleEditor) Cursor() copilot.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copilot.Position{Line: 0, Col: e.cursor}
}

// Line implements copilot.Editor.
func (e *ConsoleEditor) Line(n int) string {
	if n != 0 {
		return ""
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return string(e.value)
}

// InsertAt implements copilot.Editor.
func (e *ConsoleEditor) InsertAt(pos copilot.Position, text string) {
	text = strings.ReplaceAll(text, "\n", " ")
	e.mu.Lock()
	at := clamp(pos.Col, len(e.value))
	ins := []rune(text)
	v := make([]rune, 0, len(e.value)+len(ins))
	v = append(v, e.value[:at]...)
	v = append(v, ins...)
	v = append(v, e.value[at:]...)
	e.value = v
	e.cursor = at + len(ins)
	e.ghost = ""
	e.mu.Unlock()
}

// ShowGhost implements copilot.Editor. It runs on the trigger's timer
// goroutine, so the UI is woken through notify.
func (e *ConsoleEditor) ShowGhost(_ copilot.Position, text string) {
	e.mu.Lock()
	e.ghost = strings.ReplaceAll(text, "\n", " ")
	e.mu.Unlock()
	e.notify()
}

// ClearGhost implements copilot.Editor.
func (e *ConsoleEditor) ClearGhost() {
	e.mu.Lock()
	e.ghost = ""
	e.mu.Unlock()
}

// RunGQL implements session.Console: the statement replaces the line.
func (e *ConsoleEditor) RunGQL(gql string) {
	e.mu.Lock()
	e.value = []rune(util.CollapseSpace(gql))
	e.cursor = len(e.value)
	e.ghost = ""
	e.mu.Unlock()
	e.notify()
}

func clamp(n, max int) int {
	if n < 0 {
		return 0
	}
	if n > max {
		return max
	}
	return n
}
