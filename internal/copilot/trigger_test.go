// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package copilot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/gqlpilot/internal/corpus"
	"github.com/jeranaias/gqlpilot/internal/prompt"
	"github.com/jeranaias/gqlpilot/internal/schema"
	"github.com/jeranaias/gqlpilot/internal/wire"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

func (c *fakeClock) last(t *testing.T) *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.timers, "no timer scheduled")
	return c.timers[len(c.timers)-1]
}

type fakeEditor struct {
	mu       sync.Mutex
	lines    []string
	cursor   Position
	ghost    string
	ghostAt  Position
	inserted []string
}

// setLine puts text on line 0 with the cursor at its end.
func (e *fakeEditor) setLine(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lines = []string{text}
	e.cursor = Position{Line: 0, Col: len([]rune(text))}
}

func (e *fakeEditor) Cursor() Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursor
}

func (e *fakeEditor) Line(n int) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n < 0 || n >= len(e.lines) {
		return ""
	}
	return e.lines[n]
}

func (e *fakeEditor) InsertAt(pos Position, text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inserted = append(e.inserted, text)
	line := []rune(e.lines[pos.Line])
	e.lines[pos.Line] = string(line[:pos.Col]) + text + string(line[pos.Col:])
	e.cursor = Position{Line: pos.Line, Col: pos.Col + len([]rune(text))}
}

func (e *fakeEditor) ShowGhost(pos Position, text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ghost, e.ghostAt = text, pos
}

func (e *fakeEditor) ClearGhost() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ghost = ""
}

func (e *fakeEditor) ghostText() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ghost
}

type fakeCompleter struct {
	mu      sync.Mutex
	reply   string
	err     error
	reqs    []wire.ChatRequest
	started chan struct{}
	release chan struct{}
}

func (c *fakeCompleter) Complete(ctx context.Context, req wire.ChatRequest) (string, error) {
	c.mu.Lock()
	c.reqs = append(c.reqs, req)
	started, release := c.started, c.release
	c.mu.Unlock()

	if started != nil {
		close(started)
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return c.reply, c.err
}

func (c *fakeCompleter) calls() []wire.ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]wire.ChatRequest(nil), c.reqs...)
}

func testCorpus() *corpus.Corpus {
	return corpus.Load([]corpus.Entry{
		{Path: "7.general-query-statements/3.go/", Title: "go", Statements: []string{"GO FROM \"player100\" OVER follow;"}},
		{Path: "7.general-query-statements/2.match/", Title: "match", Statements: []string{"MATCH (v) RETURN v;"}},
		{Path: "10.tag-statements/", Title: "create-tag", Statements: []string{"CREATE TAG t(name string);"}},
	})
}

type harness struct {
	trigger *Trigger
	editor  *fakeEditor
	client  *fakeCompleter
	clock   *fakeClock
}

func newHarness(t *testing.T, schemaFn SchemaFunc) *harness {
	t.Helper()
	h := &harness{
		editor: &fakeEditor{},
		client: &fakeCompleter{reply: " OVER follow"},
		clock:  &fakeClock{},
	}
	if schemaFn == nil {
		schemaFn = func(context.Context) (string, error) { return "tags:\nplayer(name:string)", nil }
	}
	c := testCorpus()
	h.trigger = NewTrigger(DefaultConfig(), h.editor, h.client,
		func() *corpus.Corpus { return c }, schemaFn, WithAfterFunc(h.clock.AfterFunc))
	t.Cleanup(h.trigger.Close)
	return h
}

// typeText simulates typing the final key of text.
func (h *harness) typeText(text string) {
	h.trigger.KeyPressed(text[len(text)-1:])
	h.editor.setLine(text)
}

// =============================================================================
// TESTS
// =============================================================================

func TestTrigger_SuggestionShownAfterDebounce(t *testing.T) {
	h := newHarness(t, nil)

	h.typeText("GO FR")
	assert.Equal(t, StateDebouncing, h.trigger.State())
	tm := h.clock.last(t)
	assert.Equal(t, DefaultDebounce, tm.d)

	tm.f()

	require.Equal(t, StateShowing, h.trigger.State())
	assert.Equal(t, " OVER follow", h.editor.ghostText())
	s, ok := h.trigger.Suggestion()
	require.True(t, ok)
	assert.Equal(t, Position{Line: 0, Col: 5}, s.Anchor)

	reqs := h.client.calls()
	require.Len(t, reqs, 1)
	req := reqs[0]
	assert.False(t, req.Stream)
	assert.Equal(t, float64(SuggestTemperature), req.Temperature)
	assert.Equal(t, SuggestMaxTokens, req.MaxTokens)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, wire.RoleUser, req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "go\n")
	assert.Contains(t, req.Messages[0].Content, "player(name:string)")
	assert.Contains(t, req.Messages[0].Content, "The user's NGQL text is: GO FR\n")
}

func TestTrigger_KeystrokesRestartDebounce(t *testing.T) {
	h := newHarness(t, nil)

	h.typeText("GO")
	first := h.clock.last(t)
	h.typeText("GO ")
	second := h.clock.last(t)
	h.typeText("GO F")

	assert.True(t, first.stopped)
	assert.True(t, second.stopped)
	assert.Equal(t, 3, h.clock.count())

	// Superseded timers firing late are no-ops.
	first.f()
	second.f()
	assert.Empty(t, h.client.calls())
	assert.Equal(t, StateDebouncing, h.trigger.State())

	h.clock.last(t).f()
	assert.Len(t, h.client.calls(), 1)
	assert.Equal(t, StateShowing, h.trigger.State())
}

func TestTrigger_AcceptInsertsWithoutRetrigger(t *testing.T) {
	h := newHarness(t, nil)
	h.typeText("GO FROM")
	h.clock.last(t).f()
	require.Equal(t, StateShowing, h.trigger.State())
	timers := h.clock.count()

	consumed := h.trigger.KeyPressed("tab")

	assert.True(t, consumed)
	assert.Equal(t, []string{" OVER follow"}, h.editor.inserted)
	assert.Equal(t, "GO FROM OVER follow", h.editor.Line(0))
	assert.Empty(t, h.editor.ghostText())
	assert.Equal(t, StateIdle, h.trigger.State())
	assert.Equal(t, timers, h.clock.count(), "accept must not schedule a new suggestion")
	_, ok := h.trigger.Suggestion()
	assert.False(t, ok)
}

func TestTrigger_OtherKeyDismisses(t *testing.T) {
	h := newHarness(t, nil)
	h.typeText("GO FROM")
	h.clock.last(t).f()
	require.Equal(t, StateShowing, h.trigger.State())

	consumed := h.trigger.KeyPressed("x")

	assert.False(t, consumed)
	assert.Empty(t, h.editor.ghostText())
	assert.Empty(t, h.editor.inserted)
	assert.Equal(t, StateDebouncing, h.trigger.State())
}

func TestTrigger_AcceptKeyWithoutSuggestionIsPlainKey(t *testing.T) {
	h := newHarness(t, nil)
	assert.False(t, h.trigger.KeyPressed("tab"))
	assert.Equal(t, StateDebouncing, h.trigger.State())
}

func TestTrigger_NoSuggestionCases(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		col    int
		reply  string
		called bool
	}{
		{name: "fragment too short", line: "GO", col: 2},
		{name: "short fragment after semicolon", line: "GO FROM 1;GO", col: 12},
		{name: "cursor inside line", line: "GO FROM \"a\" OVER", col: 3},
		{name: "no corpus hit", line: "FETCH PROP", col: 10},
		{name: "blank fragment", line: "x;     ", col: 7},
		{name: "model says sorry", line: "GO FROM", col: 7, reply: "Sorry, no idea", called: true},
		{name: "empty reply", line: "GO FROM", col: 7, reply: "  ", called: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.client.reply = tt.reply
			h.trigger.KeyPressed("k")
			h.editor.setLine(tt.line)
			h.editor.cursor.Col = tt.col

			h.clock.last(t).f()

			assert.Equal(t, StateIdle, h.trigger.State())
			assert.Empty(t, h.editor.ghostText())
			assert.Equal(t, tt.called, len(h.client.calls()) == 1)
		})
	}
}

func TestTrigger_CursorOneBeforeEndStillTriggers(t *testing.T) {
	h := newHarness(t, nil)
	h.trigger.KeyPressed("M")
	h.editor.setLine("GO FROM")
	h.editor.cursor.Col = 6

	h.clock.last(t).f()

	assert.Equal(t, StateShowing, h.trigger.State())
}

func TestTrigger_FragmentAfterLastSemicolon(t *testing.T) {
	h := newHarness(t, nil)
	h.typeText("USE nba; GO FR")
	h.clock.last(t).f()

	reqs := h.client.calls()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Messages[0].Content, "The user's NGQL text is:  GO FR\n")
	assert.NotContains(t, reqs[0].Messages[0].Content, "USE nba")
}

func TestTrigger_SchemaErrors(t *testing.T) {
	t.Run("no space aborts", func(t *testing.T) {
		h := newHarness(t, func(context.Context) (string, error) {
			return "", fmt.Errorf("summarize: %w", schema.ErrSpaceUnavailable)
		})
		h.typeText("GO FR")
		h.clock.last(t).f()

		assert.Equal(t, StateIdle, h.trigger.State())
		assert.Empty(t, h.client.calls())
	})

	t.Run("disabled uses placeholder", func(t *testing.T) {
		h := newHarness(t, func(context.Context) (string, error) { return "", schema.ErrSchemaDisabled })
		h.typeText("GO FR")
		h.clock.last(t).f()

		reqs := h.client.calls()
		require.Len(t, reqs, 1)
		assert.Contains(t, reqs[0].Messages[0].Content, schema.DisabledPlaceholder)
		assert.Equal(t, StateShowing, h.trigger.State())
	})

	t.Run("other failure aborts", func(t *testing.T) {
		h := newHarness(t, func(context.Context) (string, error) { return "", errors.New("catalog closed") })
		h.typeText("GO FR")
		h.clock.last(t).f()

		assert.Equal(t, StateIdle, h.trigger.State())
		assert.Empty(t, h.client.calls())
	})
}

func TestTrigger_CompleterErrorReturnsToIdle(t *testing.T) {
	h := newHarness(t, nil)
	h.client.err = errors.New("backend down")
	h.typeText("GO FR")
	h.clock.last(t).f()

	assert.Equal(t, StateIdle, h.trigger.State())
	assert.Empty(t, h.editor.ghostText())
}

func TestTrigger_StaleReplyDiscarded(t *testing.T) {
	h := newHarness(t, nil)
	h.client.started = make(chan struct{})
	h.client.release = make(chan struct{})
	defer close(h.client.release)

	h.typeText("GO FR")
	fired := h.clock.last(t)
	done := make(chan struct{})
	go func() {
		fired.f()
		close(done)
	}()

	<-h.client.started
	assert.Equal(t, StateAwaitingSuggestion, h.trigger.State())

	// A keystroke while awaiting cancels the request.
	h.typeText("GO FRO")
	<-done

	assert.Equal(t, StateDebouncing, h.trigger.State())
	assert.Empty(t, h.editor.ghostText())
	_, ok := h.trigger.Suggestion()
	assert.False(t, ok)
}

func TestTrigger_CypherMatchUsesTemplate(t *testing.T) {
	h := newHarness(t, nil)
	h.trigger.SetMode(prompt.ModeCypher)
	h.typeText("MATCH (v")
	h.clock.last(t).f()

	reqs := h.client.calls()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Messages[0].Content, `document "Generate NebulaGraph query from my question.`)
	assert.NotContains(t, reqs[0].Messages[0].Content, "MATCH (v) RETURN v;")
}

func TestTrigger_DocCutToLength(t *testing.T) {
	h := newHarness(t, nil)
	h.trigger.cfg.DocLength = 4
	h.typeText("GO FR")
	h.clock.last(t).f()

	reqs := h.client.calls()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Messages[0].Content, `document "go
G" and`)
}

func TestTrigger_CloseIgnoresKeys(t *testing.T) {
	h := newHarness(t, nil)
	h.typeText("GO FR")
	pending := h.clock.last(t)

	h.trigger.Close()

	assert.True(t, pending.stopped)
	assert.False(t, h.trigger.KeyPressed("a"))
	assert.Equal(t, 1, h.clock.count())
	pending.f()
	assert.Empty(t, h.client.calls())
	assert.Equal(t, StateIdle, h.trigger.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "showing", StateShowing.String())
	assert.Equal(t, "unknown", State(42).String())
}
