// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package copilot

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/gqlpilot/internal/corpus"
	"github.com/jeranaias/gqlpilot/internal/prompt"
	"github.com/jeranaias/gqlpilot/internal/schema"
	"github.com/jeranaias/gqlpilot/internal/util"
	"github.com/jeranaias/gqlpilot/internal/wire"
)

// =============================================================================
// TYPES
// =============================================================================

// State is the trigger's position in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateDebouncing
	StateAwaitingSuggestion
	StateShowing
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDebouncing:
		return "debouncing"
	case StateAwaitingSuggestion:
		return "awaiting"
	case StateShowing:
		return "showing"
	default:
		return "unknown"
	}
}

// Position is a cursor location. Col counts runes.
type Position struct {
	Line int
	Col  int
}

// Suggestion is the ghost text on display.
type Suggestion struct {
	Text   string
	Anchor Position
}

// Editor is the narrow view of the console editor. Its methods may be called
// from timer goroutines and must not call back into the Trigger.
type Editor interface {
	Cursor() Position
	Line(n int) string
	InsertAt(pos Position, text string)
	ShowGhost(pos Position, text string)
	ClearGhost()
}

// SchemaFunc returns the schema text of the current space. An error wrapping
// schema.ErrSpaceUnavailable skips the suggestion.
type SchemaFunc func(ctx context.Context) (string, error)

// Timer is a stoppable pending call.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// =============================================================================
// CONFIGURATION
// =============================================================================

const (
	DefaultDebounce       = time.Second
	DefaultMinFragment    = 3
	DefaultAcceptKey      = "tab"
	DefaultRequestTimeout = 30 * time.Second

	SuggestTemperature = 1
	SuggestMaxTokens   = 30
)

// Config tunes a Trigger.
type Config struct {
	Debounce       time.Duration
	MinFragment    int
	AcceptKey      string
	DocLength      int
	Mode           prompt.Mode
	RequestTimeout time.Duration
}

// DefaultConfig returns the standard settings.
func DefaultConfig() Config {
	return Config{
		Debounce:       DefaultDebounce,
		MinFragment:    DefaultMinFragment,
		AcceptKey:      DefaultAcceptKey,
		DocLength:      prompt.DefaultDocLength,
		Mode:           prompt.ModeNGQL,
		RequestTimeout: DefaultRequestTimeout,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Debounce <= 0 {
		c.Debounce = d.Debounce
	}
	if c.MinFragment <= 0 {
		c.MinFragment = d.MinFragment
	}
	if c.AcceptKey == "" {
		c.AcceptKey = d.AcceptKey
	}
	if c.DocLength <= 0 {
		c.DocLength = d.DocLength
	}
	if c.Mode == "" {
		c.Mode = d.Mode
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	return c
}

// Option customizes a Trigger.
type Option func(*Trigger)

// WithAfterFunc replaces the debounce scheduler.
func WithAfterFunc(f AfterFunc) Option {
	return func(t *Trigger) { t.afterFunc = f }
}

// =============================================================================
// TRIGGER
// =============================================================================

// Trigger is the inline suggestion state machine. Safe for concurrent use.
type Trigger struct {
	cfg       Config
	editor    Editor
	client    prompt.Completer
	corpus    func() *corpus.Corpus
	schema    SchemaFunc
	afterFunc AfterFunc

	mu         sync.Mutex
	state      State
	gen        uint64
	timer      Timer
	cancel     context.CancelFunc
	suggestion *Suggestion
	closed     bool
}

// NewTrigger creates an idle trigger.
func NewTrigger(cfg Config, editor Editor, client prompt.Completer, corpusFn func() *corpus.Corpus, schemaFn SchemaFunc, opts ...Option) *Trigger {
	t := &Trigger{
		cfg:       cfg.withDefaults(),
		editor:    editor,
		client:    client,
		corpus:    corpusFn,
		schema:    schemaFn,
		afterFunc: realAfterFunc,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// State returns the current state.
func (t *Trigger) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Suggestion returns the suggestion on display, if any.
func (t *Trigger) Suggestion() (Suggestion, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.suggestion == nil {
		return Suggestion{}, false
	}
	return *t.suggestion, true
}

// KeyPressed reports a keystroke before the editor applies it. It returns
// true when the key accepted a suggestion and must not reach the editor.
// Every other key dismisses any suggestion and restarts the debounce.
func (t *Trigger) KeyPressed(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}

	if t.state == StateShowing && strings.EqualFold(key, t.cfg.AcceptKey) {
		s := *t.suggestion
		t.editor.InsertAt(t.editor.Cursor(), s.Text)
		t.resetLocked()
		log.Printf("COPILOT_ACCEPTED | chars=%d", util.RuneLen(s.Text))
		return true
	}

	t.resetLocked()
	t.state = StateDebouncing
	gen := t.gen
	t.timer = t.afterFunc(t.cfg.Debounce, func() { t.fire(gen) })
	return false
}

// SetMode switches the query language used for corpus lookups.
func (t *Trigger) SetMode(mode prompt.Mode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cfg.Mode = mode
}

// Dismiss drops any pending request or suggestion and returns to idle.
func (t *Trigger) Dismiss() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetLocked()
}

// Close stops the trigger. Later keystrokes are ignored.
func (t *Trigger) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetLocked()
	t.closed = true
}

// resetLocked supersedes whatever is in progress: the timer is stopped, the
// request canceled, the ghost cleared, and the generation advanced.
func (t *Trigger) resetLocked() {
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	if t.suggestion != nil {
		t.editor.ClearGhost()
		t.suggestion = nil
	}
	t.state = StateIdle
}

// currentLocked reports whether gen is still the live generation.
func (t *Trigger) currentLocked(gen uint64) bool {
	return !t.closed && gen == t.gen
}

// fire runs when the debounce elapses without another keystroke.
func (t *Trigger) fire(gen uint64) {
	t.mu.Lock()
	if !t.currentLocked(gen) || t.state != StateDebouncing {
		t.mu.Unlock()
		return
	}
	t.timer = nil

	cursor := t.editor.Cursor()
	fragment, ok := t.fragmentLocked(cursor)
	if !ok {
		t.state = StateIdle
		t.mu.Unlock()
		return
	}
	doc := t.documentFor(fragment)
	if doc == "" {
		t.state = StateIdle
		t.mu.Unlock()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), t.cfg.RequestTimeout)
	t.cancel = cancel
	t.state = StateAwaitingSuggestion
	t.mu.Unlock()
	defer cancel()

	text, err := t.suggest(ctx, doc, fragment)

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.currentLocked(gen) {
		log.Printf("COPILOT_STALE_DISCARDED | gen=%d current=%d", gen, t.gen)
		return
	}
	t.cancel = nil
	if err != nil || text == "" {
		if err != nil {
			log.Printf("COPILOT_SUGGEST_FAILED | err=%v", err)
		}
		t.state = StateIdle
		return
	}

	anchor := t.editor.Cursor()
	t.suggestion = &Suggestion{Text: text, Anchor: anchor}
	t.state = StateShowing
	t.editor.ShowGhost(anchor, text)
}

// fragmentLocked returns the statement fragment under the cursor: the text
// after the last ";" on the cursor's line. The cursor must be at the end of
// the line and the fragment at least MinFragment runes long.
func (t *Trigger) fragmentLocked(cursor Position) (string, bool) {
	line := t.editor.Line(cursor.Line)
	if cursor.Col < util.RuneLen(line)-1 {
		return "", false
	}
	fragment := line
	if i := strings.LastIndex(line, ";"); i >= 0 {
		fragment = line[i+1:]
	}
	if util.RuneLen(fragment) < t.cfg.MinFragment {
		return "", false
	}
	return fragment, true
}

// documentFor concatenates the corpus entries whose title contains the
// fragment's first token.
func (t *Trigger) documentFor(fragment string) string {
	tokens := strings.Fields(fragment)
	if len(tokens) == 0 || t.corpus == nil {
		return ""
	}
	c := t.corpus()
	if c == nil {
		return ""
	}

	var b strings.Builder
	for _, hit := range c.MatchTitles(tokens[0]) {
		if t.cfg.Mode == prompt.ModeCypher && hit.Title == "match" {
			b.WriteString(prompt.MatchTemplate)
			continue
		}
		b.WriteString(hit.Text())
	}
	return b.String()
}

// suggest fetches the schema and asks for a continuation. An empty result
// means no suggestion.
func (t *Trigger) suggest(ctx context.Context, doc, fragment string) (string, error) {
	schemaText := schema.DisabledPlaceholder
	if t.schema != nil {
		text, err := t.schema(ctx)
		switch {
		case err == nil:
			schemaText = text
		case errors.Is(err, schema.ErrSpaceUnavailable):
			return "", nil
		case errors.Is(err, schema.ErrSchemaDisabled):
		default:
			return "", err
		}
	}

	reply, err := t.client.Complete(ctx, Request(util.HeadRunes(doc, t.cfg.DocLength), schemaText, fragment))
	if err != nil {
		return "", err
	}
	if strings.Contains(reply, prompt.NoSuggestion) || strings.TrimSpace(reply) == "" {
		return "", nil
	}
	return reply, nil
}

// Request builds the non-streaming autocomplete request.
func Request(doc, schemaText, fragment string) wire.ChatRequest {
	return wire.ChatRequest{
		Stream:      false,
		Temperature: SuggestTemperature,
		MaxTokens:   SuggestMaxTokens,
		Messages: []wire.Message{
			{Role: wire.RoleUser, Content: prompt.CopilotInstruction(doc, schemaText, fragment)},
		},
	}
}
