// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package assistant

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/gqlpilot/internal/chatclient"
	"github.com/jeranaias/gqlpilot/internal/corpus"
	"github.com/jeranaias/gqlpilot/internal/prompt"
	"github.com/jeranaias/gqlpilot/internal/session"
	"github.com/jeranaias/gqlpilot/internal/wire"
)

// ErrEmptyQuestion is returned by Ask for blank input.
var ErrEmptyQuestion = errors.New("question is empty")

// Streamer is the chat transport. *chatclient.Client satisfies it.
type Streamer interface {
	prompt.Completer
	Send(ctx context.Context, req wire.ChatRequest, onEvent func(chatclient.Event)) error
}

// SchemaSource renders the schema of a space, falling back to placeholder
// text. *schema.Summarizer satisfies it.
type SchemaSource interface {
	SummarizeOrPlaceholder(ctx context.Context, space string) string
}

// Config holds the per-session choices.
type Config struct {
	Mode   prompt.Mode
	Space  string
	Prompt prompt.Config
}

// Assistant answers questions into a session. Ask calls are serialized by
// the session: a second Ask while a turn is pending fails with
// session.ErrTurnPending.
type Assistant struct {
	client   Streamer
	session  *session.Session
	builder  *prompt.Builder
	selector *prompt.Selector
	schema   SchemaSource
	corpus   func() *corpus.Corpus

	mu    sync.RWMutex
	mode  prompt.Mode
	space string
}

// New wires an Assistant. corpusFn is read on every question so a reloaded
// corpus takes effect immediately.
func New(cfg Config, client Streamer, sess *session.Session, schemaSrc SchemaSource, corpusFn func() *corpus.Corpus) *Assistant {
	mode := cfg.Mode
	if mode == "" {
		mode = prompt.ModeNGQL
	}
	return &Assistant{
		client:   client,
		session:  sess,
		builder:  prompt.NewBuilder(cfg.Prompt),
		selector: prompt.NewSelector(client, corpusFn),
		schema:   schemaSrc,
		corpus:   corpusFn,
		mode:     mode,
		space:    cfg.Space,
	}
}

// Session returns the session Ask writes to.
func (a *Assistant) Session() *session.Session {
	return a.session
}

// Mode returns the current query language.
func (a *Assistant) Mode() prompt.Mode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.mode
}

// SetMode switches the query language for later questions.
func (a *Assistant) SetMode(mode prompt.Mode) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.mode = mode
}

// Space returns the selected space.
func (a *Assistant) Space() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.space
}

// SetSpace selects the space whose schema goes into prompts.
func (a *Assistant) SetSpace(space string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.space = strings.TrimSpace(space)
}

// PromptFor builds the streaming request for question given the prior
// conversation. Selection and schema problems degrade to the default
// template and placeholder text; PromptFor never fails.
func (a *Assistant) PromptFor(ctx context.Context, question string, history []wire.Message) wire.ChatRequest {
	mode, space := a.Mode(), a.Space()

	var docs []string
	if keys := a.selector.Select(ctx, question, mode); len(keys) > 0 {
		docs = prompt.DocsFor(a.corpus(), keys)
		log.Printf("ASK_CATEGORIES | keys=%s docs=%d", strings.Join(keys, ","), len(docs))
	}

	schemaText := a.schema.SummarizeOrPlaceholder(ctx, space)
	return a.builder.Build(question, history, schemaText, docs, mode)
}

// Ask appends question as a user turn and streams the reply into a new
// assistant turn. On failure the turn keeps what arrived, is marked done
// with the error, and the error is returned.
func (a *Assistant) Ask(ctx context.Context, question string) error {
	question = norm.NFC.String(strings.TrimSpace(question))
	if question == "" {
		return ErrEmptyQuestion
	}

	history, err := a.session.BeginExchange(question)
	if err != nil {
		return err
	}

	start := time.Now()
	req := a.PromptFor(ctx, question, history)

	chunks := 0
	err = a.client.Send(ctx, req, func(ev chatclient.Event) {
		if ev.Kind == chatclient.EventDelta && ev.Text != "" {
			chunks++
			_ = a.session.ApplyDelta(ev.Text)
		}
	})
	if err != nil {
		kind := "other"
		if k, ok := chatclient.KindOf(err); ok {
			kind = k.String()
		}
		log.Printf("ASK_FAILED | chunks=%d kind=%s err=%v", chunks, kind, err)
		_ = a.session.FailTurn(err)
		return err
	}

	log.Printf("ASK_COMPLETE | chunks=%d elapsed=%s", chunks, time.Since(start).Round(time.Millisecond))
	return a.session.CompleteTurn()
}

// Reset starts a fresh conversation.
func (a *Assistant) Reset() {
	a.session.Reset()
}
