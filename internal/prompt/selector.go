// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"context"
	"log"
	"strings"

	"github.com/jeranaias/gqlpilot/internal/corpus"
	"github.com/jeranaias/gqlpilot/internal/wire"
)

// Selection request parameters.
const (
	SelectionTemperature = 0
	SelectionMaxTokens   = 10
	MaxSelected          = 2
)

// Completer runs a non-streaming request and returns the reply text.
type Completer interface {
	Complete(ctx context.Context, req wire.ChatRequest) (string, error)
}

// Selector picks the corpus categories most relevant to a question.
type Selector struct {
	client Completer
	corpus func() *corpus.Corpus
}

// NewSelector returns a Selector. corpusFn is read on every call so a
// reloaded corpus is picked up.
func NewSelector(client Completer, corpusFn func() *corpus.Corpus) *Selector {
	return &Selector{client: client, corpus: corpusFn}
}

// ShouldSelect reports whether category selection applies: questions that
// already name MATCH and Cypher mode go straight to the default template.
func ShouldSelect(question string, mode Mode) bool {
	return mode != ModeCypher && !strings.Contains(strings.ToLower(question), "match")
}

// SelectionRequest builds the category selection request.
func SelectionRequest(categoryString, question string) wire.ChatRequest {
	return wire.ChatRequest{
		Stream:      false,
		Temperature: SelectionTemperature,
		MaxTokens:   SelectionMaxTokens,
		Messages: []wire.Message{
			{Role: wire.RoleSystem, Content: SelectionInstruction(categoryString, question)},
		},
	}
}

// Select returns up to two known category keys. Every failure yields an
// empty result so the caller falls back to the default template.
func (s *Selector) Select(ctx context.Context, question string, mode Mode) []string {
	if !ShouldSelect(question, mode) {
		return nil
	}
	c := s.corpus()
	answer, err := s.client.Complete(ctx, SelectionRequest(c.CategoryString(), question))
	if err != nil {
		log.Printf("CATEGORY_SELECT_FAILED | err=%v", err)
		return nil
	}
	keys := ParseSelection(answer, c)
	if len(keys) == 0 {
		log.Printf("CATEGORY_SELECT_NO_MATCH | answer=%q", answer)
	}
	return keys
}

// ParseSelection splits a comma separated answer and keeps at most two keys
// the corpus knows, in answer order, without duplicates.
func ParseSelection(answer string, c *corpus.Corpus) []string {
	var keys []string
	seen := make(map[string]bool)
	for _, tok := range strings.Split(answer, ",") {
		tok = strings.Trim(strings.TrimSpace(tok), "\"'`.")
		if tok == "" || seen[tok] {
			continue
		}
		if _, ok := c.Resolve(tok); !ok {
			continue
		}
		seen[tok] = true
		keys = append(keys, tok)
		if len(keys) == MaxSelected {
			break
		}
	}
	return keys
}

// DocsFor returns the statements behind the selected keys, in order.
func DocsFor(c *corpus.Corpus, keys []string) []string {
	var docs []string
	for _, k := range keys {
		if stmts, ok := c.Resolve(k); ok {
			docs = append(docs, stmts...)
		}
	}
	return docs
}
