// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"strings"

	"github.com/jeranaias/gqlpilot/internal/util"
	"github.com/jeranaias/gqlpilot/internal/wire"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Defaults for chat requests.
const (
	DefaultDocLength    = 1000
	DefaultHistoryTurns = 5
	DefaultHistoryTail  = 100
	ChatTemperature     = 0.5
	ChatMaxTokens       = 200
)

// Config bounds the size of built prompts.
type Config struct {
	// DocLength caps the combined document text, in characters.
	DocLength int
	// HistoryTurns is how many trailing turns are replayed.
	HistoryTurns int
	// HistoryTail is how many trailing characters of each turn are kept.
	HistoryTail int
}

// DefaultConfig returns the standard limits.
func DefaultConfig() Config {
	return Config{
		DocLength:    DefaultDocLength,
		HistoryTurns: DefaultHistoryTurns,
		HistoryTail:  DefaultHistoryTail,
	}
}

func (c Config) withDefaults() Config {
	if c.DocLength <= 0 {
		c.DocLength = DefaultDocLength
	}
	if c.HistoryTurns <= 0 {
		c.HistoryTurns = DefaultHistoryTurns
	}
	if c.HistoryTail <= 0 {
		c.HistoryTail = DefaultHistoryTail
	}
	return c
}

// =============================================================================
// BUILDER
// =============================================================================

// Builder composes chat requests. It holds no mutable state.
type Builder struct {
	cfg Config
}

// NewBuilder returns a Builder; zero fields of cfg take their defaults.
func NewBuilder(cfg Config) *Builder {
	return &Builder{cfg: cfg.withDefaults()}
}

// Config returns the effective limits.
func (b *Builder) Config() Config {
	return b.cfg
}

// Build returns the streaming chat request for question. history is the
// conversation before this question; docs are the statements of the
// selected categories. With no docs the default MatchTemplate is used.
func (b *Builder) Build(question string, history []wire.Message, schemaText string, docs []string, mode Mode) wire.ChatRequest {
	msgs := []wire.Message{{Role: wire.RoleSystem, Content: SystemInstruction(mode)}}
	if mode != ModeCypher {
		msgs = append(msgs, b.History(history)...)
	}
	msgs = append(msgs,
		wire.Message{Role: wire.RoleUser, Content: LanguageTurn(question)},
		wire.Message{Role: wire.RoleUser, Content: MarkdownInstruction},
		wire.Message{Role: wire.RoleUser, Content: b.PromptText(question, schemaText, docs)},
		wire.Placeholder(),
	)
	return wire.ChatRequest{
		Stream:      true,
		Temperature: ChatTemperature,
		MaxTokens:   ChatMaxTokens,
		Messages:    msgs,
	}
}

// PromptText is the fully substituted final turn.
func (b *Builder) PromptText(question, schemaText string, docs []string) string {
	template := MatchTemplate
	if doc := b.DocString(docs); doc != "" {
		template = DocTemplate(doc)
	}
	return Fill(template, schemaText, question)
}

// History keeps the last HistoryTurns turns, each trimmed and cut to its
// last HistoryTail characters.
func (b *Builder) History(history []wire.Message) []wire.Message {
	start := len(history) - b.cfg.HistoryTurns
	if start < 0 {
		start = 0
	}
	out := make([]wire.Message, 0, len(history)-start)
	for _, m := range history[start:] {
		out = append(out, wire.Message{
			Role:    m.Role,
			Content: util.TailRunes(strings.TrimSpace(m.Content), b.cfg.HistoryTail),
		})
	}
	return out
}

// DocString concatenates statements, one per line, stopping once the text
// passes DocLength, then collapses whitespace and cuts it to DocLength.
func (b *Builder) DocString(docs []string) string {
	var sb strings.Builder
	n := 0
	for _, d := range docs {
		if n > b.cfg.DocLength {
			break
		}
		sb.WriteString(d)
		sb.WriteString("\n")
		n += util.RuneLen(d) + 1
	}
	return util.HeadRunes(util.CollapseSpace(sb.String()), b.cfg.DocLength)
}

// =============================================================================
// LANGUAGE
// =============================================================================

// ContainsCJK reports whether s has a rune in U+4E00..U+9FA5.
func ContainsCJK(s string) bool {
	for _, r := range s {
		if r >= 0x4E00 && r <= 0x9FA5 {
			return true
		}
	}
	return false
}

// LanguageTurn asks for a Chinese reply to Chinese questions and English
// otherwise.
func LanguageTurn(question string) string {
	if ContainsCJK(question) {
		return LanguageChinese
	}
	return LanguageEnglish
}
