// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package schema

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
)

// =============================================================================
// ERRORS AND PLACEHOLDERS
// =============================================================================

var (
	// ErrSpaceUnavailable means no space is selected or it cannot be found.
	ErrSpaceUnavailable = errors.New("space unavailable")
	// ErrSchemaDisabled means the spaceSchema feature is turned off.
	ErrSchemaDisabled = errors.New("space schema feature disabled")
)

// Placeholder text substituted into prompts instead of a schema.
const (
	NoSpacePlaceholder  = "no space selected"
	DisabledPlaceholder = "space schema is disabled"
)

// FeatureSpaceSchema is the feature flag that enables schema summaries.
const FeatureSpaceSchema = "spaceSchema"

// =============================================================================
// TYPES
// =============================================================================

// Field is one property of a tag or edge type, as DESCRIBE reports it.
type Field struct {
	Field   string `json:"Field"`
	Type    string `json:"Type"`
	Default string `json:"Default,omitempty"`
	Comment string `json:"Comment,omitempty"`
}

// TypeDef is a tag or edge type with its ordered fields.
type TypeDef struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// String renders the type as Name[field1(Type1),field2(Type2)].
func (t TypeDef) String() string {
	parts := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		parts[i] = f.Field + "(" + f.Type + ")"
	}
	return t.Name + "[" + strings.Join(parts, ",") + "]"
}

// Source is the schema collaborator. SwitchSpace changes the working space
// for every consumer of the source; the list calls read that space.
type Source interface {
	SwitchSpace(ctx context.Context, space string) error
	TagList(ctx context.Context) ([]TypeDef, error)
	EdgeList(ctx context.Context) ([]TypeDef, error)
	VidType(ctx context.Context) (string, error)
}

// Options tunes the summary.
type Options struct {
	// IncludeVidType appends a `space vid type:"..."` line.
	IncludeVidType bool
	// Features returns the configured feature list. Nil means enabled.
	Features func() string
}

// =============================================================================
// SUMMARIZER
// =============================================================================

// Summarizer fetches and renders space schemas.
type Summarizer struct {
	src  Source
	opts Options
	// mu keeps switch-then-fetch sequences from interleaving.
	mu sync.Mutex
}

// NewSummarizer returns a Summarizer over src.
func NewSummarizer(src Source, opts Options) *Summarizer {
	return &Summarizer{src: src, opts: opts}
}

// Summarize switches to space and renders its tags and edges. It fails with
// ErrSpaceUnavailable when space is empty and ErrSchemaDisabled when the
// feature is off. Calling it repeatedly for the same space is safe.
func (s *Summarizer) Summarize(ctx context.Context, space string) (string, error) {
	if strings.TrimSpace(space) == "" {
		return "", ErrSpaceUnavailable
	}
	if s.opts.Features != nil && !strings.Contains(s.opts.Features(), FeatureSpaceSchema) {
		return "", ErrSchemaDisabled
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.src.SwitchSpace(ctx, space); err != nil {
		return "", fmt.Errorf("switch space %q: %w", space, err)
	}
	tags, err := s.src.TagList(ctx)
	if err != nil {
		return "", fmt.Errorf("list tags: %w", err)
	}
	edges, err := s.src.EdgeList(ctx)
	if err != nil {
		return "", fmt.Errorf("list edges: %w", err)
	}

	var b strings.Builder
	b.WriteString("tags:\n")
	b.WriteString(joinDefs(tags))
	b.WriteString("\nedges:\n")
	b.WriteString(joinDefs(edges))

	if s.opts.IncludeVidType {
		vid, err := s.src.VidType(ctx)
		if err != nil {
			return "", fmt.Errorf("vid type: %w", err)
		}
		fmt.Fprintf(&b, "\nspace vid type:%q", vid)
	}
	return b.String(), nil
}

// SummarizeOrPlaceholder never fails: problems are logged and replaced by
// the matching placeholder text.
func (s *Summarizer) SummarizeOrPlaceholder(ctx context.Context, space string) string {
	text, err := s.Summarize(ctx, space)
	switch {
	case err == nil:
		return text
	case errors.Is(err, ErrSchemaDisabled):
		return DisabledPlaceholder
	case errors.Is(err, ErrSpaceUnavailable):
		return NoSpacePlaceholder
	default:
		log.Printf("SCHEMA_SUMMARY_FAILED | space=%s err=%v", space, err)
		return NoSpacePlaceholder
	}
}

func joinDefs(defs []TypeDef) string {
	lines := make([]string, len(defs))
	for i, d := range defs {
		lines[i] = d.String()
	}
	return strings.Join(lines, "\n")
}
