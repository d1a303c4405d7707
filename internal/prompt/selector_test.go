// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/gqlpilot/internal/corpus"
	"github.com/jeranaias/gqlpilot/internal/wire"
)

type fakeCompleter struct {
	answer string
	err    error
	calls  []wire.ChatRequest
}

func (f *fakeCompleter) Complete(_ context.Context, req wire.ChatRequest) (string, error) {
	f.calls = append(f.calls, req)
	return f.answer, f.err
}

func testCorpus() *corpus.Corpus {
	return corpus.Load([]corpus.Entry{
		{Path: "7.general-query-statements/3.go/", Title: "go", Statements: []string{"GO FROM \"player100\" OVER follow YIELD dst(edge);"}},
		{Path: "10.tag-statements/", Title: "create-tag", Statements: []string{"CREATE TAG player(name string);"}},
		{Path: "10.tag-statements/", Title: "describe-tag", Statements: []string{"DESCRIBE TAG player;"}},
	})
}

func TestSelector_Select(t *testing.T) {
	c := testCorpus()
	fc := &fakeCompleter{answer: " go, unknown ,create-tag, describe-tag"}
	sel := NewSelector(fc, func() *corpus.Corpus { return c })

	keys := sel.Select(context.Background(), "who does player100 follow", ModeNGQL)
	assert.Equal(t, []string{"go", "create-tag"}, keys)

	require.Len(t, fc.calls, 1)
	req := fc.calls[0]
	assert.False(t, req.Stream)
	assert.Equal(t, 0.0, req.Temperature)
	assert.Equal(t, 10, req.MaxTokens)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, wire.RoleSystem, req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, c.CategoryString())
	assert.Contains(t, req.Messages[0].Content, `the question: "who does player100 follow"`)
	assert.NotContains(t, c.CategoryString(), `"`)
}

func TestSelector_BackendErrorFallsBack(t *testing.T) {
	c := testCorpus()
	fc := &fakeCompleter{err: errors.New("backend error: code 1")}
	sel := NewSelector(fc, func() *corpus.Corpus { return c })

	keys := sel.Select(context.Background(), "find all friends of Bob", ModeNGQL)
	assert.Empty(t, keys)

	b := NewBuilder(DefaultConfig())
	req := b.Build("find all friends of Bob", nil, "S", DocsFor(c, keys), ModeNGQL)
	final := req.Messages[len(req.Messages)-2].Content
	assert.True(t, strings.HasPrefix(final, "Generate NebulaGraph query from my question."))
}

func TestSelector_SkipsMatchAndCypher(t *testing.T) {
	c := testCorpus()
	fc := &fakeCompleter{answer: "go"}
	sel := NewSelector(fc, func() *corpus.Corpus { return c })

	assert.Empty(t, sel.Select(context.Background(), "write a MATCH query for Bob", ModeNGQL))
	assert.Empty(t, sel.Select(context.Background(), "friends of Bob", ModeCypher))
	assert.Empty(t, fc.calls)
}

func TestParseSelection(t *testing.T) {
	c := testCorpus()
	tests := []struct {
		answer string
		want   []string
	}{
		{"go", []string{"go"}},
		{"go,go,create-tag", []string{"go", "create-tag"}},
		{"\"describe-tag\".", []string{"describe-tag"}},
		{"tag-statements/, go", []string{"tag-statements/", "go"}},
		{"nothing, at all", nil},
		{"", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseSelection(tt.answer, c), "ParseSelection(%q)", tt.answer)
	}
}

func TestDocsFor(t *testing.T) {
	c := testCorpus()
	docs := DocsFor(c, []string{"describe-tag", "go"})
	assert.Equal(t, []string{"DESCRIBE TAG player;", "GO FROM \"player100\" OVER follow YIELD dst(edge);"}, docs)
	assert.Empty(t, DocsFor(c, nil))
}
