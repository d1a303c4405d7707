// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package schema

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/gqlpilot/internal/sqlstore"
)

// fakeSource records calls and serves fixed definitions.
type fakeSource struct {
	switched []string
	tags     []TypeDef
	edges    []TypeDef
	vid      string
	err      error
}

func (f *fakeSource) SwitchSpace(_ context.Context, space string) error {
	f.switched = append(f.switched, space)
	return f.err
}
func (f *fakeSource) TagList(context.Context) ([]TypeDef, error) { return f.tags, nil }
func (f *fakeSource) EdgeList(context.Context) ([]TypeDef, error) { return f.edges, nil }
func (f *fakeSource) VidType(context.Context) (string, error) { return f.vid, nil }

func friendsSource() *fakeSource {
	return &fakeSource{
		tags:  []TypeDef{{Name: "person", Fields: []Field{{Field: "name", Type: "string"}}}},
		edges: []TypeDef{{Name: "friend"}},
		vid:   "FIXED_STRING(32)",
	}
}

func TestTypeDef_String(t *testing.T) {
	def := TypeDef{Name: "player", Fields: []Field{{Field: "name", Type: "string"}, {Field: "age", Type: "int64"}}}
	if got, want := def.String(), "player[name(string),age(int64)]"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if got, want := (TypeDef{Name: "follow"}).String(), "follow[]"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestSummarize_Format(t *testing.T) {
	src := friendsSource()
	s := NewSummarizer(src, Options{})

	got, err := s.Summarize(context.Background(), "social")
	require.NoError(t, err)
	assert.Equal(t, "tags:\nperson[name(string)]\nedges:\nfriend[]", got)
	assert.Equal(t, []string{"social"}, src.switched)

	again, err := s.Summarize(context.Background(), "social")
	require.NoError(t, err)
	assert.Equal(t, got, again, "re-fetch must be idempotent")
}

func TestSummarize_VidType(t *testing.T) {
	s := NewSummarizer(friendsSource(), Options{IncludeVidType: true})
	got, err := s.Summarize(context.Background(), "social")
	require.NoError(t, err)
	assert.Equal(t, "tags:\nperson[name(string)]\nedges:\nfriend[]\nspace vid type:\"FIXED_STRING(32)\"", got)
}

func TestSummarize_NoSpace(t *testing.T) {
	src := friendsSource()
	s := NewSummarizer(src, Options{})

	_, err := s.Summarize(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrSpaceUnavailable)
	assert.Empty(t, src.switched, "must not switch without a space")
	assert.Equal(t, NoSpacePlaceholder, s.SummarizeOrPlaceholder(context.Background(), ""))
}

func TestSummarize_FeatureGate(t *testing.T) {
	features := "spaceSchema"
	s := NewSummarizer(friendsSource(), Options{Features: func() string { return features }})

	_, err := s.Summarize(context.Background(), "social")
	require.NoError(t, err)

	features = ""
	_, err = s.Summarize(context.Background(), "social")
	assert.ErrorIs(t, err, ErrSchemaDisabled)
	assert.Equal(t, DisabledPlaceholder, s.SummarizeOrPlaceholder(context.Background(), "social"))
}

func TestSummarizeOrPlaceholder_SourceError(t *testing.T) {
	src := friendsSource()
	src.err = errors.New("connection refused")
	s := NewSummarizer(src, Options{})
	assert.Equal(t, NoSpacePlaceholder, s.SummarizeOrPlaceholder(context.Background(), "social"))
}

// =============================================================================
// CATALOG
// =============================================================================

func basketball() SpaceDef {
	return SpaceDef{
		Space:   "basketballplayer",
		VidType: "FIXED_STRING(32)",
		Tags: []TypeDef{
			{Name: "player", Fields: []Field{{Field: "name", Type: "string"}, {Field: "age", Type: "int64", Comment: "years"}}},
			{Name: "team", Fields: []Field{{Field: "name", Type: "string"}}},
		},
		Edges: []TypeDef{
			{Name: "follow", Fields: []Field{{Field: "degree", Type: "int64"}}},
			{Name: "serve", Fields: []Field{{Field: "start_year", Type: "int64"}, {Field: "end_year", Type: "int64"}}},
			{Name: "like"},
		},
	}
}

func TestCatalog_ImportAndSummarize(t *testing.T) {
	ctx := context.Background()
	cat, err := OpenCatalog(sqlstore.Memory)
	require.NoError(t, err)
	defer cat.Close()

	require.NoError(t, cat.Import(ctx, basketball()))

	s := NewSummarizer(cat, Options{IncludeVidType: true})
	got, err := s.Summarize(ctx, "basketballplayer")
	require.NoError(t, err)
	want := "tags:\nplayer[name(string),age(int64)]\nteam[name(string)]\n" +
		"edges:\nfollow[degree(int64)]\nserve[start_year(int64),end_year(int64)]\nlike[]\n" +
		"space vid type:\"FIXED_STRING(32)\""
	assert.Equal(t, want, got)
	assert.Equal(t, "basketballplayer", cat.CurrentSpace())

	tags, err := cat.TagList(ctx)
	require.NoError(t, err)
	assert.Equal(t, "years", tags[0].Fields[1].Comment)
}

func TestCatalog_ImportReplaces(t *testing.T) {
	ctx := context.Background()
	cat, err := OpenCatalog(sqlstore.Memory)
	require.NoError(t, err)
	defer cat.Close()

	require.NoError(t, cat.Import(ctx, basketball()))
	require.NoError(t, cat.Import(ctx, SpaceDef{Space: "basketballplayer", Tags: []TypeDef{{Name: "coach"}}}))
	require.NoError(t, cat.SwitchSpace(ctx, "basketballplayer"))

	tags, err := cat.TagList(ctx)
	require.NoError(t, err)
	assert.Equal(t, []TypeDef{{Name: "coach"}}, tags)

	edges, err := cat.EdgeList(ctx)
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestCatalog_UnknownSpace(t *testing.T) {
	ctx := context.Background()
	cat, err := OpenCatalog(sqlstore.Memory)
	require.NoError(t, err)
	defer cat.Close()

	err = cat.SwitchSpace(ctx, "missing")
	assert.ErrorIs(t, err, ErrSpaceUnavailable)

	_, err = cat.TagList(ctx)
	assert.ErrorIs(t, err, ErrSpaceUnavailable)
}

func TestCatalog_ImportFile(t *testing.T) {
	ctx := context.Background()
	cat, err := OpenCatalog(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	defer cat.Close()

	path := filepath.Join(t.TempDir(), "spaces.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"space": "b", "vidType": "INT64", "tags": [{"name": "t", "fields": [{"Field": "x", "Type": "int"}]}]},
		{"space": "a", "edges": [{"name": "e"}]}
	]`), 0600))

	names, err := cat.ImportFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, names)

	spaces, err := cat.Spaces(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, spaces)

	single := filepath.Join(t.TempDir(), "one.json")
	require.NoError(t, os.WriteFile(single, []byte(`{"space": "c"}`), 0600))
	names, err = cat.ImportFile(ctx, single)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, names)
}

func TestCatalog_Execute(t *testing.T) {
	ctx := context.Background()
	cat, err := OpenCatalog(sqlstore.Memory)
	require.NoError(t, err)
	defer cat.Close()
	require.NoError(t, cat.Import(ctx, basketball()))

	_, err = cat.Execute(ctx, "SHOW TAGS")
	assert.ErrorIs(t, err, ErrSpaceUnavailable)

	out, err := cat.Execute(ctx, "SHOW SPACES;")
	require.NoError(t, err)
	assert.Equal(t, "basketballplayer", out)

	out, err = cat.Execute(ctx, "use basketballplayer;")
	require.NoError(t, err)
	assert.Equal(t, "space: basketballplayer", out)
	assert.Equal(t, "basketballplayer", cat.CurrentSpace())

	out, err = cat.Execute(ctx, "SHOW EDGES")
	require.NoError(t, err)
	assert.Equal(t, "follow\nserve\nlike", out)

	out, err = cat.Execute(ctx, "DESCRIBE TAG player")
	require.NoError(t, err)
	assert.Equal(t, "name\tstring\nage\tint64", out)

	_, err = cat.Execute(ctx, "DESC EDGE missing")
	assert.Error(t, err)

	_, err = cat.Execute(ctx, "GO FROM 1 OVER follow")
	assert.ErrorIs(t, err, ErrNotExecutable)

	_, err = cat.Execute(ctx, "USE nowhere")
	assert.ErrorIs(t, err, ErrSpaceUnavailable)
}
