// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/gqlpilot/internal/assistant"
	"github.com/jeranaias/gqlpilot/internal/chatclient"
	"github.com/jeranaias/gqlpilot/internal/config"
	"github.com/jeranaias/gqlpilot/internal/corpus"
	"github.com/jeranaias/gqlpilot/internal/prompt"
	"github.com/jeranaias/gqlpilot/internal/schema"
	"github.com/jeranaias/gqlpilot/internal/session"
	"github.com/jeranaias/gqlpilot/internal/storage"
	"github.com/jeranaias/gqlpilot/internal/wire"
)

// testConfig points every path at a fresh config directory.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv(config.HomeEnv, t.TempDir())
	return config.Default()
}

// =============================================================================
// PARSING
// =============================================================================

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		argv    []string
		wantCmd Command
		check   func(*testing.T, Args)
	}{
		{name: "no args opens the TUI", argv: nil, wantCmd: CmdTUI},
		{name: "help flag", argv: []string{"-h"}, wantCmd: CmdHelp},
		{name: "version flag", argv: []string{"--version"}, wantCmd: CmdVersion},
		{
			name:    "serve with addr",
			argv:    []string{"serve", "--addr", "0.0.0.0:9000"},
			wantCmd: CmdServe,
			check: func(t *testing.T, a Args) {
				if a.Addr != "0.0.0.0:9000" {
					t.Errorf("Addr = %q, want %q", a.Addr, "0.0.0.0:9000")
				}
			},
		},
		{
			name:    "ask joins words",
			argv:    []string{"ask", "show", "all", "tags"},
			wantCmd: CmdAsk,
			check: func(t *testing.T, a Args) {
				if a.Query != "show all tags" {
					t.Errorf("Query = %q, want %q", a.Query, "show all tags")
				}
			},
		},
		{
			name:    "unknown word is a question",
			argv:    []string{"how", "do", "I", "GO"},
			wantCmd: CmdAsk,
			check: func(t *testing.T, a Args) {
				if a.Query != "how do I GO" {
					t.Errorf("Query = %q, want %q", a.Query, "how do I GO")
				}
				if a.Subcommand != "" {
					t.Errorf("Subcommand = %q, want empty", a.Subcommand)
				}
			},
		},
		{
			name:    "global flags anywhere",
			argv:    []string{"history", "list", "--json", "--space=nba", "--mode", "cypher"},
			wantCmd: CmdHistory,
			check: func(t *testing.T, a Args) {
				if !a.JSON || a.Space != "nba" || a.Mode != "cypher" {
					t.Errorf("got JSON=%v Space=%q Mode=%q", a.JSON, a.Space, a.Mode)
				}
				if a.Subcommand != "list" {
					t.Errorf("Subcommand = %q, want %q", a.Subcommand, "list")
				}
			},
		},
		{
			name:    "help after a command stays with it",
			argv:    []string{"chat", "--help"},
			wantCmd: CmdChat,
			check: func(t *testing.T, a Args) {
				if len(a.Raw) != 1 || a.Raw[0] != "--help" {
					t.Errorf("Raw = %v, want [--help]", a.Raw)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args := ParseArgs(tt.argv)
			if cmd != tt.wantCmd {
				t.Fatalf("command = %v, want %v", cmd, tt.wantCmd)
			}
			if tt.check != nil {
				tt.check(t, args)
			}
		})
	}
}

func TestArgParser(t *testing.T) {
	p := NewArgParser([]string{"show", "--json", "abc", "--output", "out.md", "--", "--literal"}, "json")

	if p.Subcommand() != "show" {
		t.Errorf("Subcommand() = %q, want %q", p.Subcommand(), "show")
	}
	if !p.BoolFlag("json") {
		t.Error("BoolFlag(json) should be true")
	}
	if p.Positional(1) != "abc" {
		t.Errorf("Positional(1) = %q, want %q", p.Positional(1), "abc")
	}
	if p.Flag("output") != "out.md" {
		t.Errorf("Flag(output) = %q, want %q", p.Flag("output"), "out.md")
	}
	if p.Positional(2) != "--literal" {
		t.Errorf("Positional(2) = %q, want %q", p.Positional(2), "--literal")
	}
	if p.FlagIntOrDefault("limit", 7) != 7 {
		t.Error("FlagIntOrDefault should fall back")
	}
}

func TestParseBoolString(t *testing.T) {
	for in, want := range map[string]bool{"yes": true, "ON": true, "0": false, "n": false} {
		got, err := ParseBoolString(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseBoolString("maybe")
	assert.Error(t, err)
}

func TestLoadConfig_Overrides(t *testing.T) {
	testConfig(t)
	cfg, err := LoadConfig(Args{Mode: "cypher", Space: "nba", NoCopilot: true})
	require.NoError(t, err)
	assert.Equal(t, "cypher", cfg.Client.Mode)
	assert.Equal(t, "nba", cfg.Client.Space)
	assert.False(t, cfg.Copilot.Enabled)

	_, err = LoadConfig(Args{Mode: "sql"})
	assert.Equal(t, ExitUsageError, ExitCode(err))
}

// =============================================================================
// ERRORS
// =============================================================================

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitSuccess},
		{errors.New("boom"), ExitGeneralError},
		{usage("bad", ""), ExitUsageError},
		{assistant.ErrEmptyQuestion, ExitUsageError},
		{&NotFoundError{Resource: "x", ID: "y"}, ExitNotFoundError},
		{fmt.Errorf("load: %w", storage.ErrTranscriptNotFound), ExitNotFoundError},
		{schema.ErrSpaceUnavailable, ExitNotFoundError},
		{context.DeadlineExceeded, ExitTimeoutError},
		{reported(usage("bad", "")), ExitUsageError},
	}
	for _, tt := range tests {
		if got := ExitCode(tt.err); got != tt.want {
			t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestDisplayError(t *testing.T) {
	var buf bytes.Buffer
	displayError(&buf, schema.ErrSpaceUnavailable, false)
	assert.Contains(t, buf.String(), "schema import")

	buf.Reset()
	displayError(&buf, usage("bad flag", ""), true)
	var obj map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &obj))
	assert.Equal(t, float64(ExitUsageError), obj["exit_code"])

	buf.Reset()
	displayError(&buf, reported(errors.New("already shown")), false)
	assert.Empty(t, buf.String())
}

// =============================================================================
// COMMANDS
// =============================================================================

func TestHandleCorpus(t *testing.T) {
	cfg := testConfig(t)
	var buf bytes.Buffer

	require.NoError(t, HandleCorpus(&buf, cfg, Args{Subcommand: "stats", JSON: true}))
	var stats map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &stats))
	assert.Equal(t, "embedded", stats["source"])
	assert.Equal(t, float64(corpus.Default().Len()), stats["entries"])

	buf.Reset()
	require.NoError(t, HandleCorpus(&buf, cfg, Args{Subcommand: "lookup", Raw: []string{"lookup", "go"}}))
	assert.Contains(t, buf.String(), "GO")

	err := HandleCorpus(&buf, cfg, Args{Subcommand: "lookup", Raw: []string{"lookup", "no-such-entry"}})
	assert.Equal(t, ExitNotFoundError, ExitCode(err))

	err = HandleCorpus(&buf, cfg, Args{Subcommand: "lookup", Raw: []string{"lookup"}})
	assert.Equal(t, ExitUsageError, ExitCode(err))
}

func TestHandleCorpus_OverrideFile(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(t.TempDir(), "corpus.json")
	raw := `[{"path":"a/","title":"hello","statements":["RETURN 1;"]}]`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0600))
	cfg.Paths.CorpusFile = path

	var buf bytes.Buffer
	require.NoError(t, HandleCorpus(&buf, cfg, Args{Subcommand: "search", Raw: []string{"search", "HEL"}}))
	assert.Contains(t, buf.String(), "hello")
}

func TestHandleSchema(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()
	def := schema.SpaceDef{
		Space:   "nba",
		VidType: "FIXED_STRING(32)",
		Tags:    []schema.TypeDef{{Name: "player", Fields: []schema.Field{{Field: "name", Type: "string"}}}},
		Edges:   []schema.TypeDef{{Name: "follow"}},
	}
	data, err := json.Marshal(def)
	require.NoError(t, err)
	file := filepath.Join(t.TempDir(), "nba.json")
	require.NoError(t, os.WriteFile(file, data, 0600))

	var buf bytes.Buffer
	require.NoError(t, HandleSchema(ctx, &buf, cfg, Args{Subcommand: "import", Raw: []string{"import", file}}))
	assert.Contains(t, buf.String(), "nba")

	buf.Reset()
	require.NoError(t, HandleSchema(ctx, &buf, cfg, Args{Subcommand: "spaces"}))
	assert.Equal(t, "nba\n", buf.String())

	buf.Reset()
	require.NoError(t, HandleSchema(ctx, &buf, cfg, Args{Subcommand: "show", Raw: []string{"show", "nba"}}))
	assert.Contains(t, buf.String(), "player[name(string)]")
	assert.Contains(t, buf.String(), `space vid type:"FIXED_STRING(32)"`)

	buf.Reset()
	require.NoError(t, HandleSchema(ctx, &buf, cfg, Args{Subcommand: "exec", Raw: []string{"exec", "USE nba;", "SHOW", "EDGES"}}))
	assert.Equal(t, "space: nba\nfollow\n", buf.String())

	err = HandleSchema(ctx, &buf, cfg, Args{Subcommand: "exec", Raw: []string{"exec", "MATCH (v) RETURN v"}})
	assert.Equal(t, ExitUsageError, ExitCode(err))

	err = HandleSchema(ctx, &buf, cfg, Args{Subcommand: "show", Raw: []string{"show", "missing"}})
	assert.Equal(t, ExitNotFoundError, ExitCode(err))
}

func TestHandleHistory(t *testing.T) {
	cfg := testConfig(t)
	dir, err := config.ResolvePath(cfg.Paths.TranscriptsDir)
	require.NoError(t, err)
	store, err := storage.NewTranscriptStore(dir)
	require.NoError(t, err)

	sess := session.New()
	require.NoError(t, sess.AppendUserTurn("who does player100 follow"))
	require.NoError(t, sess.BeginAssistantTurn())
	require.NoError(t, sess.ApplyDelta("```ngql\nGO FROM \"player100\" OVER follow;\n```"))
	require.NoError(t, sess.CompleteTurn())
	id, err := store.Save(storage.FromSession(sess, "ngql", "nba"))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, HandleHistory(&buf, cfg, Args{Subcommand: "list"}))
	assert.Contains(t, buf.String(), id[:8])
	assert.Contains(t, buf.String(), "who does player100 follow")

	buf.Reset()
	require.NoError(t, HandleHistory(&buf, cfg, Args{Subcommand: "show", Raw: []string{"show", "#1"}}))
	assert.Contains(t, buf.String(), "**Assistant**")

	out := filepath.Join(t.TempDir(), "t.md")
	buf.Reset()
	require.NoError(t, HandleHistory(&buf, cfg, Args{Subcommand: "export", Raw: []string{"export", id[:6], "--output", out}}))
	md, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(md), "Space: nba")

	buf.Reset()
	require.NoError(t, HandleHistory(&buf, cfg, Args{Subcommand: "search", Raw: []string{"search", "FOLLOW"}}))
	assert.Contains(t, buf.String(), id[:8])

	require.NoError(t, HandleHistory(&buf, cfg, Args{Subcommand: "delete", Raw: []string{"delete", id}}))
	err = HandleHistory(&buf, cfg, Args{Subcommand: "show", Raw: []string{"show", id}})
	assert.Equal(t, ExitNotFoundError, ExitCode(err))
}

func TestHandleConfig(t *testing.T) {
	cfg := testConfig(t)
	var buf bytes.Buffer

	require.NoError(t, HandleConfig(&buf, cfg, Args{Subcommand: "set", Raw: []string{"set", "client.mode", "cypher"}}))

	path, err := config.ConfigPath()
	require.NoError(t, err)
	saved, err := config.LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "cypher", saved.Client.Mode)

	err = HandleConfig(&buf, cfg, Args{Subcommand: "set", Raw: []string{"set", "client.mode", "sql"}})
	assert.Equal(t, ExitConfigError, ExitCode(err))

	buf.Reset()
	cfg.Server.AuthToken = "secret"
	require.NoError(t, HandleConfig(&buf, cfg, Args{Subcommand: "get", Raw: []string{"get", "server.auth_token"}}))
	assert.Equal(t, "[REDACTED]\n", buf.String())

	buf.Reset()
	require.NoError(t, HandleConfig(&buf, cfg, Args{Subcommand: "path"}))
	assert.Equal(t, path+"\n", buf.String())

	err = HandleConfig(&buf, cfg, Args{Subcommand: "get", Raw: []string{"get", "no.such"}})
	assert.Equal(t, ExitUsageError, ExitCode(err))
}

// =============================================================================
// CHAT REPL
// =============================================================================

type fakeStreamer struct {
	deltas []string
	err    error
}

func (f *fakeStreamer) Complete(context.Context, wire.ChatRequest) (string, error) {
	return "", nil
}

func (f *fakeStreamer) Send(_ context.Context, _ wire.ChatRequest, onEvent func(chatclient.Event)) error {
	for _, d := range f.deltas {
		onEvent(chatclient.Event{Kind: chatclient.EventDelta, Text: d})
	}
	if f.err != nil {
		onEvent(chatclient.Event{Kind: chatclient.EventError, Err: f.err})
		return f.err
	}
	onEvent(chatclient.Event{Kind: chatclient.EventDone})
	return nil
}

type placeholderSchema struct{}

func (placeholderSchema) SummarizeOrPlaceholder(context.Context, string) string { return "" }

type recordingExecutor struct {
	space string
	stmts []string
}

func (e *recordingExecutor) Execute(_ context.Context, stmt string) (string, error) {
	e.stmts = append(e.stmts, stmt)
	if strings.HasPrefix(stmt, "USE nba") {
		e.space = "nba"
		return "space: nba", nil
	}
	return "", errors.New("syntax error")
}

func (e *recordingExecutor) CurrentSpace() string { return e.space }

func newTestREPL(t *testing.T, client *fakeStreamer, store *storage.TranscriptStore, exec *recordingExecutor) (*chatREPL, *bytes.Buffer) {
	t.Helper()
	c := corpus.Load(nil)
	asst := assistant.New(assistant.Config{Mode: prompt.ModeNGQL}, client, session.New(),
		placeholderSchema{}, func() *corpus.Corpus { return c })
	var buf bytes.Buffer
	r := newChatREPL(&buf, asst, store, exec)
	t.Cleanup(r.close)
	return r, &buf
}

func TestChatREPL_StreamsAndRuns(t *testing.T) {
	client := &fakeStreamer{deltas: []string{"Switch first:\n", "```ngql\nUSE nba;\n```"}}
	exec := &recordingExecutor{}
	r, buf := newTestREPL(t, client, nil, exec)
	ctx := context.Background()

	assert.False(t, r.handle(ctx, "pick the nba space"))
	out := buf.String()
	assert.Contains(t, out, "Switch first:\n```ngql\nUSE nba;\n```")
	assert.Contains(t, out, "[1] /run 1")

	buf.Reset()
	assert.False(t, r.handle(ctx, "/run 1"))
	require.Len(t, exec.stmts, 1)
	assert.Contains(t, buf.String(), "space: nba")
	assert.Equal(t, "nba", r.asst.Space())

	buf.Reset()
	r.handle(ctx, "/run 2")
	assert.Contains(t, buf.String(), "no runnable code span")

	buf.Reset()
	r.handle(ctx, "/run x")
	assert.Contains(t, buf.String(), "usage: /run N")
}

func TestChatREPL_FailedAnswerKeepsPartialText(t *testing.T) {
	client := &fakeStreamer{deltas: []string{"partial"}, err: errors.New("upstream closed")}
	r, buf := newTestREPL(t, client, nil, &recordingExecutor{})

	r.handle(context.Background(), "hello")
	assert.Contains(t, buf.String(), "partial")
	assert.Contains(t, buf.String(), "upstream closed")

	last, ok := r.latestAnswer()
	require.True(t, ok)
	assert.Equal(t, "partial", last.Content)
	assert.True(t, last.Failed())
}

func TestChatREPL_Commands(t *testing.T) {
	store, err := storage.NewTranscriptStore(t.TempDir())
	require.NoError(t, err)
	r, buf := newTestREPL(t, &fakeStreamer{deltas: []string{"ok"}}, store, &recordingExecutor{})
	ctx := context.Background()

	r.handle(ctx, "/mode cypher")
	assert.Equal(t, prompt.ModeCypher, r.asst.Mode())
	r.handle(ctx, "/mode sql")
	assert.Contains(t, buf.String(), "[error]")

	r.handle(ctx, "/space nba")
	assert.Equal(t, "nba", r.asst.Space())

	buf.Reset()
	r.handle(ctx, "/run")
	assert.Contains(t, buf.String(), "no answer to run from")

	r.handle(ctx, "hi")
	buf.Reset()
	r.handle(ctx, "/save")
	assert.Contains(t, buf.String(), "saved ")
	metas, err := store.List()
	require.NoError(t, err)
	assert.Len(t, metas, 1)

	r.handle(ctx, "/clear")
	assert.Empty(t, r.asst.Session().Snapshot().Messages)

	buf.Reset()
	r.handle(ctx, "/bogus")
	assert.Contains(t, buf.String(), "unknown command /bogus")

	assert.True(t, r.handle(ctx, "/quit"))
	assert.True(t, r.handle(ctx, "exit"))
	assert.False(t, r.handle(ctx, "   "))
}
