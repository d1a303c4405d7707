// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/peterh/liner"

	"github.com/jeranaias/gqlpilot/internal/assistant"
	"github.com/jeranaias/gqlpilot/internal/config"
	"github.com/jeranaias/gqlpilot/internal/prompt"
	"github.com/jeranaias/gqlpilot/internal/session"
	"github.com/jeranaias/gqlpilot/internal/storage"
	"github.com/jeranaias/gqlpilot/internal/ui/chat"
	"github.com/jeranaias/gqlpilot/internal/util"
	"github.com/jeranaias/gqlpilot/internal/wire"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for the chat REPL.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI and loads the saved history.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}
	c := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	c.LoadHistory()
	return c
}

// LoadHistory loads input history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		_, _ = c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads one line. Non-blank lines are added to the history.
func (c *ChatCLI) ReadInput(p string) (string, error) {
	input, err := c.line.Prompt(p)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory writes the history file, owner read/write only.
func (c *ChatCLI) SaveHistory() {
	if err := config.EnsureConfigDir(); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = c.line.WriteHistory(f)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// COMMAND
// =============================================================================

// HandleChat runs the line-based chat. Answers stream to stdout as they
// arrive; Ctrl+C during an answer cancels it, at the prompt it exits.
func HandleChat(ctx context.Context, cfg *config.Config, args Args) error {
	if err := RequiresTTY("chat"); err != nil {
		return err
	}

	app, err := OpenApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	if err := app.Connect(ctx); err != nil {
		return err
	}

	repl := newChatREPL(os.Stdout, app.Assistant, app.Transcripts, app.Catalog)
	defer repl.close()

	input := NewChatCLI()
	defer input.Close()

	if !args.Quiet {
		repl.printWelcome()
	}
	for {
		line, err := input.ReadInput(PromptStyle.Render("gqlpilot> "))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(repl.out)
				return nil
			}
			return err
		}
		if repl.handle(ctx, line) {
			return nil
		}
	}
}

// =============================================================================
// REPL
// =============================================================================

// chatREPL executes one input line at a time against an assistant.
type chatREPL struct {
	out   io.Writer
	asst  *assistant.Assistant
	store *storage.TranscriptStore
	exec  chat.Executor

	printer *streamPrinter
	unsub   func()
}

func newChatREPL(out io.Writer, asst *assistant.Assistant, store *storage.TranscriptStore, exec chat.Executor) *chatREPL {
	r := &chatREPL{
		out:     out,
		asst:    asst,
		store:   store,
		exec:    exec,
		printer: &streamPrinter{w: out},
	}
	r.unsub = asst.Session().Subscribe(r.printer.onSnapshot)
	return r
}

func (r *chatREPL) close() {
	r.unsub()
}

func (r *chatREPL) printWelcome() {
	fmt.Fprintln(r.out, TitleStyle.Render("gqlpilot chat"))
	fmt.Fprintln(r.out, renderField("Mode", string(r.asst.Mode())))
	space := r.asst.Space()
	if space == "" {
		space = "(none)"
	}
	fmt.Fprintln(r.out, renderField("Space", space))
	fmt.Fprintln(r.out, DimStyle.Render("Type /help for commands, Ctrl+D to exit."))
	fmt.Fprintln(r.out)
}

// handle runs one line and reports whether the REPL should exit.
func (r *chatREPL) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return false
	case strings.EqualFold(line, "exit"), strings.EqualFold(line, "quit"):
		return true
	case strings.HasPrefix(line, "/"):
		return r.command(ctx, line)
	}
	r.ask(ctx, line)
	return false
}

func (r *chatREPL) ask(ctx context.Context, question string) {
	askCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	err := r.asst.Ask(askCtx, question)
	fmt.Fprintln(r.out)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(r.out, WarningStyle.Render("[canceled]"))
			return
		}
		fmt.Fprintf(r.out, "%s %v\n", ErrorStyle.Render("[error]"), err)
		return
	}

	if last, ok := r.latestAnswer(); ok {
		for i, span := range session.CodeSpans(last) {
			fmt.Fprintf(r.out, "%s %s\n", DimStyle.Render(fmt.Sprintf("[%d] /run %d", i+1, i+1)),
				GQLStyle.Render(util.TruncateRunes(util.CollapseSpace(span), 60)))
		}
	}
}

func (r *chatREPL) command(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	name, args := strings.ToLower(fields[0]), fields[1:]

	switch name {
	case "/quit", "/exit":
		return true

	case "/help":
		r.note("/mode [ngql|cypher]  /space NAME  /run N  /save  /clear  /quit")

	case "/mode":
		if len(args) > 0 {
			mode, err := prompt.ParseMode(args[0])
			if err != nil {
				r.fail(err)
				return false
			}
			r.asst.SetMode(mode)
		}
		r.note("mode: " + string(r.asst.Mode()))

	case "/space":
		if len(args) > 0 {
			r.asst.SetSpace(args[0])
		}
		r.note("space: " + r.asst.Space())

	case "/clear":
		r.asst.Reset()
		r.note("conversation cleared")

	case "/save":
		if r.store == nil {
			r.note("transcripts are not configured")
			return false
		}
		id, err := r.store.Save(storage.FromSession(r.asst.Session(), string(r.asst.Mode()), r.asst.Space()))
		if err != nil {
			r.fail(err)
			return false
		}
		r.note("saved " + util.HeadRunes(id, 8))

	case "/run":
		r.run(ctx, args)

	default:
		r.note("unknown command " + name + ", try /help")
	}
	return false
}

// run executes the Nth code span of the latest answer, counting from 1.
func (r *chatREPL) run(ctx context.Context, args []string) {
	n := 1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 1 {
			r.note("usage: /run N")
			return
		}
		n = v
	}
	last, ok := r.latestAnswer()
	if !ok {
		r.note("no answer to run from")
		return
	}
	err := session.RunInConsole(session.ConsoleFunc(func(gql string) {
		r.execute(ctx, gql)
	}), last, n-1)
	if err != nil {
		r.fail(err)
	}
}

func (r *chatREPL) execute(ctx context.Context, gql string) {
	fmt.Fprintln(r.out, PromptStyle.Render("nebula> ")+GQLStyle.Render(gql))
	if r.exec == nil {
		r.note("no console executor configured")
		return
	}
	result, err := r.exec.Execute(ctx, gql)
	if err != nil {
		r.fail(err)
		return
	}
	if result != "" {
		fmt.Fprintln(r.out, result)
	}
	if sr, ok := r.exec.(interface{ CurrentSpace() string }); ok && sr.CurrentSpace() != "" {
		r.asst.SetSpace(sr.CurrentSpace())
	}
}

func (r *chatREPL) latestAnswer() (session.Message, bool) {
	msgs := r.asst.Session().Snapshot().Messages
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == wire.RoleAssistant {
			return msgs[i], true
		}
	}
	return session.Message{}, false
}

func (r *chatREPL) note(s string) {
	fmt.Fprintln(r.out, DimStyle.Render(s))
}

func (r *chatREPL) fail(err error) {
	fmt.Fprintf(r.out, "%s %v\n", ErrorStyle.Render("[error]"), err)
}

// =============================================================================
// STREAMING
// =============================================================================

// streamPrinter writes the unseen tail of the pending assistant turn. Turn
// content only grows, so a byte offset per message ID is enough.
type streamPrinter struct {
	w io.Writer

	mu      sync.Mutex
	id      string
	printed int
}

func (p *streamPrinter) onSnapshot(snap session.Snapshot) {
	last, ok := snap.Last()
	if !ok || last.Role != wire.RoleAssistant {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if last.ID != p.id {
		if !last.Loading() && last.Content != "" {
			// A restored or finished turn seen for the first time.
			p.id, p.printed = last.ID, len(last.Content)
			return
		}
		p.id, p.printed = last.ID, 0
	}
	if len(last.Content) > p.printed {
		fmt.Fprint(p.w, last.Content[p.printed:])
		p.printed = len(last.Content)
	}
}
