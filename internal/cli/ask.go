// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/gqlpilot/internal/config"
	"github.com/jeranaias/gqlpilot/internal/session"
	"github.com/jeranaias/gqlpilot/internal/wire"
)

// AskResult is the JSON output of the ask command.
type AskResult struct {
	Question  string   `json:"question"`
	Mode      string   `json:"mode"`
	Space     string   `json:"space,omitempty"`
	Answer    string   `json:"answer"`
	CodeSpans []string `json:"code_spans,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// HandleAsk answers one question. The question comes from the arguments or,
// when stdin is piped, from stdin. On a terminal the finished answer is
// rendered as markdown; otherwise it streams raw.
func HandleAsk(ctx context.Context, out io.Writer, cfg *config.Config, args Args) error {
	question := args.Query
	if question == "" && !IsTTY() {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return err
		}
		question = strings.TrimSpace(string(data))
	}
	if question == "" {
		return usage("ask needs a question", `gqlpilot ask "show all tags"`)
	}

	app, err := OpenApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	if err := app.Connect(ctx); err != nil {
		return err
	}

	pretty := !args.JSON && IsStdoutTTY()
	if !args.JSON && !pretty {
		printer := &streamPrinter{w: out}
		unsub := app.Session.Subscribe(printer.onSnapshot)
		defer unsub()
	}

	askErr := app.Assistant.Ask(ctx, question)
	answer := lastAnswer(app.Session.Snapshot())

	switch {
	case args.JSON:
		res := AskResult{
			Question:  question,
			Mode:      string(app.Assistant.Mode()),
			Space:     app.Assistant.Space(),
			Answer:    answer.Content,
			CodeSpans: session.CodeSpans(answer),
		}
		if askErr != nil {
			res.Error = askErr.Error()
		}
		if err := writeJSON(out, res); err != nil {
			return err
		}
		if askErr != nil {
			return reported(askErr)
		}
		return nil
	case pretty:
		fmt.Fprint(out, renderMarkdown(answer.Content, TerminalWidth()))
	default:
		fmt.Fprintln(out)
	}
	return askErr
}

func lastAnswer(snap session.Snapshot) session.Message {
	for i := len(snap.Messages) - 1; i >= 0; i-- {
		if snap.Messages[i].Role == wire.RoleAssistant {
			return snap.Messages[i]
		}
	}
	return session.Message{}
}

// renderMarkdown renders md for the terminal, falling back to the raw text.
func renderMarkdown(md string, width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(GlamourStyle()),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md + "\n"
	}
	rendered, err := r.Render(md)
	if err != nil {
		return md + "\n"
	}
	return rendered
}
