// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/jeranaias/gqlpilot/internal/config"
	"github.com/jeranaias/gqlpilot/internal/prompt"
)

// Version information, overridden at build time.
var (
	Version   = "0.3.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command is the command to run.
type Command int

const (
	CmdTUI Command = iota
	CmdServe
	CmdChat
	CmdAsk
	CmdConfig
	CmdCorpus
	CmdSchema
	CmdHistory
	CmdVersion
	CmdHelp
)

// String returns the command name.
func (c Command) String() string {
	switch c {
	case CmdTUI:
		return "tui"
	case CmdServe:
		return "serve"
	case CmdChat:
		return "chat"
	case CmdAsk:
		return "ask"
	case CmdConfig:
		return "config"
	case CmdCorpus:
		return "corpus"
	case CmdSchema:
		return "schema"
	case CmdHistory:
		return "history"
	case CmdVersion:
		return "version"
	default:
		return "help"
	}
}

// Args holds parsed command line arguments.
type Args struct {
	// Global flags
	ConfigPath string
	JSON       bool
	Quiet      bool
	Mode       string
	Space      string
	URL        string
	NoCopilot  bool

	// Command specific
	Query      string
	Subcommand string
	Addr       string

	// Raw holds the arguments after the command name.
	Raw []string
}

const usageText = `gqlpilot - NebulaGraph query assistant

Usage:
  gqlpilot                        Start the chat + console TUI (default)
  gqlpilot serve [--addr ADDR]    Run the local chat service
  gqlpilot chat                   Line-based interactive chat
  gqlpilot ask "question"         Ask one question
  gqlpilot config [show|get|set|path|keys]
  gqlpilot corpus [stats|categories|lookup TITLE]
  gqlpilot schema [spaces|import FILE|show SPACE]
  gqlpilot history [list|show ID|export ID|delete ID|search TEXT]
  gqlpilot version

Global flags:
  --config FILE     Use FILE instead of ~/.gqlpilot/config.toml
  --mode MODE       ngql or cypher
  --space NAME      Space whose schema goes into prompts
  --url URL         Chat socket, e.g. ws://127.0.0.1:7001/api/chat
  --no-copilot      Disable console suggestions in the TUI
  --json            JSON output where supported
  -q, --quiet       Less output

Chat commands:
  /mode [ngql|cypher]   /space NAME   /run N   /save   /clear   /help   /quit

Environment:
  GQLPILOT_HOME, GQLPILOT_URL, GQLPILOT_MODE, GQLPILOT_SPACE,
  GQLPILOT_ADDR, GQLPILOT_AUTH_TOKEN, GQLPILOT_COPILOT,
  GQLPILOT_CORPUS_FILE, GQLPILOT_UPSTREAM_TIMEOUT

Version: %s
`

// PrintUsage writes the help text.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// PrintVersion writes version information.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "gqlpilot version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
	fmt.Fprintf(w, "  Go:         %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// =============================================================================
// PARSING
// =============================================================================

// Parse parses os.Args.
func Parse() (Command, Args) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs parses argv without the program name.
func ParseArgs(argv []string) (Command, Args) {
	remaining, args := parseGlobalFlags(argv)
	if args.Subcommand == "help" {
		return CmdHelp, args
	}
	if args.Subcommand == "version" {
		return CmdVersion, args
	}
	if len(remaining) == 0 {
		return CmdTUI, args
	}

	name := strings.ToLower(remaining[0])
	args.Raw = remaining[1:]
	if len(args.Raw) > 0 {
		args.Subcommand = strings.ToLower(args.Raw[0])
	}

	switch name {
	case "tui":
		return CmdTUI, args
	case "serve", "server":
		p := NewArgParser(args.Raw)
		args.Addr = p.Flag("addr")
		return CmdServe, args
	case "chat":
		return CmdChat, args
	case "ask", "a":
		args.Query = strings.TrimSpace(strings.Join(args.Raw, " "))
		return CmdAsk, args
	case "config", "cfg":
		return CmdConfig, args
	case "corpus", "docs":
		return CmdCorpus, args
	case "schema":
		return CmdSchema, args
	case "history", "hist":
		return CmdHistory, args
	case "version", "-v", "--version":
		return CmdVersion, args
	case "help", "-h", "--help":
		return CmdHelp, args
	}

	// An unknown first word is a question.
	args.Query = strings.TrimSpace(strings.Join(remaining, " "))
	args.Raw = remaining
	args.Subcommand = ""
	return CmdAsk, args
}

// parseGlobalFlags removes global flags wherever they appear.
func parseGlobalFlags(argv []string) ([]string, Args) {
	var args Args
	var remaining []string

	value := func(i *int) string {
		if *i+1 < len(argv) {
			*i++
			return argv[*i]
		}
		return ""
	}

	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		name, inline, hasInline := strings.Cut(arg, "=")
		take := func() string {
			if hasInline {
				return inline
			}
			return value(&i)
		}

		switch name {
		case "--config":
			args.ConfigPath = take()
		case "--mode":
			args.Mode = take()
		case "--space":
			args.Space = take()
		case "--url":
			args.URL = take()
		case "--json":
			args.JSON = true
		case "-q", "--quiet":
			args.Quiet = true
		case "--no-copilot":
			args.NoCopilot = true
		case "-h", "--help":
			if len(remaining) == 0 {
				args.Subcommand = "help"
			} else {
				remaining = append(remaining, arg)
			}
		case "-v", "--version":
			if len(remaining) == 0 {
				args.Subcommand = "version"
			} else {
				remaining = append(remaining, arg)
			}
		default:
			remaining = append(remaining, arg)
		}
	}
	return remaining, args
}

// =============================================================================
// DISPATCH
// =============================================================================

// LoadConfig reads the configuration and applies flag overrides.
func LoadConfig(args Args) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if args.ConfigPath != "" {
		cfg, err = config.LoadFromPath(args.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, &CommandError{Command: "config", Action: "load", Reason: "cannot read configuration", Err: err}
	}

	if args.Mode != "" {
		if _, err := prompt.ParseMode(args.Mode); err != nil {
			return nil, &UsageError{Message: err.Error()}
		}
		cfg.Client.Mode = args.Mode
	}
	if args.Space != "" {
		cfg.Client.Space = args.Space
	}
	if args.URL != "" {
		cfg.Client.URL = args.URL
	}
	if args.NoCopilot {
		cfg.Copilot.Enabled = false
	}
	return cfg, nil
}

// Run executes cmd. Output goes to stdout.
func Run(ctx context.Context, cmd Command, args Args) error {
	out := os.Stdout
	switch cmd {
	case CmdHelp:
		PrintUsage(out)
		return nil
	case CmdVersion:
		PrintVersion(out)
		return nil
	}

	cfg, err := LoadConfig(args)
	if err != nil {
		return err
	}

	switch cmd {
	case CmdTUI:
		return HandleTUI(ctx, cfg)
	case CmdServe:
		return HandleServe(ctx, cfg, args)
	case CmdChat:
		return HandleChat(ctx, cfg, args)
	case CmdAsk:
		return HandleAsk(ctx, out, cfg, args)
	case CmdConfig:
		return HandleConfig(out, cfg, args)
	case CmdCorpus:
		return HandleCorpus(out, cfg, args)
	case CmdSchema:
		return HandleSchema(ctx, out, cfg, args)
	case CmdHistory:
		return HandleHistory(out, cfg, args)
	}
	return &UsageError{Message: "unknown command " + cmd.String()}
}
