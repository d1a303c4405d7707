// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli parses the command line and runs gqlpilot's commands.
//
// # Commands
//
//   - tui (default): chat and console screen with copilot suggestions
//   - serve: the local chat service (/api/chat, /api/config/gpt, /metrics)
//   - chat: line-based interactive chat
//   - ask: one question, answer on stdout
//   - config, corpus, schema, history: maintenance commands
//
// # Usage
//
//	cmd, args := cli.Parse()
//	if err := cli.Run(ctx, cmd, args); err != nil {
//	    cli.DisplayError(err, args.JSON)
//	    os.Exit(cli.ExitCode(err))
//	}
package cli
