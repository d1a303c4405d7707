// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"os"
	"sync"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// =============================================================================
// CONSOLE DETECTION
// =============================================================================

// console is what gqlpilot learned about its terminal at startup. Answers
// are rendered as markdown only when stdout is a color-capable terminal;
// pipes get the raw streamed text so `gqlpilot ask ... | less` stays clean.
type console struct {
	stdinTTY  bool
	stdoutTTY bool
	profile   termenv.Profile
	dark      bool
}

const (
	fallbackWidth = 80
	narrowestWrap = 40
)

var (
	detected   console
	detectOnce sync.Once
)

func detectConsole() console {
	detectOnce.Do(func() {
		detected.stdinTTY = term.IsTerminal(int(os.Stdin.Fd()))
		detected.stdoutTTY = term.IsTerminal(int(os.Stdout.Fd()))
		detected.profile = termenv.Ascii
		// NO_COLOR beats FORCE_COLOR.
		if os.Getenv("NO_COLOR") == "" && (detected.stdoutTTY || os.Getenv("FORCE_COLOR") != "") {
			detected.profile = termenv.ColorProfile()
			detected.dark = termenv.HasDarkBackground()
		}
	})
	return detected
}

// IsTTY reports whether questions can be typed interactively.
func IsTTY() bool { return detectConsole().stdinTTY }

// IsStdoutTTY reports whether answers land on a terminal.
func IsStdoutTTY() bool { return detectConsole().stdoutTTY }

// ColorProfile is the lipgloss/glamour color profile for stdout.
func ColorProfile() termenv.Profile { return detectConsole().profile }

// GlamourStyle picks the markdown style for rendered answers.
func GlamourStyle() string {
	c := detectConsole()
	switch {
	case c.profile == termenv.Ascii:
		return "notty"
	case c.dark:
		return "dark"
	}
	return "light"
}

// TerminalWidth is the wrap width for rendered answers.
func TerminalWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return fallbackWidth
	}
	return max(w, narrowestWrap)
}

// RequiresTTY fails for the REPL and TUI when stdin is redirected.
func RequiresTTY(operation string) error {
	if IsTTY() {
		return nil
	}
	return &TTYRequiredError{Operation: operation}
}

// TTYRequiredError points piped callers at `gqlpilot ask`.
type TTYRequiredError struct {
	Operation string
}

func (e *TTYRequiredError) Error() string {
	op := e.Operation
	if op == "" {
		op = "read input"
	}
	return "stdin is not a terminal; cannot " + op + " interactively (pipe questions to `gqlpilot ask` instead)"
}
