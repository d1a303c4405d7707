// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jeranaias/gqlpilot/internal/assistant"
	"github.com/jeranaias/gqlpilot/internal/chatclient"
	"github.com/jeranaias/gqlpilot/internal/config"
	"github.com/jeranaias/gqlpilot/internal/schema"
	"github.com/jeranaias/gqlpilot/internal/storage"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess       = 0
	ExitGeneralError  = 1
	ExitUsageError    = 2
	ExitConfigError   = 3
	ExitNetworkError  = 5
	ExitNotFoundError = 7
	ExitTimeoutError  = 8
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError is a failed command action with context.
type CommandError struct {
	Command string
	Action  string
	Reason  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// UsageError is a malformed command line.
type UsageError struct {
	Message string
	Example string
}

func (e *UsageError) Error() string {
	if e.Example != "" {
		return e.Message + "\nExample: " + e.Example
	}
	return e.Message
}

// NotFoundError is a missing named resource.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// reportedError is an error whose details are already in the command
// output. It keeps its exit code but is not displayed again.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

func reported(err error) error {
	return &reportedError{err: err}
}

// usage returns a UsageError.
func usage(msg, example string) error {
	return &UsageError{Message: msg, Example: example}
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

// ExitCode maps err to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var ue *UsageError
	var nf *NotFoundError
	switch {
	case errors.As(err, &ue), errors.Is(err, assistant.ErrEmptyQuestion):
		return ExitUsageError
	case config.IsValidationError(err):
		return ExitConfigError
	case errors.As(err, &nf),
		errors.Is(err, storage.ErrTranscriptNotFound),
		errors.Is(err, schema.ErrSpaceUnavailable):
		return ExitNotFoundError
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	case chatclient.IsTransport(err):
		return ExitNetworkError
	}
	return ExitGeneralError
}

// =============================================================================
// DISPLAY
// =============================================================================

// DisplayError prints err to stderr, as JSON in JSON mode.
func DisplayError(err error, jsonMode bool) {
	displayError(os.Stderr, err, jsonMode)
}

func displayError(w io.Writer, err error, jsonMode bool) {
	var re *reportedError
	if err == nil || errors.As(err, &re) {
		return
	}
	if jsonMode {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]any{
			"success":   false,
			"error":     err.Error(),
			"exit_code": ExitCode(err),
		})
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())
	if errors.Is(err, schema.ErrSpaceUnavailable) {
		fmt.Fprintln(w, DimStyle.Render("Import a schema with `gqlpilot schema import FILE`."))
	}
	if chatclient.IsTransport(err) {
		fmt.Fprintln(w, DimStyle.Render("Is the service running? Start it with `gqlpilot serve`."))
	}
}

// writeJSON prints v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
