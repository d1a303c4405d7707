// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import "github.com/jeranaias/gqlpilot/internal/session"

// snapshotMsg carries the newest session state.
type snapshotMsg struct {
	snap session.Snapshot
}

// askDoneMsg ends an Ask started from the question box.
type askDoneMsg struct {
	err error
}

// ghostMsg reports that the console editor changed off the UI loop.
type ghostMsg struct{}

// consoleResultMsg is the outcome of running a console statement.
type consoleResultMsg struct {
	gql    string
	output string
	err    error
}
