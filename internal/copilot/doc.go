// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package copilot offers inline query completions while the user types in
// the console editor.
//
// A Trigger watches keystrokes through the Editor collaborator. After the
// typing pauses it looks up the statement fragment under the cursor in the
// document corpus and, when something matches, asks the model for a short
// continuation that is shown as ghost text. The accept key inserts it; any
// other key dismisses it.
//
// # States
//
//	Idle --key--> Debouncing --timer--> AwaitingSuggestion --reply--> Showing
//	 ^               |  ^ key restarts timer      |                      |
//	 +---- no hit ---+  +------- key (stale reply discarded) ------------+
//
// At most one suggestion exists at a time. Each keystroke bumps a generation
// counter and replies tagged with an older generation are dropped.
//
// # Usage
//
//	t := copilot.NewTrigger(copilot.DefaultConfig(), editor, client, corpusFn, schemaFn)
//	defer t.Close()
//	if !t.KeyPressed(key) {
//	    editor.Apply(key)
//	}
package copilot
