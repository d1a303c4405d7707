// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package assistant runs one question through the whole pipeline: category
// selection, schema summary, prompt assembly, and the streamed reply landing
// in the chat session.
//
// # Usage
//
//	a := assistant.New(assistant.Config{Mode: prompt.ModeNGQL, Space: "nba"},
//	    client, session.New(), summarizer, holder.Corpus)
//	if err := a.Ask(ctx, "who follows Tim?"); err != nil {
//	    // the failed turn is already recorded in the session
//	}
package assistant
