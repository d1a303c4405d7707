// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package prompt assembles completion requests for the query assistant.
//
// # Key Types
//
//   - Mode: NGQL assistance or one-shot Cypher generation
//   - Builder: turns a question, history, schema text and documents into a
//     streaming ChatRequest with a fixed message order
//   - Selector: asks the model which corpus categories are relevant
//
// # Message Order
//
// Every chat request is laid out as: system instruction, truncated history,
// language preference, markdown instruction, final prompt, and the empty
// assistant placeholder that streamed deltas fill in. Cypher mode sends no
// history.
//
// # Usage
//
//	b := prompt.NewBuilder(prompt.DefaultConfig())
//	keys := sel.Select(ctx, question, prompt.ModeNGQL)
//	req := b.Build(question, history, schemaText, prompt.DocsFor(c, keys), prompt.ModeNGQL)
package prompt
