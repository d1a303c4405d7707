// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package llm talks to the upstream OpenAI or Azure compatible completion
// endpoint on behalf of the chat service.
//
// # Key Types
//
//   - Upstream: where and how to reach the completion endpoint
//   - Client: posts a ChatRequest and relays the reply
//   - ClientError: classified upstream failure
//
// # Usage
//
//	client := llm.NewClient(llm.DefaultConfig())
//	_, err := client.Fetch(ctx, upstream, req, func(chunk json.RawMessage) {
//	    // one streamed completion chunk
//	})
//
// A text/event-stream reply is relayed one data payload at a time until the
// [DONE] marker and Fetch returns a nil body. Any other reply is returned
// whole.
package llm
