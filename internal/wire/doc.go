// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package wire defines the JSON shapes exchanged between the gqlpilot
// assistant, the local chat service, and the upstream completion API.
//
// # Key Types
//
//   - ChatRequest: {stream, temperature, max_tokens, messages}
//   - ClientFrame: one request sent over the chat socket, tagged with an id
//   - ServerFrame: the {id, code, message} envelope sent back per event
//   - Response: the message body, either a streaming delta or a full reply
//
// # Usage
//
//	req := wire.ChatRequest{Stream: true, Temperature: 0.5, MaxTokens: 200, Messages: msgs}
//	if err := req.Validate(); err != nil {
//		return err
//	}
//	frame := wire.ClientFrame{ID: id, Type: wire.FrameChat, Req: req.Payload()}
package wire
