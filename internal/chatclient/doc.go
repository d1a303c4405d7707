// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chatclient streams chat completions from the local service over a
// single persistent websocket.
//
// Every request gets its own id. Server frames carry that id back, so several
// requests may be in flight on one connection and their frames may
// interleave. Each request yields an ordered sequence of events ending in
// exactly one terminal event, either Done or Error.
//
// # Key Types
//
//   - Client: the shared connection and its frame demultiplexer
//   - Stream: the lazy event sequence of one request
//   - Event: a Delta, Done or Error
//   - Error: a Transport, Backend or Malformed failure
//
// # Usage
//
//	client, err := chatclient.Dial(ctx, chatclient.DefaultConfig())
//	stream, err := client.Open(ctx, req)
//	for ev, ok := stream.Next(); ok; ev, ok = stream.Next() {
//	    switch ev.Kind {
//	    case chatclient.EventDelta:
//	        fmt.Print(ev.Text)
//	    case chatclient.EventError:
//	        return ev.Err
//	    }
//	}
package chatclient
