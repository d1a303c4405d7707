// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the ordered chat history of one assistant session.
//
// All mutation goes through four entry points: AppendUserTurn,
// BeginAssistantTurn, ApplyDelta and CompleteTurn (or FailTurn).
// BeginExchange performs the first two atomically. At most one assistant
// turn is pending at a time and deltas always land in it. Readers
// take immutable snapshots, either on demand or by subscribing to change
// notifications.
//
// # Rendering Helpers
//
//   - Message.Loading: a pending turn with no text yet
//   - Segments: splits content on ``` fences into prose and code spans
//   - CodeSpans, RunInConsole: code spans of a finished assistant turn
//
// # Usage
//
//	s := session.New()
//	cancel := s.Subscribe(func(snap session.Snapshot) { render(snap) })
//	defer cancel()
//	_, _ = s.BeginExchange("find all friends of Bob")
//	_ = s.ApplyDelta("MATCH")
//	_ = s.CompleteTurn()
package session
