// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage saves chat sessions as transcripts.
//
// # Key Types
//
//   - TranscriptStore: one JSON file per transcript in a directory
//   - Transcript: a saved session with its messages
//   - TranscriptMeta: lightweight metadata for listing
//
// # Usage
//
//	store, err := storage.NewTranscriptStore(dir)
//	id, err := store.Save(storage.FromSession(sess, "ngql", "nba"))
//	t, err := store.Load(id[:8])
//	t.Restore(sess)
//
// # Storage Location
//
// Transcripts live in ~/.gqlpilot/transcripts/ unless paths.transcripts_dir
// says otherwise.
package storage
