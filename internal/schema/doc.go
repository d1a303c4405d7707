// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package schema renders a graph space's tag and edge definitions into the
// compact text embedded in prompts.
//
// The Summarizer talks to a Source, the schema collaborator that can switch
// the working space and list its tags and edges. Catalog is a Source backed by
// SQLite; spaces are imported into it from JSON exports.
//
// # Usage
//
//	cat, _ := schema.OpenCatalog(path)
//	s := schema.NewSummarizer(cat, schema.Options{})
//	text := s.SummarizeOrPlaceholder(ctx, "basketballplayer")
package schema
