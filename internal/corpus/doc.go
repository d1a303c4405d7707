// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package corpus loads and indexes the documentation snippets used to ground
// generated queries.
//
// A corpus is built once from raw entries and is read-only afterwards. Load
// rewrites known category paths, strips ordinal prefixes and the console
// prompt marker, drops excluded categories and statements of 400 characters
// or more, and indexes the result by title and by category path.
//
// # Key Types
//
//   - Entry: one raw record as it appears in the JSON corpus file
//   - DocEntry: a cleaned, immutable corpus entry
//   - Corpus: the title and category indexes
//   - Holder: an atomically swappable *Corpus, refreshed by Watch
//
// # Usage
//
//	c := corpus.Default()
//	entry, ok := c.LookupByTitle("go")
//	for path, titles := range c.CategoriesByPath() {
//		...
//	}
package corpus
