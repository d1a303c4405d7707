// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package corpus

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// MaxStatementLen is the exclusive ceiling on statement length, in characters.
const MaxStatementLen = 400

// PromptMarker is the console prompt copied into documentation examples.
const PromptMarker = "nebula>"

// ExcludedSegment marks categories that only document clause fragments.
const ExcludedSegment = "clauses-and-options/"

// pathRewrites maps raw documentation paths to descriptive category keys.
// Matching is exact and happens before ordinal prefixes are stripped.
var pathRewrites = map[string]string{
	"7.general-query-statements/3.go/":    "general-query-statements/go-from-vertex-to-walk",
	"7.general-query-statements/2.match/": "general-query-statements/match|Scan|cypher|pattern",
}

var ordinalPrefix = regexp.MustCompile(`\d+\.`)

// =============================================================================
// TYPES
// =============================================================================

// Entry is a raw corpus record.
type Entry struct {
	Path       string   `json:"path"`
	Title      string   `json:"title"`
	Statements []string `json:"statements"`
}

// DocEntry is a cleaned corpus entry. Values are never mutated after Load.
type DocEntry struct {
	CategoryPath string
	Title        string
	Statements   []string
}

// Text renders the entry the way documents are quoted in prompts.
func (e DocEntry) Text() string {
	return e.Title + "\n" + strings.Join(e.Statements, "\n") + "\n"
}

// Corpus is the read-only index built by Load.
type Corpus struct {
	entries []DocEntry
	byTitle map[string]int
	byPath  map[string][]string
}

// =============================================================================
// LOADING
// =============================================================================

// Load builds a corpus from raw entries. Entries without a path or a title
// are dropped. Load is a pure function of its input.
func Load(raw []Entry) *Corpus {
	c := &Corpus{
		byTitle: make(map[string]int),
		byPath:  make(map[string][]string),
	}
	dropped := 0
	for _, r := range raw {
		path := strings.TrimSpace(r.Path)
		title := norm.NFC.String(strings.TrimSpace(r.Title))
		if path == "" || title == "" {
			dropped++
			continue
		}

		if rewritten, ok := pathRewrites[path]; ok {
			path = rewritten
		}
		path = ordinalPrefix.ReplaceAllString(path, "")
		if strings.Contains(path, ExcludedSegment) {
			continue
		}

		entry := DocEntry{CategoryPath: path, Title: title, Statements: cleanStatements(r.Statements)}

		if idx, ok := c.byTitle[title]; ok {
			// Later duplicates replace earlier ones in place.
			prev := c.entries[idx]
			c.byPath[prev.CategoryPath] = removeTitle(c.byPath[prev.CategoryPath], title)
			if len(c.byPath[prev.CategoryPath]) == 0 {
				delete(c.byPath, prev.CategoryPath)
			}
			c.entries[idx] = entry
		} else {
			c.byTitle[title] = len(c.entries)
			c.entries = append(c.entries, entry)
		}
		c.byPath[path] = append(c.byPath[path], title)
	}
	if dropped > 0 {
		log.Printf("CORPUS_MALFORMED_DROPPED | count=%d", dropped)
	}
	return c
}

func cleanStatements(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(strings.ReplaceAll(s, PromptMarker, ""))
		s = norm.NFC.String(s)
		if s == "" || len([]rune(s)) >= MaxStatementLen {
			continue
		}
		out = append(out, s)
	}
	return out
}

func removeTitle(titles []string, title string) []string {
	out := titles[:0:0]
	for _, t := range titles {
		if t != title {
			out = append(out, t)
		}
	}
	return out
}

// LoadJSON decodes a JSON array of entries and loads it.
func LoadJSON(data []byte) (*Corpus, error) {
	var raw []Entry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse corpus: %w", err)
	}
	return Load(raw), nil
}

//go:embed data/corpus.json
var defaultCorpus []byte

var (
	defaultOnce sync.Once
	defaultInst *Corpus
)

// Default returns the corpus compiled into the binary.
func Default() *Corpus {
	defaultOnce.Do(func() {
		c, err := LoadJSON(defaultCorpus)
		if err != nil {
			panic(fmt.Sprintf("embedded corpus is invalid: %v", err))
		}
		defaultInst = c
	})
	return defaultInst
}

// =============================================================================
// LOOKUPS
// =============================================================================

// Len returns the number of entries.
func (c *Corpus) Len() int {
	return len(c.entries)
}

// Entries returns the entries in load order.
func (c *Corpus) Entries() []DocEntry {
	return append([]DocEntry(nil), c.entries...)
}

// LookupByTitle returns the entry with the exact title.
func (c *Corpus) LookupByTitle(title string) (DocEntry, bool) {
	idx, ok := c.byTitle[title]
	if !ok {
		return DocEntry{}, false
	}
	return c.entries[idx], true
}

// CategoriesByPath returns category path -> titles, in load order.
func (c *Corpus) CategoriesByPath() map[string][]string {
	out := make(map[string][]string, len(c.byPath))
	for p, titles := range c.byPath {
		out[p] = append([]string(nil), titles...)
	}
	return out
}

// Paths returns the category paths in sorted order.
func (c *Corpus) Paths() []string {
	paths := make([]string, 0, len(c.byPath))
	for p := range c.byPath {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// CategoryString serializes the category index compactly for the selection
// prompt: JSON with every double quote removed.
func (c *Corpus) CategoryString() string {
	data, err := json.Marshal(c.byPath)
	if err != nil {
		return ""
	}
	return strings.ReplaceAll(string(data), `"`, "")
}

// Resolve maps a category key to statements. A key is either an entry title
// or a category path, in which case every entry under it contributes.
func (c *Corpus) Resolve(key string) ([]string, bool) {
	if e, ok := c.LookupByTitle(key); ok {
		return append([]string(nil), e.Statements...), true
	}
	titles, ok := c.byPath[key]
	if !ok {
		return nil, false
	}
	var out []string
	for _, t := range titles {
		out = append(out, c.entries[c.byTitle[t]].Statements...)
	}
	return out, true
}

// MatchTitles returns entries whose lowercased title contains the lowercased
// token, in load order.
func (c *Corpus) MatchTitles(token string) []DocEntry {
	token = strings.ToLower(strings.TrimSpace(token))
	if token == "" {
		return nil
	}
	var hits []DocEntry
	for _, e := range c.entries {
		if strings.Contains(strings.ToLower(e.Title), token) {
			hits = append(hits, e)
		}
	}
	return hits
}
