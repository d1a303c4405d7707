// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jeranaias/gqlpilot/internal/config"
	"github.com/jeranaias/gqlpilot/internal/corpus"
)

// HandleCorpus handles "corpus [stats|categories|lookup TITLE|search WORD]".
func HandleCorpus(out io.Writer, cfg *config.Config, args Args) error {
	c, source, err := loadCorpus(cfg)
	if err != nil {
		return err
	}
	p := NewArgParser(args.Raw)

	switch args.Subcommand {
	case "", "stats":
		return corpusStats(out, c, source, args.JSON)

	case "categories", "cats":
		cats := c.CategoriesByPath()
		if args.JSON {
			return writeJSON(out, cats)
		}
		for _, path := range c.Paths() {
			fmt.Fprintln(out, SectionStyle.Render(path))
			for _, title := range cats[path] {
				fmt.Fprintln(out, "  "+title)
			}
		}
		return nil

	case "lookup", "show":
		key := strings.Join(p.PositionalFrom(1), " ")
		if key == "" {
			return usage("corpus lookup needs a title or category path", "gqlpilot corpus lookup go")
		}
		stmts, ok := c.Resolve(key)
		if !ok {
			return &NotFoundError{Resource: "corpus entry", ID: key}
		}
		if args.JSON {
			return writeJSON(out, map[string]any{"key": key, "statements": stmts})
		}
		for _, s := range stmts {
			fmt.Fprintln(out, s)
		}
		return nil

	case "search":
		word := strings.Join(p.PositionalFrom(1), " ")
		if word == "" {
			return usage("corpus search needs a word", "gqlpilot corpus search match")
		}
		matches := c.MatchTitles(word)
		if args.JSON {
			titles := make([]string, len(matches))
			for i, m := range matches {
				titles[i] = m.Title
			}
			return writeJSON(out, titles)
		}
		if len(matches) == 0 {
			fmt.Fprintln(out, "No matching entries.")
			return nil
		}
		for _, m := range matches {
			fmt.Fprintf(out, "%s %s\n", ValueStyle.Render(m.Title), DimStyle.Render(m.CategoryPath))
		}
		return nil
	}
	return usage("unknown corpus subcommand "+args.Subcommand, "gqlpilot corpus stats")
}

// loadCorpus returns the corpus the assistant would use and where it came
// from.
func loadCorpus(cfg *config.Config) (*corpus.Corpus, string, error) {
	if cfg.Paths.CorpusFile == "" {
		return corpus.Default(), "embedded", nil
	}
	path, err := config.ResolvePath(cfg.Paths.CorpusFile)
	if err != nil {
		return nil, "", err
	}
	c, err := corpus.LoadFile(path)
	if err != nil {
		return nil, "", &CommandError{Command: "corpus", Action: "load", Reason: path, Err: err}
	}
	return c, path, nil
}

func corpusStats(out io.Writer, c *corpus.Corpus, source string, asJSON bool) error {
	statements := 0
	for _, e := range c.Entries() {
		statements += len(e.Statements)
	}
	if asJSON {
		return writeJSON(out, map[string]any{
			"source":     source,
			"entries":    c.Len(),
			"categories": len(c.Paths()),
			"statements": statements,
		})
	}
	fmt.Fprintln(out, TitleStyle.Render("Corpus"))
	fmt.Fprintln(out, renderField("Source", source))
	fmt.Fprintln(out, renderField("Entries", strconv.Itoa(c.Len())))
	fmt.Fprintln(out, renderField("Categories", strconv.Itoa(len(c.Paths()))))
	fmt.Fprintln(out, renderField("Statements", strconv.Itoa(statements)))
	return nil
}
