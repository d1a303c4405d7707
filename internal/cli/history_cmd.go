// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jeranaias/gqlpilot/internal/config"
	"github.com/jeranaias/gqlpilot/internal/storage"
	"github.com/jeranaias/gqlpilot/internal/util"
)

// HandleHistory handles "history [list|show ID|export ID [--output FILE]|
// delete ID|search TEXT]". IDs may be unique prefixes; show and export
// also take a list position such as #1 for the newest.
func HandleHistory(out io.Writer, cfg *config.Config, args Args) error {
	dir, err := config.ResolvePath(cfg.Paths.TranscriptsDir)
	if err != nil {
		return err
	}
	store, err := storage.NewTranscriptStore(dir)
	if err != nil {
		return err
	}
	p := NewArgParser(args.Raw)

	switch args.Subcommand {
	case "", "list", "ls":
		metas, err := store.List()
		if err != nil {
			return err
		}
		if args.JSON {
			return writeJSON(out, metas)
		}
		fmt.Fprint(out, storage.FormatList(metas))
		return nil

	case "show", "export":
		t, err := loadTranscript(store, p.Positional(1))
		if err != nil {
			return err
		}
		if args.Subcommand == "show" && args.JSON {
			return writeJSON(out, t)
		}
		md := t.ExportMarkdown()
		if file := p.Flag("output"); file != "" {
			path, err := config.ResolvePath(file)
			if err != nil {
				return err
			}
			if err := util.AtomicWriteFile(path, []byte(md), 0600); err != nil {
				return &CommandError{Command: "history", Action: "export", Reason: path, Err: err}
			}
			fmt.Fprintln(out, SuccessStyle.Render("exported ")+path)
			return nil
		}
		fmt.Fprint(out, md)
		return nil

	case "delete", "rm":
		id := p.Positional(1)
		if id == "" {
			return usage("history delete needs an ID", "gqlpilot history delete 3f2a")
		}
		if err := store.Delete(id); err != nil {
			return err
		}
		fmt.Fprintln(out, SuccessStyle.Render("deleted ")+id)
		return nil

	case "search":
		query := strings.Join(p.PositionalFrom(1), " ")
		if query == "" {
			return usage("history search needs text", "gqlpilot history search follow")
		}
		metas, err := store.Search(query)
		if err != nil {
			return err
		}
		if args.JSON {
			return writeJSON(out, metas)
		}
		fmt.Fprint(out, storage.FormatList(metas))
		return nil
	}
	return usage("unknown history subcommand "+args.Subcommand, "gqlpilot history list")
}

func loadTranscript(store *storage.TranscriptStore, id string) (*storage.Transcript, error) {
	if id == "" {
		return nil, usage("a transcript ID is required", "gqlpilot history show 3f2a")
	}
	if n, ok := strings.CutPrefix(id, "#"); ok {
		idx, err := strconv.Atoi(n)
		if err != nil || idx < 1 {
			return nil, usage("list positions start at #1", "gqlpilot history show #1")
		}
		return store.LoadByIndex(idx - 1)
	}
	return store.Load(id)
}
