// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jeranaias/gqlpilot/internal/config"
	"github.com/jeranaias/gqlpilot/internal/schema"
)

// HandleSchema handles "schema [spaces|import FILE|show SPACE|exec STMT]"
// against the local catalog.
func HandleSchema(ctx context.Context, out io.Writer, cfg *config.Config, args Args) error {
	catalog, err := openCatalog(cfg)
	if err != nil {
		return err
	}
	defer catalog.Close()
	p := NewArgParser(args.Raw)

	switch args.Subcommand {
	case "", "spaces", "list":
		spaces, err := catalog.Spaces(ctx)
		if err != nil {
			return err
		}
		if args.JSON {
			return writeJSON(out, spaces)
		}
		if len(spaces) == 0 {
			fmt.Fprintln(out, "No spaces imported. Use `gqlpilot schema import FILE`.")
			return nil
		}
		for _, s := range spaces {
			fmt.Fprintln(out, s)
		}
		return nil

	case "import":
		file := p.Positional(1)
		if file == "" {
			return usage("schema import needs a JSON file", "gqlpilot schema import basketballplayer.json")
		}
		path, err := config.ResolvePath(file)
		if err != nil {
			return err
		}
		names, err := catalog.ImportFile(ctx, path)
		for _, n := range names {
			fmt.Fprintln(out, SuccessStyle.Render("imported ")+n)
		}
		if err != nil {
			return &CommandError{Command: "schema", Action: "import", Reason: file, Err: err}
		}
		return nil

	case "show", "describe":
		space := p.Positional(1)
		if space == "" {
			space = cfg.Client.Space
		}
		text, err := schema.NewSummarizer(catalog, schema.Options{IncludeVidType: true}).Summarize(ctx, space)
		if err != nil {
			return err
		}
		if args.JSON {
			return writeJSON(out, map[string]string{"space": space, "schema": text})
		}
		fmt.Fprintln(out, text)
		return nil

	case "exec", "run":
		stmts := strings.Split(strings.Join(p.PositionalFrom(1), " "), ";")
		if cfg.Client.Space != "" {
			if err := catalog.SwitchSpace(ctx, cfg.Client.Space); err != nil {
				fmt.Fprintln(out, DimStyle.Render(err.Error()))
			}
		}
		ran := false
		for _, stmt := range stmts {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			ran = true
			result, err := catalog.Execute(ctx, stmt)
			if errors.Is(err, schema.ErrNotExecutable) {
				return usage(err.Error(), `gqlpilot schema exec "USE nba; SHOW TAGS"`)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(out, result)
		}
		if !ran {
			return usage("schema exec needs a statement", `gqlpilot schema exec "USE nba; SHOW TAGS"`)
		}
		return nil
	}
	return usage("unknown schema subcommand "+args.Subcommand, "gqlpilot schema spaces")
}
