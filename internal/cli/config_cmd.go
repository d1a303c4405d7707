// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jeranaias/gqlpilot/internal/config"
)

// HandleConfig handles "config [show|get KEY|set KEY VALUE|path|keys]".
// cfg is the effective configuration; set edits the file on disk only, so
// environment overrides are never persisted.
func HandleConfig(out io.Writer, cfg *config.Config, args Args) error {
	p := NewArgParser(args.Raw)
	switch args.Subcommand {
	case "", "show":
		fmt.Fprintln(out, cfg.String())
		return nil

	case "get":
		key := p.Positional(1)
		if key == "" {
			return usage("config get needs a key", "gqlpilot config get client.url")
		}
		v, err := cfg.Get(key)
		if err != nil {
			return &UsageError{Message: err.Error()}
		}
		if key == "server.auth_token" && v != "" {
			v = "[REDACTED]"
		}
		if args.JSON {
			return writeJSON(out, map[string]any{"key": key, "value": v})
		}
		fmt.Fprintln(out, v)
		return nil

	case "set":
		key := p.Positional(1)
		if key == "" || p.PositionalCount() < 3 {
			return usage("config set needs a key and a value", "gqlpilot config set client.mode cypher")
		}
		value := strings.Join(p.PositionalFrom(2), " ")
		path, err := configFilePath(args)
		if err != nil {
			return err
		}
		if err := setConfigValue(path, key, value); err != nil {
			return err
		}
		fmt.Fprintln(out, SuccessStyle.Render("set "+key))
		return nil

	case "path":
		path, err := configFilePath(args)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, path)
		return nil

	case "keys":
		for _, k := range config.GetAllKeys() {
			fmt.Fprintln(out, k)
		}
		return nil
	}
	return usage("unknown config subcommand "+args.Subcommand, "gqlpilot config show")
}

func configFilePath(args Args) (string, error) {
	if args.ConfigPath != "" {
		return args.ConfigPath, nil
	}
	return config.ConfigPath()
}

// setConfigValue applies key=value to the file at path, creating it from
// defaults when missing, and validates before writing.
func setConfigValue(path, key, value string) error {
	fileCfg := config.Default()
	if _, err := os.Stat(path); err == nil {
		if err := config.LoadTOML(fileCfg, path); err != nil {
			return err
		}
	}
	if err := fileCfg.Set(key, value); err != nil {
		return &UsageError{Message: err.Error()}
	}
	fileCfg.SetDefaults()
	if err := fileCfg.Validate(); err != nil {
		return err
	}
	return config.SaveTOML(fileCfg, path)
}
