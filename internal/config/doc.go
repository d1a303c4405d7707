// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for gqlpilot.
//
// # Key Types
//
//   - Config: the whole file, one struct per TOML section
//   - ServerConfig: listen address, auth token, origins, rate limits
//   - ClientConfig: chat server URL, query mode, space, doc length
//   - CopilotConfig: inline suggestion settings
//   - ValidationError: one invalid field reported by Validate
//
// # Configuration Precedence
//
//   - Environment variables (GQLPILOT_*)
//   - .env in the config directory, then the working directory
//   - $GQLPILOT_HOME/config.toml or ~/.gqlpilot/config.toml
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	debounce := cfg.Debounce()
package config
