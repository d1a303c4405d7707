// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gptconfig stores the upstream completion settings of the chat
// service: endpoint, API type, model version, key, feature list, document
// length and the enable switch.
//
// The settings live in a single-row SQLite table. The API key is sealed at
// rest with AES-256-GCM under a key derived from a per-install master secret
// kept in the OS keyring, or in a 0600 file when no keyring is available.
//
// # Key Types
//
//   - Config: the settings record, in the JSON shape of the config endpoint
//   - Store: the persistent record
//   - Sealer: seals and opens the API key
//
// # Usage
//
//	secret, err := gptconfig.MasterSecret(filepath.Join(dir, "master.key"))
//	sealer, err := gptconfig.NewSealer(secret)
//	store, err := gptconfig.Open(filepath.Join(dir, "gpt.db"), sealer)
//	cfg, err := store.Get(ctx)
package gptconfig
