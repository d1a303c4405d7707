// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server is the local chat service: it keeps the GPT settings and
// proxies chat requests to the upstream completion endpoint.
//
// # Endpoints
//
//   - GET  /api/config/gpt - current settings, key masked
//   - POST /api/config/gpt - replace settings
//   - GET  /api/chat       - websocket carrying chat frames
//   - GET  /metrics        - Prometheus metrics
//   - GET  /health         - health check
//
// # Chat Frames
//
// The client sends {id, type:"chat", req}. For each request the server
// answers with {id, code, message} frames: one per upstream chunk and a final
// {code:0, message:{done:true}} when streaming, a single frame carrying the
// upstream reply otherwise, and {code:-1, message:"..."} on failure. Frames
// of concurrent requests on one socket interleave.
//
// # Security Features
//
//   - Bearer token authentication with constant-time comparison
//   - CORS allowlist, also applied to websocket origins
//   - Per-client rate limiting of HTTP requests and chat frames
//   - Panic recovery
//
// # Usage
//
//	srv := server.New(server.DefaultConfig(), store, llm.NewClient(llm.DefaultConfig()))
//	go srv.Start()
//	defer srv.Shutdown(ctx)
package server
