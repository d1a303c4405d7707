// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jeranaias/gqlpilot/internal/config"
	"github.com/jeranaias/gqlpilot/internal/llm"
	"github.com/jeranaias/gqlpilot/internal/server"
)

const shutdownTimeout = 10 * time.Second

// HandleServe runs the chat service until interrupted.
func HandleServe(ctx context.Context, cfg *config.Config, args Args) error {
	store, err := openGPTStore(cfg)
	if err != nil {
		return &CommandError{Command: "serve", Action: "open", Reason: "gpt settings store", Err: err}
	}
	defer store.Close()

	addr := cfg.Server.Addr
	if args.Addr != "" {
		addr = args.Addr
	}
	srv := server.New(server.Config{
		Addr:           addr,
		AuthToken:      cfg.Server.AuthToken,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimit:      cfg.Server.RateLimit,
		RateBurst:      cfg.Server.RateBurst,
		Logger:         log.New(os.Stderr, "", log.LstdFlags),
	}, store, llm.NewClient(llm.Config{Timeout: cfg.UpstreamTimeout()}))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	if !args.Quiet {
		fmt.Println(TitleStyle.Render("gqlpilot service"))
		fmt.Println(renderField("Chat socket", "ws://"+addr+"/api/chat"))
		fmt.Println(renderField("Settings", "http://"+addr+"/api/config/gpt"))
		fmt.Println(renderField("Metrics", "http://"+addr+"/metrics"))
		fmt.Println(DimStyle.Render("Ctrl+C to stop"))
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return &CommandError{Command: "serve", Action: "shutdown", Reason: "graceful stop", Err: err}
	}
	return <-errCh
}
