// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/gqlpilot/internal/config"
	"github.com/jeranaias/gqlpilot/internal/copilot"
	"github.com/jeranaias/gqlpilot/internal/prompt"
	"github.com/jeranaias/gqlpilot/internal/ui/chat"
	"github.com/jeranaias/gqlpilot/internal/ui/styles"
)

// HandleTUI runs the chat and console screen.
func HandleTUI(ctx context.Context, cfg *config.Config) error {
	if err := RequiresTTY("run the TUI"); err != nil {
		return err
	}

	// Log lines would tear the alternate screen.
	if err := config.EnsureConfigDir(); err == nil {
		if dir, err := config.ConfigDir(); err == nil {
			if f, err := tea.LogToFile(filepath.Join(dir, "tui.log"), ""); err == nil {
				defer f.Close()
			}
		}
	}

	app, err := OpenApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	if err := app.Connect(ctx); err != nil {
		return err
	}

	return chat.Run(chat.Config{
		Theme:          styles.NewTheme(),
		Assistant:      app.Assistant,
		Copilot:        copilotConfig(cfg, app.Assistant.Mode(), app.DocLength()),
		CopilotEnabled: cfg.Copilot.Enabled,
		Completer:      app.Client,
		Corpus:         app.Corpus.Get,
		Schema:         app.SchemaText,
		Store:          app.Transcripts,
		Executor:       app.Catalog,
	})
}

func copilotConfig(cfg *config.Config, mode prompt.Mode, docLength int) copilot.Config {
	return copilot.Config{
		Debounce:    cfg.Debounce(),
		MinFragment: cfg.Copilot.MinFragment,
		AcceptKey:   cfg.Copilot.AcceptKey,
		DocLength:   docLength,
		Mode:        mode,
	}
}
