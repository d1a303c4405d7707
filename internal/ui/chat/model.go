// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/gqlpilot/internal/assistant"
	"github.com/jeranaias/gqlpilot/internal/copilot"
	"github.com/jeranaias/gqlpilot/internal/corpus"
	"github.com/jeranaias/gqlpilot/internal/prompt"
	"github.com/jeranaias/gqlpilot/internal/session"
	"github.com/jeranaias/gqlpilot/internal/storage"
	"github.com/jeranaias/gqlpilot/internal/ui/styles"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Executor runs console statements. *schema.Catalog satisfies it.
type Executor interface {
	Execute(ctx context.Context, stmt string) (string, error)
}

// Config wires the model to the rest of the application.
type Config struct {
	Theme     *styles.Theme
	Assistant *assistant.Assistant

	// Copilot is used when CopilotEnabled is set and Completer is non-nil.
	Copilot        copilot.Config
	CopilotEnabled bool
	Completer      prompt.Completer
	Corpus         func() *corpus.Corpus
	Schema         copilot.SchemaFunc
	TriggerOptions []copilot.Option

	// Store enables /save. Executor enables running console statements.
	Store    *storage.TranscriptStore
	Executor Executor
}

type focus int

const (
	focusQuestion focus = iota
	focusConsole
)

// maxConsoleLog is the number of console output lines kept on screen.
const maxConsoleLog = 3

// =============================================================================
// MODEL
// =============================================================================

// Model is the chat + console screen.
type Model struct {
	cfg   Config
	theme *styles.Theme
	keys  KeyMap

	asst    *assistant.Assistant
	session *session.Session
	pump    *snapshotPump
	unsub   func()
	snap    session.Snapshot

	editor  *ConsoleEditor
	ghost   signal
	trigger *copilot.Trigger

	question textinput.Model
	console  textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	render   *Renderer

	focus      focus
	asking     bool
	cancelAsk  context.CancelFunc
	consoleLog []string
	status     string

	width    int
	height   int
	ready    bool
	quitting bool
}

// New builds the model and subscribes it to the assistant's session.
func New(cfg Config) Model {
	theme := cfg.Theme
	if theme == nil {
		theme = styles.NewTheme()
	}

	question := textinput.New()
	question.Placeholder = "Ask about NebulaGraph queries, or /help"
	question.Prompt = "? "
	question.CharLimit = 2000
	question.Focus()

	console := textinput.New()
	console.Placeholder = "nGQL statement"
	console.Prompt = theme.ConsolePrompt.Render("nebula> ")
	console.CharLimit = 4000

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Loading

	m := Model{
		cfg:      cfg,
		theme:    theme,
		keys:     DefaultKeyMap(),
		asst:     cfg.Assistant,
		session:  cfg.Assistant.Session(),
		pump:     newSnapshotPump(),
		ghost:    make(signal, 1),
		question: question,
		console:  console,
		viewport: viewport.New(80, 20),
		spinner:  sp,
		render:   NewRenderer(theme, 80),
	}
	m.snap = m.session.Snapshot()
	m.unsub = m.session.Subscribe(m.pump.push)
	m.editor = NewConsoleEditor(m.ghost.notify)

	if cfg.CopilotEnabled && cfg.Completer != nil {
		ccfg := cfg.Copilot
		ccfg.Mode = m.asst.Mode()
		m.trigger = copilot.NewTrigger(ccfg, m.editor, cfg.Completer, cfg.Corpus, cfg.Schema, cfg.TriggerOptions...)
	}
	return m
}

// Close releases the subscription, any running question, and the trigger.
func (m Model) Close() {
	if m.unsub != nil {
		m.unsub()
	}
	if m.cancelAsk != nil {
		m.cancelAsk()
	}
	if m.trigger != nil {
		m.trigger.Close()
	}
}

// Init starts the listeners.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.pump.next(),
		m.ghost.wait(),
		m.spinner.Tick,
	)
}

// Run starts the program on the alternate screen and closes the model when
// it exits.
func Run(cfg Config) error {
	m := New(cfg)
	final, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if fm, ok := final.(Model); ok {
		fm.Close()
	} else {
		m.Close()
	}
	return err
}
