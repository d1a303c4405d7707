// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/gqlpilot/internal/prompt"
	"github.com/jeranaias/gqlpilot/internal/session"
	"github.com/jeranaias/gqlpilot/internal/storage"
	"github.com/jeranaias/gqlpilot/internal/util"
	"github.com/jeranaias/gqlpilot/internal/wire"
)

const helpText = "/mode [ngql|cypher]  /space NAME  /run N  /save  /clear  /quit"

// =============================================================================
// UPDATE
// =============================================================================

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg), nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case snapshotMsg:
		m.snap = msg.snap
		m.refresh()
		return m, m.pump.next()

	case askDoneMsg:
		return m.handleAskDone(msg), nil

	case ghostMsg:
		return m, m.ghost.wait()

	case consoleResultMsg:
		return m.handleConsoleResult(msg), nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if last, ok := m.snap.Last(); ok && last.Loading() {
			m.refresh()
		}
		return m, cmd
	}
	return m, nil
}

func (m Model) handleResize(msg tea.WindowSizeMsg) Model {
	m.width, m.height = msg.Width, msg.Height
	m.theme.SetSize(msg.Width, msg.Height)

	// header + status + two bordered inputs + console log
	fixed := 1 + 1 + 3 + 3 + maxConsoleLog
	m.viewport.Width = msg.Width
	m.viewport.Height = max(msg.Height-fixed, 3)

	m.question.Width = max(msg.Width-8, 10)
	m.console.Width = max(msg.Width-16, 10)
	m.render.SetWidth(msg.Width - 4)
	m.ready = true
	m.refresh()
	return m
}

// refresh re-renders the transcript, following the tail while a turn
// streams or the view is already at the bottom.
func (m *Model) refresh() {
	follow := m.viewport.AtBottom() || m.snap.Pending
	m.viewport.SetContent(m.render.Transcript(m.snap.Messages, m.spinner.View()))
	if follow {
		m.viewport.GotoBottom()
	}
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()
	case key.Matches(msg, m.keys.SwitchFocus):
		if m.focus == focusQuestion {
			return m.setFocus(focusConsole), nil
		}
		return m.setFocus(focusQuestion), nil
	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	if m.focus == focusConsole {
		return m.handleConsoleKey(msg)
	}
	return m.handleQuestionKey(msg)
}

func (m Model) handleQuestionKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Leave):
		if m.asking && m.cancelAsk != nil {
			m.cancelAsk()
		}
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		text := strings.TrimSpace(m.question.Value())
		if text == "" {
			return m, nil
		}
		m.question.SetValue("")
		if strings.HasPrefix(text, "/") {
			return m.runCommand(text)
		}
		return m.ask(text)
	}

	var cmd tea.Cmd
	m.question, cmd = m.question.Update(msg)
	return m, cmd
}

// handleConsoleKey lets the copilot see each key before the input does. An
// accepted suggestion is copied from the editor back into the input.
func (m Model) handleConsoleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Leave):
		m.dismissCopilot()
		return m.setFocus(focusQuestion), nil
	case key.Matches(msg, m.keys.Submit):
		return m.execConsole()
	}

	if m.trigger != nil && m.trigger.KeyPressed(msg.String()) {
		m.pullEditor()
		return m, nil
	}

	var cmd tea.Cmd
	m.console, cmd = m.console.Update(msg)
	m.editor.Sync(m.console.Value(), m.console.Position())
	return m, cmd
}

func (m Model) setFocus(f focus) Model {
	m.focus = f
	if f == focusConsole {
		m.question.Blur()
		m.console.Focus()
	} else {
		m.console.Blur()
		m.question.Focus()
	}
	return m
}

func (m *Model) pullEditor() {
	value, cursor, _ := m.editor.State()
	m.console.SetValue(value)
	m.console.SetCursor(cursor)
}

func (m Model) dismissCopilot() {
	if m.trigger != nil {
		m.trigger.Dismiss()
	}
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.cancelAsk != nil {
		m.cancelAsk()
	}
	m.quitting = true
	return m, tea.Quit
}

// =============================================================================
// QUESTIONS
// =============================================================================

func (m Model) ask(text string) (tea.Model, tea.Cmd) {
	if m.asking {
		m.status = "still answering the previous question"
		return m, nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelAsk = cancel
	m.asking = true
	m.status = ""

	asst := m.asst
	return m, func() tea.Msg {
		return askDoneMsg{err: asst.Ask(ctx, text)}
	}
}

func (m Model) handleAskDone(msg askDoneMsg) Model {
	if m.cancelAsk != nil {
		m.cancelAsk()
		m.cancelAsk = nil
	}
	m.asking = false
	switch {
	case msg.err == nil:
		m.status = ""
	case errors.Is(msg.err, context.Canceled):
		m.status = "canceled"
	default:
		m.status = "error: " + msg.err.Error()
	}
	return m
}

// =============================================================================
// CONSOLE
// =============================================================================

func (m Model) execConsole() (tea.Model, tea.Cmd) {
	stmt := strings.TrimSpace(m.console.Value())
	m.dismissCopilot()
	m.console.SetValue("")
	m.editor.Sync("", 0)
	if stmt == "" {
		return m, nil
	}
	if m.cfg.Executor == nil {
		m.appendLog("nebula> "+stmt, "no console executor configured")
		return m, nil
	}

	ex := m.cfg.Executor
	return m, func() tea.Msg {
		out, err := ex.Execute(context.Background(), stmt)
		return consoleResultMsg{gql: stmt, output: out, err: err}
	}
}

// spaceReporter is implemented by executors that track a working space.
type spaceReporter interface {
	CurrentSpace() string
}

func (m Model) handleConsoleResult(msg consoleResultMsg) Model {
	lines := []string{"nebula> " + msg.gql}
	if msg.err != nil {
		lines = append(lines, "error: "+msg.err.Error())
	} else if msg.output != "" {
		lines = append(lines, strings.Split(msg.output, "\n")...)
	}
	m.appendLog(lines...)

	if sr, ok := m.cfg.Executor.(spaceReporter); ok && msg.err == nil {
		if space := sr.CurrentSpace(); space != "" && space != m.asst.Space() {
			m.asst.SetSpace(space)
			log.Printf("TUI_SPACE_SWITCHED | space=%s", space)
		}
	}
	return m
}

func (m *Model) appendLog(lines ...string) {
	m.consoleLog = append(m.consoleLog, lines...)
	if n := len(m.consoleLog); n > maxConsoleLog {
		m.consoleLog = m.consoleLog[n-maxConsoleLog:]
	}
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

func (m Model) runCommand(line string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(line)
	name, args := strings.ToLower(fields[0]), fields[1:]

	switch name {
	case "/quit", "/exit":
		return m.quit()

	case "/help":
		m.status = helpText

	case "/mode":
		if len(args) == 0 {
			m.status = "mode: " + string(m.asst.Mode())
			break
		}
		mode, err := prompt.ParseMode(args[0])
		if err != nil {
			m.status = err.Error()
			break
		}
		m.asst.SetMode(mode)
		if m.trigger != nil {
			m.trigger.SetMode(mode)
		}
		m.status = "mode: " + string(mode)

	case "/space":
		if len(args) == 0 {
			m.status = "space: " + m.asst.Space()
			break
		}
		m.asst.SetSpace(args[0])
		m.status = "space: " + m.asst.Space()

	case "/clear":
		if m.asking {
			m.status = "wait for the answer before clearing"
			break
		}
		m.asst.Reset()
		m.render = NewRenderer(m.theme, m.render.width)
		m.status = "conversation cleared"

	case "/save":
		m.status = m.save()

	case "/run":
		return m.runSpan(args)

	default:
		m.status = fmt.Sprintf("unknown command %s (%s)", name, helpText)
	}
	return m, nil
}

func (m Model) save() string {
	if m.cfg.Store == nil {
		return "transcripts are not configured"
	}
	t := storage.FromSession(m.session, string(m.asst.Mode()), m.asst.Space())
	id, err := m.cfg.Store.Save(t)
	if err != nil {
		return "save failed: " + err.Error()
	}
	return "saved " + util.HeadRunes(id, 8)
}

// runSpan copies code span n (1-based) of the latest answer into the
// console and focuses it.
func (m Model) runSpan(args []string) (tea.Model, tea.Cmd) {
	n := 1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			m.status = "usage: /run N"
			return m, nil
		}
		n = v
	}

	msg, ok := latestAnswer(m.snap.Messages)
	if !ok {
		m.status = "no answer to run from"
		return m, nil
	}
	if err := session.RunInConsole(m.editor, msg, n-1); err != nil {
		m.status = err.Error()
		return m, nil
	}
	m.dismissCopilot()
	m.pullEditor()
	m.status = ""
	return m.setFocus(focusConsole), nil
}

func latestAnswer(msgs []session.Message) (session.Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == wire.RoleAssistant {
			return msgs[i], true
		}
	}
	return session.Message{}, false
}
