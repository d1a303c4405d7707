// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"

	"github.com/jeranaias/gqlpilot/internal/session"
	"github.com/jeranaias/gqlpilot/internal/ui/styles"
	"github.com/jeranaias/gqlpilot/internal/wire"
)

// =============================================================================
// RENDERER
// =============================================================================

// Renderer turns session messages into terminal text. Finished turns are
// cached by message id since their content never changes again.
type Renderer struct {
	theme *styles.Theme
	width int
	md    *glamour.TermRenderer
	cache map[string]string
}

// NewRenderer returns a renderer wrapping prose at width columns.
func NewRenderer(theme *styles.Theme, width int) *Renderer {
	r := &Renderer{theme: theme, cache: make(map[string]string)}
	r.SetWidth(width)
	return r
}

// SetWidth rebuilds the markdown renderer when the width changes.
func (r *Renderer) SetWidth(width int) {
	if width < 20 {
		width = 20
	}
	if width == r.width && r.md != nil {
		return
	}
	r.width = width
	r.cache = make(map[string]string)
	md, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(r.theme.GlamourStyle()),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		md = nil
	}
	r.md = md
}

// Transcript renders every message. spin is shown for a loading turn.
func (r *Renderer) Transcript(msgs []session.Message, spin string) string {
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(r.Message(m, spin))
	}
	return b.String()
}

// Message renders one turn with its label.
func (r *Renderer) Message(m session.Message, spin string) string {
	ts := r.theme.Timestamp.Render(m.Timestamp.Format("15:04"))
	if m.Role == wire.RoleUser {
		return r.theme.UserLabel.Render("You") + " " + ts + "\n" + m.Content + "\n"
	}

	head := r.theme.AssistantLabel.Render("Assistant") + " " + ts + "\n"
	switch {
	case m.Loading():
		return head + spin + r.theme.Loading.Render(" thinking...") + "\n"
	case m.Status == session.StatusPending:
		return head + m.Content + "\n"
	}

	if cached, ok := r.cache[m.ID]; ok {
		return head + cached
	}
	body := r.finished(m)
	r.cache[m.ID] = body
	return head + body
}

// finished renders prose through glamour and code spans as numbered,
// highlighted boxes that /run can refer to.
func (r *Renderer) finished(m session.Message) string {
	var b strings.Builder
	n := 0
	for _, seg := range session.Segments(m.Content) {
		if seg.Kind == session.SegmentProse {
			b.WriteString(r.Prose(seg.Text))
			continue
		}
		if strings.TrimSpace(seg.Text) == "" {
			continue
		}
		n++
		label := r.theme.CodeIndex.Render(fmt.Sprintf("[%d] /run %d", n, n))
		b.WriteString(label + "\n")
		b.WriteString(r.theme.CodeBox.Render(Highlight(seg.Text, r.theme.ColorProfile)))
		b.WriteString("\n")
	}
	if m.Failed() {
		b.WriteString(r.theme.ErrorNote.Render("error: "+m.Error) + "\n")
	}
	return b.String()
}

// Prose renders markdown, falling back to the raw text.
func (r *Renderer) Prose(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	if r.md == nil {
		return strings.TrimSpace(text) + "\n"
	}
	out, err := r.md.Render(text)
	if err != nil {
		return strings.TrimSpace(text) + "\n"
	}
	return out
}

// =============================================================================
// SYNTAX HIGHLIGHTING
// =============================================================================

// Highlight colors a query with the Cypher lexer, which covers most nGQL
// keywords too. Plain terminals get the code unchanged.
func Highlight(code string, profile termenv.Profile) string {
	if profile == termenv.Ascii {
		return code
	}
	lexer := lexers.Get("cypher")
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get("monokai")
	if style == nil {
		style = chromaStyles.Fallback
	}
	name := "terminal256"
	if profile == termenv.TrueColor {
		name = "terminal16m"
	}
	formatter := formatters.Get(name)
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return buf.String()
}
