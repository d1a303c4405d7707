// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/gqlpilot/internal/wire"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrEmptyTurn     = errors.New("turn text is empty")
	ErrTurnPending   = errors.New("an assistant turn is already pending")
	ErrNoPendingTurn = errors.New("no assistant turn is pending")
)

// =============================================================================
// MESSAGE
// =============================================================================

// Status is the lifecycle state of an assistant turn.
type Status string

const (
	StatusNone    Status = ""
	StatusPending Status = "pending"
	StatusDone    Status = "done"
)

// Message is one turn of the conversation.
type Message struct {
	ID        string    `json:"id"`
	Role      wire.Role `json:"role"`
	Content   string    `json:"content"`
	Status    Status    `json:"status,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Loading reports whether the turn should render as a loading indicator.
func (m Message) Loading() bool {
	return m.Status == StatusPending && m.Content == ""
}

// Failed reports whether the turn ended with an error.
func (m Message) Failed() bool {
	return m.Error != ""
}

// Snapshot is an immutable copy of the session state.
type Snapshot struct {
	Messages []Message
	Pending  bool
	Version  uint64
}

// Last returns the newest message, if any.
func (s Snapshot) Last() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// =============================================================================
// SESSION
// =============================================================================

// Session is the chat history state container. It is safe for concurrent
// use. Subscribers are called in mutation order and must not mutate the
// session from inside the callback.
type Session struct {
	// notifyMu serializes mutate-then-notify so snapshots arrive in order.
	notifyMu sync.Mutex

	mu      sync.Mutex
	id      string
	msgs    []Message
	pending int // index of the pending assistant turn, -1 when none
	version uint64
	subs    map[int]func(Snapshot)
	nextSub int
}

// New returns an empty session.
func New() *Session {
	return &Session{
		id:      uuid.NewString(),
		pending: -1,
		subs:    make(map[int]func(Snapshot)),
	}
}

// ID identifies the session, for saved transcripts.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// mutate applies fn under the state lock and notifies subscribers if fn
// succeeded.
func (s *Session) mutate(fn func() error) error {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if err := fn(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.version++
	snap := s.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
	return nil
}

// AppendUserTurn records a user question.
func (s *Session) AppendUserTurn(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyTurn
	}
	return s.mutate(func() error {
		if s.pending >= 0 {
			return ErrTurnPending
		}
		s.appendLocked(wire.RoleUser, text)
		return nil
	})
}

// BeginAssistantTurn installs an empty pending assistant turn.
func (s *Session) BeginAssistantTurn() error {
	return s.mutate(func() error {
		if s.pending >= 0 {
			return ErrTurnPending
		}
		s.beginLocked()
		return nil
	})
}

// BeginExchange records question and opens the pending assistant turn for
// its answer in one step, so a rejected exchange leaves no stray question
// behind. It returns the conversation as it stood before the question.
func (s *Session) BeginExchange(question string) ([]wire.Message, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyTurn
	}
	var history []wire.Message
	err := s.mutate(func() error {
		if s.pending >= 0 {
			return ErrTurnPending
		}
		history = s.historyLocked()
		s.appendLocked(wire.RoleUser, question)
		s.beginLocked()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return history, nil
}

func (s *Session) appendLocked(role wire.Role, text string) {
	s.msgs = append(s.msgs, Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   text,
		Timestamp: time.Now(),
	})
}

func (s *Session) beginLocked() {
	s.msgs = append(s.msgs, Message{
		ID:        uuid.NewString(),
		Role:      wire.RoleAssistant,
		Status:    StatusPending,
		Timestamp: time.Now(),
	})
	s.pending = len(s.msgs) - 1
}

// ApplyDelta appends text to the pending turn.
func (s *Session) ApplyDelta(text string) error {
	return s.mutate(func() error {
		if s.pending < 0 {
			return ErrNoPendingTurn
		}
		s.msgs[s.pending].Content += text
		return nil
	})
}

// CompleteTurn marks the pending turn done.
func (s *Session) CompleteTurn() error {
	return s.finish("")
}

// FailTurn marks the pending turn done, keeping its partial text and
// recording cause.
func (s *Session) FailTurn(cause error) error {
	msg := "request failed"
	if cause != nil {
		msg = cause.Error()
	}
	return s.finish(msg)
}

func (s *Session) finish(errText string) error {
	return s.mutate(func() error {
		if s.pending < 0 {
			return ErrNoPendingTurn
		}
		s.msgs[s.pending].Status = StatusDone
		s.msgs[s.pending].Error = errText
		s.pending = -1
		return nil
	})
}

// Reset clears the history and starts a new session id.
func (s *Session) Reset() {
	_ = s.mutate(func() error {
		s.msgs = nil
		s.pending = -1
		s.id = uuid.NewString()
		return nil
	})
}

// Restore replaces the history with saved messages. Pending turns in the
// saved data are closed.
func (s *Session) Restore(id string, msgs []Message) {
	_ = s.mutate(func() error {
		s.msgs = make([]Message, len(msgs))
		copy(s.msgs, msgs)
		for i := range s.msgs {
			if s.msgs[i].Status == StatusPending {
				s.msgs[i].Status = StatusDone
			}
		}
		s.pending = -1
		if id != "" {
			s.id = id
		}
		return nil
	})
}

// =============================================================================
// READERS
// =============================================================================

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	msgs := make([]Message, len(s.msgs))
	copy(msgs, s.msgs)
	return Snapshot{Messages: msgs, Pending: s.pending >= 0, Version: s.version}
}

// History returns finished turns as wire messages, oldest first. Failed
// turns without text are skipped.
func (s *Session) History() []wire.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.historyLocked()
}

func (s *Session) historyLocked() []wire.Message {
	out := make([]wire.Message, 0, len(s.msgs))
	for i, m := range s.msgs {
		if i == s.pending || (m.Failed() && m.Content == "") {
			continue
		}
		out = append(out, wire.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

// Subscribe registers fn for change notifications and returns a function
// that removes it.
func (s *Session) Subscribe(fn func(Snapshot)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}
