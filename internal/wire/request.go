// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package wire

import (
	"errors"
	"fmt"
)

// =============================================================================
// ROLES
// =============================================================================

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// =============================================================================
// REQUEST
// =============================================================================

// Validation limits for completion requests.
const (
	MinTemperature = 0.0
	MaxTemperature = 2.0
	MaxMaxTokens   = 32768
)

var (
	ErrNoMessages         = errors.New("request has no messages")
	ErrInvalidTemperature = fmt.Errorf("temperature must be between %.1f and %.1f", MinTemperature, MaxTemperature)
	ErrInvalidMaxTokens   = fmt.Errorf("max_tokens must be between 1 and %d", MaxMaxTokens)
	ErrMissingPlaceholder = errors.New("streaming request must end with an empty assistant placeholder")
)

// Message is a single chat turn as sent to the model.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Placeholder returns the empty assistant turn that streamed deltas fill in.
func Placeholder() Message {
	return Message{Role: RoleAssistant}
}

// IsPlaceholder reports whether m is an empty assistant turn.
func (m Message) IsPlaceholder() bool {
	return m.Role == RoleAssistant && m.Content == ""
}

// ChatRequest is a completion request. A streaming request always ends with
// an empty assistant placeholder; Payload strips it before transmission.
type ChatRequest struct {
	Model       string    `json:"model,omitempty"`
	Stream      bool      `json:"stream"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Messages    []Message `json:"messages"`
}

// Validate checks the request against the limits above.
func (r ChatRequest) Validate() error {
	if len(r.Messages) == 0 {
		return ErrNoMessages
	}
	if r.Temperature < MinTemperature || r.Temperature > MaxTemperature {
		return ErrInvalidTemperature
	}
	if r.MaxTokens < 1 || r.MaxTokens > MaxMaxTokens {
		return ErrInvalidMaxTokens
	}
	for i, m := range r.Messages {
		if !m.Role.Valid() {
			return fmt.Errorf("message %d: unknown role %q", i, m.Role)
		}
	}
	if r.Stream && !r.Messages[len(r.Messages)-1].IsPlaceholder() {
		return ErrMissingPlaceholder
	}
	return nil
}

// Payload returns a copy of the request suitable for the model: the trailing
// placeholder of a streaming request is removed.
func (r ChatRequest) Payload() ChatRequest {
	out := r
	msgs := r.Messages
	if r.Stream && len(msgs) > 0 && msgs[len(msgs)-1].IsPlaceholder() {
		msgs = msgs[:len(msgs)-1]
	}
	out.Messages = append([]Message(nil), msgs...)
	return out
}
