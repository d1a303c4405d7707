// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package wire

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Envelope codes. Any non-zero code is a failure of that request only.
const (
	CodeOK    = 0
	CodeError = -1
)

// FrameChat is the only client frame type the chat socket accepts.
const FrameChat = "chat"

// ClientFrame carries one request over the shared chat socket.
type ClientFrame struct {
	ID   string      `json:"id"`
	Type string      `json:"type"`
	Req  ChatRequest `json:"req"`
}

// ServerFrame is the {code, message} envelope for one event of request ID.
// Message is a Response object on success and a JSON string on failure.
type ServerFrame struct {
	ID      string          `json:"id"`
	Code    int             `json:"code"`
	Message json.RawMessage `json:"message"`
}

// OK reports whether the frame carries a zero code.
func (f ServerFrame) OK() bool {
	return f.Code == CodeOK
}

// ErrorText extracts the failure description of a non-zero frame.
func (f ServerFrame) ErrorText() string {
	var s string
	if err := json.Unmarshal(f.Message, &s); err == nil {
		return s
	}
	return string(f.Message)
}

// ErrorFrame builds a failure envelope.
func ErrorFrame(id string, err error) ServerFrame {
	msg, _ := json.Marshal(err.Error())
	return ServerFrame{ID: id, Code: CodeError, Message: msg}
}

// DoneFrame builds the terminal envelope of a streaming request.
func DoneFrame(id string) ServerFrame {
	return ServerFrame{ID: id, Code: CodeOK, Message: json.RawMessage(`{"done":true}`)}
}

// =============================================================================
// RESPONSE BODY
// =============================================================================

// Content wraps a text fragment the way OpenAI-style APIs nest it.
type Content struct {
	Content string `json:"content"`
}

// Choice is one completion alternative. Streaming chunks set Delta,
// non-streaming replies set Message.
type Choice struct {
	Delta   *Content `json:"delta,omitempty"`
	Message *Content `json:"message,omitempty"`
}

// Response is the message body of a successful frame.
type Response struct {
	Done    bool     `json:"done"`
	Choices []Choice `json:"choices"`
}

// ErrMalformed marks a response missing an expected field.
var ErrMalformed = errors.New("malformed response")

// DecodeResponse parses a frame message body.
func DecodeResponse(raw json.RawMessage) (Response, error) {
	var r Response
	if err := json.Unmarshal(raw, &r); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return r, nil
}

// DeltaText returns choices[0].delta.content, or "" when absent.
func (r Response) DeltaText() string {
	if len(r.Choices) == 0 || r.Choices[0].Delta == nil {
		return ""
	}
	return r.Choices[0].Delta.Content
}

// CompleteText returns choices[0].message.content of a non-streaming reply.
func (r Response) CompleteText() (string, error) {
	if len(r.Choices) == 0 || r.Choices[0].Message == nil {
		return "", fmt.Errorf("%w: choices[0].message missing", ErrMalformed)
	}
	return r.Choices[0].Message.Content, nil
}
