// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chatclient

import (
	"errors"
	"fmt"
)

// ErrClientClosed is returned for requests on a closed client.
var ErrClientClosed = errors.New("chat client closed")

// ErrorKind classifies a request failure.
type ErrorKind int

const (
	// KindTransport is a connection level failure. It ends every request in
	// flight.
	KindTransport ErrorKind = iota
	// KindBackend is a non-zero envelope code for one request.
	KindBackend
	// KindMalformed is a successful envelope without the expected content.
	KindMalformed
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindBackend:
		return "backend"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Error is the failure carried by an Error event.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("chat %s error: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("chat %s error: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a chat error and whether err is one.
func KindOf(err error) (ErrorKind, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return 0, false
}

// IsBackend reports whether err is a backend failure.
func IsBackend(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindBackend
}

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindTransport
}
