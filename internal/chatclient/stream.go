// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chatclient

import "sync"

// EventKind is the type of a stream event.
type EventKind int

const (
	EventDelta EventKind = iota
	EventDone
	EventError
)

// String returns the kind name.
func (k EventKind) String() string {
	switch k {
	case EventDelta:
		return "delta"
	case EventDone:
		return "done"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one item of a request's response sequence.
type Event struct {
	Kind EventKind
	Text string // Delta only
	Err  error  // Error only
}

// Terminal reports whether ev ends its sequence.
func (ev Event) Terminal() bool {
	return ev.Kind == EventDone || ev.Kind == EventError
}

// Stream is the event sequence of one request. Events are queued as frames
// arrive, so a slow consumer never stalls the connection. Next must be called
// from a single goroutine.
type Stream struct {
	id     string
	stream bool

	mu         sync.Mutex
	queue      []Event
	terminated bool // terminal event queued
	drained    bool // terminal event returned
	signal     chan struct{}
	stop       func() bool
}

func newStream(id string, streaming bool) *Stream {
	return &Stream{id: id, stream: streaming, signal: make(chan struct{}, 1)}
}

// ID returns the request id used on the wire.
func (s *Stream) ID() string {
	return s.id
}

// push queues ev and reports whether it was accepted. Nothing is accepted
// after the terminal event.
func (s *Stream) push(ev Event) bool {
	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, ev)
	if ev.Terminal() {
		s.terminated = true
	}
	stop := s.stop
	s.mu.Unlock()

	if ev.Terminal() && stop != nil {
		stop()
	}
	select {
	case s.signal <- struct{}{}:
	default:
	}
	return true
}

// setStop installs the cancel watch. It is stopped at once if the stream
// already ended.
func (s *Stream) setStop(stop func() bool) {
	s.mu.Lock()
	s.stop = stop
	ended := s.terminated
	s.mu.Unlock()
	if ended {
		stop()
	}
}

func (s *Stream) stopWatch() {
	s.mu.Lock()
	stop := s.stop
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// Next blocks for the next event. It returns false once the terminal event
// has been returned.
func (s *Stream) Next() (Event, bool) {
	for {
		s.mu.Lock()
		if s.drained {
			s.mu.Unlock()
			return Event{}, false
		}
		if len(s.queue) > 0 {
			ev := s.queue[0]
			s.queue[0] = Event{}
			s.queue = s.queue[1:]
			if ev.Terminal() {
				s.drained = true
			}
			s.mu.Unlock()
			return ev, true
		}
		s.mu.Unlock()
		<-s.signal
	}
}
