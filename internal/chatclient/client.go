// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jeranaias/gqlpilot/internal/wire"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

const (
	// DefaultURL is the chat socket of a local service.
	DefaultURL = "ws://127.0.0.1:7001/api/chat"

	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 10 * time.Second
)

// Config holds connection settings.
type Config struct {
	URL              string
	AuthToken        string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

// DefaultConfig returns settings for a local service.
func DefaultConfig() Config {
	return Config{
		URL:              DefaultURL,
		HandshakeTimeout: DefaultHandshakeTimeout,
		WriteTimeout:     DefaultWriteTimeout,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client multiplexes chat requests over one websocket. Safe for concurrent
// use.
type Client struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	// writeMu serializes frames on the connection.
	writeMu sync.Mutex

	mu      sync.Mutex
	streams map[string]*Stream
	err     error // set once the connection is gone

	done chan struct{}
}

// Dial connects to the chat socket and starts the frame reader.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}

	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: cfg.HandshakeTimeout,
	}
	header := http.Header{}
	if cfg.AuthToken != "" {
		header.Set("Authorization", "Bearer "+cfg.AuthToken)
	}

	conn, resp, err := dialer.DialContext(ctx, cfg.URL, header)
	if err != nil {
		if resp != nil {
			return nil, &Error{Kind: KindTransport, Message: fmt.Sprintf("dial %s: HTTP %d", cfg.URL, resp.StatusCode), Err: err}
		}
		return nil, &Error{Kind: KindTransport, Message: "dial " + cfg.URL, Err: err}
	}

	c := &Client{
		conn:         conn,
		writeTimeout: cfg.WriteTimeout,
		streams:      make(map[string]*Stream),
		done:         make(chan struct{}),
	}
	go c.readLoop()
	log.Printf("CHAT_CONNECTED | url=%s", cfg.URL)
	return c, nil
}

// Open sends req and returns its event stream. Canceling ctx ends the stream
// with an Error event.
func (c *Client) Open(ctx context.Context, req wire.ChatRequest) (*Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chat request: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := newStream(uuid.NewString(), req.Stream)
	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return nil, err
	}
	c.streams[s.id] = s
	c.mu.Unlock()

	s.setStop(context.AfterFunc(ctx, func() {
		if c.release(s.id) != nil {
			s.push(Event{Kind: EventError, Err: ctx.Err()})
		}
	}))

	frame := wire.ClientFrame{ID: s.id, Type: wire.FrameChat, Req: req}
	if err := c.write(frame); err != nil {
		c.release(s.id)
		s.stopWatch()
		terr := &Error{Kind: KindTransport, Message: "send request", Err: err}
		c.fail(terr)
		return nil, terr
	}
	return s, nil
}

// Send runs req to completion, passing every event to onEvent. The returned
// error is that of the Error event, if any.
func (c *Client) Send(ctx context.Context, req wire.ChatRequest, onEvent func(Event)) error {
	s, err := c.Open(ctx, req)
	if err != nil {
		return err
	}
	var last Event
	for ev, ok := s.Next(); ok; ev, ok = s.Next() {
		if onEvent != nil {
			onEvent(ev)
		}
		last = ev
	}
	if last.Kind == EventError {
		return last.Err
	}
	return nil
}

// Complete runs a request and returns the whole reply text.
func (c *Client) Complete(ctx context.Context, req wire.ChatRequest) (string, error) {
	var sb strings.Builder
	err := c.Send(ctx, req, func(ev Event) {
		if ev.Kind == EventDelta {
			sb.WriteString(ev.Text)
		}
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Close shuts the connection. Requests in flight end with ErrClientClosed.
func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	c.fail(ErrClientClosed)
	err := c.conn.Close()
	<-c.done
	return err
}

// Done is closed when the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) write(frame wire.ClientFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// release unregisters a stream, returning it if it was still registered.
func (c *Client) release(id string) *Stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.streams[id]
	if !ok {
		return nil
	}
	delete(c.streams, id)
	return s
}

// fail records the first connection error and ends every stream in flight.
func (c *Client) fail(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	streams := c.streams
	c.streams = make(map[string]*Stream)
	c.mu.Unlock()

	for _, s := range streams {
		s.push(Event{Kind: EventError, Err: err})
	}
}

// =============================================================================
// FRAME DISPATCH
// =============================================================================

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closing := c.err != nil
			c.mu.Unlock()
			if !closing {
				log.Printf("CHAT_CONNECTION_LOST | err=%v", err)
			}
			c.fail(&Error{Kind: KindTransport, Message: "connection lost", Err: err})
			return
		}

		var frame wire.ServerFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Printf("CHAT_FRAME_UNPARSEABLE | bytes=%d err=%v", len(data), err)
			continue
		}
		c.dispatch(frame)
	}
}

// dispatch routes one frame to its stream.
func (c *Client) dispatch(frame wire.ServerFrame) {
	c.mu.Lock()
	s, ok := c.streams[frame.ID]
	c.mu.Unlock()
	if !ok {
		log.Printf("CHAT_FRAME_ORPHANED | id=%s code=%d", frame.ID, frame.Code)
		return
	}

	for _, ev := range frameEvents(frame, s.stream) {
		if ev.Terminal() {
			c.release(s.id)
		}
		s.push(ev)
	}
}

// frameEvents translates a frame into stream events.
func frameEvents(frame wire.ServerFrame, streaming bool) []Event {
	if !frame.OK() {
		return []Event{{Kind: EventError, Err: &Error{Kind: KindBackend, Message: frame.ErrorText()}}}
	}

	resp, err := wire.DecodeResponse(frame.Message)
	if err != nil {
		// A bad chunk mid-stream counts as empty; the turn continues.
		if streaming {
			log.Printf("CHAT_RESPONSE_MALFORMED | id=%s bytes=%d err=%v", frame.ID, len(frame.Message), err)
			return nil
		}
		return []Event{{Kind: EventError, Err: &Error{Kind: KindMalformed, Message: "undecodable message", Err: err}}}
	}

	if streaming {
		if resp.Done {
			return []Event{{Kind: EventDone}}
		}
		if text := resp.DeltaText(); text != "" {
			return []Event{{Kind: EventDelta, Text: text}}
		}
		return nil
	}

	text, err := resp.CompleteText()
	if err != nil {
		if errors.Is(err, wire.ErrMalformed) {
			log.Printf("CHAT_RESPONSE_MALFORMED | id=%s", frame.ID)
		}
		return []Event{{Kind: EventError, Err: &Error{Kind: KindMalformed, Message: "reply without message content", Err: err}}}
	}
	return []Event{{Kind: EventDelta, Text: text}, {Kind: EventDone}}
}
