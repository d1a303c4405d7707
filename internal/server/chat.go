// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jeranaias/gqlpilot/internal/gptconfig"
	"github.com/jeranaias/gqlpilot/internal/wire"
)

var (
	errUnsupportedFrame = errors.New("unsupported frame type")
	errMissingID        = errors.New("frame id is required")
	errRateLimited      = errors.New("rate limited, retry shortly")
)

// socket serializes writes to one chat connection.
type socket struct {
	conn    *websocket.Conn
	ip      string
	writeMu sync.Mutex
}

func (sk *socket) send(frame wire.ServerFrame) error {
	sk.writeMu.Lock()
	defer sk.writeMu.Unlock()
	_ = sk.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return sk.conn.WriteJSON(frame)
}

func (s *Server) track(conn *websocket.Conn, open bool) {
	s.mu.Lock()
	if open {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
	s.mu.Unlock()
	if open {
		s.metrics.connections.Inc()
	} else {
		s.metrics.connections.Dec()
	}
}

// handleChatSocket upgrades to a websocket and serves chat frames until the
// client goes away. Each request runs on its own goroutine so replies to
// concurrent requests interleave.
func (s *Server) handleChatSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("CHAT_UPGRADE_FAILED | ip=%s err=%v", GetClientIP(r), err)
		return
	}
	s.track(conn, true)
	defer s.track(conn, false)

	sk := &socket{conn: conn, ip: GetClientIP(r)}
	ctx, cancel := context.WithCancel(r.Context())
	var wg sync.WaitGroup

	conn.SetReadLimit(MaxRequestBodySize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.keepalive(ctx, conn)
	}()

	log.Printf("CHAT_SOCKET_OPEN | ip=%s", sk.ip)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("CHAT_SOCKET_ERROR | ip=%s err=%v", sk.ip, err)
			}
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var frame wire.ClientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			_ = sk.send(wire.ErrorFrame("", fmt.Errorf("invalid frame: %w", err)))
			continue
		}
		if frame.ID == "" {
			_ = sk.send(wire.ErrorFrame("", errMissingID))
			continue
		}
		if frame.Type != wire.FrameChat {
			_ = sk.send(wire.ErrorFrame(frame.ID, fmt.Errorf("%w: %q", errUnsupportedFrame, frame.Type)))
			continue
		}
		if !s.limiter.Allow(sk.ip) {
			s.metrics.chatRequests.WithLabelValues(strconv.FormatBool(frame.Req.Stream), "rejected").Inc()
			_ = sk.send(wire.ErrorFrame(frame.ID, errRateLimited))
			continue
		}

		wg.Add(1)
		go func(frame wire.ClientFrame) {
			defer wg.Done()
			s.serveChat(ctx, sk, frame)
		}(frame)
	}

	cancel()
	wg.Wait()
	_ = conn.Close()
	log.Printf("CHAT_SOCKET_CLOSED | ip=%s", sk.ip)
}

func (s *Server) keepalive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// serveChat proxies one request upstream and writes its reply frames.
func (s *Server) serveChat(ctx context.Context, sk *socket, frame wire.ClientFrame) {
	req := frame.Req
	streamLabel := strconv.FormatBool(req.Stream)
	outcome := "error"
	defer func() {
		s.metrics.chatRequests.WithLabelValues(streamLabel, outcome).Inc()
	}()

	fail := func(err error) {
		if sendErr := sk.send(wire.ErrorFrame(frame.ID, err)); sendErr != nil {
			log.Printf("CHAT_SEND_FAILED | id=%s err=%v", frame.ID, sendErr)
		}
	}

	if err := req.Validate(); err != nil {
		outcome = "rejected"
		fail(err)
		return
	}
	cfg, err := s.store.Get(ctx)
	if err != nil {
		log.Printf("GPT_CONFIG_READ_FAILED | id=%s err=%v", frame.ID, err)
		fail(errors.New("failed to read settings"))
		return
	}
	if !cfg.Enable {
		outcome = "disabled"
		fail(gptconfig.ErrDisabled)
		return
	}

	s.metrics.activeRequests.Inc()
	defer s.metrics.activeRequests.Dec()

	var sendErr error
	start := time.Now()
	body, err := s.upstream.Fetch(ctx, cfg.Upstream(), req, func(chunk json.RawMessage) {
		if sendErr != nil {
			return
		}
		s.metrics.chatChunks.Inc()
		sendErr = sk.send(wire.ServerFrame{ID: frame.ID, Code: wire.CodeOK, Message: chunk})
	})
	s.metrics.upstreamDuration.WithLabelValues(streamLabel).Observe(time.Since(start).Seconds())

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Printf("CHAT_UPSTREAM_ERROR | id=%s err=%v", frame.ID, err)
		fail(err)
		return
	}
	if sendErr != nil {
		log.Printf("CHAT_SEND_FAILED | id=%s err=%v", frame.ID, sendErr)
		return
	}

	switch {
	case body == nil:
		sendErr = sk.send(wire.DoneFrame(frame.ID))
	case req.Stream:
		// The upstream answered a streaming request in one piece.
		sendErr = s.sendAsStream(sk, frame.ID, body)
	default:
		sendErr = sk.send(wire.ServerFrame{ID: frame.ID, Code: wire.CodeOK, Message: body})
	}
	if sendErr != nil {
		log.Printf("CHAT_SEND_FAILED | id=%s err=%v", frame.ID, sendErr)
		return
	}
	outcome = "ok"
}

// sendAsStream replays a whole reply as a single chunk followed by done.
func (s *Server) sendAsStream(sk *socket, id string, body json.RawMessage) error {
	resp, err := wire.DecodeResponse(body)
	if err == nil {
		var text string
		if text, err = resp.CompleteText(); err == nil {
			chunk, _ := json.Marshal(wire.Response{Choices: []wire.Choice{{Delta: &wire.Content{Content: text}}}})
			if err := sk.send(wire.ServerFrame{ID: id, Code: wire.CodeOK, Message: chunk}); err != nil {
				return err
			}
			return sk.send(wire.DoneFrame(id))
		}
	}
	return sk.send(wire.ErrorFrame(id, err))
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
