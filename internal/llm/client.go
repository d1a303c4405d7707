// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/jeranaias/gqlpilot/internal/util"
	"github.com/jeranaias/gqlpilot/internal/wire"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultTimeout bounds a whole upstream exchange, streamed body included.
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize caps a non-streaming reply body.
	MaxResponseSize = 10 * 1024 * 1024

	// APITypeOpenAI selects model filling from the configured version.
	APITypeOpenAI = "openai"
	// APITypeAzure sends the request as is; the deployment is in the URL.
	APITypeAzure = "azure"

	eventStream = "text/event-stream"
	doneMarker  = "[DONE]"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrNotConfigured means no upstream URL is set.
var ErrNotConfigured = errors.New("upstream url not configured")

// ErrorType classifies an upstream failure.
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeNetwork
	ErrorTypeTimeout
	ErrorTypeStatus
	ErrorTypeDecode
)

// String returns the error type name.
func (t ErrorType) String() string {
	switch t {
	case ErrorTypeNetwork:
		return "network"
	case ErrorTypeTimeout:
		return "timeout"
	case ErrorTypeStatus:
		return "status"
	case ErrorTypeDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// ClientError is a classified upstream failure.
type ClientError struct {
	Type       ErrorType
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *ClientError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s error (HTTP %d): %s", e.Type, e.StatusCode, msg)
	}
	return fmt.Sprintf("upstream %s error: %s", e.Type, msg)
}

// Unwrap returns the underlying error.
func (e *ClientError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is an upstream timeout.
func IsTimeout(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce) && ce.Type == ErrorTypeTimeout
}

// =============================================================================
// CLIENT
// =============================================================================

// Upstream locates the completion endpoint.
type Upstream struct {
	URL        string
	APIType    string
	GPTVersion string
	Key        string
}

// Prepare adapts req to this upstream: the placeholder turn is dropped and,
// for the openai API type, the model is taken from GPTVersion.
func (u Upstream) Prepare(req wire.ChatRequest) wire.ChatRequest {
	out := req.Payload()
	if strings.EqualFold(u.APIType, APITypeOpenAI) && u.GPTVersion != "" {
		out.Model = u.GPTVersion
	}
	return out
}

// Config holds client settings.
type Config struct {
	Timeout time.Duration
}

// DefaultConfig returns the default client settings.
func DefaultConfig() Config {
	return Config{Timeout: DefaultTimeout}
}

// Client posts chat requests upstream.
type Client struct {
	http *http.Client
}

// NewClient creates a client. A zero timeout uses DefaultTimeout.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{http: &http.Client{Timeout: cfg.Timeout}}
}

// Fetch sends req to up. Streamed chunks go to onChunk in arrival order and
// the returned body is nil; a plain reply is returned whole.
func (c *Client) Fetch(ctx context.Context, up Upstream, req wire.ChatRequest, onChunk func(json.RawMessage)) (json.RawMessage, error) {
	if up.URL == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(up.Prepare(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, up.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+up.Key)
	httpReq.Header.Set("api-key", up.Key)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, classify(ctx, err)
	}
	defer resp.Body.Close()

	log.Printf("UPSTREAM_RESPONSE | status=%d stream=%t duration=%v",
		resp.StatusCode, req.Stream, time.Since(start).Round(time.Millisecond))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &ClientError{
			Type:       ErrorTypeStatus,
			StatusCode: resp.StatusCode,
			Message:    util.TruncateRunes(strings.TrimSpace(string(snippet)), 200),
		}
	}

	if isEventStream(resp.Header.Get("Content-Type")) {
		if err := relay(resp.Body, onChunk); err != nil {
			return nil, classify(ctx, err)
		}
		return nil, nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, classify(ctx, err)
	}
	if len(data) > MaxResponseSize {
		return nil, &ClientError{Type: ErrorTypeDecode, Message: fmt.Sprintf("response exceeded %d bytes", MaxResponseSize)}
	}
	if !json.Valid(data) {
		return nil, &ClientError{Type: ErrorTypeDecode, Message: "response is not JSON"}
	}
	return json.RawMessage(data), nil
}

func isEventStream(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == eventStream
}

// relay forwards each data payload until [DONE] or end of body. Payloads that
// are not JSON are skipped.
func relay(body io.Reader, onChunk func(json.RawMessage)) error {
	reader := NewSSEReader(body)
	for {
		data, err := reader.ReadData()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if string(data) == doneMarker {
			return nil
		}
		if !json.Valid(data) {
			log.Printf("UPSTREAM_CHUNK_SKIPPED | bytes=%d", len(data))
			continue
		}
		if onChunk != nil {
			onChunk(json.RawMessage(data))
		}
	}
}

func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return &ClientError{Type: ErrorTypeTimeout, Message: "request timed out", Err: err}
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ClientError{Type: ErrorTypeTimeout, Message: "request timed out", Err: err}
	}
	return &ClientError{Type: ErrorTypeNetwork, Message: "request failed", Err: err}
}
