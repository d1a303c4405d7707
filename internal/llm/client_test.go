// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/gqlpilot/internal/wire"
)

func streamRequest() wire.ChatRequest {
	return wire.ChatRequest{
		Stream:      true,
		Temperature: 0.5,
		MaxTokens:   200,
		Messages: []wire.Message{
			{Role: wire.RoleSystem, Content: "sys"},
			{Role: wire.RoleUser, Content: "q"},
			wire.Placeholder(),
		},
	}
}

func TestFetch_HeadersAndModel(t *testing.T) {
	var got wire.ChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "sk-test", r.Header.Get("api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer server.Close()

	up := Upstream{URL: server.URL, APIType: APITypeOpenAI, GPTVersion: "gpt-4o", Key: "sk-test"}
	body, err := NewClient(DefaultConfig()).Fetch(context.Background(), up, streamRequest(), nil)
	require.NoError(t, err)

	resp, err := wire.DecodeResponse(body)
	require.NoError(t, err)
	text, err := resp.CompleteText()
	require.NoError(t, err)
	assert.Equal(t, "ok", text)

	assert.Equal(t, "gpt-4o", got.Model)
	require.Len(t, got.Messages, 2, "placeholder must not be sent upstream")
	assert.Equal(t, wire.RoleUser, got.Messages[1].Role)
}

func TestUpstream_PrepareAzureKeepsModel(t *testing.T) {
	up := Upstream{APIType: APITypeAzure, GPTVersion: "2023-05-15"}
	req := streamRequest()
	req.Model = "deploy"
	assert.Equal(t, "deploy", up.Prepare(req).Model)
	assert.Len(t, req.Messages, 3, "Prepare must not modify its argument")
}

func TestFetch_EventStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
		io.WriteString(w, ": keepalive\n\n")
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"MATCH\"}}]}\n\n")
		io.WriteString(w, "data: not json\n\n")
		io.WriteString(w, "data:{\"choices\":[{\"delta\":{\"content\":\" (p)\"}}]}\r\n\r\n")
		io.WriteString(w, "data: [DONE]\n\n")
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"late\"}}]}\n\n")
	}))
	defer server.Close()

	var text strings.Builder
	chunks := 0
	body, err := NewClient(DefaultConfig()).Fetch(context.Background(), Upstream{URL: server.URL}, streamRequest(),
		func(chunk json.RawMessage) {
			chunks++
			resp, err := wire.DecodeResponse(chunk)
			require.NoError(t, err)
			text.WriteString(resp.DeltaText())
		})
	require.NoError(t, err)
	assert.Nil(t, body)
	assert.Equal(t, 2, chunks)
	assert.Equal(t, "MATCH (p)", text.String())
}

func TestFetch_Errors(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		_, err := NewClient(DefaultConfig()).Fetch(context.Background(), Upstream{}, streamRequest(), nil)
		assert.ErrorIs(t, err, ErrNotConfigured)
	})

	t.Run("status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"bad key"}`, http.StatusUnauthorized)
		}))
		defer server.Close()

		_, err := NewClient(DefaultConfig()).Fetch(context.Background(), Upstream{URL: server.URL}, streamRequest(), nil)
		var ce *ClientError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, ErrorTypeStatus, ce.Type)
		assert.Equal(t, http.StatusUnauthorized, ce.StatusCode)
		assert.Contains(t, ce.Message, "bad key")
	})

	t.Run("not json", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, "<html>")
		}))
		defer server.Close()

		_, err := NewClient(DefaultConfig()).Fetch(context.Background(), Upstream{URL: server.URL}, streamRequest(), nil)
		var ce *ClientError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, ErrorTypeDecode, ce.Type)
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer server.Close()
		defer close(release)

		client := NewClient(Config{Timeout: 50 * time.Millisecond})
		_, err := client.Fetch(context.Background(), Upstream{URL: server.URL}, streamRequest(), nil)
		assert.True(t, IsTimeout(err), "got %v", err)
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewClient(DefaultConfig()).Fetch(ctx, Upstream{URL: "http://127.0.0.1:1"}, streamRequest(), nil)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSSEReader(t *testing.T) {
	r := NewSSEReader(strings.NewReader("event: x\ndata: one\nid: 3\n\ndata:two\n"))
	for _, want := range []string{"one", "two"} {
		got, err := r.ReadData()
		require.NoError(t, err)
		if string(got) != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}
	_, err := r.ReadData()
	assert.Equal(t, io.EOF, err)
}
