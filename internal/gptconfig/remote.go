// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gptconfig

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jeranaias/gqlpilot/internal/wire"
)

// =============================================================================
// REMOTE SETTINGS
// =============================================================================

const (
	// APIPath is where a gqlpilot service exposes its settings.
	APIPath = "/api/config/gpt"

	fetchTimeout    = 5 * time.Second
	maxSettingsBody = 64 * 1024
)

// EndpointFor maps the chat socket URL of a service to its settings URL,
// ws://host/api/chat becoming http://host/api/config/gpt.
func EndpointFor(chatURL string) (string, error) {
	u, err := url.Parse(chatURL)
	if err != nil {
		return "", fmt.Errorf("invalid chat url: %w", err)
	}
	switch u.Scheme {
	case "ws", "http":
		u.Scheme = "http"
	case "wss", "https":
		u.Scheme = "https"
	default:
		return "", fmt.Errorf("invalid chat url scheme %q", u.Scheme)
	}
	u.Path = APIPath
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// Fetch reads the settings a service reports at endpoint. The key comes
// back masked; DocLength and Features are what clients use.
func Fetch(ctx context.Context, endpoint, token string) (Config, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Config{}, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Config{}, fmt.Errorf("fetch settings: %w", err)
	}
	defer resp.Body.Close()

	var envelope struct {
		Code    int     `json:"code"`
		Data    *Config `json:"data"`
		Message string  `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxSettingsBody)).Decode(&envelope); err != nil {
		return Config{}, fmt.Errorf("fetch settings: status %d: %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || envelope.Code != wire.CodeOK || envelope.Data == nil {
		return Config{}, fmt.Errorf("fetch settings: status %d: %s", resp.StatusCode, envelope.Message)
	}
	return envelope.Data.normalized(), nil
}
