// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gptconfig

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/gqlpilot/internal/llm"
	"github.com/jeranaias/gqlpilot/internal/sqlstore"
)

const storeSchema = `
CREATE TABLE IF NOT EXISTS gpt_config (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    url TEXT NOT NULL DEFAULT '',
    api_type TEXT NOT NULL DEFAULT 'openai',
    gpt_version TEXT NOT NULL DEFAULT '',
    api_key TEXT NOT NULL DEFAULT '',
    features TEXT NOT NULL DEFAULT 'spaceSchema',
    doc_length INTEGER NOT NULL DEFAULT 1000,
    enable INTEGER NOT NULL DEFAULT 0,
    updated_at INTEGER NOT NULL
);
`

const (
	DefaultFeatures  = "spaceSchema"
	DefaultDocLength = 1000
	DefaultAPIType   = llm.APITypeOpenAI

	maskRunes = 4
	maskFill  = "****"
)

// ErrDisabled means the assistant is switched off in the settings.
var ErrDisabled = errors.New("assistant is disabled")

// =============================================================================
// CONFIG
// =============================================================================

// Config is the settings record.
type Config struct {
	URL        string `json:"url"`
	APIType    string `json:"apiType"`
	GPTVersion string `json:"gptVersion"`
	Key        string `json:"key"`
	Features   string `json:"features"`
	DocLength  int    `json:"docLength"`
	Enable     bool   `json:"enable"`
}

// Defaults returns the settings of a fresh install.
func Defaults() Config {
	return Config{
		APIType:   DefaultAPIType,
		Features:  DefaultFeatures,
		DocLength: DefaultDocLength,
	}
}

// HasFeature reports whether name is in the comma separated feature list.
func (c Config) HasFeature(name string) bool {
	for _, f := range strings.Split(c.Features, ",") {
		if strings.TrimSpace(f) == name {
			return true
		}
	}
	return false
}

// Upstream returns the completion endpoint described by c.
func (c Config) Upstream() llm.Upstream {
	return llm.Upstream{URL: c.URL, APIType: c.APIType, GPTVersion: c.GPTVersion, Key: c.Key}
}

// Masked returns c with the key reduced to its last characters.
func (c Config) Masked() Config {
	c.Key = MaskKey(c.Key)
	return c
}

// MaskKey hides all but the last four runes of key.
func MaskKey(key string) string {
	if key == "" {
		return ""
	}
	r := []rune(key)
	if len(r) <= maskRunes*2 {
		return maskFill
	}
	return maskFill + string(r[len(r)-maskRunes:])
}

// IsMaskedKey reports whether key is a masked value echoed back by a client.
func IsMaskedKey(key string) bool {
	return strings.HasPrefix(key, maskFill)
}

func (c Config) normalized() Config {
	c.URL = strings.TrimSpace(c.URL)
	c.APIType = strings.ToLower(strings.TrimSpace(c.APIType))
	if c.APIType == "" {
		c.APIType = DefaultAPIType
	}
	if c.DocLength <= 0 {
		c.DocLength = DefaultDocLength
	}
	return c
}

// =============================================================================
// STORE
// =============================================================================

// Store persists the settings record. Safe for concurrent use.
type Store struct {
	db     *sql.DB
	sealer *Sealer

	mu sync.RWMutex
}

// Open opens the store at path (sqlstore.Memory for tests). A nil sealer
// stores the key in plain text.
func Open(path string, sealer *Sealer) (*Store, error) {
	db, err := sqlstore.Open(path, storeSchema)
	if err != nil {
		return nil, err
	}
	if sealer == nil {
		log.Printf("GPT_CONFIG_UNSEALED | path=%s", path)
	}
	return &Store{db: db, sealer: sealer}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the stored settings, or Defaults when none were saved.
func (s *Store) Get(ctx context.Context) (Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(ctx)
}

func (s *Store) getLocked(ctx context.Context) (Config, error) {
	var (
		cfg    Config
		enable int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT url, api_type, gpt_version, api_key, features, doc_length, enable
		FROM gpt_config WHERE id = 1`).
		Scan(&cfg.URL, &cfg.APIType, &cfg.GPTVersion, &cfg.Key, &cfg.Features, &cfg.DocLength, &enable)
	if errors.Is(err, sql.ErrNoRows) {
		return Defaults(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to read gpt config: %w", err)
	}
	cfg.Enable = enable != 0

	if s.sealer != nil {
		key, err := s.sealer.Open(cfg.Key)
		if err != nil {
			return Config{}, fmt.Errorf("failed to open stored key: %w", err)
		}
		cfg.Key = key
	}
	return cfg, nil
}

// Save replaces the stored settings. An empty or masked key keeps the key
// already stored.
func (s *Store) Save(ctx context.Context, cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg = cfg.normalized()
	if cfg.Key == "" || IsMaskedKey(cfg.Key) {
		prev, err := s.getLocked(ctx)
		if err != nil {
			return err
		}
		cfg.Key = prev.Key
	}

	stored := cfg.Key
	if s.sealer != nil {
		sealed, err := s.sealer.Seal(cfg.Key)
		if err != nil {
			return err
		}
		stored = sealed
	}

	enable := 0
	if cfg.Enable {
		enable = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO gpt_config (id, url, api_type, gpt_version, api_key, features, doc_length, enable, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			url = excluded.url,
			api_type = excluded.api_type,
			gpt_version = excluded.gpt_version,
			api_key = excluded.api_key,
			features = excluded.features,
			doc_length = excluded.doc_length,
			enable = excluded.enable,
			updated_at = excluded.updated_at`,
		cfg.URL, cfg.APIType, cfg.GPTVersion, stored, cfg.Features, cfg.DocLength, enable, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save gpt config: %w", err)
	}
	log.Printf("GPT_CONFIG_SAVED | url=%s api_type=%s enable=%t", cfg.URL, cfg.APIType, cfg.Enable)
	return nil
}

// Features returns the stored feature list, falling back to the defaults if
// it cannot be read.
func (s *Store) Features(ctx context.Context) string {
	cfg, err := s.Get(ctx)
	if err != nil {
		log.Printf("GPT_CONFIG_READ_FAILED | err=%v", err)
		return DefaultFeatures
	}
	return cfg.Features
}
