// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gptconfig

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/pbkdf2"

	"github.com/jeranaias/gqlpilot/internal/util"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// SealedPrefix marks a sealed value.
	SealedPrefix = "ENC:"

	// KeyringService and KeyringUser name the master secret in the OS keyring.
	KeyringService = "gqlpilot"
	KeyringUser    = "gpt-config-master"

	NonceSize        = 12
	KeySize          = 32
	PBKDF2Iterations = 600000

	secretBytes = 32
)

// keySalt is fixed; the master secret is random per install.
var keySalt = []byte("gqlpilot/gptconfig/v1")

var (
	ErrInvalidSealed  = errors.New("invalid sealed value")
	ErrUnsealFailed   = errors.New("unseal failed: authentication tag mismatch")
	ErrEmptyMasterKey = errors.New("master secret is empty")
)

// =============================================================================
// MASTER SECRET
// =============================================================================

// MasterSecret returns the install's master secret, creating it on first use.
// The OS keyring is preferred; fallbackPath is used when the keyring cannot
// be reached.
func MasterSecret(fallbackPath string) (string, error) {
	secret, err := keyring.Get(KeyringService, KeyringUser)
	if err == nil && secret != "" {
		return secret, nil
	}
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		log.Printf("KEYRING_UNAVAILABLE | err=%v fallback=%s", err, fallbackPath)
		return fileSecret(fallbackPath)
	}

	secret, err = newSecret()
	if err != nil {
		return "", err
	}
	if err := keyring.Set(KeyringService, KeyringUser, secret); err != nil {
		log.Printf("KEYRING_UNAVAILABLE | err=%v fallback=%s", err, fallbackPath)
		return fileSecret(fallbackPath)
	}
	log.Printf("MASTER_SECRET_CREATED | store=keyring")
	return secret, nil
}

func fileSecret(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("no keyring and no fallback path: %w", ErrEmptyMasterKey)
	}
	data, err := os.ReadFile(path)
	if err == nil {
		secret := strings.TrimSpace(string(data))
		if secret == "" {
			return "", ErrEmptyMasterKey
		}
		return secret, nil
	}
	if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read master secret: %w", err)
	}

	secret, err := newSecret()
	if err != nil {
		return "", err
	}
	if err := util.AtomicWriteFile(path, []byte(secret+"\n"), 0600); err != nil {
		return "", fmt.Errorf("failed to save master secret: %w", err)
	}
	log.Printf("MASTER_SECRET_CREATED | store=file path=%s", path)
	return secret, nil
}

func newSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("failed to generate master secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// =============================================================================
// SEALER
// =============================================================================

// Sealer encrypts short secrets with AES-256-GCM.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives the sealing key from secret.
func NewSealer(secret string) (*Sealer, error) {
	if secret == "" {
		return nil, ErrEmptyMasterKey
	}
	key := pbkdf2.Key([]byte(secret), keySalt, PBKDF2Iterations, KeySize, sha256.New)
	defer zero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM cipher: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// Seal returns plaintext sealed and prefixed with SealedPrefix. The empty
// string stays empty.
func (s *Sealer) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	out := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return SealedPrefix + base64.StdEncoding.EncodeToString(out), nil
}

// Open reverses Seal. Values without the prefix are returned unchanged.
func (s *Sealer) Open(value string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, SealedPrefix))
	if err != nil || len(data) < NonceSize {
		return "", ErrInvalidSealed
	}
	plain, err := s.aead.Open(nil, data[:NonceSize], data[NonceSize:], nil)
	if err != nil {
		return "", ErrUnsealFailed
	}
	return string(plain), nil
}

// IsSealed reports whether value carries the sealed prefix.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, SealedPrefix)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
