// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/jeranaias/gqlpilot/internal/prompt"
	"github.com/jeranaias/gqlpilot/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete gqlpilot configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	Server   ServerConfig   `toml:"server" json:"server"`
	Client   ClientConfig   `toml:"client" json:"client"`
	Copilot  CopilotConfig  `toml:"copilot" json:"copilot"`
	Paths    PathsConfig    `toml:"paths" json:"paths"`
	Upstream UpstreamConfig `toml:"upstream" json:"upstream"`
}

// ServerConfig configures `gqlpilot serve`.
type ServerConfig struct {
	Addr           string   `toml:"addr" json:"addr"`
	AuthToken      string   `toml:"auth_token" json:"auth_token"`
	AllowedOrigins []string `toml:"allowed_origins" json:"allowed_origins"`
	// RateLimit is requests per second per client; 0 disables limiting.
	RateLimit float64 `toml:"rate_limit" json:"rate_limit"`
	RateBurst int     `toml:"rate_burst" json:"rate_burst"`
}

// ClientConfig configures the chat side: TUI, chat and ask.
type ClientConfig struct {
	URL       string `toml:"url" json:"url"`
	Mode      string `toml:"mode" json:"mode"`
	Space     string `toml:"space" json:"space"`
	// DocLength overrides the service's docLength setting when non-zero.
	DocLength int `toml:"doc_length" json:"doc_length"`
}

// CopilotConfig configures inline suggestions in the console editor.
type CopilotConfig struct {
	Enabled     bool   `toml:"enabled" json:"enabled"`
	DebounceMS  int    `toml:"debounce_ms" json:"debounce_ms"`
	MinFragment int    `toml:"min_fragment" json:"min_fragment"`
	AcceptKey   string `toml:"accept_key" json:"accept_key"`
}

// PathsConfig holds file locations. Relative paths are resolved against
// the config directory.
type PathsConfig struct {
	CorpusFile     string `toml:"corpus_file" json:"corpus_file"`
	CatalogDB      string `toml:"catalog_db" json:"catalog_db"`
	GPTDB          string `toml:"gpt_db" json:"gpt_db"`
	TranscriptsDir string `toml:"transcripts_dir" json:"transcripts_dir"`
	MasterKeyFile  string `toml:"master_key_file" json:"master_key_file"`
}

// UpstreamConfig configures the proxy to the completion endpoint.
type UpstreamConfig struct {
	TimeoutSeconds int `toml:"timeout_seconds" json:"timeout_seconds"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

const (
	// CurrentVersion is written into new config files.
	CurrentVersion = "1"

	DefaultAddr           = "127.0.0.1:7001"
	DefaultURL            = "ws://127.0.0.1:7001/api/chat"
	DefaultRateLimit      = 5
	DefaultRateBurst      = 20
	DefaultDebounceMS     = 1000
	DefaultMinFragment    = 3
	DefaultAcceptKey      = "tab"
	DefaultTimeoutSeconds = 60

	// HomeEnv overrides the config directory.
	HomeEnv = "GQLPILOT_HOME"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Server: ServerConfig{
			Addr:      DefaultAddr,
			RateLimit: DefaultRateLimit,
			RateBurst: DefaultRateBurst,
		},
		Client: ClientConfig{
			URL:  DefaultURL,
			Mode: "ngql",
		},
		Copilot: CopilotConfig{
			Enabled:     true,
			DebounceMS:  DefaultDebounceMS,
			MinFragment: DefaultMinFragment,
			AcceptKey:   DefaultAcceptKey,
		},
		Paths: PathsConfig{
			CatalogDB:      "catalog.db",
			GPTDB:          "gpt.db",
			TranscriptsDir: "transcripts",
			MasterKeyFile:  "master.key",
		},
		Upstream: UpstreamConfig{
			TimeoutSeconds: DefaultTimeoutSeconds,
		},
	}
}

// Debounce returns the copilot debounce as a duration.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Copilot.DebounceMS) * time.Millisecond
}

// UpstreamTimeout returns the upstream request timeout.
func (c *Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.Upstream.TimeoutSeconds) * time.Second
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the configuration directory: $GQLPILOT_HOME if set,
// otherwise ~/.gqlpilot.
func ConfigDir() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".gqlpilot"), nil
}

// ConfigPath returns the path of config.toml.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir creates the config directory if needed.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// ResolvePath makes p absolute relative to the config directory. Empty
// stays empty.
func ResolvePath(p string) (string, error) {
	if p == "" || filepath.IsAbs(p) {
		return p, nil
	}
	if strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, p[2:]), nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, p), nil
}

// ensureSecurePermissions tightens config files to 0600 since they may hold
// the auth token.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// LoadDotEnv reads .env from the config directory and then the working
// directory. Variables already set in the environment win. Missing files
// are ignored.
func LoadDotEnv() error {
	var candidates []string
	if dir, err := ConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, ".env"))
	}
	candidates = append(candidates, ".env")

	for _, p := range candidates {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads config.toml if present, applies .env and GQLPILOT_*
// overrides, fills defaults and validates.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if _, statErr := os.Stat(path); statErr == nil {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config: %w", err)
		}
	}
	return finish(cfg)
}

// LoadFromPath loads a specific TOML file with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if err := LoadTOML(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes path over cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		fmt.Fprintf(os.Stderr, "Warning: unknown config keys in %s: %v\n", path, undecoded)
	}
	return nil
}

// SetDefaults fills zero values left by a partial file.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Version == "" {
		c.Version = d.Version
	}
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.RateBurst == 0 {
		c.Server.RateBurst = d.Server.RateBurst
	}
	if c.Client.URL == "" {
		c.Client.URL = d.Client.URL
	}
	if c.Client.Mode == "" {
		c.Client.Mode = d.Client.Mode
	}
	if c.Copilot.DebounceMS == 0 {
		c.Copilot.DebounceMS = d.Copilot.DebounceMS
	}
	if c.Copilot.MinFragment == 0 {
		c.Copilot.MinFragment = d.Copilot.MinFragment
	}
	if c.Copilot.AcceptKey == "" {
		c.Copilot.AcceptKey = d.Copilot.AcceptKey
	}
	if c.Paths.CatalogDB == "" {
		c.Paths.CatalogDB = d.Paths.CatalogDB
	}
	if c.Paths.GPTDB == "" {
		c.Paths.GPTDB = d.Paths.GPTDB
	}
	if c.Paths.TranscriptsDir == "" {
		c.Paths.TranscriptsDir = d.Paths.TranscriptsDir
	}
	if c.Paths.MasterKeyFile == "" {
		c.Paths.MasterKeyFile = d.Paths.MasterKeyFile
	}
	if c.Upstream.TimeoutSeconds == 0 {
		c.Upstream.TimeoutSeconds = d.Upstream.TimeoutSeconds
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to the default config.toml.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg to path atomically with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	err := util.WriteAtomic(path, 0600, func(w io.Writer) error {
		if _, err := io.WriteString(w, "# gqlpilot configuration file\n# Generated by gqlpilot - edit with care\n\n"); err != nil {
			return err
		}
		return toml.NewEncoder(w).Encode(cfg)
	})
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError is one invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors collects every problem found by Validate.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks every section and returns ValidateErrors when something
// is wrong.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		add("server.addr", "must be host:port (%v)", err)
	}
	if c.Server.RateLimit < 0 {
		add("server.rate_limit", "must not be negative")
	}
	if c.Server.RateBurst < 1 {
		add("server.rate_burst", "must be at least 1")
	}
	for _, o := range c.Server.AllowedOrigins {
		if o == "*" {
			continue
		}
		if u, err := url.Parse(o); err != nil || u.Scheme == "" || u.Host == "" {
			add("server.allowed_origins", "invalid origin %q", o)
		}
	}

	if u, err := url.Parse(c.Client.URL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		add("client.url", "must be a ws:// or wss:// URL, got %q", c.Client.URL)
	}
	if _, err := prompt.ParseMode(c.Client.Mode); err != nil {
		add("client.mode", "%v", err)
	}
	if c.Client.DocLength < 0 || c.Client.DocLength > 100000 {
		add("client.doc_length", "must be between 0 and 100000")
	}

	if c.Copilot.DebounceMS < 50 || c.Copilot.DebounceMS > 10000 {
		add("copilot.debounce_ms", "must be between 50 and 10000")
	}
	if c.Copilot.MinFragment < 1 {
		add("copilot.min_fragment", "must be at least 1")
	}
	if strings.TrimSpace(c.Copilot.AcceptKey) == "" {
		add("copilot.accept_key", "must not be empty")
	}

	if c.Upstream.TimeoutSeconds < 1 || c.Upstream.TimeoutSeconds > 600 {
		add("upstream.timeout_seconds", "must be between 1 and 600")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// IsValidationError reports whether err came from Validate.
func IsValidationError(err error) bool {
	var ve ValidateErrors
	var one ValidationError
	return errors.As(err, &ve) || errors.As(err, &one)
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies GQLPILOT_* variables:
//   - GQLPILOT_ADDR: server.addr
//   - GQLPILOT_AUTH_TOKEN: server.auth_token
//   - GQLPILOT_URL: client.url
//   - GQLPILOT_MODE: client.mode
//   - GQLPILOT_SPACE: client.space
//   - GQLPILOT_COPILOT: copilot.enabled
//   - GQLPILOT_CORPUS_FILE: paths.corpus_file
//   - GQLPILOT_UPSTREAM_TIMEOUT: upstream.timeout_seconds
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("GQLPILOT_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("GQLPILOT_AUTH_TOKEN"); v != "" {
		c.Server.AuthToken = v
	}
	if v := os.Getenv("GQLPILOT_URL"); v != "" {
		c.Client.URL = v
	}
	if v := os.Getenv("GQLPILOT_MODE"); v != "" {
		c.Client.Mode = v
	}
	if v := os.Getenv("GQLPILOT_SPACE"); v != "" {
		c.Client.Space = v
	}
	if v := os.Getenv("GQLPILOT_COPILOT"); v != "" {
		c.Copilot.Enabled = parseBool(v)
	}
	if v := os.Getenv("GQLPILOT_CORPUS_FILE"); v != "" {
		c.Paths.CorpusFile = v
	}
	if v := os.Getenv("GQLPILOT_UPSTREAM_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Upstream.TimeoutSeconds = n
		}
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a value by dotted key, e.g. "copilot.debounce_ms".
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set assigns a value by dotted key. String values are converted to the
// field type; lists take comma separated strings.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")
	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("field '%s' is a section, not a value", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a section", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName turns snake_case or kebab-case into the Go field name.
// Acronyms such as URL and DB match through the case-insensitive lookup.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})
	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(part[:1]))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			n, err := strconv.ParseInt(strings.TrimSpace(strVal), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(n)
			return nil
		case reflect.Float64:
			f, err := strconv.ParseFloat(strings.TrimSpace(strVal), 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(f)
			return nil
		case reflect.Bool:
			field.SetBool(parseBool(strVal))
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				var items []string
				for _, item := range strings.Split(strVal, ",") {
					if item = strings.TrimSpace(item); item != "" {
						items = append(items, item)
					}
				}
				field.Set(reflect.ValueOf(items))
				return nil
			}
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return errors.New("nil value")
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// GetAllKeys returns every settable key in dot notation.
func GetAllKeys() []string {
	return []string{
		"version",
		"server.addr",
		"server.auth_token",
		"server.allowed_origins",
		"server.rate_limit",
		"server.rate_burst",
		"client.url",
		"client.mode",
		"client.space",
		"client.doc_length",
		"copilot.enabled",
		"copilot.debounce_ms",
		"copilot.min_fragment",
		"copilot.accept_key",
		"paths.corpus_file",
		"paths.catalog_db",
		"paths.gpt_db",
		"paths.transcripts_dir",
		"paths.master_key_file",
		"upstream.timeout_seconds",
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Server.AllowedOrigins != nil {
		clone.Server.AllowedOrigins = append([]string(nil), c.Server.AllowedOrigins...)
	}
	return &clone
}

// String renders the config as JSON with the auth token redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.Server.AuthToken != "" {
		safe.Server.AuthToken = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the process-wide configuration, loading it on first use.
// Load failures fall back to defaults with a warning.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
		}
		globalConfigMu.Lock()
		globalConfig = cfg
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	SetGlobal(cfg)
	return nil
}

// SetGlobal replaces the global configuration.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting clears the global state between tests.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
