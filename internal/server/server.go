// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jeranaias/gqlpilot/internal/gptconfig"
	"github.com/jeranaias/gqlpilot/internal/llm"
	"github.com/jeranaias/gqlpilot/internal/wire"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr is the listen address of a local service.
	DefaultAddr = "127.0.0.1:7001"

	// MaxRequestBodySize bounds POST bodies and chat frames.
	MaxRequestBodySize = 1 * 1024 * 1024

	// Version is reported by /health.
	Version = "0.3.0"

	chatPath   = "/api/chat"
	configPath = gptconfig.APIPath

	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
)

// ============================================================================
// COLLABORATORS
// ============================================================================

// ConfigStore persists the GPT settings.
type ConfigStore interface {
	Get(ctx context.Context) (gptconfig.Config, error)
	Save(ctx context.Context, cfg gptconfig.Config) error
}

// Upstream performs one completion exchange. See llm.Client.Fetch.
type Upstream interface {
	Fetch(ctx context.Context, up llm.Upstream, req wire.ChatRequest, onChunk func(json.RawMessage)) (json.RawMessage, error)
}

// ============================================================================
// SERVER
// ============================================================================

// Config holds server settings.
type Config struct {
	Addr           string
	AuthToken      string
	AllowedOrigins []string
	RateLimit      float64 // requests per second per client, 0 disables
	RateBurst      int
	Logger         *log.Logger
}

// DefaultConfig returns settings for a local service.
func DefaultConfig() Config {
	return Config{
		Addr:           DefaultAddr,
		AllowedOrigins: DefaultCORSConfig().AllowedOrigins,
		RateLimit:      5,
		RateBurst:      20,
	}
}

// Server is the chat service.
type Server struct {
	cfg      Config
	store    ConfigStore
	upstream Upstream
	limiter  *RateLimiter
	cors     *CORSConfig
	metrics  *serverMetrics
	upgrader websocket.Upgrader
	handler  http.Handler
	started  time.Time

	mu      sync.Mutex
	httpSrv *http.Server
	conns   map[*websocket.Conn]struct{}
}

// New creates a server. Routes are ready immediately through Handler.
func New(cfg Config, store ConfigStore, upstream Upstream) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "", 0)
	}
	cors := DefaultCORSConfig()
	if len(cfg.AllowedOrigins) > 0 {
		cors.AllowedOrigins = cfg.AllowedOrigins
	}

	s := &Server{
		cfg:      cfg,
		store:    store,
		upstream: upstream,
		limiter:  NewRateLimiter(cfg.RateLimit, cfg.RateBurst),
		cors:     cors,
		metrics:  newServerMetrics(),
		started:  time.Now(),
		conns:    make(map[*websocket.Conn]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	s.handler = s.routes()
	return s
}

// checkOrigin admits non-browser clients (no Origin) and allowlisted origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || s.cors.OriginAllowed(origin)
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+configPath, s.handleGetConfig)
	mux.HandleFunc("POST "+configPath, s.handleSaveConfig)
	mux.HandleFunc("GET "+chatPath, s.handleChatSocket)
	mux.Handle("GET /metrics", s.metrics.handler())
	mux.HandleFunc("GET /health", s.handleHealth)

	return Chain(
		RecoveryMiddleware(),
		LoggingMiddleware(s.cfg.Logger),
		InstrumentMiddleware(s.metrics),
		CORSMiddleware(s.cors),
		AuthMiddleware(s.cfg.AuthToken),
		RateLimitMiddleware(s.limiter),
	)(mux)
}

// Handler returns the complete handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.mu.Lock()
	s.httpSrv = srv
	s.mu.Unlock()

	log.Printf("SERVER_STARTED | addr=%s auth=%t", ln.Addr(), s.cfg.AuthToken != "")
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections, closes open chat sockets and waits
// for HTTP handlers to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpSrv
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		_ = c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = c.Close()
	}
	if srv == nil {
		return nil
	}
	log.Printf("SERVER_STOPPING | open_sockets=%d", len(conns))
	return srv.Shutdown(ctx)
}

// ============================================================================
// CONFIG AND HEALTH HANDLERS
// ============================================================================

// apiResponse is the {code, data, message} body of the config endpoints.
type apiResponse struct {
	Code    int    `json:"code"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.Get(r.Context())
	if err != nil {
		log.Printf("GPT_CONFIG_READ_FAILED | err=%v", err)
		writeJSON(w, http.StatusInternalServerError, apiResponse{Code: wire.CodeError, Message: "failed to read settings"})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Code: wire.CodeOK, Data: cfg.Masked()})
}

func (s *Server) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var cfg gptconfig.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, apiResponse{Code: wire.CodeError, Message: "request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, apiResponse{Code: wire.CodeError, Message: "invalid request format"})
		return
	}
	if cfg.URL != "" && !validURL(cfg.URL) {
		writeJSON(w, http.StatusBadRequest, apiResponse{Code: wire.CodeError, Message: "url must be http or https"})
		return
	}

	if err := s.store.Save(r.Context(), cfg); err != nil {
		log.Printf("GPT_CONFIG_SAVE_FAILED | err=%v", err)
		writeJSON(w, http.StatusInternalServerError, apiResponse{Code: wire.CodeError, Message: "failed to save settings"})
		return
	}
	s.metrics.configUpdates.Inc()
	writeJSON(w, http.StatusOK, apiResponse{Code: wire.CodeOK})
}

// HealthResponse is the /health body.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
	Sockets int    `json:"sockets"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	sockets := len(s.conns)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: Version,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
		Sockets: sockets,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("RESPONSE_ENCODE_FAILED | err=%v", err)
	}
}
