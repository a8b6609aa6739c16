// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package gateway implements the MCP streamable HTTP surface: one path that
// accepts POSTed JSON-RPC messages and GET requests opening a server-sent
// event stream, with sessions identified by the Mcp-Session-Id header.
//
// Per request the gateway checks, in order, the Origin allow-list, the
// optional shared secret and the HTTP method. Accept is only logged.
package gateway

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/r3labs/sse/v2"
	"go.uber.org/zap"

	"github.com/teradata-labs/switchboard/pkg/mcp/protocol"
	"github.com/teradata-labs/switchboard/pkg/mcp/server"
	"github.com/teradata-labs/switchboard/pkg/mcp/session"
)

const (
	// HeaderSessionID carries the session identifier in both directions.
	HeaderSessionID = "Mcp-Session-Id"

	// DefaultSecretHeader is used when a shared secret is set without a header name.
	DefaultSecretHeader = "X-Switchboard-Secret"

	// DefaultMaxBodyBytes bounds a POSTed message.
	DefaultMaxBodyBytes = 4 << 20

	lowerSessionHeader = "mcp-session-id"
)

// Catalog supplies the capability list answered directly for tools/list.
type Catalog interface {
	Tools() []protocol.Tool
}

// Config configures a Gateway.
type Config struct {
	// Name and Version identify the server in initialize results.
	Name    string
	Version string

	// Catalog answers tools/list without a session. Required.
	Catalog Catalog

	// Provider backs tools/list and tools/call inside sessions. Required.
	Provider server.ToolProvider

	// Sessions is created when nil.
	Sessions *session.Manager

	// AllowedOrigins is the Origin allow-list. Nil uses DefaultAllowedOrigins.
	AllowedOrigins []string

	// SharedSecret, when set, must be presented in SecretHeader.
	SharedSecret string
	SecretHeader string

	// MaxBodyBytes bounds POST bodies. Zero uses DefaultMaxBodyBytes.
	MaxBodyBytes int64

	// Instructions are returned from initialize.
	Instructions string

	Logger *zap.Logger
}

// Gateway is an http.Handler. Mount it on a single path.
type Gateway struct {
	name         string
	version      string
	catalog      Catalog
	provider     server.ToolProvider
	sessions     *session.Manager
	origins      *OriginPolicy
	secret       []byte
	secretHeader string
	maxBody      int64
	instructions string
	streams      *sse.Server
	logger       *zap.Logger
}

// New creates a Gateway.
func New(cfg Config) (*Gateway, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if cfg.Provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	logger := cfg.Logger.With(zap.String("component", "gateway"))
	if cfg.Sessions == nil {
		cfg.Sessions = session.NewManager(cfg.Logger)
	}
	if cfg.AllowedOrigins == nil {
		cfg.AllowedOrigins = DefaultAllowedOrigins
	}
	if cfg.SecretHeader == "" {
		cfg.SecretHeader = DefaultSecretHeader
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	streams := sse.New()
	streams.AutoReplay = false
	streams.AutoStream = false

	g := &Gateway{
		name:         cfg.Name,
		version:      cfg.Version,
		catalog:      cfg.Catalog,
		provider:     cfg.Provider,
		sessions:     cfg.Sessions,
		origins:      NewOriginPolicy(cfg.AllowedOrigins),
		secretHeader: http.CanonicalHeaderKey(cfg.SecretHeader),
		maxBody:      cfg.MaxBodyBytes,
		instructions: cfg.Instructions,
		streams:      streams,
		logger:       logger,
	}
	if cfg.SharedSecret != "" {
		g.secret = []byte(cfg.SharedSecret)
	}
	return g, nil
}

// Sessions exposes the session manager.
func (g *Gateway) Sessions() *session.Manager {
	return g.sessions
}

// SessionCount is the number of live sessions.
func (g *Gateway) SessionCount() int {
	return g.sessions.Len()
}

// Close ends every session and stream.
func (g *Gateway) Close() {
	g.sessions.CloseAll()
	g.streams.Close()
}

// ServeHTTP implements http.Handler.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w)
	rw.SetHeader("Access-Control-Expose-Headers", HeaderSessionID)

	defer func() {
		if p := recover(); p != nil {
			if p == http.ErrAbortHandler {
				panic(p)
			}
			g.fail(rw, r, fmt.Errorf("panic: %v", p), zap.ByteString("stack", debug.Stack()))
		}
	}()

	if err := g.serve(rw, r); err != nil {
		g.fail(rw, r, err)
	}
}

func (g *Gateway) serve(rw *httpResponseWriter, r *http.Request) error {
	origin := r.Header.Get("Origin")
	if !g.origins.Allowed(origin) {
		g.logger.Warn("origin rejected", zap.String("origin", origin), zap.String("method", r.Method))
		http.Error(rw, "Forbidden origin", http.StatusForbidden)
		return nil
	}
	if origin != "" {
		rw.SetHeader("Access-Control-Allow-Origin", origin)
		rw.Header().Add("Vary", "Origin")
	}

	if r.Method == http.MethodOptions {
		g.preflight(rw)
		return nil
	}

	if !g.authorized(r) {
		g.logger.Warn("shared secret mismatch", zap.String("remote", r.RemoteAddr))
		http.Error(rw, "Unauthorized", http.StatusUnauthorized)
		return nil
	}

	g.logAccept(r)

	switch r.Method {
	case http.MethodPost:
		return g.handlePost(rw, r)
	case http.MethodGet:
		return g.handleGet(rw, r)
	case http.MethodDelete:
		g.handleDelete(rw, r)
		return nil
	default:
		rw.SetHeader("Allow", "GET, POST, DELETE, OPTIONS")
		http.Error(rw, "Method not allowed", http.StatusMethodNotAllowed)
		return nil
	}
}

// fail converts an error escaping request handling into the generic
// internal-error envelope when the response is still uncommitted.
func (g *Gateway) fail(rw *httpResponseWriter, r *http.Request, err error, extra ...zap.Field) {
	fields := append([]zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	}, extra...)
	if rw.Committed() {
		g.logger.Error("request failed after response was committed", fields...)
		return
	}
	g.logger.Error("request failed", fields...)
	if werr := rw.WriteJSON(http.StatusInternalServerError, protocol.InternalErrorEnvelope); werr != nil {
		g.logger.Debug("failed to write error envelope", zap.Error(werr))
	}
}

func (g *Gateway) preflight(rw *httpResponseWriter) {
	headers := []string{"Content-Type", "Accept", HeaderSessionID, "Mcp-Protocol-Version", "Last-Event-ID"}
	if g.secret != nil {
		headers = append(headers, g.secretHeader)
	}
	rw.SetHeader("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	rw.SetHeader("Access-Control-Allow-Headers", strings.Join(headers, ", "))
	rw.SetHeader("Access-Control-Max-Age", "600")
	rw.WriteStatus(http.StatusNoContent)
}

func (g *Gateway) authorized(r *http.Request) bool {
	if g.secret == nil {
		return true
	}
	got := []byte(r.Header.Get(g.secretHeader))
	return subtle.ConstantTimeCompare(got, g.secret) == 1
}

func (g *Gateway) logAccept(r *http.Request) {
	accept := r.Header.Get("Accept")
	if accept == "" {
		return
	}
	want := "application/json"
	if r.Method == http.MethodGet {
		want = "text/event-stream"
	}
	if !strings.Contains(accept, want) && !strings.Contains(accept, "*/*") {
		g.logger.Debug("non-conforming Accept header",
			zap.String("method", r.Method),
			zap.String("accept", accept),
			zap.String("expected", want))
	}
}

// sessionHeader reads the session id, accepting a non-canonical lower-case key.
func sessionHeader(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(HeaderSessionID)); id != "" {
		return id
	}
	if vals := r.Header[lowerSessionHeader]; len(vals) > 0 {
		return strings.TrimSpace(vals[0])
	}
	return ""
}

func (g *Gateway) handleDelete(rw *httpResponseWriter, r *http.Request) {
	id := sessionHeader(r)
	if id == "" {
		http.Error(rw, "Mcp-Session-Id header required", http.StatusBadRequest)
		return
	}
	if !g.sessions.Remove(id) {
		http.Error(rw, "Session not found", http.StatusNotFound)
		return
	}
	g.logger.Info("session terminated by client", zap.String("session_id", id))
	rw.WriteStatus(http.StatusNoContent)
}

var errBindingType = errors.New("session binding is not an HTTP binding")

func bindingOf(s *session.Session) (*binding, error) {
	b, ok := s.Binding.(*binding)
	if !ok {
		return nil, errBindingType
	}
	return b, nil
}
