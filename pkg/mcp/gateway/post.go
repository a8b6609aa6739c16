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

package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"go.uber.org/zap"

	"github.com/teradata-labs/switchboard/pkg/mcp/protocol"
	"github.com/teradata-labs/switchboard/pkg/mcp/server"
	"github.com/teradata-labs/switchboard/pkg/mcp/session"
)

func (g *Gateway) handlePost(rw *httpResponseWriter, r *http.Request) error {
	defer r.Body.Close()

	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, _ := mime.ParseMediaType(ct)
		if mediaType != "application/json" {
			http.Error(rw, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
			return nil
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(rw, r.Body, g.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(rw, "Request body too large", http.StatusRequestEntityTooLarge)
			return nil
		}
		g.logger.Warn("failed to read request body", zap.Error(err))
		http.Error(rw, "Failed to read request body", http.StatusBadRequest)
		return nil
	}

	if trimmed := bytes.TrimLeft(body, " \t\r\n"); len(trimmed) > 0 && trimmed[0] == '[' {
		return g.writeEnvelope(rw, http.StatusBadRequest, nil,
			protocol.NewError(protocol.InvalidRequest, "batch requests are not supported", nil))
	}

	method, id, err := protocol.PeekMethod(body)
	if err != nil || method == "" {
		msg := "invalid JSON"
		code := protocol.ParseError
		if err == nil {
			msg, code = "method is required", protocol.InvalidRequest
		}
		return g.writeEnvelope(rw, http.StatusBadRequest, id, protocol.NewError(code, msg, nil))
	}

	// Detach from client cancellation: a dispatched invocation runs to
	// completion even if the caller goes away.
	ctx := context.WithoutCancel(r.Context())

	switch method {
	case protocol.MethodInitialize:
		return g.postInitialize(ctx, rw, r, id, body)
	case protocol.MethodToolsList:
		return g.postToolsList(rw, r, id)
	default:
		return g.postForward(ctx, rw, r, body)
	}
}

// postInitialize commits to a fresh session id before any protocol work so
// the header is on the response whatever happens next. The session becomes
// active when the engine confirms the handshake.
func (g *Gateway) postInitialize(ctx context.Context, rw *httpResponseWriter, r *http.Request, reqID *protocol.RequestID, body []byte) error {
	if presented := sessionHeader(r); presented != "" {
		if s, ok := g.sessions.Get(presented); ok {
			return g.forward(ctx, rw, s, body)
		}
	}

	id := g.sessions.NewID()
	rw.SetHeader(HeaderSessionID, id)

	s, err := g.createSession(id, true)
	if err != nil {
		return err
	}
	g.logger.Info("session initializing", zap.String("session_id", id), zap.String("remote", r.RemoteAddr))

	b, err := bindingOf(s)
	if err != nil {
		return err
	}
	resp, err := b.handle(ctx, body)
	if err != nil {
		return fmt.Errorf("initialize session %s: %w", id, err)
	}
	if resp == nil {
		resp, err = protocol.MarshalResult(reqID, protocol.InitializeResult{
			ProtocolVersion: protocol.LatestProtocolVersion,
			Capabilities:    protocol.ServerCapabilities{Tools: &protocol.ToolsCapability{}},
			ServerInfo:      protocol.Implementation{Name: g.name, Version: g.version},
		})
		if err != nil {
			return err
		}
	}
	return rw.WriteJSON(http.StatusOK, resp)
}

// postToolsList answers from the catalog without touching any session.
func (g *Gateway) postToolsList(rw *httpResponseWriter, r *http.Request, reqID *protocol.RequestID) error {
	if presented := sessionHeader(r); presented != "" {
		if _, ok := g.sessions.Get(presented); ok {
			rw.SetHeader(HeaderSessionID, presented)
		}
	}
	tools := g.catalog.Tools()
	if tools == nil {
		tools = []protocol.Tool{}
	}
	resp, err := protocol.MarshalResult(reqID, protocol.ToolListResult{Tools: tools})
	if err != nil {
		return err
	}
	return rw.WriteJSON(http.StatusOK, resp)
}

// postForward hands any other message to the session's engine, creating an
// implicit session when none is presented.
func (g *Gateway) postForward(ctx context.Context, rw *httpResponseWriter, r *http.Request, body []byte) error {
	presented := sessionHeader(r)
	var s *session.Session

	if presented != "" {
		if existing, ok := g.sessions.Get(presented); ok {
			s = existing
		} else if g.sessions.State(presented) == session.StateClosed {
			http.Error(rw, "Session closed; re-initialize", http.StatusNotFound)
			return nil
		}
	}

	if s == nil {
		id := g.sessions.NewID()
		rw.SetHeader(HeaderSessionID, id)
		created, err := g.createSession(id, false)
		if err != nil {
			return err
		}
		g.logger.Info("implicit session created",
			zap.String("session_id", id),
			zap.String("presented", presented))
		s = created
	}

	return g.forward(ctx, rw, s, body)
}

func (g *Gateway) forward(ctx context.Context, rw *httpResponseWriter, s *session.Session, body []byte) error {
	rw.SetHeader(HeaderSessionID, s.ID)
	b, err := bindingOf(s)
	if err != nil {
		return err
	}
	resp, err := b.handle(ctx, body)
	if err != nil {
		return fmt.Errorf("session %s: %w", s.ID, err)
	}
	if resp == nil {
		rw.WriteStatus(http.StatusAccepted)
		return nil
	}
	return rw.WriteJSON(http.StatusOK, resp)
}

// createSession builds a binding and registers it. Sessions that will not
// see an initialize handshake are activated immediately.
func (g *Gateway) createSession(id string, awaitHandshake bool) (*session.Session, error) {
	engine := server.NewMCPServer(g.name, g.version, g.logger.With(zap.String("session_id", id)),
		server.WithToolProvider(g.provider),
		server.WithInstructions(g.instructions),
		server.OnInitialized(func(client protocol.Implementation) {
			if err := g.sessions.Activate(id); err != nil {
				g.logger.Warn("session activation failed", zap.String("session_id", id), zap.Error(err))
				return
			}
			g.logger.Debug("handshake complete", zap.String("session_id", id), zap.String("client", client.Name))
		}),
	)
	b := newBinding(id, engine, g.streams, g.logger)

	s, err := g.sessions.Create(id, b)
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("register session: %w", err)
	}
	if !awaitHandshake {
		if err := g.sessions.Activate(id); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (g *Gateway) writeEnvelope(rw *httpResponseWriter, status int, id *protocol.RequestID, rpcErr *protocol.Error) error {
	resp, err := protocol.MarshalError(id, rpcErr)
	if err != nil {
		return err
	}
	return rw.WriteJSON(status, resp)
}
