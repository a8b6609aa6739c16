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

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/switchboard/pkg/mcp/protocol"
	"github.com/teradata-labs/switchboard/pkg/mcp/transport"
)

// MethodHandler handles one JSON-RPC method. id is nil for notifications.
type MethodHandler func(ctx context.Context, id json.RawMessage, params json.RawMessage) (interface{}, error)

// notifyBuffer bounds queued server-initiated messages per session.
const notifyBuffer = 32

// MCPServer holds the protocol state of one session: negotiated version,
// client identity and the method table.
type MCPServer struct {
	info          protocol.Implementation
	capabilities  protocol.ServerCapabilities
	instructions  string
	handlers      map[string]MethodHandler
	onInitialized []func(protocol.Implementation)
	logger        *zap.Logger

	mu          sync.RWMutex
	clientInfo  *protocol.Implementation
	version     string
	initialized bool

	notifyCh  chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// Option configures an MCPServer.
type Option func(*MCPServer)

// WithToolProvider registers tools/list and tools/call.
func WithToolProvider(p ToolProvider) Option {
	return func(s *MCPServer) {
		s.capabilities.Tools = &protocol.ToolsCapability{}
		s.RegisterHandler(protocol.MethodToolsList, newToolsListHandler(p))
		s.RegisterHandler(protocol.MethodToolsCall, newToolsCallHandler(s, p))
	}
}

// WithInstructions sets the instructions returned from initialize.
func WithInstructions(text string) Option {
	return func(s *MCPServer) {
		s.instructions = text
	}
}

// OnInitialized registers a callback fired once, after the first successful
// initialize handshake.
func OnInitialized(fn func(client protocol.Implementation)) Option {
	return func(s *MCPServer) {
		if fn != nil {
			s.onInitialized = append(s.onInitialized, fn)
		}
	}
}

// NewMCPServer creates a server with the core methods registered.
func NewMCPServer(name, version string, logger *zap.Logger, opts ...Option) *MCPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &MCPServer{
		info:         protocol.Implementation{Name: name, Version: version},
		capabilities: protocol.ServerCapabilities{Logging: &protocol.LoggingCapability{}},
		handlers:     make(map[string]MethodHandler),
		logger:       logger,
		notifyCh:     make(chan []byte, notifyBuffer),
		done:         make(chan struct{}),
	}

	s.RegisterHandler(protocol.MethodInitialize, s.handleInitialize)
	s.RegisterHandler(protocol.MethodInitialized, s.handleInitializedNotification)
	s.RegisterHandler(protocol.MethodPing, s.handlePing)
	s.RegisterHandler(protocol.MethodCancelled, s.handleCancelled)

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterHandler adds or replaces a method handler.
func (s *MCPServer) RegisterHandler(method string, handler MethodHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = handler
}

// ClientInfo returns the client identity recorded at initialize, if any.
func (s *MCPServer) ClientInfo() (protocol.Implementation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.clientInfo == nil {
		return protocol.Implementation{}, false
	}
	return *s.clientInfo, true
}

// Initialized reports whether the handshake completed.
func (s *MCPServer) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// NegotiatedVersion is the protocol version agreed at initialize.
func (s *MCPServer) NegotiatedVersion() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Notifications delivers server-initiated messages for this session.
func (s *MCPServer) Notifications() <-chan []byte {
	return s.notifyCh
}

// Done is closed when the server is closed.
func (s *MCPServer) Done() <-chan struct{} {
	return s.done
}

// Close stops notification delivery. Safe to call more than once.
func (s *MCPServer) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

// HandleMessage processes a single JSON-RPC message and returns the encoded
// response, or nil for notifications.
func (s *MCPServer) HandleMessage(ctx context.Context, msg []byte) ([]byte, error) {
	var req protocol.Request
	if err := json.Unmarshal(msg, &req); err != nil {
		return protocol.MarshalError(nil, protocol.NewError(protocol.ParseError, "invalid JSON", nil))
	}
	if err := protocol.ValidateRequest(&req); err != nil {
		return protocol.MarshalError(req.ID, protocol.NewError(protocol.InvalidRequest, err.Error(), nil))
	}

	s.logger.Debug("handling request", zap.String("method", req.Method), zap.Stringer("id", req.ID))
	start := time.Now()

	s.mu.RLock()
	handler, ok := s.handlers[req.Method]
	s.mu.RUnlock()

	if !ok {
		if req.IsNotification() {
			return nil, nil
		}
		return protocol.MarshalError(req.ID, protocol.NewError(protocol.MethodNotFound,
			fmt.Sprintf("method not found: %s", req.Method), nil))
	}

	var rawID json.RawMessage
	if req.ID != nil {
		idBytes, err := json.Marshal(req.ID)
		if err != nil {
			return protocol.MarshalError(nil, protocol.NewError(protocol.InternalError, "failed to marshal request ID", nil))
		}
		rawID = idBytes
	}

	result, err := handler(ctx, rawID, req.Params)
	duration := time.Since(start)

	if err != nil {
		s.logger.Warn("handler error",
			zap.String("method", req.Method),
			zap.Duration("duration", duration),
			zap.Error(err))
		if req.IsNotification() {
			return nil, nil
		}
		var rpcErr *protocol.Error
		if errors.As(err, &rpcErr) {
			return protocol.MarshalError(req.ID, rpcErr)
		}
		return protocol.MarshalError(req.ID, protocol.NewError(protocol.InternalError, err.Error(), nil))
	}

	s.logger.Debug("request handled", zap.String("method", req.Method), zap.Duration("duration", duration))

	if req.IsNotification() {
		return nil, nil
	}
	if req.Method == protocol.MethodInitialize {
		s.fireInitialized()
	}
	return protocol.MarshalResult(req.ID, result)
}

// Serve runs the server over a message transport until the context is
// cancelled or the transport fails.
func (s *MCPServer) Serve(ctx context.Context, t transport.Transport) error {
	s.logger.Info("MCP server starting", zap.String("name", s.info.Name), zap.String("version", s.info.Version))

	msgCh := make(chan []byte)
	errCh := make(chan error, 1)
	go func() {
		for {
			msg, err := t.Receive(ctx)
			if err != nil {
				errCh <- err
				return
			}
			select {
			case msgCh <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("MCP server stopping (context cancelled)")
			return ctx.Err()

		case err := <-errCh:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) || errors.Is(err, transport.ErrClosed) {
				s.logger.Info("MCP server stopping (end of input)")
				return nil
			}
			s.logger.Error("receive error", zap.Error(err))
			return fmt.Errorf("receive error: %w", err)

		case msg := <-msgCh:
			resp, err := s.HandleMessage(ctx, msg)
			if err != nil {
				s.logger.Error("handle error", zap.Error(err))
				continue
			}
			if resp == nil {
				continue
			}
			if err := t.Send(ctx, resp); err != nil {
				s.logger.Error("send error", zap.Error(err))
				return fmt.Errorf("send error: %w", err)
			}

		case notif := <-s.notifyCh:
			if err := t.Send(ctx, notif); err != nil {
				s.logger.Error("notification send error", zap.Error(err))
				return fmt.Errorf("notification send error: %w", err)
			}
		}
	}
}

// Notify queues a server-initiated notification. It never blocks; when the
// queue is full or the server is closed the message is dropped.
func (s *MCPServer) Notify(method string, params interface{}) {
	select {
	case <-s.done:
		return
	default:
	}
	msg, err := protocol.MarshalNotification(method, params)
	if err != nil {
		s.logger.Warn("failed to encode notification", zap.String("method", method), zap.Error(err))
		return
	}
	select {
	case s.notifyCh <- msg:
	default:
		s.logger.Warn("notification dropped: queue full", zap.String("method", method))
	}
}

func (s *MCPServer) notifyProgress(token interface{}, progress float64, message string) {
	s.Notify(protocol.MethodProgress, protocol.ProgressParams{
		ProgressToken: token,
		Progress:      progress,
		Total:         1,
		Message:       message,
	})
}

func (s *MCPServer) fireInitialized() {
	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return
	}
	s.initialized = true
	client := protocol.Implementation{}
	if s.clientInfo != nil {
		client = *s.clientInfo
	}
	callbacks := s.onInitialized
	s.mu.Unlock()

	for _, fn := range callbacks {
		fn(client)
	}
}

func (s *MCPServer) handleInitialize(_ context.Context, _ json.RawMessage, params json.RawMessage) (interface{}, error) {
	var initParams protocol.InitializeParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &initParams); err != nil {
			return nil, protocol.NewError(protocol.InvalidParams, fmt.Sprintf("invalid initialize params: %v", err), nil)
		}
	}

	version := protocol.NegotiateVersion(initParams.ProtocolVersion)
	if initParams.ProtocolVersion != "" && version != initParams.ProtocolVersion {
		s.logger.Warn("client protocol version not supported, offering latest",
			zap.String("client_version", initParams.ProtocolVersion),
			zap.String("server_version", version))
	}

	s.mu.Lock()
	s.version = version
	if initParams.ClientInfo.Name != "" {
		ci := initParams.ClientInfo
		s.clientInfo = &ci
	}
	s.mu.Unlock()

	if initParams.ClientInfo.Name != "" {
		s.logger.Info("client connected",
			zap.String("client_name", initParams.ClientInfo.Name),
			zap.String("client_version", initParams.ClientInfo.Version),
			zap.String("protocol_version", version))
	}

	return protocol.InitializeResult{
		ProtocolVersion: version,
		Capabilities:    s.capabilities,
		ServerInfo:      s.info,
		Instructions:    s.instructions,
	}, nil
}

func (s *MCPServer) handleInitializedNotification(_ context.Context, _ json.RawMessage, _ json.RawMessage) (interface{}, error) {
	s.logger.Debug("client initialized")
	return nil, nil
}

func (s *MCPServer) handlePing(_ context.Context, _ json.RawMessage, _ json.RawMessage) (interface{}, error) {
	return struct{}{}, nil
}

// handleCancelled acknowledges cancellation notices. Dispatched invocations
// run to completion regardless.
func (s *MCPServer) handleCancelled(_ context.Context, _ json.RawMessage, params json.RawMessage) (interface{}, error) {
	s.logger.Debug("client cancelled request", zap.ByteString("params", params))
	return nil, nil
}
