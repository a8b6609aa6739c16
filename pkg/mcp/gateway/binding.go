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
	"context"
	"strconv"
	"sync"

	"github.com/r3labs/sse/v2"
	"go.uber.org/zap"

	"github.com/teradata-labs/switchboard/pkg/mcp/server"
	"github.com/teradata-labs/switchboard/pkg/mcp/session"
)

// binding is the transport object owned by one HTTP session: its protocol
// engine and its SSE stream. It is created before the session id is
// reported and closed when the session manager removes the session.
type binding struct {
	id      string
	engine  *server.MCPServer
	streams *sse.Server
	logger  *zap.Logger

	mu        sync.Mutex
	streaming bool
	seq       uint64

	stop      chan struct{}
	closeOnce sync.Once
	pumpDone  chan struct{}
}

func newBinding(id string, engine *server.MCPServer, streams *sse.Server, logger *zap.Logger) *binding {
	b := &binding{
		id:       id,
		engine:   engine,
		streams:  streams,
		logger:   logger.With(zap.String("session_id", id)),
		stop:     make(chan struct{}),
		pumpDone: make(chan struct{}),
	}
	streams.CreateStream(id)
	go b.pump()
	return b
}

// handle forwards one JSON-RPC message to the session's engine. The context
// carries the session id for downstream audit.
func (b *binding) handle(ctx context.Context, body []byte) ([]byte, error) {
	return b.engine.HandleMessage(session.NewContext(ctx, b.id), body)
}

// attach claims the session's single SSE stream slot.
func (b *binding) attach() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.streaming {
		return false
	}
	b.streaming = true
	return true
}

func (b *binding) detach() {
	b.mu.Lock()
	b.streaming = false
	b.mu.Unlock()
}

func (b *binding) isStreaming() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.streaming
}

// pump relays queued server-initiated messages onto the SSE stream. With no
// subscriber attached the stream discards them.
func (b *binding) pump() {
	defer close(b.pumpDone)
	for {
		select {
		case <-b.stop:
			return
		case msg := <-b.engine.Notifications():
			b.mu.Lock()
			b.seq++
			id := strconv.FormatUint(b.seq, 10)
			b.mu.Unlock()
			b.streams.Publish(b.id, &sse.Event{
				ID:    []byte(id),
				Event: []byte("message"),
				Data:  msg,
			})
		}
	}
}

// Close stops the relay, closes the engine and ends any open stream.
func (b *binding) Close() error {
	b.closeOnce.Do(func() {
		close(b.stop)
		<-b.pumpDone
		_ = b.engine.Close()
		b.streams.RemoveStream(b.id)
	})
	return nil
}
