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
	"net/http"
	"time"

	"go.uber.org/zap"
)

// handleGet attaches an SSE stream to an existing session. Streams never
// create sessions. When the stream ends the session is removed.
func (g *Gateway) handleGet(rw *httpResponseWriter, r *http.Request) error {
	id := sessionHeader(r)
	if id == "" {
		http.Error(rw, "Mcp-Session-Id header required", http.StatusBadRequest)
		return nil
	}
	s, ok := g.sessions.Get(id)
	if !ok {
		http.Error(rw, "Unknown session", http.StatusBadRequest)
		return nil
	}
	b, err := bindingOf(s)
	if err != nil {
		return err
	}
	if !b.attach() {
		http.Error(rw, "Stream already open for session", http.StatusConflict)
		return nil
	}
	defer b.detach()

	// The SSE server selects the stream by query parameter. Resumption is
	// not offered, so Last-Event-ID is dropped.
	sr := r.Clone(r.Context())
	q := sr.URL.Query()
	q.Set("stream", id)
	sr.URL.RawQuery = q.Encode()
	sr.Header.Del("Last-Event-ID")

	rw.SetHeader(HeaderSessionID, id)
	rw.SetHeader("X-Accel-Buffering", "no")

	start := time.Now()
	g.logger.Info("stream opened", zap.String("session_id", id))
	g.streams.ServeHTTP(rw, sr)

	g.logger.Info("stream closed", zap.String("session_id", id), zap.Duration("duration", time.Since(start)))
	g.sessions.Remove(id)
	return nil
}
