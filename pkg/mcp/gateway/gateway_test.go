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
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/r3labs/sse/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/teradata-labs/switchboard/pkg/mcp/protocol"
	"github.com/teradata-labs/switchboard/pkg/mcp/session"
)

const initBody = `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","clientInfo":{"name":"agent","version":"1"}}}`

type fakeTools struct {
	mu    sync.Mutex
	calls []string
	tools []protocol.Tool
}

func newFakeTools() *fakeTools {
	return &fakeTools{tools: []protocol.Tool{
		{Name: "add_customer_record", InputSchema: map[string]interface{}{"type": "object"}},
		{Name: "send_email", InputSchema: map[string]interface{}{"type": "object"}},
	}}
}

func (f *fakeTools) Tools() []protocol.Tool { return f.tools }

func (f *fakeTools) ListTools(context.Context) ([]protocol.Tool, error) { return f.tools, nil }

func (f *fakeTools) CallTool(ctx context.Context, name string, _ map[string]interface{}) (*protocol.CallToolResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, name+"@"+session.IDFromContext(ctx))
	f.mu.Unlock()
	switch name {
	case "explode":
		panic("adapter bug")
	case "add_customer_record", "send_email":
		return &protocol.CallToolResult{Content: []protocol.Content{{Type: "text", Text: "ok " + name}}}, nil
	}
	return nil, protocol.NewError(protocol.MethodNotFound, "unknown tool: "+name, nil)
}

func newTestGateway(t *testing.T, mutate ...func(*Config)) (*Gateway, *httptest.Server, *fakeTools) {
	t.Helper()
	ft := newFakeTools()
	cfg := Config{
		Name:           "switchboard",
		Version:        "test",
		Catalog:        ft,
		Provider:       ft,
		AllowedOrigins: []string{"localhost", ".trusted.example"},
		Logger:         zaptest.NewLogger(t),
	}
	for _, m := range mutate {
		m(&cfg)
	}
	g, err := New(cfg)
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.Handle("/mcp", g)
	ts := httptest.NewServer(mux)
	t.Cleanup(func() {
		g.Close()
		ts.Close()
	})
	return g, ts, ft
}

func post(t *testing.T, ts *httptest.Server, body string, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/mcp", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response) protocol.Response {
	t.Helper()
	defer resp.Body.Close()
	var out protocol.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func initialize(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp := post(t, ts, initBody, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	id := resp.Header.Get(HeaderSessionID)
	require.NotEmpty(t, id)
	rpc := decode(t, resp)
	require.Nil(t, rpc.Error)
	return id
}

func TestGateway_InitializeAssignsSession(t *testing.T) {
	g, ts, _ := newTestGateway(t)

	resp := post(t, ts, initBody, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	id := resp.Header.Get(HeaderSessionID)
	assert.NotEmpty(t, id)
	assert.Equal(t, HeaderSessionID, resp.Header.Get("Access-Control-Expose-Headers"))

	rpc := decode(t, resp)
	require.Nil(t, rpc.Error)
	var result protocol.InitializeResult
	require.NoError(t, json.Unmarshal(rpc.Result, &result))
	assert.Equal(t, "2025-03-26", result.ProtocolVersion)
	assert.Equal(t, "switchboard", result.ServerInfo.Name)

	assert.Equal(t, 1, g.SessionCount())
	assert.Equal(t, session.StateActive, g.Sessions().State(id))

	// Reusing the header: same session, same capability set.
	resp = post(t, ts, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`, map[string]string{HeaderSessionID: id})
	assert.Equal(t, id, resp.Header.Get(HeaderSessionID))
	var list protocol.ToolListResult
	rpc = decode(t, resp)
	require.NoError(t, json.Unmarshal(rpc.Result, &list))
	assert.Len(t, list.Tools, 2)
	assert.Equal(t, 1, g.SessionCount())
}

func TestGateway_EachInitializeGetsNewID(t *testing.T) {
	g, ts, _ := newTestGateway(t)
	a := initialize(t, ts)
	b := initialize(t, ts)
	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, g.SessionCount())
}

func TestGateway_InitializeOnLiveSessionReuses(t *testing.T) {
	g, ts, _ := newTestGateway(t)
	id := initialize(t, ts)

	resp := post(t, ts, initBody, map[string]string{HeaderSessionID: id})
	assert.Equal(t, id, resp.Header.Get(HeaderSessionID))
	resp.Body.Close()
	assert.Equal(t, 1, g.SessionCount())
}

func TestGateway_ToolsListWithoutSession(t *testing.T) {
	g, ts, _ := newTestGateway(t)

	for i := 0; i < 3; i++ {
		resp := post(t, ts, `{"jsonrpc":"2.0","id":7,"method":"tools/list"}`, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, resp.Header.Get(HeaderSessionID))
		rpc := decode(t, resp)
		var list protocol.ToolListResult
		require.NoError(t, json.Unmarshal(rpc.Result, &list))
		require.Len(t, list.Tools, 2)
		assert.Equal(t, "add_customer_record", list.Tools[0].Name)
		assert.Equal(t, "7", rpc.ID.String())
	}
	assert.Equal(t, 0, g.SessionCount(), "tools/list has no side effects")
}

func TestGateway_UnknownToolIsEnvelope(t *testing.T) {
	_, ts, _ := newTestGateway(t)
	id := initialize(t, ts)

	resp := post(t, ts, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"no_such_tool","arguments":{}}}`,
		map[string]string{HeaderSessionID: id})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	rpc := decode(t, resp)
	require.NotNil(t, rpc.Error)
	assert.Contains(t, rpc.Error.Message, "no_such_tool")
	assert.Empty(t, rpc.Result)
}

func TestGateway_ToolCallCarriesSessionContext(t *testing.T) {
	_, ts, ft := newTestGateway(t)
	id := initialize(t, ts)

	resp := post(t, ts, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"send_email"}}`,
		map[string]string{HeaderSessionID: id})
	rpc := decode(t, resp)
	require.Nil(t, rpc.Error)
	assert.Equal(t, []string{"send_email@" + id}, ft.calls)
}

func TestGateway_ImplicitSession(t *testing.T) {
	g, ts, _ := newTestGateway(t)

	resp := post(t, ts, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"add_customer_record"}}`, nil)
	id := resp.Header.Get(HeaderSessionID)
	require.NotEmpty(t, id)
	rpc := decode(t, resp)
	require.Nil(t, rpc.Error)
	assert.Equal(t, session.StateActive, g.Sessions().State(id))

	// A never-seen id gets a fresh server-generated id.
	resp = post(t, ts, `{"jsonrpc":"2.0","id":2,"method":"ping"}`, map[string]string{HeaderSessionID: "client-made-up"})
	fresh := resp.Header.Get(HeaderSessionID)
	resp.Body.Close()
	assert.NotEmpty(t, fresh)
	assert.NotEqual(t, "client-made-up", fresh)
	assert.Equal(t, session.StateAbsent, g.Sessions().State("client-made-up"))
}

func TestGateway_LowerCaseSessionHeader(t *testing.T) {
	g, ts, _ := newTestGateway(t)
	id := initialize(t, ts)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/mcp", strings.NewReader(`{"jsonrpc":"2.0","id":9,"method":"ping"}`))
	require.NoError(t, err)
	req.Header["mcp-session-id"] = []string{id}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, id, resp.Header.Get(HeaderSessionID))
	assert.Equal(t, 1, g.SessionCount())

	r := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	r.Header["mcp-session-id"] = []string{"abc"}
	assert.Equal(t, "abc", sessionHeader(r))
}

func TestGateway_NotificationIsAccepted(t *testing.T) {
	_, ts, _ := newTestGateway(t)
	id := initialize(t, ts)

	resp := post(t, ts, `{"jsonrpc":"2.0","method":"notifications/initialized"}`, map[string]string{HeaderSessionID: id})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, id, resp.Header.Get(HeaderSessionID))
}

func TestGateway_GetRequiresExistingSession(t *testing.T) {
	g, ts, _ := newTestGateway(t)

	tests := []struct {
		name    string
		headers map[string]string
	}{
		{name: "no header"},
		{name: "unknown id", headers: map[string]string{HeaderSessionID: "ghost"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, ts.URL+"/mcp", nil)
			require.NoError(t, err)
			req.Header.Set("Accept", "text/event-stream")
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, 0, g.SessionCount())
			assert.Equal(t, session.StateAbsent, g.Sessions().State("ghost"))
		})
	}
}

func TestGateway_OriginRejected(t *testing.T) {
	g, ts, _ := newTestGateway(t)
	id := initialize(t, ts)

	for _, method := range []string{http.MethodPost, http.MethodGet, http.MethodDelete, http.MethodPut, http.MethodOptions} {
		t.Run(method, func(t *testing.T) {
			req, err := http.NewRequest(method, ts.URL+"/mcp", strings.NewReader(initBody))
			require.NoError(t, err)
			req.Header.Set("Origin", "https://evil.example.com")
			req.Header.Set(HeaderSessionID, id)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		})
	}
	assert.Equal(t, 1, g.SessionCount())
	assert.Equal(t, session.StateActive, g.Sessions().State(id))
}

func TestGateway_OriginAllowed(t *testing.T) {
	_, ts, _ := newTestGateway(t)

	resp := post(t, ts, initBody, map[string]string{"Origin": "https://app.trusted.example"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://app.trusted.example", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestGateway_Preflight(t *testing.T) {
	_, ts, _ := newTestGateway(t, func(c *Config) { c.SharedSecret = "s3cret" })

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/mcp", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), HeaderSessionID)
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), DefaultSecretHeader)
	assert.Equal(t, HeaderSessionID, resp.Header.Get("Access-Control-Expose-Headers"))
}

func TestGateway_SharedSecret(t *testing.T) {
	g, ts, _ := newTestGateway(t, func(c *Config) {
		c.SharedSecret = "s3cret"
		c.SecretHeader = "X-Gateway-Key"
	})

	resp := post(t, ts, initBody, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = post(t, ts, initBody, map[string]string{"X-Gateway-Key": "wrong"})
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, g.SessionCount())

	resp = post(t, ts, initBody, map[string]string{"X-Gateway-Key": "s3cret"})
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGateway_MethodNotAllowed(t *testing.T) {
	_, ts, _ := newTestGateway(t)
	req, err := http.NewRequest(http.MethodPut, ts.URL+"/mcp", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Allow"), "POST")
}

func TestGateway_MalformedBodies(t *testing.T) {
	_, ts, _ := newTestGateway(t, func(c *Config) { c.MaxBodyBytes = 256 })

	resp := post(t, ts, `{not json`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	rpc := decode(t, resp)
	require.NotNil(t, rpc.Error)
	assert.Equal(t, protocol.ParseError, rpc.Error.Code)
	assert.Nil(t, rpc.ID)

	resp = post(t, ts, `{"jsonrpc":"2.0","id":1}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	rpc = decode(t, resp)
	assert.Equal(t, protocol.InvalidRequest, rpc.Error.Code)

	resp = post(t, ts, ` [{"jsonrpc":"2.0","id":1,"method":"ping"}]`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	rpc = decode(t, resp)
	require.NotNil(t, rpc.Error)
	assert.Equal(t, protocol.InvalidRequest, rpc.Error.Code)
	assert.Contains(t, rpc.Error.Message, "batch")

	resp = post(t, ts, `{"jsonrpc":"2.0","id":1,"method":"ping","params":{"pad":"`+strings.Repeat("x", 512)+`"}}`, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)

	resp = post(t, ts, initBody, map[string]string{"Content-Type": "text/plain"})
	resp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestGateway_PermissiveAccept(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	_, ts, _ := newTestGateway(t, func(c *Config) { c.Logger = zap.New(core) })

	resp := post(t, ts, initBody, map[string]string{"Accept": "text/html"})
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, logs.FilterMessage("non-conforming Accept header").Len())
}

func TestGateway_PanicBecomesInternalError(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	_, ts, _ := newTestGateway(t, func(c *Config) { c.Logger = zap.New(core) })
	id := initialize(t, ts)

	resp := post(t, ts, `{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"explode"}}`,
		map[string]string{HeaderSessionID: id})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.JSONEq(t, string(protocol.InternalErrorEnvelope), string(body))
	assert.NotContains(t, string(body), "adapter bug")
	assert.Equal(t, 1, logs.FilterMessage("request failed").Len())
}

func TestGateway_DeleteEndsSession(t *testing.T) {
	g, ts, _ := newTestGateway(t)
	id := initialize(t, ts)

	del := func(sessionID string) int {
		req, err := http.NewRequest(http.MethodDelete, ts.URL+"/mcp", nil)
		require.NoError(t, err)
		if sessionID != "" {
			req.Header.Set(HeaderSessionID, sessionID)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusNoContent, del(id))
	assert.Equal(t, http.StatusNotFound, del(id))
	assert.Equal(t, http.StatusBadRequest, del(""))
	assert.Equal(t, 0, g.SessionCount())
	assert.Equal(t, session.StateClosed, g.Sessions().State(id))

	// Closed ids are never resurrected.
	resp := post(t, ts, `{"jsonrpc":"2.0","id":1,"method":"ping"}`, map[string]string{HeaderSessionID: id})
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, 0, g.SessionCount())
}

func TestGateway_StreamDeliversNotifications(t *testing.T) {
	g, ts, _ := newTestGateway(t)
	id := initialize(t, ts)

	client := sse.NewClient(ts.URL + "/mcp")
	client.Headers[HeaderSessionID] = id

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := make(chan *sse.Event, 16)
	go func() {
		_ = client.SubscribeRawWithContext(ctx, func(ev *sse.Event) {
			select {
			case events <- ev:
			default:
			}
		})
	}()

	// Progress notifications are only relayed once the stream is attached,
	// so keep calling until one arrives.
	var got *sse.Event
	deadline := time.After(5 * time.Second)
	for got == nil {
		resp := post(t, ts, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"send_email","_meta":{"progressToken":"p1"}}}`,
			map[string]string{HeaderSessionID: id})
		resp.Body.Close()
		select {
		case got = <-events:
		case <-time.After(50 * time.Millisecond):
		case <-deadline:
			t.Fatal("no event received on stream")
		}
	}

	var n protocol.Notification
	require.NoError(t, json.Unmarshal(got.Data, &n))
	assert.Equal(t, protocol.MethodProgress, n.Method)
	assert.Equal(t, "message", string(got.Event))

	// A second stream on the same session is refused.
	req, err := http.NewRequest(http.MethodGet, ts.URL+"/mcp", nil)
	require.NoError(t, err)
	req.Header.Set(HeaderSessionID, id)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Closing the stream closes the session.
	cancel()
	require.Eventually(t, func() bool { return g.SessionCount() == 0 }, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, session.StateClosed, g.Sessions().State(id))
}

func TestGateway_DeleteClosesOpenStream(t *testing.T) {
	g, ts, _ := newTestGateway(t)
	id := initialize(t, ts)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/mcp", nil)
	require.NoError(t, err)
	req.Header.Set(HeaderSessionID, id)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, id, resp.Header.Get(HeaderSessionID))

	s, ok := g.Sessions().Get(id)
	require.True(t, ok)
	b, err := bindingOf(s)
	require.NoError(t, err)
	assert.True(t, b.isStreaming())

	require.True(t, g.Sessions().Remove(id))

	// The stream body ends once the session is gone.
	done := make(chan struct{})
	go func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not end after session removal")
	}
}

func TestGateway_CloseEndsSessions(t *testing.T) {
	g, ts, _ := newTestGateway(t)
	initialize(t, ts)
	initialize(t, ts)
	require.Equal(t, 2, g.SessionCount())

	g.Close()
	assert.Equal(t, 0, g.SessionCount())
}

func TestNew_Validation(t *testing.T) {
	ft := newFakeTools()
	_, err := New(Config{Provider: ft})
	assert.Error(t, err)
	_, err = New(Config{Catalog: ft})
	assert.Error(t, err)
}

func TestResponseWriter_Commitment(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)
	assert.False(t, rw.Committed())

	rw.SetHeader(HeaderSessionID, "s1")
	require.NoError(t, rw.WriteJSON(http.StatusOK, []byte(`{}`)))
	assert.True(t, rw.Committed())
	assert.Equal(t, http.StatusOK, rw.Status())

	// Later status changes are ignored once committed.
	rw.WriteStatus(http.StatusTeapot)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "s1", rec.Header().Get(HeaderSessionID))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestGateway_FailAfterCommitOnlyLogs(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	g, err := New(Config{Catalog: newFakeTools(), Provider: newFakeTools(), Logger: zap.New(core)})
	require.NoError(t, err)
	defer g.Close()

	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)
	_, _ = rw.Write([]byte("partial"))

	g.fail(rw, httptest.NewRequest(http.MethodPost, "/mcp", nil), assert.AnError)
	assert.Equal(t, "partial", rec.Body.String())
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, logs.FilterMessage("request failed after response was committed").Len())

	rec = httptest.NewRecorder()
	g.fail(newResponseWriter(rec), httptest.NewRequest(http.MethodPost, "/mcp", nil), assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.True(t, bytes.Equal(protocol.InternalErrorEnvelope, rec.Body.Bytes()))
}
