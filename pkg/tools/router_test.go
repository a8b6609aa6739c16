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

package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teradata-labs/switchboard/pkg/mcp/protocol"
)

func newTestRouter(t *testing.T, adapters ...Adapter) *Router {
	t.Helper()
	reg, err := NewRegistry(zaptest.NewLogger(t), adapters...)
	require.NoError(t, err)
	return NewRouter(reg, zaptest.NewLogger(t))
}

func TestRouter_ExactMatch(t *testing.T) {
	records := &fakeAdapter{name: "records", configured: true, caps: descriptors("add_customer_record")}
	mail := &fakeAdapter{name: "notify", configured: true, caps: descriptors("send_email")}
	r := newTestRouter(t, records, mail)

	a, err := r.Route("send_email")
	require.NoError(t, err)
	assert.Equal(t, "notify", a.Name())

	res, err := r.Invoke(context.Background(), "add_customer_record", nil)
	require.NoError(t, err)
	assert.Equal(t, "records:add_customer_record", res.Text())
}

func TestRouter_PrefixWins(t *testing.T) {
	sched := &fakeAdapter{name: "scheduling", prefix: "calendly_", configured: true, caps: descriptors("calendly_list_event_types")}
	r := newTestRouter(t, sched)

	// Undeclared names in the family still reach the family's adapter.
	a, err := r.Route("calendly_future_tool")
	require.NoError(t, err)
	assert.Equal(t, "scheduling", a.Name())
}

func TestRouter_LongestPrefix(t *testing.T) {
	short := &fakeAdapter{name: "short", prefix: "cal_", configured: true, caps: descriptors("cal_a")}
	long := &fakeAdapter{name: "long", prefix: "cal_ext_", configured: true, caps: descriptors("cal_ext_a")}
	r := newTestRouter(t, short, long)

	a, err := r.Route("cal_ext_a")
	require.NoError(t, err)
	assert.Equal(t, "long", a.Name())
}

func TestRouter_Unknown(t *testing.T) {
	r := newTestRouter(t, &fakeAdapter{name: "a", configured: true, caps: descriptors("a_one")})

	_, err := r.Invoke(context.Background(), "does_not_exist", nil)
	var unknown *UnknownCapabilityError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "does_not_exist", unknown.Name)
	assert.Contains(t, err.Error(), "does_not_exist")
}

func TestRouter_UnconfiguredPrefixNotRouted(t *testing.T) {
	sched := &fakeAdapter{name: "scheduling", prefix: "calendly_", configured: false, caps: descriptors("calendly_x")}
	r := newTestRouter(t, sched)

	_, err := r.Route("calendly_x")
	var unknown *UnknownCapabilityError
	assert.ErrorAs(t, err, &unknown)
}

func TestRouter_RecoversPanic(t *testing.T) {
	boom := &fakeAdapter{
		name: "boom", configured: true, caps: descriptors("explode"),
		invoke: func(context.Context, string, map[string]interface{}) (*Result, error) {
			panic("kaboom")
		},
	}
	r := newTestRouter(t, boom)

	res, err := r.Invoke(context.Background(), "explode", nil)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Contains(t, err.Error(), "explode")
}

func TestRouter_NilArgsBecomeEmpty(t *testing.T) {
	var got map[string]interface{}
	a := &fakeAdapter{
		name: "a", configured: true, caps: descriptors("echo"),
		invoke: func(_ context.Context, _ string, args map[string]interface{}) (*Result, error) {
			got = args
			return nil, nil
		},
	}
	r := newTestRouter(t, a)

	res, err := r.Invoke(context.Background(), "echo", nil)
	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.NotNil(t, got)
}

func TestProvider_CallTool(t *testing.T) {
	failing := &fakeAdapter{
		name: "a", configured: true, caps: descriptors("ok", "upstream", "invalid"),
		invoke: func(_ context.Context, name string, _ map[string]interface{}) (*Result, error) {
			switch name {
			case "upstream":
				return nil, NewUpstreamError("sheets", 503, []byte("unavailable"))
			case "invalid":
				return nil, Invalid(name, "email is required")
			}
			return TextResult("done"), nil
		},
	}
	reg, err := NewRegistry(zaptest.NewLogger(t), failing)
	require.NoError(t, err)
	p := &Provider{Registry: reg, Invoker: NewRouter(reg, zaptest.NewLogger(t))}

	tools, err := p.ListTools(context.Background())
	require.NoError(t, err)
	assert.Len(t, tools, 3)

	res, err := p.CallTool(context.Background(), "ok", nil)
	require.NoError(t, err)
	require.Len(t, res.Content, 1)
	assert.Equal(t, "done", res.Content[0].Text)

	tests := []struct {
		tool string
		code int
		text string
	}{
		{tool: "upstream", code: protocol.ServerError, text: "503"},
		{tool: "invalid", code: protocol.InvalidParams, text: "email is required"},
		{tool: "missing_tool", code: protocol.MethodNotFound, text: "missing_tool"},
	}
	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			_, err := p.CallTool(context.Background(), tt.tool, nil)
			var rpcErr *protocol.Error
			require.True(t, errors.As(err, &rpcErr))
			assert.Equal(t, tt.code, rpcErr.Code)
			assert.Contains(t, rpcErr.Message, tt.text)
		})
	}
}
