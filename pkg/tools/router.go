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
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/switchboard/pkg/mcp/protocol"
)

type prefixRoute struct {
	prefix  string
	adapter Adapter
}

// Router dispatches invocations to the adapter that owns a capability name.
// The routing table is built once from a Registry and never changes.
type Router struct {
	table    map[string]Adapter
	prefixes []prefixRoute
	logger   *zap.Logger
}

// NewRouter builds the name and prefix tables from the registry.
func NewRouter(registry *Registry, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Router{
		table:  make(map[string]Adapter, registry.Len()),
		logger: logger.With(zap.String("component", "router")),
	}
	for _, d := range registry.List() {
		a, _ := registry.owner(d.Name)
		r.table[d.Name] = a
	}
	for _, a := range registry.Adapters() {
		if p := a.Prefix(); p != "" {
			r.prefixes = append(r.prefixes, prefixRoute{prefix: p, adapter: a})
		}
	}
	sort.SliceStable(r.prefixes, func(i, j int) bool {
		return len(r.prefixes[i].prefix) > len(r.prefixes[j].prefix)
	})
	return r
}

// Route returns the adapter owning name. A recognized namespace prefix wins
// over the exact-name table.
func (r *Router) Route(name string) (Adapter, error) {
	for _, p := range r.prefixes {
		if strings.HasPrefix(name, p.prefix) {
			return p.adapter, nil
		}
	}
	if a, ok := r.table[name]; ok {
		return a, nil
	}
	return nil, &UnknownCapabilityError{Name: name}
}

// Invoke routes name and runs it. Adapter panics are recovered and returned
// as errors so one failing capability cannot take the process down.
func (r *Router) Invoke(ctx context.Context, name string, args map[string]interface{}) (res *Result, err error) {
	adapter, err := r.Route(name)
	if err != nil {
		r.logger.Warn("unknown capability", zap.String("tool", name))
		return nil, err
	}

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("capability panicked",
				zap.String("tool", name),
				zap.String("backend", adapter.Name()),
				zap.Any("panic", p),
				zap.Stack("stack"))
			res, err = nil, fmt.Errorf("%s failed unexpectedly", name)
		}
		fields := []zap.Field{
			zap.String("tool", name),
			zap.String("backend", adapter.Name()),
			zap.Duration("duration", time.Since(start)),
		}
		if err != nil {
			r.logger.Info("capability failed", append(fields, zap.Error(err))...)
			return
		}
		r.logger.Debug("capability succeeded", fields...)
	}()

	if args == nil {
		args = map[string]interface{}{}
	}
	res, err = adapter.Invoke(ctx, name, args)
	if err == nil && res == nil {
		res = &Result{}
	}
	return res, err
}

// Provider adapts a Registry and an Invoker to the MCP server's tool provider
// contract.
type Provider struct {
	Registry *Registry
	Invoker  Invoker
}

// ListTools returns the registry in wire form.
func (p *Provider) ListTools(ctx context.Context) ([]protocol.Tool, error) {
	return p.Registry.Tools(), nil
}

// CallTool invokes a capability. Failures come back as *protocol.Error so the
// caller receives a JSON-RPC error envelope instead of a transport failure.
func (p *Provider) CallTool(ctx context.Context, name string, args map[string]interface{}) (*protocol.CallToolResult, error) {
	res, err := p.Invoker.Invoke(ctx, name, args)
	if err != nil {
		return nil, RPCError(err)
	}
	content := res.Content
	if content == nil {
		content = []protocol.Content{}
	}
	return &protocol.CallToolResult{Content: content}, nil
}
