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
	"fmt"

	"go.uber.org/zap"

	"github.com/teradata-labs/switchboard/pkg/mcp/protocol"
)

type entry struct {
	descriptor Descriptor
	adapter    Adapter
	wire       protocol.Tool
}

// Registry is the startup-built, read-only capability catalog.
type Registry struct {
	entries  []entry
	byName   map[string]int
	adapters []Adapter
}

// NewRegistry collects descriptors from the configured adapters in the
// order given. Adapters without credentials are skipped silently. Duplicate
// capability names are a configuration error.
func NewRegistry(logger *zap.Logger, adapters ...Adapter) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{byName: make(map[string]int)}
	for _, a := range adapters {
		if a == nil {
			continue
		}
		if !a.Configured() {
			logger.Info("backend not configured, capabilities omitted", zap.String("backend", a.Name()))
			continue
		}
		r.adapters = append(r.adapters, a)
		caps := a.Capabilities()
		for _, d := range caps {
			if d.Name == "" {
				return nil, fmt.Errorf("backend %s declares a capability without a name", a.Name())
			}
			if prev, dup := r.byName[d.Name]; dup {
				return nil, fmt.Errorf("capability %q declared by both %s and %s",
					d.Name, r.entries[prev].adapter.Name(), a.Name())
			}
			r.byName[d.Name] = len(r.entries)
			r.entries = append(r.entries, entry{descriptor: d, adapter: a, wire: d.Tool()})
		}
		logger.Info("backend registered", zap.String("backend", a.Name()), zap.Int("capabilities", len(caps)))
	}
	return r, nil
}

// List returns every descriptor: backend registration order, then
// declaration order within a backend.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.descriptor
	}
	return out
}

// Tools returns the wire form of List.
func (r *Registry) Tools() []protocol.Tool {
	out := make([]protocol.Tool, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.wire
	}
	return out
}

// Lookup finds a descriptor by exact name.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Descriptor{}, false
	}
	return r.entries[i].descriptor, true
}

// Adapters returns the configured adapters in registration order.
func (r *Registry) Adapters() []Adapter {
	return append([]Adapter(nil), r.adapters...)
}

// Len is the number of registered capabilities.
func (r *Registry) Len() int {
	return len(r.entries)
}

func (r *Registry) owner(name string) (Adapter, bool) {
	i, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return r.entries[i].adapter, true
}
