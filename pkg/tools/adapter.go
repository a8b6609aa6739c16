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

// Package tools holds the capability catalog shared by every transport: the
// descriptors contributed by backend adapters, the registry that orders them,
// and the router that dispatches invocations by name.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/teradata-labs/switchboard/pkg/mcp/protocol"
)

// Descriptor describes one invocable capability. Immutable once registered.
type Descriptor struct {
	Name        string
	Description string
	InputSchema *Schema
}

// Tool renders the descriptor in its MCP wire form.
func (d Descriptor) Tool() protocol.Tool {
	return protocol.Tool{
		Name:        d.Name,
		Description: d.Description,
		InputSchema: d.InputSchema.Map(),
	}
}

// Adapter translates capability invocations into calls against one
// third-party backend.
type Adapter interface {
	// Name identifies the backend, e.g. "records".
	Name() string

	// Prefix is the namespace family marker shared by the adapter's
	// capability names, e.g. "calendly_". Empty when the adapter has none.
	Prefix() string

	// Configured reports whether credentials for the backend are present.
	// Unconfigured adapters contribute no capabilities.
	Configured() bool

	// Capabilities lists descriptors in declaration order.
	Capabilities() []Descriptor

	// Invoke runs a capability. Failures are returned as *ValidationError,
	// *UnknownCapabilityError or *UpstreamError where they apply.
	Invoke(ctx context.Context, name string, args map[string]interface{}) (*Result, error)
}

// Invoker runs a capability by name. The Router is the base implementation;
// decorators such as the audit journal wrap it.
type Invoker interface {
	Invoke(ctx context.Context, name string, args map[string]interface{}) (*Result, error)
}

// Result is a successful invocation: an ordered sequence of text blocks.
type Result struct {
	Content []protocol.Content
}

// TextResult wraps plain text.
func TextResult(text string) *Result {
	return &Result{Content: []protocol.Content{{Type: "text", Text: text}}}
}

// JSONResult serializes v into an indented JSON text block.
func JSONResult(v interface{}) (*Result, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return TextResult(string(raw)), nil
}

// Text concatenates the text blocks of a result.
func (r *Result) Text() string {
	if r == nil {
		return ""
	}
	out := ""
	for i, c := range r.Content {
		if i > 0 {
			out += "\n"
		}
		out += c.Text
	}
	return out
}

// Validate checks args against the descriptor's input schema and returns a
// *ValidationError listing every violation.
func (d Descriptor) Validate(args map[string]interface{}) error {
	problems, err := protocol.SchemaViolations(d.InputSchema.Map(), args)
	if err != nil {
		return fmt.Errorf("validate %s: %w", d.Name, err)
	}
	if len(problems) > 0 {
		return &ValidationError{Capability: d.Name, Problems: problems}
	}
	return nil
}
