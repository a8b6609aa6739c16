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
	"fmt"

	"github.com/teradata-labs/switchboard/pkg/mcp/protocol"
)

func newToolsListHandler(provider ToolProvider) MethodHandler {
	return func(ctx context.Context, _ json.RawMessage, _ json.RawMessage) (interface{}, error) {
		tools, err := provider.ListTools(ctx)
		if err != nil {
			return nil, fmt.Errorf("list tools: %w", err)
		}
		if tools == nil {
			tools = []protocol.Tool{}
		}
		return protocol.ToolListResult{Tools: tools}, nil
	}
}

// newToolsCallHandler dispatches tools/call. Provider failures are returned
// unchanged so a *protocol.Error reaches the client's error envelope.
func newToolsCallHandler(s *MCPServer, provider ToolProvider) MethodHandler {
	return func(ctx context.Context, _ json.RawMessage, params json.RawMessage) (interface{}, error) {
		var call protocol.CallToolParams
		if len(params) == 0 {
			return nil, protocol.NewError(protocol.InvalidParams, "tool call params are required", nil)
		}
		if err := json.Unmarshal(params, &call); err != nil {
			return nil, protocol.NewError(protocol.InvalidParams, fmt.Sprintf("invalid tool call params: %v", err), nil)
		}
		if call.Name == "" {
			return nil, protocol.NewError(protocol.InvalidParams, "tool name is required", nil)
		}

		var token interface{}
		if call.Meta != nil {
			token = call.Meta.ProgressToken
		}
		if token != nil {
			s.notifyProgress(token, 0, "calling "+call.Name)
		}

		result, err := provider.CallTool(ctx, call.Name, call.Arguments)

		if token != nil {
			s.notifyProgress(token, 1, "")
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
}
