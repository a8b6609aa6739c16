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

package protocol

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// SchemaViolations validates arguments against a JSON Schema and returns one
// human-readable string per violation. A nil or empty schema accepts anything.
func SchemaViolations(schema map[string]interface{}, arguments map[string]interface{}) ([]string, error) {
	if len(schema) == 0 {
		return nil, nil
	}
	if arguments == nil {
		arguments = map[string]interface{}{}
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(arguments))
	if err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		problems = append(problems, re.String())
	}
	return problems, nil
}

// ValidateToolArguments validates tool arguments against the tool's input schema.
func ValidateToolArguments(tool Tool, arguments map[string]interface{}) error {
	problems, err := SchemaViolations(tool.InputSchema, arguments)
	if err != nil {
		return err
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid arguments: %v", problems)
	}
	return nil
}

// ValidateRequest validates a JSON-RPC request envelope.
func ValidateRequest(req *Request) error {
	if req.JSONRPC != JSONRPCVersion {
		return fmt.Errorf("invalid jsonrpc version: %q (expected %s)", req.JSONRPC, JSONRPCVersion)
	}
	if req.Method == "" {
		return fmt.Errorf("method is required")
	}
	return nil
}

// ValidateResponse validates a JSON-RPC response envelope.
func ValidateResponse(resp *Response) error {
	if resp.JSONRPC != JSONRPCVersion {
		return fmt.Errorf("invalid jsonrpc version: %q (expected %s)", resp.JSONRPC, JSONRPCVersion)
	}
	hasResult := len(resp.Result) > 0
	hasError := resp.Error != nil
	if hasResult == hasError {
		return fmt.Errorf("response must have exactly one of result or error")
	}
	return nil
}
