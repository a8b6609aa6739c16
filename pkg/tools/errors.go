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
	"errors"
	"fmt"
	"strings"

	"github.com/teradata-labs/switchboard/pkg/mcp/protocol"
)

// maxUpstreamBody bounds how much of an upstream response body is echoed
// back in an UpstreamError.
const maxUpstreamBody = 2048

// ValidationError reports malformed or missing invocation arguments.
type ValidationError struct {
	Capability string
	Problems   []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Capability, strings.Join(e.Problems, "; "))
}

// Invalid builds a ValidationError for one problem.
func Invalid(capability, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Capability: capability, Problems: []string{fmt.Sprintf(format, args...)}}
}

// UnknownCapabilityError reports a name no adapter owns.
type UnknownCapabilityError struct {
	Name string
}

func (e *UnknownCapabilityError) Error() string {
	return fmt.Sprintf("unknown tool: %s", e.Name)
}

// UpstreamError reports a non-success response from a third-party API.
type UpstreamError struct {
	Service string
	Status  int
	Body    string
}

// NewUpstreamError truncates body to a diagnosable size.
func NewUpstreamError(service string, status int, body []byte) *UpstreamError {
	b := strings.TrimSpace(string(body))
	if len(b) > maxUpstreamBody {
		b = b[:maxUpstreamBody] + "..."
	}
	return &UpstreamError{Service: service, Status: status, Body: b}
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.Service, e.Status)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.Status, e.Body)
}

// RPCError maps an invocation failure to the JSON-RPC error carried back to
// the caller. Unclassified errors keep their message but use InternalError.
func RPCError(err error) *protocol.Error {
	var rpcErr *protocol.Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	var unknown *UnknownCapabilityError
	if errors.As(err, &unknown) {
		return protocol.NewError(protocol.MethodNotFound, unknown.Error(), map[string]string{"tool": unknown.Name})
	}
	var invalid *ValidationError
	if errors.As(err, &invalid) {
		return protocol.NewError(protocol.InvalidParams, invalid.Error(), map[string]interface{}{"problems": invalid.Problems})
	}
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return protocol.NewError(protocol.ServerError, upstream.Error(), map[string]interface{}{
			"service": upstream.Service,
			"status":  upstream.Status,
		})
	}
	return protocol.NewError(protocol.InternalError, err.Error(), nil)
}
