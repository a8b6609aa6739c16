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

// Package protocol carries the JSON-RPC 2.0 envelopes and the subset of MCP
// message types the gateway speaks: initialize, ping, tools/list, tools/call.
package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// JSONRPCVersion is the only accepted value of the jsonrpc member.
const JSONRPCVersion = "2.0"

// Method names handled by the gateway.
const (
	MethodInitialize    = "initialize"
	MethodInitialized   = "notifications/initialized"
	MethodPing          = "ping"
	MethodToolsList     = "tools/list"
	MethodToolsCall     = "tools/call"
	MethodProgress      = "notifications/progress"
	MethodCancelled     = "notifications/cancelled"
	MethodLogMessage    = "notifications/message"
	MethodToolsChanged  = "notifications/tools/list_changed"
	notificationsPrefix = "notifications/"
)

// Request is a JSON-RPC 2.0 request or notification (ID == nil).
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *RequestID      `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request expects no response.
func (r *Request) IsNotification() bool {
	return r.ID == nil
}

// RequestID is a JSON-RPC correlation token: string, number, or null.
type RequestID struct {
	Str *string
	Num *int64
}

// MarshalJSON implements json.Marshaler.
func (r *RequestID) MarshalJSON() ([]byte, error) {
	switch {
	case r == nil:
		return []byte("null"), nil
	case r.Str != nil:
		return json.Marshal(*r.Str)
	case r.Num != nil:
		return []byte(strconv.FormatInt(*r.Num, 10)), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *RequestID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		r.Str = &s
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		r.Num = &n
		return nil
	}
	return fmt.Errorf("invalid request id: %s", data)
}

func (r *RequestID) String() string {
	switch {
	case r == nil:
		return "null"
	case r.Str != nil:
		return *r.Str
	case r.Num != nil:
		return strconv.FormatInt(*r.Num, 10)
	default:
		return "null"
	}
}

// NewStringRequestID creates a RequestID from a string.
func NewStringRequestID(s string) *RequestID {
	return &RequestID{Str: &s}
}

// NewNumericRequestID creates a RequestID from a number.
func NewNumericRequestID(n int64) *RequestID {
	return &RequestID{Num: &n}
}

// Response is a JSON-RPC 2.0 response. Exactly one of Result or Error is set.
// ID is always serialized, as null when the request id could not be read.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *RequestID      `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Notification is a server-initiated JSON-RPC message without an id.
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Error is the JSON-RPC error object.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Standard JSON-RPC error codes
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
	ServerError    = -32000 // upstream failures; the range runs to -32099
)

// NewError creates a JSON-RPC error. data is marshalled when non-nil.
func NewError(code int, message string, data interface{}) *Error {
	e := &Error{Code: code, Message: message}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			e.Data = raw
		}
	}
	return e
}

func (e *Error) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("JSON-RPC error %d: %s (data: %s)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("JSON-RPC error %d: %s", e.Code, e.Message)
}

// PeekMethod extracts the method and id of a raw message without failing on
// params it does not understand.
func PeekMethod(raw []byte) (method string, id *RequestID, err error) {
	var probe struct {
		ID     *RequestID `json:"id"`
		Method string     `json:"method"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return "", nil, err
	}
	return probe.Method, probe.ID, nil
}

// IsNotificationMethod reports whether method is in the notifications/ namespace.
func IsNotificationMethod(method string) bool {
	return strings.HasPrefix(method, notificationsPrefix)
}

// MarshalResult builds a success response envelope.
func MarshalResult(id *RequestID, result interface{}) ([]byte, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return json.Marshal(&Response{JSONRPC: JSONRPCVersion, ID: id, Result: raw})
}

// MarshalError builds an error response envelope.
func MarshalError(id *RequestID, rpcErr *Error) ([]byte, error) {
	return json.Marshal(&Response{JSONRPC: JSONRPCVersion, ID: id, Error: rpcErr})
}

// MarshalNotification builds a notification envelope.
func MarshalNotification(method string, params interface{}) ([]byte, error) {
	n := Notification{JSONRPC: JSONRPCVersion, Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal notification params: %w", err)
		}
		n.Params = raw
	}
	return json.Marshal(&n)
}

// InternalErrorEnvelope is the generic body returned when request handling
// fails before a response could be produced. It never carries error detail.
var InternalErrorEnvelope = []byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32603,"message":"internal error"}}`)
