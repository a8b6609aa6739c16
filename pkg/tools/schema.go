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

import "encoding/json"

// Schema is the structural type descriptor of a capability's input.
// It is a JSON Schema subset.
type Schema struct {
	Type                 string             `json:"type"`
	Description          string             `json:"description,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Required             []string           `json:"required,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	Enum                 []interface{}      `json:"enum,omitempty"`
	Default              interface{}        `json:"default,omitempty"`
	Format               string             `json:"format,omitempty"`
	Minimum              *float64           `json:"minimum,omitempty"`
	Maximum              *float64           `json:"maximum,omitempty"`
	AdditionalProperties *bool              `json:"additionalProperties,omitempty"`
}

// NewObjectSchema creates an object schema with the given properties.
func NewObjectSchema(description string, properties map[string]*Schema, required ...string) *Schema {
	if properties == nil {
		properties = map[string]*Schema{}
	}
	return &Schema{
		Type:        "object",
		Description: description,
		Properties:  properties,
		Required:    required,
	}
}

// NewStringSchema creates a string schema.
func NewStringSchema(description string) *Schema {
	return &Schema{Type: "string", Description: description}
}

// NewIntegerSchema creates an integer schema.
func NewIntegerSchema(description string) *Schema {
	return &Schema{Type: "integer", Description: description}
}

// NewBooleanSchema creates a boolean schema.
func NewBooleanSchema(description string) *Schema {
	return &Schema{Type: "boolean", Description: description}
}

// NewArraySchema creates an array schema.
func NewArraySchema(description string, items *Schema) *Schema {
	return &Schema{Type: "array", Description: description, Items: items}
}

// WithEnum restricts the schema to the given string values.
func (s *Schema) WithEnum(values ...string) *Schema {
	s.Enum = make([]interface{}, len(values))
	for i, v := range values {
		s.Enum[i] = v
	}
	return s
}

// WithDefault sets the documented default.
func (s *Schema) WithDefault(value interface{}) *Schema {
	s.Default = value
	return s
}

// WithFormat sets a format hint such as "email" or "date-time".
func (s *Schema) WithFormat(format string) *Schema {
	s.Format = format
	return s
}

// WithRange sets numeric bounds.
func (s *Schema) WithRange(min, max float64) *Schema {
	s.Minimum = &min
	s.Maximum = &max
	return s
}

// Map renders the schema as a generic JSON object, the form carried on the
// wire and consumed by the validator.
func (s *Schema) Map() map[string]interface{} {
	if s == nil {
		return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return map[string]interface{}{"type": "object"}
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]interface{}{"type": "object"}
	}
	if out["type"] == "object" {
		if _, ok := out["properties"]; !ok {
			out["properties"] = map[string]interface{}{}
		}
	}
	return out
}
