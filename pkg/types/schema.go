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
package types

import (
	"encoding/json"
	"sort"
)

// ToolSchema describes one operation the model may invoke.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  *JSONSchema
}

// ParamOrder returns parameter names with required ones first (in declared
// order) followed by the optional ones sorted by name. Used when mapping
// positional arguments and when rendering instructions.
func (s ToolSchema) ParamOrder() []string {
	if s.Parameters == nil {
		return nil
	}
	seen := make(map[string]bool, len(s.Parameters.Properties))
	order := make([]string, 0, len(s.Parameters.Properties))
	for _, name := range s.Parameters.Required {
		if _, ok := s.Parameters.Properties[name]; ok && !seen[name] {
			order = append(order, name)
			seen[name] = true
		}
	}
	optional := make([]string, 0, len(s.Parameters.Properties))
	for name := range s.Parameters.Properties {
		if !seen[name] {
			optional = append(optional, name)
		}
	}
	sort.Strings(optional)
	return append(order, optional...)
}

// IsRequired reports whether the named parameter is required.
func (s ToolSchema) IsRequired(name string) bool {
	if s.Parameters == nil {
		return false
	}
	for _, r := range s.Parameters.Required {
		if r == name {
			return true
		}
	}
	return false
}

// JSONSchema represents a JSON Schema for tool parameters.
// This follows the JSON Schema spec for type definitions.
type JSONSchema struct {
	Type        string                 `json:"type"`
	Description string                 `json:"description,omitempty"`
	Properties  map[string]*JSONSchema `json:"properties,omitempty"`
	Required    []string               `json:"required,omitempty"`
	Items       *JSONSchema            `json:"items,omitempty"`
	Enum        []interface{}          `json:"enum,omitempty"`
	Default     interface{}            `json:"default,omitempty"`
	Minimum     *float64               `json:"minimum,omitempty"`
	Maximum     *float64               `json:"maximum,omitempty"`
	MinLength   *int                   `json:"minLength,omitempty"`
	MaxLength   *int                   `json:"maxLength,omitempty"`
}

// ToJSON converts the schema to JSON bytes.
func (s *JSONSchema) ToJSON() ([]byte, error) {
	return json.Marshal(s)
}

// NewObjectSchema creates a new object schema with the given properties.
func NewObjectSchema(description string, properties map[string]*JSONSchema, required []string) *JSONSchema {
	return &JSONSchema{
		Type:        "object",
		Description: description,
		Properties:  properties,
		Required:    required,
	}
}

// NewStringSchema creates a new string schema.
func NewStringSchema(description string) *JSONSchema {
	return &JSONSchema{
		Type:        "string",
		Description: description,
	}
}

// NewIntegerSchema creates a new integer schema.
func NewIntegerSchema(description string) *JSONSchema {
	return &JSONSchema{
		Type:        "integer",
		Description: description,
	}
}

// NewNumberSchema creates a new number schema.
func NewNumberSchema(description string) *JSONSchema {
	return &JSONSchema{
		Type:        "number",
		Description: description,
	}
}

// WithMinimum adds a lower bound to the schema.
func (s *JSONSchema) WithMinimum(min float64) *JSONSchema {
	s.Minimum = &min
	return s
}

// WithLength adds length constraints to the schema.
func (s *JSONSchema) WithLength(minLen, maxLen *int) *JSONSchema {
	s.MinLength = minLen
	s.MaxLength = maxLen
	return s
}
