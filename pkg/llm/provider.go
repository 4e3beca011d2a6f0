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

// Package llm is the model gateway: a uniform contract over language-model
// backends with or without native tool calling.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ProviderInfo describes a backend.
type ProviderInfo struct {
	Name  string
	Model string

	// IsLocal is set for backends running on the same host or LAN
	IsLocal bool

	// SupportsNativeTools is set when the backend returns structured tool calls
	SupportsNativeTools bool
}

// ToolCall is a tool call as returned by a backend.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// Completion is a backend response.
type Completion struct {
	Text      string
	ToolCalls []ToolCall
}

// Provider is implemented by each backend. Implementations do not retry;
// the gateway owns the retry policy.
type Provider interface {
	// Info reports the backend's identity and capabilities.
	Info() ProviderInfo

	// Ping performs a cheap reachability check.
	Ping(ctx context.Context) error

	// Complete sends a prompt and returns the text reply.
	Complete(ctx context.Context, prompt string) (string, error)

	// CompleteWithTools sends a prompt with tool schemas. Only called on
	// backends that report SupportsNativeTools.
	CompleteWithTools(ctx context.Context, prompt string, tools []ToolSpec) (*Completion, error)
}

// ToolSpec is the wire shape of a tool handed to a backend.
type ToolSpec struct {
	Name        string
	Description string

	// Parameters is a JSON Schema object
	Parameters json.RawMessage
}

// ProviderError carries the transport status of a failed backend call so
// the gateway can classify it.
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

// NewProviderError wraps err with an HTTP-like status code.
func NewProviderError(provider string, status int, err error) *ProviderError {
	return &ProviderError{Provider: provider, StatusCode: status, Err: err}
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Retryable reports whether the status is worth retrying.
func (e *ProviderError) Retryable() bool {
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == http.StatusTooManyRequests,
		e.StatusCode == http.StatusRequestTimeout,
		e.StatusCode == 529:
		return true
	case e.StatusCode >= 500:
		return true
	default:
		return false
	}
}

// ErrTimeout is returned by providers when a single call timed out.
var ErrTimeout = errors.New("model call timed out")
