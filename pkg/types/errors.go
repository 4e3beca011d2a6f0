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
	"errors"
	"fmt"
)

// ErrorKind classifies a failure for the acknowledgement and for metrics.
type ErrorKind string

const (
	KindProviderUnavailable    ErrorKind = "ProviderUnavailable"
	KindMalformedToolCall      ErrorKind = "MalformedToolCall"
	KindUnknownOperation       ErrorKind = "UnknownOperation"
	KindInvalidArguments       ErrorKind = "InvalidArguments"
	KindUnknownProduct         ErrorKind = "UnknownProduct"
	KindLowConfidence          ErrorKind = "LowConfidence"
	KindInvalidPhaseTransition ErrorKind = "InvalidPhaseTransition"
	KindConfigurationMissing   ErrorKind = "ConfigurationMissing"
	KindCollaboratorFailure    ErrorKind = "CollaboratorFailure"
)

var (
	ErrProviderUnavailable    = errors.New("model provider unavailable")
	ErrMalformedToolCall      = errors.New("malformed tool call")
	ErrUnknownOperation       = errors.New("unknown operation")
	ErrInvalidArguments       = errors.New("invalid arguments")
	ErrUnknownProduct         = errors.New("unknown product")
	ErrLowConfidence          = errors.New("low confidence")
	ErrInvalidPhaseTransition = errors.New("invalid phase transition")
	ErrConfigurationMissing   = errors.New("configuration missing")
	ErrCollaboratorFailure    = errors.New("collaborator failure")
)

var kindSentinels = map[ErrorKind]error{
	KindProviderUnavailable:    ErrProviderUnavailable,
	KindMalformedToolCall:      ErrMalformedToolCall,
	KindUnknownOperation:       ErrUnknownOperation,
	KindInvalidArguments:       ErrInvalidArguments,
	KindUnknownProduct:         ErrUnknownProduct,
	KindLowConfidence:          ErrLowConfidence,
	KindInvalidPhaseTransition: ErrInvalidPhaseTransition,
	KindConfigurationMissing:   ErrConfigurationMissing,
	KindCollaboratorFailure:    ErrCollaboratorFailure,
}

// Fatal reports whether failures of this kind end the session.
func (k ErrorKind) Fatal() bool {
	return k == KindProviderUnavailable || k == KindConfigurationMissing
}

// DispatchError describes why an operation was not carried out.
type DispatchError struct {
	// Kind classifies the failure
	Kind ErrorKind

	// Operation is the operation name, if one was resolved
	Operation string

	// Message is a human-readable description
	Message string

	// Suggestion tells the customer (or the model) how to recover
	Suggestion string

	// Err is the underlying cause, if any
	Err error
}

// NewDispatchError creates a DispatchError.
func NewDispatchError(kind ErrorKind, operation, message string) *DispatchError {
	return &DispatchError{Kind: kind, Operation: operation, Message: message}
}

// WithSuggestion sets the recovery suggestion.
func (e *DispatchError) WithSuggestion(s string) *DispatchError {
	e.Suggestion = s
	return e
}

// WithCause sets the underlying cause.
func (e *DispatchError) WithCause(err error) *DispatchError {
	e.Err = err
	return e
}

func (e *DispatchError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Operation != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Operation)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is.
func (e *DispatchError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s, ok := kindSentinels[e.Kind]; ok {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// KindOf extracts the ErrorKind from an error chain. Returns an empty kind
// when the error carries none.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var de *DispatchError
	if errors.As(err, &de) {
		return de.Kind
	}
	for kind, sentinel := range kindSentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return ""
}
