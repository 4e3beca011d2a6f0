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

// Package types holds the data model shared by the conversational POS engine
// and the collaborator contracts it consumes.
package types

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// Conversation
// ============================================================================

// Phase is the conversation phase of a session.
type Phase string

const (
	PhaseGreeting          Phase = "greeting"
	PhaseOrdering          Phase = "ordering"
	PhaseCompletionPending Phase = "completion_pending"
	PhaseAwaitingPayment   Phase = "awaiting_payment"
	PhaseClosed            Phase = "closed"
)

// ConversationTurn is one customer/assistant exchange.
type ConversationTurn struct {
	// Customer is what the customer said
	Customer string

	// Assistant is the acknowledgement returned for the utterance
	Assistant string

	// At is when the exchange completed
	At time.Time
}

// ============================================================================
// Tool invocations
// ============================================================================

// Origin tells where a ToolInvocation came from.
type Origin string

const (
	// OriginNative marks invocations decoded from a backend's own tool calls
	OriginNative Origin = "native"

	// OriginExtracted marks invocations recovered from free text
	OriginExtracted Origin = "extracted"
)

// ToolInvocation is a structured request to perform one domain operation.
// Values are created once per detected command and never modified afterwards;
// pass them by value.
type ToolInvocation struct {
	// ID is stable for the invocation's lifetime
	ID string

	// Name is the operation name as emitted by the model
	Name string

	// RawArguments is the argument payload exactly as it appeared
	RawArguments string

	// Arguments is the parsed argument map
	Arguments map[string]interface{}

	// Confidence is in [0,1] and fixed at creation
	Confidence float64

	// Origin is native or extracted
	Origin Origin
}

// Argument returns a named argument and whether it was present.
func (t ToolInvocation) Argument(name string) (interface{}, bool) {
	v, ok := t.Arguments[name]
	return v, ok
}

// ============================================================================
// Cart, catalog and payment
// ============================================================================

// CartLine is one line of the current order. Lines are replaced wholesale
// when their quantity changes.
type CartLine struct {
	// LineID is assigned by the ledger
	LineID string

	SKU         string
	DisplayName string

	// Quantity is always >= 1
	Quantity int

	UnitPrice decimal.Decimal

	// Notes carries preparation details (size, milk, sugar level, ...)
	Notes string
}

// WithQuantity returns a copy of the line with a new quantity.
func (l CartLine) WithQuantity(qty int) CartLine {
	l.Quantity = qty
	return l
}

// ProductInfo is a catalog entry.
type ProductInfo struct {
	SKU         string
	DisplayName string
	BasePrice   decimal.Decimal
	Active      bool
}

// PaymentMethodDescriptor describes a tender accepted by a store.
type PaymentMethodDescriptor struct {
	ID            string
	DisplayName   string
	Type          string
	MinimumAmount decimal.Decimal
	Enabled       bool
}

// Totals is the ledger's view of the open transaction.
type Totals struct {
	Total    decimal.Decimal
	Currency string

	// Places is the number of minor-unit digits of the currency
	Places int32
}

// Format renders the total with the currency's minor-unit digits.
func (t Totals) Format() string {
	return FormatAmount(t.Total, t.Places)
}

// FormatAmount renders an amount with a fixed number of decimal places.
func FormatAmount(d decimal.Decimal, places int32) string {
	if places < 0 {
		places = 0
	}
	return d.StringFixed(places)
}

// Receipt is returned when a transaction is finalized.
type Receipt struct {
	TransactionID string
	MethodID      string
	Total         decimal.Decimal
	Tendered      decimal.Decimal
	Change        decimal.Decimal
	Currency      string
}

// ============================================================================
// Dispatch and turn results
// ============================================================================

// OutcomeStatus is the result of dispatching one invocation.
type OutcomeStatus string

const (
	OutcomeExecuted OutcomeStatus = "executed"
	OutcomeRejected OutcomeStatus = "rejected"
	OutcomeSkipped  OutcomeStatus = "skipped"
	OutcomeFailed   OutcomeStatus = "failed"
)

// DispatchOutcome records what happened to a single invocation.
type DispatchOutcome struct {
	InvocationID string
	Operation    string
	Status       OutcomeStatus

	// Confidence is copied from the invocation
	Confidence float64

	// Event is the conversation event raised when the outcome succeeded
	Event string

	// Confirm is set when the operation ran but the acknowledgement must
	// frame it as something the customer should confirm
	Confirm bool

	// Kind and Err are set when Status is not executed
	Kind ErrorKind
	Err  error

	// Message is customer-facing text for clarifications
	Message string

	// Alternatives lists candidate product names after an unknown product
	Alternatives []string

	Line    *CartLine
	Totals  *Totals
	Methods []PaymentMethodDescriptor
	Receipt *Receipt
}

// Succeeded reports whether the invocation was executed.
func (o DispatchOutcome) Succeeded() bool {
	return o.Status == OutcomeExecuted
}

// Diagnostic reports a problem found while recovering commands from text.
type Diagnostic struct {
	Kind     ErrorKind
	Fragment string
	Reason   string
}

// TurnResult is what the engine hands back to the hosting application.
type TurnResult struct {
	SessionID          string
	AcknowledgmentText string
	Phase              Phase
	Outcomes           []DispatchOutcome
	Diagnostics        []Diagnostic

	// SessionFatal is set when the session cannot continue
	SessionFatal bool
}

// ============================================================================
// Collaborators
// ============================================================================

// Catalog searches products by base name.
type Catalog interface {
	Search(ctx context.Context, term string, maxResults int) ([]ProductInfo, error)
}

// Ledger is the transaction ledger of record. Totals are always computed
// by the ledger.
type Ledger interface {
	AddLine(ctx context.Context, sku string, quantity int, unitPrice decimal.Decimal, notes string) (string, error)
	RemoveLine(ctx context.Context, lineID string) error
	UpdateQuantity(ctx context.Context, lineID string, quantity int) error
	Totals(ctx context.Context) (Totals, error)
	Finalize(ctx context.Context, methodID string, amount decimal.Decimal) (Receipt, error)
	Reset(ctx context.Context) error
}

// StoreConfig supplies store-level configuration.
type StoreConfig interface {
	PaymentMethods(ctx context.Context, storeID string) ([]PaymentMethodDescriptor, error)
}
