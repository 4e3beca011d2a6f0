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

// Package session holds per-customer conversation state.
//
// A Context is owned by exactly one worker and is not safe for concurrent
// use. Only the dispatcher and the conversation state machine mutate it.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/teradata-labs/loom-pos/pkg/types"
)

// DefaultHistoryWindow is the number of exchanges kept when none is configured.
const DefaultHistoryWindow = 6

// Config configures a new session.
type Config struct {
	// ID is generated when empty
	ID string

	PersonaKey string
	StoreID    string
	Currency   string

	// CurrencyPlaces is the number of minor-unit digits of Currency
	CurrencyPlaces int32

	// HistoryWindow caps the number of retained exchanges
	HistoryWindow int

	// Ledger is the transaction ledger bound to this session
	Ledger types.Ledger
}

// Context is the state of one customer interaction.
type Context struct {
	id         string
	personaKey string
	storeID    string
	currency   string
	places     int32
	ledger     types.Ledger
	createdAt  time.Time

	phase types.Phase

	window  int
	history []types.ConversationTurn

	lines []types.CartLine

	methods       []types.PaymentMethodDescriptor
	methodsLoaded bool

	totals types.Totals

	fatal     bool
	fatalKind types.ErrorKind
}

// New creates a session in the greeting phase.
func New(cfg Config) *Context {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = DefaultHistoryWindow
	}
	return &Context{
		id:         cfg.ID,
		personaKey: cfg.PersonaKey,
		storeID:    cfg.StoreID,
		currency:   cfg.Currency,
		places:     cfg.CurrencyPlaces,
		ledger:     cfg.Ledger,
		createdAt:  time.Now(),
		phase:      types.PhaseGreeting,
		window:     cfg.HistoryWindow,
		history:    make([]types.ConversationTurn, 0, cfg.HistoryWindow),
		totals:     types.Totals{Currency: cfg.Currency, Places: cfg.CurrencyPlaces},
	}
}

func (c *Context) ID() string                 { return c.id }
func (c *Context) PersonaKey() string         { return c.personaKey }
func (c *Context) StoreID() string            { return c.storeID }
func (c *Context) Currency() string           { return c.currency }
func (c *Context) CurrencyPlaces() int32      { return c.places }
func (c *Context) Ledger() types.Ledger       { return c.ledger }
func (c *Context) CreatedAt() time.Time       { return c.createdAt }
func (c *Context) HistoryWindow() int         { return c.window }
func (c *Context) Totals() types.Totals       { return c.totals }
func (c *Context) Fatal() bool                { return c.fatal }
func (c *Context) FatalKind() types.ErrorKind { return c.fatalKind }

// Phase is the current conversation phase.
func (c *Context) Phase() types.Phase { return c.phase }

// SetPhase is for the conversation machine, which owns transitions and
// rollback. Other callers go through conversation.Machine.
func (c *Context) SetPhase(phase types.Phase) { c.phase = phase }

// RecordTurn appends an exchange, dropping the oldest once the window is full.
func (c *Context) RecordTurn(customer, assistant string) {
	turn := types.ConversationTurn{Customer: customer, Assistant: assistant, At: time.Now()}
	if len(c.history) == c.window {
		copy(c.history, c.history[1:])
		c.history[len(c.history)-1] = turn
		return
	}
	c.history = append(c.history, turn)
}

// History returns the retained exchanges, oldest first.
func (c *Context) History() []types.ConversationTurn {
	out := make([]types.ConversationTurn, len(c.history))
	copy(out, c.history)
	return out
}

// Lines returns a copy of the cart.
func (c *Context) Lines() []types.CartLine {
	out := make([]types.CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// AppendLine adds a line to the end of the cart.
func (c *Context) AppendLine(line types.CartLine) {
	c.lines = append(c.lines, line)
}

// ReplaceLine swaps the line with the same id for a new value. A quantity
// below one removes the line instead.
func (c *Context) ReplaceLine(line types.CartLine) bool {
	for i := range c.lines {
		if c.lines[i].LineID != line.LineID {
			continue
		}
		if line.Quantity < 1 {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			return true
		}
		c.lines[i] = line
		return true
	}
	return false
}

// RemoveLine drops the line with the given id.
func (c *Context) RemoveLine(lineID string) bool {
	for i := range c.lines {
		if c.lines[i].LineID == lineID {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			return true
		}
	}
	return false
}

// FindLine returns the most recently added line for a SKU.
func (c *Context) FindLine(sku string) (types.CartLine, bool) {
	for i := len(c.lines) - 1; i >= 0; i-- {
		if c.lines[i].SKU == sku {
			return c.lines[i], true
		}
	}
	return types.CartLine{}, false
}

// SetTotals stores the ledger's latest totals.
func (c *Context) SetTotals(t types.Totals) {
	if t.Currency == "" {
		t.Currency = c.currency
	}
	c.totals = t
}

// PaymentMethods returns the methods loaded for this session.
func (c *Context) PaymentMethods() []types.PaymentMethodDescriptor {
	out := make([]types.PaymentMethodDescriptor, len(c.methods))
	copy(out, c.methods)
	return out
}

// PaymentMethodsLoaded reports whether a listing has been loaded.
func (c *Context) PaymentMethodsLoaded() bool {
	return c.methodsLoaded
}

// SetPaymentMethods records a payment-method listing.
func (c *Context) SetPaymentMethods(methods []types.PaymentMethodDescriptor) {
	c.methods = append([]types.PaymentMethodDescriptor(nil), methods...)
	c.methodsLoaded = true
}

// ResetTransaction clears the cart, totals and payment listing and returns
// the session to ordering. History is kept.
func (c *Context) ResetTransaction() {
	c.lines = nil
	c.methods = nil
	c.methodsLoaded = false
	c.totals = types.Totals{Currency: c.currency, Places: c.places}
	c.phase = types.PhaseOrdering
}

// MarkFatal ends the session.
func (c *Context) MarkFatal(kind types.ErrorKind) {
	c.fatal = true
	c.fatalKind = kind
}
