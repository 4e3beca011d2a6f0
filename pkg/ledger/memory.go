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

// Package ledger provides transaction ledgers: an in-process ledger for
// development and tests, and a client for the POS kernel REST service.
//
// Line ids are assigned by the ledger and stay stable for the life of the
// transaction: TXN_<transaction>_LN_<sequence>.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/teradata-labs/loom-pos/pkg/types"
)

var (
	ErrLineNotFound        = errors.New("line item not found")
	ErrInvalidQuantity     = errors.New("quantity must be greater than zero")
	ErrTransactionClosed   = errors.New("transaction is already closed")
	ErrEmptyTransaction    = errors.New("transaction has no line items")
	ErrInsufficientTender  = errors.New("amount tendered is less than the total")
	ErrNoTransactionActive = errors.New("no transaction is open")
)

var transactionSeq atomic.Uint64

// LineID formats a ledger line id.
func LineID(transactionID string, seq int) string {
	return fmt.Sprintf("TXN_%s_LN_%04d", transactionID, seq)
}

// Line is a ledger line item.
type Line struct {
	ID        string
	SKU       string
	Quantity  int
	UnitPrice decimal.Decimal
	Notes     string
}

// Extended returns quantity times unit price.
func (l Line) Extended() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type transaction struct {
	id      string
	lines   []Line
	lineSeq int
	closed  bool
	receipt types.Receipt
}

// MemoryConfig configures a MemoryLedger.
type MemoryConfig struct {
	Currency string

	// Places is the number of minor-unit digits totals are rounded to
	Places int32

	Logger *zap.Logger
}

// MemoryLedger keeps one open transaction in memory. It is safe for
// concurrent use.
type MemoryLedger struct {
	mu       sync.Mutex
	currency string
	places   int32
	logger   *zap.Logger
	txn      *transaction
}

// NewMemoryLedger creates a ledger with an open transaction.
func NewMemoryLedger(cfg MemoryConfig) *MemoryLedger {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	l := &MemoryLedger{currency: cfg.Currency, places: cfg.Places, logger: cfg.Logger}
	l.txn = l.begin()
	return l
}

func (l *MemoryLedger) begin() *transaction {
	return &transaction{id: strconv.FormatUint(transactionSeq.Add(1), 10)}
}

// TransactionID returns the id of the current transaction.
func (l *MemoryLedger) TransactionID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.txn.id
}

// Lines returns a snapshot of the current transaction.
func (l *MemoryLedger) Lines() []Line {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Line(nil), l.txn.lines...)
}

// AddLine appends a line and returns its id.
func (l *MemoryLedger) AddLine(ctx context.Context, sku string, quantity int, unitPrice decimal.Decimal, notes string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if quantity < 1 {
		return "", ErrInvalidQuantity
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.txn.closed {
		return "", ErrTransactionClosed
	}
	l.txn.lineSeq++
	line := Line{
		ID:        LineID(l.txn.id, l.txn.lineSeq),
		SKU:       sku,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Notes:     notes,
	}
	l.txn.lines = append(l.txn.lines, line)
	l.logger.Debug("line added",
		zap.String("transaction_id", l.txn.id),
		zap.String("line_id", line.ID),
		zap.String("sku", sku),
		zap.Int("quantity", quantity))
	return line.ID, nil
}

// RemoveLine voids a line.
func (l *MemoryLedger) RemoveLine(ctx context.Context, lineID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.txn.closed {
		return ErrTransactionClosed
	}
	for i, line := range l.txn.lines {
		if line.ID == lineID {
			l.txn.lines = append(l.txn.lines[:i], l.txn.lines[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrLineNotFound, lineID)
}

// UpdateQuantity changes the quantity of a line. Zero is refused; remove
// the line instead.
func (l *MemoryLedger) UpdateQuantity(ctx context.Context, lineID string, quantity int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.txn.closed {
		return ErrTransactionClosed
	}
	for i := range l.txn.lines {
		if l.txn.lines[i].ID == lineID {
			l.txn.lines[i].Quantity = quantity
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrLineNotFound, lineID)
}

// Totals sums the current transaction.
func (l *MemoryLedger) Totals(ctx context.Context) (types.Totals, error) {
	if err := ctx.Err(); err != nil {
		return types.Totals{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return types.Totals{Total: l.total(), Currency: l.currency, Places: l.places}, nil
}

func (l *MemoryLedger) total() decimal.Decimal {
	sum := decimal.Zero
	for _, line := range l.txn.lines {
		sum = sum.Add(line.Extended())
	}
	return sum.Round(l.places)
}

// Finalize tenders the amount and closes the transaction.
func (l *MemoryLedger) Finalize(ctx context.Context, methodID string, amount decimal.Decimal) (types.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return types.Receipt{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.txn.closed {
		return types.Receipt{}, ErrTransactionClosed
	}
	if len(l.txn.lines) == 0 {
		return types.Receipt{}, ErrEmptyTransaction
	}
	total := l.total()
	if amount.LessThan(total) {
		return types.Receipt{}, fmt.Errorf("%w: %s < %s", ErrInsufficientTender,
			types.FormatAmount(amount, l.places), types.FormatAmount(total, l.places))
	}
	l.txn.closed = true
	l.txn.receipt = types.Receipt{
		TransactionID: l.txn.id,
		MethodID:      methodID,
		Total:         total,
		Tendered:      amount,
		Change:        amount.Sub(total),
		Currency:      l.currency,
	}
	l.logger.Info("transaction finalized",
		zap.String("transaction_id", l.txn.id),
		zap.String("method", methodID),
		zap.String("total", types.FormatAmount(total, l.places)))
	return l.txn.receipt, nil
}

// Reset discards the current transaction and opens a new one.
func (l *MemoryLedger) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.txn = l.begin()
	return nil
}

var _ types.Ledger = (*MemoryLedger)(nil)
