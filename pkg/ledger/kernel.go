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
package ledger

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/teradata-labs/loom-pos/pkg/types"
)

// KernelConfig configures a KernelClient.
type KernelConfig struct {
	Endpoint   string // Default: http://127.0.0.1:8080
	TerminalID string // Default: POSASSIST_01
	OperatorID string // Default: posassist
	StoreID    string
	Currency   string
	Places     int32
	Timeout    time.Duration // Default: 10s
	Logger     *zap.Logger
}

// KernelClient is a Ledger backed by the POS kernel REST service. The
// kernel session is created on first use and a transaction is opened
// lazily after every reset.
type KernelClient struct {
	http   *resty.Client
	cfg    KernelConfig
	logger *zap.Logger

	mu            sync.Mutex
	sessionID     string
	transactionID string
}

// NewKernelClient creates a kernel-backed ledger.
func NewKernelClient(cfg KernelConfig) *KernelClient {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://127.0.0.1:8080"
	}
	if cfg.TerminalID == "" {
		cfg.TerminalID = "POSASSIST_01"
	}
	if cfg.OperatorID == "" {
		cfg.OperatorID = "posassist"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &KernelClient{
		http: resty.New().
			SetBaseURL(strings.TrimRight(cfg.Endpoint, "/")).
			SetTimeout(cfg.Timeout).
			SetHeader("Content-Type", "application/json"),
		cfg:    cfg,
		logger: cfg.Logger,
	}
}

// Kernel API types

type createSessionRequest struct {
	TerminalID string `json:"terminal_id"`
	OperatorID string `json:"operator_id"`
}

type createSessionResponse struct {
	Success   bool    `json:"success"`
	SessionID string  `json:"session_id"`
	Error     *string `json:"error"`
}

type startTransactionRequest struct {
	SessionID string `json:"session_id"`
	Store     string `json:"store"`
	Currency  string `json:"currency"`
}

type addLineRequest struct {
	SessionID     string  `json:"session_id"`
	TransactionID string  `json:"transaction_id"`
	ProductID     string  `json:"product_id"`
	Quantity      int     `json:"quantity"`
	UnitPrice     float64 `json:"unit_price"`
}

type modifyLineRequest struct {
	SessionID        string `json:"session_id"`
	TransactionID    string `json:"transaction_id"`
	LineItemID       string `json:"line_item_id"`
	ModificationType string `json:"modification_type"`
	NewValue         string `json:"new_value"`
}

type paymentRequest struct {
	SessionID     string  `json:"session_id"`
	TransactionID string  `json:"transaction_id"`
	Amount        float64 `json:"amount"`
	PaymentType   string  `json:"payment_type"`
}

type kernelLine struct {
	LineItemID    string  `json:"line_item_id"`
	LineNumber    int     `json:"line_number"`
	ProductID     string  `json:"product_id"`
	Quantity      int     `json:"quantity"`
	UnitPrice     float64 `json:"unit_price"`
	ExtendedPrice float64 `json:"extended_price"`
}

type transactionResponse struct {
	Success       bool         `json:"success"`
	SessionID     string       `json:"session_id"`
	TransactionID string       `json:"transaction_id"`
	Total         float64      `json:"total"`
	Tendered      float64      `json:"tendered"`
	Change        float64      `json:"change"`
	State         string       `json:"state"`
	LineItems     []kernelLine `json:"line_items"`
	Error         *string      `json:"error"`
}

// Ping checks the kernel health endpoint.
func (k *KernelClient) Ping(ctx context.Context) error {
	resp, err := k.http.R().SetContext(ctx).Get("/health")
	if err != nil {
		return fmt.Errorf("kernel unreachable: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("kernel health check failed: HTTP %d", resp.StatusCode())
	}
	return nil
}

// ensureTransaction opens a kernel session and transaction when needed.
// Callers hold k.mu.
func (k *KernelClient) ensureTransaction(ctx context.Context) error {
	if k.sessionID == "" {
		var out createSessionResponse
		resp, err := k.http.R().
			SetContext(ctx).
			SetBody(createSessionRequest{TerminalID: k.cfg.TerminalID, OperatorID: k.cfg.OperatorID}).
			SetResult(&out).
			Post("/api/sessions")
		if err != nil {
			return fmt.Errorf("failed to create kernel session: %w", err)
		}
		if resp.IsError() || !out.Success {
			return fmt.Errorf("failed to create kernel session: %s", kernelError(resp, out.Error))
		}
		k.sessionID = out.SessionID
	}
	if k.transactionID == "" {
		out, err := k.call(ctx, resty.MethodPost, "/api/sessions/"+k.sessionID+"/transactions",
			startTransactionRequest{SessionID: k.sessionID, Store: k.cfg.StoreID, Currency: k.cfg.Currency})
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}
		k.transactionID = out.TransactionID
		k.logger.Debug("kernel transaction started",
			zap.String("kernel_session", k.sessionID),
			zap.String("transaction_id", k.transactionID))
	}
	return nil
}

func (k *KernelClient) txnPath(suffix string) string {
	return "/api/sessions/" + k.sessionID + "/transactions/" + k.transactionID + suffix
}

func (k *KernelClient) call(ctx context.Context, method, path string, body interface{}) (*transactionResponse, error) {
	var out transactionResponse
	req := k.http.R().SetContext(ctx).SetResult(&out)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, err
	}
	if resp.IsError() || !out.Success {
		return nil, fmt.Errorf("%s", kernelError(resp, out.Error))
	}
	return &out, nil
}

func kernelError(resp *resty.Response, msg *string) string {
	if msg != nil && *msg != "" {
		return *msg
	}
	if resp.IsError() {
		return fmt.Sprintf("HTTP %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return "kernel reported failure"
}

// AddLine adds a line and returns the kernel-assigned line id. The kernel
// has no notes field; notes stay on the session's cart line.
func (k *KernelClient) AddLine(ctx context.Context, sku string, quantity int, unitPrice decimal.Decimal, _ string) (string, error) {
	if quantity < 1 {
		return "", ErrInvalidQuantity
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.ensureTransaction(ctx); err != nil {
		return "", err
	}
	out, err := k.call(ctx, resty.MethodPost, k.txnPath("/lines"), addLineRequest{
		SessionID:     k.sessionID,
		TransactionID: k.transactionID,
		ProductID:     sku,
		Quantity:      quantity,
		UnitPrice:     unitPrice.InexactFloat64(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to add line: %w", err)
	}
	if len(out.LineItems) == 0 {
		return "", fmt.Errorf("failed to add line: kernel returned no line items")
	}
	return out.LineItems[len(out.LineItems)-1].LineItemID, nil
}

// RemoveLine voids a line by id.
func (k *KernelClient) RemoveLine(ctx context.Context, lineID string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.transactionID == "" {
		return fmt.Errorf("%w: %s", ErrLineNotFound, lineID)
	}
	if _, err := k.call(ctx, resty.MethodPost, k.txnPath("/line-items/"+lineID+"/void"), nil); err != nil {
		return fmt.Errorf("failed to void line %s: %w", lineID, err)
	}
	return nil
}

// UpdateQuantity modifies a line's quantity.
func (k *KernelClient) UpdateQuantity(ctx context.Context, lineID string, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.transactionID == "" {
		return fmt.Errorf("%w: %s", ErrLineNotFound, lineID)
	}
	_, err := k.call(ctx, resty.MethodPut, k.txnPath("/line-items/"+lineID+"/modify"), modifyLineRequest{
		SessionID:        k.sessionID,
		TransactionID:    k.transactionID,
		LineItemID:       lineID,
		ModificationType: "quantity",
		NewValue:         strconv.Itoa(quantity),
	})
	if err != nil {
		return fmt.Errorf("failed to modify line %s: %w", lineID, err)
	}
	return nil
}

// Totals reads the current transaction. Before the first line there is no
// kernel transaction and the total is zero.
func (k *KernelClient) Totals(ctx context.Context) (types.Totals, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	totals := types.Totals{Total: decimal.Zero, Currency: k.cfg.Currency, Places: k.cfg.Places}
	if k.transactionID == "" {
		return totals, nil
	}
	out, err := k.call(ctx, resty.MethodGet, k.txnPath(""), nil)
	if err != nil {
		return types.Totals{}, fmt.Errorf("failed to read transaction: %w", err)
	}
	totals.Total = k.amount(out.Total)
	return totals, nil
}

// Finalize tenders payment. The kernel records every tender as cash and
// computes change.
func (k *KernelClient) Finalize(ctx context.Context, methodID string, amount decimal.Decimal) (types.Receipt, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.transactionID == "" {
		return types.Receipt{}, ErrNoTransactionActive
	}
	out, err := k.call(ctx, resty.MethodPost, k.txnPath("/payment"), paymentRequest{
		SessionID:     k.sessionID,
		TransactionID: k.transactionID,
		Amount:        amount.InexactFloat64(),
		PaymentType:   methodID,
	})
	if err != nil {
		return types.Receipt{}, fmt.Errorf("failed to process payment: %w", err)
	}
	receipt := types.Receipt{
		TransactionID: out.TransactionID,
		MethodID:      methodID,
		Total:         k.amount(out.Total),
		Tendered:      k.amount(out.Tendered),
		Change:        k.amount(out.Change),
		Currency:      k.cfg.Currency,
	}
	if !strings.EqualFold(out.State, "Completed") {
		return receipt, fmt.Errorf("%w: transaction state %s", ErrInsufficientTender, out.State)
	}
	return receipt, nil
}

// Reset forgets the current transaction. The next line opens a new one.
func (k *KernelClient) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.transactionID = ""
	return nil
}

func (k *KernelClient) amount(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(k.cfg.Places)
}

var _ types.Ledger = (*KernelClient)(nil)
