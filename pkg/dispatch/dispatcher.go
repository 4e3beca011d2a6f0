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

// Package dispatch validates tool invocations and applies them to a session
// through the catalog, ledger and store collaborators.
//
// A batch runs in two passes. The plan pass checks every invocation in
// order (name, arguments, confidence, phase, catalog) against a staged copy
// of the session. The commit pass then performs the accepted operations.
// Cancellation is honoured until the commit pass starts; after that the
// batch always runs to the end so the ledger and session stay in step.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/teradata-labs/loom-pos/pkg/conversation"
	"github.com/teradata-labs/loom-pos/pkg/persona"
	"github.com/teradata-labs/loom-pos/pkg/session"
	"github.com/teradata-labs/loom-pos/pkg/types"
)

// DefaultMaxSearchResults caps catalog searches.
const DefaultMaxSearchResults = 5

var errLineNotAdded = errors.New("the line was never added to the ledger")

// Config configures a Dispatcher.
type Config struct {
	Catalog types.Catalog
	Store   types.StoreConfig

	// Gating defaults to DefaultGatingPolicy
	Gating GatingPolicy

	// MaxSearchResults defaults to DefaultMaxSearchResults
	MaxSearchResults int

	Logger *zap.Logger
}

// Turn carries what the current utterance contributes to dispatch.
type Turn struct {
	// NewTransaction permits ordering operations after payment by
	// resetting the transaction first
	NewTransaction bool

	// Vocabulary is the persona's preparation vocabulary
	Vocabulary []string

	// Mentioned lists vocabulary terms the customer used this turn
	Mentioned []string
}

// Dispatcher is stateless between batches and safe for concurrent use on
// different sessions.
type Dispatcher struct {
	catalog    types.Catalog
	store      types.StoreConfig
	gating     GatingPolicy
	maxResults int
	logger     *zap.Logger

	ops        map[string]operation
	validators map[string]*gojsonschema.Schema
}

// New creates a Dispatcher and compiles the operation schemas.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store config is required")
	}
	if cfg.Gating == (GatingPolicy{}) {
		cfg.Gating = DefaultGatingPolicy()
	}
	if err := cfg.Gating.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxSearchResults <= 0 {
		cfg.MaxSearchResults = DefaultMaxSearchResults
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	d := &Dispatcher{
		catalog:    cfg.Catalog,
		store:      cfg.Store,
		gating:     cfg.Gating,
		maxResults: cfg.MaxSearchResults,
		logger:     cfg.Logger,
		ops:        make(map[string]operation, len(operations)),
		validators: make(map[string]*gojsonschema.Schema, len(operations)),
	}
	for _, op := range operations {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(op.schema.Parameters))
		if err != nil {
			return nil, fmt.Errorf("invalid schema for %s: %w", op.schema.Name, err)
		}
		d.ops[op.schema.Name] = op
		d.validators[op.schema.Name] = schema
	}
	return d, nil
}

// Gating returns the thresholds in force.
func (d *Dispatcher) Gating() GatingPolicy {
	return d.gating
}

type commitFunc func(ctx context.Context, out *types.DispatchOutcome) error

type step struct {
	index int
	op    string
	run   commitFunc
}

type batch struct {
	outcomes []types.DispatchOutcome
	steps    []step
	mutated  bool
}

func (b *batch) accept(out types.DispatchOutcome, run commitFunc) {
	out.Status = types.OutcomeExecuted
	b.outcomes = append(b.outcomes, out)
	b.steps = append(b.steps, step{index: len(b.outcomes) - 1, op: out.Operation, run: run})
}

func (b *batch) refuse(out types.DispatchOutcome, derr *types.DispatchError) {
	setFailure(&out, derr)
	b.outcomes = append(b.outcomes, out)
}

func setFailure(out *types.DispatchOutcome, derr *types.DispatchError) {
	switch derr.Kind {
	case types.KindLowConfidence:
		out.Status = types.OutcomeSkipped
	case types.KindCollaboratorFailure, types.KindConfigurationMissing:
		out.Status = types.OutcomeFailed
	default:
		out.Status = types.OutcomeRejected
	}
	out.Kind = derr.Kind
	out.Err = derr
	out.Message = derr.Message
	if derr.Suggestion != "" {
		out.Message += "; " + derr.Suggestion
	}
}

// Dispatch runs a batch of invocations against a session. The only error
// returned is the context's, when it ends before the commit pass; in that
// case neither the session nor the ledger has been touched.
func (d *Dispatcher) Dispatch(ctx context.Context, sess *session.Context, invocations []types.ToolInvocation, turn Turn) (*Result, error) {
	if sess.Ledger() == nil {
		return nil, fmt.Errorf("session %s has no ledger", sess.ID())
	}

	adds := 0
	for _, inv := range invocations {
		if strings.EqualFold(inv.Name, OpAddItem) {
			adds++
		}
	}

	st := newStage(sess)
	b := &batch{outcomes: make([]types.DispatchOutcome, 0, len(invocations))}
	for _, inv := range invocations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d.plan(ctx, b, st, sess, inv, turn, adds == 1)
	}
	if err := ctx.Err(); err != nil {
		d.logger.Debug("batch cancelled before commit",
			zap.String("session_id", sess.ID()),
			zap.Int("invocations", len(invocations)))
		return nil, err
	}

	commitCtx := context.WithoutCancel(ctx)
	for _, s := range b.steps {
		out := &b.outcomes[s.index]
		if err := s.run(commitCtx, out); err != nil {
			var derr *types.DispatchError
			if !errors.As(err, &derr) {
				derr = types.NewDispatchError(types.KindCollaboratorFailure, s.op, "the register could not complete the request").WithCause(err)
			}
			setFailure(out, derr)
			d.logger.Warn("operation failed",
				zap.String("session_id", sess.ID()),
				zap.String("operation", s.op),
				zap.Error(err))
		}
	}

	res := &Result{Outcomes: b.outcomes}
	if b.mutated {
		totals, err := sess.Ledger().Totals(commitCtx)
		if err != nil {
			d.logger.Warn("failed to refresh totals", zap.String("session_id", sess.ID()), zap.Error(err))
		} else {
			totals = withPlaces(totals, sess)
			sess.SetTotals(totals)
			res.Totals = &totals
		}
	}

	d.logger.Debug("batch dispatched",
		zap.String("session_id", sess.ID()),
		zap.Int("invocations", len(invocations)),
		zap.String("status", string(res.Status())))
	return res, nil
}

func (d *Dispatcher) plan(ctx context.Context, b *batch, st *stage, sess *session.Context, inv types.ToolInvocation, turn Turn, singleAdd bool) {
	name := strings.ToLower(inv.Name)
	out := types.DispatchOutcome{
		InvocationID: inv.ID,
		Operation:    name,
		Confidence:   inv.Confidence,
	}

	op, ok := d.ops[name]
	if !ok {
		b.refuse(out, types.NewDispatchError(types.KindUnknownOperation, name,
			fmt.Sprintf("unknown operation %q", inv.Name)))
		return
	}

	args := inv.Arguments
	if args == nil {
		args = map[string]interface{}{}
	}
	if derr := d.validate(name, args); derr != nil {
		b.refuse(out, derr)
		return
	}

	switch d.gating.Decide(inv.Confidence) {
	case DecisionSkip:
		b.refuse(out, types.NewDispatchError(types.KindLowConfidence, name,
			fmt.Sprintf("not sure the customer asked to %s", strings.ReplaceAll(name, "_", " "))).
			WithSuggestion("ask the customer to confirm"))
		return
	case DecisionConfirm:
		out.Confirm = true
	}
	out.Event = op.event

	if derr := d.gatePhase(b, st, sess, op, out, turn); derr != nil {
		b.refuse(out, derr)
		return
	}

	switch name {
	case OpAddItem:
		d.planAdd(ctx, b, st, sess, op, out, args, turn, singleAdd)
	case OpRemoveItem:
		d.planRemove(ctx, b, st, sess, op, out, args, turn)
	case OpUpdateQuantity:
		d.planUpdate(ctx, b, st, sess, op, out, args, turn)
	case OpComputeTotal:
		b.accept(out, func(ctx context.Context, o *types.DispatchOutcome) error {
			totals, err := sess.Ledger().Totals(ctx)
			if err != nil {
				return err
			}
			totals = withPlaces(totals, sess)
			sess.SetTotals(totals)
			o.Totals = &totals
			return nil
		})
	case OpLoadPaymentMethods:
		d.planLoadMethods(ctx, b, st, sess, op, out)
	case OpProcessPayment:
		d.planPayment(b, st, sess, op, out, args)
	case OpStartNewTransaction:
		d.stageReset(b, st, sess, out)
	}
}

func (d *Dispatcher) validate(name string, args map[string]interface{}) *types.DispatchError {
	res, err := d.validators[name].Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return types.NewDispatchError(types.KindInvalidArguments, name, "arguments could not be read").WithCause(err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.Field()+": "+e.Description())
	}
	return types.NewDispatchError(types.KindInvalidArguments, name, strings.Join(msgs, "; "))
}

func (d *Dispatcher) gatePhase(b *batch, st *stage, sess *session.Context, op operation, out types.DispatchOutcome, turn Turn) *types.DispatchError {
	name := op.schema.Name
	switch op.category {
	case CategoryOrdering:
		if st.phase != types.PhaseAwaitingPayment && st.phase != types.PhaseClosed {
			return nil
		}
		if !turn.NewTransaction {
			return types.NewDispatchError(types.KindInvalidPhaseTransition, name,
				"this order is already at payment").
				WithSuggestion("start a new order to add more")
		}
		reset := types.DispatchOutcome{Operation: OpStartNewTransaction, Confidence: out.Confidence}
		d.stageReset(b, st, sess, reset)
	case CategoryPayment:
		if st.phase == types.PhaseClosed {
			return types.NewDispatchError(types.KindInvalidPhaseTransition, name,
				"this order has already been paid").
				WithSuggestion("start a new order first")
		}
		if name != OpProcessPayment {
			return nil
		}
		if !st.methodsLoaded {
			return types.NewDispatchError(types.KindInvalidPhaseTransition, name,
				"payment methods have not been listed yet").
				WithSuggestion("call load_payment_methods first")
		}
		if st.phase != types.PhaseAwaitingPayment {
			return types.NewDispatchError(types.KindInvalidPhaseTransition, name,
				"the customer has not finished ordering")
		}
	}
	return nil
}

func (d *Dispatcher) stageReset(b *batch, st *stage, sess *session.Context, out types.DispatchOutcome) {
	st.reset()
	out.Operation = OpStartNewTransaction
	out.Event = conversation.EventNewTransaction
	b.accept(out, func(ctx context.Context, _ *types.DispatchOutcome) error {
		if err := sess.Ledger().Reset(ctx); err != nil {
			return err
		}
		sess.ResetTransaction()
		b.mutated = true
		return nil
	})
}

func (d *Dispatcher) planAdd(ctx context.Context, b *batch, st *stage, sess *session.Context, op operation, out types.DispatchOutcome, args map[string]interface{}, turn Turn, singleAdd bool) {
	quantity, _ := intArg(args, "quantity", 1)
	info, alternatives, derr := d.resolveProduct(ctx, out.Operation, stringArg(args, "product"), turn.Vocabulary)
	if derr != nil {
		out.Alternatives = alternatives
		b.refuse(out, derr)
		return
	}

	notes := stringArg(args, "notes")
	if notes == "" && singleAdd {
		var mentioned []string
		for _, m := range turn.Mentioned {
			// "iced" in "an iced latte" is the product name, not a note
			if !persona.ContainsTerm(info.DisplayName, m) {
				mentioned = append(mentioned, m)
			}
		}
		notes = strings.Join(mentioned, ", ")
	}

	line := types.CartLine{
		SKU:         info.SKU,
		DisplayName: info.DisplayName,
		Quantity:    quantity,
		UnitPrice:   info.BasePrice,
		Notes:       notes,
	}
	s := &slot{line: line}
	st.slots = append(st.slots, s)
	st.raise(op.event)

	b.accept(out, func(ctx context.Context, o *types.DispatchOutcome) error {
		id, err := sess.Ledger().AddLine(ctx, line.SKU, line.Quantity, line.UnitPrice, line.Notes)
		if err != nil {
			s.failed = true
			return err
		}
		committed := line
		committed.LineID = id
		s.line.LineID = id
		sess.AppendLine(committed)
		o.Line = &committed
		b.mutated = true
		return nil
	})
}

func (d *Dispatcher) planRemove(ctx context.Context, b *batch, st *stage, sess *session.Context, op operation, out types.DispatchOutcome, args map[string]interface{}, turn Turn) {
	target, derr := d.findLine(ctx, out.Operation, st, args, turn.Vocabulary)
	if derr != nil {
		b.refuse(out, derr)
		return
	}
	if qty, ok := intArg(args, "quantity", 0); ok && qty < target.line.Quantity {
		remaining := target.line.Quantity - qty
		target.line.Quantity = remaining
		b.accept(out, updateStep(b, sess, target, remaining))
	} else {
		target.removed = true
		b.accept(out, removeStep(b, sess, target))
	}
	st.raise(op.event)
}

func (d *Dispatcher) planUpdate(ctx context.Context, b *batch, st *stage, sess *session.Context, op operation, out types.DispatchOutcome, args map[string]interface{}, turn Turn) {
	target, derr := d.findLine(ctx, out.Operation, st, args, turn.Vocabulary)
	if derr != nil {
		b.refuse(out, derr)
		return
	}
	qty, _ := intArg(args, "quantity", 0)
	if qty == 0 {
		target.removed = true
		b.accept(out, removeStep(b, sess, target))
	} else {
		target.line.Quantity = qty
		b.accept(out, updateStep(b, sess, target, qty))
	}
	st.raise(op.event)
}

func removeStep(b *batch, sess *session.Context, s *slot) commitFunc {
	return func(ctx context.Context, o *types.DispatchOutcome) error {
		if s.failed {
			return errLineNotAdded
		}
		if err := sess.Ledger().RemoveLine(ctx, s.line.LineID); err != nil {
			return err
		}
		removed := s.line
		sess.RemoveLine(removed.LineID)
		o.Line = &removed
		b.mutated = true
		return nil
	}
}

func updateStep(b *batch, sess *session.Context, s *slot, qty int) commitFunc {
	return func(ctx context.Context, o *types.DispatchOutcome) error {
		if s.failed {
			return errLineNotAdded
		}
		if err := sess.Ledger().UpdateQuantity(ctx, s.line.LineID, qty); err != nil {
			return err
		}
		line := s.line.WithQuantity(qty)
		sess.ReplaceLine(line)
		o.Line = &line
		b.mutated = true
		return nil
	}
}

func (d *Dispatcher) planLoadMethods(ctx context.Context, b *batch, st *stage, sess *session.Context, op operation, out types.DispatchOutcome) {
	methods, err := d.store.PaymentMethods(ctx, sess.StoreID())
	if err != nil {
		b.refuse(out, types.NewDispatchError(types.KindCollaboratorFailure, out.Operation,
			"payment methods could not be loaded").WithCause(err))
		return
	}
	enabled := make([]types.PaymentMethodDescriptor, 0, len(methods))
	for _, m := range methods {
		if m.Enabled {
			enabled = append(enabled, m)
		}
	}
	if len(enabled) == 0 {
		b.refuse(out, types.NewDispatchError(types.KindConfigurationMissing, out.Operation,
			fmt.Sprintf("no payment methods are enabled for store %q", sess.StoreID())))
		return
	}

	st.methods = enabled
	st.methodsLoaded = true
	st.raise(op.event)

	b.accept(out, func(ctx context.Context, o *types.DispatchOutcome) error {
		sess.SetPaymentMethods(enabled)
		o.Methods = enabled
		if totals, err := sess.Ledger().Totals(ctx); err == nil {
			totals = withPlaces(totals, sess)
			sess.SetTotals(totals)
			o.Totals = &totals
		}
		return nil
	})
}

func (d *Dispatcher) planPayment(b *batch, st *stage, sess *session.Context, op operation, out types.DispatchOutcome, args map[string]interface{}) {
	ref := stringArg(args, "method")
	method, ok := findMethod(st.methods, ref)
	if !ok {
		names := make([]string, len(st.methods))
		for i, m := range st.methods {
			names[i] = m.DisplayName
		}
		out.Alternatives = names
		b.refuse(out, types.NewDispatchError(types.KindInvalidArguments, out.Operation,
			fmt.Sprintf("%q is not an accepted payment method", ref)))
		return
	}
	if st.empty() {
		b.refuse(out, types.NewDispatchError(types.KindInvalidArguments, out.Operation, "the order is empty"))
		return
	}
	tendered, hasAmount := decimalArg(args, "amount")
	st.raise(op.event)

	b.accept(out, func(ctx context.Context, o *types.DispatchOutcome) error {
		ledger := sess.Ledger()
		totals, err := ledger.Totals(ctx)
		if err != nil {
			return err
		}
		totals = withPlaces(totals, sess)
		amount := totals.Total
		if hasAmount {
			amount = tendered
		}
		if totals.Total.LessThan(method.MinimumAmount) {
			return types.NewDispatchError(types.KindInvalidArguments, o.Operation,
				fmt.Sprintf("%s needs a total of at least %s", method.DisplayName, types.FormatAmount(method.MinimumAmount, totals.Places)))
		}
		if amount.LessThan(totals.Total) {
			return types.NewDispatchError(types.KindInvalidArguments, o.Operation,
				fmt.Sprintf("%s is less than the total of %s", types.FormatAmount(amount, totals.Places), totals.Format()))
		}
		receipt, err := ledger.Finalize(ctx, method.ID, amount)
		if err != nil {
			return err
		}
		o.Receipt = &receipt
		o.Totals = &totals
		return nil
	})
}

func withPlaces(t types.Totals, sess *session.Context) types.Totals {
	if t.Places == 0 {
		t.Places = sess.CurrencyPlaces()
	}
	if t.Currency == "" {
		t.Currency = sess.Currency()
	}
	return t
}
