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
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/loom-pos/pkg/catalog"
	"github.com/teradata-labs/loom-pos/pkg/conversation"
	"github.com/teradata-labs/loom-pos/pkg/ledger"
	"github.com/teradata-labs/loom-pos/pkg/session"
	"github.com/teradata-labs/loom-pos/pkg/types"
)

var testVocabulary = []string{"small", "large", "oat milk", "almond milk", "extra shot"}

func product(sku, name, price string, active bool) types.ProductInfo {
	return types.ProductInfo{SKU: sku, DisplayName: name, BasePrice: decimal.RequireFromString(price), Active: active}
}

func method(id, name, minimum string, enabled bool) types.PaymentMethodDescriptor {
	return types.PaymentMethodDescriptor{
		ID:            id,
		DisplayName:   name,
		Type:          id,
		MinimumAmount: decimal.RequireFromString(minimum),
		Enabled:       enabled,
	}
}

type fixture struct {
	d      *Dispatcher
	sess   *session.Context
	ledger *ledger.MemoryLedger
}

func newFixture(t *testing.T, storeID string) *fixture {
	t.Helper()
	cat := catalog.NewMemoryCatalog(
		product("LATTE", "Latte", "4.50", true),
		product("ICED_LATTE", "Iced Latte", "5.00", true),
		product("MOCHA", "Mocha", "4.75", true),
		product("MUFFIN_BB", "Blueberry Muffin", "3.25", true),
		product("MUFFIN_CHOC", "Chocolate Muffin", "3.25", true),
		product("PSL", "Pumpkin Spice Latte", "5.50", false),
	)
	store := catalog.NewMemoryStore()
	store.SetPaymentMethods("uptown",
		method("cash", "Cash", "0", true),
		method("card", "Credit Card", "5.00", true),
		method("gift", "Gift Card", "0", false),
	)
	store.SetPaymentMethods("closed-for-cards", method("gift", "Gift Card", "0", false))

	d, err := New(Config{Catalog: cat, Store: store})
	require.NoError(t, err)

	l := ledger.NewMemoryLedger(ledger.MemoryConfig{Currency: "USD", Places: 2})
	sess := session.New(session.Config{StoreID: storeID, Currency: "USD", CurrencyPlaces: 2, Ledger: l})
	sess.SetPhase(types.PhaseOrdering)
	return &fixture{d: d, sess: sess, ledger: l}
}

func (f *fixture) run(t *testing.T, turn Turn, invs ...types.ToolInvocation) *Result {
	t.Helper()
	if turn.Vocabulary == nil {
		turn.Vocabulary = testVocabulary
	}
	res, err := f.d.Dispatch(context.Background(), f.sess, invs, turn)
	require.NoError(t, err)
	return res
}

var invSeq int

func inv(name string, confidence float64, args map[string]interface{}) types.ToolInvocation {
	invSeq++
	return types.ToolInvocation{
		ID:         fmt.Sprintf("inv_%d", invSeq),
		Name:       name,
		Arguments:  args,
		Confidence: confidence,
		Origin:     types.OriginNative,
	}
}

func add(productName string, qty int) types.ToolInvocation {
	return inv(OpAddItem, 1.0, map[string]interface{}{"product": productName, "quantity": qty})
}

func cartSummary(sess *session.Context) []string {
	out := []string{}
	for _, l := range sess.Lines() {
		out = append(out, fmt.Sprintf("%s x%d", l.SKU, l.Quantity))
	}
	return out
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{Store: catalog.NewMemoryStore()})
	assert.Error(t, err)
	_, err = New(Config{Catalog: catalog.NewMemoryCatalog()})
	assert.Error(t, err)
	_, err = New(Config{Catalog: catalog.NewMemoryCatalog(), Store: catalog.NewMemoryStore(), Gating: GatingPolicy{Execute: 0.9, Immediate: 0.5}})
	assert.Error(t, err)

	d, err := New(Config{Catalog: catalog.NewMemoryCatalog(), Store: catalog.NewMemoryStore()})
	require.NoError(t, err)
	assert.Equal(t, DefaultGatingPolicy(), d.Gating())
}

func TestDispatch_ModifiersGoToNotes(t *testing.T) {
	f := newFixture(t, "uptown")

	res := f.run(t, Turn{Mentioned: []string{"large", "oat milk"}}, inv(OpAddItem, 0.95, map[string]interface{}{"product": "Latte"}))
	require.Len(t, res.Outcomes, 1)
	out := res.Outcomes[0]
	require.True(t, out.Succeeded(), out.Message)
	require.NotNil(t, out.Line)
	assert.Equal(t, "LATTE", out.Line.SKU)
	assert.Equal(t, 1, out.Line.Quantity)
	assert.Contains(t, out.Line.Notes, "large")
	assert.Contains(t, out.Line.Notes, "oat milk")
	assert.Equal(t, conversation.EventContinueOrdering, out.Event)

	require.NotNil(t, res.Totals)
	assert.Equal(t, "4.50", res.Totals.Format())
	assert.Equal(t, "4.50", f.sess.Totals().Format())
	assert.Equal(t, out.Line.LineID, f.ledger.Lines()[0].ID)
	assert.Equal(t, "large, oat milk", f.ledger.Lines()[0].Notes)
}

func TestDispatch_ExplicitNotesWin(t *testing.T) {
	f := newFixture(t, "uptown")
	res := f.run(t, Turn{Mentioned: []string{"large"}},
		inv(OpAddItem, 1, map[string]interface{}{"product": "Mocha", "notes": "extra hot"}))
	require.True(t, res.Outcomes[0].Succeeded())
	assert.Equal(t, "extra hot", res.Outcomes[0].Line.Notes)
}

func TestDispatch_CompoundSearchTermRejected(t *testing.T) {
	f := newFixture(t, "uptown")

	res := f.run(t, Turn{}, inv(OpAddItem, 1, map[string]interface{}{"product": "large oat milk latte"}))
	require.Len(t, res.Outcomes, 1)
	out := res.Outcomes[0]
	assert.Equal(t, types.OutcomeRejected, out.Status)
	assert.Equal(t, types.KindInvalidArguments, out.Kind)
	assert.Contains(t, out.Message, "compound search term")
	assert.Contains(t, out.Message, `"latte"`)
	assert.ErrorIs(t, out.Err, types.ErrInvalidArguments)
	assert.Empty(t, f.sess.Lines())
	assert.Empty(t, f.ledger.Lines())
	assert.Nil(t, res.Totals)
}

func TestDispatch_ProductNameContainingVocabulary(t *testing.T) {
	vocabulary := append([]string{"iced"}, testVocabulary...)

	t.Run("exact name is not compound", func(t *testing.T) {
		f := newFixture(t, "uptown")
		res := f.run(t, Turn{Vocabulary: vocabulary, Mentioned: []string{"iced"}},
			inv(OpAddItem, 1, map[string]interface{}{"product": "Iced Latte"}))
		require.Len(t, res.Outcomes, 1)
		out := res.Outcomes[0]
		require.True(t, out.Succeeded(), out.Message)
		assert.Equal(t, "ICED_LATTE", out.Line.SKU)
		assert.Equal(t, "5.00", res.Totals.Format())
		assert.Empty(t, out.Line.Notes)
	})

	t.Run("extra vocabulary splits on the catalog name", func(t *testing.T) {
		f := newFixture(t, "uptown")
		res := f.run(t, Turn{Vocabulary: vocabulary},
			inv(OpAddItem, 1, map[string]interface{}{"product": "large iced latte"}))
		require.Len(t, res.Outcomes, 1)
		out := res.Outcomes[0]
		assert.Equal(t, types.KindInvalidArguments, out.Kind)
		assert.Contains(t, out.Message, `search for "iced latte" and put large in notes`)
		assert.Empty(t, f.sess.Lines())
	})

	t.Run("remove picks the named product", func(t *testing.T) {
		f := newFixture(t, "uptown")
		res := f.run(t, Turn{Vocabulary: vocabulary}, add("Latte", 1), add("Iced Latte", 1))
		require.Equal(t, StatusSuccess, res.Status())

		res = f.run(t, Turn{Vocabulary: vocabulary}, inv(OpRemoveItem, 1, map[string]interface{}{"product": "Iced Latte"}))
		require.True(t, res.Outcomes[0].Succeeded(), res.Outcomes[0].Message)
		require.Len(t, f.sess.Lines(), 1)
		assert.Equal(t, "LATTE", f.sess.Lines()[0].SKU)
	})
}

func TestDispatch_ProductResolution(t *testing.T) {
	tests := []struct {
		name         string
		product      string
		wantSKU      string
		wantKind     types.ErrorKind
		alternatives []string
	}{
		{name: "exact beats partial", product: "latte", wantSKU: "LATTE"},
		{name: "plural", product: "Mochas", wantSKU: "MOCHA"},
		{name: "single partial", product: "blueberry", wantSKU: "MUFFIN_BB"},
		{name: "unknown", product: "pizza", wantKind: types.KindUnknownProduct},
		{name: "inactive", product: "pumpkin spice latte", wantKind: types.KindUnknownProduct},
		{
			name:         "ambiguous",
			product:      "muffin",
			wantKind:     types.KindUnknownProduct,
			alternatives: []string{"Blueberry Muffin", "Chocolate Muffin"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "uptown")
			res := f.run(t, Turn{}, add(tt.product, 1))
			out := res.Outcomes[0]
			if tt.wantKind != "" {
				assert.Equal(t, tt.wantKind, out.Kind)
				assert.False(t, out.Succeeded())
				assert.Equal(t, tt.alternatives, out.Alternatives)
				assert.Empty(t, f.ledger.Lines())
				return
			}
			require.True(t, out.Succeeded(), out.Message)
			assert.Equal(t, tt.wantSKU, out.Line.SKU)
		})
	}
}

func TestDispatch_AddAddRemove(t *testing.T) {
	f := newFixture(t, "uptown")

	res := f.run(t, Turn{}, add("Latte", 2), add("Blueberry Muffin", 1))
	assert.Equal(t, StatusSuccess, res.Status())
	assert.Equal(t, "12.25", f.sess.Totals().Format())

	res = f.run(t, Turn{}, inv(OpRemoveItem, 1, map[string]interface{}{"product": "latte"}))
	require.True(t, res.Outcomes[0].Succeeded(), res.Outcomes[0].Message)
	assert.Equal(t, "LATTE", res.Outcomes[0].Line.SKU)

	assert.Equal(t, []string{"MUFFIN_BB x1"}, cartSummary(f.sess))
	require.Len(t, f.ledger.Lines(), 1)
	assert.Equal(t, "MUFFIN_BB", f.ledger.Lines()[0].SKU)
	assert.Equal(t, "3.25", f.sess.Totals().Format())
}

func TestDispatch_RemoveAndUpdateQuantities(t *testing.T) {
	f := newFixture(t, "uptown")
	f.run(t, Turn{}, add("Latte", 3), add("Mocha", 1))

	res := f.run(t, Turn{}, inv(OpRemoveItem, 1, map[string]interface{}{"product": "Latte", "quantity": 1}))
	require.True(t, res.Outcomes[0].Succeeded())
	assert.Equal(t, []string{"LATTE x2", "MOCHA x1"}, cartSummary(f.sess))

	res = f.run(t, Turn{}, inv(OpUpdateQuantity, 1, map[string]interface{}{"product": "Mocha", "quantity": 4}))
	require.True(t, res.Outcomes[0].Succeeded())
	assert.Equal(t, []string{"LATTE x2", "MOCHA x4"}, cartSummary(f.sess))
	assert.Equal(t, "28.00", f.sess.Totals().Format())

	lineID := f.sess.Lines()[0].LineID
	res = f.run(t, Turn{}, inv(OpUpdateQuantity, 1, map[string]interface{}{"line_id": lineID, "quantity": 0}))
	require.True(t, res.Outcomes[0].Succeeded())
	assert.Equal(t, []string{"MOCHA x4"}, cartSummary(f.sess))

	res = f.run(t, Turn{}, inv(OpRemoveItem, 1, map[string]interface{}{"line_id": lineID}))
	assert.Equal(t, types.KindInvalidArguments, res.Outcomes[0].Kind)

	res = f.run(t, Turn{}, inv(OpRemoveItem, 1, map[string]interface{}{}))
	assert.Equal(t, types.KindInvalidArguments, res.Outcomes[0].Kind)

	res = f.run(t, Turn{}, inv(OpRemoveItem, 1, map[string]interface{}{"product": "Blueberry Muffin"}))
	assert.Equal(t, types.KindUnknownProduct, res.Outcomes[0].Kind)
}

func TestDispatch_RemovePrefersMatchingNotes(t *testing.T) {
	f := newFixture(t, "uptown")
	f.run(t, Turn{}, inv(OpAddItem, 1, map[string]interface{}{"product": "Latte", "notes": "oat milk"}))
	f.run(t, Turn{}, inv(OpAddItem, 1, map[string]interface{}{"product": "Latte", "notes": "almond milk"}))

	res := f.run(t, Turn{}, inv(OpRemoveItem, 1, map[string]interface{}{"product": "oat milk latte"}))
	require.True(t, res.Outcomes[0].Succeeded(), res.Outcomes[0].Message)

	lines := f.sess.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "almond milk", lines[0].Notes)
}

func TestDispatch_AddThenRemoveInOneBatch(t *testing.T) {
	f := newFixture(t, "uptown")
	res := f.run(t, Turn{}, add("Mocha", 1), inv(OpRemoveItem, 1, map[string]interface{}{"product": "mocha"}))
	assert.Equal(t, StatusSuccess, res.Status())
	assert.Empty(t, f.sess.Lines())
	assert.Empty(t, f.ledger.Lines())
}

func TestDispatch_ConfidenceGating(t *testing.T) {
	tests := []struct {
		confidence  float64
		wantStatus  types.OutcomeStatus
		wantConfirm bool
		wantLines   int
	}{
		{0.2, types.OutcomeSkipped, false, 0},
		{0.49, types.OutcomeSkipped, false, 0},
		{0.5, types.OutcomeExecuted, true, 1},
		{0.79, types.OutcomeExecuted, true, 1},
		{0.8, types.OutcomeExecuted, false, 1},
		{1.0, types.OutcomeExecuted, false, 1},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%.2f", tt.confidence), func(t *testing.T) {
			f := newFixture(t, "uptown")
			res := f.run(t, Turn{}, inv(OpAddItem, tt.confidence, map[string]interface{}{"product": "Latte"}))
			out := res.Outcomes[0]
			assert.Equal(t, tt.wantStatus, out.Status)
			assert.Equal(t, tt.wantConfirm, out.Confirm)
			assert.Len(t, f.sess.Lines(), tt.wantLines)
			if tt.wantStatus == types.OutcomeSkipped {
				assert.Equal(t, types.KindLowConfidence, out.Kind)
				assert.ErrorIs(t, out.Err, types.ErrLowConfidence)
			}
		})
	}
}

func TestDispatch_GatingIsPerInvocation(t *testing.T) {
	f := newFixture(t, "uptown")
	res := f.run(t, Turn{},
		inv(OpAddItem, 0.9, map[string]interface{}{"product": "Latte"}),
		inv(OpAddItem, 0.3, map[string]interface{}{"product": "Mocha"}),
	)
	assert.Equal(t, StatusPartial, res.Status())
	assert.Equal(t, []string{"LATTE x1"}, cartSummary(f.sess))
}

func TestDispatch_UnknownOperationAndBadArguments(t *testing.T) {
	f := newFixture(t, "uptown")
	res := f.run(t, Turn{},
		inv("teleport", 1, nil),
		inv(OpAddItem, 1, map[string]interface{}{"quantity": 2}),
		inv(OpAddItem, 1, map[string]interface{}{"product": "Latte", "quantity": 0}),
		inv(OpProcessPayment, 1, map[string]interface{}{}),
	)
	require.Len(t, res.Outcomes, 4)
	assert.Equal(t, types.KindUnknownOperation, res.Outcomes[0].Kind)
	assert.ErrorIs(t, res.Outcomes[0].Err, types.ErrUnknownOperation)
	for _, out := range res.Outcomes[1:] {
		assert.Equal(t, types.KindInvalidArguments, out.Kind, out.Operation)
	}
	assert.Equal(t, StatusRejected, res.Status())
	assert.Empty(t, f.ledger.Lines())
}

func TestDispatch_PaymentFlow(t *testing.T) {
	f := newFixture(t, "uptown")
	f.run(t, Turn{}, add("Latte", 2))
	f.sess.SetPhase(types.PhaseCompletionPending)

	res := f.run(t, Turn{}, inv(OpProcessPayment, 1, map[string]interface{}{"method": "cash"}))
	assert.Equal(t, types.KindInvalidPhaseTransition, res.Outcomes[0].Kind)
	assert.ErrorIs(t, res.Outcomes[0].Err, types.ErrInvalidPhaseTransition)

	res = f.run(t, Turn{},
		inv(OpLoadPaymentMethods, 1, nil),
		inv(OpProcessPayment, 1, map[string]interface{}{"method": "Credit Card", "amount": 10}),
	)
	require.Equal(t, StatusSuccess, res.Status(), res.Outcomes)

	load := res.Outcomes[0]
	assert.Equal(t, conversation.EventMethodsLoaded, load.Event)
	require.Len(t, load.Methods, 2)
	assert.Equal(t, "cash", load.Methods[0].ID)
	assert.True(t, f.sess.PaymentMethodsLoaded())

	pay := res.Outcomes[1]
	assert.Equal(t, conversation.EventPaymentProcessed, pay.Event)
	require.NotNil(t, pay.Receipt)
	assert.Equal(t, "card", pay.Receipt.MethodID)
	assert.Equal(t, "9.00", pay.Receipt.Total.StringFixed(2))
	assert.Equal(t, "1.00", pay.Receipt.Change.StringFixed(2))
}

func TestDispatch_PaymentRules(t *testing.T) {
	tests := []struct {
		name    string
		args    map[string]interface{}
		wantMsg string
	}{
		{"unknown method", map[string]interface{}{"method": "bitcoin"}, "not an accepted payment method"},
		{"disabled method", map[string]interface{}{"method": "gift"}, "not an accepted payment method"},
		{"below minimum", map[string]interface{}{"method": "card"}, "needs a total of at least 5.00"},
		{"short tender", map[string]interface{}{"method": "cash", "amount": 2}, "less than the total of 4.50"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "uptown")
			f.run(t, Turn{}, add("Latte", 1))
			f.sess.SetPhase(types.PhaseCompletionPending)
			f.run(t, Turn{}, inv(OpLoadPaymentMethods, 1, nil))
			f.sess.SetPhase(types.PhaseAwaitingPayment)

			res := f.run(t, Turn{}, inv(OpProcessPayment, 1, tt.args))
			out := res.Outcomes[0]
			assert.Equal(t, types.OutcomeRejected, out.Status)
			assert.Equal(t, types.KindInvalidArguments, out.Kind)
			assert.Contains(t, out.Message, tt.wantMsg)
		})
	}
}

func TestDispatch_PaymentWhileOrdering(t *testing.T) {
	f := newFixture(t, "uptown")
	f.run(t, Turn{}, add("Latte", 1), inv(OpLoadPaymentMethods, 1, nil))
	require.True(t, f.sess.PaymentMethodsLoaded())

	res := f.run(t, Turn{}, inv(OpProcessPayment, 1, map[string]interface{}{"method": "cash"}))
	assert.Equal(t, types.KindInvalidPhaseTransition, res.Outcomes[0].Kind)
	assert.Contains(t, res.Outcomes[0].Message, "not finished ordering")
}

func TestDispatch_NoEnabledMethodsIsFatal(t *testing.T) {
	f := newFixture(t, "closed-for-cards")
	f.run(t, Turn{}, add("Latte", 1))

	res := f.run(t, Turn{}, inv(OpLoadPaymentMethods, 1, nil))
	out := res.Outcomes[0]
	assert.Equal(t, types.OutcomeFailed, out.Status)
	assert.Equal(t, types.KindConfigurationMissing, out.Kind)
	assert.ErrorIs(t, out.Err, types.ErrConfigurationMissing)

	kind, fatal := res.Fatal()
	assert.True(t, fatal)
	assert.Equal(t, types.KindConfigurationMissing, kind)
	assert.False(t, f.sess.PaymentMethodsLoaded())
}

func TestDispatch_OrderingAfterPayment(t *testing.T) {
	f := newFixture(t, "uptown")
	f.run(t, Turn{}, add("Latte", 1))
	f.sess.SetPhase(types.PhaseAwaitingPayment)

	res := f.run(t, Turn{}, add("Mocha", 1))
	assert.Equal(t, types.KindInvalidPhaseTransition, res.Outcomes[0].Kind)
	assert.Equal(t, []string{"LATTE x1"}, cartSummary(f.sess))

	f.sess.SetPhase(types.PhaseClosed)
	firstTxn := f.ledger.TransactionID()
	res = f.run(t, Turn{NewTransaction: true}, add("Mocha", 1))
	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, OpStartNewTransaction, res.Outcomes[0].Operation)
	assert.Equal(t, conversation.EventNewTransaction, res.Outcomes[0].Event)
	assert.True(t, res.Outcomes[1].Succeeded(), res.Outcomes[1].Message)

	assert.Equal(t, types.PhaseOrdering, f.sess.Phase())
	assert.Equal(t, []string{"MOCHA x1"}, cartSummary(f.sess))
	assert.NotEqual(t, firstTxn, f.ledger.TransactionID())
	assert.Equal(t, "4.75", f.sess.Totals().Format())
}

func TestDispatch_PayingClosedOrder(t *testing.T) {
	f := newFixture(t, "uptown")
	f.sess.SetPhase(types.PhaseClosed)
	res := f.run(t, Turn{}, inv(OpLoadPaymentMethods, 1, nil))
	assert.Equal(t, types.KindInvalidPhaseTransition, res.Outcomes[0].Kind)
}

func TestDispatch_ComputeTotal(t *testing.T) {
	f := newFixture(t, "uptown")
	f.run(t, Turn{}, add("Mocha", 2))

	res := f.run(t, Turn{}, inv(OpComputeTotal, 1, nil))
	require.True(t, res.Outcomes[0].Succeeded())
	require.NotNil(t, res.Outcomes[0].Totals)
	assert.Equal(t, "9.50", res.Outcomes[0].Totals.Format())
	assert.Equal(t, "USD", res.Outcomes[0].Totals.Currency)
	assert.Nil(t, res.Totals)
}

func TestDispatch_CancelledBeforeCommit(t *testing.T) {
	f := newFixture(t, "uptown")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.d.Dispatch(ctx, f.sess, []types.ToolInvocation{add("Latte", 1), add("Mocha", 1)}, Turn{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
	assert.Empty(t, f.sess.Lines())
	assert.Empty(t, f.ledger.Lines())
	assert.Equal(t, types.PhaseOrdering, f.sess.Phase())
}

type failingLedger struct {
	*ledger.MemoryLedger
}

func (l failingLedger) AddLine(context.Context, string, int, decimal.Decimal, string) (string, error) {
	return "", errors.New("register offline")
}

func TestDispatch_CommitFailures(t *testing.T) {
	f := newFixture(t, "uptown")
	sess := session.New(session.Config{
		StoreID:        "uptown",
		Currency:       "USD",
		CurrencyPlaces: 2,
		Ledger:         failingLedger{ledger.NewMemoryLedger(ledger.MemoryConfig{Currency: "USD", Places: 2})},
	})
	sess.SetPhase(types.PhaseOrdering)

	res, err := f.d.Dispatch(context.Background(), sess, []types.ToolInvocation{
		add("Latte", 1),
		inv(OpRemoveItem, 1, map[string]interface{}{"product": "Latte"}),
	}, Turn{Vocabulary: testVocabulary})
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 2)
	for _, out := range res.Outcomes {
		assert.Equal(t, types.OutcomeFailed, out.Status)
		assert.Equal(t, types.KindCollaboratorFailure, out.Kind)
	}
	assert.Empty(t, sess.Lines())
	_, fatal := res.Fatal()
	assert.False(t, fatal)
}

func TestDispatch_NoLedger(t *testing.T) {
	f := newFixture(t, "uptown")
	_, err := f.d.Dispatch(context.Background(), session.New(session.Config{}), nil, Turn{})
	assert.Error(t, err)
}

func TestResult_Status(t *testing.T) {
	ok := types.DispatchOutcome{Status: types.OutcomeExecuted}
	bad := types.DispatchOutcome{Status: types.OutcomeRejected}

	assert.Equal(t, StatusEmpty, (&Result{}).Status())
	assert.Equal(t, StatusSuccess, (&Result{Outcomes: []types.DispatchOutcome{ok}}).Status())
	assert.Equal(t, StatusPartial, (&Result{Outcomes: []types.DispatchOutcome{ok, bad}}).Status())
	assert.Equal(t, StatusRejected, (&Result{Outcomes: []types.DispatchOutcome{bad}}).Status())
	assert.Len(t, (&Result{Outcomes: []types.DispatchOutcome{ok, bad}}).Executed(), 1)
}

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		op   string
		want Category
		ok   bool
	}{
		{op: OpAddItem, want: CategoryOrdering, ok: true},
		{op: OpUpdateQuantity, want: CategoryOrdering, ok: true},
		{op: OpComputeTotal, want: CategoryQuery, ok: true},
		{op: OpProcessPayment, want: CategoryPayment, ok: true},
		{op: OpStartNewTransaction, want: CategoryControl, ok: true},
		{op: "order_pizza"},
	}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			got, ok := CategoryOf(tt.op)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Len(t, Schemas(), 7)
}
