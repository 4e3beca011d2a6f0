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
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teradata-labs/loom-pos/pkg/catalog"
	"github.com/teradata-labs/loom-pos/pkg/dispatch"
	"github.com/teradata-labs/loom-pos/pkg/extract"
	"github.com/teradata-labs/loom-pos/pkg/ledger"
	"github.com/teradata-labs/loom-pos/pkg/llm"
	"github.com/teradata-labs/loom-pos/pkg/persona"
	"github.com/teradata-labs/loom-pos/pkg/prompts"
	"github.com/teradata-labs/loom-pos/pkg/session"
	"github.com/teradata-labs/loom-pos/pkg/types"
)

const unavailableReply = "Sorry, our ordering system is down right now. Please give us a moment."

type harness struct {
	engine   *Engine
	provider *llm.MockProvider
	sess     *session.Context
	ledger   *ledger.MemoryLedger
	metrics  *Metrics
}

func newHarness(t *testing.T, native bool, storeID string, replies ...llm.MockReply) *harness {
	t.Helper()
	logger := zaptest.NewLogger(t)

	fixture, err := catalog.LoadFixture("../catalog/testdata/catalog.yaml")
	require.NoError(t, err)
	cat, store, err := fixture.Memory()
	require.NoError(t, err)

	d, err := dispatch.New(dispatch.Config{Catalog: cat, Store: store, Logger: logger})
	require.NoError(t, err)

	provider := llm.NewMockProvider(native, replies...)
	gateway, err := llm.NewGateway(provider, llm.GatewayConfig{
		Retry: llm.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: time.Millisecond,
			MaxDelay:     2 * time.Millisecond,
		},
		Instructions: extract.Instructions,
		Logger:       logger,
	})
	require.NoError(t, err)

	extractor, err := extract.New(dispatch.Schemas(), extract.Config{Logger: logger})
	require.NoError(t, err)

	metrics, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	personas := persona.NewCache(persona.NewFileLoader("../../personas"), logger)
	e, err := New(Config{
		Personas:   personas,
		Assembler:  prompts.NewAssembler(personas, prompts.Config{MaxExchanges: 4}),
		Gateway:    gateway,
		Dispatcher: d,
		Extractor:  extractor,
		Metrics:    metrics,
		Logger:     logger,
	})
	require.NoError(t, err)

	l := ledger.NewMemoryLedger(ledger.MemoryConfig{Currency: "USD", Places: 2})
	sess := session.New(session.Config{
		PersonaKey:     "barista",
		StoreID:        storeID,
		Currency:       "USD",
		CurrencyPlaces: 2,
		Ledger:         l,
	})
	return &harness{engine: e, provider: provider, sess: sess, ledger: l, metrics: metrics}
}

func (h *harness) turn(t *testing.T, utterance string) *types.TurnResult {
	t.Helper()
	res, err := h.engine.ProcessTurn(context.Background(), h.sess, utterance)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func call(id, name, args string) llm.ToolCall {
	return llm.ToolCall{ID: id, Name: name, Arguments: json.RawMessage(args)}
}

func TestNew_Validation(t *testing.T) {
	h := newHarness(t, false, "uptown")
	gateway := h.engine.gateway

	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{
		Personas:   h.engine.personas,
		Assembler:  h.engine.assembler,
		Gateway:    gateway,
		Dispatcher: h.engine.dispatcher,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no extractor")
}

func TestProcessTurn_NativeToolCall(t *testing.T) {
	h := newHarness(t, true, "uptown", llm.MockReply{
		Text:      "One latte coming right up!",
		ToolCalls: []llm.ToolCall{call("c1", dispatch.OpAddItem, `{"product":"Latte"}`)},
	})

	res := h.turn(t, "can I get a large oat milk latte")

	assert.Equal(t, h.sess.ID(), res.SessionID)
	assert.Equal(t, types.PhaseOrdering, res.Phase)
	assert.Equal(t, "One latte coming right up!", res.AcknowledgmentText)
	assert.False(t, res.SessionFatal)
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, types.OutcomeExecuted, res.Outcomes[0].Status)

	lines := h.sess.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "LATTE", lines[0].SKU)
	assert.Equal(t, "large, oat milk", lines[0].Notes)
	assert.Equal(t, "4.50", h.sess.Totals().Format())

	history := h.sess.History()
	require.Len(t, history, 1)
	assert.Equal(t, "can I get a large oat milk latte", history[0].Customer)

	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.turns.WithLabelValues("barista", TurnCompleted)))
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.outcomes.WithLabelValues(dispatch.OpAddItem, string(types.OutcomeExecuted), "")))
}

func TestProcessTurn_TextModeExtraction(t *testing.T) {
	h := newHarness(t, false, "uptown", llm.MockReply{
		Text: "Two mochas, sure!\nCALL add_item(product=\"Mocha\", quantity=2)",
	})

	res := h.turn(t, "two mochas please")

	assert.Equal(t, "Two mochas, sure!", res.AcknowledgmentText)
	assert.Empty(t, res.Diagnostics)
	lines := h.sess.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "MOCHA", lines[0].SKU)
	assert.Equal(t, 2, lines[0].Quantity)

	sent := h.provider.Prompts()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "CALL operation_name(")
	assert.Contains(t, sent[0], "two mochas please")
}

func TestProcessTurn_ConfidenceFraming(t *testing.T) {
	tests := []struct {
		name      string
		reply     string
		wantReply string
		wantLines int
		wantKind  types.ErrorKind
	}{
		{
			name:      "partial directive runs and asks for confirmation",
			reply:     `add_item(product="Latte")`,
			wantReply: "Just to check, I went ahead with: 1 x Latte. Tell me if that's not right.",
			wantLines: 1,
		},
		{
			name:      "heuristic directive is skipped and clarified",
			reply:     `add_item("Latte")`,
			wantReply: "Sorry, I didn't quite catch that. Did you want me to add Latte?",
			wantKind:  types.KindLowConfidence,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, false, "uptown", llm.MockReply{Text: tt.reply})
			res := h.turn(t, "latte")

			assert.Equal(t, tt.wantReply, res.AcknowledgmentText)
			assert.Len(t, h.sess.Lines(), tt.wantLines)
			assert.Len(t, h.ledger.Lines(), tt.wantLines)
			require.Len(t, res.Outcomes, 1)
			assert.Equal(t, tt.wantKind, res.Outcomes[0].Kind)
		})
	}
}

func TestProcessTurn_MalformedDirective(t *testing.T) {
	h := newHarness(t, false, "uptown", llm.MockReply{Text: `CALL add_item(product="Latte"`})

	res := h.turn(t, "latte")

	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, types.KindMalformedToolCall, res.Diagnostics[0].Kind)
	assert.Empty(t, res.Outcomes)
	assert.Equal(t, "Sorry, I didn't quite catch that.", res.AcknowledgmentText)
	assert.Empty(t, h.sess.Lines())
}

func TestProcessTurn_MalformedDirectiveAlwaysClarifies(t *testing.T) {
	tests := []struct {
		name      string
		reply     string
		wantAck   string
		wantLines []string
	}{
		{
			name:    "wrapped in prose",
			reply:   "Coming right up! CALL add_item(product=\"Latte\"\nAnything else?",
			wantAck: "Sorry, I didn't quite catch that.",
		},
		{
			name:      "after a valid directive",
			reply:     "CALL add_item(product=\"Mocha\")\nCALL add_item(product=\"Latte\"",
			wantAck:   "Sorry, I didn't quite catch that. I did get 1 x Mocha, but part of that was unclear. Could you repeat the rest?",
			wantLines: []string{"MOCHA"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, false, "uptown", llm.MockReply{Text: tt.reply})

			res := h.turn(t, "a mocha and a latte")

			require.Len(t, res.Diagnostics, 1)
			assert.Equal(t, types.KindMalformedToolCall, res.Diagnostics[0].Kind)
			assert.Equal(t, tt.wantAck, res.AcknowledgmentText)
			var skus []string
			for _, l := range h.sess.Lines() {
				skus = append(skus, l.SKU)
			}
			assert.Equal(t, tt.wantLines, skus)
			assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.turns.WithLabelValues("barista", TurnClarification)))
		})
	}
}

func TestProcessTurn_UnknownProduct(t *testing.T) {
	h := newHarness(t, true, "uptown", llm.MockReply{
		ToolCalls: []llm.ToolCall{call("c1", dispatch.OpAddItem, `{"product":"Pizza"}`)},
	})

	res := h.turn(t, "a pizza please")

	assert.Contains(t, res.AcknowledgmentText, "I couldn't find Pizza on our menu.")
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, types.KindUnknownProduct, res.Outcomes[0].Kind)
	assert.Empty(t, h.sess.Lines())
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.turns.WithLabelValues("barista", TurnClarification)))
}

func TestProcessTurn_WrongPhase(t *testing.T) {
	h := newHarness(t, true, "uptown", llm.MockReply{
		ToolCalls: []llm.ToolCall{call("c1", dispatch.OpProcessPayment, `{"method":"cash"}`)},
	})

	res := h.turn(t, "let me pay cash")

	assert.Contains(t, res.AcknowledgmentText, "Payment methods have not been listed yet")
	assert.Equal(t, types.PhaseOrdering, res.Phase)
	assert.False(t, res.SessionFatal)
	assert.False(t, h.sess.Fatal())
}

func TestProcessTurn_FullOrder(t *testing.T) {
	h := newHarness(t, true, "uptown",
		llm.MockReply{
			Text:      "One latte!",
			ToolCalls: []llm.ToolCall{call("c1", dispatch.OpAddItem, `{"product":"Latte"}`)},
		},
		llm.MockReply{Text: "Great, anything else?"},
		llm.MockReply{ToolCalls: []llm.ToolCall{call("c2", dispatch.OpLoadPaymentMethods, `{}`)}},
		llm.MockReply{ToolCalls: []llm.ToolCall{call("c3", dispatch.OpProcessPayment, `{"method":"cash","amount":5}`)}},
	)

	res := h.turn(t, "a latte")
	assert.Equal(t, types.PhaseOrdering, res.Phase)

	res = h.turn(t, "that's all")
	assert.Equal(t, types.PhaseCompletionPending, res.Phase)

	res = h.turn(t, "how can I pay?")
	assert.Equal(t, types.PhaseAwaitingPayment, res.Phase)
	assert.Equal(t, "Your total is 4.50 USD. How would you like to pay today? We take Cash, Credit Card.", res.AcknowledgmentText)

	res = h.turn(t, "cash, here's a five")
	assert.Equal(t, types.PhaseClosed, res.Phase)
	assert.Equal(t, "Thanks! Paid 5.00 USD, your change is 0.50. Enjoy!", res.AcknowledgmentText)
	require.Len(t, res.Outcomes, 1)
	require.NotNil(t, res.Outcomes[0].Receipt)
	assert.Equal(t, "cash", res.Outcomes[0].Receipt.MethodID)

	assert.Equal(t, 4, h.provider.Calls())
	assert.Len(t, h.sess.History(), 4)
}

func TestProcessTurn_ProviderTimeouts(t *testing.T) {
	h := newHarness(t, true, "uptown", llm.MockReply{Err: llm.ErrTimeout})

	res := h.turn(t, "a latte please")

	assert.Equal(t, unavailableReply, res.AcknowledgmentText)
	assert.True(t, res.SessionFatal)
	assert.True(t, h.sess.Fatal())
	assert.Equal(t, types.KindProviderUnavailable, h.sess.FatalKind())
	assert.Equal(t, types.PhaseGreeting, res.Phase)
	assert.Equal(t, types.PhaseGreeting, h.sess.Phase())
	assert.Empty(t, h.sess.Lines())
	assert.Empty(t, h.ledger.Lines())
	assert.Equal(t, 3, h.provider.Calls())
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, types.KindProviderUnavailable, res.Diagnostics[0].Kind)

	// A fatal session answers without calling the model.
	res = h.turn(t, "hello?")
	assert.Equal(t, unavailableReply, res.AcknowledgmentText)
	assert.True(t, res.SessionFatal)
	assert.Equal(t, 3, h.provider.Calls())
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, types.KindProviderUnavailable, res.Diagnostics[0].Kind)
}

func TestProcessTurn_ProbeFailure(t *testing.T) {
	h := newHarness(t, true, "uptown", llm.MockReply{Text: "hi"})
	h.provider.SetPingError(errors.New("connection refused"))

	res := h.turn(t, "a latte")

	assert.Equal(t, unavailableReply, res.AcknowledgmentText)
	assert.False(t, res.SessionFatal)
	assert.False(t, h.sess.Fatal())
	assert.Equal(t, types.PhaseGreeting, h.sess.Phase())
	assert.Equal(t, 0, h.provider.Calls())

	h.provider.SetPingError(nil)
	res = h.turn(t, "a latte")
	assert.Equal(t, "hi", res.AcknowledgmentText)
	assert.Equal(t, types.PhaseOrdering, res.Phase)
}

func TestProcessTurn_ConfigurationMissing(t *testing.T) {
	h := newHarness(t, true, "empty", llm.MockReply{
		ToolCalls: []llm.ToolCall{call("c1", dispatch.OpLoadPaymentMethods, `{}`)},
	})
	h.sess.SetPhase(types.PhaseCompletionPending)

	res := h.turn(t, "how do I pay")

	assert.True(t, res.SessionFatal)
	assert.True(t, h.sess.Fatal())
	assert.Equal(t, types.KindConfigurationMissing, h.sess.FatalKind())
	assert.Equal(t, unavailableReply, res.AcknowledgmentText)
	assert.Equal(t, types.PhaseCompletionPending, res.Phase)

	res = h.turn(t, "cash then")
	assert.True(t, res.SessionFatal)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, types.KindConfigurationMissing, res.Diagnostics[0].Kind)
}

func TestProcessTurn_CancelledLeavesSessionUntouched(t *testing.T) {
	h := newHarness(t, true, "uptown", llm.MockReply{Block: true})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res, err := h.engine.ProcessTurn(ctx, h.sess, "a latte")

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Nil(t, res)
	assert.Equal(t, types.PhaseGreeting, h.sess.Phase())
	assert.Empty(t, h.sess.History())
	assert.Empty(t, h.sess.Lines())
	assert.False(t, h.sess.Fatal())
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.turns.WithLabelValues("barista", TurnCancelled)))
}

func TestProcessTurn_UnknownPersona(t *testing.T) {
	h := newHarness(t, true, "uptown")
	sess := session.New(session.Config{PersonaKey: "nobody", StoreID: "uptown", Ledger: h.ledger})

	_, err := h.engine.ProcessTurn(context.Background(), sess, "hi")
	require.Error(t, err)
	assert.True(t, errors.Is(err, persona.ErrNotFound))
}

func TestSentence(t *testing.T) {
	tests := map[string]string{
		"":                     "",
		"  the order is empty": "The order is empty.",
		"already done.":        "Already done.",
		"really?":              "Really?",
	}
	for in, want := range tests {
		assert.Equal(t, want, sentence(in), in)
	}
}

func TestJoinOr(t *testing.T) {
	assert.Equal(t, "", joinOr(nil))
	assert.Equal(t, "Latte", joinOr([]string{"Latte"}))
	assert.Equal(t, "Latte or Mocha", joinOr([]string{"Latte", "Mocha"}))
	assert.Equal(t, "Latte, Mocha or Iced Latte", joinOr([]string{"Latte", "Mocha", "Iced Latte"}))
}
