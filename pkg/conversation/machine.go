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

// Package conversation tracks where a customer is in the ordering flow.
//
//	greeting -> ordering <-> completion_pending -> awaiting_payment -> closed
//
// Any phase returns to ordering on new_transaction. Phase changes are driven
// by utterance signals at the start of a turn and by the events of executed
// operations at the end of it.
package conversation

import (
	"context"
	"errors"

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/teradata-labs/loom-pos/pkg/session"
	"github.com/teradata-labs/loom-pos/pkg/types"
)

const (
	EventStartOrdering    = "start_ordering"
	EventOrderComplete    = "order_complete"
	EventContinueOrdering = "continue_ordering"
	EventMethodsLoaded    = "methods_loaded"
	EventPaymentProcessed = "payment_processed"
	EventNewTransaction   = "new_transaction"
)

var allPhases = []string{
	string(types.PhaseGreeting),
	string(types.PhaseOrdering),
	string(types.PhaseCompletionPending),
	string(types.PhaseAwaitingPayment),
	string(types.PhaseClosed),
}

func phaseEvents() fsm.Events {
	return fsm.Events{
		{Name: EventStartOrdering, Src: []string{string(types.PhaseGreeting)}, Dst: string(types.PhaseOrdering)},
		{Name: EventOrderComplete, Src: []string{string(types.PhaseOrdering)}, Dst: string(types.PhaseCompletionPending)},
		{Name: EventContinueOrdering, Src: []string{string(types.PhaseCompletionPending)}, Dst: string(types.PhaseOrdering)},
		{Name: EventMethodsLoaded, Src: []string{string(types.PhaseCompletionPending)}, Dst: string(types.PhaseAwaitingPayment)},
		{Name: EventPaymentProcessed, Src: []string{string(types.PhaseAwaitingPayment)}, Dst: string(types.PhaseClosed)},
		{Name: EventNewTransaction, Src: allPhases, Dst: string(types.PhaseOrdering)},
	}
}

// Next returns the phase reached by firing event from a phase. Events that
// are not legal from the phase leave it unchanged.
func Next(from types.Phase, event string) types.Phase {
	f := fsm.NewFSM(string(from), phaseEvents(), fsm.Callbacks{})
	_ = f.Event(context.Background(), event)
	return types.Phase(f.Current())
}

// Can reports whether event is legal from a phase.
func Can(from types.Phase, event string) bool {
	return fsm.NewFSM(string(from), phaseEvents(), fsm.Callbacks{}).Can(event)
}

// Machine applies phase events to sessions. It holds no per-session state;
// the current phase lives on the session.
type Machine struct {
	logger *zap.Logger
}

// NewMachine creates a Machine.
func NewMachine(logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{logger: logger}
}

// Fire applies one event to a session. It reports whether the phase
// changed; an event that is not legal from the current phase is ignored.
func (m *Machine) Fire(ctx context.Context, sess *session.Context, event string) (bool, error) {
	f := fsm.NewFSM(string(sess.Phase()), phaseEvents(), fsm.Callbacks{
		"enter_state": func(_ context.Context, e *fsm.Event) {
			m.logger.Debug("conversation phase changed",
				zap.String("session_id", sess.ID()),
				zap.String("event", e.Event),
				zap.String("from", e.Src),
				zap.String("to", e.Dst))
		},
	})
	err := f.Event(ctx, event)
	var (
		noTransition fsm.NoTransitionError
		invalid      fsm.InvalidEventError
	)
	switch {
	case err == nil:
		sess.SetPhase(types.Phase(f.Current()))
		return true, nil
	case errors.As(err, &noTransition), errors.As(err, &invalid):
		return false, nil
	default:
		return false, err
	}
}

// BeginTurn moves the session according to what the customer just said,
// before any operation of the turn runs.
func (m *Machine) BeginTurn(ctx context.Context, sess *session.Context, sig Signals) error {
	if sess.Phase() == types.PhaseGreeting {
		if _, err := m.Fire(ctx, sess, EventStartOrdering); err != nil {
			return err
		}
	}

	switch sess.Phase() {
	case types.PhaseOrdering:
		if sig.Finality || (sig.Completion && !sig.NewItemMention) {
			_, err := m.Fire(ctx, sess, EventOrderComplete)
			return err
		}
	case types.PhaseCompletionPending:
		if sig.NewItemMention {
			_, err := m.Fire(ctx, sess, EventContinueOrdering)
			return err
		}
	}
	return nil
}

// Restore puts the session back to a phase it held earlier in the same
// turn. Used when a turn is abandoned after BeginTurn moved it.
func (m *Machine) Restore(sess *session.Context, phase types.Phase) {
	if sess.Phase() == phase {
		return
	}
	m.logger.Debug("conversation phase restored",
		zap.String("session_id", sess.ID()),
		zap.String("from", string(sess.Phase())),
		zap.String("to", string(phase)))
	sess.SetPhase(phase)
}

// Apply fires the events of the executed outcomes in order and returns the
// resulting phase.
func (m *Machine) Apply(ctx context.Context, sess *session.Context, outcomes []types.DispatchOutcome) (types.Phase, error) {
	for _, o := range outcomes {
		if !o.Succeeded() || o.Event == "" {
			continue
		}
		if _, err := m.Fire(ctx, sess, o.Event); err != nil {
			return sess.Phase(), err
		}
	}
	return sess.Phase(), nil
}
