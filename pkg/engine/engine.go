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

// Package engine runs conversation turns: prompt assembly, the model call,
// command recovery, dispatch and the phase machine, ending in an
// acknowledgement for the customer.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/loom-pos/pkg/conversation"
	"github.com/teradata-labs/loom-pos/pkg/dispatch"
	"github.com/teradata-labs/loom-pos/pkg/extract"
	"github.com/teradata-labs/loom-pos/pkg/llm"
	"github.com/teradata-labs/loom-pos/pkg/persona"
	"github.com/teradata-labs/loom-pos/pkg/prompts"
	"github.com/teradata-labs/loom-pos/pkg/session"
	"github.com/teradata-labs/loom-pos/pkg/types"
)

// Config wires an Engine.
type Config struct {
	Personas   *persona.Cache
	Assembler  *prompts.Assembler
	Gateway    llm.Gateway
	Dispatcher *dispatch.Dispatcher

	// Extractor recovers commands from prose. Required when the gateway
	// backend has no native tool calls.
	Extractor *extract.Extractor

	// Machine defaults to a new conversation.Machine
	Machine *conversation.Machine

	// Metrics is optional
	Metrics *Metrics

	Logger *zap.Logger
}

// Engine processes turns. It keeps no per-session state and is safe for
// concurrent use on different sessions.
type Engine struct {
	personas   *persona.Cache
	assembler  *prompts.Assembler
	gateway    llm.Gateway
	dispatcher *dispatch.Dispatcher
	extractor  *extract.Extractor
	machine    *conversation.Machine
	metrics    *Metrics
	logger     *zap.Logger

	native  bool
	schemas []types.ToolSchema

	// personas whose directive contract mismatch has been reported
	warned sync.Map
}

// New validates the wiring and creates an Engine.
func New(cfg Config) (*Engine, error) {
	switch {
	case cfg.Personas == nil:
		return nil, fmt.Errorf("persona cache is required")
	case cfg.Assembler == nil:
		return nil, fmt.Errorf("prompt assembler is required")
	case cfg.Gateway == nil:
		return nil, fmt.Errorf("model gateway is required")
	case cfg.Dispatcher == nil:
		return nil, fmt.Errorf("dispatcher is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Machine == nil {
		cfg.Machine = conversation.NewMachine(cfg.Logger)
	}
	info := cfg.Gateway.ProviderInfo()
	if !info.SupportsNativeTools && cfg.Extractor == nil {
		return nil, fmt.Errorf("provider %s has no native tool calls and no extractor was configured", info.Name)
	}
	return &Engine{
		personas:   cfg.Personas,
		assembler:  cfg.Assembler,
		gateway:    cfg.Gateway,
		dispatcher: cfg.Dispatcher,
		extractor:  cfg.Extractor,
		machine:    cfg.Machine,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		native:     info.SupportsNativeTools,
		schemas:    dispatch.Schemas(),
	}, nil
}

// ProcessTurn runs one customer utterance through the session.
//
// The returned error is reserved for cancellation and wiring faults (an
// unknown persona, a broken state machine). Every customer-correctable
// failure, and an unavailable model, produces a TurnResult instead. When
// the error is the context's, the session is exactly as it was.
func (e *Engine) ProcessTurn(ctx context.Context, sess *session.Context, utterance string) (*types.TurnResult, error) {
	start := time.Now()
	key := sess.PersonaKey()
	ctx = session.WithPersona(session.WithSessionID(ctx, sess.ID()), key)

	tpl, err := e.personas.Get(ctx, key)
	if err != nil {
		e.metrics.observeTurn(key, TurnError, start)
		return nil, fmt.Errorf("failed to load persona %s: %w", key, err)
	}
	e.checkContract(tpl)

	res := &types.TurnResult{SessionID: sess.ID(), Phase: sess.Phase()}
	if sess.Fatal() {
		res.AcknowledgmentText = tpl.Reply(persona.ReplyUnavailable, replyVars(tpl, sess))
		res.SessionFatal = true
		res.Diagnostics = append(res.Diagnostics, types.Diagnostic{
			Kind:   sess.FatalKind(),
			Reason: "session ended by an earlier turn",
		})
		e.metrics.observeTurn(key, TurnFatal, start)
		return res, nil
	}

	if !e.gateway.IsAvailable(ctx) {
		if err := ctx.Err(); err != nil {
			e.metrics.observeTurn(key, TurnCancelled, start)
			return nil, err
		}
		e.unavailable(sess, tpl, utterance, res, fmt.Errorf("%w: health probe failed", types.ErrProviderUnavailable), false)
		e.metrics.observeTurn(key, TurnUnavailable, start)
		return res, nil
	}

	prompt, err := e.assembler.Build(ctx, key, sess, utterance)
	if err != nil {
		e.metrics.observeTurn(key, TurnError, start)
		return nil, err
	}

	gen, err := e.gateway.GenerateWithTools(ctx, prompt, e.schemas)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			e.metrics.observeTurn(key, TurnCancelled, start)
			return nil, ctxErr
		}
		if !errors.Is(err, types.ErrProviderUnavailable) {
			e.metrics.observeTurn(key, TurnError, start)
			return nil, err
		}
		e.unavailable(sess, tpl, utterance, res, err, true)
		e.metrics.observeTurn(key, TurnFatal, start)
		return res, nil
	}

	invocations, prose := gen.Invocations, gen.Text
	if !e.native && len(invocations) == 0 {
		extracted := e.extractor.Extract(gen.Text)
		invocations, prose = extracted.Invocations, extracted.Prose
		res.Diagnostics = extracted.Diagnostics
		for _, d := range extracted.Diagnostics {
			e.logger.Debug("dropped malformed directive",
				zap.String("session_id", sess.ID()),
				zap.String("fragment", d.Fragment),
				zap.String("reason", d.Reason))
		}
	}

	if err := ctx.Err(); err != nil {
		e.metrics.observeTurn(key, TurnCancelled, start)
		return nil, err
	}

	sig := conversation.Detect(tpl, utterance)
	before := sess.Phase()
	if err := e.machine.BeginTurn(ctx, sess, sig); err != nil {
		e.machine.Restore(sess, before)
		e.metrics.observeTurn(key, TurnError, start)
		return nil, fmt.Errorf("failed to advance conversation: %w", err)
	}

	dres, err := e.dispatcher.Dispatch(ctx, sess, invocations, dispatch.Turn{
		NewTransaction: sig.NewTransaction,
		Vocabulary:     tpl.Modifiers,
		Mentioned:      sig.Modifiers,
	})
	if err != nil {
		e.machine.Restore(sess, before)
		if ctx.Err() != nil {
			e.metrics.observeTurn(key, TurnCancelled, start)
		} else {
			e.metrics.observeTurn(key, TurnError, start)
		}
		return nil, err
	}
	e.metrics.observeOutcomes(dres.Outcomes)

	// The batch has committed; the phase must follow it.
	if _, err := e.machine.Apply(context.WithoutCancel(ctx), sess, dres.Outcomes); err != nil {
		e.metrics.observeTurn(key, TurnError, start)
		return nil, fmt.Errorf("failed to apply outcomes: %w", err)
	}

	if kind, fatal := dres.Fatal(); fatal {
		sess.MarkFatal(kind)
		res.SessionFatal = true
		e.logger.Error("session ended",
			zap.String("session_id", sess.ID()),
			zap.String("kind", string(kind)))
	}

	byID := make(map[string]types.ToolInvocation, len(invocations))
	for _, inv := range invocations {
		byID[inv.ID] = inv
	}
	ack, outcome := acknowledge(ackInput{
		tpl:         tpl,
		sess:        sess,
		result:      dres,
		invocations: byID,
		diagnostics: res.Diagnostics,
		prose:       prose,
	})

	sess.RecordTurn(utterance, ack)
	res.AcknowledgmentText = ack
	res.Phase = sess.Phase()
	res.Outcomes = dres.Outcomes

	e.logger.Debug("turn processed",
		zap.String("session_id", sess.ID()),
		zap.String("persona", key),
		zap.String("phase", string(res.Phase)),
		zap.Int("invocations", len(invocations)),
		zap.String("dispatch", string(dres.Status())),
		zap.Duration("elapsed", time.Since(start)))
	e.metrics.observePhase(res.Phase)
	e.metrics.observeTurn(key, outcome, start)
	return res, nil
}

// unavailable turns a model outage into an apology. The phase and cart are
// left alone. An outage that outlasted the retry budget ends the session.
func (e *Engine) unavailable(sess *session.Context, tpl *persona.Template, utterance string, res *types.TurnResult, cause error, fatal bool) {
	ack := tpl.Reply(persona.ReplyUnavailable, replyVars(tpl, sess))
	res.AcknowledgmentText = ack
	res.Diagnostics = append(res.Diagnostics, types.Diagnostic{
		Kind:   types.KindProviderUnavailable,
		Reason: cause.Error(),
	})
	if fatal {
		sess.MarkFatal(types.KindProviderUnavailable)
		res.SessionFatal = true
	}
	sess.RecordTurn(utterance, ack)
	e.logger.Warn("model unavailable",
		zap.String("session_id", sess.ID()),
		zap.String("provider", e.gateway.ProviderInfo().Name),
		zap.Bool("session_fatal", fatal),
		zap.Error(cause))
}

// checkContract warns once per persona when a text-mode persona teaches a
// directive contract the extractor does not parse.
func (e *Engine) checkContract(tpl *persona.Template) {
	if e.native || tpl.ContractVersion == extract.ContractVersion {
		return
	}
	if _, seen := e.warned.LoadOrStore(tpl.Key, true); seen {
		return
	}
	e.logger.Warn("persona directive contract does not match extractor",
		zap.String("persona", tpl.Key),
		zap.String("persona_contract", tpl.ContractVersion),
		zap.String("extractor_contract", extract.ContractVersion))
}
