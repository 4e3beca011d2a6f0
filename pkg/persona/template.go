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

// Package persona loads persona templates and caches them for the lifetime
// of the process.
//
// A persona is a named bundle of prompt bodies, tone and locale-tagged phrase
// sets. Adding a locale means adding phrases to a persona file; nothing in
// the state machine changes.
package persona

import (
	"fmt"
	"sort"
	"strings"
)

// Kind selects one of the static prompt bodies of a persona.
type Kind string

const (
	KindOrdering       Kind = "ordering"
	KindGreeting       Kind = "greeting"
	KindAcknowledgment Kind = "acknowledgment"
)

// Reply names used by the engine when composing acknowledgements.
const (
	ReplyUnavailable   = "unavailable"
	ReplyFallback      = "fallback"
	ReplyConfirm       = "confirm"
	ReplyClarify       = "clarify"
	ReplyUnknownItem   = "unknown_product"
	ReplyWrongPhase    = "wrong_phase"
	ReplyPaymentPrompt = "payment_prompt"
	ReplyPaid          = "paid"
	ReplyTotal         = "total"
)

// MatchMode controls how a phrase rule is compared with an utterance.
type MatchMode string

const (
	// MatchSubstring matches the phrase anywhere on word boundaries
	MatchSubstring MatchMode = "substring"

	// MatchExact matches only when the whole utterance is the phrase
	MatchExact MatchMode = "exact"
)

// PhraseRule is a locale-tagged, case-insensitive phrase.
type PhraseRule struct {
	Locale string    `yaml:"locale"`
	Phrase string    `yaml:"phrase"`
	Match  MatchMode `yaml:"match"`
}

// CompletionSignal is the rule set that detects "customer is finished
// ordering".
type CompletionSignal []PhraseRule

// Template is an immutable persona. Values handed out by the cache are
// shared across sessions and must not be modified.
type Template struct {
	Key             string
	Locale          string
	Version         string
	Description     string
	ContractVersion string

	CompletionSignals     CompletionSignal
	FinalityPhrases       []PhraseRule
	ContinuationMarkers   []PhraseRule
	NewTransactionPhrases []PhraseRule
	PaymentPrompts        []PhraseRule

	// Modifiers is the preparation vocabulary (sizes, milks, sweetness)
	// that must never be part of a catalog search term.
	Modifiers []string

	replies map[string]string
	bodies  map[Kind]string
}

// Body returns the static body for a kind.
func (t *Template) Body(kind Kind) (string, bool) {
	b, ok := t.bodies[kind]
	return b, ok
}

// Kinds lists the kinds this persona defines.
func (t *Template) Kinds() []Kind {
	kinds := make([]Kind, 0, len(t.bodies))
	for k := range t.bodies {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Reply renders a named reply with the given values. Unknown names fall
// back to the fallback reply, then to a neutral default.
func (t *Template) Reply(name string, vars map[string]interface{}) string {
	tpl, ok := t.replies[name]
	if !ok {
		tpl, ok = t.replies[ReplyFallback]
	}
	if !ok {
		return defaultReply(name)
	}
	return strings.TrimSpace(Interpolate(tpl, vars))
}

// HasReply reports whether the persona defines a reply.
func (t *Template) HasReply(name string) bool {
	_, ok := t.replies[name]
	return ok
}

// PaymentPrompt returns the payment prompt for a locale, falling back to the
// persona's primary locale and then to the first prompt.
func (t *Template) PaymentPrompt(locale string) string {
	if len(t.PaymentPrompts) == 0 {
		return ""
	}
	for _, want := range []string{locale, t.Locale} {
		for _, p := range t.PaymentPrompts {
			if p.Locale == want {
				return p.Phrase
			}
		}
	}
	return t.PaymentPrompts[0].Phrase
}

func defaultReply(name string) string {
	switch name {
	case ReplyUnavailable:
		return "Sorry, I can't take orders right now. Please wait a moment."
	default:
		return "Okay."
	}
}

func (t *Template) validate() error {
	if t.Key == "" {
		return fmt.Errorf("persona key is required")
	}
	if body, ok := t.bodies[KindOrdering]; !ok || body == "" {
		return fmt.Errorf("persona %s: ordering body is empty", t.Key)
	}
	if len(t.CompletionSignals) == 0 {
		return fmt.Errorf("persona %s: at least one completion signal is required", t.Key)
	}
	lists := map[string][]PhraseRule{
		"completion_signals":      t.CompletionSignals,
		"finality_phrases":        t.FinalityPhrases,
		"continuation_markers":    t.ContinuationMarkers,
		"new_transaction_phrases": t.NewTransactionPhrases,
		"payment_prompts":         t.PaymentPrompts,
	}
	for name, rules := range lists {
		for i, r := range rules {
			if r.Phrase == "" {
				return fmt.Errorf("persona %s: %s[%d] has an empty phrase", t.Key, name, i)
			}
			switch r.Match {
			case MatchSubstring, MatchExact:
			default:
				return fmt.Errorf("persona %s: %s[%d] has unknown match mode %q", t.Key, name, i, r.Match)
			}
		}
	}
	return nil
}
