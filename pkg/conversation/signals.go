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
package conversation

import (
	"github.com/teradata-labs/loom-pos/pkg/persona"
)

// Signals are the phase cues found in one utterance.
type Signals struct {
	// Completion is set when a completion phrase was found
	Completion bool

	// Finality is set for wording that closes the order outright
	Finality bool

	// NewItemMention is set when a continuation marker follows the
	// completion phrase ("that's all, oh and a muffin")
	NewItemMention bool

	// NewTransaction is set when the customer asked for a fresh order
	NewTransaction bool

	// Phrase is the completion phrase that matched
	Phrase string

	// Modifiers lists the persona's preparation terms found in the utterance
	Modifiers []string
}

// Detect scans an utterance for the persona's phase cues.
func Detect(tpl *persona.Template, utterance string) Signals {
	var sig Signals
	if tpl == nil {
		return sig
	}
	normalized := persona.Normalize(utterance)

	rule, at, ok := persona.FirstMatch(tpl.CompletionSignals, normalized)
	if ok {
		sig.Completion = true
		sig.Phrase = rule.Phrase
		sig.NewItemMention = persona.LastMatch(tpl.ContinuationMarkers, normalized) > at
	} else {
		// without a completion phrase a continuation marker just means more ordering
		sig.NewItemMention = persona.LastMatch(tpl.ContinuationMarkers, normalized) >= 0
	}

	_, _, sig.Finality = persona.FirstMatch(tpl.FinalityPhrases, normalized)
	_, _, sig.NewTransaction = persona.FirstMatch(tpl.NewTransactionPhrases, normalized)

	for _, m := range tpl.Modifiers {
		if persona.ContainsTerm(normalized, m) {
			sig.Modifiers = append(sig.Modifiers, m)
		}
	}
	return sig
}
