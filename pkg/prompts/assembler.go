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

// Package prompts assembles the per-turn prompt sent to the model.
package prompts

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/teradata-labs/loom-pos/pkg/persona"
	"github.com/teradata-labs/loom-pos/pkg/session"
	"github.com/teradata-labs/loom-pos/pkg/types"
)

// Config configures an Assembler.
type Config struct {
	// MaxExchanges caps the rendered history. Zero renders the whole
	// session window.
	MaxExchanges int
}

// Assembler builds prompts as a dynamic header followed by the cached
// static persona body.
//
// The header is rebuilt from the session's bounded structures on every
// turn, so assembly cost does not grow with conversation length.
type Assembler struct {
	personas *persona.Cache
	config   Config
}

// NewAssembler creates an assembler reading persona bodies from cache.
func NewAssembler(personas *persona.Cache, config Config) *Assembler {
	return &Assembler{personas: personas, config: config}
}

// Build returns the prompt for one turn.
func (a *Assembler) Build(ctx context.Context, personaKey string, sess *session.Context, utterance string) (string, error) {
	ordering, err := a.personas.Body(ctx, personaKey, persona.KindOrdering)
	if err != nil {
		return "", fmt.Errorf("failed to load persona body: %w", err)
	}
	// Greeting and acknowledgment bodies are optional.
	var greeting, ack string
	if sess.Phase() == types.PhaseGreeting {
		greeting, _ = a.personas.Body(ctx, personaKey, persona.KindGreeting)
	}
	ack, _ = a.personas.Body(ctx, personaKey, persona.KindAcknowledgment)

	history := sess.History()
	if n := a.config.MaxExchanges; n > 0 && len(history) > n {
		history = history[len(history)-n:]
	}
	lines := sess.Lines()
	methods := sess.PaymentMethods()

	var b strings.Builder
	b.Grow(estimateSize(history, lines, utterance, ordering, greeting, ack))

	b.WriteString("## Conversation\n")
	if len(history) == 0 {
		b.WriteString("(new customer)\n")
	}
	for _, turn := range history {
		b.WriteString("Customer: ")
		b.WriteString(oneLine(turn.Customer))
		b.WriteString("\nAssistant: ")
		b.WriteString(oneLine(turn.Assistant))
		b.WriteByte('\n')
	}

	b.WriteString("\n## Cart\n")
	if len(lines) == 0 {
		b.WriteString("(empty)\n")
	}
	for _, line := range lines {
		writeCartLine(&b, line)
	}

	totals := sess.Totals()
	b.WriteString("\n## Total\n")
	b.WriteString(totals.Format())
	b.WriteByte(' ')
	b.WriteString(sess.Currency())
	b.WriteString("\nCurrency: ")
	b.WriteString(sess.Currency())
	b.WriteString("\nPhase: ")
	b.WriteString(string(sess.Phase()))
	b.WriteByte('\n')

	if sess.PaymentMethodsLoaded() {
		b.WriteString("Payment methods: ")
		for i, m := range methods {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(m.DisplayName)
			b.WriteString(" [")
			b.WriteString(m.ID)
			b.WriteByte(']')
		}
		b.WriteByte('\n')
	}

	b.WriteString("\n## Customer says\n")
	b.WriteString(oneLine(utterance))
	b.WriteString("\n\n---\n")

	b.WriteString(ordering)
	if greeting != "" {
		b.WriteString("\n\nGreeting to use for a new customer: ")
		b.WriteString(greeting)
	}
	if ack != "" {
		b.WriteString("\n\n")
		b.WriteString(ack)
	}
	b.WriteByte('\n')
	return b.String(), nil
}

// writeCartLine renders "SKU xQty (notes)".
func writeCartLine(b *strings.Builder, line types.CartLine) {
	b.WriteString(line.SKU)
	b.WriteString(" x")
	b.WriteString(strconv.Itoa(line.Quantity))
	if line.Notes != "" {
		b.WriteString(" (")
		b.WriteString(oneLine(line.Notes))
		b.WriteByte(')')
	}
	b.WriteByte('\n')
}

func oneLine(s string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return s
	}
	return strings.Join(strings.Fields(s), " ")
}

func estimateSize(history []types.ConversationTurn, lines []types.CartLine, parts ...string) int {
	n := 256
	for _, t := range history {
		n += len(t.Customer) + len(t.Assistant) + 24
	}
	n += len(lines) * 48
	for _, p := range parts {
		n += len(p)
	}
	return n
}
