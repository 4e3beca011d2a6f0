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
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/teradata-labs/loom-pos/pkg/dispatch"
	"github.com/teradata-labs/loom-pos/pkg/persona"
	"github.com/teradata-labs/loom-pos/pkg/session"
	"github.com/teradata-labs/loom-pos/pkg/types"
)

// ackInput is everything the acknowledgement is composed from.
type ackInput struct {
	tpl         *persona.Template
	sess        *session.Context
	result      *dispatch.Result
	invocations map[string]types.ToolInvocation
	diagnostics []types.Diagnostic
	prose       string
}

// acknowledge picks the reply for a turn. Precedence: a session-fatal
// failure, then a clarification, then confirmation framing, then the
// model's own prose, then a reply templated from what executed. A
// malformed directive always asks for clarification, even when the model
// wrapped it in prose or other directives ran.
func acknowledge(in ackInput) (string, string) {
	vars := replyVars(in.tpl, in.sess)

	if _, fatal := in.result.Fatal(); fatal {
		return in.tpl.Reply(persona.ReplyUnavailable, vars), TurnFatal
	}

	for _, o := range in.result.Outcomes {
		if o.Succeeded() {
			continue
		}
		return clarify(in, o, vars), TurnClarification
	}
	if hasMalformed(in.diagnostics) || (len(in.result.Outcomes) == 0 && len(in.diagnostics) > 0 && in.prose == "") {
		vars["details"] = partialDetails(in)
		return in.tpl.Reply(persona.ReplyClarify, vars), TurnClarification
	}

	var confirm []string
	for _, o := range in.result.Outcomes {
		if o.Confirm {
			confirm = append(confirm, describe(o, in.invocations[o.InvocationID]))
		}
	}
	if len(confirm) > 0 {
		vars["summary"] = strings.Join(confirm, "; ")
		return in.tpl.Reply(persona.ReplyConfirm, vars), TurnCompleted
	}

	if prose := strings.TrimSpace(in.prose); prose != "" {
		return prose, TurnCompleted
	}
	return templated(in, vars), TurnCompleted
}

// replyVars supplies every placeholder the reply set uses so no template is
// left with a raw placeholder.
func replyVars(tpl *persona.Template, sess *session.Context) map[string]interface{} {
	methods := sess.PaymentMethods()
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = m.DisplayName
	}
	return map[string]interface{}{
		"summary":      "",
		"details":      "",
		"product":      "",
		"alternatives": "",
		"total":        sess.Totals().Format(),
		"currency":     sess.Currency(),
		"prompt":       tpl.PaymentPrompt(tpl.Locale),
		"methods":      strings.Join(names, ", "),
		"tendered":     "",
		"change":       "",
	}
}

func clarify(in ackInput, o types.DispatchOutcome, vars map[string]interface{}) string {
	inv := in.invocations[o.InvocationID]
	switch o.Kind {
	case types.KindUnknownProduct:
		product := ""
		if v, ok := inv.Argument("product"); ok {
			product, _ = v.(string)
		}
		if product == "" {
			product = "that"
		}
		vars["product"] = product
		if len(o.Alternatives) > 0 {
			vars["alternatives"] = "We have " + joinOr(o.Alternatives) + "."
		}
		return in.tpl.Reply(persona.ReplyUnknownItem, vars)
	case types.KindInvalidPhaseTransition:
		vars["details"] = sentence(o.Message)
		return in.tpl.Reply(persona.ReplyWrongPhase, vars)
	case types.KindLowConfidence:
		vars["details"] = "Did you want me to " + describeAction(o, inv) + "?"
		return in.tpl.Reply(persona.ReplyClarify, vars)
	default:
		details := o.Message
		if len(o.Alternatives) > 0 {
			details += ". Options: " + strings.Join(o.Alternatives, ", ")
		}
		vars["details"] = sentence(details)
		return in.tpl.Reply(persona.ReplyClarify, vars)
	}
}

func hasMalformed(diags []types.Diagnostic) bool {
	for _, d := range diags {
		if d.Kind == types.KindMalformedToolCall {
			return true
		}
	}
	return false
}

// partialDetails names what did go through so the customer only repeats
// the part that was lost.
func partialDetails(in ackInput) string {
	var done []string
	for _, o := range in.result.Executed() {
		done = append(done, describe(o, in.invocations[o.InvocationID]))
	}
	if len(done) == 0 {
		return ""
	}
	return "I did get " + strings.Join(done, "; ") + ", but part of that was unclear. Could you repeat the rest?"
}

func templated(in ackInput, vars map[string]interface{}) string {
	var (
		receipt      *types.Receipt
		methods      bool
		totalChanged bool
	)
	for _, o := range in.result.Executed() {
		switch {
		case o.Receipt != nil:
			receipt = o.Receipt
		case o.Operation == dispatch.OpLoadPaymentMethods:
			methods = true
		case o.Totals != nil || o.Line != nil:
			totalChanged = true
		}
	}
	places := in.sess.CurrencyPlaces()
	switch {
	case receipt != nil:
		vars["tendered"] = types.FormatAmount(receipt.Tendered, places)
		vars["change"] = types.FormatAmount(receipt.Change, places)
		vars["total"] = types.FormatAmount(receipt.Total, places)
		return in.tpl.Reply(persona.ReplyPaid, vars)
	case methods:
		return in.tpl.Reply(persona.ReplyPaymentPrompt, vars)
	case totalChanged:
		return in.tpl.Reply(persona.ReplyTotal, vars)
	default:
		return in.tpl.Reply(persona.ReplyFallback, vars)
	}
}

// describe renders an executed outcome for confirmation.
func describe(o types.DispatchOutcome, inv types.ToolInvocation) string {
	if o.Line != nil {
		s := fmt.Sprintf("%d x %s", o.Line.Quantity, o.Line.DisplayName)
		if o.Line.Notes != "" {
			s += " (" + o.Line.Notes + ")"
		}
		if o.Operation == dispatch.OpRemoveItem {
			return "removed " + s
		}
		return s
	}
	return describeAction(o, inv)
}

func describeAction(o types.DispatchOutcome, inv types.ToolInvocation) string {
	verb := strings.ReplaceAll(o.Operation, "_", " ")
	if v, ok := inv.Argument("product"); ok {
		if product, _ := v.(string); product != "" {
			verb = strings.Replace(verb, "item", product, 1)
		}
	}
	return verb
}

func joinOr(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " or " + items[len(items)-1]
	}
}

// sentence capitalises a message and ends it with a full stop.
func sentence(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(s)
	s = string(unicode.ToUpper(r)) + s[size:]
	if !strings.HasSuffix(s, ".") && !strings.HasSuffix(s, "?") && !strings.HasSuffix(s, "!") {
		s += "."
	}
	return s
}
