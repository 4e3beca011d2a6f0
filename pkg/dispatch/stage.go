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
	"fmt"
	"sort"
	"strings"

	"github.com/teradata-labs/loom-pos/pkg/conversation"
	"github.com/teradata-labs/loom-pos/pkg/persona"
	"github.com/teradata-labs/loom-pos/pkg/session"
	"github.com/teradata-labs/loom-pos/pkg/types"
)

// slot is a cart line as seen while a batch is planned. Lines added in the
// same batch get their id when the add commits.
type slot struct {
	line    types.CartLine
	removed bool
	failed  bool
}

// stage is a scratch copy of the session a batch is validated against.
// Nothing on the real session changes until the batch commits.
type stage struct {
	phase         types.Phase
	slots         []*slot
	methods       []types.PaymentMethodDescriptor
	methodsLoaded bool
}

func newStage(sess *session.Context) *stage {
	st := &stage{
		phase:         sess.Phase(),
		methods:       sess.PaymentMethods(),
		methodsLoaded: sess.PaymentMethodsLoaded(),
	}
	for _, l := range sess.Lines() {
		st.slots = append(st.slots, &slot{line: l})
	}
	return st
}

func (st *stage) raise(event string) {
	if event != "" {
		st.phase = conversation.Next(st.phase, event)
	}
}

func (st *stage) reset() {
	st.slots = nil
	st.methods = nil
	st.methodsLoaded = false
	st.raise(conversation.EventNewTransaction)
}

func (st *stage) empty() bool {
	for _, s := range st.slots {
		if !s.removed {
			return false
		}
	}
	return true
}

// splitModifiers removes preparation vocabulary from a product reference and
// returns the remaining base name (normalized) and the terms found.
func splitModifiers(term string, vocabulary []string) (string, []string) {
	normalized := persona.Normalize(term)
	sorted := append([]string(nil), vocabulary...)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	var found []string
	for _, m := range sorted {
		phrase := persona.Normalize(m)
		rule := persona.PhraseRule{Phrase: m, Match: persona.MatchSubstring}
		hit := false
		for {
			at := rule.Index(normalized)
			if at < 0 {
				break
			}
			hit = true
			normalized = normalized[:at] + " " + normalized[at+len(phrase):]
		}
		if hit {
			found = append(found, m)
		}
	}
	return strings.Join(strings.Fields(normalized), " "), found
}

func singular(term string) string {
	if len(term) > 3 && strings.HasSuffix(term, "s") && !strings.HasSuffix(term, "ss") {
		return term[:len(term)-1]
	}
	return term
}

// sameProduct reports whether a customer's wording names a product.
func sameProduct(displayName, sku, term string) bool {
	if term == "" {
		return false
	}
	name := persona.Normalize(displayName)
	t := persona.Normalize(term)
	return name == t || name == singular(t) || strings.EqualFold(sku, term)
}

// resolveProduct maps a search term to exactly one active catalog entry.
// A term naming an active product exactly is accepted even when it contains
// preparation vocabulary ("Iced Latte"). Any other term carrying vocabulary
// is refused as compound.
func (d *Dispatcher) resolveProduct(ctx context.Context, op, term string, vocabulary []string) (types.ProductInfo, []string, *types.DispatchError) {
	term = strings.TrimSpace(term)
	base, mods := splitModifiers(term, vocabulary)

	results, err := d.catalog.Search(ctx, term, d.maxResults)
	if err != nil {
		if len(mods) > 0 {
			return types.ProductInfo{}, nil, compoundTerm(op, term, base, mods)
		}
		return types.ProductInfo{}, nil, types.NewDispatchError(types.KindCollaboratorFailure, op,
			"the menu could not be searched").WithCause(err)
	}

	active := activeProducts(results)
	for _, p := range active {
		if sameProduct(p.DisplayName, p.SKU, term) {
			return p, nil, nil
		}
	}

	if len(mods) > 0 {
		candidates := active
		if base != "" {
			if more, err := d.catalog.Search(ctx, base, d.maxResults); err == nil {
				candidates = append(candidates, activeProducts(more)...)
			}
		}
		if name, named, ok := catalogBase(term, candidates, vocabulary); ok {
			base, mods = name, named
		}
		return types.ProductInfo{}, nil, compoundTerm(op, term, base, mods)
	}

	if len(active) == 1 {
		return active[0], nil, nil
	}

	names := make([]string, len(active))
	for i, p := range active {
		names[i] = p.DisplayName
	}
	if len(active) == 0 {
		return types.ProductInfo{}, nil, types.NewDispatchError(types.KindUnknownProduct, op,
			fmt.Sprintf("%q is not on the menu", term))
	}
	return types.ProductInfo{}, names, types.NewDispatchError(types.KindUnknownProduct, op,
		fmt.Sprintf("%q matches more than one product", term)).
		WithSuggestion("ask which one the customer meant")
}

func compoundTerm(op, term, base string, mods []string) *types.DispatchError {
	return types.NewDispatchError(types.KindInvalidArguments, op,
		fmt.Sprintf("compound search term %q", term)).
		WithSuggestion(fmt.Sprintf("search for %q and put %s in notes", base, strings.Join(mods, ", ")))
}

func activeProducts(results []types.ProductInfo) []types.ProductInfo {
	active := make([]types.ProductInfo, 0, len(results))
	for _, p := range results {
		if p.Active {
			active = append(active, p)
		}
	}
	return active
}

// catalogBase finds the longest product named inside term whose remaining
// words are all preparation vocabulary, so "large iced latte" splits into
// "iced latte" and "large" when the menu has an Iced Latte.
func catalogBase(term string, products []types.ProductInfo, vocabulary []string) (string, []string, bool) {
	normalized := persona.Normalize(term)
	var (
		best     string
		bestMods []string
	)
	for _, p := range products {
		name := persona.Normalize(p.DisplayName)
		if len(name) <= len(best) {
			continue
		}
		at := persona.PhraseRule{Phrase: p.DisplayName, Match: persona.MatchSubstring}.Index(normalized)
		if at < 0 {
			continue
		}
		rest, mods := splitModifiers(normalized[:at]+" "+normalized[at+len(name):], vocabulary)
		if rest != "" || len(mods) == 0 {
			continue
		}
		best, bestMods = name, mods
	}
	return best, bestMods, best != ""
}

// findLine locates the most recent live line for a line id or product
// reference. Preparation terms in the reference prefer lines whose notes
// carry them.
func (d *Dispatcher) findLine(ctx context.Context, op string, st *stage, args map[string]interface{}, vocabulary []string) (*slot, *types.DispatchError) {
	live := func(s *slot) bool { return !s.removed && !s.failed }

	if id := stringArg(args, "line_id"); id != "" {
		for i := len(st.slots) - 1; i >= 0; i-- {
			if s := st.slots[i]; live(s) && s.line.LineID == id {
				return s, nil
			}
		}
		return nil, types.NewDispatchError(types.KindInvalidArguments, op, fmt.Sprintf("no order line %s", id))
	}

	product := stringArg(args, "product")
	if product == "" {
		return nil, types.NewDispatchError(types.KindInvalidArguments, op, "product or line_id is required")
	}
	for i := len(st.slots) - 1; i >= 0; i-- {
		if s := st.slots[i]; live(s) && sameProduct(s.line.DisplayName, s.line.SKU, product) {
			return s, nil
		}
	}
	base, mods := splitModifiers(product, vocabulary)

	var fallback *slot
	for i := len(st.slots) - 1; i >= 0; i-- {
		s := st.slots[i]
		if !live(s) || !sameProduct(s.line.DisplayName, s.line.SKU, base) {
			continue
		}
		if notesCarry(s.line.Notes, mods) {
			return s, nil
		}
		if fallback == nil {
			fallback = s
		}
	}
	if fallback != nil {
		return fallback, nil
	}

	// the customer may use a different name than the catalog
	if base != "" {
		if results, err := d.catalog.Search(ctx, base, d.maxResults); err == nil {
			for _, p := range results {
				for i := len(st.slots) - 1; i >= 0; i-- {
					if s := st.slots[i]; live(s) && s.line.SKU == p.SKU {
						return s, nil
					}
				}
			}
		}
	}
	return nil, types.NewDispatchError(types.KindUnknownProduct, op, fmt.Sprintf("%q is not in the order", product))
}

func notesCarry(notes string, terms []string) bool {
	for _, t := range terms {
		if !persona.ContainsTerm(notes, t) {
			return false
		}
	}
	return true
}

// findMethod matches a method reference against a listing by id, name or
// type, then by a unique partial name.
func findMethod(methods []types.PaymentMethodDescriptor, ref string) (types.PaymentMethodDescriptor, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return types.PaymentMethodDescriptor{}, false
	}
	for _, m := range methods {
		if strings.EqualFold(m.ID, ref) || strings.EqualFold(m.DisplayName, ref) || strings.EqualFold(m.Type, ref) {
			return m, true
		}
	}
	var hit []types.PaymentMethodDescriptor
	for _, m := range methods {
		if persona.ContainsTerm(m.DisplayName, ref) {
			hit = append(hit, m)
		}
	}
	if len(hit) == 1 {
		return hit[0], true
	}
	return types.PaymentMethodDescriptor{}, false
}
