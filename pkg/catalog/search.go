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

// Package catalog provides product catalogs and store configuration for the
// dispatcher: in-memory implementations, a SQLite-backed store and a YAML
// fixture format to seed either.
package catalog

import (
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/teradata-labs/loom-pos/pkg/types"
)

type productSource []types.ProductInfo

func (p productSource) String(i int) string { return strings.ToLower(p[i].DisplayName) }
func (p productSource) Len() int            { return len(p) }

// rank orders products for a search term: exact name or SKU matches, then
// names containing every word of the term, then fuzzy matches. Fuzzy
// matching only runs when nothing matched by words.
func rank(term string, products []types.ProductInfo, max int) []types.ProductInfo {
	term = strings.ToLower(strings.Join(strings.Fields(term), " "))
	if term == "" {
		return nil
	}
	words := strings.Fields(term)

	var exact, contains []types.ProductInfo
	for _, p := range products {
		name := strings.ToLower(p.DisplayName)
		switch {
		case name == term || strings.EqualFold(p.SKU, term):
			exact = append(exact, p)
		case containsWords(name, words):
			contains = append(contains, p)
		}
	}
	out := append(exact, contains...)

	if len(out) == 0 {
		for _, m := range fuzzy.FindFrom(term, productSource(products)) {
			out = append(out, products[m.Index])
		}
	}
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}

func containsWords(name string, words []string) bool {
	nameWords := strings.Fields(name)
	for _, w := range words {
		found := false
		for _, nw := range nameWords {
			if nw == w || nw == w+"s" || nw+"s" == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
