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
package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/loom-pos/pkg/types"
)

func testSchemas() []types.ToolSchema {
	return []types.ToolSchema{
		{
			Name:        "add_item",
			Description: "Add a product to the order",
			Parameters: types.NewObjectSchema("", map[string]*types.JSONSchema{
				"product":  types.NewStringSchema("Base product name only"),
				"quantity": types.NewIntegerSchema("Number of units").WithMinimum(1),
				"notes":    types.NewStringSchema("Preparation details"),
			}, []string{"product"}),
		},
		{
			Name:        "remove_item",
			Description: "Remove a product from the order",
			Parameters: types.NewObjectSchema("", map[string]*types.JSONSchema{
				"product": types.NewStringSchema("Product to remove"),
			}, []string{"product"}),
		},
		{
			Name:        "compute_total",
			Description: "Get the order total",
			Parameters:  types.NewObjectSchema("", map[string]*types.JSONSchema{}, nil),
		},
	}
}

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	e, err := New(testSchemas(), Config{})
	require.NoError(t, err)
	return e
}

func TestExtract_Grades(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		op         string
		confidence float64
		args       map[string]interface{}
	}{
		{
			name:       "canonical key value",
			text:       `Sure! CALL add_item(product="Latte", quantity=2, notes="large, oat milk")`,
			op:         "add_item",
			confidence: 0.9,
			args:       map[string]interface{}{"product": "Latte", "quantity": float64(2), "notes": "large, oat milk"},
		},
		{
			name:       "canonical json",
			text:       `CALL add_item({"product": "Mocha", "quantity": 1})`,
			op:         "add_item",
			confidence: 0.9,
			args:       map[string]interface{}{"product": "Mocha", "quantity": float64(1)},
		},
		{
			name:       "bracket form",
			text:       `Coming up [add_item(product='Croissant')] for you.`,
			op:         "add_item",
			confidence: 0.9,
			args:       map[string]interface{}{"product": "Croissant"},
		},
		{
			name:       "no arguments",
			text:       `CALL compute_total()`,
			op:         "compute_total",
			confidence: 0.9,
			args:       map[string]interface{}{},
		},
		{
			name:       "lower case call keyword and upper case name",
			text:       `call ADD_ITEM(product: muffin)`,
			op:         "add_item",
			confidence: 0.9,
			args:       map[string]interface{}{"product": "muffin"},
		},
		{
			name:       "missing required argument",
			text:       `CALL add_item(quantity=2)`,
			op:         "add_item",
			confidence: 0.6,
			args:       map[string]interface{}{"quantity": float64(2)},
		},
		{
			name:       "unknown argument",
			text:       `CALL add_item(product="Latte", size="large")`,
			op:         "add_item",
			confidence: 0.6,
			args:       map[string]interface{}{"product": "Latte", "size": "large"},
		},
		{
			name:       "bare known name",
			text:       `I will add_item(product="Latte") now`,
			op:         "add_item",
			confidence: 0.6,
			args:       map[string]interface{}{"product": "Latte"},
		},
		{
			name:       "unknown operation",
			text:       `CALL refund_everything(reason="fun")`,
			op:         "refund_everything",
			confidence: 0.6,
			args:       map[string]interface{}{"reason": "fun"},
		},
		{
			name:       "positional arguments",
			text:       `CALL add_item("Latte")`,
			op:         "add_item",
			confidence: 0.4,
			args:       map[string]interface{}{"product": "Latte"},
		},
		{
			name:       "mixed positional fills free slots",
			text:       `CALL add_item(quantity=3, Latte)`,
			op:         "add_item",
			confidence: 0.4,
			args:       map[string]interface{}{"product": "Latte", "quantity": float64(3)},
		},
	}

	e := newTestExtractor(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.Extract(tt.text)
			require.Empty(t, res.Diagnostics)
			require.Len(t, res.Invocations, 1)
			inv := res.Invocations[0]
			assert.Equal(t, tt.op, inv.Name)
			assert.Equal(t, tt.confidence, inv.Confidence)
			assert.Equal(t, tt.args, inv.Arguments)
			assert.Equal(t, types.OriginExtracted, inv.Origin)
			assert.NotEmpty(t, inv.ID)
		})
	}
}

func TestExtract_OrderAndProse(t *testing.T) {
	e := newTestExtractor(t)
	text := "Two lattes and a muffin, great choice!\n" +
		"CALL add_item(product=\"Latte\", quantity=2)\n" +
		"CALL add_item(product=\"Muffin\")\n" +
		"Anything else?"

	res := e.Extract(text)
	require.Len(t, res.Invocations, 2)
	assert.Equal(t, "Latte", res.Invocations[0].Arguments["product"])
	assert.Equal(t, "Muffin", res.Invocations[1].Arguments["product"])
	assert.NotEqual(t, res.Invocations[0].ID, res.Invocations[1].ID)
	assert.Equal(t, "Two lattes and a muffin, great choice!\nAnything else?", res.Prose)
}

func TestExtract_MalformedDropped(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		reason string
	}{
		{"unclosed paren", `CALL add_item(product="Latte"`, "unbalanced parentheses or quotes"},
		{"unterminated quote", `CALL add_item(product="Latte)`, "unbalanced parentheses or quotes"},
		{"invalid json", `CALL add_item({"product": })`, "invalid JSON argument object"},
		{"empty key", `CALL add_item(=Latte)`, "empty argument name"},
		{"too many positional", `CALL remove_item("Latte", "Mocha")`, "too many positional arguments"},
	}
	e := newTestExtractor(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.Extract("Okay. " + tt.text)
			assert.Empty(t, res.Invocations)
			require.Len(t, res.Diagnostics, 1)
			assert.Equal(t, types.KindMalformedToolCall, res.Diagnostics[0].Kind)
			assert.Equal(t, tt.reason, res.Diagnostics[0].Reason)
			assert.Equal(t, "Okay.", res.Prose)
		})
	}
}

func TestExtract_MalformedDoesNotHideLaterDirectives(t *testing.T) {
	e := newTestExtractor(t)
	res := e.Extract("CALL add_item(product=\"Latte\"\nCALL add_item(product=\"Mocha\")")
	require.Len(t, res.Diagnostics, 1)
	require.Len(t, res.Invocations, 1)
	assert.Equal(t, "Mocha", res.Invocations[0].Arguments["product"])
}

func TestExtract_IgnoresPlainProse(t *testing.T) {
	e := newTestExtractor(t)
	text := "We have lattes (hot or iced) and muffins [blueberry]. Don't worry, I'll add it."
	res := e.Extract(text)
	assert.Empty(t, res.Invocations)
	assert.Empty(t, res.Diagnostics)
	assert.Equal(t, text, res.Prose)
}

func TestExtract_ApostropheInBareValue(t *testing.T) {
	e := newTestExtractor(t)
	res := e.Extract(`CALL add_item(product=Latte, notes=don't burn it)`)
	require.Len(t, res.Invocations, 1)
	assert.Equal(t, "don't burn it", res.Invocations[0].Arguments["notes"])
}

func TestExtract_Deterministic(t *testing.T) {
	e := newTestExtractor(t)
	text := `CALL add_item(product="Latte") CALL remove_item(product="Mocha")`
	assert.Equal(t, e.Extract(text), e.Extract(text))
}

func TestNew_RejectsBadPolicyAndNames(t *testing.T) {
	_, err := New(testSchemas(), Config{Policy: ConfidencePolicy{Version: "x", WellFormed: 0.3, Partial: 0.6, Heuristic: 0.1}})
	assert.Error(t, err)

	_, err = New([]types.ToolSchema{{Name: "add item"}}, Config{})
	assert.Error(t, err)
}

func TestConfidencePolicy(t *testing.T) {
	require.NoError(t, PolicyV1.Validate())
	assert.Equal(t, 0.9, PolicyV1.Score(GradeWellFormed))
	assert.Equal(t, 0.6, PolicyV1.Score(GradePartial))
	assert.Equal(t, 0.4, PolicyV1.Score(GradeHeuristic))
	assert.Equal(t, "partial", GradePartial.String())

	assert.Error(t, ConfidencePolicy{Version: "bad", WellFormed: 1.2}.Validate())
}

func TestInstructions(t *testing.T) {
	text := Instructions(testSchemas())
	assert.Contains(t, text, "contract v1")
	assert.Contains(t, text, "- add_item(product, notes?, quantity?): Add a product to the order")
	assert.Contains(t, text, "    product (string): Base product name only")
	assert.Contains(t, text, "- compute_total(): Get the order total")
}
