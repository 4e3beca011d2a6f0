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

// Package extract recovers tool invocations from model prose for backends
// without native tool calls.
//
// Directive contract v1:
//
//	CALL name(key="value", key=2)
//	CALL name({"key": "value"})
//	[name(key="value")]
//
// A known operation name written without the CALL prefix is accepted at
// reduced confidence, as are positional arguments. Extraction is pattern
// matching over conversational text, not a grammar: surrounding prose is
// ignored and returned separately.
package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teradata-labs/loom-pos/pkg/types"
)

// ContractVersion is the directive contract this package parses.
const ContractVersion = "v1"

type form int

const (
	formCall form = iota
	formBracket
	formBare
)

var (
	callPattern    = regexp.MustCompile(`(?i)\bCALL\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
	bracketPattern = regexp.MustCompile(`\[\s*([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
	identPattern   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

	idNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("loom-pos.extract"))
)

// Result is the outcome of one extraction.
type Result struct {
	Invocations []types.ToolInvocation
	Diagnostics []types.Diagnostic

	// Prose is the input with every directive removed
	Prose string
}

// Config configures an Extractor.
type Config struct {
	// Policy defaults to PolicyV1
	Policy ConfidencePolicy

	Logger *zap.Logger
}

// Extractor is safe for concurrent use.
type Extractor struct {
	schemas map[string]types.ToolSchema
	bare    *regexp.Regexp
	policy  ConfidencePolicy
	logger  *zap.Logger
}

// New creates an extractor for the given operations.
func New(schemas []types.ToolSchema, config Config) (*Extractor, error) {
	if config.Policy == (ConfidencePolicy{}) {
		config.Policy = PolicyV1
	}
	if err := config.Policy.Validate(); err != nil {
		return nil, err
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	e := &Extractor{
		schemas: make(map[string]types.ToolSchema, len(schemas)),
		policy:  config.Policy,
		logger:  config.Logger,
	}
	names := make([]string, 0, len(schemas))
	for _, s := range schemas {
		key := strings.ToLower(s.Name)
		if !identPattern.MatchString(key) {
			return nil, fmt.Errorf("operation name %q is not a valid directive name", s.Name)
		}
		e.schemas[key] = s
		names = append(names, regexp.QuoteMeta(key))
	}
	if len(names) > 0 {
		sort.Strings(names)
		e.bare = regexp.MustCompile(`(?i)\b(` + strings.Join(names, "|") + `)\s*\(`)
	}
	return e, nil
}

// Policy returns the confidence policy in force.
func (e *Extractor) Policy() ConfidencePolicy {
	return e.policy
}

type candidate struct {
	form  form
	name  string
	start int
	open  int // index of '('
}

type directive struct {
	form       form
	name       string
	body       string
	raw        string
	positional bool
}

// Extract scans text for directives. Identical input always yields an
// identical Result, invocation ids included.
func (e *Extractor) Extract(text string) Result {
	var (
		result Result
		prose  strings.Builder
		cursor int
	)
	for _, c := range e.locate(text) {
		if c.start < cursor {
			continue
		}
		closeIdx, ok := closeParen(text, c.open)
		if !ok {
			lineEnd := strings.IndexByte(text[c.start:], '\n')
			if lineEnd < 0 {
				lineEnd = len(text)
			} else {
				lineEnd += c.start
			}
			e.malformed(&result, text[c.start:lineEnd], "unbalanced parentheses or quotes")
			prose.WriteString(text[cursor:c.start])
			cursor = lineEnd
			continue
		}

		spanEnd := closeIdx + 1
		if c.form == formBracket {
			rest := strings.TrimLeft(text[spanEnd:], " \t")
			if strings.HasPrefix(rest, "]") {
				spanEnd = len(text) - len(rest) + 1
			}
		}
		prose.WriteString(text[cursor:c.start])
		cursor = spanEnd

		d := directive{
			form: c.form,
			name: c.name,
			body: text[c.open+1 : closeIdx],
			raw:  text[c.start:spanEnd],
		}
		if inv, ok := e.build(&result, d, len(result.Invocations)); ok {
			result.Invocations = append(result.Invocations, inv)
		}
	}
	prose.WriteString(text[cursor:])
	result.Prose = cleanProse(prose.String())
	return result
}

// locate finds every directive start, ordered by position. At the same
// position the canonical forms win.
func (e *Extractor) locate(text string) []candidate {
	var out []candidate
	add := func(re *regexp.Regexp, f form) {
		if re == nil {
			return
		}
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			out = append(out, candidate{form: f, name: text[m[2]:m[3]], start: m[0], open: m[1] - 1})
		}
	}
	add(callPattern, formCall)
	add(bracketPattern, formBracket)
	add(e.bare, formBare)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].start != out[j].start {
			return out[i].start < out[j].start
		}
		return out[i].form < out[j].form
	})
	return out
}

func (e *Extractor) build(result *Result, d directive, index int) (types.ToolInvocation, bool) {
	name := strings.ToLower(d.name)
	schema, known := e.schemas[name]

	named, positional, err := parseArgs(d.body)
	if err != nil {
		e.malformed(result, d.raw, err.Error())
		return types.ToolInvocation{}, false
	}

	args := make(map[string]interface{}, len(named)+len(positional))
	for k, v := range named {
		args[k] = v
	}
	if len(positional) > 0 {
		d.positional = true
		order := schema.ParamOrder()
		slot := 0
		for i, v := range positional {
			for slot < len(order) {
				if _, taken := args[order[slot]]; !taken {
					break
				}
				slot++
			}
			if slot < len(order) {
				args[order[slot]] = v
				slot++
				continue
			}
			if known {
				e.malformed(result, d.raw, "too many positional arguments")
				return types.ToolInvocation{}, false
			}
			args[fmt.Sprintf("arg%d", i+1)] = v
		}
	}

	var missing, unknown bool
	if known {
		if schema.Parameters != nil {
			for _, req := range schema.Parameters.Required {
				if _, ok := args[req]; !ok {
					missing = true
				}
			}
		}
		for k := range args {
			if schema.Parameters == nil || schema.Parameters.Properties[k] == nil {
				unknown = true
			}
		}
	}

	g := grade(d, known, missing, unknown)
	inv := types.ToolInvocation{
		ID:           uuid.NewSHA1(idNamespace, []byte(fmt.Sprintf("%d:%s", index, d.raw))).String(),
		Name:         name,
		RawArguments: strings.TrimSpace(d.body),
		Arguments:    args,
		Confidence:   e.policy.Score(g),
		Origin:       types.OriginExtracted,
	}
	e.logger.Debug("directive extracted",
		zap.String("operation", name),
		zap.String("grade", g.String()),
		zap.Float64("confidence", inv.Confidence),
		zap.String("policy", e.policy.Version))
	return inv, true
}

func (e *Extractor) malformed(result *Result, fragment, reason string) {
	e.logger.Debug("malformed directive dropped",
		zap.String("fragment", fragment),
		zap.String("reason", reason))
	result.Diagnostics = append(result.Diagnostics, types.Diagnostic{
		Kind:     types.KindMalformedToolCall,
		Fragment: strings.TrimSpace(fragment),
		Reason:   reason,
	})
}

// closeParen returns the index of the parenthesis closing the one at open.
// Brackets must nest and quotes must terminate.
func closeParen(text string, open int) (int, bool) {
	var (
		stack []byte
		quote byte
	)
	closer := map[byte]byte{'(': ')', '[': ']', '{': '}'}
	for i := open; i < len(text); i++ {
		ch := text[i]
		if quote != 0 {
			switch ch {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch ch {
		case '"':
			quote = ch
		case '\'':
			if opensQuote(text, i, open) {
				quote = ch
			}
		case '(', '[', '{':
			stack = append(stack, closer[ch])
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != ch {
				return 0, false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// opensQuote reports whether a single quote starts a value rather than
// being an apostrophe inside a bare word.
func opensQuote(text string, i, floor int) bool {
	for j := i - 1; j >= floor; j-- {
		switch text[j] {
		case ' ', '\t':
			continue
		case '=', ':', ',', '(', '[':
			return true
		default:
			return false
		}
	}
	return true
}

// cleanProse collapses the whitespace left behind by removed directives.
func cleanProse(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		for _, p := range []string{" .", " ,", " !", " ?"} {
			line = strings.ReplaceAll(line, p, p[1:])
		}
		if strings.Trim(line, ".,;:!?-") == "" {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
