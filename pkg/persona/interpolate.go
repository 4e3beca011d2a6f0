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
package persona

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var placeholderRe = regexp.MustCompile(`\{\{\.(\w+)\}\}`)

// Interpolate performs variable substitution in a persona template.
//
// Uses {{.variable_name}} syntax. Placeholders without a value are kept so a
// later pass can fill them. Values are flattened to a single line.
//
// Example:
//
//	Interpolate("Welcome to {{.store_name}}!", map[string]interface{}{
//	    "store_name": "Uptown Coffee",
//	})
//	// Returns: "Welcome to Uptown Coffee!"
func Interpolate(template string, vars map[string]interface{}) string {
	if len(vars) == 0 {
		return template
	}
	return placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		name := match[3 : len(match)-2]
		value, ok := vars[name]
		if !ok {
			return match
		}
		return escapeValue(value)
	})
}

// Placeholders lists the variable names referenced by a template.
func Placeholders(template string) []string {
	matches := placeholderRe.FindAllStringSubmatch(template, -1)
	names := make([]string, 0, len(matches))
	seen := make(map[string]bool, len(matches))
	for _, m := range matches {
		if !seen[m[1]] {
			names = append(names, m[1])
			seen[m[1]] = true
		}
	}
	return names
}

func escapeValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return escapeString(v)
	case []string:
		escaped := make([]string, len(v))
		for i, s := range v {
			escaped[i] = escapeString(s)
		}
		return strings.Join(escaped, ", ")
	case fmt.Stringer:
		return escapeString(v.String())
	default:
		return escapeString(fmt.Sprintf("%v", v))
	}
}

// escapeString removes control characters and line breaks so a value cannot
// open a new prompt section.
func escapeString(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			b.WriteRune(' ')
		case unicode.IsControl(r):
		default:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
