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
	"errors"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	errInvalidJSON   = errors.New("invalid JSON argument object")
	errUnterminated  = errors.New("unterminated quoted value")
	errEmptyArgument = errors.New("empty argument name")
)

// parseArgs parses a directive's argument list: either one JSON object or a
// flat comma-separated list of key=value pairs. Items without a key are
// returned as positional values.
func parseArgs(body string) (map[string]interface{}, []interface{}, error) {
	body = strings.TrimSpace(body)
	named := map[string]interface{}{}
	if body == "" {
		return named, nil, nil
	}

	if strings.HasPrefix(body, "{") {
		if !gjson.Valid(body) {
			return nil, nil, errInvalidJSON
		}
		obj := gjson.Parse(body)
		if !obj.IsObject() {
			return nil, nil, errInvalidJSON
		}
		obj.ForEach(func(key, value gjson.Result) bool {
			named[strings.ToLower(key.String())] = value.Value()
			return true
		})
		return named, nil, nil
	}

	var positional []interface{}
	for _, part := range splitTopLevel(body) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, raw, hasKey := splitKeyValue(part)
		if hasKey && key == "" {
			return nil, nil, errEmptyArgument
		}
		if hasKey && identPattern.MatchString(key) {
			v, err := parseValue(raw)
			if err != nil {
				return nil, nil, err
			}
			named[strings.ToLower(key)] = v
			continue
		}
		v, err := parseValue(part)
		if err != nil {
			return nil, nil, err
		}
		positional = append(positional, v)
	}
	return named, positional, nil
}

// splitTopLevel splits on commas outside quotes and brackets.
func splitTopLevel(s string) []string {
	var (
		parts []string
		depth int
		quote byte
		start int
	)
	for i := 0; i < len(s); i++ {
		ch := s[i]
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
			if opensQuote(s, i, 0) {
				quote = ch
			}
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// splitKeyValue splits "key=value" or "key: value" at the first separator
// found before any quote.
func splitKeyValue(part string) (string, string, bool) {
	for i := 0; i < len(part); i++ {
		switch part[i] {
		case '"', '\'', '{', '[':
			return "", "", false
		case '=', ':':
			return strings.TrimSpace(part[:i]), strings.TrimSpace(part[i+1:]), true
		}
	}
	return "", "", false
}

// parseValue decodes a scalar. Numbers decode as float64 to match JSON.
func parseValue(s string) (interface{}, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return "", nil
	case s[0] == '"':
		if len(s) < 2 || s[len(s)-1] != '"' {
			return nil, errUnterminated
		}
		if v, err := strconv.Unquote(s); err == nil {
			return v, nil
		}
		return s[1 : len(s)-1], nil
	case s[0] == '\'':
		if len(s) < 2 || s[len(s)-1] != '\'' {
			return nil, errUnterminated
		}
		return strings.ReplaceAll(s[1:len(s)-1], `\'`, `'`), nil
	case s[0] == '{' || s[0] == '[':
		if !gjson.Valid(s) {
			return nil, errInvalidJSON
		}
		return gjson.Parse(s).Value(), nil
	}

	switch strings.ToLower(s) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "null", "none", "nil":
		return nil, nil
	}
	if strings.IndexByte("+-.0123456789", s[0]) >= 0 {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, nil
		}
	}
	return s, nil
}
