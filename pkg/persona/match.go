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
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

var quoteReplacer = strings.NewReplacer("’", "'", "‘", "'", "“", "\"", "”", "\"")

// Normalize prepares text for phrase matching: NFC, Unicode case folding,
// straight quotes and single spaces.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	s = quoteReplacer.Replace(s)
	s = folder.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// Index returns the byte offset of the rule in an already normalized
// utterance, or -1. Substring rules only match on word boundaries for
// scripts that separate words with spaces.
func (r PhraseRule) Index(normalized string) int {
	phrase := Normalize(r.Phrase)
	if phrase == "" {
		return -1
	}
	if r.Match == MatchExact {
		if trimPunct(normalized) == trimPunct(phrase) {
			return 0
		}
		return -1
	}
	for from := 0; from <= len(normalized)-len(phrase); {
		i := strings.Index(normalized[from:], phrase)
		if i < 0 {
			return -1
		}
		at := from + i
		if bounded(normalized, at, at+len(phrase)) {
			return at
		}
		_, size := utf8.DecodeRuneInString(normalized[at:])
		from = at + size
	}
	return -1
}

// Matches reports whether the rule matches an utterance.
func (r PhraseRule) Matches(utterance string) bool {
	return r.Index(Normalize(utterance)) >= 0
}

// FirstMatch returns the earliest matching rule in a normalized utterance.
// Ties go to the longer phrase.
func FirstMatch(rules []PhraseRule, normalized string) (PhraseRule, int, bool) {
	best, bestAt := PhraseRule{}, -1
	for _, r := range rules {
		at := r.Index(normalized)
		if at < 0 {
			continue
		}
		if bestAt < 0 || at < bestAt || (at == bestAt && len(r.Phrase) > len(best.Phrase)) {
			best, bestAt = r, at
		}
	}
	return best, bestAt, bestAt >= 0
}

// LastMatch returns the latest matching position of any rule, or -1.
func LastMatch(rules []PhraseRule, normalized string) int {
	last := -1
	for _, r := range rules {
		phrase := Normalize(r.Phrase)
		for from := 0; from < len(normalized); {
			at := (PhraseRule{Phrase: phrase, Match: r.Match}).Index(normalized[from:])
			if at < 0 {
				break
			}
			if from+at > last {
				last = from + at
			}
			_, size := utf8.DecodeRuneInString(normalized[from+at:])
			from += at + size
			if r.Match == MatchExact {
				break
			}
		}
	}
	return last
}

// ContainsTerm reports whether a vocabulary term appears in text on word
// boundaries, ignoring case.
func ContainsTerm(text, term string) bool {
	return PhraseRule{Phrase: term, Match: MatchSubstring}.Matches(text)
}

func trimPunct(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
	})
}

// bounded reports whether [start,end) sits on word boundaries. Boundaries
// are only required next to letters of space-delimited scripts.
func bounded(s string, start, end int) bool {
	if start > 0 {
		before, _ := utf8.DecodeLastRuneInString(s[:start])
		first, _ := utf8.DecodeRuneInString(s[start:])
		if wordRune(before) && wordRune(first) {
			return false
		}
	}
	if end < len(s) {
		after, _ := utf8.DecodeRuneInString(s[end:])
		last, _ := utf8.DecodeLastRuneInString(s[:end])
		if wordRune(after) && wordRune(last) {
			return false
		}
	}
	return true
}

func wordRune(r rune) bool {
	if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Thai) {
		return false
	}
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\''
}
