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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "that's all", Normalize("  THAT’S   All "))
	assert.Equal(t, Normalize("straße"), Normalize("STRASSE"))
	assert.Equal(t, "nada más", Normalize("NADA MÁS"))
}

func TestPhraseRule_Index(t *testing.T) {
	tests := []struct {
		name      string
		rule      PhraseRule
		utterance string
		want      bool
	}{
		{"substring in sentence", PhraseRule{Phrase: "that's all", Match: MatchSubstring}, "ok that's all thanks", true},
		{"case insensitive", PhraseRule{Phrase: "that's all", Match: MatchSubstring}, "THAT'S ALL", true},
		{"curly apostrophe", PhraseRule{Phrase: "that's all", Match: MatchSubstring}, "that’s all", true},
		{"word boundary", PhraseRule{Phrase: "done", Match: MatchSubstring}, "well done steak", true},
		{"inside a word", PhraseRule{Phrase: "done", Match: MatchSubstring}, "undone", false},
		{"exact whole utterance", PhraseRule{Phrase: "done", Match: MatchExact}, "Done!", true},
		{"exact in sentence", PhraseRule{Phrase: "done", Match: MatchExact}, "I'm done now", false},
		{"accented", PhraseRule{Phrase: "nada más", Match: MatchSubstring}, "No, nada más, gracias", true},
		{"han without spaces", PhraseRule{Phrase: "就这样", Match: MatchSubstring}, "好就这样吧", true},
		{"no match", PhraseRule{Phrase: "that's all", Match: MatchSubstring}, "a latte please", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rule.Matches(tt.utterance))
		})
	}
}

func TestFirstAndLastMatch(t *testing.T) {
	rules := []PhraseRule{
		{Phrase: "oh and", Match: MatchSubstring},
		{Phrase: "that's all", Match: MatchSubstring},
	}
	text := Normalize("That's all, oh and a muffin, oh and a scone")

	r, at, ok := FirstMatch(rules, text)
	assert.True(t, ok)
	assert.Equal(t, "that's all", r.Phrase)
	assert.Equal(t, 0, at)

	last := LastMatch(rules, text)
	assert.Equal(t, len("that's all, oh and a muffin, "), last)

	_, _, ok = FirstMatch(rules, Normalize("a latte"))
	assert.False(t, ok)
	assert.Equal(t, -1, LastMatch(rules, Normalize("a latte")))
}

func TestContainsTerm(t *testing.T) {
	assert.True(t, ContainsTerm("large oat milk latte", "oat milk"))
	assert.True(t, ContainsTerm("Large Latte", "large"))
	assert.False(t, ContainsTerm("Latte", "large"))
	assert.False(t, ContainsTerm("Milo", "o"))
	assert.True(t, ContainsTerm("Kopi O", "o"))
}
