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
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when a persona does not exist.
var ErrNotFound = errors.New("persona not found")

// Loader reads a persona by key.
type Loader interface {
	Load(ctx context.Context, key string) (*Template, error)
}

// FileLoader loads personas from YAML files in a directory.
//
// Directory structure:
//
//	personas/
//	  barista.yaml    # Key: "barista"
//	  kopitiam.yaml   # Key: "kopitiam"
//
// YAML format:
//
//	---
//	key: barista
//	locale: en-US
//	version: 1.0.0
//	contract: v1
//	variables:
//	  store_name: Uptown Coffee
//	completion_signals:
//	  - {locale: en-US, phrase: "that's all"}
//	greeting: Hi, welcome to {{.store_name}}!
//	---
//	You are the barista at {{.store_name}}...
type FileLoader struct {
	dir string
}

// personaFile is the frontmatter of a persona file.
type personaFile struct {
	Key                   string            `yaml:"key"`
	Locale                string            `yaml:"locale"`
	Version               string            `yaml:"version"`
	Description           string            `yaml:"description"`
	Contract              string            `yaml:"contract"`
	Variables             map[string]string `yaml:"variables"`
	CompletionSignals     []PhraseRule      `yaml:"completion_signals"`
	FinalityPhrases       []PhraseRule      `yaml:"finality_phrases"`
	ContinuationMarkers   []PhraseRule      `yaml:"continuation_markers"`
	NewTransactionPhrases []PhraseRule      `yaml:"new_transaction_phrases"`
	PaymentPrompts        []PhraseRule      `yaml:"payment_prompts"`
	Modifiers             []string          `yaml:"modifiers"`
	Greeting              string            `yaml:"greeting"`
	Acknowledgment        string            `yaml:"acknowledgment"`
	Replies               map[string]string `yaml:"replies"`
}

// NewFileLoader creates a loader rooted at dir.
func NewFileLoader(dir string) *FileLoader {
	return &FileLoader{dir: dir}
}

// Load reads <dir>/<key>.yaml (or .yml).
func (l *FileLoader) Load(ctx context.Context, key string) (*Template, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if key == "" || strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return nil, fmt.Errorf("invalid persona key %q", key)
	}

	for _, ext := range []string{".yaml", ".yml"} {
		path := filepath.Join(l.dir, key+ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read persona %s: %w", key, err)
		}
		tpl, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		if tpl.Key != key {
			return nil, fmt.Errorf("persona file %s declares key %q", path, tpl.Key)
		}
		return tpl, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
}

// Keys lists the persona keys available in the directory.
func (l *FileLoader) Keys() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list personas: %w", err)
	}
	var keys []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		keys = append(keys, strings.TrimSuffix(e.Name(), ext))
	}
	sort.Strings(keys)
	return keys, nil
}

// Parse decodes a persona file: YAML frontmatter between --- separators
// followed by the ordering body. Persona variables are interpolated here,
// once, so the hot path never rewrites templates.
func Parse(data []byte) (*Template, error) {
	parts := strings.SplitN(string(data), "---", 3)
	if len(parts) < 3 || strings.TrimSpace(parts[0]) != "" {
		return nil, fmt.Errorf("invalid format: expected YAML frontmatter with --- separator")
	}

	var pf personaFile
	if err := yaml.Unmarshal([]byte(parts[1]), &pf); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}

	vars := make(map[string]interface{}, len(pf.Variables)+2)
	for k, v := range pf.Variables {
		vars[k] = v
	}
	vars["persona"] = pf.Key
	vars["locale"] = pf.Locale

	tpl := &Template{
		Key:                   pf.Key,
		Locale:                pf.Locale,
		Version:               pf.Version,
		Description:           pf.Description,
		ContractVersion:       pf.Contract,
		CompletionSignals:     defaultMatch(pf.CompletionSignals, pf.Locale),
		FinalityPhrases:       defaultMatch(pf.FinalityPhrases, pf.Locale),
		ContinuationMarkers:   defaultMatch(pf.ContinuationMarkers, pf.Locale),
		NewTransactionPhrases: defaultMatch(pf.NewTransactionPhrases, pf.Locale),
		PaymentPrompts:        interpolateRules(defaultMatch(pf.PaymentPrompts, pf.Locale), vars),
		Modifiers:             pf.Modifiers,
		replies:               make(map[string]string, len(pf.Replies)),
		bodies:                make(map[Kind]string, 3),
	}
	if tpl.ContractVersion == "" {
		tpl.ContractVersion = "v1"
	}

	tpl.bodies[KindOrdering] = Interpolate(strings.TrimSpace(parts[2]), vars)
	if pf.Greeting != "" {
		tpl.bodies[KindGreeting] = Interpolate(strings.TrimSpace(pf.Greeting), vars)
	}
	if pf.Acknowledgment != "" {
		tpl.bodies[KindAcknowledgment] = Interpolate(strings.TrimSpace(pf.Acknowledgment), vars)
	}
	for name, reply := range pf.Replies {
		tpl.replies[name] = Interpolate(strings.TrimSpace(reply), vars)
	}

	if err := tpl.validate(); err != nil {
		return nil, err
	}
	return tpl, nil
}

func defaultMatch(rules []PhraseRule, locale string) []PhraseRule {
	out := make([]PhraseRule, len(rules))
	for i, r := range rules {
		if r.Match == "" {
			r.Match = MatchSubstring
		}
		if r.Locale == "" {
			r.Locale = locale
		}
		out[i] = r
	}
	return out
}

func interpolateRules(rules []PhraseRule, vars map[string]interface{}) []PhraseRule {
	for i := range rules {
		rules[i].Phrase = Interpolate(rules[i].Phrase, vars)
	}
	return rules
}
