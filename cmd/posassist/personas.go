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
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teradata-labs/loom-pos/pkg/extract"
	"github.com/teradata-labs/loom-pos/pkg/persona"
)

var personasCmd = &cobra.Command{
	Use:   "personas",
	Short: "Inspect persona files",
}

var personasValidateCmd = &cobra.Command{
	Use:   "validate [key...]",
	Short: "Load and validate personas",
	Long: `Load every persona in --persona-dir (or only the given keys) and report
problems. Exits non-zero when any persona fails to load.

Examples:
  posassist personas validate
  posassist personas validate barista kopitiam`,
	RunE: runPersonasValidate,
}

func init() {
	personasCmd.AddCommand(personasValidateCmd)
}

func runPersonasValidate(cmd *cobra.Command, args []string) error {
	loader := persona.NewFileLoader(config.Persona.Dir)
	keys := args
	if len(keys) == 0 {
		var err error
		if keys, err = loader.Keys(); err != nil {
			return err
		}
	}
	if len(keys) == 0 {
		return fmt.Errorf("no personas found in %s", config.Persona.Dir)
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, key := range keys {
		tpl, err := loader.Load(cmd.Context(), key)
		if err != nil {
			failed++
			fmt.Fprintf(out, "FAIL  %s: %v\n", key, err)
			continue
		}
		fmt.Fprintf(out, "ok    %s (version %s, locale %s, %d completion signals, %d modifiers)\n",
			tpl.Key, tpl.Version, tpl.Locale, len(tpl.CompletionSignals), len(tpl.Modifiers))
		if tpl.ContractVersion != extract.ContractVersion {
			fmt.Fprintf(out, "      warning: directive contract %q, extractor parses %q\n",
				tpl.ContractVersion, extract.ContractVersion)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d personas failed validation", failed, len(keys))
	}
	return nil
}
