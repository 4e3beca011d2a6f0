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
	"fmt"
	"strings"

	"github.com/teradata-labs/loom-pos/pkg/types"
)

// Instructions renders the directive contract and the available operations
// as prompt text for backends without native tool calls.
func Instructions(schemas []types.ToolSchema) string {
	var b strings.Builder
	b.WriteString("## Commands (contract " + ContractVersion + ")\n")
	b.WriteString("To act on the order, write one command per action on its own line, exactly in this form:\n")
	b.WriteString("CALL operation_name(key=\"text value\", key=2)\n")
	b.WriteString("Use only the operations listed below. Always name every argument. ")
	b.WriteString("Write commands in English even when replying in another language. ")
	b.WriteString("Never describe a command without writing it.\n\n")
	b.WriteString("Operations:\n")

	for _, s := range schemas {
		order := s.ParamOrder()
		params := make([]string, 0, len(order))
		for _, p := range order {
			if s.IsRequired(p) {
				params = append(params, p)
			} else {
				params = append(params, p+"?")
			}
		}
		fmt.Fprintf(&b, "- %s(%s)", s.Name, strings.Join(params, ", "))
		if s.Description != "" {
			b.WriteString(": " + s.Description)
		}
		b.WriteByte('\n')
		for _, p := range order {
			prop := s.Parameters.Properties[p]
			if prop == nil || prop.Description == "" {
				continue
			}
			fmt.Fprintf(&b, "    %s (%s): %s\n", p, prop.Type, prop.Description)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
