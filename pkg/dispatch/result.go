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
package dispatch

import "github.com/teradata-labs/loom-pos/pkg/types"

// Status summarises a batch.
type Status string

const (
	StatusEmpty    Status = "empty"
	StatusSuccess  Status = "success"
	StatusPartial  Status = "partial"
	StatusRejected Status = "rejected"
)

// Result is the outcome of one batch. Outcomes are in invocation order; an
// implicit reset staged for a new-transaction request appears just before
// the operation that needed it.
type Result struct {
	Outcomes []types.DispatchOutcome

	// Totals is the ledger's view after the batch when the cart changed
	Totals *types.Totals
}

// Status reports whether every, some or none of the outcomes executed.
func (r *Result) Status() Status {
	if len(r.Outcomes) == 0 {
		return StatusEmpty
	}
	executed := 0
	for _, o := range r.Outcomes {
		if o.Succeeded() {
			executed++
		}
	}
	switch executed {
	case len(r.Outcomes):
		return StatusSuccess
	case 0:
		return StatusRejected
	default:
		return StatusPartial
	}
}

// Fatal returns the first outcome kind that ends the session.
func (r *Result) Fatal() (types.ErrorKind, bool) {
	for _, o := range r.Outcomes {
		if !o.Succeeded() && o.Kind.Fatal() {
			return o.Kind, true
		}
	}
	return "", false
}

// Executed returns the outcomes that ran.
func (r *Result) Executed() []types.DispatchOutcome {
	var out []types.DispatchOutcome
	for _, o := range r.Outcomes {
		if o.Succeeded() {
			out = append(out, o)
		}
	}
	return out
}
