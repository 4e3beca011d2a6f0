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

import "fmt"

// Decision is what the gating policy does with an invocation.
type Decision int

const (
	// DecisionSkip drops the invocation and asks for clarification
	DecisionSkip Decision = iota
	// DecisionConfirm executes and frames the result for confirmation
	DecisionConfirm
	// DecisionExecute executes without comment
	DecisionExecute
)

func (d Decision) String() string {
	switch d {
	case DecisionExecute:
		return "execute"
	case DecisionConfirm:
		return "confirm"
	default:
		return "skip"
	}
}

// GatingPolicy holds the confidence thresholds. Gating is applied to each
// invocation on its own, never to the batch.
type GatingPolicy struct {
	// Execute is the lowest confidence that runs at all
	Execute float64

	// Immediate is the lowest confidence that runs without confirmation
	Immediate float64
}

// DefaultGatingPolicy returns the standard thresholds.
func DefaultGatingPolicy() GatingPolicy {
	return GatingPolicy{Execute: 0.5, Immediate: 0.8}
}

// Decide applies the thresholds to a confidence.
func (p GatingPolicy) Decide(confidence float64) Decision {
	switch {
	case confidence >= p.Immediate:
		return DecisionExecute
	case confidence >= p.Execute:
		return DecisionConfirm
	default:
		return DecisionSkip
	}
}

// Validate checks that 0 <= Execute <= Immediate <= 1.
func (p GatingPolicy) Validate() error {
	if p.Execute < 0 || p.Immediate > 1 || p.Execute > p.Immediate {
		return fmt.Errorf("invalid gating thresholds: execute=%v immediate=%v", p.Execute, p.Immediate)
	}
	return nil
}
