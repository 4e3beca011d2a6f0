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

import "fmt"

// Grade is how unambiguously a directive matched the contract.
type Grade int

const (
	// GradeHeuristic covers positional or otherwise ambiguous arguments
	GradeHeuristic Grade = iota
	// GradePartial covers recognisable directives with missing or unexpected parts
	GradePartial
	// GradeWellFormed is a canonical directive with every required argument
	GradeWellFormed
)

func (g Grade) String() string {
	switch g {
	case GradeWellFormed:
		return "well_formed"
	case GradePartial:
		return "partial"
	default:
		return "heuristic"
	}
}

// ConfidencePolicy maps a grade to a confidence score. Policies are
// versioned so transcripts can be replayed against the rules in force when
// they were recorded.
type ConfidencePolicy struct {
	Version    string
	WellFormed float64
	Partial    float64
	Heuristic  float64
}

// PolicyV1 is the default policy.
var PolicyV1 = ConfidencePolicy{
	Version:    "v1",
	WellFormed: 0.9,
	Partial:    0.6,
	Heuristic:  0.4,
}

// Score returns the confidence for a grade.
func (p ConfidencePolicy) Score(g Grade) float64 {
	switch g {
	case GradeWellFormed:
		return p.WellFormed
	case GradePartial:
		return p.Partial
	default:
		return p.Heuristic
	}
}

// Validate checks that scores are in [0,1] and ordered.
func (p ConfidencePolicy) Validate() error {
	for _, s := range []float64{p.WellFormed, p.Partial, p.Heuristic} {
		if s < 0 || s > 1 {
			return fmt.Errorf("confidence policy %s: score %v out of range", p.Version, s)
		}
	}
	if !(p.Heuristic <= p.Partial && p.Partial <= p.WellFormed) {
		return fmt.Errorf("confidence policy %s: scores must not decrease with grade", p.Version)
	}
	return nil
}

// grade classifies a parsed directive.
func grade(d directive, known bool, missingRequired, unknownKeys bool) Grade {
	if d.positional {
		return GradeHeuristic
	}
	if d.form == formBare || !known || missingRequired || unknownKeys {
		return GradePartial
	}
	return GradeWellFormed
}
