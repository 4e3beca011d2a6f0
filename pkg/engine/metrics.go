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
package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/teradata-labs/loom-pos/pkg/types"
)

// Turn outcomes recorded by Metrics.
const (
	TurnCompleted     = "completed"
	TurnClarification = "clarification"
	TurnUnavailable   = "unavailable"
	TurnFatal         = "fatal"
	TurnCancelled     = "cancelled"
	TurnError         = "error"
)

// Metrics holds the engine's Prometheus collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	turns        *prometheus.CounterVec
	turnDuration *prometheus.HistogramVec
	outcomes     *prometheus.CounterVec
	phases       *prometheus.CounterVec
	sessions     prometheus.Gauge
}

// NewMetrics creates and registers the engine collectors.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "posassist",
			Subsystem: "engine",
			Name:      "turns_total",
			Help:      "Processed turns by persona and outcome.",
		}, []string{"persona", "outcome"}),
		turnDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "posassist",
			Subsystem: "engine",
			Name:      "turn_duration_seconds",
			Help:      "End-to-end turn latency including the model call.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"persona"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "posassist",
			Subsystem: "dispatch",
			Name:      "outcomes_total",
			Help:      "Dispatched operations by status and error kind.",
		}, []string{"operation", "status", "kind"}),
		phases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "posassist",
			Subsystem: "conversation",
			Name:      "phase_entries_total",
			Help:      "Turns ending in each conversation phase.",
		}, []string{"phase"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "posassist",
			Subsystem: "engine",
			Name:      "active_sessions",
			Help:      "Sessions with a running worker.",
		}),
	}
	for _, c := range []prometheus.Collector{m.turns, m.turnDuration, m.outcomes, m.phases, m.sessions} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeTurn(personaKey, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(personaKey, outcome).Inc()
	m.turnDuration.WithLabelValues(personaKey).Observe(time.Since(start).Seconds())
}

func (m *Metrics) observeOutcomes(outcomes []types.DispatchOutcome) {
	if m == nil {
		return
	}
	for _, o := range outcomes {
		m.outcomes.WithLabelValues(o.Operation, string(o.Status), string(o.Kind)).Inc()
	}
}

func (m *Metrics) observePhase(phase types.Phase) {
	if m == nil {
		return
	}
	m.phases.WithLabelValues(string(phase)).Inc()
}

func (m *Metrics) sessionStarted() {
	if m != nil {
		m.sessions.Inc()
	}
}

func (m *Metrics) sessionEnded() {
	if m != nil {
		m.sessions.Dec()
	}
}
