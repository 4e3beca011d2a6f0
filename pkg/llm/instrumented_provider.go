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
package llm

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ProviderMetrics holds the collectors recorded by InstrumentedProvider.
type ProviderMetrics struct {
	calls     *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	toolCalls *prometheus.CounterVec
}

// NewProviderMetrics creates and registers provider collectors.
func NewProviderMetrics(reg prometheus.Registerer) (*ProviderMetrics, error) {
	m := &ProviderMetrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "posassist",
			Subsystem: "llm",
			Name:      "calls_total",
			Help:      "Model backend calls by provider, operation and outcome.",
		}, []string{"provider", "op", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "posassist",
			Subsystem: "llm",
			Name:      "call_duration_seconds",
			Help:      "Model backend call latency.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"provider", "op"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "posassist",
			Subsystem: "llm",
			Name:      "native_tool_calls_total",
			Help:      "Tool calls returned natively by the backend.",
		}, []string{"provider", "tool"}),
	}
	for _, c := range []prometheus.Collector{m.calls, m.latency, m.toolCalls} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// InstrumentedProvider wraps any Provider with Prometheus instrumentation.
// It is transparent: capabilities and errors pass through unchanged.
type InstrumentedProvider struct {
	provider Provider
	metrics  *ProviderMetrics
}

// NewInstrumentedProvider wraps provider.
func NewInstrumentedProvider(provider Provider, metrics *ProviderMetrics) *InstrumentedProvider {
	return &InstrumentedProvider{provider: provider, metrics: metrics}
}

// Info returns the underlying provider info.
func (p *InstrumentedProvider) Info() ProviderInfo {
	return p.provider.Info()
}

// Ping forwards the health probe and records its outcome.
func (p *InstrumentedProvider) Ping(ctx context.Context) error {
	start := time.Now()
	err := p.provider.Ping(ctx)
	p.observe("ping", start, err)
	return err
}

// Complete forwards a text completion.
func (p *InstrumentedProvider) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	text, err := p.provider.Complete(ctx, prompt)
	p.observe("complete", start, err)
	return text, err
}

// CompleteWithTools forwards a tool-enabled completion.
func (p *InstrumentedProvider) CompleteWithTools(ctx context.Context, prompt string, tools []ToolSpec) (*Completion, error) {
	start := time.Now()
	resp, err := p.provider.CompleteWithTools(ctx, prompt, tools)
	p.observe("complete_with_tools", start, err)
	if err == nil && p.metrics != nil {
		name := p.provider.Info().Name
		for _, tc := range resp.ToolCalls {
			p.metrics.toolCalls.WithLabelValues(name, tc.Name).Inc()
		}
	}
	return resp, err
}

func (p *InstrumentedProvider) observe(op string, start time.Time, err error) {
	if p.metrics == nil {
		return
	}
	name := p.provider.Info().Name
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	p.metrics.calls.WithLabelValues(name, op, outcome).Inc()
	p.metrics.latency.WithLabelValues(name, op).Observe(time.Since(start).Seconds())
}
