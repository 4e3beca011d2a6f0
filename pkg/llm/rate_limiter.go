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
	"errors"
	"math"
	"net/http"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// RateLimiterConfig configures the per-backend limiter.
type RateLimiterConfig struct {
	// Enabled turns limiting on
	Enabled bool

	// RequestsPerMinute caps the request rate. Zero disables the rate check.
	RequestsPerMinute float64

	// Burst is the number of requests allowed back to back
	Burst int

	// Concurrency caps in-flight calls. Zero disables the concurrency check.
	Concurrency int64

	// QueueSize bounds callers waiting for a concurrency slot. With no
	// queue, a call arriving at full concurrency is rejected.
	QueueSize int64

	Logger *zap.Logger
}

// DefaultRateLimiterConfig returns limits suited to a single store terminal.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Enabled:           true,
		RequestsPerMinute: 120,
		Burst:             4,
		Concurrency:       4,
		QueueSize:         16,
		Logger:            zap.NewNop(),
	}
}

// ErrRateLimited is returned when the limiter rejects a call outright.
var ErrRateLimited = errors.New("backend rate limit reached")

// RateLimiterStats is a snapshot of limiter counters.
type RateLimiterStats struct {
	Active   int32
	Queued   int32
	Rejected int64
	Total    int64
}

// RateLimitedProvider throttles calls to the wrapped Provider. Rejections
// surface as retryable provider errors so the gateway's backoff applies.
type RateLimitedProvider struct {
	provider Provider
	config   RateLimiterConfig

	sem     *semaphore.Weighted
	queue   *semaphore.Weighted
	limiter *rate.Limiter

	active   atomic.Int32
	queued   atomic.Int32
	rejected atomic.Int64
	total    atomic.Int64
}

// NewRateLimitedProvider wraps provider. A disabled config returns a
// pass-through wrapper.
func NewRateLimitedProvider(provider Provider, config RateLimiterConfig) *RateLimitedProvider {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	p := &RateLimitedProvider{provider: provider, config: config}
	if !config.Enabled {
		return p
	}
	if config.Concurrency > 0 {
		p.sem = semaphore.NewWeighted(config.Concurrency)
		if config.QueueSize > 0 {
			p.queue = semaphore.NewWeighted(config.QueueSize)
		}
	}
	if config.RequestsPerMinute > 0 {
		perSecond := config.RequestsPerMinute / 60.0
		p.limiter = rate.NewLimiter(rate.Limit(perSecond), computeBurst(perSecond, config.Burst))
	}
	return p
}

func computeBurst(perSecond float64, configured int) int {
	if configured > 0 {
		return configured
	}
	if perSecond <= 0 {
		return 1
	}
	return int(math.Ceil(perSecond))
}

// Stats returns the limiter counters.
func (p *RateLimitedProvider) Stats() RateLimiterStats {
	return RateLimiterStats{
		Active:   p.active.Load(),
		Queued:   p.queued.Load(),
		Rejected: p.rejected.Load(),
		Total:    p.total.Load(),
	}
}

// Info returns the wrapped provider's info.
func (p *RateLimitedProvider) Info() ProviderInfo {
	return p.provider.Info()
}

// Ping is never throttled.
func (p *RateLimitedProvider) Ping(ctx context.Context) error {
	return p.provider.Ping(ctx)
}

func (p *RateLimitedProvider) Complete(ctx context.Context, prompt string) (string, error) {
	release, err := p.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()
	return p.provider.Complete(ctx, prompt)
}

func (p *RateLimitedProvider) CompleteWithTools(ctx context.Context, prompt string, tools []ToolSpec) (*Completion, error) {
	release, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return p.provider.CompleteWithTools(ctx, prompt, tools)
}

func (p *RateLimitedProvider) acquire(ctx context.Context) (func(), error) {
	p.total.Add(1)
	if !p.config.Enabled {
		return func() {}, nil
	}

	release := func() {}
	if p.sem != nil {
		if !p.sem.TryAcquire(1) {
			if p.queue == nil || !p.queue.TryAcquire(1) {
				return nil, p.reject(nil)
			}
			p.queued.Add(1)
			err := p.sem.Acquire(ctx, 1)
			p.queue.Release(1)
			p.queued.Add(-1)
			if err != nil {
				return nil, p.reject(err)
			}
		}
		p.active.Add(1)
		release = func() {
			p.sem.Release(1)
			p.active.Add(-1)
		}
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			release()
			return nil, p.reject(err)
		}
	}
	return release, nil
}

func (p *RateLimitedProvider) reject(cause error) error {
	p.rejected.Add(1)
	name := p.provider.Info().Name
	// Caller cancellation passes through untouched.
	if cause != nil && (errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded)) {
		return cause
	}
	p.config.Logger.Warn("backend call rejected by rate limiter",
		zap.String("provider", name),
		zap.Int32("active", p.active.Load()),
		zap.Int32("queued", p.queued.Load()))
	err := ErrRateLimited
	if cause != nil {
		err = errors.Join(ErrRateLimited, cause)
	}
	return NewProviderError(name, http.StatusTooManyRequests, err)
}
