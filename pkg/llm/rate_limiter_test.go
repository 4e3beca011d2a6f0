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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitedProvider_Disabled(t *testing.T) {
	mock := NewMockProvider(false, MockReply{Text: "ok"})
	p := NewRateLimitedProvider(mock, RateLimiterConfig{})

	for i := 0; i < 5; i++ {
		text, err := p.Complete(context.Background(), "hi")
		require.NoError(t, err)
		assert.Equal(t, "ok", text)
	}
	assert.Equal(t, int64(5), p.Stats().Total)
	assert.Zero(t, p.Stats().Rejected)
}

func TestRateLimitedProvider_RejectsAtConcurrencyWithoutQueue(t *testing.T) {
	mock := NewMockProvider(false, MockReply{Block: true})
	p := NewRateLimitedProvider(mock, RateLimiterConfig{Enabled: true, Concurrency: 1})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		close(started)
		_, _ = p.Complete(ctx, "first")
	}()
	<-started
	require.Eventually(t, func() bool { return p.Stats().Active == 1 }, time.Second, time.Millisecond)

	_, err := p.Complete(context.Background(), "second")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRateLimited))

	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.True(t, perr.Retryable())
	assert.Equal(t, int64(1), p.Stats().Rejected)

	cancel()
	<-done
	assert.Zero(t, p.Stats().Active)
}

func TestRateLimitedProvider_QueuedCallerCanceled(t *testing.T) {
	mock := NewMockProvider(false, MockReply{Block: true})
	p := NewRateLimitedProvider(mock, RateLimiterConfig{Enabled: true, Concurrency: 1, QueueSize: 1})

	holdCtx, release := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = p.Complete(holdCtx, "first")
	}()
	require.Eventually(t, func() bool { return p.Stats().Active == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.Complete(ctx, "second")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Zero(t, p.Stats().Queued)

	release()
	<-done
}

func TestRateLimitedProvider_PingNotThrottled(t *testing.T) {
	mock := NewMockProvider(true)
	p := NewRateLimitedProvider(mock, RateLimiterConfig{Enabled: true, RequestsPerMinute: 1, Burst: 1})
	for i := 0; i < 3; i++ {
		assert.NoError(t, p.Ping(context.Background()))
	}
	assert.Zero(t, p.Stats().Total)
}

func TestComputeBurst(t *testing.T) {
	assert.Equal(t, 7, computeBurst(2, 7))
	assert.Equal(t, 1, computeBurst(0, 0))
	assert.Equal(t, 3, computeBurst(2.5, 0))
}
