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
	"fmt"
	"net"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/teradata-labs/loom-pos/pkg/session"
	"github.com/teradata-labs/loom-pos/pkg/types"
)

// RetryConfig bounds the gateway's retry loop.
type RetryConfig struct {
	// MaxAttempts is the total number of calls, including the first
	MaxAttempts int

	// InitialDelay is the first backoff; it doubles per attempt
	InitialDelay time.Duration

	// MaxDelay caps a single backoff
	MaxDelay time.Duration

	// AttemptTimeout bounds a single call. Zero leaves it to the caller's
	// context.
	AttemptTimeout time.Duration
}

// DefaultRetryConfig returns three attempts starting at 250ms.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialDelay:   250 * time.Millisecond,
		MaxDelay:       4 * time.Second,
		AttemptTimeout: 30 * time.Second,
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	d := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = d.InitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	return c
}

// retrier runs provider calls under the retry policy.
type retrier struct {
	config   RetryConfig
	provider string
	logger   *zap.Logger
}

// do calls fn until it succeeds, fails permanently or the budget is spent.
// Every failure other than caller cancellation is reported as
// types.ErrProviderUnavailable.
func (r *retrier) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	logger := r.logger
	if id := session.SessionIDFromContext(ctx); id != "" {
		logger = logger.With(zap.String("session_id", id), zap.String("persona", session.PersonaFromContext(ctx)))
	}

	backoff := retry.NewExponential(r.config.InitialDelay)
	backoff = retry.WithCappedDuration(r.config.MaxDelay, backoff)
	backoff = retry.WithMaxRetries(uint64(r.config.MaxAttempts-1), backoff)

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if r.config.AttemptTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, r.config.AttemptTimeout)
		}
		err := fn(callCtx)
		cancel()
		if err == nil {
			if attempt > 1 {
				logger.Info("llm retry succeeded",
					zap.String("provider", r.provider),
					zap.String("op", op),
					zap.Int("attempt", attempt))
			}
			return nil
		}
		// The caller gave up; stop without classifying.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !isRetryable(err) {
			logger.Warn("llm call failed permanently",
				zap.String("provider", r.provider),
				zap.String("op", op),
				zap.Error(err))
			return err
		}
		logger.Warn("llm call failed, retrying",
			zap.String("provider", r.provider),
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.config.MaxAttempts),
			zap.Error(err))
		return retry.RetryableError(err)
	})
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return ctxErr
	}

	logger.Error("llm retries exhausted",
		zap.String("provider", r.provider),
		zap.String("op", op),
		zap.Int("attempts", attempt),
		zap.Error(err))
	return fmt.Errorf("%w: %s %s failed after %d attempts: %v",
		types.ErrProviderUnavailable, r.provider, op, attempt, err)
}

// isRetryable classifies transient failures: per-call timeouts, network
// errors, rate limits and server errors.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTimeout) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var retryableErr interface{ Retryable() bool }
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable()
	}
	return false
}
