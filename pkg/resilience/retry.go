// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/innovationmech/dagflow/pkg/logger"
	"go.uber.org/zap"
)

// OnRetryFunc is called before each retry with the 1-based number of the
// failed attempt, its error and the delay about to be slept.
type OnRetryFunc func(attempt int, err error, delay time.Duration)

// RetryStrategy retries an action on Transient failures with exponential
// backoff and jitter.
//
// Only Transient errors are retried. Recoverable, Permanent and Catastrophic
// errors are returned after the attempt that produced them. A Transient error
// wrapping ErrCircuitOpen is also returned at once: the resource will keep
// rejecting calls for at least the recovery timeout.
type RetryStrategy struct {
	cfg     Config
	backoff *Backoff
	logger  *zap.Logger
	metrics *Metrics
	sleep   func(ctx context.Context, d time.Duration) error
}

// RetryOption configures a RetryStrategy.
type RetryOption func(*RetryStrategy)

// WithRetryLogger sets the logger.
func WithRetryLogger(l *zap.Logger) RetryOption {
	return func(r *RetryStrategy) { r.logger = l }
}

// WithRetryMetrics sets the metrics collector.
func WithRetryMetrics(m *Metrics) RetryOption {
	return func(r *RetryStrategy) { r.metrics = m }
}

// NewRetryStrategy creates a retry strategy for cfg.
func NewRetryStrategy(cfg Config, opts ...RetryOption) *RetryStrategy {
	r := &RetryStrategy{
		cfg:     cfg,
		backoff: NewBackoff(cfg),
		logger:  logger.GetLogger().Named("retry"),
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Backoff returns the delay calculator used between attempts.
func (r *RetryStrategy) Backoff() *Backoff { return r.backoff }

// ExecuteWithRetry runs action, retrying Transient failures up to MaxRetries
// times. After MaxRetries+1 failed attempts the last error is returned.
func (r *RetryStrategy) ExecuteWithRetry(ctx context.Context, action Action, onRetry OnRetryFunc) (string, error) {
	result, _, err := r.execute(ctx, "", action, onRetry)
	return result, err
}

// execute is ExecuteWithRetry that also reports how many times action ran.
// Calls rejected with ErrCircuitOpen are not counted.
func (r *RetryStrategy) execute(ctx context.Context, resource string, action Action, onRetry OnRetryFunc) (string, int, error) {
	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", attempts, err
		}

		result, err := invoke(ctx, action)
		if errors.Is(err, ErrCircuitOpen) {
			// Rejected by the breaker, so the action did not run.
			return "", attempts, err
		}
		attempts++
		r.metrics.recordAttempt(resource, err)
		if err == nil {
			if attempts > 1 {
				r.logger.Debug("action succeeded after retry",
					zap.String("resource", resource),
					zap.Int("attempts", attempts),
				)
			}
			return result, attempts, nil
		}
		lastErr = err

		category := Classify(err)
		if category != CategoryTransient {
			r.logger.Debug("error is not retryable",
				zap.String("resource", resource),
				zap.Stringer("category", category),
				zap.Error(err),
			)
			return "", attempts, err
		}
		if attempt == r.cfg.MaxRetries {
			break
		}

		delay := r.backoff.Delay(attempt)
		r.logger.Info("retrying after transient failure",
			zap.String("resource", resource),
			zap.Int("attempt", attempts),
			zap.Int("max_retries", r.cfg.MaxRetries),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		r.metrics.recordRetry(resource)
		if onRetry != nil {
			onRetry(attempts, err, delay)
		}
		if err := r.sleep(ctx, delay); err != nil {
			return "", attempts, err
		}
	}

	r.metrics.recordExhausted(resource)
	r.logger.Warn("retries exhausted",
		zap.String("resource", resource),
		zap.Int("attempts", attempts),
		zap.Error(lastErr),
	)
	return "", attempts, lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
