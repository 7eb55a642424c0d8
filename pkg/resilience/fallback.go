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
	"fmt"

	"github.com/innovationmech/dagflow/pkg/logger"
	"go.uber.org/zap"
)

// FallbackResult is the successful outcome of a fallback chain.
type FallbackResult struct {
	// Value is the result of the operation that succeeded.
	Value string
	// Level is the position of that operation in the chain, 0 for the first.
	Level int
}

// FallbackChain tries an ordered list of alternative operations.
type FallbackChain struct {
	cfg     Config
	logger  *zap.Logger
	metrics *Metrics
}

// FallbackOption configures a FallbackChain.
type FallbackOption func(*FallbackChain)

// WithFallbackLogger sets the logger.
func WithFallbackLogger(l *zap.Logger) FallbackOption {
	return func(fc *FallbackChain) { fc.logger = l }
}

// WithFallbackMetrics sets the metrics collector.
func WithFallbackMetrics(m *Metrics) FallbackOption {
	return func(fc *FallbackChain) { fc.metrics = m }
}

// NewFallbackChain creates a fallback chain for cfg.
func NewFallbackChain(cfg Config, opts ...FallbackOption) *FallbackChain {
	fc := &FallbackChain{
		cfg:    cfg,
		logger: logger.GetLogger().Named("fallback"),
	}
	for _, opt := range opts {
		opt(fc)
	}
	return fc
}

// Execute tries primary and then each fallback in order, making at most
// MaxFallbackDepth attempts. Each attempt is bounded by FallbackTimeout.
// A Catastrophic error stops the chain; otherwise the chain fails only when
// every attempt failed, returning the last error.
func (fc *FallbackChain) Execute(ctx context.Context, primary Action, fallbacks ...Action) (*FallbackResult, error) {
	ops := make([]Action, 0, len(fallbacks)+1)
	ops = append(ops, primary)
	ops = append(ops, fallbacks...)
	if fc.cfg.MaxFallbackDepth > 0 && len(ops) > fc.cfg.MaxFallbackDepth {
		ops = ops[:fc.cfg.MaxFallbackDepth]
	}

	lastErr := error(ErrNoOperations)
	for level, op := range ops {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		value, err := fc.attempt(ctx, op)
		fc.metrics.recordFallback(level, err)
		if err == nil {
			if level > 0 {
				fc.logger.Info("fallback succeeded", zap.Int("level", level))
			}
			return &FallbackResult{Value: value, Level: level}, nil
		}
		if IsCatastrophic(err) {
			fc.logger.Error("catastrophic error, abandoning fallback chain",
				zap.Int("level", level),
				zap.Error(err),
			)
			return nil, err
		}

		fc.logger.Warn("fallback level failed",
			zap.Int("level", level),
			zap.Int("remaining", len(ops)-level-1),
			zap.Error(err),
		)
		lastErr = err
	}
	return nil, lastErr
}

// attempt runs op under the fallback deadline. An op that ignores its context
// is abandoned when the deadline passes; its eventual result is discarded.
func (fc *FallbackChain) attempt(ctx context.Context, op Action) (string, error) {
	actx, cancel := context.WithTimeout(ctx, fc.cfg.FallbackTimeout)
	defer cancel()

	type outcome struct {
		value string
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := invoke(actx, op)
		done <- outcome{value: v, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil && !IsCatastrophic(o.err) && ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded) {
			return "", fc.timeoutError(o.err)
		}
		return o.value, o.err
	case <-actx.Done():
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "", fc.timeoutError(nil)
	}
}

func (fc *FallbackChain) timeoutError(cause error) error {
	msg := fmt.Sprintf("fallback attempt exceeded %s", fc.cfg.FallbackTimeout)
	if cause != nil {
		msg += ": " + cause.Error()
	}
	return &Error{Category: CategoryTransient, Message: msg, Err: ErrAttemptTimeout}
}
