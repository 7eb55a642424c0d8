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
	"sort"
	"sync"

	"github.com/innovationmech/dagflow/pkg/logger"
	"go.uber.org/zap"
)

// DefaultResource is the breaker name used when an invocation names none.
const DefaultResource = "default"

// Invocation describes one resilient call.
type Invocation struct {
	// Resource names the circuit breaker guarding Action.
	Resource string
	// Action is the primary operation.
	Action Action
	// Fallbacks are tried in order once Action has failed.
	Fallbacks []Action
	// OnRetry is called before every retry of Action.
	OnRetry OnRetryFunc
}

// Outcome reports how a successful, or failed, invocation went.
type Outcome struct {
	// Value is the result of the operation that succeeded.
	Value string
	// Attempts is the number of times the primary action ran.
	Attempts int
	// FallbackLevel is 0 when the primary succeeded and n when the n-th
	// fallback did.
	FallbackLevel int
	// CircuitRejected is set when the breaker refused the primary action.
	CircuitRejected bool
}

// Executor composes circuit breaking, retry and fallback around an action.
//
// For every invocation:
//  1. an open breaker skips the primary action entirely;
//  2. otherwise the primary runs under the RetryStrategy, each attempt
//     recorded in the breaker;
//  3. on a non-catastrophic failure the fallbacks run as a FallbackChain;
//  4. the first success wins, else the final error is returned.
//
// Breakers are created on first reference to a resource and live as long as
// the Executor.
type Executor struct {
	cfg           Config
	retry         *RetryStrategy
	fallback      *FallbackChain
	logger        *zap.Logger
	metrics       *Metrics
	onStateChange func(name string, from, to State)

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithLogger sets the logger shared by the executor and its components.
func WithLogger(l *zap.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = l }
}

// WithMetrics sets the metrics collector shared by the executor and its components.
func WithMetrics(m *Metrics) ExecutorOption {
	return func(e *Executor) { e.metrics = m }
}

// WithBreakerStateChange registers a callback for every breaker state change.
func WithBreakerStateChange(fn func(name string, from, to State)) ExecutorOption {
	return func(e *Executor) { e.onStateChange = fn }
}

// NewExecutor validates cfg and builds an Executor.
func NewExecutor(cfg Config, opts ...ExecutorOption) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Executor{
		cfg:      cfg,
		logger:   logger.GetLogger().Named("resilience"),
		breakers: make(map[string]*CircuitBreaker),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.retry = NewRetryStrategy(cfg,
		WithRetryLogger(e.logger.Named("retry")),
		WithRetryMetrics(e.metrics),
	)
	e.fallback = NewFallbackChain(cfg,
		WithFallbackLogger(e.logger.Named("fallback")),
		WithFallbackMetrics(e.metrics),
	)
	return e, nil
}

// Config returns the policy the executor was built with.
func (e *Executor) Config() Config { return e.cfg }

// Breaker returns the breaker for resource, creating it on first use.
func (e *Executor) Breaker(resource string) *CircuitBreaker {
	if resource == "" {
		resource = DefaultResource
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cb, ok := e.breakers[resource]
	if !ok {
		cb = NewCircuitBreaker(resource, e.cfg,
			WithBreakerLogger(e.logger.Named("circuit")),
			WithBreakerMetrics(e.metrics),
			WithStateChangeCallback(e.onStateChange),
		)
		e.breakers[resource] = cb
	}
	return cb
}

// Breakers returns snapshots of every breaker, sorted by name.
func (e *Executor) Breakers() []BreakerSnapshot {
	e.mu.Lock()
	list := make([]*CircuitBreaker, 0, len(e.breakers))
	for _, cb := range e.breakers {
		list = append(list, cb)
	}
	e.mu.Unlock()

	out := make([]BreakerSnapshot, 0, len(list))
	for _, cb := range list {
		out = append(out, cb.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Execute runs action for resource with the given fallbacks.
func (e *Executor) Execute(ctx context.Context, resource string, action Action, fallbacks ...Action) (*Outcome, error) {
	return e.Run(ctx, Invocation{Resource: resource, Action: action, Fallbacks: fallbacks})
}

// Run performs one resilient invocation. The returned Outcome is never nil.
func (e *Executor) Run(ctx context.Context, inv Invocation) (*Outcome, error) {
	resource := inv.Resource
	if resource == "" {
		resource = DefaultResource
	}
	cb := e.Breaker(resource)
	out := &Outcome{}

	var primaryErr error
	if cb.State() == StateOpen {
		out.CircuitRejected = true
		e.metrics.recordRejection(resource)
		primaryErr = circuitOpenError(resource)
		e.logger.Warn("circuit open, skipping primary action",
			zap.String("resource", resource),
			zap.Int("fallbacks", len(inv.Fallbacks)),
		)
	} else {
		guarded := func(ctx context.Context) (string, error) {
			return cb.Execute(ctx, inv.Action)
		}
		value, attempts, err := e.retry.execute(ctx, resource, guarded, inv.OnRetry)
		out.Attempts = attempts
		if err == nil {
			out.Value = value
			return out, nil
		}
		if errors.Is(err, ErrCircuitOpen) {
			out.CircuitRejected = true
		}
		primaryErr = err
	}

	if IsCatastrophic(primaryErr) || ctx.Err() != nil || len(inv.Fallbacks) == 0 {
		return out, primaryErr
	}

	e.logger.Info("primary action failed, trying fallbacks",
		zap.String("resource", resource),
		zap.Int("fallbacks", len(inv.Fallbacks)),
		zap.Error(primaryErr),
	)
	res, err := e.fallback.Execute(ctx, inv.Fallbacks[0], inv.Fallbacks[1:]...)
	if err != nil {
		return out, err
	}
	out.Value = res.Value
	out.FallbackLevel = res.Level + 1
	return out, nil
}
