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
	"fmt"
	"sync"
	"time"

	"github.com/innovationmech/dagflow/pkg/logger"
	"go.uber.org/zap"
)

// State is the state of a circuit breaker.
type State int

const (
	// StateClosed passes calls through and counts consecutive failures.
	StateClosed State = iota
	// StateOpen rejects calls until the recovery timeout has elapsed.
	StateOpen
	// StateHalfOpen admits a limited number of probe calls.
	StateHalfOpen
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// BreakerSnapshot is a point-in-time copy of a breaker's counters.
type BreakerSnapshot struct {
	Name            string
	State           State
	FailureCount    int
	SuccessCount    int
	HalfOpenCalls   int
	LastFailureTime time.Time
}

// CircuitBreaker guards one named resource.
//
// State machine:
//   - Closed: every failure increments failureCount, a success resets it.
//     Reaching FailureThreshold opens the breaker.
//   - Open: calls are rejected with a Transient error wrapping ErrCircuitOpen
//     without running the action. Once RecoveryTimeout has passed since the
//     last failure the breaker moves to HalfOpen on the next call.
//   - HalfOpen: up to HalfOpenMaxCalls probes are admitted. That many
//     successes close the breaker; any failure reopens it.
//
// All methods are safe for concurrent use.
type CircuitBreaker struct {
	name          string
	cfg           Config
	logger        *zap.Logger
	metrics       *Metrics
	onStateChange func(name string, from, to State)
	now           func() time.Time

	mu              sync.Mutex
	state           State
	failureCount    int
	successCount    int
	halfOpenCalls   int
	lastFailureTime time.Time
}

// BreakerOption configures a CircuitBreaker.
type BreakerOption func(*CircuitBreaker)

// WithBreakerLogger sets the logger.
func WithBreakerLogger(l *zap.Logger) BreakerOption {
	return func(cb *CircuitBreaker) { cb.logger = l }
}

// WithBreakerMetrics sets the metrics collector.
func WithBreakerMetrics(m *Metrics) BreakerOption {
	return func(cb *CircuitBreaker) { cb.metrics = m }
}

// WithStateChangeCallback registers fn to be called after every state change.
// It runs outside the breaker lock.
func WithStateChangeCallback(fn func(name string, from, to State)) BreakerOption {
	return func(cb *CircuitBreaker) { cb.onStateChange = fn }
}

// NewCircuitBreaker creates a closed breaker for resource name.
func NewCircuitBreaker(name string, cfg Config, opts ...BreakerOption) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:   name,
		cfg:    cfg,
		logger: logger.GetLogger().Named("circuit"),
		now:    time.Now,
		state:  StateClosed,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// Name returns the resource name.
func (cb *CircuitBreaker) Name() string { return cb.name }

// State returns the current state, moving Open to HalfOpen if the recovery
// timeout has elapsed.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	state, t := cb.currentState()
	cb.mu.Unlock()
	cb.notify(t)
	return state
}

// Snapshot returns a copy of the breaker's counters.
func (cb *CircuitBreaker) Snapshot() BreakerSnapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return BreakerSnapshot{
		Name:            cb.name,
		State:           cb.state,
		FailureCount:    cb.failureCount,
		SuccessCount:    cb.successCount,
		HalfOpenCalls:   cb.halfOpenCalls,
		LastFailureTime: cb.lastFailureTime,
	}
}

// Allow reports whether a call may proceed. In HalfOpen an admitted call
// consumes one probe slot.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	state, t := cb.currentState()
	var err error
	switch state {
	case StateOpen:
		err = circuitOpenError(cb.name)
	case StateHalfOpen:
		if cb.halfOpenCalls >= cb.cfg.HalfOpenMaxCalls {
			err = circuitOpenError(cb.name)
		} else {
			cb.halfOpenCalls++
		}
	}
	cb.mu.Unlock()

	cb.notify(t)
	if err != nil {
		cb.metrics.recordRejection(cb.name)
	}
	return err
}

// RecordSuccess records a successful call.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	var t *transition
	switch cb.state {
	case StateClosed:
		cb.failureCount = 0
	case StateHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.cfg.HalfOpenMaxCalls {
			t = cb.setState(StateClosed)
		}
	case StateOpen:
		// result of a call admitted before the breaker opened
	}
	cb.mu.Unlock()
	cb.notify(t)
}

// RecordFailure records a failed call.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	var t *transition
	cb.lastFailureTime = cb.now()
	switch cb.state {
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.cfg.FailureThreshold {
			t = cb.setState(StateOpen)
		}
	case StateHalfOpen:
		t = cb.setState(StateOpen)
	case StateOpen:
		cb.failureCount++
	}
	cb.mu.Unlock()
	cb.notify(t)
}

// Execute runs action through the breaker. Catastrophic errors are returned
// without touching the counters.
func (cb *CircuitBreaker) Execute(ctx context.Context, action Action) (string, error) {
	if err := cb.Allow(); err != nil {
		return "", err
	}

	result, err := invoke(ctx, action)
	switch {
	case err == nil:
		cb.RecordSuccess()
	case IsCatastrophic(err):
		cb.releaseProbe()
	default:
		cb.RecordFailure()
	}
	return result, err
}

// Reset forces the breaker back to Closed with cleared counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	t := cb.setState(StateClosed)
	cb.mu.Unlock()
	cb.notify(t)
}

// releaseProbe gives back a half-open slot taken by a call whose outcome is
// not accounted.
func (cb *CircuitBreaker) releaseProbe() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateHalfOpen && cb.halfOpenCalls > 0 {
		cb.halfOpenCalls--
	}
}

type transition struct {
	from, to State
}

// currentState must be called with cb.mu held.
func (cb *CircuitBreaker) currentState() (State, *transition) {
	if cb.state == StateOpen && cb.now().Sub(cb.lastFailureTime) >= cb.cfg.RecoveryTimeout {
		return StateHalfOpen, cb.setState(StateHalfOpen)
	}
	return cb.state, nil
}

// setState must be called with cb.mu held. Every transition clears the counters.
func (cb *CircuitBreaker) setState(to State) *transition {
	from := cb.state
	cb.state = to
	cb.failureCount = 0
	cb.successCount = 0
	cb.halfOpenCalls = 0
	if from == to {
		return nil
	}
	return &transition{from: from, to: to}
}

func (cb *CircuitBreaker) notify(t *transition) {
	if t == nil {
		return
	}
	cb.logger.Info("circuit breaker state changed",
		zap.String("circuit", cb.name),
		zap.Stringer("from", t.from),
		zap.Stringer("to", t.to),
	)
	cb.metrics.recordStateChange(cb.name, t.to)
	if cb.onStateChange != nil {
		cb.onStateChange(cb.name, t.from, t.to)
	}
}
