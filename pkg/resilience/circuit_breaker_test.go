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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(t *testing.T, cfg Config, opts ...BreakerOption) (*CircuitBreaker, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	opts = append([]BreakerOption{WithBreakerLogger(zaptest.NewLogger(t))}, opts...)
	cb := NewCircuitBreaker("llm", cfg, opts...)
	cb.now = clock.Now
	return cb, clock
}

func fail(err error) Action {
	return func(context.Context) (string, error) { return "", err }
}

func succeed(v string) Action {
	return func(context.Context) (string, error) { return v, nil }
}

func TestCircuitBreaker_OpensAtThreshold(t *testing.T) {
	cfg := testConfig()
	cfg.FailureThreshold = 3
	cfg.RecoveryTimeout = 60 * time.Second
	cb, _ := newTestBreaker(t, cfg)

	invoked := 0
	action := func(context.Context) (string, error) {
		invoked++
		return "", NewTransient("upstream down")
	}

	want := []State{StateClosed, StateClosed, StateOpen, StateOpen, StateOpen, StateOpen}
	for i, w := range want {
		_, err := cb.Execute(context.Background(), action)
		require.Error(t, err)
		assert.Equal(t, w, cb.State(), "after call %d", i+1)
		if i >= 3 {
			assert.ErrorIs(t, err, ErrCircuitOpen, "call %d", i+1)
			assert.True(t, IsTransient(err))
		}
	}
	assert.Equal(t, 3, invoked)
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cfg := testConfig()
	cfg.FailureThreshold = 3
	cb, _ := newTestBreaker(t, cfg)
	ctx := context.Background()

	_, _ = cb.Execute(ctx, fail(NewTransient("x")))
	_, _ = cb.Execute(ctx, fail(NewTransient("x")))
	_, err := cb.Execute(ctx, succeed("ok"))
	require.NoError(t, err)
	assert.Equal(t, 0, cb.Snapshot().FailureCount)

	_, _ = cb.Execute(ctx, fail(NewTransient("x")))
	_, _ = cb.Execute(ctx, fail(NewTransient("x")))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cfg := testConfig()
	cfg.FailureThreshold = 1
	cfg.HalfOpenMaxCalls = 2
	cfg.RecoveryTimeout = 30 * time.Second
	var transitions []string
	cb, clock := newTestBreaker(t, cfg, WithStateChangeCallback(func(name string, from, to State) {
		transitions = append(transitions, from.String()+"->"+to.String())
	}))
	ctx := context.Background()

	_, _ = cb.Execute(ctx, fail(NewTransient("x")))
	require.Equal(t, StateOpen, cb.State())

	clock.Advance(29 * time.Second)
	assert.Equal(t, StateOpen, cb.State())

	clock.Advance(time.Second)
	assert.Equal(t, StateHalfOpen, cb.State())

	_, err := cb.Execute(ctx, succeed("a"))
	require.NoError(t, err)
	assert.Equal(t, StateHalfOpen, cb.State())

	_, err = cb.Execute(ctx, succeed("b"))
	require.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())

	snap := cb.Snapshot()
	assert.Zero(t, snap.FailureCount)
	assert.Zero(t, snap.SuccessCount)
	assert.Zero(t, snap.HalfOpenCalls)
	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cfg := testConfig()
	cfg.FailureThreshold = 1
	cb, clock := newTestBreaker(t, cfg)
	ctx := context.Background()

	_, _ = cb.Execute(ctx, fail(NewTransient("x")))
	clock.Advance(cfg.RecoveryTimeout)
	require.Equal(t, StateHalfOpen, cb.State())

	_, err := cb.Execute(ctx, fail(NewPermanent("still broken")))
	require.Error(t, err)
	assert.Equal(t, StateOpen, cb.State())
	assert.Equal(t, clock.Now(), cb.Snapshot().LastFailureTime)
}

func TestCircuitBreaker_HalfOpenProbeLimit(t *testing.T) {
	cfg := testConfig()
	cfg.FailureThreshold = 1
	cfg.HalfOpenMaxCalls = 2
	cb, clock := newTestBreaker(t, cfg)

	_, _ = cb.Execute(context.Background(), fail(NewTransient("x")))
	clock.Advance(cfg.RecoveryTimeout)

	require.NoError(t, cb.Allow())
	require.NoError(t, cb.Allow())
	err := cb.Allow()
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, cb.Snapshot().HalfOpenCalls)
}

func TestCircuitBreaker_CatastrophicNotCounted(t *testing.T) {
	cfg := testConfig()
	cfg.FailureThreshold = 2
	cb, _ := newTestBreaker(t, cfg)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := cb.Execute(ctx, fail(NewCatastrophic("disk corrupted")))
		assert.True(t, IsCatastrophic(err))
	}
	assert.Equal(t, StateClosed, cb.State())
	assert.Zero(t, cb.Snapshot().FailureCount)
}

func TestCircuitBreaker_CatastrophicReleasesProbe(t *testing.T) {
	cfg := testConfig()
	cfg.FailureThreshold = 1
	cfg.HalfOpenMaxCalls = 1
	cb, clock := newTestBreaker(t, cfg)
	ctx := context.Background()

	_, _ = cb.Execute(ctx, fail(NewTransient("x")))
	clock.Advance(cfg.RecoveryTimeout)

	_, err := cb.Execute(ctx, fail(NewCatastrophic("boom")))
	assert.True(t, IsCatastrophic(err))
	assert.Equal(t, StateHalfOpen, cb.State())

	_, err = cb.Execute(ctx, succeed("ok"))
	require.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cfg := testConfig()
	cfg.FailureThreshold = 1
	cb, _ := newTestBreaker(t, cfg)

	_, _ = cb.Execute(context.Background(), fail(NewTransient("x")))
	require.Equal(t, StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.NoError(t, cb.Allow())
}

func TestCircuitBreaker_ConcurrentUse(t *testing.T) {
	cfg := testConfig()
	cfg.FailureThreshold = 1000
	cb, _ := newTestBreaker(t, cfg)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = cb.Execute(context.Background(), succeed("ok"))
			} else {
				_, _ = cb.Execute(context.Background(), fail(NewTransient("x")))
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, StateClosed, cb.State())
	assert.LessOrEqual(t, cb.Snapshot().FailureCount, 25)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown(7)", State(7).String())
}
