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
	"math"
	"math/rand"
	"sync"
	"time"
)

// Backoff computes retry delays from a Config.
//
// The delay before retry n (0-based) is
//
//	min(BaseDelay * ExponentialBase^n, MaxDelay) + uniform(0, that * JitterFactor)
type Backoff struct {
	cfg Config

	mu  sync.Mutex
	rng *rand.Rand
}

// NewBackoff creates a delay calculator.
func NewBackoff(cfg Config) *Backoff {
	return &Backoff{
		cfg: cfg,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Base returns the capped delay for attempt without jitter.
func (b *Backoff) Base(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := float64(b.cfg.BaseDelay) * math.Pow(b.cfg.ExponentialBase, float64(attempt))
	if b.cfg.MaxDelay > 0 && d > float64(b.cfg.MaxDelay) {
		d = float64(b.cfg.MaxDelay)
	}
	// math.Pow may overflow to +Inf for large attempts when MaxDelay is zero
	if math.IsInf(d, 0) || d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// Jitter returns a random extra delay in [0, base*JitterFactor].
func (b *Backoff) Jitter(base time.Duration) time.Duration {
	if b.cfg.JitterFactor <= 0 || base <= 0 {
		return 0
	}
	b.mu.Lock()
	f := b.rng.Float64()
	b.mu.Unlock()
	return time.Duration(f * float64(base) * b.cfg.JitterFactor)
}

// Delay returns the full delay (base plus jitter) before retry attempt.
func (b *Backoff) Delay(attempt int) time.Duration {
	base := b.Base(attempt)
	jitter := b.Jitter(base)
	if base > time.Duration(math.MaxInt64)-jitter {
		return time.Duration(math.MaxInt64)
	}
	return base + jitter
}
