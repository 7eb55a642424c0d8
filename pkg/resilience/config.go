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
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds the retry, fallback and circuit breaker policy shared by every
// resilience component of a run. It is passed by value and never mutated after
// construction.
type Config struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries" validate:"gte=0"`

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration `json:"base_delay" yaml:"base_delay" mapstructure:"base_delay" validate:"gte=0"`

	// MaxDelay caps a single backoff delay (before jitter).
	MaxDelay time.Duration `json:"max_delay" yaml:"max_delay" mapstructure:"max_delay" validate:"gtefield=BaseDelay"`

	// ExponentialBase is the backoff growth factor.
	ExponentialBase float64 `json:"exponential_base" yaml:"exponential_base" mapstructure:"exponential_base" validate:"gte=1"`

	// JitterFactor scales the random extra delay, in [0,1].
	JitterFactor float64 `json:"jitter_factor" yaml:"jitter_factor" mapstructure:"jitter_factor" validate:"gte=0,lte=1"`

	// MaxFallbackDepth bounds the attempts of one fallback chain, first operation included.
	MaxFallbackDepth int `json:"max_fallback_depth" yaml:"max_fallback_depth" mapstructure:"max_fallback_depth" validate:"gte=1"`

	// FallbackTimeout bounds each fallback attempt.
	FallbackTimeout time.Duration `json:"fallback_timeout" yaml:"fallback_timeout" mapstructure:"fallback_timeout" validate:"gt=0"`

	// FailureThreshold is the number of consecutive failures that opens a closed breaker.
	FailureThreshold int `json:"failure_threshold" yaml:"failure_threshold" mapstructure:"failure_threshold" validate:"gte=1"`

	// RecoveryTimeout is how long an open breaker waits before probing.
	RecoveryTimeout time.Duration `json:"recovery_timeout" yaml:"recovery_timeout" mapstructure:"recovery_timeout" validate:"gt=0"`

	// HalfOpenMaxCalls is the number of probes admitted, and successes required, in half-open state.
	HalfOpenMaxCalls int `json:"half_open_max_calls" yaml:"half_open_max_calls" mapstructure:"half_open_max_calls" validate:"gte=1"`
}

// DefaultConfig returns the default policy.
func DefaultConfig() Config {
	return Config{
		MaxRetries:       3,
		BaseDelay:        time.Second,
		MaxDelay:         30 * time.Second,
		ExponentialBase:  2.0,
		JitterFactor:     0.1,
		MaxFallbackDepth: 4,
		FallbackTimeout:  60 * time.Second,
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		HalfOpenMaxCalls: 3,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration.
func (c Config) Validate() error {
	if math.IsNaN(c.ExponentialBase) || math.IsInf(c.ExponentialBase, 0) {
		return fmt.Errorf("invalid resilience config: exponential_base must be finite")
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid resilience config: %w", err)
	}
	return nil
}
