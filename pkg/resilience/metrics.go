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
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects Prometheus metrics for retries, breakers and fallbacks.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	attemptsTotal    *prometheus.CounterVec
	retriesTotal     *prometheus.CounterVec
	exhaustedTotal   *prometheus.CounterVec
	rejectionsTotal  *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	breakerState     *prometheus.GaugeVec
	fallbacksTotal   *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on registerer.
// A nil registerer gets a private registry.
func NewMetrics(namespace string, registerer prometheus.Registerer) (*Metrics, error) {
	if namespace == "" {
		namespace = "dagflow"
	}
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}

	m := &Metrics{
		attemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "attempts_total",
			Help:      "Action attempts by resource and error category (\"none\" on success)",
		}, []string{"resource", "category"}),

		retriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "retries_total",
			Help:      "Retries scheduled after a transient failure",
		}, []string{"resource"}),

		exhaustedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "retries_exhausted_total",
			Help:      "Invocations that used up every retry",
		}, []string{"resource"}),

		rejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "circuit_breaker",
			Name:      "rejections_total",
			Help:      "Calls rejected by an open or saturated circuit breaker",
		}, []string{"resource"}),

		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "circuit_breaker",
			Name:      "state_changes_total",
			Help:      "Circuit breaker state changes by target state",
		}, []string{"resource", "state"}),

		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "circuit_breaker",
			Name:      "state",
			Help:      "Current circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"resource"}),

		fallbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fallback",
			Name:      "attempts_total",
			Help:      "Fallback chain attempts by level and result",
		}, []string{"level", "result"}),
	}

	collectors := []prometheus.Collector{
		m.attemptsTotal,
		m.retriesTotal,
		m.exhaustedTotal,
		m.rejectionsTotal,
		m.transitionsTotal,
		m.breakerState,
		m.fallbacksTotal,
	}
	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) recordAttempt(resource string, err error) {
	if m == nil {
		return
	}
	category := "none"
	if err != nil {
		category = Classify(err).String()
	}
	m.attemptsTotal.WithLabelValues(resource, category).Inc()
}

func (m *Metrics) recordRetry(resource string) {
	if m == nil {
		return
	}
	m.retriesTotal.WithLabelValues(resource).Inc()
}

func (m *Metrics) recordExhausted(resource string) {
	if m == nil {
		return
	}
	m.exhaustedTotal.WithLabelValues(resource).Inc()
}

func (m *Metrics) recordRejection(resource string) {
	if m == nil {
		return
	}
	m.rejectionsTotal.WithLabelValues(resource).Inc()
}

func (m *Metrics) recordStateChange(resource string, to State) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(resource, to.String()).Inc()
	m.breakerState.WithLabelValues(resource).Set(float64(to))
}

func (m *Metrics) recordFallback(level int, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	label := strconv.Itoa(level)
	if level >= 5 {
		label = "5+"
	}
	m.fallbacksTotal.WithLabelValues(label, result).Inc()
}
