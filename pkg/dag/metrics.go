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

package dag

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects Prometheus metrics for scheduler runs.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	runsTotal      *prometheus.CounterVec
	runDuration    prometheus.Histogram
	stepsTotal     *prometheus.CounterVec
	stepDuration   *prometheus.HistogramVec
	runningSteps   prometheus.Gauge
	replannedSteps prometheus.Counter
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
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "runs_total",
			Help:      "Finished runs by outcome (succeeded, failed, aborted)",
		}, []string{"outcome"}),

		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "run_duration_seconds",
			Help:      "Wall time of a run",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}),

		stepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "steps_total",
			Help:      "Steps reaching a final status",
		}, []string{"status"}),

		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "step_duration_seconds",
			Help:      "Running time of dispatched steps",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),

		runningSteps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "running_steps",
			Help:      "Steps currently holding a worker slot",
		}),

		replannedSteps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "replanned_steps_total",
			Help:      "Steps added to a graph while it was running",
		}),
	}

	collectors := []prometheus.Collector{
		m.runsTotal,
		m.runDuration,
		m.stepsTotal,
		m.stepDuration,
		m.runningSteps,
		m.replannedSteps,
	}
	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) stepStarted() {
	if m == nil {
		return
	}
	m.runningSteps.Inc()
}

func (m *Metrics) stepFinished(status Status, d time.Duration) {
	if m == nil {
		return
	}
	m.runningSteps.Dec()
	m.stepsTotal.WithLabelValues(status.String()).Inc()
	m.stepDuration.WithLabelValues(status.String()).Observe(d.Seconds())
}

func (m *Metrics) stepSkipped(n int) {
	if m == nil || n == 0 {
		return
	}
	m.stepsTotal.WithLabelValues(StatusSkipped.String()).Add(float64(n))
}

func (m *Metrics) stepReplanned() {
	if m == nil {
		return
	}
	m.replannedSteps.Inc()
}

func (m *Metrics) runFinished(r *ExecutionResult) {
	if m == nil {
		return
	}
	outcome := "succeeded"
	switch {
	case r.Aborted:
		outcome = "aborted"
	case r.Failed > 0 || r.Skipped > 0:
		outcome = "failed"
	}
	m.runsTotal.WithLabelValues(outcome).Inc()
	m.runDuration.Observe(r.Elapsed.Seconds())
}
