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

package config

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/innovationmech/dagflow/pkg/resilience"
)

// AppConfig is the configuration of the dagflow command.
type AppConfig struct {
	Resilience resilience.Config `mapstructure:"resilience" yaml:"resilience"`
	Scheduler  SchedulerConfig   `mapstructure:"scheduler" yaml:"scheduler"`
	Logging    LoggingConfig     `mapstructure:"logging" yaml:"logging"`
	Metrics    MetricsConfig     `mapstructure:"metrics" yaml:"metrics"`
	Tracing    TracingConfig     `mapstructure:"tracing" yaml:"tracing"`
}

// SchedulerConfig bounds step concurrency.
type SchedulerConfig struct {
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency" validate:"gte=1,lte=1024"`
}

// LoggingConfig selects the zap level and encoder.
type LoggingConfig struct {
	Level       string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Address   string `mapstructure:"address" yaml:"address" validate:"required_if=Enabled true"`
	Namespace string `mapstructure:"namespace" yaml:"namespace" validate:"omitempty,metric_namespace"`
}

// TracingConfig controls span export.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	Exporter    string `mapstructure:"exporter" yaml:"exporter" validate:"oneof=stdout none"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name" validate:"required"`
}

var validate = newValidator()

// metricNamespacePattern is the Prometheus metric name grammar without colons.
var metricNamespacePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterValidation("metric_namespace", validateMetricNamespace)
	return v
}

func validateMetricNamespace(fl validator.FieldLevel) bool {
	return metricNamespacePattern.MatchString(fl.Field().String())
}

// Validate checks every section.
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return c.Resilience.Validate()
}

// SetDefaults registers the default of every key on m.
func SetDefaults(m *Manager) {
	r := resilience.DefaultConfig()
	defaults := map[string]interface{}{
		"resilience.max_retries":         r.MaxRetries,
		"resilience.base_delay":          r.BaseDelay,
		"resilience.max_delay":           r.MaxDelay,
		"resilience.exponential_base":    r.ExponentialBase,
		"resilience.jitter_factor":       r.JitterFactor,
		"resilience.max_fallback_depth":  r.MaxFallbackDepth,
		"resilience.fallback_timeout":    r.FallbackTimeout,
		"resilience.failure_threshold":   r.FailureThreshold,
		"resilience.recovery_timeout":    r.RecoveryTimeout,
		"resilience.half_open_max_calls": r.HalfOpenMaxCalls,
		"scheduler.concurrency":          5,
		"logging.level":                  "info",
		"logging.development":            false,
		"metrics.enabled":                false,
		"metrics.address":                ":9090",
		"metrics.namespace":              "dagflow",
		"tracing.enabled":                false,
		"tracing.exporter":               "stdout",
		"tracing.service_name":           "dagflow",
	}
	for k, v := range defaults {
		m.SetDefault(k, v)
	}
}

// Default returns the configuration used when no file or variable is set.
func Default() *AppConfig {
	return &AppConfig{
		Resilience: resilience.DefaultConfig(),
		Scheduler:  SchedulerConfig{Concurrency: 5},
		Logging:    LoggingConfig{Level: "info"},
		Metrics:    MetricsConfig{Address: ":9090", Namespace: "dagflow"},
		Tracing:    TracingConfig{Exporter: "stdout", ServiceName: "dagflow"},
	}
}

// Load builds a Manager for options, merges every layer, applies overrides
// and returns the validated configuration. overrides are keyed like the
// files ("scheduler.concurrency") and take precedence over every layer.
func Load(options Options, overrides map[string]interface{}) (*AppConfig, *Manager, error) {
	m := NewManager(options)
	SetDefaults(m)
	if err := m.Load(); err != nil {
		return nil, nil, err
	}
	for k, v := range overrides {
		m.Set(k, v)
	}

	cfg := &AppConfig{}
	if err := m.Unmarshal(cfg); err != nil {
		return nil, nil, fmt.Errorf("decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, m, nil
}
