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

// Package tracing builds the OpenTelemetry tracer provider used for run and
// step spans.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Exporter names.
const (
	ExporterStdout = "stdout"
	ExporterNone   = "none"
)

// Config selects whether and where spans are exported.
type Config struct {
	Enabled     bool
	ServiceName string
	Exporter    string
	// Writer receives stdout exporter output. Defaults to os.Stderr so spans
	// never mix with command output.
	Writer io.Writer
	// Pretty indents exported spans.
	Pretty bool
}

// Validate checks the configuration
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.ServiceName == "" {
		return errors.New("service name is required")
	}
	switch c.Exporter {
	case ExporterStdout, ExporterNone:
		return nil
	default:
		return fmt.Errorf("unsupported exporter type: %s", c.Exporter)
	}
}

// Manager owns a tracer provider and its shutdown.
type Manager struct {
	provider oteltrace.TracerProvider
	sdk      *trace.TracerProvider
}

// NewManager builds a provider for cfg. A disabled configuration, or the
// "none" exporter, yields a no-op provider.
func NewManager(cfg Config) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tracing config: %w", err)
	}
	if !cfg.Enabled || cfg.Exporter == ExporterNone {
		return &Manager{provider: noop.NewTracerProvider()}, nil
	}

	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}
	opts := []stdouttrace.Option{stdouttrace.WithWriter(w)}
	if cfg.Pretty {
		opts = append(opts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(semconv.ServiceName(cfg.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	// Console output goes through a simple processor so spans appear as
	// soon as they end.
	sdk := trace.NewTracerProvider(
		trace.WithResource(res),
		trace.WithSpanProcessor(trace.NewSimpleSpanProcessor(exporter)),
		trace.WithSampler(trace.AlwaysSample()),
	)
	return &Manager{provider: sdk, sdk: sdk}, nil
}

// TracerProvider returns the provider spans should be started from.
func (m *Manager) TracerProvider() oteltrace.TracerProvider {
	return m.provider
}

// Enabled reports whether spans are exported.
func (m *Manager) Enabled() bool {
	return m.sdk != nil
}

// SetGlobal installs the provider as the otel global.
func (m *Manager) SetGlobal() {
	otel.SetTracerProvider(m.provider)
}

// Shutdown flushes and stops the exporter.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.sdk == nil {
		return nil
	}
	return m.sdk.Shutdown(ctx)
}
