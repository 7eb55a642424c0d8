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

package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/innovationmech/dagflow/internal/plan"
	"github.com/innovationmech/dagflow/pkg/config"
	"github.com/innovationmech/dagflow/pkg/dag"
	"github.com/innovationmech/dagflow/pkg/logger"
	"github.com/innovationmech/dagflow/pkg/resilience"
	"github.com/innovationmech/dagflow/pkg/tracing"
)

// ErrStepsFailed is returned by "dagflow run" when a step did not complete.
var ErrStepsFailed = errors.New("steps did not complete")

const shutdownTimeout = 5 * time.Second

func newRunCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run <plan>",
		Short: "Execute a plan file",
		Long: `Execute every step of a plan, at most --concurrency at a time.

The command exits non-zero when a step failed or was skipped, or when the
run was aborted by a catastrophic error or an interrupt.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			p, err := plan.Load(args[0])
			if err != nil {
				return err
			}
			return runPlan(cmd, opts, cfg, p)
		},
	}
}

func runPlan(cmd *cobra.Command, opts *globalOptions, cfg *config.AppConfig, p *plan.Plan) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	log := logger.GetLogger().With(zap.String("plan", p.Name))

	reg := newRegistry()
	resMetrics, err := resilience.NewMetrics(cfg.Metrics.Namespace, reg)
	if err != nil {
		return err
	}
	dagMetrics, err := dag.NewMetrics(cfg.Metrics.Namespace, reg)
	if err != nil {
		return err
	}
	if cfg.Metrics.Enabled {
		srv, err := startMetricsServer(cfg.Metrics.Address, reg, log)
		if err != nil {
			return err
		}
		defer shutdown(log, "metrics server", srv.Shutdown)
	}

	tm, err := tracing.NewManager(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Exporter:    cfg.Tracing.Exporter,
		Writer:      cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	defer shutdown(log, "tracer provider", tm.Shutdown)

	executor, err := resilience.NewExecutor(cfg.Resilience,
		resilience.WithLogger(log.Named("resilience")),
		resilience.WithMetrics(resMetrics),
		resilience.WithBreakerStateChange(func(name string, from, to resilience.State) {
			log.Warn("circuit breaker state changed",
				zap.String("resource", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		}),
	)
	if err != nil {
		return err
	}

	g, err := p.Graph()
	if err != nil {
		return err
	}
	scheduler := dag.NewScheduler(executor,
		dag.WithLogger(log.Named("scheduler")),
		dag.WithMetrics(dagMetrics),
		dag.WithTracerProvider(tm.TracerProvider()),
	)

	result, runErr := scheduler.Run(ctx, g, cfg.Scheduler.Concurrency)
	if result == nil {
		return runErr
	}

	term := opts.terminal(cmd)
	term.PrintHeader(p.Name)
	if err := term.ShowResult(result); err != nil {
		return err
	}
	if err := term.ShowBreakers(executor.Breakers()); err != nil {
		return err
	}

	if runErr != nil {
		return runErr
	}
	if !result.Succeeded() {
		return fmt.Errorf("%w: %d failed, %d skipped", ErrStepsFailed, result.Failed, result.Skipped)
	}
	return nil
}

func shutdown(log *zap.Logger, what string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Warn("shutdown failed", zap.String("component", what), zap.Error(err))
	}
}
