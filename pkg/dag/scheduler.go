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
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/innovationmech/dagflow/pkg/logger"
	"github.com/innovationmech/dagflow/pkg/resilience"
)

const tracerName = "github.com/innovationmech/dagflow/pkg/dag"

// Replanner is called after each step that completes or fails without
// aborting the run, and may return new steps to add to the running graph.
// The finished step carries its final Status and Err, so a failure can be
// answered with an alternative branch. New steps may depend on any step
// already in the graph. A returned error is logged and the run continues
// unchanged.
type Replanner func(ctx context.Context, finished Step) ([]StepSpec, error)

// Scheduler runs graphs through a resilience.Executor.
type Scheduler struct {
	executor  *resilience.Executor
	logger    *zap.Logger
	metrics   *Metrics
	tracer    trace.Tracer
	replanner Replanner
	now       func() time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithTracerProvider sets the provider for run and step spans. The global
// provider is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Scheduler) { s.tracer = tp.Tracer(tracerName) }
}

// WithReplanner sets the replanning hook.
func WithReplanner(r Replanner) Option {
	return func(s *Scheduler) { s.replanner = r }
}

// NewScheduler creates a scheduler that executes steps through executor.
func NewScheduler(executor *resilience.Executor, opts ...Option) *Scheduler {
	s := &Scheduler{
		executor: executor,
		logger:   logger.GetLogger().Named("scheduler"),
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type completion struct {
	id       string
	outcome  *resilience.Outcome
	err      error
	finished time.Time
}

// run is the state owned by the coordinating loop of one Run.
type run struct {
	id        string
	graph     *Graph
	sem       *semaphore.Weighted
	done      chan completion
	running   int
	completed map[string]bool
	failed    map[string]bool
	abortErr  error
}

// Run executes g with at most limit steps in flight and returns the final
// state of every step.
//
// Steps whose dependencies have all completed are dispatched as worker
// slots allow. Each step runs through the executor with its resource,
// fallbacks and retry policy; its outcome is merged back by the calling
// goroutine, which is the only writer of step status.
//
// A catastrophic step error or cancellation of ctx aborts the run: nothing
// new is dispatched, running steps finish, and steps that never ran are
// reported PENDING. The result is returned together with an *AbortError.
func (s *Scheduler) Run(ctx context.Context, g *Graph, limit int) (*ExecutionResult, error) {
	if g == nil {
		return nil, errors.New("nil graph")
	}
	if s.executor == nil {
		return nil, errors.New("scheduler has no executor")
	}
	if limit < 1 {
		return nil, fmt.Errorf("concurrency limit must be positive, got %d", limit)
	}
	if err := g.claim(); err != nil {
		return nil, err
	}
	defer g.freeze()

	r := &run{
		id:        uuid.NewString(),
		graph:     g,
		sem:       semaphore.NewWeighted(int64(limit)),
		done:      make(chan completion, limit),
		completed: make(map[string]bool),
		failed:    make(map[string]bool),
	}

	ctx, span := s.tracer.Start(ctx, "dag.run", trace.WithAttributes(
		attribute.String("dag.run_id", r.id),
		attribute.Int("dag.steps", g.Len()),
		attribute.Int("dag.concurrency", limit),
	))
	defer span.End()

	log := s.logger.With(zap.String("run_id", r.id))
	log.Info("run started", zap.Int("steps", g.Len()), zap.Int("concurrency", limit))
	started := s.now()

	for {
		if r.abortErr == nil {
			if err := ctx.Err(); err != nil {
				r.abortErr = &AbortError{Err: err}
				log.Warn("run cancelled, waiting for running steps", zap.Int("running", r.running))
			}
		}

		if r.abortErr == nil {
			ready, skipped := g.updateReadiness(r.completed, r.failed)
			if skipped > 0 {
				s.metrics.stepSkipped(skipped)
				log.Info("steps skipped after upstream failure", zap.Int("count", skipped))
			}
			for _, st := range ready {
				if !r.sem.TryAcquire(1) {
					break
				}
				s.dispatch(ctx, log, r, st)
			}
		}

		if r.running == 0 {
			break
		}

		var c completion
		if r.abortErr != nil {
			c = <-r.done
		} else {
			select {
			case c = <-r.done:
			case <-ctx.Done():
				continue
			}
		}
		s.merge(ctx, log, r, c)
	}

	if r.abortErr != nil {
		if ids := g.resetUndispatched(); len(ids) > 0 {
			log.Info("steps not dispatched", zap.Strings("steps", ids))
		}
	}

	result := newExecutionResult(r.id, started, s.now().Sub(started), g.Steps(), r.abortErr)
	s.metrics.runFinished(result)

	span.SetAttributes(
		attribute.Int("dag.completed", result.Completed),
		attribute.Int("dag.failed", result.Failed),
		attribute.Int("dag.skipped", result.Skipped),
		attribute.Int("dag.pending", result.Pending),
	)

	fields := []zap.Field{
		zap.Duration("elapsed", result.Elapsed),
		zap.Int("completed", result.Completed),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
		zap.Int("pending", result.Pending),
	}
	if r.abortErr != nil {
		span.RecordError(r.abortErr)
		span.SetStatus(codes.Error, r.abortErr.Error())
		log.Error("run aborted", append(fields, zap.Error(r.abortErr))...)
		return result, r.abortErr
	}
	if result.Failed > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d steps failed", result.Failed))
	}
	log.Info("run finished", fields...)
	return result, nil
}

// dispatch marks st RUNNING and starts it on its own goroutine. The caller
// holds a worker slot for it.
func (s *Scheduler) dispatch(ctx context.Context, log *zap.Logger, r *run, st Step) {
	at := s.now()
	if err := r.graph.start(st.ID, at); err != nil {
		r.sem.Release(1)
		log.Error("cannot start step", zap.String("step", st.ID), zap.Error(err))
		return
	}
	r.running++
	s.metrics.stepStarted()
	log.Debug("step dispatched", zap.String("step", st.ID), zap.String("resource", st.Resource))

	go func() {
		out, err := s.execute(ctx, r.id, st)
		r.done <- completion{id: st.ID, outcome: out, err: err, finished: s.now()}
	}()
}

func (s *Scheduler) execute(ctx context.Context, runID string, st Step) (*resilience.Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "dag.step", trace.WithAttributes(
		attribute.String("dag.run_id", runID),
		attribute.String("dag.step.id", st.ID),
		attribute.String("dag.step.name", st.DisplayName()),
		attribute.String("dag.step.resource", st.Resource),
	))
	defer span.End()

	out, err := s.executor.Run(ctx, resilience.Invocation{
		Resource:  st.Resource,
		Action:    st.Action,
		Fallbacks: st.Fallbacks,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			span.AddEvent("retry", trace.WithAttributes(
				attribute.Int("attempt", attempt),
				attribute.String("delay", delay.String()),
				attribute.String("error", err.Error()),
			))
		},
	})

	if out != nil {
		span.SetAttributes(
			attribute.Int("dag.step.attempts", out.Attempts),
			attribute.Int("dag.step.fallback_level", out.FallbackLevel),
		)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("dag.step.error_category", resilience.Classify(err).String()))
	}
	return out, err
}

// merge applies one completion to the graph. It runs on the coordinating
// goroutine only.
func (s *Scheduler) merge(ctx context.Context, log *zap.Logger, r *run, c completion) {
	r.sem.Release(1)
	r.running--

	if err := r.graph.finish(c.id, c.outcome, c.err, c.finished); err != nil {
		log.Error("cannot record step outcome", zap.String("step", c.id), zap.Error(err))
		return
	}
	st, _ := r.graph.Step(c.id)
	s.metrics.stepFinished(st.Status, st.Duration())

	if c.err != nil {
		r.failed[c.id] = true
		category := resilience.Classify(c.err)
		log.Warn("step failed",
			zap.String("step", c.id),
			zap.Stringer("category", category),
			zap.Int("attempts", st.Attempts),
			zap.Error(c.err),
		)
		if category == resilience.CategoryCatastrophic && r.abortErr == nil {
			r.abortErr = &AbortError{StepID: c.id, Err: c.err}
			log.Error("catastrophic failure, stopping dispatch",
				zap.String("step", c.id),
				zap.Int("running", r.running),
			)
		}
		// Replan before the next readiness pass skips the dependents.
		if r.abortErr == nil {
			s.replan(ctx, log, r.graph, st)
		}
		return
	}

	r.completed[c.id] = true
	log.Info("step completed",
		zap.String("step", c.id),
		zap.Duration("duration", st.Duration()),
		zap.Int("attempts", st.Attempts),
		zap.Int("fallback_level", st.FallbackLevel),
	)
	if r.abortErr == nil {
		s.replan(ctx, log, r.graph, st)
	}
}

func (s *Scheduler) replan(ctx context.Context, log *zap.Logger, g *Graph, st Step) {
	if s.replanner == nil {
		return
	}
	specs, err := s.replanner(ctx, st)
	if err != nil {
		log.Warn("replanning failed", zap.String("step", st.ID), zap.Error(err))
		return
	}
	for _, spec := range specs {
		if err := g.AddStep(spec); err != nil {
			log.Warn("replanned step rejected",
				zap.String("after", st.ID),
				zap.String("step", spec.ID),
				zap.Error(err),
			)
			continue
		}
		s.metrics.stepReplanned()
		log.Info("step added by replanning",
			zap.String("after", st.ID),
			zap.String("step", spec.ID),
			zap.Strings("depends_on", spec.DependsOn),
		)
	}
}

