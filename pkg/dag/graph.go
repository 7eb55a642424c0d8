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
	"sync"
	"time"

	"github.com/innovationmech/dagflow/pkg/resilience"
)

// Graph is a validated, acyclic set of steps and their execution state.
//
// Once a Scheduler has claimed the graph, step status is written only by the
// scheduler's coordinating loop. The lock makes snapshots taken from other
// goroutines safe.
type Graph struct {
	mu sync.Mutex

	nodes    []*Step
	index    map[string]int
	outgoing [][]int
	// order holds node indices in topological order.
	order []int

	claimed bool
	frozen  bool
}

// NewGraph validates specs and builds a graph. Steps without dependencies
// start READY, every other step PENDING.
//
// Validation rejects empty or duplicate ids, missing actions, self
// dependencies, repeated dependencies, unknown dependencies and cycles.
// Failures are *GraphError values wrapping ErrInvalidGraph or ErrCycleFound.
func NewGraph(specs []StepSpec) (*Graph, error) {
	g := &Graph{
		nodes:    make([]*Step, 0, len(specs)),
		index:    make(map[string]int, len(specs)),
		outgoing: make([][]int, len(specs)),
	}

	for i, spec := range specs {
		if err := checkSpec(spec, g.index); err != nil {
			return nil, err
		}
		g.index[spec.ID] = i
		g.nodes = append(g.nodes, newStep(spec))
	}

	indeg := make([]int, len(specs))
	for i, spec := range specs {
		if err := checkDeps(spec, g.has); err != nil {
			return nil, err
		}
		for _, dep := range spec.DependsOn {
			g.outgoing[g.index[dep]] = append(g.outgoing[g.index[dep]], i)
		}
		indeg[i] = len(spec.DependsOn)
	}

	order := topoOrder(g.outgoing, indeg)
	if len(order) != len(g.nodes) {
		ids := make([]string, len(g.nodes))
		for i, n := range g.nodes {
			ids[i] = n.ID
		}
		return nil, cycleError(findCycle(ids, g.outgoing))
	}
	g.order = order
	return g, nil
}

func newStep(spec StepSpec) *Step {
	spec.DependsOn = append([]string(nil), spec.DependsOn...)
	spec.Fallbacks = append([]resilience.Action(nil), spec.Fallbacks...)
	st := &Step{StepSpec: spec, Status: StatusPending}
	if len(spec.DependsOn) == 0 {
		st.Status = StatusReady
	}
	return st
}

func (g *Graph) has(id string) bool {
	_, ok := g.index[id]
	return ok
}

// Len returns the number of steps.
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.nodes)
}

// AddStep appends a step while the graph is not frozen. The new step may
// depend only on steps already in the graph, so it cannot introduce a cycle.
// It is used by replanning between step completions.
func (g *Graph) AddStep(spec StepSpec) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.frozen {
		return ErrGraphFrozen
	}
	if err := checkSpec(spec, g.index); err != nil {
		return err
	}
	if err := checkDeps(spec, g.has); err != nil {
		return err
	}

	i := len(g.nodes)
	g.index[spec.ID] = i
	g.nodes = append(g.nodes, newStep(spec))
	g.outgoing = append(g.outgoing, nil)
	for _, dep := range spec.DependsOn {
		d := g.index[dep]
		g.outgoing[d] = append(g.outgoing[d], i)
	}
	g.order = append(g.order, i)
	return nil
}

// ReadySteps updates readiness and returns the steps that may be dispatched,
// in topological order.
//
// Every PENDING step is examined: a step with a dependency in failed, or a
// dependency that is itself FAILED or SKIPPED, becomes SKIPPED with
// ErrDependencyFailed; a step whose dependencies are all in completed becomes
// READY. Steps that were already READY and not yet dispatched are returned
// again. Because the walk follows topological order a skip cascades to
// every downstream step in one call.
func (g *Graph) ReadySteps(completed, failed map[string]bool) []Step {
	ready, _ := g.updateReadiness(completed, failed)
	return ready
}

// updateReadiness is ReadySteps that also reports how many steps it skipped.
func (g *Graph) updateReadiness(completed, failed map[string]bool) ([]Step, int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var ready []Step
	skipped := 0
	for _, i := range g.order {
		st := g.nodes[i]
		switch st.Status {
		case StatusReady:
			ready = append(ready, *st)
		case StatusPending:
			if dep := g.blockedBy(st, failed); dep != "" {
				st.Status = StatusSkipped
				st.Err = fmt.Errorf("%w: %s", ErrDependencyFailed, dep)
				skipped++
				continue
			}
			if allIn(st.DependsOn, completed) {
				st.Status = StatusReady
				ready = append(ready, *st)
			}
		}
	}
	return ready, skipped
}

// blockedBy returns the first dependency of st that can no longer succeed.
func (g *Graph) blockedBy(st *Step, failed map[string]bool) string {
	for _, dep := range st.DependsOn {
		if failed[dep] {
			return dep
		}
		switch g.nodes[g.index[dep]].Status {
		case StatusFailed, StatusSkipped:
			return dep
		}
	}
	return ""
}

func allIn(ids []string, set map[string]bool) bool {
	for _, id := range ids {
		if !set[id] {
			return false
		}
	}
	return true
}

// Step returns a snapshot of the step with the given id.
func (g *Graph) Step(id string) (Step, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i, ok := g.index[id]
	if !ok {
		return Step{}, false
	}
	return *g.nodes[i], true
}

// Steps returns snapshots of every step in topological order.
func (g *Graph) Steps() []Step {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Step, 0, len(g.order))
	for _, i := range g.order {
		out = append(out, *g.nodes[i])
	}
	return out
}

// TopologicalOrder returns step ids ordered so that every step follows its
// dependencies.
func (g *Graph) TopologicalOrder() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.order))
	for _, i := range g.order {
		out = append(out, g.nodes[i].ID)
	}
	return out
}

// Levels groups step ids by dependency depth. Level 0 holds the steps
// without dependencies; a step sits one level below its deepest dependency.
// Steps in one level never depend on each other.
func (g *Graph) Levels() [][]string {
	g.mu.Lock()
	defer g.mu.Unlock()

	depth := make([]int, len(g.nodes))
	var levels [][]string
	for _, i := range g.order {
		d := 0
		for _, dep := range g.nodes[i].DependsOn {
			if dd := depth[g.index[dep]] + 1; dd > d {
				d = dd
			}
		}
		depth[i] = d
		for len(levels) <= d {
			levels = append(levels, nil)
		}
		levels[d] = append(levels[d], g.nodes[i].ID)
	}
	return levels
}

// claim marks the graph as owned by a run.
func (g *Graph) claim() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.claimed {
		return ErrGraphInUse
	}
	g.claimed = true
	return nil
}

// freeze rejects further AddStep calls.
func (g *Graph) freeze() {
	g.mu.Lock()
	g.frozen = true
	g.mu.Unlock()
}

func (g *Graph) transition(st *Step, to Status) error {
	if !isAllowedTransition(st.Status, to) {
		return fmt.Errorf("step %q: disallowed transition %s -> %s", st.ID, st.Status, to)
	}
	st.Status = to
	return nil
}

func (g *Graph) lookup(id string) (*Step, error) {
	i, ok := g.index[id]
	if !ok {
		return nil, fmt.Errorf("unknown step %q", id)
	}
	return g.nodes[i], nil
}

// start moves a READY step to RUNNING.
func (g *Graph) start(id string, at time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, err := g.lookup(id)
	if err != nil {
		return err
	}
	if err := g.transition(st, StatusRunning); err != nil {
		return err
	}
	st.StartedAt = at
	return nil
}

// finish moves a RUNNING step to COMPLETED or FAILED.
func (g *Graph) finish(id string, out *resilience.Outcome, runErr error, at time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, err := g.lookup(id)
	if err != nil {
		return err
	}
	to := StatusCompleted
	if runErr != nil {
		to = StatusFailed
	}
	if err := g.transition(st, to); err != nil {
		return err
	}
	st.FinishedAt = at
	st.Err = runErr
	if out != nil {
		st.Attempts = out.Attempts
		st.FallbackLevel = out.FallbackLevel
		if runErr == nil {
			st.Result = out.Value
		}
	}
	return nil
}

// resetUndispatched returns READY steps to PENDING after an aborted run and
// reports their ids.
func (g *Graph) resetUndispatched() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var ids []string
	for _, i := range g.order {
		if st := g.nodes[i]; st.Status == StatusReady {
			st.Status = StatusPending
			ids = append(ids, st.ID)
		}
	}
	return ids
}
