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
	"time"
)

// ExecutionResult is the outcome of one Scheduler.Run.
type ExecutionResult struct {
	RunID     string
	StartedAt time.Time
	Elapsed   time.Duration

	// Steps holds every step in topological order.
	Steps []Step

	Completed int
	Failed    int
	Skipped   int
	// Pending counts steps that were never dispatched. It is non-zero only
	// for an aborted run.
	Pending int

	Aborted  bool
	AbortErr error
}

func newExecutionResult(runID string, started time.Time, elapsed time.Duration, steps []Step, abortErr error) *ExecutionResult {
	r := &ExecutionResult{
		RunID:     runID,
		StartedAt: started,
		Elapsed:   elapsed,
		Steps:     steps,
		Aborted:   abortErr != nil,
		AbortErr:  abortErr,
	}
	for _, st := range steps {
		switch st.Status {
		case StatusCompleted:
			r.Completed++
		case StatusFailed:
			r.Failed++
		case StatusSkipped:
			r.Skipped++
		default:
			r.Pending++
		}
	}
	return r
}

// Total returns the number of steps in the run.
func (r *ExecutionResult) Total() int { return len(r.Steps) }

// Succeeded reports whether every step completed.
func (r *ExecutionResult) Succeeded() bool {
	return !r.Aborted && r.Completed == len(r.Steps)
}

// Step returns the final state of the step with the given id.
func (r *ExecutionResult) Step(id string) (Step, bool) {
	for _, st := range r.Steps {
		if st.ID == id {
			return st, true
		}
	}
	return Step{}, false
}

// ParallelSpeedup is the summed running time of all steps divided by the
// wall time of the run. It is 0 when either is zero.
func (r *ExecutionResult) ParallelSpeedup() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	var busy time.Duration
	for _, st := range r.Steps {
		busy += st.Duration()
	}
	return float64(busy) / float64(r.Elapsed)
}
