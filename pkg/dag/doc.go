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

// Package dag runs a graph of interdependent steps under a bounded
// concurrency budget.
//
// A Graph is built once from StepSpecs and validated up front: unknown
// dependencies and cycles are configuration errors. A Scheduler then drives
// the graph through a single coordinating loop. It asks the graph for ready
// steps, dispatches each onto a worker slot through a resilience.Executor and
// merges the outcomes back. The coordinating loop is the only writer of step
// status once a run has started.
//
// Step lifecycle:
//
//	PENDING -> READY -> RUNNING -> COMPLETED | FAILED
//	PENDING -> SKIPPED            (an upstream step failed or was skipped)
//
// A catastrophic step error, or cancellation of the run context, stops
// dispatch. Running steps are allowed to finish and steps that never started
// are reported as PENDING.
package dag
