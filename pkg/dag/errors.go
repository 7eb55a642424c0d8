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
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidGraph is wrapped by every structural validation failure.
	ErrInvalidGraph = errors.New("invalid step graph")
	// ErrCycleFound is wrapped when the dependency edges contain a cycle.
	ErrCycleFound = errors.New("cycle detected")
	// ErrDependencyFailed is the error of a step skipped because an upstream
	// step failed or was skipped.
	ErrDependencyFailed = errors.New("dependency failed")
	// ErrRunAborted is matched by the error returned from an aborted run.
	ErrRunAborted = errors.New("run aborted")
	// ErrGraphInUse is returned when a graph is run twice.
	ErrGraphInUse = errors.New("graph already claimed by a run")
	// ErrGraphFrozen is returned by AddStep once the owning run has finished.
	ErrGraphFrozen = errors.New("graph is frozen")
)

// GraphError reports a graph construction failure.
type GraphError struct {
	Kind error
	Msg  string
}

func (e *GraphError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *GraphError) Unwrap() error { return e.Kind }

func invalidf(format string, args ...any) error {
	return &GraphError{Kind: ErrInvalidGraph, Msg: fmt.Sprintf(format, args...)}
}

func cycleError(path []string) error {
	msg := "cycle"
	if len(path) > 0 {
		msg = "cycle: " + strings.Join(path, " -> ")
	}
	return &GraphError{Kind: ErrCycleFound, Msg: msg}
}

// AbortError is returned alongside the result of a run that stopped
// dispatching early. It matches ErrRunAborted and the underlying cause.
type AbortError struct {
	// StepID is the step whose error aborted the run, empty when the run
	// context was cancelled.
	StepID string
	Err    error
}

func (e *AbortError) Error() string {
	if e.StepID == "" {
		return fmt.Sprintf("%s: %v", ErrRunAborted, e.Err)
	}
	return fmt.Sprintf("%s: step %q: %v", ErrRunAborted, e.StepID, e.Err)
}

func (e *AbortError) Unwrap() []error {
	return []error{ErrRunAborted, e.Err}
}
