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

package ui

import (
	"fmt"
	"strconv"
	"time"

	"github.com/innovationmech/dagflow/pkg/dag"
	"github.com/innovationmech/dagflow/pkg/resilience"
)

const maxCellWidth = 48

// ShowResult prints one row per step followed by the aggregate counts.
func (ui *TerminalUI) ShowResult(r *dag.ExecutionResult) error {
	headers := []string{"Step", "Status", "Attempts", "Fallback", "Duration", "Result"}
	rows := make([][]string, 0, len(r.Steps))
	for _, st := range r.Steps {
		outcome := st.Result
		if st.Err != nil {
			outcome = st.Err.Error()
		}
		fallback := "-"
		if st.FallbackLevel > 0 {
			fallback = strconv.Itoa(st.FallbackLevel)
		}
		duration := "-"
		if d := st.Duration(); d > 0 {
			duration = d.Round(time.Millisecond).String()
		}
		rows = append(rows, []string{
			Truncate(st.DisplayName(), maxCellWidth),
			st.Status.String(),
			strconv.Itoa(st.Attempts),
			fallback,
			duration,
			Truncate(outcome, maxCellWidth),
		})
	}
	if err := ui.ShowTable(headers, rows); err != nil {
		return err
	}

	fmt.Fprintf(ui.output, "\n%d steps: %s completed, %s failed, %s skipped, %s pending in %s (speedup %.2fx)\n",
		r.Total(),
		ui.style.Success.Sprint(r.Completed),
		ui.style.Error.Sprint(r.Failed),
		ui.style.Warning.Sprint(r.Skipped),
		ui.style.Muted.Sprint(r.Pending),
		r.Elapsed.Round(time.Millisecond),
		r.ParallelSpeedup())

	switch {
	case r.Aborted && r.AbortErr != nil:
		ui.ShowError(r.AbortErr)
	case r.Succeeded():
		ui.ShowSuccess("run " + r.RunID + " succeeded")
	default:
		ui.ShowWarning("run " + r.RunID + " finished with failures")
	}
	return nil
}

// ShowBreakers prints the state of every circuit breaker.
func (ui *TerminalUI) ShowBreakers(snapshots []resilience.BreakerSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(snapshots))
	for _, s := range snapshots {
		rows = append(rows, []string{s.Name, s.State.String(), strconv.Itoa(s.FailureCount)})
	}
	return ui.ShowTable([]string{"Resource", "Breaker", "Failures"}, rows)
}

// ShowLevels prints the steps of a graph grouped by dependency depth.
func (ui *TerminalUI) ShowLevels(levels [][]string) error {
	rows := make([][]string, 0, len(levels))
	for i, ids := range levels {
		rows = append(rows, []string{strconv.Itoa(i), fmt.Sprint(ids)})
	}
	return ui.ShowTable([]string{"Level", "Steps"}, rows)
}
