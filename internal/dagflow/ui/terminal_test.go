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
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innovationmech/dagflow/pkg/dag"
	"github.com/innovationmech/dagflow/pkg/resilience"
)

func newTestUI() (*TerminalUI, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewTerminalUI(WithOutput(&buf), WithNoColor(true)), &buf
}

func TestShowTable(t *testing.T) {
	ui, buf := newTestUI()

	err := ui.ShowTable([]string{"Step", "Status"}, [][]string{
		{"fetch", "COMPLETED"},
		{"a-much-longer-step", "FAILED", "ignored"},
		{"short"},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, "┌────────────────────┬───────────┐", lines[0])
	assert.Equal(t, "│ Step               │ Status    │", lines[1])
	assert.Equal(t, "│ a-much-longer-step │ FAILED    │", lines[4])
	assert.Equal(t, "│ short              │           │", lines[5])
	assert.NotContains(t, buf.String(), "ignored")
}

func TestShowTable_NoHeaders(t *testing.T) {
	ui, _ := newTestUI()
	assert.Error(t, ui.ShowTable(nil, nil))
}

func TestMessages(t *testing.T) {
	ui, buf := newTestUI()

	ui.ShowSuccess("done")
	ui.ShowError(errors.New("broken"))
	ui.ShowWarning("careful")
	ui.ShowInfo("fyi")
	ui.PrintHeader("plan")

	out := buf.String()
	for _, want := range []string{"✔ done", "✘ broken", "! careful", "› fyi", "╭─ plan ─"} {
		assert.Contains(t, out, want)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abcd…", Truncate("abcdefgh", 5))
	assert.Equal(t, "a b", Truncate(" a\nb ", 10))
	assert.Equal(t, "héll…", Truncate("héllo wörld", 5))
}

func TestShowResult(t *testing.T) {
	g, err := dag.NewGraph([]dag.StepSpec{
		{ID: "fetch", Name: "Fetch data", Action: func(context.Context) (string, error) { return "raw", nil }},
		{ID: "parse", DependsOn: []string{"fetch"}, Action: func(context.Context) (string, error) {
			return "", resilience.NewPermanent("bad input")
		}},
		{ID: "report", DependsOn: []string{"parse"}, Action: func(context.Context) (string, error) { return "", nil }},
	})
	require.NoError(t, err)

	cfg := resilience.DefaultConfig()
	cfg.MaxRetries = 0
	executor, err := resilience.NewExecutor(cfg)
	require.NoError(t, err)
	result, err := dag.NewScheduler(executor).Run(context.Background(), g, 2)
	require.NoError(t, err)

	ui, buf := newTestUI()
	require.NoError(t, ui.ShowResult(result))

	out := buf.String()
	assert.Contains(t, out, "Fetch data")
	assert.Contains(t, out, "COMPLETED")
	assert.Contains(t, out, "bad input")
	assert.Contains(t, out, "SKIPPED")
	assert.Contains(t, out, "3 steps: 1 completed, 1 failed, 1 skipped, 0 pending")
	assert.Contains(t, out, "finished with failures")

	buf.Reset()
	require.NoError(t, ui.ShowBreakers(executor.Breakers()))
	assert.Contains(t, buf.String(), "default")
	assert.Contains(t, buf.String(), "closed")
}

func TestShowLevels(t *testing.T) {
	ui, buf := newTestUI()
	require.NoError(t, ui.ShowLevels([][]string{{"a"}, {"b", "c"}}))
	assert.Contains(t, buf.String(), "│ 1     │ [b c] │")
}
