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
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"

	"github.com/innovationmech/dagflow/pkg/config/testutil"
	"github.com/innovationmech/dagflow/pkg/dag"
	"github.com/innovationmech/dagflow/pkg/logger"
)

const fastConfig = `
resilience:
  max_retries: 2
  base_delay: 1ms
  max_delay: 5ms
logging:
  level: error
`

const pipelinePlan = `
name: pipeline
steps:
  - id: fetch
    action: {type: simulate, result: raw}
  - id: stats
    depends_on: [fetch]
    action: {type: simulate, fail_times: 1, error: transient}
  - id: chart
    depends_on: [fetch]
    resource: renderer
    action: {type: simulate, fail_times: 1, error: permanent}
    fallbacks:
      - {type: simulate, result: placeholder chart}
  - id: merge
    depends_on: [stats, chart]
    action: {type: simulate}
`

const failingPlan = `
name: failing
steps:
  - id: fetch
    action: {type: simulate, fail_times: 1, error: permanent}
  - id: report
    depends_on: [fetch]
    action: {type: simulate}
`

const abortingPlan = `
name: aborting
steps:
  - id: boot
    action: {type: simulate, fail_times: 1, error: catastrophic}
  - id: after
    depends_on: [boot]
    action: {type: simulate}
`

// CmdTestSuite runs the command tree against plan and config files in a
// sandbox directory.
type CmdTestSuite struct {
	suite.Suite
	sb     *testutil.Sandbox
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func TestCmdTestSuite(t *testing.T) {
	suite.Run(t, new(CmdTestSuite))
}

func (s *CmdTestSuite) SetupTest() {
	s.sb = testutil.NewSandbox(s.T())
	s.sb.WriteFile("dagflow.yaml", fastConfig)
	s.stdout = &bytes.Buffer{}
	s.stderr = &bytes.Buffer{}
}

func (s *CmdTestSuite) TearDownTest() {
	logger.ResetLogger()
}

func (s *CmdTestSuite) execute(args ...string) error {
	root := NewRootCommand()
	root.SetOut(s.stdout)
	root.SetErr(s.stderr)
	root.SetArgs(append(args, "--config-dir", s.sb.Dir, "--no-color"))
	return root.ExecuteContext(context.Background())
}

func (s *CmdTestSuite) TestRootCommand_Properties() {
	root := NewRootCommand()

	assert.Equal(s.T(), "dagflow", root.Use)
	assert.True(s.T(), root.SilenceUsage)
	for _, name := range []string{"config-dir", "env", "concurrency", "metrics-addr", "trace", "log-level", "no-color"} {
		assert.NotNil(s.T(), root.PersistentFlags().Lookup(name), name)
	}

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(s.T(), []string{"run", "validate", "config", "version"}, names)
}

func (s *CmdTestSuite) TestRun_Succeeds() {
	planPath := s.sb.WriteFile("pipeline.yaml", pipelinePlan)

	err := s.execute("run", planPath, "--concurrency", "2")
	require.NoError(s.T(), err)

	out := s.stdout.String()
	assert.Contains(s.T(), out, "pipeline")
	assert.Contains(s.T(), out, "placeholder chart")
	assert.Contains(s.T(), out, "4 steps: 4 completed, 0 failed, 0 skipped, 0 pending")
	assert.Contains(s.T(), out, "succeeded")
	assert.Contains(s.T(), out, "renderer")
}

func (s *CmdTestSuite) TestRun_FailedStep() {
	planPath := s.sb.WriteFile("failing.yaml", failingPlan)

	err := s.execute("run", planPath)
	require.ErrorIs(s.T(), err, ErrStepsFailed)
	assert.Contains(s.T(), err.Error(), "1 failed, 1 skipped")
	assert.Contains(s.T(), s.stdout.String(), "SKIPPED")
}

func (s *CmdTestSuite) TestRun_Aborted() {
	planPath := s.sb.WriteFile("aborting.yaml", abortingPlan)

	err := s.execute("run", planPath)
	require.ErrorIs(s.T(), err, dag.ErrRunAborted)
	assert.Contains(s.T(), s.stdout.String(), "PENDING")
}

func (s *CmdTestSuite) TestRun_Trace() {
	planPath := s.sb.WriteFile("pipeline.yaml", pipelinePlan)

	require.NoError(s.T(), s.execute("run", planPath, "--trace"))
	assert.Contains(s.T(), s.stderr.String(), `"Name":"dag.run"`)
	assert.Contains(s.T(), s.stderr.String(), `"Name":"dag.step"`)
}

func (s *CmdTestSuite) TestRun_MetricsServer() {
	planPath := s.sb.WriteFile("pipeline.yaml", pipelinePlan)
	assert.NoError(s.T(), s.execute("run", planPath, "--metrics-addr", "127.0.0.1:0"))
}

func (s *CmdTestSuite) TestRun_Errors() {
	planPath := s.sb.WriteFile("pipeline.yaml", pipelinePlan)
	broken := s.sb.WriteFile("broken.yaml", "name: broken\nsteps: [{id: a, depends_on: [a], action: {type: simulate}}]")

	assert.Error(s.T(), s.execute("run"), "missing plan argument")
	assert.Error(s.T(), s.execute("run", s.sb.Path("missing.yaml")))
	assert.ErrorIs(s.T(), s.execute("run", broken), dag.ErrInvalidGraph)
	assert.Error(s.T(), s.execute("run", planPath, "--concurrency", "0"))
	assert.Error(s.T(), s.execute("run", planPath, "--log-level", "verbose"))
}

func (s *CmdTestSuite) TestRun_EnvironmentFile() {
	planPath := s.sb.WriteFile("pipeline.yaml", pipelinePlan)
	s.sb.WriteFile("dagflow.ci.yaml", "scheduler: {concurrency: 0}\n")

	assert.Error(s.T(), s.execute("run", planPath, "--env", "ci"))
}

func (s *CmdTestSuite) TestValidate() {
	planPath := s.sb.WriteFile("pipeline.yaml", pipelinePlan)

	require.NoError(s.T(), s.execute("validate", planPath))
	out := s.stdout.String()
	assert.Contains(s.T(), out, "[stats chart]")
	assert.Contains(s.T(), out, "plan is valid: 4 steps in 3 levels")
}

func (s *CmdTestSuite) TestValidate_Invalid() {
	planPath := s.sb.WriteFile("bad.yaml", "name: bad\nsteps: [{id: a, action: {type: teleport}}]")
	assert.Error(s.T(), s.execute("validate", planPath))
}

func (s *CmdTestSuite) TestConfig() {
	s.sb.SetEnv("DAGFLOW_TRACING_SERVICE_NAME", "nightly")

	require.NoError(s.T(), s.execute("config", "--concurrency", "7"))
	out := s.stdout.String()
	assert.Contains(s.T(), out, "concurrency: 7")
	assert.Contains(s.T(), out, "base_delay: 1ms")
	assert.Contains(s.T(), out, "service_name: nightly")
}

func (s *CmdTestSuite) TestVersion() {
	SetVersionInfo("1.2.3", "abc123", "")
	defer SetVersionInfo("dev", "unknown", "unknown")

	require.NoError(s.T(), s.execute("version"))
	assert.Contains(s.T(), s.stdout.String(), "dagflow 1.2.3 (commit abc123, built unknown)")
}

func TestMetricsServer(t *testing.T) {
	reg := newRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "dagflow_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	srv, err := startMetricsServer("127.0.0.1:0", reg, zaptest.NewLogger(t))
	require.NoError(t, err)

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "dagflow_test_total 1")
	assert.Contains(t, string(body), "go_goroutines")

	require.NoError(t, srv.Shutdown(context.Background()))
	_, err = http.Get("http://" + srv.Addr() + "/metrics")
	assert.Error(t, err)
}

func TestMetricsServer_BadAddress(t *testing.T) {
	_, err := startMetricsServer("not-an-address", newRegistry(), zaptest.NewLogger(t))
	assert.Error(t, err)
}
