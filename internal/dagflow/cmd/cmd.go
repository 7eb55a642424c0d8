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

// Package cmd holds the cobra commands of the dagflow binary.
package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/innovationmech/dagflow/internal/dagflow/ui"
	"github.com/innovationmech/dagflow/pkg/config"
	"github.com/innovationmech/dagflow/pkg/logger"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configDir   string
	env         string
	concurrency int
	metricsAddr string
	trace       bool
	logLevel    string
	noColor     bool
}

// NewRootCommand returns the dagflow command tree.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "dagflow",
		Short: "Run step graphs with retries, circuit breakers and fallbacks",
		Long: `dagflow executes a plan of dependent steps concurrently.

Each step runs behind a per-resource circuit breaker, is retried with
exponential backoff on transient errors and falls back to alternative
actions when it keeps failing. Steps whose dependencies fail are skipped.`,
		Version:       versionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configDir, "config-dir", ".", "directory holding dagflow.yaml")
	flags.StringVar(&opts.env, "env", "", "environment name, loads dagflow.<env>.yaml")
	flags.IntVarP(&opts.concurrency, "concurrency", "c", 0, "maximum number of steps running at once")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	flags.BoolVar(&opts.trace, "trace", false, "export run and step spans to stderr")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newRunCommand(opts),
		newValidateCommand(opts),
		newConfigCommand(opts),
		newVersionCommand(),
	)
	return root
}

// loadConfig merges the configuration layers with the flags set on cmd and
// reconfigures the global logger.
func (o *globalOptions) loadConfig(cmd *cobra.Command) (*config.AppConfig, error) {
	options := config.DefaultOptions()
	options.WorkDir = o.configDir
	options.EnvironmentName = o.env

	flags := cmd.Flags()
	overrides := map[string]interface{}{}
	if flags.Changed("concurrency") {
		overrides["scheduler.concurrency"] = o.concurrency
	}
	if flags.Changed("metrics-addr") {
		overrides["metrics.enabled"] = o.metricsAddr != ""
		overrides["metrics.address"] = o.metricsAddr
	}
	if flags.Changed("trace") {
		overrides["tracing.enabled"] = o.trace
	}
	if flags.Changed("log-level") {
		overrides["logging.level"] = o.logLevel
	}

	cfg, m, err := config.Load(options, overrides)
	if err != nil {
		return nil, err
	}
	if err := logger.Configure(cfg.Logging.Level, cfg.Logging.Development); err != nil {
		return nil, err
	}
	logger.GetLogger().Debug("configuration loaded",
		zap.Strings("files", m.LoadedFiles()),
		zap.Int("concurrency", cfg.Scheduler.Concurrency))
	return cfg, nil
}

func (o *globalOptions) terminal(cmd *cobra.Command) *ui.TerminalUI {
	return ui.NewTerminalUI(ui.WithOutput(cmd.OutOrStdout()), ui.WithNoColor(o.noColor))
}
