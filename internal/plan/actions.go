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

package plan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/innovationmech/dagflow/pkg/resilience"
)

func simulateAction(d ActionDef, label string) (resilience.Action, error) {
	category := resilience.CategoryTransient
	if d.Error != "" {
		var err error
		if category, err = resilience.ParseCategory(d.Error); err != nil {
			return nil, fmt.Errorf("%s: %w", label, err)
		}
	}
	result := d.Result
	if result == "" {
		result = label + " ok"
	}

	var calls atomic.Int64
	return func(ctx context.Context) (string, error) {
		n := calls.Add(1)
		if d.Duration > 0 {
			timer := time.NewTimer(d.Duration)
			select {
			case <-ctx.Done():
				timer.Stop()
				return "", ctx.Err()
			case <-timer.C:
			}
		}
		if n <= int64(d.FailTimes) {
			err := &resilience.Error{
				Category: category,
				Message:  fmt.Sprintf("%s: simulated failure %d of %d", label, n, d.FailTimes),
			}
			if category == resilience.CategoryRecoverable {
				err.Suggestion = "retry with a different input"
			}
			return "", err
		}
		return result, nil
	}, nil
}

func commandAction(d ActionDef, label string) resilience.Action {
	return func(ctx context.Context) (string, error) {
		cmd := exec.CommandContext(ctx, "sh", "-c", d.Run)
		cmd.Dir = d.Dir
		if len(d.Env) > 0 {
			cmd.Env = os.Environ()
			for k, v := range d.Env {
				cmd.Env = append(cmd.Env, k+"="+v)
			}
		}
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		err := cmd.Run()
		if err == nil {
			return strings.TrimSpace(stdout.String()), nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}

		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return "", resilience.Wrap(resilience.CategoryPermanent, fmt.Errorf("%s: start command: %w", label, err))
		}

		code := exitErr.ExitCode()
		category := resilience.CategoryPermanent
		if slices.Contains(d.TransientExitCodes, code) {
			category = resilience.CategoryTransient
		}
		ce := &resilience.Error{
			Category: category,
			Message:  fmt.Sprintf("%s: command exited with status %d", label, code),
			Err:      err,
		}
		return "", ce.WithDetail("exit_code", code).WithDetail("stderr", lastLine(stderr.String()))
	}
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
