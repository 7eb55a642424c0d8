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

// Package plan loads step graphs from YAML plan files.
package plan

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/innovationmech/dagflow/pkg/dag"
	"github.com/innovationmech/dagflow/pkg/resilience"
)

// Action types.
const (
	ActionSimulate = "simulate"
	ActionCommand  = "command"
)

// Plan is a named list of steps.
type Plan struct {
	Name        string    `yaml:"name" validate:"required"`
	Description string    `yaml:"description,omitempty"`
	Steps       []StepDef `yaml:"steps" validate:"required,min=1,dive"`
}

// StepDef is one step of a plan file.
type StepDef struct {
	ID        string      `yaml:"id" validate:"required"`
	Name      string      `yaml:"name,omitempty"`
	Resource  string      `yaml:"resource,omitempty"`
	DependsOn []string    `yaml:"depends_on,omitempty" validate:"dive,required"`
	Action    ActionDef   `yaml:"action"`
	Fallbacks []ActionDef `yaml:"fallbacks,omitempty" validate:"dive"`
}

// ActionDef describes a built-in action.
//
// A simulate action sleeps Duration, fails its first FailTimes calls with an
// error of category Error and then returns Result. A command action runs Run
// through "sh -c" and returns its trimmed standard output.
type ActionDef struct {
	Type string `yaml:"type" validate:"required,oneof=simulate command"`

	Duration  time.Duration `yaml:"duration,omitempty" validate:"gte=0"`
	FailTimes int           `yaml:"fail_times,omitempty" validate:"gte=0"`
	Error     string        `yaml:"error,omitempty" validate:"omitempty,oneof=transient recoverable permanent catastrophic"`
	Result    string        `yaml:"result,omitempty"`

	Run                string            `yaml:"run,omitempty" validate:"required_if=Type command"`
	Dir                string            `yaml:"dir,omitempty"`
	Env                map[string]string `yaml:"env,omitempty"`
	TransientExitCodes []int             `yaml:"transient_exit_codes,omitempty" validate:"dive,gte=1,lte=255"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads and validates the plan file at path.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", path, err)
	}
	return p, nil
}

// Parse decodes and validates a plan. Unknown fields are rejected.
func Parse(data []byte) (*Plan, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var p Plan
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty plan")
		}
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks field constraints and the step graph.
func (p *Plan) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid plan: %w", err)
	}
	if _, err := p.Graph(); err != nil {
		return err
	}
	return nil
}

// StepSpecs turns the plan into step specs with fresh actions.
func (p *Plan) StepSpecs() ([]dag.StepSpec, error) {
	specs := make([]dag.StepSpec, 0, len(p.Steps))
	for _, s := range p.Steps {
		action, err := s.Action.Build(s.ID)
		if err != nil {
			return nil, err
		}
		spec := dag.StepSpec{
			ID:        s.ID,
			Name:      s.Name,
			Resource:  s.Resource,
			DependsOn: s.DependsOn,
			Action:    action,
		}
		for i, fb := range s.Fallbacks {
			fallback, err := fb.Build(fmt.Sprintf("%s/fallback-%d", s.ID, i+1))
			if err != nil {
				return nil, err
			}
			spec.Fallbacks = append(spec.Fallbacks, fallback)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// Graph builds a new graph from the plan. Each call returns an independent
// graph whose actions keep their own call counters.
func (p *Plan) Graph() (*dag.Graph, error) {
	specs, err := p.StepSpecs()
	if err != nil {
		return nil, err
	}
	return dag.NewGraph(specs)
}

// Build returns the action described by d. label identifies it in results
// and errors.
func (d ActionDef) Build(label string) (resilience.Action, error) {
	switch d.Type {
	case ActionCommand:
		return commandAction(d, label), nil
	default:
		return simulateAction(d, label)
	}
}
