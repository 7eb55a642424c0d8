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

package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// Layer is one source in the configuration hierarchy.
//
// Precedence (low to high): Defaults < Base < EnvironmentFile < OverrideFile < EnvironmentVariables
type Layer int

const (
	// DefaultsLayer holds values set through SetDefault.
	DefaultsLayer Layer = iota
	// BaseLayer is the committed file, dagflow.yaml.
	BaseLayer
	// EnvironmentFileLayer is the per-environment file, e.g. dagflow.ci.yaml.
	EnvironmentFileLayer
	// OverrideFileLayer is an operator's local override, dagflow.override.yaml.
	OverrideFileLayer
	// EnvironmentVariablesLayer is DAGFLOW_* variables.
	EnvironmentVariablesLayer
)

func (l Layer) String() string {
	switch l {
	case DefaultsLayer:
		return "defaults"
	case BaseLayer:
		return "base"
	case EnvironmentFileLayer:
		return "environment-file"
	case OverrideFileLayer:
		return "override-file"
	case EnvironmentVariablesLayer:
		return "environment"
	default:
		return fmt.Sprintf("layer(%d)", int(l))
	}
}

// Options configures the Manager.
type Options struct {
	// WorkDir is the directory holding the configuration files.
	WorkDir string

	// ConfigBaseName is the file name without extension (default "dagflow").
	ConfigBaseName string

	// ConfigType is the file type (yaml|yml|json). Default "yaml".
	ConfigType string

	// EnvironmentName selects the environment file, e.g. "ci" loads dagflow.ci.yaml.
	EnvironmentName string

	// OverrideFilename is the override file name. Default "dagflow.override.yaml".
	OverrideFilename string

	// EnvPrefix is the environment variable prefix (default "DAGFLOW").
	EnvPrefix string

	// EnableAutomaticEnv binds environment variables, mapping "." in keys to "_".
	EnableAutomaticEnv bool
}

// DefaultOptions returns the options used by the dagflow command.
func DefaultOptions() Options {
	return Options{
		WorkDir:            ".",
		ConfigBaseName:     "dagflow",
		ConfigType:         "yaml",
		OverrideFilename:   "dagflow.override.yaml",
		EnvPrefix:          "DAGFLOW",
		EnableAutomaticEnv: true,
	}
}

// Manager loads and merges the configuration layers into one viper instance.
type Manager struct {
	mu      sync.RWMutex
	v       *viper.Viper
	options Options
	loaded  []string
}

// NewManager creates a Manager with the given options.
func NewManager(options Options) *Manager {
	v := viper.New()
	if options.ConfigType == "" {
		options.ConfigType = "yaml"
	}
	if options.ConfigBaseName == "" {
		options.ConfigBaseName = "dagflow"
	}
	if options.WorkDir == "" {
		options.WorkDir = "."
	}

	if options.EnableAutomaticEnv {
		if options.EnvPrefix != "" {
			v.SetEnvPrefix(options.EnvPrefix)
		}
		v.AutomaticEnv()
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	}

	return &Manager{v: v, options: options}
}

// SetDefault sets the default for key. Environment variables only reach
// keys that have a default or appear in a file.
func (m *Manager) SetDefault(key string, value interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.v.SetDefault(key, value)
}

// Load merges the base, environment and override files in precedence
// order. Missing files are skipped; environment variables apply on read.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.loaded = m.loaded[:0]
	layers := []Layer{BaseLayer, EnvironmentFileLayer, OverrideFileLayer}
	for _, layer := range layers {
		if layer == EnvironmentFileLayer && m.options.EnvironmentName == "" {
			continue
		}
		path := m.filePathFor(layer)
		ok, err := m.mergeFileIfExists(path)
		if err != nil {
			return fmt.Errorf("load %s config: %w", layer, err)
		}
		if ok {
			m.loaded = append(m.loaded, path)
		}
	}
	return nil
}

// LoadedFiles returns the files merged by the last Load, lowest precedence first.
func (m *Manager) LoadedFiles() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.loaded...)
}

// Unmarshal decodes the merged settings into target, which must be a pointer.
func (m *Manager) Unmarshal(target interface{}) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if target == nil {
		return errors.New("target must not be nil")
	}
	return m.v.Unmarshal(target)
}

// Get returns the merged value for key.
func (m *Manager) Get(key string) interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.v.Get(key)
}

// Set forces key to value above every layer. Command-line flags use it.
func (m *Manager) Set(key string, value interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.v.Set(key, value)
}

// AllSettings returns a copy of the merged settings.
func (m *Manager) AllSettings() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.v.AllSettings()
}

func (m *Manager) filePathFor(layer Layer) string {
	dir := m.options.WorkDir
	base := m.options.ConfigBaseName
	switch layer {
	case BaseLayer:
		return filepath.Join(dir, fmt.Sprintf("%s.%s", base, m.normalizedConfigExt()))
	case EnvironmentFileLayer:
		env := m.options.EnvironmentName
		return filepath.Join(dir, fmt.Sprintf("%s.%s.%s", base, strings.ToLower(env), m.normalizedConfigExt()))
	case OverrideFileLayer:
		name := m.options.OverrideFilename
		if name == "" {
			name = fmt.Sprintf("%s.override.%s", base, m.normalizedConfigExt())
		}
		return filepath.Join(dir, name)
	default:
		return ""
	}
}

func (m *Manager) normalizedConfigExt() string {
	t := strings.ToLower(m.options.ConfigType)
	switch t {
	case "yml":
		return "yaml"
	case "yaml", "json":
		return t
	default:
		return "yaml"
	}
}

// mergeFileIfExists merges the file at path and reports whether it existed.
func (m *Manager) mergeFileIfExists(path string) (bool, error) {
	if path == "" {
		return false, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}

	// parse into a scratch instance so a bad file leaves the merged state untouched
	tmp := viper.New()
	tmp.SetConfigType(m.normalizedConfigExt())
	if err := tmp.ReadConfig(bytes.NewReader(content)); err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, m.v.MergeConfigMap(tmp.AllSettings())
}
